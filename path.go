package squashfs

import (
	"io"
	"strings"
)

// splitPath breaks a slash-separated path into its non-empty components,
// so "a//b/" and "/a/b" both yield ["a", "b"]. "." components survive the
// split; resolvePath drops them while walking.
func splitPath(p string) []string {
	parts := strings.Split(p, "/")
	out := make([]string, 0, len(parts))
	for _, s := range parts {
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

// lookupChild finds name as a direct entry of dir and returns its inode.
func (m *Mount) lookupChild(dir *Inode, name string) (*Inode, error) {
	if !dir.IsDir() {
		return nil, ErrNotDirectory
	}
	ds, err := newDirStream(m, dir)
	if err != nil {
		return nil, err
	}
	for {
		ename, _, ref, err := ds.next()
		if err != nil {
			if err == io.EOF {
				return nil, ErrNotFound
			}
			return nil, err
		}
		if ename == name {
			return m.GetInodeRef(ref)
		}
	}
}

// resolvePath walks path from the mount's root, following symlinks as they
// are encountered. Symlink targets are spliced in at the position of the
// symlink, relative to the directory containing it (or the root, for an
// absolute target) -- ordinary POSIX-positional semantics, as opposed to
// treating every leading ".." in the remaining path as cancelling out
// against the splice point.
//
// ".." is resolved syntactically, by popping the stack of directories
// walked so far, rather than by looking up an on-disk parent pointer: a
// SquashFS directory inode's parent field names a VFS inode number, and
// turning that back into an inode reference needs the NFS export table,
// which an image built without -exportable simply doesn't carry. Treating
// the base path as the source of truth for ".." (as for any other
// relative-path arithmetic) needs no such table and works on every image.
func (m *Mount) resolvePath(path string) (*Inode, error) {
	comps := splitPath(path)
	cur := m.root
	var stack []*Inode // ancestors of cur, root-to-parent order
	depth := 0

	for i := 0; i < len(comps); i++ {
		name := comps[i]
		switch name {
		case ".":
			continue
		case "..":
			if !cur.IsDir() {
				return nil, ErrNotDirectory
			}
			if len(stack) > 0 {
				cur = stack[len(stack)-1]
				stack = stack[:len(stack)-1]
			} else {
				cur = m.root
			}
			continue
		}

		if !cur.IsDir() {
			return nil, ErrNotDirectory
		}
		child, err := m.lookupChild(cur, name)
		if err != nil {
			return nil, err
		}

		if child.Type.IsSymlink() {
			depth++
			if depth > m.symlinkDepth {
				return nil, ErrTooManySymlinks
			}
			target := string(child.SymTarget)
			rest := comps[i+1:]
			targetComps := splitPath(target)

			next := make([]string, 0, len(targetComps)+len(rest))
			next = append(next, targetComps...)
			next = append(next, rest...)
			comps = next
			i = -1 // the loop's i++ brings this back to 0
			if strings.HasPrefix(target, "/") {
				cur = m.root
				stack = stack[:0]
			}
			continue
		}

		stack = append(stack, cur)
		cur = child
	}

	return cur, nil
}
