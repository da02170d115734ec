package squashfs

import (
	"io"
	"io/fs"
	"path"
	"time"
)

// fsys adapts a *Mount to the standard io/fs.FS interface, a convenience
// surface on top of the Probe/OpenDir/Read/Size/Close API so this
// package's images can be handed to anything that already speaks io/fs
// (http.FileServer, fs.WalkDir, fs.Glob). Built against *Mount and *Inode
// rather than a package-level Superblock.
type fsys struct {
	m *Mount
}

// FS returns an io/fs.FS view of m, rooted at m's own root directory.
func (m *Mount) FS() fs.FS {
	return fsys{m: m}
}

var _ fs.FS = fsys{}
var _ fs.StatFS = fsys{}

func (f fsys) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	p := name
	if p == "." {
		p = "/"
	}
	ino, err := f.m.resolvePath(p)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: translate(err)}
	}
	if ino.IsDir() {
		return &fsDir{m: f.m, ino: ino, name: name}, nil
	}
	return &fsFile{SectionReader: io.NewSectionReader(&inodeReaderAt{ino}, 0, int64(ino.Size)), ino: ino, name: name}, nil
}

func (f fsys) Stat(name string) (fs.FileInfo, error) {
	file, err := f.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return file.Stat()
}

// translate turns this package's sentinel errors into the io/fs ones that
// fs.WalkDir and friends already know how to handle (ErrNotExist stops a
// walk cleanly instead of aborting it).
func translate(err error) error {
	switch Kind(err) {
	case KindNotFound:
		return fs.ErrNotExist
	case KindNotDirectory, KindInvalidArgument:
		return fs.ErrInvalid
	default:
		return err
	}
}

// inodeReaderAt hands *Inode's ReadAt to io.SectionReader as an
// io.ReaderAt, passing its results (io.EOF included) through unchanged.
type inodeReaderAt struct{ ino *Inode }

func (r *inodeReaderAt) ReadAt(p []byte, off int64) (int, error) {
	return r.ino.ReadAt(p, off)
}

// fsFile implements fs.File (and io.Seeker, via io.SectionReader) for a
// regular file.
type fsFile struct {
	*io.SectionReader
	ino  *Inode
	name string
}

var _ fs.File = (*fsFile)(nil)

func (f *fsFile) Stat() (fs.FileInfo, error) {
	return &fsFileInfo{name: path.Base(f.name), ino: f.ino}, nil
}

func (f *fsFile) Close() error { return nil }

// fsDir implements fs.ReadDirFile for a directory.
type fsDir struct {
	m    *Mount
	ino  *Inode
	name string
	s    *DirStream
}

var _ fs.ReadDirFile = (*fsDir)(nil)

func (d *fsDir) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.name, Err: fs.ErrInvalid}
}

func (d *fsDir) Stat() (fs.FileInfo, error) {
	return &fsFileInfo{name: path.Base(d.name), ino: d.ino}, nil
}

func (d *fsDir) Close() error {
	d.s = nil
	return nil
}

func (d *fsDir) ReadDir(n int) ([]fs.DirEntry, error) {
	if d.s == nil {
		s, err := newDirStream(d.m, d.ino)
		if err != nil {
			return nil, err
		}
		d.s = s
	}

	var out []fs.DirEntry
	for {
		name, _, ref, err := d.s.next()
		if err != nil {
			if err == io.EOF {
				if n > 0 && len(out) == 0 {
					return nil, io.EOF
				}
				return out, nil
			}
			return out, err
		}
		ino, err := d.m.GetInodeRef(ref)
		if err != nil {
			return out, err
		}
		out = append(out, &fsDirEntry{name: name, ino: ino})
		if n > 0 && len(out) >= n {
			return out, nil
		}
	}
}

// fsDirEntry implements fs.DirEntry.
type fsDirEntry struct {
	name string
	ino  *Inode
}

func (e *fsDirEntry) Name() string               { return e.name }
func (e *fsDirEntry) IsDir() bool                 { return e.ino.IsDir() }
func (e *fsDirEntry) Type() fs.FileMode           { return e.ino.Mode().Type() }
func (e *fsDirEntry) Info() (fs.FileInfo, error)  { return &fsFileInfo{name: e.name, ino: e.ino}, nil }

// fsFileInfo implements fs.FileInfo.
type fsFileInfo struct {
	name string
	ino  *Inode
}

func (fi *fsFileInfo) Name() string       { return fi.name }
func (fi *fsFileInfo) Size() int64        { return int64(fi.ino.Size) }
func (fi *fsFileInfo) Mode() fs.FileMode  { return fi.ino.Mode() }
func (fi *fsFileInfo) ModTime() time.Time { return time.Unix(int64(fi.ino.ModTime), 0) }
func (fi *fsFileInfo) IsDir() bool        { return fi.ino.IsDir() }
func (fi *fsFileInfo) Sys() any           { return fi.ino }
