package squashfs

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// Mount is a single probed-and-opened SquashFS image. It is not safe for
// concurrent use: callers needing concurrent access should probe the same
// BlockDevice from multiple Mounts, or serialize their own calls. All
// state needed to resolve paths and read file content lives on this
// instance rather than behind package-level globals, so a process can
// hold several images open at once.
type Mount struct {
	dev   BlockDevice
	store *blockStore
	sb    *Superblock

	inodes *inodeTable
	dirs   *inodeTable
	root   *Inode

	symlinkDepth int
	inoOfft      uint64
	log          logrus.FieldLogger
}

// Probe validates dev as holding a SquashFS 4.0 image starting at
// partitionOffset bytes in, and if so returns a Mount ready for OpenDir,
// Read and Size calls.
func Probe(dev BlockDevice, partitionOffset int64, opts ...Option) (*Mount, error) {
	store := newBlockStore(dev, partitionOffset)

	raw := make([]byte, superblockSize)
	if _, err := store.ReadAt(raw, 0); err != nil {
		return nil, err
	}
	sb, err := parseSuperblock(raw)
	if err != nil {
		return nil, err
	}
	if _, ok := decompressors[sb.Comp]; !ok {
		return nil, fmt.Errorf("%w: compression %s has no registered decoder", ErrNotSupported, sb.Comp)
	}

	m := &Mount{
		dev:          dev,
		store:        store,
		sb:           sb,
		symlinkDepth: defaultSymlinkDepth,
		log:          nullLogger,
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}

	data, pos, err := loadTable(sb, store, int64(sb.InodeTableStart), int64(sb.DirTableStart))
	if err != nil {
		return nil, fmt.Errorf("loading inode table: %w", err)
	}
	m.inodes = &inodeTable{data: data, pos: pos}

	dirData, dirPos, err := loadTable(sb, store, int64(sb.DirTableStart), int64(sb.FragTableStart))
	if err != nil {
		return nil, fmt.Errorf("loading directory table: %w", err)
	}
	m.dirs = &inodeTable{data: dirData, pos: dirPos}

	root, err := m.GetInodeRef(inodeRef(sb.RootInode))
	if err != nil {
		return nil, fmt.Errorf("locating root inode: %w", err)
	}
	m.root = root

	m.log.WithFields(logrus.Fields{
		"block_size":  sb.BlockSize,
		"compression": sb.Comp,
		"inode_count": sb.InodeCnt,
	}).Debug("squashfs: mounted image")

	return m, nil
}

// GetInodeRef decodes the inode at ref from the mount's materialized inode
// table, avoiding a backing-store read and decompression of the containing
// metadata chunk on every call.
func (m *Mount) GetInodeRef(ref inodeRef) (*Inode, error) {
	buf, err := m.inodes.bytesAt(ref)
	if err != nil {
		return nil, err
	}
	ino, _, err := decodeInode(m.sb, buf)
	if err != nil {
		return nil, err
	}
	ino.m = m
	return ino, nil
}

// OpenDir opens path, which must name a directory, for sequential listing.
func (m *Mount) OpenDir(path string) (*DirStream, error) {
	ino, err := m.resolvePath(path)
	if err != nil {
		return nil, err
	}
	if !ino.IsDir() {
		return nil, ErrNotDirectory
	}
	return newDirStream(m, ino)
}

// Read copies up to length bytes of path's content, starting at offset,
// into buf. It returns the number of bytes actually copied, which is less
// than length only at end of file -- unlike io.ReaderAt, reaching EOF is
// reported as (n, nil) rather than (n, io.EOF).
func (m *Mount) Read(path string, buf []byte, offset int64, length int64) (int, error) {
	if offset < 0 || length < 0 || length > int64(len(buf)) {
		return 0, ErrInvalidArgument
	}
	ino, err := m.resolvePath(path)
	if err != nil {
		return 0, err
	}
	if ino.Type.Basic() != FileType {
		return 0, fmt.Errorf("%w: %s is not a regular file", ErrNotSupported, path)
	}

	n, err := ino.ReadAt(buf[:length], offset)
	if err != nil && err != io.EOF {
		return n, err
	}
	return n, nil
}

// Size returns the uncompressed size in bytes of the regular file at path.
func (m *Mount) Size(path string) (uint64, error) {
	ino, err := m.resolvePath(path)
	if err != nil {
		return 0, err
	}
	if ino.Type.Basic() != FileType {
		return 0, fmt.Errorf("%w: %s is not a regular file", ErrNotSupported, path)
	}
	return ino.Size, nil
}

// Superblock returns the mount's decoded superblock, for callers (such as
// cmd/sqfs's info command) that want to report on the image itself rather
// than open paths within it.
func (m *Mount) Superblock() *Superblock {
	return m.sb
}

// Close releases resources held by the mount. If the underlying
// BlockDevice implements io.Closer, it is closed too.
func (m *Mount) Close() error {
	if c, ok := m.dev.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
