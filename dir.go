package squashfs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// DirStream provides sequential access to the entries of one open
// directory, mirroring a typical open_dir/readdir/close_dir trio. It is
// built directly from a *Mount rather than a package-level Superblock.
type DirStream struct {
	m *Mount
	r *io.LimitedReader

	count, startBlock, inodeNum uint32
}

// DirEntry is a {name, type, size} projection of one directory entry.
// ReadDir decodes each child's inode to fill in Size and Ino. Ino is
// the on-disk inode number shifted by whatever WithInodeOffset
// configured, so callers mounting several images into one numeric-inode
// namespace see non-colliding values without tracking the offset
// themselves.
type DirEntry struct {
	Name string
	Type Type
	Size uint64
	Ino  uint64
}

// newDirStream opens ino (which must be a directory) for sequential
// listing, positioning a reader into the mount's fully materialized
// directory table at ino's start block and intra-chunk offset. Reading
// from the materialized table rather than re-decoding metadata chunks one
// at a time lets a listing cross a chunk boundary transparently: entries
// are free to straddle the 8192-byte decoded-chunk seams the on-disk
// format packs them into.
func newDirStream(m *Mount, ino *Inode) (*DirStream, error) {
	if !ino.IsDir() {
		return nil, ErrNotDirectory
	}
	off, err := m.dirs.cursor(inodeRef((ino.StartBlock << 16) | uint64(ino.Offset)))
	if err != nil {
		return nil, err
	}
	return &DirStream{
		m: m,
		r: &io.LimitedReader{R: bytes.NewReader(m.dirs.data[off:]), N: int64(ino.Size)},
	}, nil
}

// readHeader decodes one directory header: the entry count in this
// header's run (stored as count-1), the metadata chunk holding those
// entries' inodes, and the base inode number their per-entry deltas are
// relative to.
func (s *DirStream) readHeader() error {
	if err := binary.Read(s.r, s.m.sb.order, &s.count); err != nil {
		return fmt.Errorf("%w: reading directory header: %s", ErrIO, err)
	}
	if err := binary.Read(s.r, s.m.sb.order, &s.startBlock); err != nil {
		return err
	}
	if err := binary.Read(s.r, s.m.sb.order, &s.inodeNum); err != nil {
		return err
	}
	s.count++
	return nil
}

// next decodes the next directory entry, transparently crossing header
// boundaries. Directory data that has been fully consumed (3 trailing
// bytes is the minimum a well-formed stream can still have left) reports
// io.EOF.
func (s *DirStream) next() (string, Type, inodeRef, error) {
	if s.r.N <= 3 {
		return "", 0, 0, io.EOF
	}
	if s.count == 0 {
		if err := s.readHeader(); err != nil {
			return "", 0, 0, err
		}
	}

	var offset, nameLen uint16
	var typ Type
	var inoDelta int16
	if err := binary.Read(s.r, s.m.sb.order, &offset); err != nil {
		return "", 0, 0, fmt.Errorf("%w: reading directory entry: %s", ErrIO, err)
	}
	if err := binary.Read(s.r, s.m.sb.order, &inoDelta); err != nil {
		return "", 0, 0, err
	}
	if err := binary.Read(s.r, s.m.sb.order, &typ); err != nil {
		return "", 0, 0, err
	}
	if err := binary.Read(s.r, s.m.sb.order, &nameLen); err != nil {
		return "", 0, 0, err
	}

	name := make([]byte, int(nameLen)+1)
	if _, err := io.ReadFull(s.r, name); err != nil {
		return "", 0, 0, fmt.Errorf("%w: reading directory entry name: %s", ErrIO, err)
	}
	s.count--

	ref := inodeRef((uint64(s.startBlock) << 16) | uint64(offset))
	return string(name), typ, ref, nil
}

// ReadDir returns the next entry in the stream, or io.EOF once every entry
// has been returned.
func (s *DirStream) ReadDir() (DirEntry, error) {
	name, typ, ref, err := s.next()
	if err != nil {
		return DirEntry{}, err
	}
	ino, err := s.m.GetInodeRef(ref)
	if err != nil {
		return DirEntry{}, err
	}
	return DirEntry{Name: name, Type: typ, Size: ino.Size, Ino: uint64(ino.Ino) + s.m.inoOfft}, nil
}

// Close releases the stream. Directory reads hold no backing-store handle
// beyond what newDirStream already consumed, so this never fails.
func (s *DirStream) Close() error {
	return nil
}
