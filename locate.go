package squashfs

import (
	"fmt"
	"sort"
)

// inodeTable is a fully materialized, decoded metadata table plus the
// position list that maps a chunk-start offset straight to a cursor into
// the decoded bytes, so a lookup never re-reads or re-decompresses a
// metadata chunk it has already materialized. Mount uses one for the
// inode table and a second, separately loaded, for the directory table:
// both share the same chunked-metadata layout and the same chunk-start
// lookup problem.
type inodeTable struct {
	data []byte
	pos  []chunkPos
}

// cursor resolves a chunk-start/intra-chunk reference to a byte offset
// into t.data, verifying that the chunk-start field lands exactly on the
// starting offset of some metadata chunk in the table.
func (t *inodeTable) cursor(ref inodeRef) (int, error) {
	target := int64(ref.Index())
	i := sort.Search(len(t.pos), func(i int) bool { return t.pos[i].srcOffset >= target })
	if i == len(t.pos) || t.pos[i].srcOffset != target {
		return 0, fmt.Errorf("%w: inode reference %s does not start a metadata chunk", ErrInvalidArgument, ref)
	}
	off := t.pos[i].decOffset + int64(ref.Offset())
	if off < 0 || off > int64(len(t.data)) {
		return 0, fmt.Errorf("%w: inode reference %s out of range", ErrInvalidArgument, ref)
	}
	return int(off), nil
}

// bytesAt returns the decoded inode-table bytes starting at ref, for
// decodeInode to parse. It does not bound the far end: callers read only as
// many bytes as the inode variant they decode actually needs.
func (t *inodeTable) bytesAt(ref inodeRef) ([]byte, error) {
	off, err := t.cursor(ref)
	if err != nil {
		return nil, err
	}
	return t.data[off:], nil
}
