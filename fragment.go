package squashfs

import (
	"encoding/binary"
	"fmt"
)

// fragEntriesPerChunk is the number of 16-byte fragment entries packed into
// one metadata chunk, and thus the stride of the fragment table's top-level
// pointer array.
const fragEntriesPerChunk = 512

// fragEntrySize is the on-disk size of one fragment table entry: an 8-byte
// start offset, a 4-byte size-with-compression-flag, and 4 reserved bytes
// this reader never needs to inspect.
const fragEntrySize = 16

// fragment is a resolved fragment-block location: the absolute byte offset
// of its (possibly compressed) data on the backing store, and its on-disk
// size with bit 24 still carrying the "stored uncompressed" flag.
type fragment struct {
	start uint64
	size  uint32
}

// uncompressed reports whether this fragment block is stored without
// compression (bit 24 of the size field).
func (f fragment) uncompressed() bool { return f.size&0x01000000 != 0 }

// rawSize is the fragment block's stored length with the compression flag
// masked off.
func (f fragment) rawSize() uint32 { return f.size & 0x00ffffff }

// resolveFragment locates fragment table entry idx: one read from the
// top-level pointer array to find which metadata chunk holds it, then one
// metadata-chunk decode to pull out the 12 bytes (of 16) this reader cares
// about.
func (m *Mount) resolveFragment(idx uint32) (fragment, error) {
	if idx >= m.sb.FragCount {
		return fragment{}, fmt.Errorf("%w: fragment index %d, image has %d fragments", ErrInvalidArgument, idx, m.sb.FragCount)
	}
	chunkIdx := int64(idx) / fragEntriesPerChunk
	ptr := make([]byte, 8)
	if _, err := m.store.ReadAt(ptr, int64(m.sb.FragTableStart)+chunkIdx*8); err != nil {
		return fragment{}, err
	}
	chunkBase := int64(m.sb.order.Uint64(ptr))

	intra := int(idx%fragEntriesPerChunk) * fragEntrySize
	cr, err := newMetadataChunkReader(m.sb, m.store, chunkBase, intra)
	if err != nil {
		return fragment{}, err
	}

	var f fragment
	if err := binary.Read(cr, m.sb.order, &f.start); err != nil {
		return fragment{}, fmt.Errorf("%w: reading fragment entry %d: %s", ErrIO, idx, err)
	}
	if err := binary.Read(cr, m.sb.order, &f.size); err != nil {
		return fragment{}, fmt.Errorf("%w: reading fragment entry %d: %s", ErrIO, idx, err)
	}
	return f, nil
}
