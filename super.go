package squashfs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"reflect"
)

// superblockSize is the fixed on-disk size of the structure below: five
// uint32s, six uint16s and eight uint64s = 96 bytes.
const superblockSize = 96

const (
	minBlockSize = 4 * 1024
	maxBlockSize = 1024 * 1024
)

// Superblock is the fixed-size header at byte 0 of a SquashFS image.
// Decoding uses a reflection-driven field-by-field binary.Read loop; the
// embedded io.ReaderAt some decoders keep on this struct is deliberately
// absent here, since backing-store access goes through a BlockDevice
// (device.go) rather than living on the superblock itself.
type Superblock struct {
	order binary.ByteOrder

	Magic             uint32
	InodeCnt          uint32
	ModTime           int32
	BlockSize         uint32
	FragCount         uint32
	Comp              Compression
	BlockLog          uint16
	Flags             SquashFlags
	IdCount           uint16
	VMajor            uint16
	VMinor            uint16
	RootInode         uint64
	BytesUsed         uint64
	IdTableStart      uint64
	XattrIdTableStart uint64
	InodeTableStart   uint64
	DirTableStart     uint64
	FragTableStart    uint64
	ExportTableStart  uint64
}

// parseSuperblock decodes the 96-byte superblock header field by field,
// then validates magic, version, block size power-of-two in range, and
// the table-anchor ordering (inode < dir < frag <= export).
func parseSuperblock(data []byte) (*Superblock, error) {
	if len(data) < superblockSize {
		return nil, fmt.Errorf("%w: short superblock read (%d bytes)", ErrInvalidSuper, len(data))
	}

	s := &Superblock{}
	v := reflect.ValueOf(s).Elem()
	n := v.NumField()
	r := bytes.NewReader(data)

	switch string(data[:4]) {
	case "hsqs":
		s.order = binary.LittleEndian
	case "sqsh":
		s.order = binary.BigEndian
	default:
		return nil, fmt.Errorf("%w: %w", ErrInvalidFile, ErrInvalidSuper)
	}

	for i := 0; i < n; i++ {
		name := v.Type().Field(i).Name
		if name[0] < 'A' || name[0] > 'Z' {
			continue // unexported (order): not part of the on-disk layout
		}
		if err := binary.Read(r, s.order, v.Field(i).Addr().Interface()); err != nil {
			return nil, fmt.Errorf("%w: reading %s: %s", ErrInvalidSuper, name, err)
		}
	}

	if s.VMajor != 4 || s.VMinor != 0 {
		return nil, ErrInvalidVersion
	}
	if s.BlockSize < minBlockSize || s.BlockSize > maxBlockSize || s.BlockSize&(s.BlockSize-1) != 0 {
		return nil, fmt.Errorf("%w: block size %d is not a power of two in [%d,%d]", ErrInvalidSuper, s.BlockSize, minBlockSize, maxBlockSize)
	}
	if uint32(1)<<s.BlockLog != s.BlockSize {
		return nil, fmt.Errorf("%w: block_log %d does not match block_size %d", ErrInvalidSuper, s.BlockLog, s.BlockSize)
	}
	// invariant 1: inode-start < dir-start < frag-start <= export-start
	if !(s.InodeTableStart < s.DirTableStart && s.DirTableStart < s.FragTableStart && s.FragTableStart <= s.ExportTableStart) {
		return nil, fmt.Errorf("%w: table anchors out of order", ErrInvalidSuper)
	}

	return s, nil
}
