package squashfs

import (
	"fmt"
	"io"
	"os"
)

// BlockDevice is the pluggable block-storage abstraction this package
// reads through: a read(block, nblocks, buf) primitive over a partition
// with a fixed sector size. Firmware-stage callers implement this over
// whatever raw storage primitive they have (eMMC, NOR flash, a ramdisk);
// this package never assumes anything about it beyond the interface
// below.
type BlockDevice interface {
	// ReadBlocks reads nblocks sectors starting at sector index block into
	// buf, which must be at least nblocks*SectorSize() bytes. Returns the
	// number of bytes actually read.
	ReadBlocks(block, nblocks int64, buf []byte) (int, error)

	// SectorSize returns the device's native sector size in bytes. A
	// byte-addressable backing store (e.g. memory-mapped flash) may report 1.
	SectorSize() int64
}

// blockStore is the sector-granular translation layer sitting on top of a
// BlockDevice. It turns a (byteOffset, byteLen) request relative to the
// start of the SquashFS partition into one aligned BlockDevice read.
type blockStore struct {
	dev    BlockDevice
	base   int64 // byte offset of the partition start on dev
	sector int64
}

func newBlockStore(dev BlockDevice, base int64) *blockStore {
	sector := dev.SectorSize()
	if sector <= 0 {
		sector = 1
	}
	return &blockStore{dev: dev, base: base, sector: sector}
}

// ReadAt implements io.ReaderAt so the rest of the package (superblock,
// metadata decoder, fragment/inode readers) can treat a mounted image as a
// plain byte-addressable stream: the sector arithmetic happens here, once.
func (b *blockStore) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	abs := b.base + off
	sector := b.sector
	startBlock := abs / sector
	intra := abs % sector
	total := intra + int64(len(p))
	nblocks := (total + sector - 1) / sector

	buf := make([]byte, nblocks*sector)
	n, err := b.dev.ReadBlocks(startBlock, nblocks, buf)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrIO, err)
	}
	if int64(n) < total {
		return 0, fmt.Errorf("%w: short read (got %d bytes, needed %d)", ErrIO, n, total)
	}
	return copy(p, buf[intra:total]), nil
}

// FileDevice adapts an *os.File (or any io.ReaderAt) into a BlockDevice,
// for CLI use and for tests run against a squashfs image stored as a
// regular file. Grounded on keeword-go-diskfs/disk.Disk's Backend split,
// but kept to the single method this package actually needs.
type FileDevice struct {
	r          io.ReaderAt
	sectorSize int64
}

// NewFileDevice wraps r as a BlockDevice with the given sector size. A
// sectorSize of 0 defaults to 512, the common value for disk images.
func NewFileDevice(r io.ReaderAt, sectorSize int64) *FileDevice {
	if sectorSize <= 0 {
		sectorSize = 512
	}
	return &FileDevice{r: r, sectorSize: sectorSize}
}

// OpenFileDevice opens path and wraps it as a BlockDevice.
func OpenFileDevice(path string) (*FileDevice, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return NewFileDevice(f, 512), f, nil
}

func (d *FileDevice) ReadBlocks(block, nblocks int64, buf []byte) (int, error) {
	n, err := d.r.ReadAt(buf[:nblocks*d.sectorSize], block*d.sectorSize)
	if err != nil && err != io.EOF {
		return n, err
	}
	return n, nil
}

func (d *FileDevice) SectorSize() int64 { return d.sectorSize }

// MemDevice is an in-memory BlockDevice backed by a byte slice, used for
// unit tests and for any byte-addressable backing store used in place of
// a real block device.
type MemDevice struct {
	data       []byte
	sectorSize int64
}

// NewMemDevice wraps data as a BlockDevice. A sectorSize of 0 means truly
// byte-addressable (sector size 1).
func NewMemDevice(data []byte, sectorSize int64) *MemDevice {
	if sectorSize <= 0 {
		sectorSize = 1
	}
	return &MemDevice{data: data, sectorSize: sectorSize}
}

func (d *MemDevice) ReadBlocks(block, nblocks int64, buf []byte) (int, error) {
	start := block * d.sectorSize
	length := nblocks * d.sectorSize
	if start >= int64(len(d.data)) {
		return 0, io.EOF
	}
	end := start + length
	if end > int64(len(d.data)) {
		end = int64(len(d.data))
	}
	n := copy(buf, d.data[start:end])
	if int64(n) < length {
		return n, io.ErrUnexpectedEOF
	}
	return n, nil
}

func (d *MemDevice) SectorSize() int64 { return d.sectorSize }
