package squashfs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"io/fs"
)

// Inode is a decoded SquashFS inode: the fixed common header plus whichever
// type-specific fields its Type variant carries. It carries no
// refcnt/AddRef/DelRef bookkeeping -- that machinery exists to pin inodes
// across a kernel filesystem bridge's async callbacks, which this reader,
// with no such dispatch layer, has no use for.
type Inode struct {
	m *Mount

	Type    Type
	Perm    uint16
	UidIdx  uint16
	GidIdx  uint16
	ModTime int32
	Ino     uint32

	StartBlock uint64
	NLink      uint32
	Size       uint64 // meaning depends on Type; see decodeInode
	Offset     uint32
	ParentIno  uint32
	SymTarget  []byte
	IdxCount   uint16
	XattrIdx   uint32
	Sparse     uint64

	FragBlock uint32
	FragOfft  uint32

	Blocks     []uint32
	BlocksOfft []uint64
}

// maxSymlinkTarget bounds a symlink target's length against the
// out-of-memory error kind: nothing sane stores a multi-kilobyte path.
const maxSymlinkTarget = 4096

// decodeInode parses one inode record from the front of buf, returning the
// decoded inode and the number of bytes consumed. Handles XSymlinkType
// (type 10) in addition to the plain symlink type, since an extended
// symlink inode carries an extra xattr index field after its target.
func decodeInode(sb *Superblock, buf []byte) (*Inode, int, error) {
	r := bytes.NewReader(buf)
	ino := &Inode{}

	var typ uint16
	for _, f := range []interface{}{&typ, &ino.Perm, &ino.UidIdx, &ino.GidIdx, &ino.ModTime, &ino.Ino} {
		if err := binary.Read(r, sb.order, f); err != nil {
			return nil, 0, fmt.Errorf("%w: reading inode header: %s", ErrIO, err)
		}
	}
	ino.Type = Type(typ)

	switch ino.Type {
	case DirType:
		var u32 uint32
		var u16 uint16
		if err := binary.Read(r, sb.order, &u32); err != nil {
			return nil, 0, err
		}
		ino.StartBlock = uint64(u32)
		if err := binary.Read(r, sb.order, &ino.NLink); err != nil {
			return nil, 0, err
		}
		if err := binary.Read(r, sb.order, &u16); err != nil {
			return nil, 0, err
		}
		ino.Size = uint64(u16)
		if err := binary.Read(r, sb.order, &u16); err != nil {
			return nil, 0, err
		}
		ino.Offset = uint32(u16)
		if err := binary.Read(r, sb.order, &ino.ParentIno); err != nil {
			return nil, 0, err
		}

	case XDirType:
		var u32 uint32
		var u16 uint16
		if err := binary.Read(r, sb.order, &ino.NLink); err != nil {
			return nil, 0, err
		}
		if err := binary.Read(r, sb.order, &u32); err != nil {
			return nil, 0, err
		}
		ino.Size = uint64(u32)
		if err := binary.Read(r, sb.order, &u32); err != nil {
			return nil, 0, err
		}
		ino.StartBlock = uint64(u32)
		if err := binary.Read(r, sb.order, &ino.ParentIno); err != nil {
			return nil, 0, err
		}
		if err := binary.Read(r, sb.order, &ino.IdxCount); err != nil {
			return nil, 0, err
		}
		if err := binary.Read(r, sb.order, &u16); err != nil {
			return nil, 0, err
		}
		ino.Offset = uint32(u16)
		if err := binary.Read(r, sb.order, &ino.XattrIdx); err != nil {
			return nil, 0, err
		}

	case FileType:
		var u32 uint32
		if err := binary.Read(r, sb.order, &u32); err != nil {
			return nil, 0, err
		}
		ino.StartBlock = uint64(u32)
		if err := binary.Read(r, sb.order, &ino.FragBlock); err != nil {
			return nil, 0, err
		}
		if err := binary.Read(r, sb.order, &ino.FragOfft); err != nil {
			return nil, 0, err
		}
		if err := binary.Read(r, sb.order, &u32); err != nil {
			return nil, 0, err
		}
		ino.Size = uint64(u32)
		if err := readBlockList(r, sb, ino); err != nil {
			return nil, 0, err
		}

	case XFileType:
		if err := binary.Read(r, sb.order, &ino.StartBlock); err != nil {
			return nil, 0, err
		}
		if err := binary.Read(r, sb.order, &ino.Size); err != nil {
			return nil, 0, err
		}
		if err := binary.Read(r, sb.order, &ino.Sparse); err != nil {
			return nil, 0, err
		}
		if err := binary.Read(r, sb.order, &ino.NLink); err != nil {
			return nil, 0, err
		}
		if err := binary.Read(r, sb.order, &ino.FragBlock); err != nil {
			return nil, 0, err
		}
		if err := binary.Read(r, sb.order, &ino.FragOfft); err != nil {
			return nil, 0, err
		}
		if err := binary.Read(r, sb.order, &ino.XattrIdx); err != nil {
			return nil, 0, err
		}
		if err := readBlockList(r, sb, ino); err != nil {
			return nil, 0, err
		}

	case SymlinkType, XSymlinkType:
		if err := binary.Read(r, sb.order, &ino.NLink); err != nil {
			return nil, 0, err
		}
		var targetLen uint32
		if err := binary.Read(r, sb.order, &targetLen); err != nil {
			return nil, 0, err
		}
		if targetLen > maxSymlinkTarget {
			return nil, 0, fmt.Errorf("%w: symlink target of %d bytes", ErrTooLarge, targetLen)
		}
		ino.Size = uint64(targetLen)
		buf := make([]byte, targetLen)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, 0, fmt.Errorf("%w: reading symlink target: %s", ErrIO, err)
		}
		ino.SymTarget = buf
		if ino.Type == XSymlinkType {
			if err := binary.Read(r, sb.order, &ino.XattrIdx); err != nil {
				return nil, 0, err
			}
		}

	case BlockDevType, CharDevType, FifoType, SocketType:
		if err := binary.Read(r, sb.order, &ino.NLink); err != nil {
			return nil, 0, err
		}

	case XBlockDevType, XCharDevType, XFifoType, XSocketType:
		if err := binary.Read(r, sb.order, &ino.NLink); err != nil {
			return nil, 0, err
		}
		if err := binary.Read(r, sb.order, &ino.XattrIdx); err != nil {
			return nil, 0, err
		}

	default:
		return nil, 0, fmt.Errorf("%w: unknown inode type %d", ErrInvalidArgument, ino.Type)
	}

	return ino, len(buf) - r.Len(), nil
}

// readBlockList reads the data-block-size array that follows a regular
// file inode's fixed fields, estimating its length from Size and
// BlockSize: one entry per full block, plus one more if the file has a
// trailing partial block not stored as a fragment.
func readBlockList(r *bytes.Reader, sb *Superblock, ino *Inode) error {
	blocks := int(ino.Size / uint64(sb.BlockSize))
	if ino.FragBlock == 0xffffffff && ino.Size%uint64(sb.BlockSize) != 0 {
		blocks++
	}

	ino.Blocks = make([]uint32, blocks)
	ino.BlocksOfft = make([]uint64, blocks)
	var offt uint64
	for i := 0; i < blocks; i++ {
		var u32 uint32
		if err := binary.Read(r, sb.order, &u32); err != nil {
			return fmt.Errorf("%w: reading data block size %d/%d: %s", ErrIO, i, blocks, err)
		}
		ino.Blocks[i] = u32
		ino.BlocksOfft[i] = offt
		offt += uint64(u32) & 0x00ffffff
	}

	if ino.FragBlock != 0xffffffff {
		// This file's tail lives in the fragment table rather than a full
		// data block; readBlock recognizes this sentinel and routes to
		// readFragmentTail instead of indexing the backing store directly.
		ino.Blocks = append(ino.Blocks, 0xffffffff)
		ino.BlocksOfft = append(ino.BlocksOfft, 0)
	}
	return nil
}

// ReadAt implements io.ReaderAt over a regular file's reconstructed
// content: full data blocks read straight off the backing store, with a
// trailing fragment (if any) pulled from the fragment table via
// fragment.go.
func (i *Inode) ReadAt(p []byte, off int64) (int, error) {
	if i.Type.Basic() != FileType {
		return 0, fmt.Errorf("%w: not a regular file", ErrNotSupported)
	}
	if uint64(off) >= i.Size {
		return 0, io.EOF
	}
	var eof error
	if uint64(off+int64(len(p))) > i.Size {
		p = p[:int64(i.Size)-off]
		eof = io.EOF
	}

	blockSize := int64(i.m.sb.BlockSize)
	block := int(off / blockSize)
	offset := int(off % blockSize)
	n := 0

	for len(p) > 0 {
		buf, err := i.readBlock(block)
		if err != nil {
			return n, err
		}
		if offset > 0 {
			buf = buf[offset:]
		}

		l := copy(p, buf)
		n += l
		p = p[l:]
		if len(p) == 0 {
			return n, eof
		}

		block++
		offset = 0
	}
	return n, eof
}

// readBlock returns the decoded bytes of file data block index, which may
// be a sparse hole (all zero), a normal data block, or (the last entry
// only, marked with the sentinel 0xffffffff) this file's fragment tail.
func (i *Inode) readBlock(block int) ([]byte, error) {
	switch {
	case i.Blocks[block] == 0xffffffff:
		return i.readFragmentTail()
	case i.Blocks[block] == 0:
		return make([]byte, i.m.sb.BlockSize), nil
	default:
		raw := make([]byte, i.Blocks[block]&0x00ffffff)
		if _, err := i.m.store.ReadAt(raw, int64(i.StartBlock+i.BlocksOfft[block])); err != nil {
			return nil, err
		}
		if i.Blocks[block]&0x01000000 != 0 {
			return raw, nil
		}
		return i.m.sb.Comp.decompress(raw, int(i.m.sb.BlockSize))
	}
}

func (i *Inode) readFragmentTail() ([]byte, error) {
	frag, err := i.m.resolveFragment(i.FragBlock)
	if err != nil {
		return nil, err
	}
	raw := make([]byte, frag.rawSize())
	if _, err := i.m.store.ReadAt(raw, int64(frag.start)); err != nil {
		return nil, err
	}
	buf := raw
	if !frag.uncompressed() {
		buf, err = i.m.sb.Comp.decompress(raw, int(i.m.sb.BlockSize))
		if err != nil {
			return nil, err
		}
	}
	if i.FragOfft != 0 {
		buf = buf[i.FragOfft:]
	}
	return buf, nil
}

// Mode returns a fs.FileMode combining this inode's permission bits and
// its SquashFS type.
func (i *Inode) Mode() fs.FileMode {
	return UnixToMode(uint32(i.Perm)) | i.Type.Mode()
}

// IsDir reports whether this inode is a (basic or extended) directory.
func (i *Inode) IsDir() bool {
	return i.Type.IsDir()
}

// Readlink returns this inode's symlink target, if it is one.
func (i *Inode) Readlink() ([]byte, error) {
	if !i.Type.IsSymlink() {
		return nil, fmt.Errorf("%w: not a symlink", ErrNotSupported)
	}
	return i.SymTarget, nil
}
