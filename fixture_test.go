package squashfs

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

// imageBuilder hand-assembles the entirely uncompressed SquashFS byte
// buffer buildFixtureImage returns, covering a small directory tree: a root directory with a regular file,
// an empty file, a symlink, a fragment-resident file and a subdirectory
// holding one more regular file. Every metadata chunk and data block
// carries its "stored uncompressed" flag, so the fixture exercises the
// full read path (superblock, metadata chunks, inode decode, directory
// walk, path resolution, fragment/data-block reconstruction) without
// depending on any of the codec libraries.
type imageBuilder struct {
	order binary.ByteOrder

	data bytes.Buffer // data blocks + fragment blob region, right after the superblock

	inodeBuf bytes.Buffer
	inoOff   map[string]int // name -> byte offset within inodeBuf

	dirBuf    bytes.Buffer
	dirOffset map[string]int // directory name -> byte offset within dirBuf
}

func newImageBuilder() *imageBuilder {
	return &imageBuilder{
		order:     binary.LittleEndian,
		inoOff:    map[string]int{},
		dirOffset: map[string]int{},
	}
}

const fixtureBlockSize = 4096

func (b *imageBuilder) putU16(buf *bytes.Buffer, v uint16) { binary.Write(buf, b.order, v) }
func (b *imageBuilder) putI16(buf *bytes.Buffer, v int16)  { binary.Write(buf, b.order, v) }
func (b *imageBuilder) putU32(buf *bytes.Buffer, v uint32) { binary.Write(buf, b.order, v) }
func (b *imageBuilder) putI32(buf *bytes.Buffer, v int32)  { binary.Write(buf, b.order, v) }
func (b *imageBuilder) putU64(buf *bytes.Buffer, v uint64) { binary.Write(buf, b.order, v) }

// addDataBlock appends content to the data region and returns its absolute
// offset (relative to the start of the image, superblock included) and a
// ready-made block-size entry (uncompressed flag set).
func (b *imageBuilder) addDataBlock(dataStart int64, content []byte) (startOfft uint64, blockEntry uint32) {
	offt := dataStart + int64(b.data.Len())
	b.data.Write(content)
	return uint64(offt), uint32(len(content)) | 0x01000000
}

// addFileInode writes a basic regular file inode (type 2) with a single
// optional full data block followed by an optional fragment tail, and
// records its byte offset in the inode table.
func (b *imageBuilder) addFileInode(name string, ino uint32, size uint64, startBlock uint64, blockEntry uint32, hasBlock bool, fragBlock, fragOfft uint32) {
	b.inoOff[name] = b.inodeBuf.Len()
	b.putU16(&b.inodeBuf, uint16(FileType))
	b.putU16(&b.inodeBuf, 0644)
	b.putU16(&b.inodeBuf, 0)
	b.putU16(&b.inodeBuf, 0)
	b.putI32(&b.inodeBuf, 0)
	b.putU32(&b.inodeBuf, ino)
	b.putU32(&b.inodeBuf, uint32(startBlock))
	b.putU32(&b.inodeBuf, fragBlock)
	b.putU32(&b.inodeBuf, fragOfft)
	b.putU32(&b.inodeBuf, uint32(size))
	if hasBlock {
		b.putU32(&b.inodeBuf, blockEntry)
	}
}

// addSymlinkInode writes a basic symlink inode (type 3).
func (b *imageBuilder) addSymlinkInode(name string, ino uint32, target string) {
	b.inoOff[name] = b.inodeBuf.Len()
	b.putU16(&b.inodeBuf, uint16(SymlinkType))
	b.putU16(&b.inodeBuf, 0777)
	b.putU16(&b.inodeBuf, 0)
	b.putU16(&b.inodeBuf, 0)
	b.putI32(&b.inodeBuf, 0)
	b.putU32(&b.inodeBuf, ino)
	b.putU32(&b.inodeBuf, 0) // nlink
	b.putU32(&b.inodeBuf, uint32(len(target)))
	b.inodeBuf.WriteString(target)
}

// addDirInode writes a basic directory inode (type 1), pointing at dirOffset
// bytes into the single directory-table chunk.
func (b *imageBuilder) addDirInode(name string, ino, parentIno uint32, dirOffset, dirSize int) {
	b.inoOff[name] = b.inodeBuf.Len()
	b.putU16(&b.inodeBuf, uint16(DirType))
	b.putU16(&b.inodeBuf, 0755)
	b.putU16(&b.inodeBuf, 0)
	b.putU16(&b.inodeBuf, 0)
	b.putI32(&b.inodeBuf, 0)
	b.putU32(&b.inodeBuf, ino)
	b.putU32(&b.inodeBuf, 0)               // start_block, chunk 0 of dir table
	b.putU32(&b.inodeBuf, 1)                // nlink
	b.putU16(&b.inodeBuf, uint16(dirSize))
	b.putU16(&b.inodeBuf, uint16(dirOffset))
	b.putU32(&b.inodeBuf, parentIno)
}

// dirEntrySpec is one child of a directory being assembled.
type dirEntrySpec struct {
	name string
	typ  Type
	ref  inodeRef
}

// writeDir encodes a one-header directory listing (header + N entries) into
// dirBuf and records its starting offset under name.
func (b *imageBuilder) writeDir(name string, entries []dirEntrySpec) {
	start := b.dirBuf.Len()
	b.dirOffset[name] = start

	b.putU32(&b.dirBuf, uint32(len(entries)-1))
	b.putU32(&b.dirBuf, 0) // start_block: all inode refs point at dir-table^H^Hinode-table chunk 0
	b.putU32(&b.dirBuf, 0) // base inode number, unused by this reader

	for _, e := range entries {
		b.putU16(&b.dirBuf, uint16(e.ref.Offset()))
		b.putI16(&b.dirBuf, 0) // inode-number delta, unused by this reader
		b.putU16(&b.dirBuf, uint16(e.typ))
		b.putU16(&b.dirBuf, uint16(len(e.name)-1))
		b.dirBuf.WriteString(e.name)
	}
	// trailing pad so dirSize (size+3 convention) never looks like the
	// "<=3 bytes left" end-of-stream sentinel mid-directory
	b.dirBuf.Write([]byte{0, 0, 0})
}

func (b *imageBuilder) ref(name string) inodeRef {
	return inodeRef(uint64(b.inoOff[name]))
}

func buildFixtureImage(t *testing.T) []byte {
	t.Helper()
	b := newImageBuilder()

	const dataStart = int64(96)
	helloContent := []byte("Hello, Squash!\n")
	deepContent := []byte("nested file content\n")
	fragContent := []byte("fragment-resident content\n")

	helloOfft, helloEntry := b.addDataBlock(dataStart, helloContent)
	deepOfft, deepEntry := b.addDataBlock(dataStart, deepContent)
	fragOfftAbs := dataStart + int64(b.data.Len())
	b.data.Write(fragContent)

	// leaf files, written before their containing directories so their
	// inode-table offsets are known when the directory listings are built.
	b.addFileInode("hello.txt", 2, uint64(len(helloContent)), helloOfft, helloEntry, true, 0xffffffff, 0)
	b.addFileInode("empty", 3, 0, 0, 0, false, 0xffffffff, 0)
	b.addSymlinkInode("link", 4, "hello.txt")
	b.addFileInode("deep.txt", 6, uint64(len(deepContent)), deepOfft, deepEntry, true, 0xffffffff, 0)
	b.addFileInode("frag.txt", 7, uint64(len(fragContent)), 0, 0, false, 0, 0)

	// "sub" directory: one entry, deep.txt
	b.writeDir("sub", []dirEntrySpec{
		{name: "deep.txt", typ: FileType, ref: b.ref("deep.txt")},
	})
	b.addDirInode("sub", 5, 1, b.dirOffset["sub"], b.dirBuf.Len()-b.dirOffset["sub"])

	// root directory: every other top-level entry
	rootEntries := []dirEntrySpec{
		{name: "hello.txt", typ: FileType, ref: b.ref("hello.txt")},
		{name: "empty", typ: FileType, ref: b.ref("empty")},
		{name: "link", typ: SymlinkType, ref: b.ref("link")},
		{name: "frag.txt", typ: FileType, ref: b.ref("frag.txt")},
		{name: "sub", typ: DirType, ref: b.ref("sub")},
	}
	b.writeDir("root", rootEntries)
	b.addDirInode("root", 1, 1, b.dirOffset["root"], b.dirBuf.Len()-b.dirOffset["root"])

	// assemble table regions
	dataBytes := b.data.Bytes()
	inodeChunk := uncompressedChunk(b.inodeBuf.Bytes())
	dirChunk := uncompressedChunk(b.dirBuf.Bytes())

	inodeTableStart := dataStart + int64(len(dataBytes))
	dirTableStart := inodeTableStart + int64(len(inodeChunk))
	fragPtrStart := dirTableStart + int64(len(dirChunk))

	var fragEntry bytes.Buffer
	b.putU64(&fragEntry, uint64(fragOfftAbs))
	b.putU32(&fragEntry, uint32(len(fragContent))|0x01000000)
	fragChunk := uncompressedChunk(fragEntry.Bytes())
	fragChunkStart := fragPtrStart + 8

	var fragPtr bytes.Buffer
	b.putU64(&fragPtr, uint64(fragChunkStart))

	// No NFS export table: ".." is resolved syntactically against the
	// walked path, not via a VFS-inode-number lookup, so this fixture never
	// needs one.
	exportTableStart := fragChunkStart + int64(len(fragChunk))
	total := exportTableStart

	var img bytes.Buffer

	b.putU32(&img, 0x73717368) // "hsqs" little-endian
	b.putU32(&img, 7)          // inode count
	b.putI32(&img, 0)          // mod time
	b.putU32(&img, fixtureBlockSize)
	b.putU32(&img, 1) // fragment count
	b.putU16(&img, uint16(GZip))
	b.putU16(&img, 12) // block log (4096 == 1<<12)
	b.putU16(&img, 0)  // flags
	b.putU16(&img, 0)  // id count
	b.putU16(&img, 4)  // vmajor
	b.putU16(&img, 0)  // vminor
	b.putU64(&img, uint64(b.inoOff["root"]))
	b.putU64(&img, uint64(total))
	b.putU64(&img, 0) // id table start
	b.putU64(&img, 0) // xattr id table start
	b.putU64(&img, uint64(inodeTableStart))
	b.putU64(&img, uint64(dirTableStart))
	b.putU64(&img, uint64(fragPtrStart))
	b.putU64(&img, uint64(exportTableStart))

	require.Equal(t, superblockSize, img.Len())

	img.Write(dataBytes)
	img.Write(inodeChunk)
	img.Write(dirChunk)
	img.Write(fragPtr.Bytes())
	img.Write(fragChunk)

	return img.Bytes()
}

func mustMount(t *testing.T) *Mount {
	t.Helper()
	raw := buildFixtureImage(t)
	m, err := Probe(NewMemDevice(raw, 1), 0)
	require.NoError(t, err)
	return m
}

func TestProbeValidatesSuperblock(t *testing.T) {
	m := mustMount(t)
	require.Equal(t, uint32(fixtureBlockSize), m.Superblock().BlockSize)
	require.Equal(t, uint16(4), m.Superblock().VMajor)
}

func TestReadFullFile(t *testing.T) {
	m := mustMount(t)
	buf := make([]byte, 64)
	n, err := m.Read("/hello.txt", buf, 0, int64(len(buf)))
	require.NoError(t, err)
	require.Equal(t, "Hello, Squash!\n", string(buf[:n]))
}

func TestSizeMatchesFullReadLength(t *testing.T) {
	m := mustMount(t)
	size, err := m.Size("/hello.txt")
	require.NoError(t, err)

	buf := make([]byte, size+16)
	n, err := m.Read("/hello.txt", buf, 0, int64(len(buf)))
	require.NoError(t, err)
	require.Equal(t, int(size), n)
}

func TestPartialRead(t *testing.T) {
	m := mustMount(t)
	buf := make([]byte, 5)
	n, err := m.Read("/hello.txt", buf, 7, 5)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "Squas", string(buf[:n]))
}

func TestReadLengthGreaterThanBufferIsInvalidArgument(t *testing.T) {
	m := mustMount(t)
	buf := make([]byte, 4)
	_, err := m.Read("/hello.txt", buf, 0, 10)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestReadDirNoDuplicates(t *testing.T) {
	m := mustMount(t)
	ds, err := m.OpenDir("/")
	require.NoError(t, err)
	defer ds.Close()

	seen := map[string]bool{}
	for {
		ent, err := ds.ReadDir()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		require.False(t, seen[ent.Name], "duplicate entry %s", ent.Name)
		seen[ent.Name] = true
	}
	require.ElementsMatch(t, []string{"hello.txt", "empty", "link", "frag.txt", "sub"}, keysOf(seen))
}

func keysOf(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestSymlinkResolvedTransparently(t *testing.T) {
	m := mustMount(t)
	buf := make([]byte, 64)
	n, err := m.Read("/link", buf, 0, int64(len(buf)))
	require.NoError(t, err)
	require.Equal(t, "Hello, Squash!\n", string(buf[:n]))
}

func TestZeroLengthFile(t *testing.T) {
	m := mustMount(t)
	size, err := m.Size("/empty")
	require.NoError(t, err)
	require.Equal(t, uint64(0), size)

	buf := make([]byte, 1)
	n, err := m.Read("/empty", buf, 0, 0)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestFragmentResidentFile(t *testing.T) {
	m := mustMount(t)
	size, err := m.Size("/frag.txt")
	require.NoError(t, err)

	buf := make([]byte, size)
	n, err := m.Read("/frag.txt", buf, 0, int64(size))
	require.NoError(t, err)
	require.Equal(t, "fragment-resident content\n", string(buf[:n]))
}

func TestSubdirectoryTraversal(t *testing.T) {
	m := mustMount(t)
	buf := make([]byte, 64)
	n, err := m.Read("/sub/deep.txt", buf, 0, int64(len(buf)))
	require.NoError(t, err)
	require.Equal(t, "nested file content\n", string(buf[:n]))
}

func TestDotDotFromSubdirectory(t *testing.T) {
	m := mustMount(t)
	buf := make([]byte, 64)
	n, err := m.Read("/sub/../hello.txt", buf, 0, int64(len(buf)))
	require.NoError(t, err)
	require.Equal(t, "Hello, Squash!\n", string(buf[:n]))
}

func TestNotFound(t *testing.T) {
	m := mustMount(t)
	_, err := m.Size("/does-not-exist")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSizeOfDirectoryIsNotSupported(t *testing.T) {
	m := mustMount(t)
	_, err := m.Size("/sub")
	require.ErrorIs(t, err, ErrNotSupported)
}

func TestInodeOffsetShiftsDirEntryIno(t *testing.T) {
	raw := buildFixtureImage(t)
	m, err := Probe(NewMemDevice(raw, 1), 0, WithInodeOffset(1000))
	require.NoError(t, err)

	ds, err := m.OpenDir("/")
	require.NoError(t, err)
	defer ds.Close()

	ent, err := ds.ReadDir()
	require.NoError(t, err)
	require.Greater(t, ent.Ino, uint64(1000))
}

func TestIoFsAdapter(t *testing.T) {
	m := mustMount(t)
	fsys := m.FS()

	f, err := fsys.Open("hello.txt")
	require.NoError(t, err)
	defer f.Close()

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	require.Equal(t, "Hello, Squash!\n", string(data))
}
