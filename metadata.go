package squashfs

import (
	"encoding/binary"
	"fmt"
	"io"
)

// metadataMaxChunk is the decompressed-size ceiling for any single metadata
// chunk.
const metadataMaxChunk = 8192

// chunkHeaderSize is the size of the 16-bit length/flag prefix in front of
// every metadata chunk.
const chunkHeaderSize = 2

// readChunkHeader decodes the 16-bit header at buf[0:2]: bit 15 set means
// the payload is stored uncompressed; the low 15 bits give its stored
// length.
func readChunkHeader(order binary.ByteOrder, buf []byte) (compressed bool, storedLen int, err error) {
	if len(buf) < chunkHeaderSize {
		return false, 0, fmt.Errorf("%w: truncated metadata chunk header", ErrIO)
	}
	raw := order.Uint16(buf)
	uncompressed := raw&0x8000 != 0
	return !uncompressed, int(raw & 0x7fff), nil
}

// decodeChunk decodes the single metadata chunk at the start of buf (header
// + stored payload), returning the decompressed bytes and the number of
// source bytes consumed (header included). It never reads past len(buf).
func decodeChunk(sb *Superblock, buf []byte) (decoded []byte, consumed int, err error) {
	compressed, storedLen, err := readChunkHeader(sb.order, buf)
	if err != nil {
		return nil, 0, err
	}
	consumed = chunkHeaderSize + storedLen
	if consumed > len(buf) {
		return nil, 0, fmt.Errorf("%w: metadata chunk of %d bytes exceeds available %d", ErrIO, consumed, len(buf))
	}
	payload := buf[chunkHeaderSize:consumed]

	if !compressed {
		if storedLen > metadataMaxChunk {
			return nil, 0, fmt.Errorf("%w: uncompressed chunk of %d bytes exceeds %d", ErrTooLarge, storedLen, metadataMaxChunk)
		}
		out := make([]byte, storedLen)
		copy(out, payload)
		return out, consumed, nil
	}

	out, err := sb.Comp.decompress(payload, metadataMaxChunk)
	if err != nil {
		return nil, 0, err
	}
	return out, consumed, nil
}

// metadataChunkReader decodes a single metadata chunk directly from the
// backing store, for a caller that only needs one fixed-size entry known
// in advance to live entirely inside it (a fragment table row), rather
// than materializing an entire table up front.
type metadataChunkReader struct {
	sb   *Superblock
	r    io.ReaderAt
	offt int64
	buf  []byte
}

// newMetadataChunkReader positions a reader at the metadata chunk starting
// at absolute byte offset base, discarding the first skip decoded bytes
// (the byte offset of the wanted entry within the decoded chunk).
func newMetadataChunkReader(sb *Superblock, r io.ReaderAt, base int64, skip int) (*metadataChunkReader, error) {
	cr := &metadataChunkReader{sb: sb, r: r, offt: base}
	if err := cr.fill(); err != nil {
		return nil, err
	}
	if skip > 0 {
		if skip > len(cr.buf) {
			return nil, fmt.Errorf("%w: intra-chunk offset %d beyond chunk of %d bytes", ErrInvalidArgument, skip, len(cr.buf))
		}
		cr.buf = cr.buf[skip:]
	}
	return cr, nil
}

func (cr *metadataChunkReader) fill() error {
	hdr := make([]byte, chunkHeaderSize)
	if _, err := cr.r.ReadAt(hdr, cr.offt); err != nil {
		return fmt.Errorf("%w: %s", ErrIO, err)
	}
	compressed, storedLen, err := readChunkHeader(cr.sb.order, hdr)
	if err != nil {
		return err
	}
	payload := make([]byte, storedLen)
	if storedLen > 0 {
		if _, err := cr.r.ReadAt(payload, cr.offt+chunkHeaderSize); err != nil {
			return fmt.Errorf("%w: %s", ErrIO, err)
		}
	}
	if !compressed {
		cr.buf = payload
		return nil
	}
	out, err := cr.sb.Comp.decompress(payload, metadataMaxChunk)
	if err != nil {
		return err
	}
	cr.buf = out
	return nil
}

// Read implements io.Reader over the single chunk this reader was
// positioned at. It does not refill across a chunk boundary: every caller
// reads a fixed-size entry (a fragment table row) known in advance never
// to straddle one, out of a table whose entries are laid out chunk by
// chunk for exactly that reason.
func (cr *metadataChunkReader) Read(p []byte) (int, error) {
	if len(cr.buf) == 0 {
		return 0, io.EOF
	}
	n := copy(p, cr.buf)
	cr.buf = cr.buf[n:]
	return n, nil
}

// chunkPos records, for one decoded metadata chunk within a fully
// materialized table, the source-byte offset (relative to the table's
// anchor) where the chunk begins and the decoded-byte offset where its
// output begins in the assembled buffer. This position list lets
// locate.go map an inode reference straight to the chunk that contains it
// instead of scanning.
type chunkPos struct {
	srcOffset int64
	decOffset int64
}

// loadTable fully materializes the metadata-chunk chain covering
// [start, end) of the backing store into one contiguous decoded buffer: a
// single backing-store read for the whole range, then sequential chunk
// decoding. end is the next table's anchor (tables are packed
// back-to-back). Every chunk in the range is decoded; a chunk that decodes
// to fewer than 8192 bytes is accepted wherever it sits, and its position
// entry records where its output actually starts.
func loadTable(sb *Superblock, store io.ReaderAt, start, end int64) (data []byte, positions []chunkPos, err error) {
	if end < start {
		return nil, nil, fmt.Errorf("%w: table range end %d before start %d", ErrInvalidArgument, end, start)
	}
	raw := make([]byte, end-start)
	if len(raw) > 0 {
		if _, err := store.ReadAt(raw, start); err != nil {
			return nil, nil, fmt.Errorf("%w: %s", ErrIO, err)
		}
	}

	var out []byte
	var src int64
	for src < int64(len(raw)) {
		decoded, consumed, err := decodeChunk(sb, raw[src:])
		if err != nil {
			return nil, nil, err
		}
		positions = append(positions, chunkPos{srcOffset: src, decOffset: int64(len(out))})
		out = append(out, decoded...)
		src += int64(consumed)
	}
	return out, positions, nil
}
