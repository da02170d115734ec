package squashfs

import "fmt"

// Compression identifies one of the six codecs a SquashFS superblock's
// Comp field may carry. The on-disk meaning of "GZip" is actually a raw
// zlib (RFC1950) stream, which is why comp_zlib.go imports a zlib package
// rather than a gzip one.
type Compression uint16

const (
	GZip Compression = 1
	LZMA Compression = 2
	LZO  Compression = 3
	XZ   Compression = 4
	LZ4  Compression = 5
	ZSTD Compression = 6
)

func (c Compression) String() string {
	switch c {
	case GZip:
		return "GZip"
	case LZMA:
		return "LZMA"
	case LZO:
		return "LZO"
	case XZ:
		return "XZ"
	case LZ4:
		return "LZ4"
	case ZSTD:
		return "ZSTD"
	}
	return fmt.Sprintf("Compression(%d)", uint16(c))
}

// decompressFunc decodes one fully-buffered compressed unit (a metadata
// chunk or a data/fragment block) and returns the decoded bytes. maxLen
// bounds the decoded size the caller is willing to accept (8192 for
// metadata chunks, the image's block size for data/fragment blocks).
// Implementations must not silently truncate to maxLen: they either fail
// or return more than maxLen bytes, which Compression.decompress then
// rejects with ErrTooLarge, so corrupted length fields show up as errors
// instead of silent data loss.
type decompressFunc func(src []byte, maxLen int) ([]byte, error)

var decompressors = map[Compression]decompressFunc{}

// RegisterDecompressor installs the decoder used for compression id. Codec
// files (comp_zlib.go, comp_xz.go, ...) call this from an init() func.
func RegisterDecompressor(id Compression, fn decompressFunc) {
	decompressors[id] = fn
}

func (c Compression) decompress(src []byte, maxLen int) ([]byte, error) {
	fn, ok := decompressors[c]
	if !ok {
		return nil, fmt.Errorf("%w: compression %s has no registered decoder", ErrNotSupported, c)
	}
	out, err := fn(src, maxLen)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", c, err)
	}
	if len(out) > maxLen {
		return nil, fmt.Errorf("%w: decoded %d bytes, expected at most %d", ErrTooLarge, len(out), maxLen)
	}
	return out, nil
}
