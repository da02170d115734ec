package squashfs

import "github.com/pierrec/lz4/v4"

// SquashFS's LZ4 blocks are raw LZ4 block-format data (not the framed
// format lz4(1) produces), so decoding goes through lz4.UncompressBlock
// rather than a streaming frame reader. Grounded on
// keeword-go-diskfs/go.mod's pierrec/lz4/v4 dependency.
func init() {
	RegisterDecompressor(LZ4, func(src []byte, maxLen int) ([]byte, error) {
		dst := make([]byte, maxLen)
		n, err := lz4.UncompressBlock(src, dst)
		if err != nil {
			return nil, err
		}
		return dst[:n], nil
	})
}
