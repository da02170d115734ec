package squashfs

import "github.com/klauspost/compress/zstd"

var zstdDecoder, _ = zstd.NewReader(nil)

func init() {
	RegisterDecompressor(ZSTD, func(src []byte, maxLen int) ([]byte, error) {
		out, err := zstdDecoder.DecodeAll(src, make([]byte, 0, maxLen))
		if err != nil {
			return nil, err
		}
		return out, nil
	})
}
