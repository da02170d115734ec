package squashfs

import (
	"bytes"

	"github.com/klauspost/compress/zlib"
)

// SquashFS's "gzip" compression id is, on disk, a raw zlib (RFC1950) stream
// - not the gzip container format - so this decodes with klauspost's zlib
// package (already a teacher go.mod dependency via github.com/klauspost/compress).
func init() {
	RegisterDecompressor(GZip, func(src []byte, maxLen int) ([]byte, error) {
		r, err := zlib.NewReader(bytes.NewReader(src))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return readAtMost(r, maxLen)
	})
}
