package squashfs

import (
	"bytes"

	"github.com/ulikunitz/xz/lzma"
)

// LZMA (compression id 2) predates XZ becoming the SquashFS default and is
// rarely produced by modern mksquashfs, but ulikunitz/xz ships a standalone
// LZMA reader (already pulled in transitively for XZ support) so there is no
// reason to leave it unimplemented.
func init() {
	RegisterDecompressor(LZMA, func(src []byte, maxLen int) ([]byte, error) {
		r, err := lzma.NewReader(bytes.NewReader(src))
		if err != nil {
			return nil, err
		}
		return readAtMost(r, maxLen)
	})
}
