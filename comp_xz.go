package squashfs

import (
	"bytes"
	"io"

	"github.com/ulikunitz/xz"
)

func init() {
	RegisterDecompressor(XZ, func(src []byte, maxLen int) ([]byte, error) {
		r, err := xz.NewReader(bytes.NewReader(src))
		if err != nil {
			return nil, err
		}
		return readAtMost(r, maxLen)
	})
}

// readAtMost reads at most maxLen+1 bytes from r: an over-long stream comes
// back one byte longer than maxLen for Compression.decompress to reject,
// and a corrupt/hostile stored-length field can't be used to force an
// unbounded allocation.
func readAtMost(r io.Reader, maxLen int) ([]byte, error) {
	buf := make([]byte, maxLen+1)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return buf[:n], nil
}
