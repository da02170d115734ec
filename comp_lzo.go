package squashfs

// LZO (compression id 3) has no registered decoder: no retrievable Go
// package implements classic LZO1X block decompression. Probe therefore
// rejects an LZO-compressed image with ErrNotSupported, and
// Compression.decompress reports the same error for LZO input.
