package squashfs

import "errors"

// Package-specific error variables that can be used with errors.Is() for error handling.
// Each of them falls into one of the error kinds a compliant reader must
// report (invalid-argument, out-of-memory, not-found, not-a-directory,
// not-supported, io-error and loop-detected); Kind gives the mapping.
var (
	// ErrInvalidFile is returned when the file format is not recognized as SquashFS
	ErrInvalidFile = errors.New("invalid file, squashfs signature not found")

	// ErrInvalidSuper is returned when the superblock data is corrupted or invalid
	ErrInvalidSuper = errors.New("invalid squashfs superblock")

	// ErrInvalidVersion is returned when the SquashFS version is not 4.0
	// This library only supports SquashFS 4.0 format
	ErrInvalidVersion = errors.New("invalid file version, expected squashfs 4.0")

	// ErrInvalidArgument covers a bad fragment index and a requested read
	// length larger than the caller's buffer. A read length that runs past
	// the end of the file is not an error: Mount.Read returns a short count.
	// Malformed table anchors are reported as ErrInvalidSuper, which Kind
	// also classifies as KindInvalidArgument.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrTooLarge stands in for the "out-of-memory" error kind: it is
	// returned instead of allocating a buffer whose size is implied by
	// untrusted on-disk data and exceeds a sane bound (e.g. a decompressed
	// metadata chunk over 8KiB, or a symlink target over 4KiB).
	ErrTooLarge = errors.New("refusing to allocate buffer implied by on-disk size")

	// ErrNotFound is returned when a path component is missing from a directory
	ErrNotFound = errors.New("path not found")

	// ErrNotDirectory is returned when attempting to perform directory operations on a non-directory
	ErrNotDirectory = errors.New("not a directory")

	// ErrNotSupported is returned for an unknown compression kind, or a
	// read/open of an inode type that carries no byte stream (device, fifo,
	// socket).
	ErrNotSupported = errors.New("not supported")

	// ErrIO is returned when the backing store short-reads.
	ErrIO = errors.New("backing store i/o error")

	// ErrTooManySymlinks is returned when symlink resolution exceeds the maximum depth.
	// This prevents infinite loops in symlink resolution.
	ErrTooManySymlinks = errors.New("too many levels of symbolic links")
)

// ErrorKind classifies an error into one of the seven kinds a caller of the
// public API needs to branch on.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindInvalidArgument
	KindOutOfMemory
	KindNotFound
	KindNotDirectory
	KindNotSupported
	KindIO
	KindLoopDetected
)

// Kind classifies err into one of the ErrorKind buckets using errors.Is, so
// wrapped errors (fmt.Errorf("...: %w", err)) are still recognized.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrInvalidSuper), errors.Is(err, ErrInvalidFile), errors.Is(err, ErrInvalidVersion):
		return KindInvalidArgument
	case errors.Is(err, ErrTooLarge):
		return KindOutOfMemory
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrNotDirectory):
		return KindNotDirectory
	case errors.Is(err, ErrNotSupported):
		return KindNotSupported
	case errors.Is(err, ErrIO):
		return KindIO
	case errors.Is(err, ErrTooManySymlinks):
		return KindLoopDetected
	default:
		return KindUnknown
	}
}
