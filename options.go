package squashfs

import "github.com/sirupsen/logrus"

// defaultSymlinkDepth bounds symlink resolution against loops.
const defaultSymlinkDepth = 40

// Option configures a Mount at Probe time: no env vars, no config files,
// just functional options.
type Option func(*Mount) error

// WithSymlinkDepth overrides the maximum symlink-resolution recursion depth
// (default 40). Exceeding it returns ErrTooManySymlinks.
func WithSymlinkDepth(depth int) Option {
	return func(m *Mount) error {
		if depth <= 0 {
			return ErrInvalidArgument
		}
		m.symlinkDepth = depth
		return nil
	}
}

// WithLogger attaches a structured logger. Without this option the mount
// logs nowhere.
func WithLogger(log logrus.FieldLogger) Option {
	return func(m *Mount) error {
		m.log = log
		return nil
	}
}

// WithInodeOffset shifts the inode number DirStream.ReadDir reports in
// DirEntry.Ino by offt, letting multiple mounted images share one
// inode-number space (e.g. under a single combined filesystem view).
// Inode.Ino itself keeps the on-disk value.
func WithInodeOffset(offt uint64) Option {
	return func(m *Mount) error {
		m.inoOfft = offt
		return nil
	}
}
