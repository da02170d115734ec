package squashfs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSquashFlagsString(t *testing.T) {
	cases := []struct {
		flag     SquashFlags
		expected string
	}{
		{UNCOMPRESSED_INODES, "UNCOMPRESSED_INODES"},
		{UNCOMPRESSED_DATA, "UNCOMPRESSED_DATA"},
		{CHECK, "CHECK"},
		{UNCOMPRESSED_FRAGMENTS, "UNCOMPRESSED_FRAGMENTS"},
		{NO_FRAGMENTS, "NO_FRAGMENTS"},
		{ALWAYS_FRAGMENTS, "ALWAYS_FRAGMENTS"},
		{DUPLICATES, "DUPLICATES"},
		{EXPORTABLE, "EXPORTABLE"},
		{UNCOMPRESSED_XATTRS, "UNCOMPRESSED_XATTRS"},
		{NO_XATTRS, "NO_XATTRS"},
		{COMPRESSOR_OPTIONS, "COMPRESSOR_OPTIONS"},
		{UNCOMPRESSED_IDS, "UNCOMPRESSED_IDS"},
		{EXPORTABLE | NO_FRAGMENTS, "NO_FRAGMENTS|EXPORTABLE"},
		{0, ""},
		{1<<15 | 1<<14, ""},
	}

	for _, tc := range cases {
		require.Equal(t, tc.expected, tc.flag.String())
	}
}

func TestSquashFlagsHas(t *testing.T) {
	flags := EXPORTABLE | UNCOMPRESSED_DATA

	require.True(t, flags.Has(EXPORTABLE))
	require.True(t, flags.Has(UNCOMPRESSED_DATA))
	require.False(t, flags.Has(NO_FRAGMENTS))
}
