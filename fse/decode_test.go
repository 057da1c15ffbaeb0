package fse

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecompressSingleSymbolTable(t *testing.T) {
	// A table where every state maps to the same symbol decodes to a run
	// of that symbol regardless of the bit content, since symbol lookup
	// never varies; this exercises the state machine and refill/tail
	// logic without needing a real encoder fixture.
	var counts [256]int32
	counts['Z'] = 16
	tbl, err := buildTable(counts, 4)
	require.NoError(t, err)

	src := []byte{0xAA, 0xBB, 0xCC, 0x01}
	out, err := Decompress(tbl, src, 6)
	require.NoError(t, err)
	require.NotEmpty(t, out)
	for i, b := range out {
		require.Equalf(t, byte('Z'), b, "out[%d]", i)
	}
}

func TestDecompressZeroLimit(t *testing.T) {
	var counts [256]int32
	counts['Z'] = 16
	tbl, _ := buildTable(counts, 4)
	out, err := Decompress(tbl, []byte{0x01}, 0)
	require.NoError(t, err)
	require.Nil(t, out)
}
