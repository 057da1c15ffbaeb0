package transform

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// encodeZRLT is the forward transform, used only to build test fixtures.
func encodeZRLT(data []byte) []byte {
	var out []byte
	i := 0
	for i < len(data) {
		if data[i] != 0 {
			out = append(out, data[i])
			i++
			continue
		}
		run := 0
		for i < len(data) && data[i] == 0 {
			run++
			i++
		}
		out = append(out, 0)
		out = appendVarint(out, uint64(run))
	}
	return out
}

func appendVarint(out []byte, v uint64) []byte {
	for v >= 0x80 {
		out = append(out, byte(v)|0x80)
		v >>= 7
	}
	return append(out, byte(v))
}

func TestInverseZRLTRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		{1, 2, 3},
		{0, 0, 0, 5},
		{1, 0, 0, 0, 0, 0, 0, 0, 0, 2},
	}
	for _, c := range cases {
		enc := encodeZRLT(c)
		dec, err := InverseZRLT(enc)
		require.NoError(t, err)
		if len(dec) == 0 && len(c) == 0 {
			continue
		}
		require.Equal(t, c, dec)
	}
}

// encodeSBRT is the forward move-to-front-family encoder, mirroring
// InverseSBRT's table management so the two round-trip.
func encodeSBRT(data []byte) []byte {
	var table [256]byte
	for i := range table {
		table[i] = byte(i)
	}
	out := make([]byte, len(data))
	for i, sym := range data {
		rank := byte(0)
		for table[rank] != sym {
			rank++
		}
		copy(table[1:int(rank)+1], table[0:rank])
		table[0] = sym
		out[i] = rank
	}
	return out
}

func TestInverseSBRTRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		{5, 5, 5, 5},
		{1, 2, 3, 2, 1, 1, 1, 4},
		{255, 0, 128, 64, 0, 255},
	}
	for _, c := range cases {
		enc := encodeSBRT(c)
		dec := InverseSBRT(enc)
		require.Equal(t, c, dec)
	}
}

func TestInverseBWTSIdentityOnConstantRuns(t *testing.T) {
	// A constant-symbol string is a fixed point of BWTS: every rotation is
	// identical, so the transform (and its inverse) is the identity.
	in := []byte("aaaaaaaa")
	out := InverseBWTS(in)
	require.Equal(t, in, out)
}

func TestInverseBWTSEmpty(t *testing.T) {
	require.Nil(t, InverseBWTS(nil))
}
