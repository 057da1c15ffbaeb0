package block

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ndl/dwarf-idea/bitio"
)

func TestReadHeaderDecodesFlagsAndLength(t *testing.T) {
	// size = 10 (byte length) << 2 | ignore_fse(bit1) | ignore_zrlt(bit0)
	// = 10<<2 | 0b11 = 43, fits in one varint byte (43 < 0x80).
	buf := []byte{43, 0xAA, 0xAA}
	h, next, err := ReadHeader(buf, 0)
	require.NoError(t, err)
	require.Equal(t, 10, h.ByteLength)
	require.True(t, h.IgnoreZRLT)
	require.True(t, h.IgnoreFSE)
	require.Equal(t, 1, next)
}

func TestDecodeSegmentRawPassthrough(t *testing.T) {
	h := Header{ByteLength: 3, IgnoreFSE: true}
	buf := []byte{1, 2, 3, 4, 5}
	out, next, err := DecodeSegment(buf, 1, h, nil, 0)
	require.NoError(t, err)
	require.Equal(t, []byte{2, 3, 4}, out)
	require.Equal(t, 4, next)
}

func TestDecodeSegmentOutOfBounds(t *testing.T) {
	h := Header{ByteLength: 100}
	_, _, err := DecodeSegment([]byte{1, 2, 3}, 0, h, nil, 0)
	require.Error(t, err)
}

func TestDecodeCoordDegenerateBitWidths(t *testing.T) {
	// boundingBoxBits=1; latMinIndex=0, lonMinIndex=0, latMaxIndex=1,
	// lonMaxIndex=1; latBits=lonBits=0, so the decoded point collapses
	// to the bounding box's min corner exactly.
	buf := []byte{0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x00, 0x98}
	c, err := DecodeCoord(buf, 0, 1)
	require.NoError(t, err)
	require.Equal(t, Coord{Lat: -90, Lon: -180}, c)
}

func TestReadBitsRefillingSpansManyRefills(t *testing.T) {
	// 24 bytes of live data plus an end-mark; reading 150 bits in one call
	// (larger than the 32-bit chunk it reads at a time, and than the
	// combined reads of up to 62 bits it serves in DecodeCoord) used to
	// push bitsConsumed past the
	// 64-bit container and stall subsequent Refill calls with
	// StatusOverflow. It must now span several internal refills cleanly,
	// and the reader must still be usable afterward.
	buf := make([]byte, 25)
	for i := range buf {
		buf[i] = 0xAA
	}
	buf[len(buf)-1] = 0x01
	r, err := bitio.NewReader(buf, 0, len(buf))
	require.NoError(t, err)

	require.NotPanics(t, func() {
		readBitsRefilling(r, 150)
	})
	require.NotPanics(t, func() {
		readBitsRefilling(r, 8)
	})
}

func TestExtraDataSlice(t *testing.T) {
	buf := []byte{0, 1, 2, 3, 4, 5}
	got, err := ExtraData(buf, 1, 2)
	require.NoError(t, err)
	require.Equal(t, []byte{2, 3}, got)
}

func TestExtraDataOutOfBounds(t *testing.T) {
	_, err := ExtraData([]byte{0, 1}, 5, 2)
	require.Error(t, err)
}
