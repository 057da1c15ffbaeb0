// Package block decodes a single block's three logical segments (keys,
// coords, and optional extra-data) from their on-disk bit-packed form:
// a varint segment header, an optional FSE decompress, and the ZRLT/SBRT
// rank/BWTS inverse-transform chain (Component E, composing B, C, D).
package block

import (
	"fmt"

	"github.com/ndl/dwarf-idea/bitio"
	"github.com/ndl/dwarf-idea/fse"
	"github.com/ndl/dwarf-idea/transform"
	"github.com/ndl/dwarf-idea/varint"
)

// kCoordSpecBits is the fixed width of the lat_bits/lon_bits fields
// stored per block, per spec §4.8.
const kCoordSpecBits = 5

// Header is a decoded segment header: the low two bits of the size
// varint are flags, the remaining bits are the segment's raw byte
// length on disk.
type Header struct {
	ByteLength int
	IgnoreZRLT bool
	IgnoreFSE  bool
}

// ReadHeader decodes a segment header varint at buf[pos] and returns it
// along with the offset of the first payload byte.
func ReadHeader(buf []byte, pos int) (Header, int, error) {
	size, n, err := varint.Decode(buf[pos:])
	if err != nil {
		return Header{}, 0, fmt.Errorf("block: segment header: %w", err)
	}
	h := Header{
		IgnoreZRLT: size&1 != 0,
		IgnoreFSE:  size&2 != 0,
		ByteLength: int(size >> 2),
	}
	return h, pos + n, nil
}

// DecodeSegment decodes one segment's payload starting at buf[pos]
// (immediately after its header). It returns the fully-decoded bytes and
// the offset of the byte immediately following the segment's raw
// on-disk payload — which is always pos+header.ByteLength regardless of
// how much of that payload FSE actually consumed internally, since the
// raw segment size, not the decoded size, sets the stride to the next
// segment.
func DecodeSegment(buf []byte, pos int, h Header, table *fse.Table, outputLimit int) (decoded []byte, next int, err error) {
	if h.ByteLength < 0 || pos+h.ByteLength > len(buf) {
		return nil, 0, fmt.Errorf("block: segment length %d out of bounds at offset %d", h.ByteLength, pos)
	}
	payload := buf[pos : pos+h.ByteLength]
	next = pos + h.ByteLength

	if h.IgnoreFSE {
		out := make([]byte, len(payload))
		copy(out, payload)
		return out, next, nil
	}

	fseOut, err := fse.Decompress(table, payload, outputLimit)
	if err != nil {
		return nil, 0, fmt.Errorf("block: fse decompress: %w", err)
	}

	zrltOut := fseOut
	if !h.IgnoreZRLT {
		zrltOut, err = transform.InverseZRLT(fseOut)
		if err != nil {
			return nil, 0, fmt.Errorf("block: inverse zrlt: %w", err)
		}
	}

	sbrtOut := transform.InverseSBRT(zrltOut)
	decoded = transform.InverseBWTS(sbrtOut)
	return decoded, next, nil
}

// Coord is a decoded geographic coordinate.
type Coord struct {
	Lat float32
	Lon float32
}

// DecodeCoord reads the coordinate at blockKeyIndex out of a decoded
// coords segment, per spec §4.8: a per-block bounding box (four
// boundingBoxBits-wide grid indices), a per-entry bit width
// (lat_bits, lon_bits), then one coords_bits-wide packed (lat_idx,
// lon_idx) per entry, indexed by skipping blockKeyIndex entries.
func DecodeCoord(coordsBuf []byte, blockKeyIndex int, boundingBoxBits int) (Coord, error) {
	r, err := bitio.NewReader(coordsBuf, 0, len(coordsBuf))
	if err != nil {
		return Coord{}, fmt.Errorf("block: coords bit reader: %w", err)
	}

	latMinIndex := readBitsRefilling(r, boundingBoxBits)
	lonMinIndex := readBitsRefilling(r, boundingBoxBits)
	latMaxIndex := readBitsRefilling(r, boundingBoxBits)
	lonMaxIndex := readBitsRefilling(r, boundingBoxBits)

	latBits := int(readBitsRefilling(r, kCoordSpecBits))
	lonBits := int(readBitsRefilling(r, kCoordSpecBits))
	coordsBits := latBits + lonBits

	skipBits := blockKeyIndex * coordsBits
	readBitsRefilling(r, skipBits)

	combined := readBitsRefilling(r, coordsBits)
	latIdx := combined & ((uint64(1) << uint(latBits)) - 1)
	lonIdx := (combined >> uint(latBits)) & ((uint64(1) << uint(lonBits)) - 1)

	gridMax := (uint64(1) << uint(boundingBoxBits)) - 1
	latStep := 180.0 / float64(gridMax)
	lonStep := 360.0 / float64(gridMax)

	minLat := float64(latMinIndex)*latStep - 90
	minLon := float64(lonMinIndex)*lonStep - 180
	maxLat := float64(latMaxIndex)*latStep - 90
	maxLon := float64(lonMaxIndex)*lonStep - 180

	latDenom := float64((uint64(1) << uint(latBits)) - 1)
	lonDenom := float64((uint64(1) << uint(lonBits)) - 1)

	lat := minLat
	if latDenom > 0 {
		lat = minLat + (maxLat-minLat)*float64(latIdx)/latDenom
	}
	lon := minLon
	if lonDenom > 0 {
		lon = minLon + (maxLon-minLon)*float64(lonIdx)/lonDenom
	}

	return Coord{Lat: float32(lat), Lon: float32(lon)}, nil
}

// maxRefillChunkBits is the largest single Read safe to issue right after
// a Refill: Refill only clears bitsConsumed down to a multiple of 8, so up
// to 7 stale bits can remain in the container, and 7+maxRefillChunkBits
// must stay under the 64-bit container width.
const maxRefillChunkBits = 32

// readBitsRefilling reads n bits (n >= 0, unbounded) from r a chunk at a
// time, refilling the container whenever too few bits remain buffered to
// satisfy the next chunk. Chunking at maxRefillChunkBits keeps every
// individual Read call well clear of the container's 64-bit width, unlike
// a single Read(n) for n close to 64 which could push bitsConsumed past
// it and stall Refill.
func readBitsRefilling(r *bitio.Reader, n int) uint64 {
	var v uint64
	for n > 0 {
		chunk := n
		if chunk > maxRefillChunkBits {
			chunk = maxRefillChunkBits
		}
		if int(r.BitsConsumed())+chunk > 64 {
			r.Refill()
		}
		v = v<<uint(chunk) | r.Read(chunk)
		n -= chunk
	}
	return v
}

// ExtraData slices the fixed-width extra-data record for blockKeyIndex
// out of a decoded extra-data segment.
func ExtraData(buf []byte, blockKeyIndex int, extraDataSize int) ([]byte, error) {
	start := blockKeyIndex * extraDataSize
	end := start + extraDataSize
	if start < 0 || end > len(buf) {
		return nil, fmt.Errorf("block: extra-data index %d out of bounds", blockKeyIndex)
	}
	return buf[start:end], nil
}
