package dwarfdb

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ndl/dwarf-idea/internal/fileheader"
)

// minimalFSETable is the smallest valid FSE frequency table: log2Size=4
// (table size 16), with symbol 0 directly claiming all 16 slots (count+1 =
// 17). The fixture below never actually FSE-decompresses anything (every
// block segment sets ignore_fse), but Open always parses the header's
// three frequency tables regardless of what any individual block uses.
var minimalFSETable = []byte{4, 17}

func writeFrequencyTable(buf *bytes.Buffer, table []byte) {
	binary.Write(buf, binary.LittleEndian, uint32(len(table)))
	buf.Write(table)
}

// buildFixture assembles a single-block, single-entry, no-key-map,
// no-extra-data dwarfdb file whose sole entry maps key [5] to the
// degenerate-bit-width coordinate (-90, -180) — the same fixture
// block/block_test.go's TestDecodeCoordDegenerateBitWidths exercises,
// reused here end-to-end through the facade.
func buildFixture(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer

	buf.Write(fileheader.Signature[:])
	binary.Write(&buf, binary.LittleEndian, fileheader.SupportedVersion)
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // key_size
	binary.Write(&buf, binary.LittleEndian, uint16(0)) // extra_data_size
	binary.Write(&buf, binary.LittleEndian, uint32(1)) // num_entries
	binary.Write(&buf, binary.LittleEndian, uint32(1)) // index_size
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // min_entries_per_block
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // max_entries_per_block
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // bounding_box_bits
	binary.Write(&buf, binary.LittleEndian, float32(100.0))
	binary.Write(&buf, binary.LittleEndian, uint16(0)) // key_map_size
	buf.WriteByte(5)                                   // last_key

	writeFrequencyTable(&buf, minimalFSETable) // keys table
	writeFrequencyTable(&buf, minimalFSETable) // coords table

	blockOffset := int64(buf.Len()) + 5 // + one index entry (1-byte key + u32 offset)

	// index: one entry, key=5, pointing at the block below.
	buf.WriteByte(5)
	binary.Write(&buf, binary.LittleEndian, uint32(blockOffset))

	if int64(buf.Len()) != blockOffset {
		t.Fatalf("internal fixture error: buf.Len()=%d, want blockOffset=%d", buf.Len(), blockOffset)
	}

	// keys segment: ignore_fse, 1 raw byte (unused: the lookup below is
	// an exact index match, so the keys segment is never decoded).
	buf.WriteByte(byte(1<<2 | 2))
	buf.WriteByte(0xFF)

	// coords segment: ignore_fse, 8 raw bytes forming the bit-packed
	// bounding box fixture (boundingBoxBits=1; lat/lonMinIndex=0,
	// lat/lonMaxIndex=1, lat_bits=lon_bits=0).
	buf.WriteByte(byte(8<<2 | 2))
	buf.Write([]byte{0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x00, 0x98})

	path := filepath.Join(t.TempDir(), "fixture.dwarfdb")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func TestLookupExactMatch(t *testing.T) {
	path := buildFixture(t)
	db, err := Open(path, Options{ResultCacheCapacity: 8, BlockCacheCapacity: 8, UseMmap: false})
	require.NoError(t, err)
	defer db.Close()

	res, err := db.Lookup([]byte{5})
	require.NoError(t, err)
	require.NotNil(t, res)
	require.EqualValues(t, -90, res.Lat)
	require.EqualValues(t, -180, res.Lon)
}

func TestLookupMissAboveLastKey(t *testing.T) {
	path := buildFixture(t)
	db, err := Open(path, Options{ResultCacheCapacity: 8, BlockCacheCapacity: 8, UseMmap: false})
	require.NoError(t, err)
	defer db.Close()

	res, err := db.Lookup([]byte{200})
	require.NoError(t, err)
	require.Nil(t, res)
}

func TestLookupResultIsCached(t *testing.T) {
	path := buildFixture(t)
	db, err := Open(path, Options{ResultCacheCapacity: 8, BlockCacheCapacity: 8, UseMmap: false})
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Lookup([]byte{5})
	require.NoError(t, err)
	stats := db.Stats()
	require.Equal(t, 1, stats.ResultCacheLen)
}

func TestMaxDistError(t *testing.T) {
	path := buildFixture(t)
	db, err := Open(path, Options{ResultCacheCapacity: 8, BlockCacheCapacity: 8, UseMmap: false})
	require.NoError(t, err)
	defer db.Close()

	got, err := db.MaxDistError()
	require.NoError(t, err)
	require.EqualValues(t, 100.0, got)
}

func TestCloseThenLookupFails(t *testing.T) {
	path := buildFixture(t)
	db, err := Open(path, Options{ResultCacheCapacity: 8, BlockCacheCapacity: 8, UseMmap: false})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = db.Lookup([]byte{5})
	require.ErrorIs(t, err, ErrClosed)
}
