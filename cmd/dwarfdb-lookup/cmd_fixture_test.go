package main

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ndl/dwarf-idea/dwarfdb"
	"github.com/ndl/dwarf-idea/internal/fileheader"
)

// newFixtureDB builds the same minimal single-entry, single-block
// dwarfdb file dwarfdb/db_test.go exercises (key [5] -> (-90, -180))
// and opens it without mmap, for CLI-level command tests.
func newFixtureDB(t *testing.T) *dwarfdb.DB {
	t.Helper()

	minimalFSETable := []byte{4, 17}
	var buf bytes.Buffer

	buf.Write(fileheader.Signature[:])
	binary.Write(&buf, binary.LittleEndian, fileheader.SupportedVersion)
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(0))
	binary.Write(&buf, binary.LittleEndian, uint32(1))
	binary.Write(&buf, binary.LittleEndian, uint32(1))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, float32(100.0))
	binary.Write(&buf, binary.LittleEndian, uint16(0))
	buf.WriteByte(5)

	binary.Write(&buf, binary.LittleEndian, uint32(len(minimalFSETable)))
	buf.Write(minimalFSETable)
	binary.Write(&buf, binary.LittleEndian, uint32(len(minimalFSETable)))
	buf.Write(minimalFSETable)

	blockOffset := int64(buf.Len()) + 5
	buf.WriteByte(5)
	binary.Write(&buf, binary.LittleEndian, uint32(blockOffset))

	buf.WriteByte(byte(1<<2 | 2))
	buf.WriteByte(0xFF)
	buf.WriteByte(byte(8<<2 | 2))
	buf.Write([]byte{0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x00, 0x98})

	path := filepath.Join(t.TempDir(), "fixture.dwarfdb")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	db, err := dwarfdb.Open(path, dwarfdb.Options{ResultCacheCapacity: 8, BlockCacheCapacity: 8, UseMmap: false})
	require.NoError(t, err)
	return db
}
