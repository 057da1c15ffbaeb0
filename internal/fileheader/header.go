// Package fileheader parses the fixed portion of a dwarfdb file: the
// signature, version, sizing fields, and optional key-map table that
// precede the frequency tables and block index.
package fileheader

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Signature is the 9-byte ASCII magic every dwarfdb file begins with.
var Signature = [9]byte{'D', 'w', 'a', 'r', 'f', 'I', 'd', 'e', 'a'}

// SupportedVersion is the only version value Load accepts.
const SupportedVersion = uint16(1)

// Header holds the immutable fields parsed once at open.
type Header struct {
	KeySize            uint16 // before mapping adjustment
	EffectiveKeySize   int    // KeySize, minus 2 if a key map is present
	ExtraDataSize      uint16
	NumEntries         uint32
	IndexSize          uint32
	MinEntriesPerBlock uint16
	MaxEntriesPerBlock uint16
	BoundingBoxBits    uint16
	MaxDistError       float32
	KeyMapEntries      []uint32 // in file order; entry i maps to code i
	LastKey            []byte   // effective_key_size bytes, big-endian

	// HeaderSize is the byte offset of the first byte following the fixed
	// header (where the keys frequency table begins).
	HeaderSize int64
}

// Load parses the fixed header from r starting at offset 0.
func Load(r io.ReaderAt) (*Header, error) {
	fixed := make([]byte, 9+2+2+2+4+4+2+2+2+4+2)
	if _, err := r.ReadAt(fixed, 0); err != nil {
		return nil, fmt.Errorf("fileheader: read fixed header: %w", err)
	}

	var sig [9]byte
	copy(sig[:], fixed[0:9])
	if sig != Signature {
		return nil, fmt.Errorf("fileheader: bad signature %q", sig)
	}

	pos := 9
	h := &Header{}
	version := binary.LittleEndian.Uint16(fixed[pos:])
	if version != SupportedVersion {
		return nil, fmt.Errorf("fileheader: unsupported version %d", version)
	}
	h.KeySize = binary.LittleEndian.Uint16(fixed[11:])
	pos = 13
	h.ExtraDataSize = binary.LittleEndian.Uint16(fixed[pos:])
	pos += 2
	h.NumEntries = binary.LittleEndian.Uint32(fixed[pos:])
	pos += 4
	h.IndexSize = binary.LittleEndian.Uint32(fixed[pos:])
	pos += 4
	h.MinEntriesPerBlock = binary.LittleEndian.Uint16(fixed[pos:])
	pos += 2
	h.MaxEntriesPerBlock = binary.LittleEndian.Uint16(fixed[pos:])
	pos += 2
	h.BoundingBoxBits = binary.LittleEndian.Uint16(fixed[pos:])
	pos += 2
	h.MaxDistError = math.Float32frombits(binary.LittleEndian.Uint32(fixed[pos:]))
	pos += 4
	keyMapSize := binary.LittleEndian.Uint16(fixed[pos:])
	pos += 2

	cursor := int64(pos)

	h.EffectiveKeySize = int(h.KeySize)
	if keyMapSize > 0 {
		mapBytes := make([]byte, int(keyMapSize)*4)
		if _, err := r.ReadAt(mapBytes, cursor); err != nil {
			return nil, fmt.Errorf("fileheader: read key map: %w", err)
		}
		h.KeyMapEntries = make([]uint32, keyMapSize)
		for i := range h.KeyMapEntries {
			h.KeyMapEntries[i] = binary.LittleEndian.Uint32(mapBytes[i*4:])
		}
		cursor += int64(len(mapBytes))
		h.EffectiveKeySize = int(h.KeySize) - 2
	}

	if h.EffectiveKeySize <= 0 || h.EffectiveKeySize > 8 {
		return nil, fmt.Errorf("fileheader: invalid effective key size %d", h.EffectiveKeySize)
	}
	if h.NumEntries > 0 && h.IndexSize == 0 {
		return nil, fmt.Errorf("fileheader: index_size must be >=1 when num_entries > 0")
	}

	lastKey := make([]byte, h.EffectiveKeySize)
	if _, err := r.ReadAt(lastKey, cursor); err != nil {
		return nil, fmt.Errorf("fileheader: read last_key: %w", err)
	}
	h.LastKey = lastKey
	cursor += int64(len(lastKey))

	h.HeaderSize = cursor
	return h, nil
}
