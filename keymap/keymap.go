// Package keymap implements the optional MCC/MNC-style key prefix
// remapping described as the "hardcoded cells case" in spec §4.6: a
// lookup's caller-facing key carries a wide (primary, secondary) prefix
// pair that the file compresses down to a dense 16-bit code before the
// rest of the key-resolution pipeline ever sees it.
package keymap

import (
	"encoding/binary"
	"fmt"
)

// Map resolves (primary<<16)|secondary prefixes to their dense 16-bit
// in-file code. A nil *Map is a valid identity mapping.
type Map struct {
	codes map[uint32]uint16
}

// New builds a Map from the header's key_map entries, in file order: the
// entry at index i maps to code i.
func New(entries []uint32) *Map {
	if len(entries) == 0 {
		return nil
	}
	m := &Map{codes: make(map[uint32]uint16, len(entries))}
	for i, v := range entries {
		m.codes[v] = uint16(i)
	}
	return m
}

// Resolve maps an externally supplied key (keySize+2 bytes: a 2-byte
// primary code, a 2-byte secondary code, then keySize-2 raw bytes) down
// to the effective keySize-byte key used by the rest of the lookup
// pipeline. When m is nil, rawKey is returned unchanged (identity).
func (m *Map) Resolve(rawKey []byte, keySize int) ([]byte, error) {
	if m == nil {
		return rawKey, nil
	}
	if len(rawKey) != keySize+2 {
		return nil, fmt.Errorf("keymap: key length %d, want %d", len(rawKey), keySize+2)
	}
	primary := binary.BigEndian.Uint16(rawKey[0:2])
	secondary := binary.BigEndian.Uint16(rawKey[2:4])
	value := uint32(primary)<<16 | uint32(secondary)

	code, ok := m.codes[value]
	if !ok {
		return nil, fmt.Errorf("keymap: no mapping for prefix %#x", value)
	}

	out := make([]byte, keySize)
	binary.BigEndian.PutUint16(out[0:2], code)
	copy(out[2:], rawKey[4:])
	return out, nil
}
