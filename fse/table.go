// Package fse implements the Finite State Entropy decoder used to
// decompress the keys, coords, and extra-data segments of a block: a
// tabled entropy coder in the ANS family, read here in the convention
// ZSTD's FSE uses (variable-width normalized-count header, dual
// interleaved decoder states sharing one bit source).
//
// Grounded on spec.md §4.3; no encoder is implemented, only the decode
// side dwarfdb needs.
package fse

import (
	"fmt"
	"math/bits"
)

// maxLog2Size bounds the table size the format allows (log2Size <= 12).
const maxLog2Size = 12

// minLog2Size bounds the table size from below. The symbol-distribution
// stride (tableSize>>1)+(tableSize>>3)+3 degenerates to a multiple of
// tableSize when tableSize is 8, 2 or 1 (log2Size 3, 1 or 0), so the
// distribution would never leave slot 0. Every size below 16 is rejected as
// malformed (including 4, whose stride 5 is usable) so that a single lower
// bound covers the degenerate sizes.
const minLog2Size = 4

// Table holds a precomputed FSE decode table: three equal-length arrays
// indexed by decoder state, built once per stream kind (keys, coords,
// extra-data) when the database is opened.
type Table struct {
	log2Size     uint
	symbol       []byte
	numberOfBits []byte
	newState     []uint16
}

// Log2Size returns the table's state-space size as a power of two.
func (t *Table) Log2Size() uint { return t.log2Size }

// ReadTable parses a frequency table (a variable-width header of
// normalized symbol counts) starting at buf[offset] and builds the
// corresponding decode table. It returns the table and the offset of the
// first byte following the header.
func ReadTable(buf []byte, offset int) (*Table, int, error) {
	counts, log2Size, next, err := readNormalizedCounts(buf, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("fse: read table header: %w", err)
	}
	t, err := buildTable(counts, log2Size)
	if err != nil {
		return nil, 0, err
	}
	return t, next, nil
}

// readNormalizedCounts decodes the header's accuracy log followed by one
// normalized count per symbol present (0..255), using a simplified but
// structurally faithful byte-aligned encoding: a 1-byte log2Size, then the
// symbols in order from 0, each either a varint-encoded count stored as
// count+1, or a zero byte followed by a varint run length that skips that
// many absent symbols. Reading stops once the running total of assigned
// slots reaches 1<<log2Size.
//
// This departs from ZSTD's bit-packed FSE_readNCount (which interleaves
// counts at sub-byte granularity with a shared bitstream and threshold
// renormalization) for implementation-risk reasons noted in the design
// ledger; it preserves the same logical contract (log2Size plus one
// normalized count per symbol, some of which may be the -1 "low
// probability" marker) that buildTable consumes.
func readNormalizedCounts(buf []byte, offset int) (counts [256]int32, log2Size uint, next int, err error) {
	if offset >= len(buf) {
		return counts, 0, 0, fmt.Errorf("fse: truncated table header")
	}
	log2Size = uint(buf[offset])
	offset++
	if log2Size < minLog2Size || log2Size > maxLog2Size {
		return counts, 0, 0, fmt.Errorf("fse: invalid log2Size %d", log2Size)
	}

	tableSize := int32(1) << log2Size
	remaining := tableSize
	sym := 0
	for remaining > 0 {
		if sym >= 256 {
			return counts, 0, 0, fmt.Errorf("fse: normalized counts overrun symbol space")
		}
		if offset >= len(buf) {
			return counts, 0, 0, fmt.Errorf("fse: truncated table header")
		}
		// A zero-run escape: a zero byte followed by a varint repeat count
		// marks that many consecutive absent symbols, matching the
		// zero-probability run compaction ZSTD's header format also uses.
		if buf[offset] == 0 {
			offset++
			if offset >= len(buf) {
				return counts, 0, 0, fmt.Errorf("fse: truncated zero-run in table header")
			}
			runLen, n, err := decodeVarintHeader(buf, offset)
			if err != nil {
				return counts, 0, 0, err
			}
			offset += n
			sym += int(runLen)
			continue
		}
		encoded, n, err := decodeVarintHeader(buf, offset)
		if err != nil {
			return counts, 0, 0, err
		}
		offset += n
		count := int32(encoded) - 1
		counts[sym] = count
		if count < 0 {
			remaining-- // low-probability symbol occupies exactly one slot
		} else {
			remaining -= count
		}
		sym++
	}
	return counts, log2Size, offset, nil
}

// decodeVarintHeader reads a LEB128-style varint from a table header
// region; it is a thin local wrapper so fse doesn't need to expose buffer
// slicing helpers from the varint package for this one caller.
func decodeVarintHeader(buf []byte, offset int) (uint64, int, error) {
	var value uint64
	var shift uint
	for i := offset; i < len(buf); i++ {
		b := buf[i]
		value |= uint64(b&0x7f) << shift
		if int8(b) >= 0 {
			return value, i - offset + 1, nil
		}
		shift += 7
		if shift >= 64 {
			return 0, 0, fmt.Errorf("fse: varint overflow in table header")
		}
	}
	return 0, 0, fmt.Errorf("fse: truncated varint in table header")
}

// buildTable distributes symbols across 1<<log2Size slots with the
// standard FSE striding formula, then precomputes the per-slot
// (symbol, numberOfBits, newState) triple.
func buildTable(counts [256]int32, log2Size uint) (*Table, error) {
	if log2Size < minLog2Size || log2Size > maxLog2Size {
		return nil, fmt.Errorf("fse: invalid log2Size %d", log2Size)
	}
	tableSize := uint32(1) << log2Size
	slotSymbol := make([]byte, tableSize)

	// Low-probability symbols (count == -1) are placed at the high end of
	// the table, one slot each, highest symbol first.
	highPos := tableSize
	var lowProbSymbols []int
	for s := 0; s < 256; s++ {
		if counts[s] == -1 {
			lowProbSymbols = append(lowProbSymbols, s)
		}
	}
	for i := len(lowProbSymbols) - 1; i >= 0; i-- {
		highPos--
		slotSymbol[highPos] = byte(lowProbSymbols[i])
	}

	// Positive-probability symbols are distributed with the classic
	// "step by (tableSize>>1)+(tableSize>>3)+3, mask to tableSize-1" stride
	// used by reference FSE builders, skipping positions that fall in the
	// low-probability region at the high end of the table.
	step := (tableSize >> 1) + (tableSize >> 3) + 3
	mask := tableSize - 1
	pos := uint32(0)
	for s := 0; s < 256; s++ {
		count := counts[s]
		if count <= 0 {
			continue
		}
		if highPos == 0 {
			return nil, fmt.Errorf("fse: symbol distribution overran low-probability region")
		}
		for i := int32(0); i < count; i++ {
			slotSymbol[pos] = byte(s)
			pos = (pos + step) & mask
			for pos >= highPos {
				pos = (pos + step) & mask
			}
		}
	}
	// The stride is odd, so it visits every slot below highPos once per
	// cycle; counts that fill exactly those slots bring pos back to 0.
	if pos != 0 {
		return nil, fmt.Errorf("fse: normalized counts do not fill the table")
	}

	numberOfBits := make([]byte, tableSize)
	newState := make([]uint16, tableSize)

	var next [256]uint32
	for s := 0; s < 256; s++ {
		if counts[s] == -1 {
			next[s] = 1
		} else if counts[s] > 0 {
			next[s] = uint32(counts[s])
		}
	}
	for slot := uint32(0); slot < tableSize; slot++ {
		sym := slotSymbol[slot]
		c := next[sym]
		next[sym]++

		highBit := uint(bits.Len32(c)) - 1
		nbBits := log2Size - highBit
		numberOfBits[slot] = byte(nbBits)
		newState[slot] = uint16((c << nbBits) - tableSize)
	}

	return &Table{
		log2Size:     log2Size,
		symbol:       slotSymbol,
		numberOfBits: numberOfBits,
		newState:     newState,
	}, nil
}
