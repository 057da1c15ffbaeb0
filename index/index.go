// Package index implements the two-level key search used to locate a
// block: a binary search over the sorted, fixed-stride block index
// (Component F), followed by a delta-coded walk of the intra-block key
// list once the candidate block's keys have been decoded (§4.7).
package index

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/ndl/dwarf-idea/varint"
)

// Entry is one (index_key, block_offset) pair from the block index.
type Entry struct {
	Key         []byte
	BlockOffset uint32
}

// Index is a read-only view over the sorted block index region of a
// mapped file: keySize-byte keys interleaved with 4-byte block offsets,
// stride keySize+4, ascending by key.
type Index struct {
	buf     []byte
	keySize int
	size    int
}

// New wraps buf[offset:] as an Index of size entries, each keySize+4
// bytes wide.
func New(buf []byte, offset int, size int, keySize int) *Index {
	stride := keySize + 4
	return &Index{buf: buf[offset : offset+size*stride], keySize: keySize, size: size}
}

func (idx *Index) stride() int { return idx.keySize + 4 }

func (idx *Index) keyAt(i int) []byte {
	off := i * idx.stride()
	return idx.buf[off : off+idx.keySize]
}

// Result is the outcome of a successful Search.
type Result struct {
	BlockIndex  int
	IndexKey    []byte
	BlockOffset uint32
	ExactMatch  bool
}

// Search finds the largest entry whose key is <= mappedKey under
// unsigned big-endian byte-sequence ordering, using the carry-adjusted
// binary search of spec §4.5 (which breaks the classic two-element-tie
// infinite loop by rounding the midpoint up once low+1 == high).
func (idx *Index) Search(mappedKey []byte) (Result, bool) {
	if idx.size == 0 {
		return Result{}, false
	}

	low, high := 0, idx.size-1
	carry := 0
	for low < high {
		mid := (low + high + carry) / 2
		cmp := bytes.Compare(idx.keyAt(mid), mappedKey)
		switch {
		case cmp > 0:
			high = mid - 1
		case cmp < 0:
			low = mid
			if low+1 == high {
				carry = 1
			}
		default:
			low, high = mid, mid
		}
	}

	if low < 0 || low >= idx.size {
		return Result{}, false
	}
	key := idx.keyAt(low)
	if bytes.Compare(key, mappedKey) > 0 {
		return Result{}, false
	}

	off := low*idx.stride() + idx.keySize
	blockOffset := binary.LittleEndian.Uint32(idx.buf[off : off+4])
	return Result{
		BlockIndex:  low,
		IndexKey:    key,
		BlockOffset: blockOffset,
		ExactMatch:  bytes.Equal(key, mappedKey),
	}, true
}

// WalkBlockKeys decodes successive varint deltas from keysBuf, adding
// each to the running key (as an unsigned big-endian integer starting
// from indexKey), looking for mappedKey. The first decoded key is
// intra-block index 1 (index 0 is indexKey itself). It returns the
// matching intra-block index, or -1 if mappedKey is not present in this
// block (a decoded key exceeds the target, or the buffer runs out).
func WalkBlockKeys(keysBuf []byte, indexKey []byte, mappedKey []byte) (int, error) {
	if bytes.Equal(indexKey, mappedKey) {
		return 0, nil
	}

	current := append([]byte(nil), indexKey...)
	pos := 0
	blockIndex := 1
	for pos < len(keysBuf) {
		delta, n, err := varint.Decode(keysBuf[pos:])
		if err != nil {
			return -1, fmt.Errorf("index: block key walk: %w", err)
		}
		pos += n
		addBigEndian(current, delta)

		cmp := bytes.Compare(current, mappedKey)
		if cmp == 0 {
			return blockIndex, nil
		}
		if cmp > 0 {
			return -1, nil
		}
		blockIndex++
	}
	return -1, nil
}

// addBigEndian adds delta to key, interpreted as an unsigned big-endian
// integer, in place.
func addBigEndian(key []byte, delta uint64) {
	carry := delta
	for i := len(key) - 1; i >= 0 && carry != 0; i-- {
		sum := uint64(key[i]) + carry
		key[i] = byte(sum)
		carry = sum >> 8
	}
}
