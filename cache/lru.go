// Package cache implements the bounded, access-order LRU caches used at
// two granularities: one result cache keyed by the raw lookup key, and
// three per-segment block caches (keys, coords, extra-data) keyed by
// block index (Component H).
package cache

import (
	"bytes"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// ResultCache caches lookup results (including negative results — a
// cached nil Value is a legitimate stored value) keyed by the raw
// caller-supplied lookup key.
type ResultCache[V any] struct {
	inner *lru.Cache[uint64, entry[V]]
}

type entry[V any] struct {
	key   []byte
	value V
	found bool
}

// NewResultCache builds a result cache of the given capacity. Capacity
// must be positive.
func NewResultCache[V any](capacity int) (*ResultCache[V], error) {
	inner, err := lru.New[uint64, entry[V]](capacity)
	if err != nil {
		return nil, err
	}
	return &ResultCache[V]{inner: inner}, nil
}

// keyHash collapses a variable-length byte key into a fixed map key the
// way compactindexsized hashes keys for bucket placement.
func keyHash(key []byte) uint64 {
	return xxhash.Sum64(key)
}

// Get returns the cached result for key, if present. The second return
// value distinguishes "not cached" from "cached as a negative result".
// The raw key is stored alongside the hash and compared on every hit, so
// an xxhash collision between two distinct keys is treated as a miss
// rather than silently serving the wrong cached result.
func (c *ResultCache[V]) Get(key []byte) (value V, found bool, cached bool) {
	e, ok := c.inner.Get(keyHash(key))
	if !ok || !bytes.Equal(e.key, key) {
		var zero V
		return zero, false, false
	}
	return e.value, e.found, true
}

// Put stores a lookup result (found=false records a negative cache hit).
// Capacity is enforced post-insert: eviction of the least-recently-used
// entry happens only once occupancy actually exceeds capacity, not
// pre-emptively before the new entry is admitted.
func (c *ResultCache[V]) Put(key []byte, value V, found bool) {
	stored := make([]byte, len(key))
	copy(stored, key)
	c.inner.Add(keyHash(key), entry[V]{key: stored, value: value, found: found})
}

// Len returns the current number of cached entries.
func (c *ResultCache[V]) Len() int { return c.inner.Len() }

// BlockCache caches decoded per-segment block buffers keyed by block
// index, one instance per segment kind (keys, coords, extra-data).
type BlockCache struct {
	inner *lru.Cache[int, []byte]
}

// NewBlockCache builds a block cache of the given capacity.
func NewBlockCache(capacity int) (*BlockCache, error) {
	inner, err := lru.New[int, []byte](capacity)
	if err != nil {
		return nil, err
	}
	return &BlockCache{inner: inner}, nil
}

// Get returns the decoded buffer cached for blockIndex, if present.
func (c *BlockCache) Get(blockIndex int) ([]byte, bool) {
	return c.inner.Get(blockIndex)
}

// Put stores the decoded buffer for blockIndex.
func (c *BlockCache) Put(blockIndex int, buf []byte) {
	c.inner.Add(blockIndex, buf)
}

// Len returns the current number of cached entries.
func (c *BlockCache) Len() int { return c.inner.Len() }
