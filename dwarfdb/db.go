// Package dwarfdb implements the Database Facade (Component I): opening
// a dwarfdb file, wiring the lower components (key mapper, index
// searcher, block decoder, caches), and exposing Lookup.
package dwarfdb

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/valyala/bytebufferpool"
	"golang.org/x/exp/mmap"
	"golang.org/x/sys/unix"

	"github.com/ndl/dwarf-idea/block"
	"github.com/ndl/dwarf-idea/cache"
	"github.com/ndl/dwarf-idea/fse"
	"github.com/ndl/dwarf-idea/index"
	"github.com/ndl/dwarf-idea/internal/fileheader"
	"github.com/ndl/dwarf-idea/keymap"
)

// maxBlockRegionBytes bounds how much of the file past a block's offset
// DB will read in one go while decoding its segments. A real block is
// governed by max_entries_per_block and is always far smaller than this;
// it exists only to keep a corrupt offset from triggering an unbounded
// read.
const maxBlockRegionBytes = 1 << 20

// Options configures Open.
type Options struct {
	// ResultCacheCapacity bounds the per-key result cache.
	ResultCacheCapacity int
	// BlockCacheCapacity bounds each of the three per-segment block
	// caches (keys, coords, extra-data).
	BlockCacheCapacity int
	// UseMmap selects golang.org/x/exp/mmap for the backing file handle
	// instead of a plain os.File. Defaults to true via DefaultOptions.
	UseMmap bool
	// Locking wraps Lookup in a mutex, satisfying the documented-but-
	// not-required "protect caches with an exclusive lock" path of the
	// concurrency model instead of declaring the instance non-shareable.
	Locking bool
}

// DefaultOptions returns reasonable cache sizes for a single-process CLI
// or long-lived service use.
func DefaultOptions() Options {
	return Options{
		ResultCacheCapacity: 4096,
		BlockCacheCapacity:  256,
		UseMmap:             true,
	}
}

// Result is a successful lookup's payload.
type Result struct {
	Lat       float32
	Lon       float32
	ExtraData []byte
}

// DB is a handle to an open dwarfdb file. Not safe for concurrent use
// unless opened with Options.Locking, per the single-threaded-per-
// instance concurrency model: every Lookup mutates the caches and
// reusable scratch state.
type DB struct {
	mu      sync.Mutex
	locking bool

	reader io.ReaderAt
	closer io.Closer

	header *fileheader.Header
	keyMap *keymap.Map

	keysTable   *fse.Table
	coordsTable *fse.Table
	extraTable  *fse.Table

	idx *index.Index

	resultCache *cache.ResultCache[Result]
	keysCache   *cache.BlockCache
	coordsCache *cache.BlockCache
	extraCache  *cache.BlockCache

	fseOutputLimit int
	closed         bool
}

type fileDescriptor interface {
	Fd() uintptr
	Name() string
}

// Open opens path read-only (memory-mapped when opts.UseMmap is set,
// otherwise as a plain file), parses the header, and wires every lower
// component.
func Open(path string, opts Options) (*DB, error) {
	var reader io.ReaderAt
	var closer io.Closer

	if opts.UseMmap {
		f, err := mmap.Open(path)
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %v", ErrIO, path, err)
		}
		reader, closer = f, f
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %v", ErrIO, path, err)
		}
		reader, closer = f, f
	}

	if fd, ok := reader.(fileDescriptor); ok {
		if err := unix.Fadvise(int(fd.Fd()), 0, 0, unix.FADV_RANDOM); err != nil {
			slog.Warn("fadvise(RANDOM) failed", "error", err, "file", fd.Name())
		}
	} else {
		slog.Warn("reader has no Fd(); cannot advise random access pattern")
	}

	header, err := fileheader.Load(reader)
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	slog.Debug("dwarfdb: opened", "path", path, "num_entries", header.NumEntries, "index_size", header.IndexSize)

	cursor := header.HeaderSize

	keysTable, cursor, err := readFrequencyTable(reader, cursor)
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("%w: keys frequency table: %v", ErrFormat, err)
	}
	coordsTable, cursor, err := readFrequencyTable(reader, cursor)
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("%w: coords frequency table: %v", ErrFormat, err)
	}
	var extraTable *fse.Table
	if header.ExtraDataSize > 0 {
		extraTable, cursor, err = readFrequencyTable(reader, cursor)
		if err != nil {
			closer.Close()
			return nil, fmt.Errorf("%w: extra-data frequency table: %v", ErrFormat, err)
		}
	}

	stride := header.EffectiveKeySize + 4
	indexBytes := make([]byte, int(header.IndexSize)*stride)
	if _, err := reader.ReadAt(indexBytes, cursor); err != nil {
		closer.Close()
		return nil, fmt.Errorf("%w: read block index: %v", ErrFormat, err)
	}
	idx := index.New(indexBytes, 0, int(header.IndexSize), header.EffectiveKeySize)

	if opts.ResultCacheCapacity <= 0 {
		opts.ResultCacheCapacity = DefaultOptions().ResultCacheCapacity
	}
	if opts.BlockCacheCapacity <= 0 {
		opts.BlockCacheCapacity = DefaultOptions().BlockCacheCapacity
	}
	resultCache, err := cache.NewResultCache[Result](opts.ResultCacheCapacity)
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	keysCache, err := cache.NewBlockCache(opts.BlockCacheCapacity)
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	coordsCache, err := cache.NewBlockCache(opts.BlockCacheCapacity)
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	extraCache, err := cache.NewBlockCache(opts.BlockCacheCapacity)
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}

	return &DB{
		locking:        opts.Locking,
		reader:         reader,
		closer:         closer,
		header:         header,
		keyMap:         keymap.New(header.KeyMapEntries),
		keysTable:      keysTable,
		coordsTable:    coordsTable,
		extraTable:     extraTable,
		idx:            idx,
		resultCache:    resultCache,
		keysCache:      keysCache,
		coordsCache:    coordsCache,
		extraCache:     extraCache,
		fseOutputLimit: 32 * int(header.MaxEntriesPerBlock),
	}, nil
}

// readFrequencyTable reads a u32 byte-length prefix followed by that
// many bytes of FSE table at offset, returning the parsed table and the
// offset of the byte immediately following it.
func readFrequencyTable(r io.ReaderAt, offset int64) (*fse.Table, int64, error) {
	var sizeBuf [4]byte
	if _, err := r.ReadAt(sizeBuf[:], offset); err != nil {
		return nil, 0, fmt.Errorf("read table size: %w", err)
	}
	size := binary.LittleEndian.Uint32(sizeBuf[:])
	buf := make([]byte, size)
	if _, err := r.ReadAt(buf, offset+4); err != nil {
		return nil, 0, fmt.Errorf("read table bytes: %w", err)
	}
	table, _, err := fse.ReadTable(buf, 0)
	if err != nil {
		return nil, 0, err
	}
	return table, offset + 4 + int64(size), nil
}

// MaxDistError returns the header's max_dist_error field verbatim.
func (db *DB) MaxDistError() (float32, error) {
	if db.closed {
		return 0, ErrClosed
	}
	return db.header.MaxDistError, nil
}

// Stats reports current occupancy (entry counts) of the four caches,
// supplementing §4.9 so operators can observe bounded retained state.
type Stats struct {
	ResultCacheLen int
	KeysCacheLen   int
	CoordsCacheLen int
	ExtraCacheLen  int
}

func (db *DB) Stats() Stats {
	return Stats{
		ResultCacheLen: db.resultCache.Len(),
		KeysCacheLen:   db.keysCache.Len(),
		CoordsCacheLen: db.coordsCache.Len(),
		ExtraCacheLen:  db.extraCache.Len(),
	}
}

// Close releases the underlying file. Lookup and MaxDistError on a closed
// db fail with ErrClosed. The caches are not cleared, and Stats keeps
// reporting their occupancy after Close.
func (db *DB) Close() error {
	if db.closed {
		return nil
	}
	db.closed = true
	return db.closer.Close()
}

// Lookup resolves rawKey to a Result, or (nil, nil) on a miss or any
// malformed-data condition encountered mid-lookup. Only caller errors
// (a closed database, or a key whose length doesn't match the file's key
// size) surface as non-nil errors.
func (db *DB) Lookup(rawKey []byte) (*Result, error) {
	if db.locking {
		db.mu.Lock()
		defer db.mu.Unlock()
	}
	if db.closed {
		return nil, ErrClosed
	}
	wantLen := db.header.EffectiveKeySize
	if db.keyMap != nil {
		wantLen += 2
	}
	if len(rawKey) != wantLen {
		return nil, fmt.Errorf("%w: key length %d, want %d", ErrInvalidKey, len(rawKey), wantLen)
	}

	if value, found, cached := db.resultCache.Get(rawKey); cached {
		if !found {
			return nil, nil
		}
		v := value
		return &v, nil
	}

	result, err := db.lookupUncached(rawKey)
	if err != nil {
		slog.Debug("dwarfdb: lookup downgraded to miss", "error", err)
		db.resultCache.Put(rawKey, Result{}, false)
		return nil, nil
	}
	if result == nil {
		db.resultCache.Put(rawKey, Result{}, false)
		return nil, nil
	}
	db.resultCache.Put(rawKey, *result, true)
	return result, nil
}

// lookupUncached implements steps 2-9 of spec §4.1's lookup algorithm.
// A non-nil error here is always an ErrFormat-class condition that
// Lookup downgrades to a cached miss; a (nil, nil) return is a genuine
// miss (key not present) rather than a format problem.
func (db *DB) lookupUncached(rawKey []byte) (*Result, error) {
	mappedKey, err := db.keyMap.Resolve(rawKey, db.header.EffectiveKeySize)
	if err != nil {
		return nil, nil
	}

	if bytes.Compare(mappedKey, db.header.LastKey) > 0 {
		return nil, nil
	}

	found, ok := db.idx.Search(mappedKey)
	if !ok {
		return nil, nil
	}

	regionLen := maxBlockRegionBytes
	region := bytebufferpool.Get()
	defer bytebufferpool.Put(region)
	region.B = growTo(region.B, regionLen)
	n, err := db.reader.ReadAt(region.B, int64(found.BlockOffset))
	if n == 0 {
		return nil, fmt.Errorf("read block at offset %d: %w", found.BlockOffset, err)
	}
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("read block at offset %d: %w", found.BlockOffset, err)
	}
	blockBuf := region.B[:n]

	keysHeader, pos, err := block.ReadHeader(blockBuf, 0)
	if err != nil {
		return nil, err
	}

	blockKeyIndex := 0
	if !found.ExactMatch {
		keysBuf, decErr := db.decodeSegmentCached(db.keysCache, found.BlockIndex, blockBuf, pos, keysHeader, db.keysTable)
		if decErr != nil {
			return nil, decErr
		}
		blockKeyIndex, err = index.WalkBlockKeys(keysBuf, found.IndexKey, mappedKey)
		if err != nil {
			return nil, err
		}
		if blockKeyIndex < 0 {
			return nil, nil
		}
	}
	pos = pos + keysHeader.ByteLength

	coordsHeader, coordsPos, err := block.ReadHeader(blockBuf, pos)
	if err != nil {
		return nil, err
	}
	coordsBuf, err := db.decodeSegmentCached(db.coordsCache, found.BlockIndex, blockBuf, coordsPos, coordsHeader, db.coordsTable)
	if err != nil {
		return nil, err
	}
	coord, err := block.DecodeCoord(coordsBuf, blockKeyIndex, int(db.header.BoundingBoxBits))
	if err != nil {
		return nil, err
	}
	pos = coordsPos + coordsHeader.ByteLength

	result := &Result{Lat: coord.Lat, Lon: coord.Lon}

	if db.header.ExtraDataSize > 0 {
		extraHeader, extraPos, err := block.ReadHeader(blockBuf, pos)
		if err != nil {
			return nil, err
		}
		extraBuf, err := db.decodeSegmentCached(db.extraCache, found.BlockIndex, blockBuf, extraPos, extraHeader, db.extraTable)
		if err != nil {
			return nil, err
		}
		extra, err := block.ExtraData(extraBuf, blockKeyIndex, int(db.header.ExtraDataSize))
		if err != nil {
			return nil, err
		}
		result.ExtraData = append([]byte(nil), extra...)
	}

	return result, nil
}

// decodeSegmentCached materializes a decoded segment buffer via c,
// computing and caching it on a miss.
func (db *DB) decodeSegmentCached(c *cache.BlockCache, blockIndex int, blockBuf []byte, pos int, h block.Header, table *fse.Table) ([]byte, error) {
	if buf, ok := c.Get(blockIndex); ok {
		return buf, nil
	}
	decoded, _, err := block.DecodeSegment(blockBuf, pos, h, table, db.fseOutputLimit)
	if err != nil {
		return nil, err
	}
	c.Put(blockIndex, decoded)
	return decoded, nil
}

func growTo(b []byte, n int) []byte {
	if cap(b) >= n {
		return b[:n]
	}
	return make([]byte, n)
}
