package dwarfdb

import "errors"

// Sentinel error kinds. Discriminate with errors.Is/errors.As, never
// string matching.
var (
	// ErrIO marks a failure reading or mapping the underlying file.
	ErrIO = errors.New("dwarfdb: i/o error")
	// ErrFormat marks malformed on-disk data (bad header, FSE table, or
	// bit stream). Lookup never lets ErrFormat escape: it downgrades any
	// ErrFormat encountered mid-lookup to a (nil, nil) miss.
	ErrFormat = errors.New("dwarfdb: format error")
	// ErrInvalidKey marks a caller error: a key of the wrong length. A
	// key whose prefix the key map can't resolve is a miss, not an error.
	ErrInvalidKey = errors.New("dwarfdb: invalid key")
	// ErrClosed marks use of a Database after Close.
	ErrClosed = errors.New("dwarfdb: database is closed")
)
