// Package transform implements the inverse block transforms chained after
// FSE decompression: zero-run expansion, rank (move-to-front-family)
// decoding, and the bijective Burrows-Wheeler inverse.
//
// Each transform is length-preserving or length-expanding in only one
// direction (ZRLT expands), matching the encode-side pipeline documented
// in spec §4.4. Implementations here follow the standard reference
// algorithms for each transform; the contract that matters is a
// byte-identical round trip against whatever built the file, not bit
// compatibility with any particular third-party compressor.
package transform

import (
	"fmt"

	"github.com/ndl/dwarf-idea/varint"
)

// InverseZRLT expands runs of zero bytes that were replaced at encode time
// by a single zero byte followed by a varint run length.
func InverseZRLT(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data))
	i := 0
	for i < len(data) {
		b := data[i]
		i++
		if b != 0 {
			out = append(out, b)
			continue
		}
		runLen, n, err := varint.Decode(data[i:])
		if err != nil {
			return nil, fmt.Errorf("transform: zrlt run length: %w", err)
		}
		i += n
		for k := uint64(0); k < runLen; k++ {
			out = append(out, 0)
		}
	}
	return out, nil
}
