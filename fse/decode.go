package fse

import (
	"fmt"

	"github.com/ndl/dwarf-idea/bitio"
)

// Decompress runs the dual-interleaved-state FSE decode described in
// spec §4.3 over src, writing at most outputLimit bytes. outputLimit is
// an upper bound on the produced length, not an exact target: the block
// format doesn't know the decompressed length up front (the coords
// segment's own header, which determines its bit width, lives inside the
// FSE-decompressed bytes), so the decoder runs until the bit stream
// signals it has been fully consumed and returns however many bytes it
// actually produced.
func Decompress(t *Table, src []byte, outputLimit int) ([]byte, error) {
	if outputLimit <= 0 {
		return nil, nil
	}
	r, err := bitio.NewReader(src, 0, len(src))
	if err != nil {
		return nil, fmt.Errorf("fse: decompress: %w", err)
	}

	log2 := int(t.log2Size)
	state1 := int(r.Read(log2))
	if r.Refill() == bitio.StatusOverflow {
		return nil, fmt.Errorf("fse: decompress: stream overflow initializing state1")
	}
	state2 := int(r.Read(log2))
	if r.Refill() == bitio.StatusOverflow {
		return nil, fmt.Errorf("fse: decompress: stream overflow initializing state2")
	}

	out := make([]byte, 0, outputLimit)

	for len(out) <= outputLimit-2 {
		out = append(out, t.symbol[state1])
		nb1 := int(t.numberOfBits[state1])
		state1 = int(t.newState[state1]) + int(r.Read(nb1))

		out = append(out, t.symbol[state2])
		nb2 := int(t.numberOfBits[state2])
		state2 = int(t.newState[state2]) + int(r.Read(nb2))

		status := r.Refill()
		if status == bitio.StatusEndOfBuffer || status == bitio.StatusCompleted {
			break
		}
	}

	// Tail loop: alternate emitting from each state, re-deriving the next
	// state from whatever bits remain, until the bit source is exhausted.
	// The first state to run out of safely-peekable bits stops; its
	// counterpart emits one final symbol and the loop ends, mirroring the
	// reference decoder's asymmetric tail handling.
	for len(out) < outputLimit {
		if len(out) >= outputLimit {
			break
		}
		out = append(out, t.symbol[state1])
		if len(out) >= outputLimit {
			break
		}
		nb1 := int(t.numberOfBits[state1])
		if int(r.BitsConsumed())+nb1 > 64 {
			out = append(out, t.symbol[state2])
			break
		}
		state1 = int(t.newState[state1]) + int(r.Read(nb1))

		out = append(out, t.symbol[state2])
		if len(out) >= outputLimit {
			break
		}
		nb2 := int(t.numberOfBits[state2])
		if int(r.BitsConsumed())+nb2 > 64 {
			out = append(out, t.symbol[state1])
			break
		}
		state2 = int(t.newState[state2]) + int(r.Read(nb2))

		status := r.Refill()
		if status == bitio.StatusCompleted {
			break
		}
	}

	if len(out) > outputLimit {
		return nil, fmt.Errorf("fse: decompress: output exceeded limit %d", outputLimit)
	}
	return out, nil
}
