package transform

// InverseSBRT reverses the rank-mode Sort-By-Rank Transform: a
// move-to-front-family coding where each output byte of the original
// stream was replaced by its current rank in a 256-entry symbol table,
// after which that symbol is promoted to rank 0.
func InverseSBRT(ranks []byte) []byte {
	var table [256]byte
	for i := range table {
		table[i] = byte(i)
	}

	out := make([]byte, len(ranks))
	for i, r := range ranks {
		sym := table[r]
		copy(table[1:int(r)+1], table[0:r])
		table[0] = sym
		out[i] = sym
	}
	return out
}
