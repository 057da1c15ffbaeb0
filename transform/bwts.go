package transform

// InverseBWTS reverses a bijective Burrows-Wheeler Transform (BWTS): unlike
// the classic BWT, BWTS needs no sentinel or stored primary index because
// the transform is a bijection over strings, built from the Lyndon-word
// factorization of the (virtually) infinite periodic extension of the
// input. Decoding walks the cycles of the standard LF-mapping (the same
// "which sorted row produced this character" correspondence used by
// regular BWT inverse): each cycle yields one Lyndon factor back to front,
// and the factors are laid out in the order the encoder's factorization
// produced them in.
func InverseBWTS(l []byte) []byte {
	n := len(l)
	if n == 0 {
		return nil
	}

	var count [256]int
	for _, b := range l {
		count[b]++
	}
	var cum [256]int
	total := 0
	for b := 0; b < 256; b++ {
		cum[b] = total
		total += count[b]
	}

	// lf[i] is the sorted rank of the character at index i of l (the
	// standard LF-mapping), with equal characters ranked by first
	// occurrence.
	var occ [256]int
	lf := make([]int, n)
	for i, b := range l {
		lf[i] = cum[b] + occ[b]
		occ[b]++
	}

	// Cycles are met in ascending order of their smallest row, which is
	// the reverse of the factor order, and each yields its factor back to
	// front, so the output is filled from the end.
	out := make([]byte, n)
	visited := make([]bool, n)
	pos := n - 1
	for start := 0; start < n; start++ {
		if visited[start] {
			continue
		}
		j := start
		for !visited[j] {
			visited[j] = true
			out[pos] = l[j]
			pos--
			j = lf[j]
		}
	}
	return out
}
