package engine

// solveLinearSystem solves A*x = b for a square system using Gauss-Jordan
// elimination with partial pivoting. A is modified in place (caller must
// pass a copy). Returns false if the system is singular to working
// precision.
//
// No third-party linear-algebra package appears anywhere in the reference
// corpus (no gonum, no BLAS binding); the TPS control-point systems here are
// small (bounded by the number of calibration ellipse samples, a few dozen
// rows) so a hand-rolled dense solver is the appropriate stdlib-only choice
// rather than reaching for an unrelated library just to avoid writing one.
func solveLinearSystem(a [][]float64, b []float64) ([]float64, bool) {
	n := len(a)
	for col := 0; col < n; col++ {
		pivot := col
		best := abs(a[col][col])
		for r := col + 1; r < n; r++ {
			if v := abs(a[r][col]); v > best {
				best = v
				pivot = r
			}
		}
		if best < 1e-12 {
			return nil, false
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		pv := a[col][col]
		for c := col; c < n; c++ {
			a[col][c] /= pv
		}
		b[col] /= pv

		for r := 0; r < n; r++ {
			if r == col {
				continue
			}
			factor := a[r][col]
			if factor == 0 {
				continue
			}
			for c := col; c < n; c++ {
				a[r][c] -= factor * a[col][c]
			}
			b[r] -= factor * b[col]
		}
	}
	return b, true
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
