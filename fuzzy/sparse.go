package fuzzy

// COOMatrix represents a sparse matrix in coordinate (COO) format.
type COOMatrix struct {
	Rows []int
	Cols []int
	Data []float64
	NRow int
	NCol int
}

// Len returns the number of stored entries.
func (m *COOMatrix) Len() int { return len(m.Data) }

// Degrees returns the sum of each row's weights.
func (m *COOMatrix) Degrees() []float64 {
	degrees := make([]float64, m.NRow)
	for e, r := range m.Rows {
		degrees[r] += m.Data[e]
	}
	return degrees
}

// Max returns the largest stored weight, or 0 for an empty matrix.
func (m *COOMatrix) Max() float64 {
	var best float64
	for _, v := range m.Data {
		if v > best {
			best = v
		}
	}
	return best
}

// At returns the weight stored at (r, c). Entries must be sorted by row then
// column, which holds for every matrix built by this package.
func (m *COOMatrix) At(r, c int) float64 {
	lo, hi := 0, len(m.Rows)
	for lo < hi {
		mid := (lo + hi) / 2
		if m.Rows[mid] < r || (m.Rows[mid] == r && m.Cols[mid] < c) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(m.Rows) && m.Rows[lo] == r && m.Cols[lo] == c {
		return m.Data[lo]
	}
	return 0
}
