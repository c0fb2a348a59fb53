package layout

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// randomLayout draws every coordinate uniformly from [-5*dims, 5*dims].
func randomLayout(n, dims int, rng *rand.Rand) *mat.Dense {
	return uniformLayout(n, dims, 5*float64(dims), rng)
}

func uniformLayout(n, dims int, half float64, rng *rand.Rand) *mat.Dense {
	data := make([]float64, n*dims)
	for i := range data {
		data[i] = (2*rng.Float64() - 1) * half
	}
	return mat.NewDense(n, dims, data)
}

// metaPositions returns one anchor per component: the signed unit axes while
// there are enough of them, random unit directions otherwise.
func metaPositions(count, dims int, rng *rand.Rand) [][]float64 {
	positions := make([][]float64, count)
	if count <= 2*dims {
		for c := range positions {
			p := make([]float64, dims)
			p[c/2] = 1
			if c%2 == 1 {
				p[c/2] = -1
			}
			positions[c] = p
		}
		return positions
	}

	for c := range positions {
		p := make([]float64, dims)
		for {
			for d := range p {
				p[d] = rng.NormFloat64()
			}
			if norm := floats.Norm(p, 2); norm > 0 {
				floats.Scale(1/norm, p)
				break
			}
		}
		positions[c] = p
	}
	return positions
}

func minPairwiseDistance(points [][]float64) float64 {
	best := math.Inf(1)
	for a := range points {
		for b := a + 1; b < len(points); b++ {
			best = math.Min(best, floats.Distance(points[a], points[b], 2))
		}
	}
	if math.IsInf(best, 1) || best == 0 {
		return 1
	}
	return best
}

// fitIntoBall centers m on its mean and scales it so that the farthest row
// lies at distance radius from the center.
func fitIntoBall(m *mat.Dense, radius float64) {
	rows, cols := m.Dims()
	for c := 0; c < cols; c++ {
		col := mat.Col(nil, c, m)
		mean := floats.Sum(col) / float64(rows)
		floats.AddConst(-mean, col)
		m.SetCol(c, col)
	}

	var farthest float64
	for r := 0; r < rows; r++ {
		farthest = math.Max(farthest, floats.Norm(m.RawRowView(r), 2))
	}
	if farthest > 0 {
		m.Scale(radius/farthest, m)
	}
}
