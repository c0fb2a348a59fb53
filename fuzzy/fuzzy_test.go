package fuzzy

import (
	"bytes"
	"context"
	"log/slog"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alDuncanson/manifold/knn"
	"github.com/alDuncanson/manifold/metric"
)

func neighbors(t *testing.T, data [][]float64, k int) *knn.Graph {
	t.Helper()
	m, err := metric.Get("euclidean", metric.Params{})
	require.NoError(t, err)
	g, err := knn.Query(context.Background(), data, k, m)
	require.NoError(t, err)
	return g
}

func randomData(n, dim int, seed int64) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	data := make([][]float64, n)
	for i := range data {
		data[i] = make([]float64, dim)
		for d := range data[i] {
			data[i][d] = rng.NormFloat64()
		}
	}
	return data
}

func TestBuildCalibratesEachRow(t *testing.T) {
	g := neighbors(t, randomData(120, 5, 1), 15)

	d, err := Build(g)
	require.NoError(t, err)
	assert.Zero(t, d.Unconverged)

	target := math.Log2(15)
	for i := range g.Indices {
		assert.Equal(t, g.Distances[i][0], d.Rhos[i])
		assert.Greater(t, d.Sigmas[i], 0.0)
		sum := membershipSum(g.Distances[i], d.Rhos[i], d.Sigmas[i])
		assert.InEpsilon(t, target, sum, 1e-4, "row %d", i)
	}
}

func TestMembershipsAreBounded(t *testing.T) {
	g := neighbors(t, randomData(80, 3, 2), 10)

	d, err := Build(g)
	require.NoError(t, err)
	require.Equal(t, 80*10, d.Matrix.Len())

	for e, p := range d.Matrix.Data {
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
		assert.NotEqual(t, d.Matrix.Rows[e], d.Matrix.Cols[e])
	}
	// the nearest neighbor always has full membership
	assert.Equal(t, 1.0, d.Matrix.Data[0])
}

func TestBuildWarnsWhenSearchDoesNotConverge(t *testing.T) {
	g := neighbors(t, randomData(60, 4, 3), 10)

	var logs bytes.Buffer
	d, err := Build(g, WithIterations(1), WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	require.NoError(t, err)

	assert.Positive(t, d.Unconverged)
	assert.Contains(t, logs.String(), "bandwidth search did not converge")
	assert.Contains(t, logs.String(), "iterations=1")
	for e, p := range d.Matrix.Data {
		assert.False(t, math.IsNaN(p), "entry %d", e)
		assert.GreaterOrEqual(t, p, 0.0, "entry %d", e)
		assert.LessOrEqual(t, p, 1.0, "entry %d", e)
	}
	for i, sigma := range d.Sigmas {
		assert.Greater(t, sigma, 0.0, "row %d", i)
	}
}

func TestDegenerateRowsDoNotHang(t *testing.T) {
	data := make([][]float64, 6)
	for i := range data {
		data[i] = []float64{2, 2}
	}
	g := neighbors(t, data, 5)

	d, err := Build(g)
	require.NoError(t, err)
	for i := range data {
		assert.Zero(t, d.Rhos[i])
		assert.Equal(t, MinSigma, d.Sigmas[i])
	}
	for _, p := range d.Matrix.Data {
		assert.Equal(t, 1.0, p)
	}
}

func TestBuildRejectsEmptyGraph(t *testing.T) {
	_, err := Build(nil)
	assert.ErrorIs(t, err, ErrEmptyGraph)

	_, err = Build(&knn.Graph{})
	assert.ErrorIs(t, err, ErrEmptyGraph)
}

func TestSymmetrizeUnionFormula(t *testing.T) {
	g := neighbors(t, randomData(60, 4, 3), 8)
	d, err := Build(g)
	require.NoError(t, err)

	directed := make(map[[2]int]float64)
	for e, p := range d.Matrix.Data {
		directed[[2]int{d.Matrix.Rows[e], d.Matrix.Cols[e]}] = p
	}

	s := Symmetrize(d, WithPruneThreshold(0))
	require.Greater(t, s.Len(), 0)
	for e, w := range s.Data {
		i, j := s.Rows[e], s.Cols[e]
		p, q := directed[[2]int{i, j}], directed[[2]int{j, i}]
		assert.InDelta(t, p+q-p*q, w, 1e-9)
		assert.Equal(t, w, s.At(j, i), "weights must be symmetric")
		assert.NotEqual(t, i, j)
		assert.GreaterOrEqual(t, w, 0.0)
		assert.LessOrEqual(t, w, 1.0)
	}
}

func TestSymmetrizeSortedOutput(t *testing.T) {
	g := neighbors(t, randomData(40, 3, 4), 6)
	d, err := Build(g)
	require.NoError(t, err)

	s := Symmetrize(d)
	for e := 1; e < s.Len(); e++ {
		prev := [2]int{s.Rows[e-1], s.Cols[e-1]}
		cur := [2]int{s.Rows[e], s.Cols[e]}
		assert.True(t, prev[0] < cur[0] || (prev[0] == cur[0] && prev[1] < cur[1]))
	}
}

func TestSymmetrizeHandExample(t *testing.T) {
	d := &Directed{Matrix: &COOMatrix{
		Rows: []int{0, 0, 1, 2},
		Cols: []int{1, 2, 0, 0},
		Data: []float64{0.5, 1.0, 0.25, 0.001},
		NRow: 3,
		NCol: 3,
	}}

	s := Symmetrize(d, WithPruneThreshold(0))
	assert.InDelta(t, 0.5+0.25-0.125, s.At(0, 1), 1e-12)
	assert.InDelta(t, 0.5+0.25-0.125, s.At(1, 0), 1e-12)
	assert.InDelta(t, 1.0, s.At(0, 2), 1e-12)
	assert.InDelta(t, 1.0, s.At(2, 0), 1e-12)
	assert.Zero(t, s.At(1, 2))
	assert.Equal(t, 4, s.Len())

	intersection := Symmetrize(d, WithPruneThreshold(0), WithMixRatio(0))
	assert.InDelta(t, 0.125, intersection.At(0, 1), 1e-12)
}

func TestSymmetrizePrunesOnlyBelowThreshold(t *testing.T) {
	d := &Directed{Matrix: &COOMatrix{
		Rows: []int{0, 1, 2},
		Cols: []int{1, 2, 3},
		Data: []float64{0.2, 0.05, 0.1},
		NRow: 4,
		NCol: 4,
	}}

	s := Symmetrize(d, WithPruneThreshold(0.1))
	assert.Equal(t, 0.2, s.At(0, 1))
	assert.Zero(t, s.At(1, 2))
	assert.Equal(t, 0.1, s.At(2, 3), "edges at the threshold are kept")
	assert.Equal(t, 4, s.Len())
}

func TestSymmetrizeSkipsSelfLoops(t *testing.T) {
	d := &Directed{Matrix: &COOMatrix{
		Rows: []int{0, 0},
		Cols: []int{0, 1},
		Data: []float64{1, 1},
		NRow: 2,
		NCol: 2,
	}}
	s := Symmetrize(d)
	assert.Zero(t, s.At(0, 0))
	assert.Equal(t, 2, s.Len())
}

func TestCOOMatrixHelpers(t *testing.T) {
	m := &COOMatrix{
		Rows: []int{0, 0, 1, 2},
		Cols: []int{1, 2, 0, 0},
		Data: []float64{0.5, 0.25, 0.5, 0.25},
		NRow: 3,
		NCol: 3,
	}
	assert.Equal(t, []float64{0.75, 0.5, 0.25}, m.Degrees())
	assert.Equal(t, 0.5, m.Max())
	assert.Equal(t, 0.25, m.At(0, 2))
	assert.Zero(t, m.At(2, 2))
}
