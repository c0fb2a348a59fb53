package metric

import (
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatelessMetrics(t *testing.T) {
	tests := []struct {
		name     string
		x, y     []float64
		expected float64
	}{
		{"euclidean", []float64{0, 0, 0}, []float64{3, 4, 0}, 5},
		{"l2", []float64{1, 1}, []float64{1, 1}, 0},
		{"sqeuclidean", []float64{0, 0}, []float64{3, 4}, 25},
		{"reduced_euclidean", []float64{1, 2}, []float64{2, 4}, 5},
		{"manhattan", []float64{1, -1}, []float64{-1, 1}, 4},
		{"chebyshev", []float64{1, 5, 2}, []float64{2, 1, 2}, 4},
		{"canberra", []float64{1, 0}, []float64{3, 0}, 0.5},
		{"braycurtis", []float64{1, 2}, []float64{3, 2}, 2.0 / 8.0},
		{"cosine", []float64{1, 0}, []float64{0, 1}, 1},
		{"cosine", []float64{2, 0}, []float64{5, 0}, 0},
		{"cosine", []float64{0, 0}, []float64{0, 0}, 0},
		{"correlation", []float64{1, 2, 3}, []float64{2, 4, 6}, 0},
		{"correlation", []float64{1, 2, 3}, []float64{3, 2, 1}, 2},
		{"hamming", []float64{1, 0, 1, 0}, []float64{1, 1, 1, 1}, 0.5},
		{"jaccard", []float64{1, 1, 0}, []float64{1, 0, 1}, 2.0 / 3.0},
		{"jaccard", []float64{0, 0}, []float64{0, 0}, 0},
		{"dice", []float64{1, 1, 0}, []float64{1, 0, 1}, 2.0 / 4.0},
		{"kulsinski", []float64{1, 1, 0}, []float64{1, 0, 1}, (2.0 - 1 + 3) / (2.0 + 3)},
		{"rogerstanimoto", []float64{1, 1, 0, 0}, []float64{1, 0, 1, 0}, 4.0 / 6.0},
		{"sokalmichener", []float64{1, 1, 0, 0}, []float64{1, 0, 1, 0}, 4.0 / 6.0},
		{"russellrao", []float64{1, 1, 0, 0}, []float64{1, 0, 1, 0}, 3.0 / 4.0},
		{"russellrao", []float64{1, 0}, []float64{1, 0}, 0},
		{"sokalsneath", []float64{1, 1, 0}, []float64{1, 0, 1}, 2.0 / 2.5},
		{"yule", []float64{1, 1, 0, 0}, []float64{1, 0, 1, 0}, 1},
		{"yule", []float64{1, 0}, []float64{1, 0}, 0},
		{"matching", []float64{1, 2, 0}, []float64{3, 0, 0}, 1.0 / 3.0},
		{"hellinger", []float64{1, 0}, []float64{0, 1}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Get(tt.name, Params{})
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, m.Distance(tt.x, tt.y), 1e-9)
			assert.InDelta(t, tt.expected, m.Distance(tt.y, tt.x), 1e-9, "metric should be symmetric")
		})
	}
}

func TestMinkowski(t *testing.T) {
	m, err := Get("minkowski", Params{P: 3})
	require.NoError(t, err)
	assert.InDelta(t, math.Cbrt(16), m.Distance([]float64{0, 0}, []float64{2, 2}), 1e-9)

	m, err = Get("minkowski", Params{})
	require.NoError(t, err)
	assert.InDelta(t, 5, m.Distance([]float64{0, 0}, []float64{3, 4}), 1e-9)

	_, err = Get("minkowski", Params{P: 0.5})
	assert.ErrorIs(t, err, ErrIncompatible)
}

func TestWeightedMinkowski(t *testing.T) {
	m, err := Get("wminkowski", Params{P: 2, Weights: []float64{4, 0}})
	require.NoError(t, err)
	assert.InDelta(t, 2, m.Distance([]float64{0, 0}, []float64{1, 100}), 1e-9)

	require.NoError(t, Check(m, 2))
	assert.ErrorIs(t, Check(m, 3), ErrIncompatible)

	_, err = Get("weighted_minkowski", Params{})
	assert.ErrorIs(t, err, ErrIncompatible)
}

func TestHaversine(t *testing.T) {
	m, err := Get("haversine", Params{})
	require.NoError(t, err)

	// quarter of a great circle along the equator
	d := m.Distance([]float64{0, 0}, []float64{0, math.Pi / 2})
	assert.InDelta(t, math.Pi/2, d, 1e-9)

	assert.NoError(t, Check(m, 2))

	err = Check(m, 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIncompatible))
	var incompatible *IncompatibleError
	require.ErrorAs(t, err, &incompatible)
	assert.Equal(t, "haversine", incompatible.Metric)
	assert.Equal(t, 3, incompatible.Dimension)
}

func TestMahalanobis(t *testing.T) {
	m, err := Get("mahalanobis", Params{InverseCovariance: [][]float64{{1, 0}, {0, 0.25}}})
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(1+1), m.Distance([]float64{0, 0}, []float64{1, 2}), 1e-9)

	assert.NoError(t, Check(m, 2))
	assert.ErrorIs(t, Check(m, 5), ErrIncompatible)

	_, err = Get("mahalanobis", Params{})
	assert.ErrorIs(t, err, ErrIncompatible)

	_, err = Get("mahalanobis", Params{InverseCovariance: [][]float64{{1, 2}, {0, 1}}})
	assert.ErrorIs(t, err, ErrIncompatible, "asymmetric matrix must be rejected")
}

func TestStandardisedEuclidean(t *testing.T) {
	m, err := Get("seuclidean", Params{Variances: []float64{4, 1}})
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(1+1), m.Distance([]float64{0, 0}, []float64{2, 1}), 1e-9)
	assert.ErrorIs(t, Check(m, 3), ErrIncompatible)

	_, err = Get("standardised_euclidean", Params{Variances: []float64{0}})
	assert.ErrorIs(t, err, ErrIncompatible)
}

func TestUnknownMetric(t *testing.T) {
	_, err := Get("no-such-metric", Params{})
	assert.ErrorIs(t, err, ErrUnknownMetric)
}

func TestCheckRejectsEmptyVectors(t *testing.T) {
	m, err := Get("euclidean", Params{})
	require.NoError(t, err)
	assert.ErrorIs(t, Check(m, 0), ErrIncompatible)
}

func TestHellingerIgnoresNegativeComponents(t *testing.T) {
	assert.InDelta(t, 1, Hellinger([]float64{4, -1}, []float64{-2, 1}), 1e-12)
	assert.InDelta(t, math.Sqrt(1-2/math.Sqrt(8)), Hellinger([]float64{1, -3, 1}, []float64{1, 2, 1}), 1e-12)
	assert.Zero(t, Hellinger([]float64{-1, -2}, []float64{-3, 0}))

	rng := rand.New(rand.NewSource(7))
	points := make([][]float64, 40)
	for i := range points {
		points[i] = make([]float64, 6)
		for d := range points[i] {
			points[i][d] = rng.NormFloat64()
		}
	}
	for i := range points {
		for j := range points {
			d := Hellinger(points[i], points[j])
			require.False(t, math.IsNaN(d), "pair %d,%d", i, j)
			assert.GreaterOrEqual(t, d, 0.0)
			assert.LessOrEqual(t, d, 1.0+1e-12)
		}
	}
}

func TestAngularFlag(t *testing.T) {
	for _, name := range []string{"cosine", "correlation"} {
		m, err := Get(name, Params{})
		require.NoError(t, err)
		assert.True(t, m.IsAngular(), name)
	}
	for _, name := range []string{"euclidean", "l1", "haversine", "jaccard"} {
		m, err := Get(name, Params{})
		require.NoError(t, err)
		assert.False(t, m.IsAngular(), name)
	}
}

func TestRegistryCustomMetric(t *testing.T) {
	r := NewRegistry()
	r.Register("Constant", func(Params) (Metric, error) {
		return New("constant", func(x, y []float64) float64 { return 7 }, false), nil
	})

	m, err := r.Get("constant", Params{})
	require.NoError(t, err)
	assert.Equal(t, 7.0, m.Distance(nil, nil))
	assert.Contains(t, r.Names(), "constant")

	_, err = Get("constant", Params{})
	assert.ErrorIs(t, err, ErrUnknownMetric, "custom metrics must not leak into the default registry")
}

func TestMetricsAreSafeForConcurrentUse(t *testing.T) {
	m, err := Get("mahalanobis", Params{InverseCovariance: [][]float64{{2, 0.5}, {0.5, 1}}})
	require.NoError(t, err)
	want := m.Distance([]float64{1, 2}, []float64{3, -1})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				assert.Equal(t, want, m.Distance([]float64{1, 2}, []float64{3, -1}))
			}
		}()
	}
	wg.Wait()
}

func TestCovarianceHelpers(t *testing.T) {
	data := [][]float64{
		{1, 2},
		{2, 1},
		{3, 5},
		{4, 3},
		{5, 6},
	}

	variances, err := Variances(data)
	require.NoError(t, err)
	require.Len(t, variances, 2)
	assert.InDelta(t, 2.5, variances[0], 1e-9)

	inverse, err := InverseCovariance(data)
	require.NoError(t, err)
	require.Len(t, inverse, 2)
	assert.InDelta(t, inverse[0][1], inverse[1][0], 1e-9)

	m, err := Get("mahalanobis", Params{InverseCovariance: inverse})
	require.NoError(t, err)
	assert.Greater(t, m.Distance(data[0], data[4]), 0.0)

	_, err = InverseCovariance([][]float64{{1, 2}, {2, 4}})
	assert.ErrorIs(t, err, ErrSingularCovariance)
}
