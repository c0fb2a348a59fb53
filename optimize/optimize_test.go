package optimize

import (
	"bytes"
	"context"
	"log/slog"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/alDuncanson/manifold/fuzzy"
)

func TestFitABMatchesReferenceCurve(t *testing.T) {
	a, b, converged := FitAB(1.0, 0.1)
	assert.True(t, converged)
	assert.InDelta(t, 1.577, a, 0.05)
	assert.InDelta(t, 0.895, b, 0.05)
}

func TestFitABShapesTheCurve(t *testing.T) {
	psi := func(a, b, x float64) float64 { return 1 / (1 + a*math.Pow(x, 2*b)) }

	for _, tc := range []struct{ spread, minDist float64 }{
		{1, 0.1},
		{1, 0.5},
		{2, 0.25},
		{0.5, 0.0},
	} {
		a, b, _ := FitAB(tc.spread, tc.minDist)
		require.Greater(t, a, 0.0)
		require.Greater(t, b, 0.0)
		far := tc.minDist + 3*tc.spread
		assert.Greater(t, psi(a, b, tc.minDist/2), psi(a, b, far))
		assert.Less(t, psi(a, b, far), 0.2)
	}
}

func TestFallbackABPassesThroughAnchors(t *testing.T) {
	spread, minDist := 1.0, 0.1
	a, b := fallbackAB(spread, minDist)

	psi := func(x float64) float64 { return 1 / (1 + a*math.Pow(x, 2*b)) }
	x1, x2 := minDist+spread/2, minDist+2*spread
	assert.InDelta(t, math.Exp(-(x1-minDist)/spread), psi(x1), 1e-9)
	assert.InDelta(t, math.Exp(-(x2-minDist)/spread), psi(x2), 1e-9)
}

func TestSchedule(t *testing.T) {
	s := NewSchedule([]float64{1, 0.5, 0.001}, 200)
	assert.Equal(t, []float64{1, 2, -1}, s.EpochsPerSample)
	assert.Equal(t, 2, s.Active())

	fired := make([]int, 3)
	for epoch := 0; epoch < 200; epoch++ {
		for e := range fired {
			if s.Due(e, epoch) {
				fired[e]++
				s.Advance(e)
			}
		}
	}
	assert.Equal(t, []int{199, 99, 0}, fired)
}

func TestDefaultEpochs(t *testing.T) {
	assert.Equal(t, 500, DefaultEpochs(100))
	assert.Equal(t, 500, DefaultEpochs(10000))
	assert.Equal(t, 200, DefaultEpochs(10001))
}

func TestClip(t *testing.T) {
	assert.Equal(t, 4.0, clip(10))
	assert.Equal(t, -4.0, clip(-10))
	assert.Equal(t, 1.5, clip(1.5))
}

// twoRings returns a graph of two disjoint cycles and a random start layout.
func twoRings(size int, seed int64) (*fuzzy.COOMatrix, *mat.Dense) {
	n := 2 * size
	g := &fuzzy.COOMatrix{NRow: n, NCol: n}
	for r := 0; r < 2; r++ {
		base := r * size
		for i := 0; i < size; i++ {
			prev := base + (i+size-1)%size
			next := base + (i+1)%size
			lo, hi := min(prev, next), max(prev, next)
			g.Rows = append(g.Rows, base+i, base+i)
			g.Cols = append(g.Cols, lo, hi)
			g.Data = append(g.Data, 1, 0.5)
		}
	}
	rng := rand.New(rand.NewSource(seed))
	data := make([]float64, n*2)
	for i := range data {
		data[i] = rng.Float64() * 10
	}
	return g, mat.NewDense(n, 2, data)
}

func TestOptimizeIsDeterministic(t *testing.T) {
	g, start := twoRings(20, 1)

	first, err := Optimize(context.Background(), g, mat.DenseCopyOf(start), WithEpochs(50), WithSeed(3))
	require.NoError(t, err)
	second, err := Optimize(context.Background(), g, mat.DenseCopyOf(start), WithEpochs(50), WithSeed(3))
	require.NoError(t, err)
	assert.True(t, mat.Equal(first, second))
	assert.False(t, mat.Equal(first, start))
}

func TestOptimizePartitionedIsReproducible(t *testing.T) {
	g, start := twoRings(30, 2)

	first, err := Optimize(context.Background(), g, mat.DenseCopyOf(start), WithEpochs(40), WithThreads(4))
	require.NoError(t, err)
	second, err := Optimize(context.Background(), g, mat.DenseCopyOf(start), WithEpochs(40), WithThreads(4))
	require.NoError(t, err)
	assert.True(t, mat.Equal(first, second))
	assert.True(t, isFinite(first))
}

func TestOptimizePullsNeighborsTogether(t *testing.T) {
	g, start := twoRings(25, 5)

	meanEdgeLength := func(m *mat.Dense) float64 {
		var sum float64
		for e := range g.Data {
			sum += math.Sqrt(squaredDistance(m.RawRowView(g.Rows[e]), m.RawRowView(g.Cols[e])))
		}
		return sum / float64(g.Len())
	}
	before := meanEdgeLength(start)

	emb, err := Optimize(context.Background(), g, mat.DenseCopyOf(start), WithEpochs(200))
	require.NoError(t, err)
	assert.Less(t, meanEdgeLength(emb), before)
}

func TestOptimizeDetectsNumericInstability(t *testing.T) {
	g, start := twoRings(10, 3)

	_, err := Optimize(context.Background(), g, start, WithEpochs(10), WithAB(math.Inf(1), 1))
	assert.ErrorIs(t, err, ErrNumericInstability)

	start.Set(0, 0, math.NaN())
	_, err = Optimize(context.Background(), g, start, WithEpochs(10))
	assert.ErrorIs(t, err, ErrNumericInstability)
}

func TestOptimizeHonoursCancellation(t *testing.T) {
	g, start := twoRings(10, 4)
	ctx, cancel := context.WithCancel(context.Background())

	emb, err := Optimize(ctx, g, start, WithEpochs(100), WithEpochCallback(func(epoch, epochs int, _ mat.Matrix) {
		if epoch == 5 {
			cancel()
		}
	}))
	assert.Nil(t, emb)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOptimizeValidatesInput(t *testing.T) {
	g, _ := twoRings(10, 5)

	_, err := Optimize(context.Background(), g, mat.NewDense(3, 2, nil))
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = Optimize(context.Background(), g, mat.NewDense(20, 2, nil), WithAB(-1, 1))
	assert.ErrorIs(t, err, ErrInvalidCurve)
}

func TestOptimizeCallbackAndLogging(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	g, start := twoRings(10, 6)

	calls := 0
	_, err := Optimize(context.Background(), g, start, WithEpochs(20), WithLogger(logger),
		WithEpochCallback(func(epoch, epochs int, m mat.Matrix) {
			calls++
			assert.Equal(t, calls, epoch)
			assert.Equal(t, 20, epochs)
		}))
	require.NoError(t, err)
	assert.Equal(t, 20, calls)
	assert.Contains(t, logs.String(), "epoch complete")
}

func TestCoincidentNegativeSamplesArePushedApart(t *testing.T) {
	k := kernel{a: 1.577, b: 0.895, gamma: 1}
	current := []float64{1, 1}
	k.push(current, []float64{1, 1}, 0.5)
	assert.Equal(t, []float64{3, 3}, current)
}

func BenchmarkOptimize(b *testing.B) {
	g, start := twoRings(500, 1)
	b.ResetTimer()
	for range b.N {
		_, _ = Optimize(context.Background(), g, mat.DenseCopyOf(start), WithEpochs(50))
	}
}
