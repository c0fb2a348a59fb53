// Package fuzzy turns a k-nearest-neighbor graph into fuzzy simplicial sets.
//
// Build calibrates every point's neighbor distances into membership strengths
// in [0, 1], giving a directed graph. Symmetrize merges the two directions of
// every edge with the fuzzy set union p + q - p*q.
package fuzzy

import (
	"errors"
	"io"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/alDuncanson/manifold/knn"
)

// ErrEmptyGraph is returned when the neighbor graph has no points.
var ErrEmptyGraph = errors.New("neighbor graph is empty")

const (
	defaultTolerance  = 1e-5
	defaultIterations = 64
	minKDistScale     = 1e-3
	// MinSigma is the bandwidth used for rows whose distances all equal rho.
	MinSigma = 1e-8
)

// Directed is the directed fuzzy graph along with the per-point calibration.
type Directed struct {
	Matrix *COOMatrix
	Sigmas []float64
	Rhos   []float64
	// Unconverged counts rows whose bandwidth search hit the iteration limit.
	Unconverged int
}

type options struct {
	target     float64
	tolerance  float64
	iterations int
	logger     *slog.Logger
}

// Option configures Build.
type Option func(*options)

// WithTarget overrides the membership sum each row is calibrated to. The
// default is log2(k).
func WithTarget(target float64) Option {
	return func(o *options) { o.target = target }
}

// WithTolerance sets the relative tolerance of the bandwidth search.
func WithTolerance(tolerance float64) Option {
	return func(o *options) { o.tolerance = tolerance }
}

// WithIterations caps the bandwidth search.
func WithIterations(iterations int) Option {
	return func(o *options) { o.iterations = iterations }
}

// WithLogger sets the logger used to report non-converged rows.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Build computes rho and sigma for every point and the membership strength of
// each of its neighbors.
func Build(g *knn.Graph, opts ...Option) (*Directed, error) {
	if g == nil || g.Len() == 0 {
		return nil, ErrEmptyGraph
	}
	o := options{
		tolerance:  defaultTolerance,
		iterations: defaultIterations,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.target <= 0 {
		o.target = math.Log2(float64(max(g.K, 1)))
	}
	if o.iterations < 1 {
		o.iterations = defaultIterations
	}

	sigmas, rhos, unconverged := smoothDistances(g.Distances, o)
	if unconverged > 0 {
		o.logger.Warn("bandwidth search did not converge", "rows", unconverged, "iterations", o.iterations)
	}

	return &Directed{
		Matrix:      memberships(g, sigmas, rhos),
		Sigmas:      sigmas,
		Rhos:        rhos,
		Unconverged: unconverged,
	}, nil
}

// smoothDistances binary-searches, per row, the sigma for which the membership
// sum matches the target.
func smoothDistances(distances [][]float64, o options) (sigmas, rhos []float64, unconverged int) {
	n := len(distances)
	sigmas = make([]float64, n)
	rhos = make([]float64, n)
	globalMean := meanOfRows(distances)

	for i, dists := range distances {
		if len(dists) == 0 {
			sigmas[i] = MinSigma
			continue
		}
		rho := dists[0]
		rhos[i] = rho

		sigma, converged := MinSigma, true
		if !isDegenerate(dists, rho) {
			sigma, converged = searchSigma(dists, rho, o)
		}
		if !converged {
			unconverged++
		}

		// Keep sigma from collapsing relative to the local scale.
		floor := minKDistScale * globalMean
		if rho > 0 {
			floor = minKDistScale * mean(dists)
		}
		sigmas[i] = math.Max(sigma, math.Max(floor, MinSigma))
	}
	return sigmas, rhos, unconverged
}

// isDegenerate reports whether no distance exceeds rho, in which case the sum
// does not depend on sigma.
func isDegenerate(dists []float64, rho float64) bool {
	for _, d := range dists {
		if d-rho > 0 {
			return false
		}
	}
	return true
}

func searchSigma(dists []float64, rho float64, o options) (float64, bool) {
	lo, hi, mid := 0.0, math.Inf(1), 1.0
	for iter := 0; iter < o.iterations; iter++ {
		psum := membershipSum(dists, rho, mid)
		if math.Abs(psum-o.target) <= o.tolerance*o.target {
			return mid, true
		}

		if psum > o.target {
			hi = mid
			mid = (lo + hi) / 2
		} else {
			lo = mid
			if math.IsInf(hi, 1) {
				mid *= 2
			} else {
				mid = (lo + hi) / 2
			}
		}
	}
	return mid, false
}

func membershipSum(dists []float64, rho, sigma float64) float64 {
	var psum float64
	for _, d := range dists {
		psum += math.Exp(-math.Max(0, d-rho) / sigma)
	}
	return psum
}

// memberships lays out p_ij for every neighbor j of i, row by row.
func memberships(g *knn.Graph, sigmas, rhos []float64) *COOMatrix {
	n := g.Len()
	m := &COOMatrix{
		Rows: make([]int, 0, n*g.K),
		Cols: make([]int, 0, n*g.K),
		Data: make([]float64, 0, n*g.K),
		NRow: n,
		NCol: n,
	}
	for i, neighbors := range g.Indices {
		for s, j := range neighbors {
			if j < 0 || j == i {
				continue
			}
			p := math.Exp(-math.Max(0, g.Distances[i][s]-rhos[i]) / sigmas[i])
			m.Rows = append(m.Rows, i)
			m.Cols = append(m.Cols, j)
			m.Data = append(m.Data, p)
		}
	}
	return m
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	return stat.Mean(vals, nil)
}

func meanOfRows(rows [][]float64) float64 {
	var sum float64
	var count int
	for _, row := range rows {
		sum += floats.Sum(row)
		count += len(row)
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}
