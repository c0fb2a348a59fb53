// Package knn computes k-nearest-neighbor graphs over a dataset under any
// metric.Metric.
//
// Small datasets are searched exactly by comparing every pair of points. Larger
// datasets seed candidate lists from a random-projection forest and refine them
// with NN-descent, which repeatedly checks the neighbors of each point's
// neighbors until few lists change.
package knn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/alDuncanson/manifold/metric"
)

var (
	// ErrInvalidK is returned when k is outside [1, n).
	ErrInvalidK = errors.New("invalid number of neighbors")
	// ErrEmptyDataset is returned for datasets with fewer than two points.
	ErrEmptyDataset = errors.New("dataset needs at least two points")
	// ErrRaggedDataset is returned when rows differ in length.
	ErrRaggedDataset = errors.New("dataset rows differ in length")
)

// Graph holds the k nearest neighbors of every point, ascending by distance
// with ties broken by ascending index. A point is never its own neighbor.
type Graph struct {
	Indices   [][]int
	Distances [][]float64
	K         int
}

// Len returns the number of points in the graph.
func (g *Graph) Len() int { return len(g.Indices) }

// Overlap returns, per point, the fraction of neighbors shared with other.
func (g *Graph) Overlap(other *Graph) []float64 {
	out := make([]float64, len(g.Indices))
	for i, row := range g.Indices {
		if i >= len(other.Indices) || len(row) == 0 {
			continue
		}
		seen := make(map[int]struct{}, len(other.Indices[i]))
		for _, j := range other.Indices[i] {
			seen[j] = struct{}{}
		}
		shared := 0
		for _, j := range row {
			if _, ok := seen[j]; ok {
				shared++
			}
		}
		out[i] = float64(shared) / float64(len(row))
	}
	return out
}

const (
	defaultExactThreshold = 4096
	defaultMaxIterations  = 10
	defaultDelta          = 0.001
	maxCandidatesCap      = 60
)

type options struct {
	seed           int64
	threads        int
	exactThreshold int
	trees          int
	leafSize       int
	maxIterations  int
	delta          float64
	clampK         bool
	logger         *slog.Logger
}

// Option configures a Query.
type Option func(*options)

// WithSeed sets the seed of every random stream used by the approximate search.
func WithSeed(seed int64) Option {
	return func(o *options) { o.seed = seed }
}

// WithThreads sets the number of worker goroutines. Values below 1 mean 1.
func WithThreads(threads int) Option {
	return func(o *options) { o.threads = threads }
}

// WithExactThreshold sets the dataset size from which the approximate search
// is used. Zero forces the approximate search for every size.
func WithExactThreshold(n int) Option {
	return func(o *options) { o.exactThreshold = n }
}

// WithTrees sets the number of random-projection trees.
func WithTrees(trees int) Option {
	return func(o *options) { o.trees = trees }
}

// WithLeafSize sets the maximum number of points in a tree leaf.
func WithLeafSize(size int) Option {
	return func(o *options) { o.leafSize = size }
}

// WithMaxIterations caps the number of NN-descent rounds.
func WithMaxIterations(iterations int) Option {
	return func(o *options) { o.maxIterations = iterations }
}

// WithDelta sets the NN-descent convergence threshold as a fraction of n*k.
func WithDelta(delta float64) Option {
	return func(o *options) { o.delta = delta }
}

// WithClampK lowers k to n-1 instead of failing when k >= n.
func WithClampK(clamp bool) Option {
	return func(o *options) { o.clampK = clamp }
}

// WithLogger sets the logger for warnings and iteration progress.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func defaultOptions() options {
	return options{
		seed:           42,
		threads:        1,
		exactThreshold: defaultExactThreshold,
		maxIterations:  defaultMaxIterations,
		delta:          defaultDelta,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Query returns the k nearest neighbors of every row of data under m.
func Query(ctx context.Context, data [][]float64, k int, m metric.Metric, opts ...Option) (*Graph, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.threads < 1 {
		o.threads = 1
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	n := len(data)
	if n < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrEmptyDataset, n)
	}
	dim := len(data[0])
	for i, row := range data {
		if len(row) != dim {
			return nil, fmt.Errorf("%w: row %d has %d components, want %d", ErrRaggedDataset, i, len(row), dim)
		}
	}
	if err := metric.Check(m, dim); err != nil {
		return nil, err
	}

	k, err := resolveK(k, n, o)
	if err != nil {
		return nil, err
	}

	if n < o.exactThreshold {
		return bruteForce(ctx, data, k, m, o.threads)
	}
	return approximate(ctx, data, k, m, o)
}

func resolveK(k, n int, o options) (int, error) {
	if k < 1 {
		return 0, fmt.Errorf("%w: k=%d", ErrInvalidK, k)
	}
	if k >= n {
		if !o.clampK {
			return 0, fmt.Errorf("%w: k=%d must be below the number of points (%d)", ErrInvalidK, k, n)
		}
		o.logger.Warn("clamping number of neighbors", "requested", k, "clamped", n-1)
		k = n - 1
	}
	return k, nil
}

func approximate(ctx context.Context, data [][]float64, k int, m metric.Metric, o options) (*Graph, error) {
	n := len(data)
	trees := o.trees
	if trees <= 0 {
		trees = defaultTrees(n)
	}
	leafSize := o.leafSize
	if leafSize <= 0 {
		leafSize = max(2*k, 10)
	}

	leaves, err := buildForest(ctx, data, trees, leafSize, m.IsAngular(), o.seed, o.threads)
	if err != nil {
		return nil, err
	}

	heap := newNeighborHeap(n, k)
	initFromLeaves(heap, data, m, leaves)
	fillRandom(heap, data, m, o.seed)
	o.logger.Debug("random projection forest built", "trees", trees, "leaves", len(leaves), "leaf_size", leafSize)

	if err := nnDescent(ctx, heap, data, m, o); err != nil {
		return nil, err
	}
	return heap.graph(), nil
}

// defaultTrees grows slowly with n and stays within [8, 64].
func defaultTrees(n int) int {
	trees := 5 + int(math.Round(math.Sqrt(float64(n))/20))
	return min(max(trees, 8), 64)
}

func (h *neighborHeap) graph() *Graph {
	g := &Graph{
		Indices:   make([][]int, h.n),
		Distances: make([][]float64, h.n),
		K:         h.k,
	}
	for i := 0; i < h.n; i++ {
		indices, dists, _ := h.row(i)
		g.Indices[i], g.Distances[i] = sortedRow(indices, dists)
	}
	return g
}
