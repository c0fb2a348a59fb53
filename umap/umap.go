// Package umap projects high-dimensional vectors into a low-dimensional
// embedding that preserves local neighborhood structure.
//
// # UMAP (Uniform Manifold Approximation and Projection) Overview
//
// UMAP is a nonlinear dimensionality reduction technique that preserves both local and global
// structure better than linear methods like PCA. A run:
//
//  1. Finds the k nearest neighbors of every point (package knn)
//  2. Converts neighbor distances to fuzzy membership strengths (package fuzzy)
//  3. Merges the directed memberships into a symmetric graph (package fuzzy)
//  4. Computes an initial layout from the graph spectrum (package layout)
//  5. Optimizes the layout via stochastic gradient descent with negative sampling (package optimize)
//
// Reference: McInnes, L., Healy, J., & Melville, J. (2018). UMAP: Uniform Manifold
// Approximation and Projection for Dimension Reduction. https://arxiv.org/abs/1802.03426
package umap

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/alDuncanson/manifold/fuzzy"
	"github.com/alDuncanson/manifold/knn"
	"github.com/alDuncanson/manifold/layout"
	"github.com/alDuncanson/manifold/metric"
	"github.com/alDuncanson/manifold/optimize"
)

// layoutScale is the side of the box the initial layout is rescaled into.
const layoutScale = 10.0

// Result is the outcome of Fit: the embedding and the intermediate graphs.
type Result struct {
	RunID     string
	Embedding *mat.Dense       // n x Components
	Neighbors *knn.Graph       // High-dimensional k-nearest-neighbor graph
	Graph     *fuzzy.COOMatrix // Symmetric fuzzy graph the layout was optimized against
	A, B      float64          // Curve parameters of the low-dimensional similarity
	Epochs    int
}

// Rows copies the embedding into one slice per point.
func (r *Result) Rows() [][]float64 {
	n, dims := r.Embedding.Dims()
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, dims)
		copy(rows[i], r.Embedding.RawRowView(i))
	}
	return rows
}

// FitTransform embeds data and returns one row of cfg.Components coordinates
// per input vector, in input order.
func FitTransform(ctx context.Context, data [][]float64, cfg Config) ([][]float64, error) {
	res, err := Fit(ctx, data, cfg)
	if err != nil {
		return nil, err
	}
	return res.Rows(), nil
}

// Fit validates cfg against data, then runs the full pipeline. Input errors are
// reported before any computation starts. A cancelled or failed run returns no
// embedding.
func Fit(ctx context.Context, data [][]float64, cfg Config) (*Result, error) {
	m, err := validate(data, cfg)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = NoopLogger()
	}
	runID := uuid.NewString()
	logger = logger.WithRun(runID)

	n := len(data)
	threads := max(cfg.Threads, 1)
	epochs := cfg.Epochs
	if epochs == 0 {
		epochs = optimize.DefaultEpochs(n)
	}
	logger.DebugContext(ctx, "fit started", "points", n, "dims", len(data[0]),
		"neighbors", cfg.Neighbors, "metric", cfg.Metric, "components", cfg.Components, "threads", threads)

	start := time.Now()
	neighbors, err := knn.Query(ctx, data, cfg.Neighbors, m,
		knn.WithSeed(cfg.Seed),
		knn.WithThreads(threads),
		knn.WithExactThreshold(cfg.ExactKNNThreshold),
		knn.WithClampK(cfg.ClampNeighbors),
		knn.WithLogger(logger.Logger),
	)
	logger.LogStage(ctx, "neighbors", start, err)
	if err != nil {
		return nil, translateError(err)
	}

	start = time.Now()
	directed, err := fuzzy.Build(neighbors, fuzzy.WithLogger(logger.Logger))
	if err != nil {
		logger.LogStage(ctx, "fuzzy set", start, err)
		return nil, translateError(err)
	}
	graph := fuzzy.Symmetrize(directed)
	logger.LogStage(ctx, "fuzzy set", start, nil)

	start = time.Now()
	emb, err := layout.Initialize(ctx, graph, cfg.Components, cfg.Seed,
		layout.WithStrategy(cfg.Init),
		layout.WithData(data),
		layout.WithLogger(logger.Logger),
	)
	logger.LogStage(ctx, "initialize", start, err)
	if err != nil {
		return nil, translateError(err)
	}
	layout.Rescale(emb, layoutScale)

	a, b, converged := optimize.FitAB(cfg.Spread, cfg.MinDist)
	if !converged {
		logger.WarnContext(ctx, "curve fit did not converge, using closed-form parameters", "a", a, "b", b)
	}

	start = time.Now()
	emb, err = optimize.Optimize(ctx, graph, emb,
		optimize.WithEpochs(epochs),
		optimize.WithLearningRate(cfg.LearningRate),
		optimize.WithNegativeSamples(cfg.NegativeSampleRate),
		optimize.WithRepulsionStrength(cfg.RepulsionStrength),
		optimize.WithAB(a, b),
		optimize.WithSeed(cfg.Seed),
		optimize.WithThreads(threads),
		optimize.WithLogger(logger.Logger),
		optimize.WithEpochCallback(cfg.OnEpoch),
	)
	logger.LogStage(ctx, "optimize", start, err)
	if err != nil {
		return nil, translateError(err)
	}

	return &Result{
		RunID:     runID,
		Embedding: emb,
		Neighbors: neighbors,
		Graph:     graph,
		A:         a,
		B:         b,
		Epochs:    epochs,
	}, nil
}

// validate checks data and cfg and resolves the metric.
func validate(data [][]float64, cfg Config) (metric.Metric, error) {
	n := len(data)
	if n == 0 {
		return nil, invalid("dataset", "no vectors")
	}
	if n < 2 {
		return nil, invalid("dataset", "need at least two vectors, got %d", n)
	}
	dim := len(data[0])
	if dim == 0 {
		return nil, invalid("dataset", "vectors have no components")
	}
	for i, row := range data {
		if len(row) != dim {
			return nil, invalid("dataset", "vector %d has %d components, want %d", i, len(row), dim)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, invalid("dataset", "vector %d component %d is not finite", i, j)
			}
		}
	}

	switch {
	case cfg.Components < 1:
		return nil, invalid("components", "must be at least 1, got %d", cfg.Components)
	case cfg.Neighbors < 1:
		return nil, invalid("neighbors", "must be at least 1, got %d", cfg.Neighbors)
	case cfg.Neighbors >= n && !cfg.ClampNeighbors:
		return nil, invalid("neighbors", "must be below the number of vectors (%d), got %d", n, cfg.Neighbors)
	case !(cfg.Spread > 0) || math.IsInf(cfg.Spread, 0):
		return nil, invalid("spread", "must be positive, got %v", cfg.Spread)
	case !(cfg.MinDist >= 0) || cfg.MinDist > cfg.Spread:
		return nil, invalid("min_dist", "must be in [0, spread], got %v", cfg.MinDist)
	case !(cfg.LearningRate > 0) || math.IsInf(cfg.LearningRate, 0):
		return nil, invalid("learning_rate", "must be positive, got %v", cfg.LearningRate)
	case cfg.NegativeSampleRate < 0:
		return nil, invalid("negative_sample_rate", "must not be negative, got %d", cfg.NegativeSampleRate)
	case !(cfg.RepulsionStrength >= 0) || math.IsInf(cfg.RepulsionStrength, 0):
		return nil, invalid("repulsion_strength", "must not be negative, got %v", cfg.RepulsionStrength)
	case cfg.Epochs < 0:
		return nil, invalid("epochs", "must not be negative, got %d", cfg.Epochs)
	case cfg.Threads < 0:
		return nil, invalid("threads", "must not be negative, got %d", cfg.Threads)
	case cfg.Init < layout.Spectral || cfg.Init > layout.PCA:
		return nil, invalid("init", "unknown strategy %v", cfg.Init)
	}

	var (
		m   metric.Metric
		err error
	)
	if cfg.Registry != nil {
		m, err = cfg.Registry.Get(cfg.Metric, cfg.MetricParams)
	} else {
		m, err = metric.Get(cfg.Metric, cfg.MetricParams)
	}
	if err != nil {
		return nil, err
	}
	if err := metric.Check(m, dim); err != nil {
		return nil, err
	}
	return m, nil
}
