// Package optimize refines a low-dimensional embedding so that its pairwise
// similarities match the weights of the symmetric fuzzy graph.
//
// Optimization is stochastic gradient descent over the cross entropy between
// the graph and the low-dimensional similarities 1 / (1 + a*d^(2b)). Edges are
// sampled in proportion to their weight, and the repulsive term is
// approximated with negative sampling.
package optimize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/alDuncanson/manifold/fuzzy"
)

var (
	// ErrNumericInstability is returned when a coordinate becomes NaN or Inf.
	ErrNumericInstability = errors.New("numeric instability: embedding contains NaN or Inf")
	// ErrCancelled is returned when the context is done before the last epoch.
	ErrCancelled = errors.New("optimization cancelled")
	// ErrShapeMismatch is returned when the embedding and graph disagree on the number of points.
	ErrShapeMismatch = errors.New("embedding rows do not match graph size")
	// ErrInvalidCurve is returned for non-positive curve parameters.
	ErrInvalidCurve = errors.New("curve parameters a and b must be positive")
)

const (
	gradientClip    = 4.0
	repulsionOffset = 0.001
)

// DefaultEpochs is the epoch count used when none is configured: 500 for
// datasets of up to 10000 points, 200 above that.
func DefaultEpochs(n int) int {
	if n <= 10000 {
		return 500
	}
	return 200
}

// EpochFunc is called after every completed epoch with a read-only view of the
// current embedding.
type EpochFunc func(epoch, epochs int, embedding mat.Matrix)

type options struct {
	epochs          int
	learningRate    float64
	negatives       int
	repulsion       float64
	a, b            float64
	spread, minDist float64
	seed            int64
	threads         int
	logger          *slog.Logger
	onEpoch         EpochFunc
}

// Option configures Optimize.
type Option func(*options)

// WithEpochs sets the number of epochs. Zero selects DefaultEpochs.
func WithEpochs(epochs int) Option {
	return func(o *options) { o.epochs = epochs }
}

// WithLearningRate sets the initial learning rate, which decays linearly to zero.
func WithLearningRate(rate float64) Option {
	return func(o *options) { o.learningRate = rate }
}

// WithNegativeSamples sets the number of negative samples per positive sample.
func WithNegativeSamples(m int) Option {
	return func(o *options) { o.negatives = m }
}

// WithRepulsionStrength weights the negative samples.
func WithRepulsionStrength(gamma float64) Option {
	return func(o *options) { o.repulsion = gamma }
}

// WithAB fixes the curve parameters instead of fitting them.
func WithAB(a, b float64) Option {
	return func(o *options) { o.a, o.b = a, b }
}

// WithCurve sets the spread and minimum distance the curve is fitted to.
func WithCurve(spread, minDist float64) Option {
	return func(o *options) { o.spread, o.minDist = spread, minDist }
}

// WithSeed seeds negative sampling.
func WithSeed(seed int64) Option {
	return func(o *options) { o.seed = seed }
}

// WithThreads sets the number of workers. With more than one worker the points
// are partitioned; see Optimize.
func WithThreads(threads int) Option {
	return func(o *options) { o.threads = threads }
}

// WithLogger sets the logger for warnings and progress.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithEpochCallback registers fn to run after every epoch.
func WithEpochCallback(fn EpochFunc) Option {
	return func(o *options) { o.onEpoch = fn }
}

// Optimize runs SGD on emb in place and returns it. On error the contents of
// emb are unspecified and must be discarded.
//
// With one thread the result is fully determined by the seed. With more,
// points are split into contiguous ranges, one per worker. A worker samples
// the edges whose head it owns, moves its own points immediately and reads
// other points from a snapshot taken at the start of the epoch. Moves of
// points owned by other workers are buffered and merged at the end of the
// epoch in worker order. Results are reproducible for a fixed thread count
// but differ between thread counts.
func Optimize(ctx context.Context, g *fuzzy.COOMatrix, emb *mat.Dense, opts ...Option) (*mat.Dense, error) {
	o := options{
		learningRate: 1,
		negatives:    5,
		repulsion:    1,
		spread:       1,
		minDist:      0.1,
		seed:         42,
		threads:      1,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	n, dims := emb.Dims()
	if n != g.NRow {
		return nil, fmt.Errorf("%w: %d rows, graph has %d points", ErrShapeMismatch, n, g.NRow)
	}
	if o.epochs <= 0 {
		o.epochs = DefaultEpochs(n)
	}
	if o.threads < 1 {
		o.threads = 1
	}
	if o.negatives < 0 {
		o.negatives = 0
	}
	if o.a == 0 && o.b == 0 {
		var converged bool
		o.a, o.b, converged = FitAB(o.spread, o.minDist)
		if !converged {
			o.logger.Warn("curve fit did not converge, using closed-form parameters", "a", o.a, "b", o.b)
		}
	}
	if !(o.a > 0) || !(o.b > 0) {
		return nil, fmt.Errorf("%w: a=%v b=%v", ErrInvalidCurve, o.a, o.b)
	}
	if !isFinite(emb) {
		return nil, fmt.Errorf("%w: initial embedding", ErrNumericInstability)
	}
	if n < 2 || g.Len() == 0 {
		return emb, nil
	}

	sched := NewSchedule(g.Data, o.epochs)
	o.logger.Debug("optimizing layout", "points", n, "dims", dims, "edges", sched.Active(),
		"epochs", o.epochs, "a", o.a, "b", o.b, "threads", o.threads)

	var run epochRunner
	if o.threads == 1 {
		run = newSerialRunner(g, emb, sched, o)
	} else {
		run = newPartitionedRunner(g, emb, sched, o)
	}

	report := max(o.epochs/10, 1)
	for epoch := 0; epoch < o.epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCancelled, err)
		}

		alpha := o.learningRate * (1 - float64(epoch)/float64(o.epochs))
		run(epoch, alpha)
		if !isFinite(emb) {
			return nil, fmt.Errorf("%w: epoch %d", ErrNumericInstability, epoch)
		}

		if o.onEpoch != nil {
			o.onEpoch(epoch+1, o.epochs, emb)
		}
		if (epoch+1)%report == 0 {
			o.logger.Debug("epoch complete", "epoch", epoch+1, "of", o.epochs)
		}
	}
	return emb, nil
}

func isFinite(m *mat.Dense) bool {
	raw := m.RawMatrix()
	for r := 0; r < raw.Rows; r++ {
		for _, v := range raw.Data[r*raw.Stride : r*raw.Stride+raw.Cols] {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

// clip constrains gradient values to prevent explosive updates.
func clip(val float64) float64 {
	if val > gradientClip {
		return gradientClip
	}
	if val < -gradientClip {
		return -gradientClip
	}
	return val
}
