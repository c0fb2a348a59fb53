// Package layout produces the starting coordinates of an embedding from the
// symmetric fuzzy graph.
//
// The default spectral layout places every connected component using the
// low-frequency eigenvectors of its normalized graph Laplacian, then arranges
// the components around the origin. Random and PCA layouts are available as
// alternatives and as fallbacks.
package layout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/alDuncanson/manifold/fuzzy"
)

var (
	// ErrInvalidDims is returned when fewer than one output dimension is requested.
	ErrInvalidDims = errors.New("target dimensions must be at least 1")
	// ErrEmptyGraph is returned for graphs without points.
	ErrEmptyGraph = errors.New("graph has no points")
	// ErrUnknownStrategy is returned by ParseStrategy for unrecognized names.
	ErrUnknownStrategy = errors.New("unknown initialization strategy")
	// ErrMissingData is returned when the PCA strategy is used without data.
	ErrMissingData = errors.New("pca initialization needs the input data")
)

// Strategy selects how the initial coordinates are computed.
type Strategy int

const (
	Spectral Strategy = iota
	Random
	PCA
)

func (s Strategy) String() string {
	switch s {
	case Spectral:
		return "spectral"
	case Random:
		return "random"
	case PCA:
		return "pca"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy maps a name such as "spectral" to its Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "spectral":
		return Spectral, nil
	case "random":
		return Random, nil
	case "pca":
		return PCA, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}

const (
	// expansion is the largest absolute coordinate of a spectral or PCA layout.
	expansion      = 10.0
	noiseScale     = 1e-4
	denseThreshold = 1024
	eigenTolerance = 1e-3
	eigenBudget    = 500
)

type options struct {
	strategy       Strategy
	data           [][]float64
	denseThreshold int
	tolerance      float64
	maxIterations  int
	logger         *slog.Logger
}

// Option configures Initialize.
type Option func(*options)

// WithStrategy selects the initialization strategy.
func WithStrategy(s Strategy) Option {
	return func(o *options) { o.strategy = s }
}

// WithData supplies the input vectors, required by the PCA strategy.
func WithData(data [][]float64) Option {
	return func(o *options) { o.data = data }
}

// WithDenseThreshold sets the largest component solved with a dense
// eigendecomposition. Larger components use subspace iteration.
func WithDenseThreshold(n int) Option {
	return func(o *options) { o.denseThreshold = n }
}

// WithTolerance sets the Ritz residual at which subspace iteration stops.
func WithTolerance(tolerance float64) Option {
	return func(o *options) { o.tolerance = tolerance }
}

// WithMaxIterations caps subspace iteration.
func WithMaxIterations(iterations int) Option {
	return func(o *options) { o.maxIterations = iterations }
}

// WithLogger sets the logger used to report fallbacks.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Initialize returns an n x dims starting layout for the points of g.
func Initialize(ctx context.Context, g *fuzzy.COOMatrix, dims int, seed int64, opts ...Option) (*mat.Dense, error) {
	o := options{
		strategy:       Spectral,
		denseThreshold: denseThreshold,
		tolerance:      eigenTolerance,
		maxIterations:  eigenBudget,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if dims < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDims, dims)
	}
	if g == nil || g.NRow == 0 {
		return nil, ErrEmptyGraph
	}

	rng := rand.New(rand.NewSource(seed))
	switch o.strategy {
	case Random:
		return randomLayout(g.NRow, dims, rng), nil
	case PCA:
		if len(o.data) != g.NRow {
			return nil, ErrMissingData
		}
		emb, err := pcaLayout(o.data, dims, rng)
		if err != nil {
			o.logger.Warn("pca initialization failed, using random layout", "error", err)
			return randomLayout(g.NRow, dims, rng), nil
		}
		return emb, nil
	case Spectral:
		return spectralInit(ctx, g, dims, rng, o)
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownStrategy, o.strategy)
	}
}

// Rescale maps every column of emb linearly onto [0, size] in place. Constant
// columns are set to zero.
func Rescale(emb *mat.Dense, size float64) {
	rows, cols := emb.Dims()
	for c := 0; c < cols; c++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for r := 0; r < rows; r++ {
			v := emb.At(r, c)
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		span := hi - lo
		for r := 0; r < rows; r++ {
			if span > 0 {
				emb.Set(r, c, size*(emb.At(r, c)-lo)/span)
			} else {
				emb.Set(r, c, 0)
			}
		}
	}
}

// expand scales emb so that its largest absolute coordinate equals expansion
// and adds a little Gaussian noise to break exact ties.
func expand(emb *mat.Dense, rng *rand.Rand) {
	largest := math.Max(math.Abs(mat.Max(emb)), math.Abs(mat.Min(emb)))
	if largest > 0 {
		emb.Scale(expansion/largest, emb)
	}
	rows, cols := emb.Dims()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			emb.Set(r, c, emb.At(r, c)+rng.NormFloat64()*noiseScale)
		}
	}
}
