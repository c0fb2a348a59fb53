// Package metric provides the distance functions used to build the
// high-dimensional neighbor graph.
//
// Metrics are immutable values. Parametrised metrics (Minkowski power,
// per-feature weights, inverse covariance) capture their parameters at
// construction, so a single Metric can be shared by any number of goroutines.
package metric

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownMetric is returned when a metric name is not registered.
	ErrUnknownMetric = errors.New("unknown metric")

	// ErrIncompatible is returned when a metric cannot be applied to vectors
	// of the dataset's dimension, or its parameters do not match it.
	ErrIncompatible = errors.New("metric incompatible with data")
)

// Metric computes a non-negative distance between two vectors of equal length.
type Metric interface {
	// Distance returns the distance between x and y.
	// Both slices must have the same length; callers check this once per dataset.
	Distance(x, y []float64) float64

	// IsAngular reports whether the metric only depends on vector direction.
	// Angular metrics use angular random projection splits during neighbor search.
	IsAngular() bool
}

// Checker is implemented by metrics that only accept certain dimensions.
type Checker interface {
	Check(dim int) error
}

// Params holds construction parameters for parametrised metrics.
// Fields not used by a metric are ignored.
type Params struct {
	// P is the Minkowski power. Zero means 2.
	P float64 `yaml:"p,omitempty"`

	// Weights are per-feature weights for weighted Minkowski.
	Weights []float64 `yaml:"weights,omitempty"`

	// InverseCovariance is the d x d inverse covariance matrix for Mahalanobis, row-major.
	InverseCovariance [][]float64 `yaml:"inverse_covariance,omitempty"`

	// Variances are per-feature variances for standardised Euclidean.
	Variances []float64 `yaml:"variances,omitempty"`
}

// Func is a plain distance function.
type Func func(x, y []float64) float64

// Check validates that m can be applied to vectors of length dim.
func Check(m Metric, dim int) error {
	if dim < 1 {
		return &IncompatibleError{Metric: nameOf(m), Dimension: dim, Reason: "vectors must have at least one component"}
	}
	if c, ok := m.(Checker); ok {
		return c.Check(dim)
	}
	return nil
}

// IncompatibleError describes why a metric cannot serve a dataset.
type IncompatibleError struct {
	Metric    string
	Dimension int
	Reason    string
}

func (e *IncompatibleError) Error() string {
	return fmt.Sprintf("metric %q with dimension %d: %s", e.Metric, e.Dimension, e.Reason)
}

func (e *IncompatibleError) Unwrap() error { return ErrIncompatible }

// named is implemented by every built-in metric.
type named interface {
	Name() string
}

func nameOf(m Metric) string {
	if n, ok := m.(named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", m)
}

// funcMetric adapts a stateless Func to Metric.
type funcMetric struct {
	name    string
	fn      Func
	angular bool
}

// New wraps fn as a Metric. Use it to register custom metrics.
func New(name string, fn Func, angular bool) Metric {
	return funcMetric{name: name, fn: fn, angular: angular}
}

func (m funcMetric) Distance(x, y []float64) float64 { return m.fn(x, y) }
func (m funcMetric) IsAngular() bool                 { return m.angular }
func (m funcMetric) Name() string                    { return m.name }
