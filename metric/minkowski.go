package metric

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Euclidean is the L2 distance.
func Euclidean(x, y []float64) float64 {
	return floats.Distance(x, y, 2)
}

// SquaredEuclidean is the reduced Euclidean distance. It preserves neighbor
// ordering and skips the square root.
func SquaredEuclidean(x, y []float64) float64 {
	var sum float64
	for i := range x {
		diff := x[i] - y[i]
		sum += diff * diff
	}
	return sum
}

// Manhattan is the L1 distance.
func Manhattan(x, y []float64) float64 {
	return floats.Distance(x, y, 1)
}

// Chebyshev is the L-infinity distance.
func Chebyshev(x, y []float64) float64 {
	return floats.Distance(x, y, math.Inf(1))
}

// Canberra is the weighted L1 distance sum(|x-y| / (|x|+|y|)).
// Coordinates where both values are zero contribute nothing.
func Canberra(x, y []float64) float64 {
	var sum float64
	for i := range x {
		denominator := math.Abs(x[i]) + math.Abs(y[i])
		if denominator > 0 {
			sum += math.Abs(x[i]-y[i]) / denominator
		}
	}
	return sum
}

// BrayCurtis is sum|x-y| / sum|x+y|, zero when the denominator vanishes.
func BrayCurtis(x, y []float64) float64 {
	var numerator, denominator float64
	for i := range x {
		numerator += math.Abs(x[i] - y[i])
		denominator += math.Abs(x[i] + y[i])
	}
	if denominator > 0 {
		return numerator / denominator
	}
	return 0
}

type minkowski struct {
	p float64
}

func newMinkowski(p Params) (Metric, error) {
	power := p.P
	if power == 0 {
		power = 2
	}
	if power < 1 || math.IsNaN(power) {
		return nil, &IncompatibleError{Metric: "minkowski", Reason: "power must be >= 1"}
	}
	return minkowski{p: power}, nil
}

func (m minkowski) Distance(x, y []float64) float64 { return floats.Distance(x, y, m.p) }
func (m minkowski) IsAngular() bool                 { return false }
func (m minkowski) Name() string                    { return "minkowski" }

// weightedMinkowski computes (sum w_i |x_i-y_i|^p)^(1/p).
type weightedMinkowski struct {
	p       float64
	weights []float64
}

func newWeightedMinkowski(p Params) (Metric, error) {
	power := p.P
	if power == 0 {
		power = 2
	}
	if power < 1 || math.IsNaN(power) {
		return nil, &IncompatibleError{Metric: "wminkowski", Reason: "power must be >= 1"}
	}
	if len(p.Weights) == 0 {
		return nil, &IncompatibleError{Metric: "wminkowski", Reason: "weights are required"}
	}
	for _, w := range p.Weights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, &IncompatibleError{Metric: "wminkowski", Reason: "weights must be finite and non-negative"}
		}
	}
	return weightedMinkowski{p: power, weights: append([]float64(nil), p.Weights...)}, nil
}

func (m weightedMinkowski) Distance(x, y []float64) float64 {
	var sum float64
	for i := range x {
		sum += m.weights[i] * math.Pow(math.Abs(x[i]-y[i]), m.p)
	}
	return math.Pow(sum, 1/m.p)
}

func (m weightedMinkowski) IsAngular() bool { return false }
func (m weightedMinkowski) Name() string    { return "wminkowski" }

func (m weightedMinkowski) Check(dim int) error {
	if len(m.weights) != dim {
		return &IncompatibleError{Metric: m.Name(), Dimension: dim, Reason: "weight vector length does not match"}
	}
	return nil
}
