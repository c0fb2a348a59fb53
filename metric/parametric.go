package metric

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

type haversine struct{}

// Distance treats x and y as (latitude, longitude) in radians and returns the
// great-circle distance on the unit sphere.
func (haversine) Distance(x, y []float64) float64 {
	sinLat := math.Sin(0.5 * (x[0] - y[0]))
	sinLon := math.Sin(0.5 * (x[1] - y[1]))
	h := sinLat*sinLat + math.Cos(x[0])*math.Cos(y[0])*sinLon*sinLon
	return 2 * math.Asin(math.Sqrt(math.Min(1, math.Max(0, h))))
}

func (haversine) IsAngular() bool { return false }
func (haversine) Name() string    { return "haversine" }

func (h haversine) Check(dim int) error {
	if dim != 2 {
		return &IncompatibleError{Metric: h.Name(), Dimension: dim, Reason: "haversine needs exactly 2 components"}
	}
	return nil
}

// mahalanobis computes sqrt((x-y)^T VI (x-y)) for a fixed inverse covariance VI.
type mahalanobis struct {
	inverse *mat.SymDense
}

func newMahalanobis(p Params) (Metric, error) {
	d := len(p.InverseCovariance)
	if d == 0 {
		return nil, &IncompatibleError{Metric: "mahalanobis", Reason: "inverse covariance matrix is required"}
	}
	data := make([]float64, 0, d*d)
	for i, row := range p.InverseCovariance {
		if len(row) != d {
			return nil, &IncompatibleError{Metric: "mahalanobis", Dimension: d, Reason: "inverse covariance matrix must be square"}
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, &IncompatibleError{Metric: "mahalanobis", Dimension: d, Reason: "inverse covariance matrix must be finite"}
			}
			if math.Abs(v-p.InverseCovariance[j][i]) > 1e-9*math.Max(1, math.Abs(v)) {
				return nil, &IncompatibleError{Metric: "mahalanobis", Dimension: d, Reason: "inverse covariance matrix must be symmetric"}
			}
		}
		data = append(data, row...)
	}
	return mahalanobis{inverse: mat.NewSymDense(d, data)}, nil
}

func (m mahalanobis) Distance(x, y []float64) float64 {
	diff := make([]float64, len(x))
	for i := range x {
		diff[i] = x[i] - y[i]
	}
	v := mat.NewVecDense(len(diff), diff)
	return math.Sqrt(math.Max(0, mat.Inner(v, m.inverse, v)))
}

func (m mahalanobis) IsAngular() bool { return false }
func (m mahalanobis) Name() string    { return "mahalanobis" }

func (m mahalanobis) Check(dim int) error {
	if m.inverse.SymmetricDim() != dim {
		return &IncompatibleError{Metric: m.Name(), Dimension: dim, Reason: "inverse covariance dimension does not match"}
	}
	return nil
}

// standardisedEuclidean divides each squared difference by the feature variance.
type standardisedEuclidean struct {
	variances []float64
}

func newStandardisedEuclidean(p Params) (Metric, error) {
	if len(p.Variances) == 0 {
		return nil, &IncompatibleError{Metric: "seuclidean", Reason: "variances are required"}
	}
	for _, v := range p.Variances {
		if !(v > 0) || math.IsInf(v, 0) {
			return nil, &IncompatibleError{Metric: "seuclidean", Reason: "variances must be finite and positive"}
		}
	}
	return standardisedEuclidean{variances: append([]float64(nil), p.Variances...)}, nil
}

func (m standardisedEuclidean) Distance(x, y []float64) float64 {
	var sum float64
	for i := range x {
		diff := x[i] - y[i]
		sum += diff * diff / m.variances[i]
	}
	return math.Sqrt(sum)
}

func (m standardisedEuclidean) IsAngular() bool { return false }
func (m standardisedEuclidean) Name() string    { return "seuclidean" }

func (m standardisedEuclidean) Check(dim int) error {
	if len(m.variances) != dim {
		return &IncompatibleError{Metric: m.Name(), Dimension: dim, Reason: "variance vector length does not match"}
	}
	return nil
}
