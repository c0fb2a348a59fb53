package metric

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ErrSingularCovariance is returned when the sample covariance cannot be inverted.
var ErrSingularCovariance = errors.New("sample covariance is singular")

// InverseCovariance estimates the inverse sample covariance of data, suitable
// for Params.InverseCovariance. It needs more rows than columns.
func InverseCovariance(data [][]float64) ([][]float64, error) {
	samples, err := toDense(data)
	if err != nil {
		return nil, err
	}
	rows, cols := samples.Dims()
	if rows <= cols {
		return nil, fmt.Errorf("%w: %d samples for %d features", ErrSingularCovariance, rows, cols)
	}

	var covariance mat.SymDense
	stat.CovarianceMatrix(&covariance, samples, nil)

	var cholesky mat.Cholesky
	if ok := cholesky.Factorize(&covariance); !ok {
		return nil, ErrSingularCovariance
	}
	var inverse mat.SymDense
	if err := cholesky.InverseTo(&inverse); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSingularCovariance, err)
	}

	result := make([][]float64, cols)
	for i := range result {
		result[i] = make([]float64, cols)
		for j := range result[i] {
			result[i][j] = inverse.At(i, j)
		}
	}
	return result, nil
}

// Variances returns the per-feature sample variance of data, suitable for
// Params.Variances. Constant features get variance 1 so they do not divide by zero.
func Variances(data [][]float64) ([]float64, error) {
	samples, err := toDense(data)
	if err != nil {
		return nil, err
	}
	_, cols := samples.Dims()
	variances := make([]float64, cols)
	for j := range variances {
		v := stat.Variance(mat.Col(nil, j, samples), nil)
		if !(v > 0) {
			v = 1
		}
		variances[j] = v
	}
	return variances, nil
}

func toDense(data [][]float64) (*mat.Dense, error) {
	if len(data) < 2 || len(data[0]) == 0 {
		return nil, fmt.Errorf("%w: need at least two non-empty rows", ErrIncompatible)
	}
	cols := len(data[0])
	flat := make([]float64, 0, len(data)*cols)
	for i, row := range data {
		if len(row) != cols {
			return nil, fmt.Errorf("%w: row %d has %d components, want %d", ErrIncompatible, i, len(row), cols)
		}
		flat = append(flat, row...)
	}
	return mat.NewDense(len(data), cols, flat), nil
}
