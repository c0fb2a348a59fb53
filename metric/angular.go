package metric

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Cosine is 1 - cos(angle(x, y)).
// Two zero vectors are at distance 0; a zero vector and a non-zero vector at distance 1.
func Cosine(x, y []float64) float64 {
	normX := floats.Norm(x, 2)
	normY := floats.Norm(y, 2)
	switch {
	case normX == 0 && normY == 0:
		return 0
	case normX == 0 || normY == 0:
		return 1
	}
	return clampUnit(1 - floats.Dot(x, y)/(normX*normY))
}

// Correlation is the cosine distance between the mean-centered vectors.
func Correlation(x, y []float64) float64 {
	n := float64(len(x))
	if n == 0 {
		return 0
	}
	muX := floats.Sum(x) / n
	muY := floats.Sum(y) / n

	var dot, normX, normY float64
	for i := range x {
		shiftedX := x[i] - muX
		shiftedY := y[i] - muY
		dot += shiftedX * shiftedY
		normX += shiftedX * shiftedX
		normY += shiftedY * shiftedY
	}

	switch {
	case normX == 0 && normY == 0:
		return 0
	case dot == 0:
		return 1
	}
	return clampUnit(1 - dot/math.Sqrt(normX*normY))
}

// Hellinger treats x and y as unnormalised distributions. It expects
// non-negative input; negative components are read as zero.
func Hellinger(x, y []float64) float64 {
	var result, sumX, sumY float64
	for i := range x {
		xi, yi := math.Max(x[i], 0), math.Max(y[i], 0)
		result += math.Sqrt(xi * yi)
		sumX += xi
		sumY += yi
	}
	switch {
	case sumX == 0 && sumY == 0:
		return 0
	case sumX == 0 || sumY == 0:
		return 1
	}
	return math.Sqrt(math.Max(0, 1-result/math.Sqrt(sumX*sumY)))
}

// clampUnit removes tiny negative values produced by rounding.
func clampUnit(d float64) float64 {
	if d < 0 {
		return 0
	}
	return d
}
