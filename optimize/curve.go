package optimize

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	curveSamples    = 300
	curveIterations = 100
)

// FitAB fits a and b so that 1 / (1 + a*x^(2b)) follows the target membership
// curve: 1 up to minDist, then exp(-(x - minDist) / spread). The fit is a
// Levenberg-Marquardt least-squares solve over samples of [0, 3*spread]. When
// it does not converge, a closed-form two-point solution is returned with
// converged set to false.
func FitAB(spread, minDist float64) (a, b float64, converged bool) {
	xs := make([]float64, curveSamples)
	ys := make([]float64, curveSamples)
	for i := range xs {
		xs[i] = float64(i) / float64(curveSamples-1) * spread * 3
		if xs[i] < minDist {
			ys[i] = 1.0
		} else {
			ys[i] = math.Exp(-(xs[i] - minDist) / spread)
		}
	}

	a, b, ok := levenbergMarquardt(xs, ys, 1, 1)
	if ok {
		return a, b, true
	}
	a, b = fallbackAB(spread, minDist)
	return a, b, false
}

// levenbergMarquardt minimizes the squared residuals of the curve starting
// from (a0, b0).
func levenbergMarquardt(xs, ys []float64, a0, b0 float64) (float64, float64, bool) {
	a, b := a0, b0
	cost := curveCost(xs, ys, a, b)
	lambda := 1e-3

	jtj := mat.NewSymDense(2, nil)
	grad := mat.NewVecDense(2, nil)
	var step mat.VecDense

	for iter := 0; iter < curveIterations; iter++ {
		var saa, sab, sbb, ga, gb float64
		for i, x := range xs {
			u := 0.0
			logX := 0.0
			if x > 0 {
				logX = math.Log(x)
				u = math.Exp(2 * b * logX)
			}
			denom := 1 + a*u
			pred := 1 / denom
			r := pred - ys[i]
			da := -u / (denom * denom)
			db := -2 * a * u * logX / (denom * denom)

			saa += da * da
			sab += da * db
			sbb += db * db
			ga += da * r
			gb += db * r
		}

		improved := false
		for attempt := 0; attempt < 10 && !improved; attempt++ {
			jtj.SetSym(0, 0, saa*(1+lambda))
			jtj.SetSym(0, 1, sab)
			jtj.SetSym(1, 1, sbb*(1+lambda))
			grad.SetVec(0, -ga)
			grad.SetVec(1, -gb)
			if err := step.SolveVec(jtj, grad); err != nil {
				lambda *= 10
				continue
			}

			na, nb := a+step.AtVec(0), b+step.AtVec(1)
			if na > 0 && nb > 0 {
				if nc := curveCost(xs, ys, na, nb); nc <= cost {
					improved = true
					converged := cost-nc <= 1e-12*math.Max(cost, 1e-12) ||
						math.Hypot(na-a, nb-b) <= 1e-10*math.Hypot(a, b)
					a, b, cost = na, nb, nc
					lambda = math.Max(lambda/10, 1e-12)
					if converged {
						return a, b, validAB(a, b)
					}
					break
				}
			}
			lambda *= 10
		}
		if !improved {
			// No step lowers the cost: the current point is a minimum.
			return a, b, validAB(a, b) && iter > 0
		}
	}
	return a, b, false
}

func curveCost(xs, ys []float64, a, b float64) float64 {
	var cost float64
	for i, x := range xs {
		r := 1/(1+a*math.Pow(x, 2*b)) - ys[i]
		cost += r * r
	}
	return cost
}

// fallbackAB solves the curve through two points of the target: just past
// minDist and two spreads beyond it. The equation is linear in ln(a) and b.
func fallbackAB(spread, minDist float64) (float64, float64) {
	x1 := minDist + spread/2
	x2 := minDist + 2*spread
	y1 := math.Exp(-(x1 - minDist) / spread)
	y2 := math.Exp(-(x2 - minDist) / spread)

	l1 := math.Log(1/y1 - 1)
	l2 := math.Log(1/y2 - 1)
	b := (l2 - l1) / (2 * (math.Log(x2) - math.Log(x1)))
	a := math.Exp(l1 - 2*b*math.Log(x1))
	return a, b
}

func validAB(a, b float64) bool {
	return a > 0 && b > 0 && !math.IsInf(a, 0) && !math.IsInf(b, 0)
}
