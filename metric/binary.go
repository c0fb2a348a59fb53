package metric

// Binary metrics treat every non-zero component as true.

type truthTable struct {
	trueTrue   float64
	trueFalse  float64
	falseTrue  float64
	falseFalse float64
}

func (t truthTable) notEqual() float64 { return t.trueFalse + t.falseTrue }

func tabulate(x, y []float64) truthTable {
	var t truthTable
	for i := range x {
		xTrue := x[i] != 0
		yTrue := y[i] != 0
		switch {
		case xTrue && yTrue:
			t.trueTrue++
		case xTrue:
			t.trueFalse++
		case yTrue:
			t.falseTrue++
		default:
			t.falseFalse++
		}
	}
	return t
}

// Hamming is the fraction of components that differ.
func Hamming(x, y []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var differing float64
	for i := range x {
		if x[i] != y[i] {
			differing++
		}
	}
	return differing / float64(len(x))
}

// Jaccard is 1 - |x∩y| / |x∪y|.
func Jaccard(x, y []float64) float64 {
	t := tabulate(x, y)
	union := t.trueTrue + t.notEqual()
	if union == 0 {
		return 0
	}
	return t.notEqual() / union
}

// Dice is disagreements over disagreements plus twice the shared true components.
func Dice(x, y []float64) float64 {
	t := tabulate(x, y)
	if t.trueTrue == 0 && t.notEqual() == 0 {
		return 0
	}
	return t.notEqual() / (2*t.trueTrue + t.notEqual())
}

// Kulsinski is the Kulsinski dissimilarity of the boolean views of x and y.
func Kulsinski(x, y []float64) float64 {
	t := tabulate(x, y)
	if t.notEqual() == 0 {
		return 0
	}
	n := float64(len(x))
	return (t.notEqual() - t.trueTrue + n) / (t.notEqual() + n)
}

// RogersTanimoto counts disagreements double over all components.
func RogersTanimoto(x, y []float64) float64 {
	t := tabulate(x, y)
	n := float64(len(x))
	if n == 0 {
		return 0
	}
	return 2 * t.notEqual() / (n + t.notEqual())
}

// RussellRao is the fraction of components that are not true in both.
func RussellRao(x, y []float64) float64 {
	t := tabulate(x, y)
	// identical supports are at distance zero
	if t.notEqual() == 0 {
		return 0
	}
	n := float64(len(x))
	return (n - t.trueTrue) / n
}

// SokalMichener matches RogersTanimoto for boolean data.
func SokalMichener(x, y []float64) float64 {
	return RogersTanimoto(x, y)
}

// SokalSneath weights disagreements double against shared true components.
func SokalSneath(x, y []float64) float64 {
	t := tabulate(x, y)
	if t.notEqual() == 0 {
		return 0
	}
	return t.notEqual() / (0.5*t.trueTrue + t.notEqual())
}

// Yule is the Yule dissimilarity of the boolean views of x and y.
func Yule(x, y []float64) float64 {
	t := tabulate(x, y)
	if t.notEqual() == 0 {
		return 0
	}
	denominator := t.trueTrue*t.falseFalse + t.trueFalse*t.falseTrue
	if denominator == 0 {
		return 0
	}
	return 2 * t.trueFalse * t.falseTrue / denominator
}

// Matching is the fraction of boolean components that disagree.
func Matching(x, y []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return tabulate(x, y).notEqual() / float64(len(x))
}
