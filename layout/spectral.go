package layout

import (
	"context"
	"errors"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/alDuncanson/manifold/fuzzy"
)

var (
	errEigenFailed  = errors.New("eigendecomposition failed")
	errNotConverged = errors.New("subspace iteration did not converge")
	errNonFinite    = errors.New("spectral layout is not finite")
)

// extraBlock is how many vectors beyond the requested dimensions subspace
// iteration carries to speed up convergence of the wanted ones.
const extraBlock = 8

// spectralInit lays out each connected component from its Laplacian
// eigenvectors and places the components apart from each other.
func spectralInit(ctx context.Context, g *fuzzy.COOMatrix, dims int, rng *rand.Rand, o options) (*mat.Dense, error) {
	comps := components(g)
	emb := mat.NewDense(g.NRow, dims, nil)

	var centers [][]float64
	var radius float64
	if len(comps) > 1 {
		centers = metaPositions(len(comps), dims, rng)
		radius = 0.25 * minPairwiseDistance(centers)
		o.logger.Debug("graph is disconnected", "components", len(comps))
	}

	for ci, c := range comps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		local, err := componentLayout(ctx, c, dims, rng, o)
		if err != nil {
			return nil, err
		}
		if centers != nil {
			fitIntoBall(local, radius)
		}
		for li, point := range c.members {
			row := emb.RawRowView(point)
			copy(row, local.RawRowView(li))
			if centers != nil {
				floats.Add(row, centers[ci])
			}
		}
	}

	expand(emb, rng)
	return emb, nil
}

// componentLayout returns the spectral layout of one component, or a random
// one when the component is too small or the eigen solver fails. Only context
// errors are returned.
func componentLayout(ctx context.Context, c *component, dims int, rng *rand.Rand, o options) (*mat.Dense, error) {
	n := c.size()
	if n < dims+2 {
		return uniformLayout(n, dims, 1, rng), nil
	}

	op := newNormalizedAdjacency(c)
	var (
		layout *mat.Dense
		err    error
	)
	if n <= o.denseThreshold {
		layout, err = denseEigenvectors(op, dims)
	} else {
		layout, err = subspaceIteration(ctx, op, dims, rng, o)
	}
	if err == nil && !allFinite(layout) {
		err = errNonFinite
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		o.logger.Warn("spectral initialization failed, using random layout", "points", n, "error", err)
		return uniformLayout(n, dims, 1, rng), nil
	}

	normalizeSigns(layout)
	return layout, nil
}

// normalizedAdjacency is D^-1/2 W D^-1/2 of one component in coordinate form.
type normalizedAdjacency struct {
	n    int
	rows []int
	cols []int
	vals []float64
	// trivial is the unit eigenvector with eigenvalue 1, proportional to sqrt(degree).
	trivial *mat.VecDense
}

func newNormalizedAdjacency(c *component) *normalizedAdjacency {
	n := c.size()
	degrees := make([]float64, n)
	for e, r := range c.rows {
		degrees[r] += c.weights[e]
	}
	sqrtDeg := make([]float64, n)
	for i, d := range degrees {
		sqrtDeg[i] = math.Sqrt(d)
	}

	vals := make([]float64, len(c.weights))
	for e, w := range c.weights {
		vals[e] = w / (sqrtDeg[c.rows[e]] * sqrtDeg[c.cols[e]])
	}

	trivial := mat.NewVecDense(n, append([]float64(nil), sqrtDeg...))
	if norm := mat.Norm(trivial, 2); norm > 0 {
		trivial.ScaleVec(1/norm, trivial)
	}
	return &normalizedAdjacency{n: n, rows: c.rows, cols: c.cols, vals: vals, trivial: trivial}
}

// denseEigenvectors takes the eigenvectors of the dims largest non-trivial
// eigenvalues from an exact symmetric eigendecomposition.
func denseEigenvectors(op *normalizedAdjacency, dims int) (*mat.Dense, error) {
	n := op.n
	sym := mat.NewSymDense(n, nil)
	for e, r := range op.rows {
		sym.SetSym(r, op.cols[e], op.vals[e])
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(sym, true); !ok {
		return nil, errEigenFailed
	}
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	// Eigenvalues ascend; the last one is the trivial eigenvalue 1.
	out := mat.NewDense(n, dims, nil)
	for j := 0; j < dims; j++ {
		out.SetCol(j, mat.Col(nil, n-2-j, &vectors))
	}
	return out, nil
}

// halfShift sets dst = (src + N src) / 2. The shift keeps every eigenvalue in
// [0, 1] so the wanted eigenvectors dominate under repeated multiplication.
func (op *normalizedAdjacency) halfShift(dst, src *mat.Dense) {
	dst.Zero()
	for e, r := range op.rows {
		floats.AddScaled(dst.RawRowView(r), op.vals[e], src.RawRowView(op.cols[e]))
	}
	dst.Add(dst, src)
	dst.Scale(0.5, dst)
}

// deflate removes the trivial eigenvector from every column of y.
func (op *normalizedAdjacency) deflate(y *mat.Dense) {
	_, p := y.Dims()
	var coef mat.VecDense
	coef.MulVec(y.T(), op.trivial)
	if p > 0 {
		y.RankOne(y, -1, op.trivial, &coef)
	}
}

// subspaceIteration finds the leading non-trivial eigenvectors of the shifted
// operator by block power iteration with Rayleigh-Ritz extraction.
func subspaceIteration(ctx context.Context, op *normalizedAdjacency, dims int, rng *rand.Rand, o options) (*mat.Dense, error) {
	n := op.n
	p := min(n-1, dims+extraBlock)

	y := mat.NewDense(n, p, nil)
	raw := y.RawMatrix().Data
	for i := range raw {
		raw[i] = rng.NormFloat64()
	}
	op.deflate(y)
	q, err := orthonormalize(y)
	if err != nil {
		return nil, err
	}

	mq := mat.NewDense(n, p, nil)
	var x, mx mat.Dense
	residual := make([]float64, n)
	for iter := 0; iter < o.maxIterations; iter++ {
		if iter%10 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		op.halfShift(mq, q)
		theta, ritz, err := rayleighRitz(q, mq)
		if err != nil {
			return nil, err
		}
		x.Mul(q, ritz)
		mx.Mul(mq, ritz)

		converged := true
		for j := 0; j < dims; j++ {
			mat.Col(residual, j, &mx)
			floats.AddScaled(residual, -theta[j], mat.Col(nil, j, &x))
			if floats.Norm(residual, 2) > o.tolerance {
				converged = false
				break
			}
		}
		if converged {
			return mat.DenseCopyOf(x.Slice(0, n, 0, dims)), nil
		}

		next := mat.DenseCopyOf(&mx)
		op.deflate(next)
		if q, err = orthonormalize(next); err != nil {
			return nil, err
		}
	}
	return nil, errNotConverged
}

// rayleighRitz solves the projected eigenproblem Q^T M Q and returns its
// eigenvalues and eigenvectors ordered from largest to smallest.
func rayleighRitz(q, mq *mat.Dense) ([]float64, *mat.Dense, error) {
	_, p := q.Dims()
	var h mat.Dense
	h.Mul(q.T(), mq)
	sym := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			sym.SetSym(i, j, 0.5*(h.At(i, j)+h.At(j, i)))
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(sym, true); !ok {
		return nil, nil, errEigenFailed
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	theta := make([]float64, p)
	ordered := mat.NewDense(p, p, nil)
	for j := 0; j < p; j++ {
		src := p - 1 - j
		theta[j] = values[src]
		ordered.SetCol(j, mat.Col(nil, src, &vectors))
	}
	return theta, ordered, nil
}

// orthonormalize returns an orthonormal basis of the columns of y computed from
// its QR factorization as Q = Y R^-1.
func orthonormalize(y *mat.Dense) (*mat.Dense, error) {
	_, p := y.Dims()
	var qr mat.QR
	qr.Factorize(y)
	var r mat.Dense
	qr.RTo(&r)

	var qt mat.Dense
	if err := qt.Solve(r.Slice(0, p, 0, p).T(), y.T()); err != nil {
		return nil, err
	}
	return mat.DenseCopyOf(qt.T()), nil
}

// normalizeSigns flips each column so its largest-magnitude entry is positive.
func normalizeSigns(m *mat.Dense) {
	rows, cols := m.Dims()
	for c := 0; c < cols; c++ {
		best, value := 0.0, 0.0
		for r := 0; r < rows; r++ {
			if v := m.At(r, c); math.Abs(v) > best {
				best, value = math.Abs(v), v
			}
		}
		if value < 0 {
			for r := 0; r < rows; r++ {
				m.Set(r, c, -m.At(r, c))
			}
		}
	}
}

func allFinite(m *mat.Dense) bool {
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
