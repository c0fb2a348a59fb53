package optimize

import (
	"math"
	"math/rand"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/alDuncanson/manifold/fuzzy"
)

// epochRunner performs the sampled updates of one epoch at learning rate alpha.
type epochRunner func(epoch int, alpha float64)

// kernel holds the gradient coefficients of the low-dimensional similarity.
type kernel struct {
	a, b      float64
	gamma     float64
	negatives int
}

func newKernel(o options) kernel {
	return kernel{a: o.a, b: o.b, gamma: o.repulsion, negatives: o.negatives}
}

// attract returns the gradient coefficient of -log(psi) for squared distance dsq.
func (k kernel) attract(dsq float64) float64 {
	if dsq <= 0 {
		return 0
	}
	return -2 * k.a * k.b * math.Pow(dsq, k.b-1) / (k.a*math.Pow(dsq, k.b) + 1)
}

// repel returns the gradient coefficient of -log(1 - psi) for squared distance dsq.
func (k kernel) repel(dsq float64) float64 {
	if dsq <= 0 {
		return 0
	}
	return 2 * k.gamma * k.b / ((repulsionOffset + dsq) * (k.a*math.Pow(dsq, k.b) + 1))
}

// pull moves current toward other and adds the opposite move to delta. Passing
// other as delta moves it in place.
func (k kernel) pull(current, other, delta []float64, alpha float64) {
	coeff := k.attract(squaredDistance(current, other))
	for d := range current {
		grad := clip(coeff*(current[d]-other[d])) * alpha
		current[d] += grad
		delta[d] -= grad
	}
}

// push moves current away from a negative sample. Coincident points are
// pushed by the clip bound.
func (k kernel) push(current, other []float64, alpha float64) {
	coeff := k.repel(squaredDistance(current, other))
	for d := range current {
		grad := gradientClip
		if coeff > 0 {
			grad = clip(coeff * (current[d] - other[d]))
		}
		current[d] += grad * alpha
	}
}

func squaredDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return sum
}

// sampleNegative draws a point uniformly from all points except i.
func sampleNegative(rng *rand.Rand, n, i int) int {
	s := rng.Intn(n - 1)
	if s >= i {
		s++
	}
	return s
}

// rowView exposes the rows of a dense matrix as slices of its backing array.
type rowView struct {
	data   []float64
	stride int
	dims   int
}

func newRowView(m *mat.Dense) rowView {
	raw := m.RawMatrix()
	return rowView{data: raw.Data, stride: raw.Stride, dims: raw.Cols}
}

func (v rowView) row(i int) []float64 {
	return v.data[i*v.stride : i*v.stride+v.dims]
}

func newSerialRunner(g *fuzzy.COOMatrix, emb *mat.Dense, sched *Schedule, o options) epochRunner {
	k := newKernel(o)
	rng := rand.New(rand.NewSource(o.seed))
	rows := newRowView(emb)
	n, _ := emb.Dims()

	return func(epoch int, alpha float64) {
		for e := range g.Data {
			if !sched.Due(e, epoch) {
				continue
			}
			i, j := g.Rows[e], g.Cols[e]
			current, other := rows.row(i), rows.row(j)
			k.pull(current, other, other, alpha)

			for p := 0; p < k.negatives; p++ {
				k.push(current, rows.row(sampleNegative(rng, n, i)), alpha)
			}
			sched.Advance(e)
		}
	}
}

// worker is one partition of the points in the parallel optimizer.
type worker struct {
	lo, hi  int
	edges   []int
	rng     *rand.Rand
	delta   []float64
	touched []int
	marked  []bool
}

func (w *worker) owns(i int) bool { return i >= w.lo && i < w.hi }

func newPartitionedRunner(g *fuzzy.COOMatrix, emb *mat.Dense, sched *Schedule, o options) epochRunner {
	k := newKernel(o)
	rows := newRowView(emb)
	n, dims := emb.Dims()
	count := min(o.threads, n)
	chunk := (n + count - 1) / count

	workers := make([]*worker, count)
	for w := range workers {
		workers[w] = &worker{
			lo:     w * chunk,
			hi:     min((w+1)*chunk, n),
			rng:    rand.New(rand.NewSource(o.seed + int64(w)*1_000_003)),
			delta:  make([]float64, n*dims),
			marked: make([]bool, n),
		}
	}
	for e, head := range g.Rows {
		if sched.EpochsPerSample[e] > 0 {
			w := workers[head/chunk]
			w.edges = append(w.edges, e)
		}
	}

	snapshot := make([]float64, n*dims)
	view := func(w *worker, j int) []float64 {
		if w.owns(j) {
			return rows.row(j)
		}
		return snapshot[j*dims : (j+1)*dims]
	}

	return func(epoch int, alpha float64) {
		for i := 0; i < n; i++ {
			copy(snapshot[i*dims:(i+1)*dims], rows.row(i))
		}

		var eg errgroup.Group
		for _, w := range workers {
			eg.Go(func() error {
				for _, e := range w.edges {
					if !sched.Due(e, epoch) {
						continue
					}
					i, j := g.Rows[e], g.Cols[e]
					current := rows.row(i)
					if w.owns(j) {
						other := rows.row(j)
						k.pull(current, other, other, alpha)
					} else {
						if !w.marked[j] {
							w.marked[j] = true
							w.touched = append(w.touched, j)
						}
						k.pull(current, view(w, j), w.delta[j*dims:(j+1)*dims], alpha)
					}

					for p := 0; p < k.negatives; p++ {
						k.push(current, view(w, sampleNegative(w.rng, n, i)), alpha)
					}
					sched.Advance(e)
				}
				return nil
			})
		}
		_ = eg.Wait()

		for _, w := range workers {
			for _, j := range w.touched {
				buffered := w.delta[j*dims : (j+1)*dims]
				floats.Add(rows.row(j), buffered)
				clear(buffered)
				w.marked[j] = false
			}
			w.touched = w.touched[:0]
		}
	}
}
