package knn

import (
	"context"
	"math/rand"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/alDuncanson/manifold/metric"
)

// joinBlock is the number of points whose local joins are generated before
// the resulting updates are applied. It is independent of the thread count,
// which keeps the result identical for any number of workers.
const joinBlock = 2048

type update struct {
	p, q int
	dist float64
}

// nnDescent refines the heaps by letting every point compare the neighbors of
// its neighbors, until a round changes at most delta*n*k slots.
func nnDescent(ctx context.Context, heap *neighborHeap, data [][]float64, m metric.Metric, o options) error {
	n, k := heap.n, heap.k
	maxCandidates := min(maxCandidatesCap, k)
	threshold := o.delta * float64(n) * float64(k)
	rng := rand.New(rand.NewSource(o.seed ^ 0x6e6e64))

	for iter := 0; iter < o.maxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		newCandidates, oldCandidates := buildCandidates(heap, maxCandidates, rng)

		changed := 0
		for start := 0; start < n; start += joinBlock {
			end := min(start+joinBlock, n)
			updates, err := generateUpdates(ctx, heap, data, m, newCandidates, oldCandidates, start, end, o.threads)
			if err != nil {
				return err
			}
			for _, u := range updates {
				if heap.push(u.p, u.q, u.dist, true) {
					changed++
				}
				if heap.push(u.q, u.p, u.dist, true) {
					changed++
				}
			}
		}

		o.logger.Debug("nn-descent iteration", "iteration", iter+1, "updates", changed)
		if float64(changed) <= threshold {
			break
		}
	}
	return nil
}

// buildCandidates collects forward and reverse neighbors of each point into new
// and old candidate lists, samples each list down to maxCandidates, and marks
// the sampled new neighbors as old.
func buildCandidates(heap *neighborHeap, maxCandidates int, rng *rand.Rand) ([][]int, [][]int) {
	n := heap.n
	newCandidates := make([][]int, n)
	oldCandidates := make([][]int, n)

	for i := 0; i < n; i++ {
		indices, _, flags := heap.row(i)
		for s, j := range indices {
			if j < 0 {
				continue
			}
			if flags[s] {
				newCandidates[i] = append(newCandidates[i], j)
				newCandidates[j] = append(newCandidates[j], i)
			} else {
				oldCandidates[i] = append(oldCandidates[i], j)
				oldCandidates[j] = append(oldCandidates[j], i)
			}
		}
	}

	for i := 0; i < n; i++ {
		newCandidates[i] = sample(newCandidates[i], maxCandidates, rng)
		oldCandidates[i] = sample(oldCandidates[i], maxCandidates, rng)
	}

	for i := 0; i < n; i++ {
		indices, _, flags := heap.row(i)
		for s, j := range indices {
			if j >= 0 && flags[s] && slices.Contains(newCandidates[i], j) {
				flags[s] = false
			}
		}
	}
	return newCandidates, oldCandidates
}

// sample deduplicates list and keeps at most limit entries chosen by a seeded
// shuffle.
func sample(list []int, limit int, rng *rand.Rand) []int {
	slices.Sort(list)
	list = slices.Compact(list)
	if len(list) <= limit {
		return list
	}
	rng.Shuffle(len(list), func(a, b int) { list[a], list[b] = list[b], list[a] })
	return list[:limit]
}

// generateUpdates runs the local joins of points [start, end) against a frozen
// view of the heaps. Workers own contiguous ranges and their outputs are
// concatenated in range order.
func generateUpdates(ctx context.Context, heap *neighborHeap, data [][]float64, m metric.Metric,
	newCandidates, oldCandidates [][]int, start, end, threads int) ([]update, error) {
	workers := min(threads, end-start)
	chunk := (end - start + workers - 1) / workers
	results := make([][]update, workers)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo := start + w*chunk
		hi := min(lo+chunk, end)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var out []update
			for i := lo; i < hi; i++ {
				out = localJoin(out, heap, data, m, newCandidates[i], oldCandidates[i])
			}
			results[w] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var updates []update
	for _, r := range results {
		updates = append(updates, r...)
	}
	return updates, nil
}

// localJoin proposes new-new and new-old candidate pairs that could improve
// either endpoint's heap.
func localJoin(out []update, heap *neighborHeap, data [][]float64, m metric.Metric, fresh, old []int) []update {
	for a, p := range fresh {
		for _, q := range fresh[a+1:] {
			out = propose(out, heap, data, m, p, q)
		}
		for _, q := range old {
			if p != q {
				out = propose(out, heap, data, m, p, q)
			}
		}
	}
	return out
}

func propose(out []update, heap *neighborHeap, data [][]float64, m metric.Metric, p, q int) []update {
	d := m.Distance(data[p], data[q])
	if d <= heap.worst(p) || d <= heap.worst(q) {
		out = append(out, update{p: p, q: q, dist: d})
	}
	return out
}
