package knn

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/alDuncanson/manifold/metric"
)

const rowBlock = 64

// bruteForce compares every pair of points and keeps the k best per row.
// Rows are independent, so blocks of rows run on separate goroutines.
func bruteForce(ctx context.Context, data [][]float64, k int, m metric.Metric, threads int) (*Graph, error) {
	n := len(data)
	heap := newNeighborHeap(n, k)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(threads)
	for start := 0; start < n; start += rowBlock {
		end := min(start+rowBlock, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				for j := 0; j < n; j++ {
					if j == i {
						continue
					}
					d := m.Distance(data[i], data[j])
					if d <= heap.worst(i) {
						heap.push(i, j, d, false)
					}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return heap.graph(), nil
}
