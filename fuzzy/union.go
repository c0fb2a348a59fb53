package fuzzy

import (
	"math"
	"sort"
)

type symmetrizeOptions struct {
	threshold    float64
	hasThreshold bool
	mixRatio     float64
}

// SymmetrizeOption configures Symmetrize.
type SymmetrizeOption func(*symmetrizeOptions)

// WithPruneThreshold drops edges whose weight is strictly below threshold.
// Zero keeps every edge with positive weight. The default is 0.01/n.
func WithPruneThreshold(threshold float64) SymmetrizeOption {
	return func(o *symmetrizeOptions) {
		o.threshold = threshold
		o.hasThreshold = true
	}
}

// WithMixRatio blends the fuzzy union (1, the default) with the fuzzy
// intersection p*q (0).
func WithMixRatio(ratio float64) SymmetrizeOption {
	return func(o *symmetrizeOptions) { o.mixRatio = min(max(ratio, 0), 1) }
}

type halfEdge struct {
	row, col int
	weight   float64
	reverse  bool
}

// Symmetrize returns the undirected graph with w_ij = p_ij + p_ji - p_ij*p_ji,
// both directions stored and sorted by row then column. Self loops are never
// emitted.
func Symmetrize(d *Directed, opts ...SymmetrizeOption) *COOMatrix {
	src := d.Matrix
	o := symmetrizeOptions{mixRatio: 1}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.hasThreshold && src.NRow > 0 {
		o.threshold = 0.01 / float64(src.NRow)
	}

	// Every entry appears as itself and as its transpose; sorting brings the
	// two directions of each pair next to each other.
	edges := make([]halfEdge, 0, 2*src.Len())
	for e := range src.Data {
		r, c, v := src.Rows[e], src.Cols[e], src.Data[e]
		if r == c {
			continue
		}
		edges = append(edges,
			halfEdge{row: r, col: c, weight: v},
			halfEdge{row: c, col: r, weight: v, reverse: true},
		)
	}
	sort.Slice(edges, func(a, b int) bool {
		ea, eb := edges[a], edges[b]
		if ea.row != eb.row {
			return ea.row < eb.row
		}
		if ea.col != eb.col {
			return ea.col < eb.col
		}
		return !ea.reverse && eb.reverse
	})

	out := &COOMatrix{NRow: src.NRow, NCol: src.NCol}
	for start := 0; start < len(edges); {
		end := start
		var forward, backward float64
		for end < len(edges) && edges[end].row == edges[start].row && edges[end].col == edges[start].col {
			if edges[end].reverse {
				backward = math.Max(backward, edges[end].weight)
			} else {
				forward = math.Max(forward, edges[end].weight)
			}
			end++
		}

		w := union(forward, backward, o.mixRatio)
		if w > 0 && w >= o.threshold {
			out.Rows = append(out.Rows, edges[start].row)
			out.Cols = append(out.Cols, edges[start].col)
			out.Data = append(out.Data, w)
		}
		start = end
	}
	return out
}

// union combines the two directed memberships of an edge.
func union(p, q, mixRatio float64) float64 {
	product := p * q
	w := mixRatio*(p+q-product) + (1-mixRatio)*product
	return min(max(w, 0), 1)
}
