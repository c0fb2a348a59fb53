package layout

import (
	"slices"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/alDuncanson/manifold/fuzzy"
)

// component is a connected piece of the graph with its own local indexing.
type component struct {
	// members maps local indices to point indices, ascending.
	members []int
	rows    []int
	cols    []int
	weights []float64
}

// components splits g into connected components ordered by their smallest
// member. Edges are re-indexed to each component's local numbering.
func components(g *fuzzy.COOMatrix) []*component {
	n := g.NRow
	graph := simple.NewUndirectedGraph()
	for i := range n {
		graph.AddNode(simple.Node(i))
	}
	for e, w := range g.Data {
		r, c := g.Rows[e], g.Cols[e]
		if w > 0 && r != c {
			graph.SetEdge(simple.Edge{F: simple.Node(r), T: simple.Node(c)})
		}
	}

	var out []*component
	for _, nodes := range topo.ConnectedComponents(graph) {
		members := make([]int, len(nodes))
		for i, node := range nodes {
			members[i] = int(node.ID())
		}
		slices.Sort(members)
		out = append(out, &component{members: members})
	}
	slices.SortFunc(out, func(a, b *component) int { return a.members[0] - b.members[0] })

	owner := make([]int, n)
	local := make([]int, n)
	for ci, c := range out {
		for li, i := range c.members {
			owner[i] = ci
			local[i] = li
		}
	}

	for e, w := range g.Data {
		if w <= 0 {
			continue
		}
		r, col := g.Rows[e], g.Cols[e]
		c := out[owner[r]]
		c.rows = append(c.rows, local[r])
		c.cols = append(c.cols, local[col])
		c.weights = append(c.weights, w)
	}
	return out
}

func (c *component) size() int { return len(c.members) }
