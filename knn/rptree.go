package knn

import (
	"context"
	"math/rand"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/alDuncanson/manifold/metric"
)

const splitEpsilon = 1e-8

// buildForest grows trees random-projection trees and returns all of their
// leaves. Each tree draws from its own seeded stream so the leaves do not
// depend on how trees are scheduled across goroutines.
func buildForest(ctx context.Context, data [][]float64, trees, leafSize int, angular bool, seed int64, threads int) ([][]int, error) {
	perTree := make([][][]int, trees)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(threads)
	for t := 0; t < trees; t++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(seed + int64(t)*7919 + 1))
			perTree[t] = buildTree(data, leafSize, angular, rng)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var leaves [][]int
	for _, tree := range perTree {
		leaves = append(leaves, tree...)
	}
	return leaves, nil
}

// buildTree splits the full index set with random hyperplanes until every
// node holds at most leafSize points. Nodes wait on an explicit stack.
func buildTree(data [][]float64, leafSize int, angular bool, rng *rand.Rand) [][]int {
	root := make([]int, len(data))
	for i := range root {
		root[i] = i
	}

	var leaves [][]int
	stack := [][]int{root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if len(node) <= leafSize {
			leaves = append(leaves, node)
			continue
		}

		var left, right []int
		if angular {
			left, right = angularSplit(data, node, rng)
		} else {
			left, right = euclideanSplit(data, node, rng)
		}
		if len(left) == 0 || len(right) == 0 {
			left, right = randomSplit(node, rng)
		}
		stack = append(stack, right, left)
	}
	return leaves
}

// pickPair chooses two distinct members of node.
func pickPair(node []int, rng *rand.Rand) (int, int) {
	a := rng.Intn(len(node))
	b := rng.Intn(len(node) - 1)
	if b >= a {
		b++
	}
	return node[a], node[b]
}

// euclideanSplit separates node by the hyperplane equidistant from two random
// members.
func euclideanSplit(data [][]float64, node []int, rng *rand.Rand) ([]int, []int) {
	p, q := pickPair(node, rng)
	dim := len(data[p])

	normal := make([]float64, dim)
	floats.SubTo(normal, data[p], data[q])
	midpoint := make([]float64, dim)
	floats.AddTo(midpoint, data[p], data[q])
	floats.Scale(0.5, midpoint)
	offset := -floats.Dot(normal, midpoint)

	return partition(data, node, normal, offset, rng)
}

// angularSplit separates node by the hyperplane bisecting the directions of
// two random members.
func angularSplit(data [][]float64, node []int, rng *rand.Rand) ([]int, []int) {
	p, q := pickPair(node, rng)
	dim := len(data[p])

	normP := floats.Norm(data[p], 2)
	if normP == 0 {
		normP = 1
	}
	normQ := floats.Norm(data[q], 2)
	if normQ == 0 {
		normQ = 1
	}
	normal := make([]float64, dim)
	for i := range normal {
		normal[i] = data[p][i]/normP - data[q][i]/normQ
	}
	if norm := floats.Norm(normal, 2); norm > 0 {
		floats.Scale(1/norm, normal)
	}

	return partition(data, node, normal, 0, rng)
}

// partition assigns each member of node by the sign of its margin. Points on
// the hyperplane go to a random side.
func partition(data [][]float64, node []int, normal []float64, offset float64, rng *rand.Rand) ([]int, []int) {
	left := make([]int, 0, len(node)/2+1)
	right := make([]int, 0, len(node)/2+1)
	for _, i := range node {
		margin := offset + floats.Dot(normal, data[i])
		switch {
		case margin > splitEpsilon:
			left = append(left, i)
		case margin < -splitEpsilon:
			right = append(right, i)
		case rng.Intn(2) == 0:
			left = append(left, i)
		default:
			right = append(right, i)
		}
	}
	return left, right
}

// randomSplit halves node at random. It guarantees progress for nodes whose
// points cannot be separated by a hyperplane, such as duplicates.
func randomSplit(node []int, rng *rand.Rand) ([]int, []int) {
	shuffled := append([]int(nil), node...)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	half := len(shuffled) / 2
	return shuffled[:half], shuffled[half:]
}

// initFromLeaves offers every pair sharing a leaf to both heaps.
func initFromLeaves(heap *neighborHeap, data [][]float64, m metric.Metric, leaves [][]int) {
	for _, leaf := range leaves {
		for a := 0; a < len(leaf); a++ {
			for b := a + 1; b < len(leaf); b++ {
				p, q := leaf[a], leaf[b]
				d := m.Distance(data[p], data[q])
				heap.push(p, q, d, true)
				heap.push(q, p, d, true)
			}
		}
	}
}

// fillRandom tops up rows that the forest left short of k neighbors, walking
// the points from a random start.
func fillRandom(heap *neighborHeap, data [][]float64, m metric.Metric, seed int64) {
	rng := rand.New(rand.NewSource(seed ^ 0x5eed))
	n := len(data)
	for i := 0; i < n; i++ {
		missing := heap.k - heap.filled(i)
		if missing == 0 {
			continue
		}
		start := rng.Intn(n)
		for step := 0; step < n && missing > 0; step++ {
			j := (start + step) % n
			if heap.push(i, j, m.Distance(data[i], data[j]), true) {
				missing--
			}
		}
	}
}
