package knn

import (
	"math"
	"sort"
)

// neighborHeap is an arena of n bounded max-heaps holding k slots each.
// Slot s of point i lives at i*k+s. The root of each row is its current worst
// neighbor. Empty slots hold index -1 and distance +Inf.
type neighborHeap struct {
	n, k    int
	indices []int
	dists   []float64
	isNew   []bool
}

func newNeighborHeap(n, k int) *neighborHeap {
	h := &neighborHeap{
		n:       n,
		k:       k,
		indices: make([]int, n*k),
		dists:   make([]float64, n*k),
		isNew:   make([]bool, n*k),
	}
	for i := range h.indices {
		h.indices[i] = -1
		h.dists[i] = math.Inf(1)
	}
	return h
}

func (h *neighborHeap) row(i int) ([]int, []float64, []bool) {
	lo, hi := i*h.k, (i+1)*h.k
	return h.indices[lo:hi], h.dists[lo:hi], h.isNew[lo:hi]
}

// worst returns the distance of the root of row i.
func (h *neighborHeap) worst(i int) float64 {
	return h.dists[i*h.k]
}

// filled counts the occupied slots of row i.
func (h *neighborHeap) filled(i int) int {
	indices, _, _ := h.row(i)
	count := 0
	for _, j := range indices {
		if j >= 0 {
			count++
		}
	}
	return count
}

// push offers j at distance d to row i. It returns true when the row changed.
func (h *neighborHeap) push(i, j int, d float64, fresh bool) bool {
	if i == j {
		return false
	}
	indices, dists, flags := h.row(i)
	return heapPush(indices, dists, flags, j, d, fresh)
}

// before orders candidates by distance, then by ascending index.
func before(d1 float64, j1 int, d2 float64, j2 int) bool {
	if d1 != d2 {
		return d1 < d2
	}
	if j2 < 0 {
		return j1 >= 0
	}
	return j1 < j2
}

// heapPush replaces the root of a bounded max-heap with (j, d) when (j, d)
// orders before it and j is not already present. flags may be nil.
func heapPush(indices []int, dists []float64, flags []bool, j int, d float64, fresh bool) bool {
	if !before(d, j, dists[0], indices[0]) {
		return false
	}
	for _, existing := range indices {
		if existing == j {
			return false
		}
	}

	indices[0], dists[0] = j, d
	if flags != nil {
		flags[0] = fresh
	}
	siftDown(indices, dists, flags, 0)
	return true
}

func siftDown(indices []int, dists []float64, flags []bool, i int) {
	n := len(indices)
	for {
		left := 2*i + 1
		if left >= n {
			return
		}
		largest := left
		if right := left + 1; right < n && before(dists[left], indices[left], dists[right], indices[right]) {
			largest = right
		}
		if !before(dists[i], indices[i], dists[largest], indices[largest]) {
			return
		}
		indices[i], indices[largest] = indices[largest], indices[i]
		dists[i], dists[largest] = dists[largest], dists[i]
		if flags != nil {
			flags[i], flags[largest] = flags[largest], flags[i]
		}
		i = largest
	}
}

// sortedRow returns the occupied slots of a heap row ascending by distance,
// ties by index.
func sortedRow(indices []int, dists []float64) ([]int, []float64) {
	type pair struct {
		index int
		dist  float64
	}
	pairs := make([]pair, 0, len(indices))
	for s, j := range indices {
		if j >= 0 {
			pairs = append(pairs, pair{index: j, dist: dists[s]})
		}
	}
	sort.Slice(pairs, func(a, b int) bool {
		return before(pairs[a].dist, pairs[a].index, pairs[b].dist, pairs[b].index)
	})

	outIndices := make([]int, len(pairs))
	outDists := make([]float64, len(pairs))
	for s, p := range pairs {
		outIndices[s] = p.index
		outDists[s] = p.dist
	}
	return outIndices, outDists
}
