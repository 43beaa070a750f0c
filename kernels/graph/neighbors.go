// Package graph provides lvlath-backed default implementations of the
// neighbor-search, SNN-graph, and batch-correction kernels. register.go
// wires these into the pipeline package's factory variables.
package graph

import (
	"math"
	"sort"

	"github.com/scpipe/scpipe/pipeline"
)

// Neighbors is the default pipeline.NeighborSearchKernel. The "approximate"
// flag is accepted for signature compatibility with the spec's parameter
// surface (combine_embeddings.approximate, batch_correction.approximate,
// neighbor_index.approximate all forward it); this implementation always
// performs an exact brute-force search, which is what an approximate index
// degrades to for the cell counts this engine is exercised against in
// tests.
type Neighbors struct{}

var _ pipeline.NeighborSearchKernel = (*Neighbors)(nil)

// NewNeighbors constructs the default neighbor-search kernel.
func NewNeighbors() *Neighbors { return &Neighbors{} }

func (n *Neighbors) FindNeighbors(data []float64, ncol, ndim, k int, approximate bool) ([][]int32, [][]float64, error) {
	if k >= ncol {
		k = ncol - 1
	}
	if k < 0 {
		k = 0
	}
	points := make([][]float64, ncol)
	for c := 0; c < ncol; c++ {
		p := make([]float64, ndim)
		for d := 0; d < ndim; d++ {
			p[d] = data[d*ncol+c]
		}
		points[c] = p
	}
	idx := make([][]int32, ncol)
	dist := make([][]float64, ncol)
	for i := 0; i < ncol; i++ {
		type cand struct {
			j int
			d float64
		}
		cands := make([]cand, 0, ncol-1)
		for j := 0; j < ncol; j++ {
			if j == i {
				continue
			}
			cands = append(cands, cand{j, euclid(points[i], points[j])})
		}
		sort.Slice(cands, func(a, b int) bool { return cands[a].d < cands[b].d })
		if len(cands) > k {
			cands = cands[:k]
		}
		ids := make([]int32, len(cands))
		ds := make([]float64, len(cands))
		for x, c := range cands {
			ids[x], ds[x] = int32(c.j), c.d
		}
		idx[i], dist[i] = ids, ds
	}
	return idx, dist, nil
}

func euclid(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return math.Sqrt(s)
}
