package pipeline

import "gonum.org/v1/gonum/mat"

// defaultNeighborIndexK is the fixed neighborhood size the index is built
// with; downstream consumers (UMAP, SnnGraphCluster) request their own k
// against the index's underlying embedding rather than against this fixed
// value, but the index itself is computed once at this size per spec.md
// §4.10 ("a pure function of its inputs and approximate").
const defaultNeighborIndexK = 30

// NeighborIndexParams is the neighbor_index parameter record.
type NeighborIndexParams struct {
	Approximate bool `yaml:"approximate"`
}

// NeighborIndex is the C9 step.
type NeighborIndex struct {
	base
	kernel NeighborSearchKernel
	params NeighborIndexParams

	idx  [][]int32
	dist [][]float64
}

// NewNeighborIndex constructs the NeighborIndex step.
func NewNeighborIndex(kernel NeighborSearchKernel) *NeighborIndex {
	return &NeighborIndex{base: newBase("neighbor_index"), kernel: kernel}
}

// Defaults returns the canonical neighbor_index parameter record.
func (s *NeighborIndex) Defaults() NeighborIndexParams { return NeighborIndexParams{} }

func (s *NeighborIndex) Compute(corrected *mat.Dense, upstreamChanged bool, params NeighborIndexParams) error {
	if !upstreamChanged && paramsEqual(params, s.params) {
		s.unchanged()
		return nil
	}
	s.params = params

	ndim, ncol := corrected.Dims()
	data := make([]float64, ndim*ncol)
	for d := 0; d < ndim; d++ {
		for c := 0; c < ncol; c++ {
			data[d*ncol+c] = corrected.At(d, c)
		}
	}
	k := defaultNeighborIndexK
	if k >= ncol {
		k = ncol - 1
	}
	idx, dist, err := s.kernel.FindNeighbors(data, ncol, ndim, k, params.Approximate)
	if err != nil {
		return err
	}
	s.idx, s.dist = idx, dist
	s.recompute()
	return nil
}

// FetchNeighbors returns, per cell, its neighbor indices and distances
// (views).
func (s *NeighborIndex) FetchNeighbors() ([][]int32, [][]float64) { return s.idx, s.dist }

func (s *NeighborIndex) Free() { s.idx, s.dist = nil, nil }
