// Package numeric provides gonum-backed default implementations of the
// numeric kernels pipeline.go declares as external collaborators: PCA,
// k-means, marker scoring, QC summary statistics, and hypergeometric
// enrichment. register.go wires these into the pipeline package's factory
// variables, breaking the import cycle between pipeline (interface owner)
// and this package (implementation), the same way sim/latency wires into
// sim.NewLatencyModelFunc.
package numeric

import (
	"fmt"

	"github.com/scpipe/scpipe/pipeline"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// PCA is the default pipeline.PCAKernel, computing components via gonum's
// truncated SVD of the (optionally block-centered) feature x cell matrix.
type PCA struct{}

// NewPCA constructs the default PCA kernel.
func NewPCA() *PCA { return &PCA{} }

// RunPCA implements pipeline.PCAKernel. blockMethod "regress" and "project"
// both subtract each block's per-feature mean before the SVD (removing
// block-level shifts); no grand mean is added back. "none", and a block
// method given without a block factor, subtract each feature's overall mean.
func (p *PCA) RunPCA(data []float64, nrow, ncol, numPCs int, blockIndices []int32, blockMethod string) (pipeline.PCAResult, error) {
	if nrow == 0 || ncol == 0 {
		return pipeline.PCAResult{}, fmt.Errorf("pca: empty matrix")
	}
	if numPCs > ncol {
		numPCs = ncol
	}
	if numPCs > nrow {
		numPCs = nrow
	}

	m := mat.NewDense(nrow, ncol, append([]float64(nil), data...))

	switch blockMethod {
	case "regress", "project":
		if len(blockIndices) != ncol {
			blockIndices = make([]int32, ncol)
		}
		centerByBlock(m, blockIndices)
	case "none", "":
		centerByBlock(m, make([]int32, ncol))
	default:
		return pipeline.PCAResult{}, fmt.Errorf("pca: unknown block_method %q", blockMethod)
	}

	// Cells are observations, features are variables: SVD expects
	// observations as rows, so transpose.
	mt := mat.DenseCopyOf(m.T())

	var svd mat.SVD
	ok := svd.Factorize(mt, mat.SVDThin)
	if !ok {
		return pipeline.PCAResult{}, fmt.Errorf("pca: SVD factorization failed")
	}
	var u mat.Dense
	svd.UTo(&u)
	sv := svd.Values(nil)

	scores := make([][]float64, numPCs)
	total := 0.0
	for _, s := range sv {
		total += s * s
	}
	for pc := 0; pc < numPCs; pc++ {
		row := make([]float64, ncol)
		for c := 0; c < ncol; c++ {
			row[c] = u.At(c, pc) * sv[pc]
		}
		scores[pc] = row
	}
	varExp := make([]float64, numPCs)
	for pc := 0; pc < numPCs; pc++ {
		if total > 0 {
			varExp[pc] = (sv[pc] * sv[pc]) / total
		}
	}
	return pipeline.PCAResult{Scores: scores, VarianceExplained: varExp}, nil
}

// centerByBlock subtracts, for every feature row, the mean of each block's
// columns from that block's entries, in place.
func centerByBlock(m *mat.Dense, blockIndices []int32) {
	nrow, ncol := m.Dims()
	if len(blockIndices) != ncol {
		return
	}
	groups := make(map[int32][]int)
	for c, b := range blockIndices {
		groups[b] = append(groups[b], c)
	}
	for r := 0; r < nrow; r++ {
		for _, cols := range groups {
			vals := make([]float64, len(cols))
			for i, c := range cols {
				vals[i] = m.At(r, c)
			}
			mean := stat.Mean(vals, nil)
			for _, c := range cols {
				m.Set(r, c, m.At(r, c)-mean)
			}
		}
	}
}
