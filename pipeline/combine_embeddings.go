package pipeline

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// CombineEmbeddingsParams is the combine_embeddings parameter record.
type CombineEmbeddingsParams struct {
	Weights     map[string]float64 `yaml:"weights"` // nil means neighbor-distance auto-scaling
	Approximate bool               `yaml:"approximate"`
}

// CombineEmbeddings is the C7 step: concatenates per-modality PC matrices
// row-wise, scaling each modality so its contribution to the combined
// distance is comparable to the others.
type CombineEmbeddings struct {
	base
	neighbors NeighborSearchKernel
	params    CombineEmbeddingsParams

	combined   *mat.Dense
	singleView bool // true when the result is an unmodified alias of one modality's PCs
}

// NewCombineEmbeddings constructs the CombineEmbeddings step.
func NewCombineEmbeddings(neighbors NeighborSearchKernel) *CombineEmbeddings {
	return &CombineEmbeddings{base: newBase("combine_embeddings"), neighbors: neighbors}
}

// Defaults returns the canonical combine_embeddings parameter record.
func (s *CombineEmbeddings) Defaults() CombineEmbeddingsParams {
	return CombineEmbeddingsParams{Approximate: false}
}

// Compute concatenates the PCA results of every present, valid modality (in
// AllModalities order). modalities maps modality name to its PCA result.
func (s *CombineEmbeddings) Compute(modalities map[string]*PCResult, upstreamChanged bool, params CombineEmbeddingsParams) error {
	var present []string
	for _, m := range AllModalities {
		if modalities[m] != nil {
			present = append(present, m)
		}
	}
	if len(present) == 0 {
		return fmt.Errorf("combine_embeddings: no modality present: %w", ErrInvalidInput)
	}
	if params.Weights != nil {
		for _, m := range present {
			if _, ok := params.Weights[m]; !ok {
				return fmt.Errorf("combine_embeddings: missing weight for modality %q: %w", m, ErrInvalidParameter)
			}
		}
	}
	if !upstreamChanged && paramsEqual(params, s.params) {
		s.unchanged()
		return nil
	}
	s.params = params

	if len(present) == 1 {
		s.combined = modalities[present[0]].Scores
		s.singleView = true
		s.recompute()
		return nil
	}
	s.singleView = false

	scales := make(map[string]float64, len(present))
	if params.Weights != nil {
		for _, m := range present {
			scales[m] = params.Weights[m]
		}
	} else {
		refDist := s.avgNeighborDist(modalities[present[0]].Scores, params.Approximate)
		for _, m := range present {
			d := s.avgNeighborDist(modalities[m].Scores, params.Approximate)
			if d == 0 {
				scales[m] = 1
				continue
			}
			scales[m] = refDist / d
		}
	}

	totalRows := 0
	for _, m := range present {
		totalRows += modalities[m].NumPCs()
	}
	ncol := modalities[present[0]].NumCols()
	data := make([]float64, totalRows*ncol)
	offset := 0
	for _, m := range present {
		scores := modalities[m].Scores
		scale := scales[m]
		nrow := modalities[m].NumPCs()
		for r := 0; r < nrow; r++ {
			for c := 0; c < ncol; c++ {
				data[(offset+r)*ncol+c] = scores.At(r, c) * scale
			}
		}
		offset += nrow
	}
	s.combined = mat.NewDense(totalRows, ncol, data)
	s.recompute()
	return nil
}

func (s *CombineEmbeddings) avgNeighborDist(scores *mat.Dense, approximate bool) float64 {
	nrow, ncol := scores.Dims()
	data := make([]float64, nrow*ncol)
	for r := 0; r < nrow; r++ {
		for c := 0; c < ncol; c++ {
			data[r*ncol+c] = scores.At(r, c)
		}
	}
	k := 15
	if k >= ncol {
		k = ncol - 1
	}
	if k < 1 {
		return 0
	}
	_, dist, err := s.neighbors.FindNeighbors(data, ncol, nrow, k, approximate)
	if err != nil {
		return 0
	}
	var sum float64
	var n int
	for _, row := range dist {
		for _, d := range row {
			sum += d
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// FetchCombined returns the combined embedding (components x cells). When
// only one modality was present, this is a view of that modality's PCA
// result (spec.md's single-modality shortcut).
func (s *CombineEmbeddings) FetchCombined() *mat.Dense { return s.combined }

func (s *CombineEmbeddings) Free() {
	if !s.singleView {
		s.combined = nil
	}
}
