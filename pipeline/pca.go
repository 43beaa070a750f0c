package pipeline

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// PCAParams is the per-modality *_pca parameter record.
type PCAParams struct {
	NumHVGs     int    `yaml:"num_hvgs"` // RNA only; 0 means "use all features"
	NumPCs      int    `yaml:"num_pcs"`
	BlockMethod string `yaml:"block_method"` // "none" | "regress" | "project"; legacy "weight"/"block" translated on read
}

// PCA is the C6 step, one instance per modality.
type PCA struct {
	base
	kernel   PCAKernel
	modality string
	params   PCAParams

	present bool
	result  *PCResult
}

// NewPCA constructs a per-modality PCA step.
func NewPCA(modality string, kernel PCAKernel) *PCA {
	return &PCA{base: newBase(strings.ToLower(modality) + "_pca"), kernel: kernel, modality: modality}
}

// Defaults returns the canonical per-modality PCA parameter record.
func (s *PCA) Defaults() PCAParams {
	return PCAParams{NumHVGs: 2000, NumPCs: 25, BlockMethod: "none"}
}

// TranslateBlockMethod maps the legacy block_method aliases ("weight",
// "block") read from persisted state to their normative names.
func TranslateBlockMethod(method string) string {
	switch method {
	case "weight":
		return "project"
	case "block":
		return "regress"
	default:
		return method
	}
}

func (s *PCA) Compute(normalized *Matrix, hvgs []int, block *BlockFactor, upstreamChanged bool, params PCAParams) error {
	if normalized == nil {
		s.present = false
		s.unchanged()
		return nil
	}
	params.BlockMethod = TranslateBlockMethod(params.BlockMethod)
	switch params.BlockMethod {
	case "none", "regress", "project":
	default:
		return fmt.Errorf("pca: unknown block_method %q: %w", params.BlockMethod, ErrInvalidParameter)
	}
	if !upstreamChanged && s.present && paramsEqual(params, s.params) {
		s.unchanged()
		return nil
	}
	s.params = params
	s.present = true

	mtx := normalized
	if hvgs != nil {
		mtx = normalized.SubsetRows(hvgs)
	}
	dense := denseOf(mtx)

	var blockIndices []int32
	if block != nil {
		blockIndices = block.Indices
	}
	raw, err := s.kernel.RunPCA(dense, mtx.NumRows(), mtx.NumCols(), params.NumPCs, blockIndices, params.BlockMethod)
	if err != nil {
		return fmt.Errorf("pca(%s): %w", s.modality, err)
	}
	s.result = toPCResult(raw)
	s.recompute()
	return nil
}

func (s *PCA) Valid() bool              { return s.present }
func (s *PCA) FetchResult() *PCResult   { return s.result }
func (s *PCA) Free()                    { s.result = nil }

func denseOf(m *Matrix) []float64 {
	if m.IsSparse() {
		return m.Sparse().ToDense()
	}
	return append([]float64(nil), m.Dense().RawMatrix().Data...)
}

func toPCResult(raw PCAResult) *PCResult {
	numPCs := len(raw.Scores)
	if numPCs == 0 {
		return &PCResult{Scores: mat.NewDense(0, 0, nil), VarianceExplained: raw.VarianceExplained}
	}
	ncol := len(raw.Scores[0])
	data := make([]float64, numPCs*ncol)
	for pc, row := range raw.Scores {
		copy(data[pc*ncol:(pc+1)*ncol], row)
	}
	return &PCResult{Scores: mat.NewDense(numPCs, ncol, data), VarianceExplained: raw.VarianceExplained}
}
