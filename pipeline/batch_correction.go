package pipeline

import "gonum.org/v1/gonum/mat"

// BatchCorrectionParams is the batch_correction parameter record.
type BatchCorrectionParams struct {
	Method       string `yaml:"method"` // "none" | "mnn"
	NumNeighbors int    `yaml:"num_neighbors"`
	Approximate  bool   `yaml:"approximate"`
}

// BatchCorrection is the C8 step.
type BatchCorrection struct {
	base
	mnn    MNNKernel
	params BatchCorrectionParams

	corrected *mat.Dense
	view      bool
}

// NewBatchCorrection constructs the BatchCorrection step.
func NewBatchCorrection(mnn MNNKernel) *BatchCorrection {
	return &BatchCorrection{base: newBase("batch_correction"), mnn: mnn}
}

// Defaults returns the canonical batch_correction parameter record.
func (s *BatchCorrection) Defaults() BatchCorrectionParams {
	return BatchCorrectionParams{Method: "none", NumNeighbors: 15}
}

func (s *BatchCorrection) Compute(combined *mat.Dense, block *BlockFactor, upstreamChanged bool, params BatchCorrectionParams) error {
	if !upstreamChanged && paramsEqual(params, s.params) {
		s.unchanged()
		return nil
	}
	s.params = params

	if params.Method != "mnn" || block == nil {
		s.corrected = combined
		s.view = true
		s.recompute()
		return nil
	}
	s.view = false

	ndim, ncol := combined.Dims()
	data := make([]float64, ndim*ncol)
	for d := 0; d < ndim; d++ {
		for c := 0; c < ncol; c++ {
			data[d*ncol+c] = combined.At(d, c)
		}
	}
	out, err := s.mnn.Correct(data, ncol, ndim, block.Indices, params.NumNeighbors, params.Approximate)
	if err != nil {
		return err
	}
	s.corrected = mat.NewDense(ndim, ncol, out)
	s.recompute()
	return nil
}

// FetchCorrected returns the corrected embedding, or (when method is
// "none" or no block factor exists) a view of the uncorrected input.
func (s *BatchCorrection) FetchCorrected() *mat.Dense { return s.corrected }

func (s *BatchCorrection) Free() {
	if !s.view {
		s.corrected = nil
	}
}
