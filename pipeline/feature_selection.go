package pipeline

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// FeatureSelectionParams is the feature_selection parameter record.
type FeatureSelectionParams struct {
	Span float64 `yaml:"span"`
}

// FeatureSelection is the C5 step (RNA only): fits a mean-variance trend
// and ranks features by their residual above it. The trend is a windowed
// median of variance over features ordered by mean expression — a
// dependency-free stand-in for a loess fit, since nothing in the example
// pack carries a loess/lowess implementation (see DESIGN.md).
type FeatureSelection struct {
	base
	params FeatureSelectionParams

	present        bool
	residual       []float64 // indexed by original feature row
	sortedResidual []float64 // descending, for top-k threshold lookup
}

// NewFeatureSelection constructs the FeatureSelection step.
func NewFeatureSelection() *FeatureSelection {
	return &FeatureSelection{base: newBase("feature_selection")}
}

// Defaults returns the canonical feature_selection parameter record.
func (s *FeatureSelection) Defaults() FeatureSelectionParams {
	return FeatureSelectionParams{Span: 0.3}
}

func (s *FeatureSelection) Compute(normalized *Matrix, upstreamChanged bool, params FeatureSelectionParams) error {
	if normalized == nil {
		s.present = false
		s.unchanged()
		return nil
	}
	if !upstreamChanged && s.present && paramsEqual(params, s.params) {
		s.unchanged()
		return nil
	}
	s.params = params
	s.present = true

	nrow, ncol := normalized.NumRows(), normalized.NumCols()
	means := make([]float64, nrow)
	vars := make([]float64, nrow)
	row := make([]float64, ncol)
	for f := 0; f < nrow; f++ {
		for c := 0; c < ncol; c++ {
			row[c] = normalized.At(f, c)
		}
		means[f] = stat.Mean(row, nil)
		vars[f] = stat.Variance(row, nil)
	}

	order := make([]int, nrow)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return means[order[a]] < means[order[b]] })

	window := int(params.Span * float64(nrow))
	if window < 1 {
		window = 1
	}
	trend := make([]float64, nrow)
	for rank, f := range order {
		lo := rank - window/2
		if lo < 0 {
			lo = 0
		}
		hi := rank + window/2
		if hi > nrow {
			hi = nrow
		}
		neighborVars := make([]float64, 0, hi-lo)
		for _, nf := range order[lo:hi] {
			neighborVars = append(neighborVars, vars[nf])
		}
		trend[f] = medianOf(neighborVars)
	}

	residual := make([]float64, nrow)
	for f := 0; f < nrow; f++ {
		residual[f] = vars[f] - trend[f]
	}
	sorted := append([]float64(nil), residual...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	s.residual, s.sortedResidual = residual, sorted
	s.recompute()
	return nil
}

func (s *FeatureSelection) Valid() bool { return s.present }

// FetchResidual returns the per-feature residual vector (view).
func (s *FeatureSelection) FetchResidual() []float64 { return s.residual }

// TopK returns the sorted (ascending) row indices of the k features with
// the highest residual.
func (s *FeatureSelection) TopK(k int) []int {
	if k > len(s.sortedResidual) {
		k = len(s.sortedResidual)
	}
	if k == 0 {
		return nil
	}
	threshold := s.sortedResidual[k-1]
	var out []int
	for f, r := range s.residual {
		if r >= threshold {
			out = append(out, f)
		}
	}
	sort.Ints(out)
	return out
}

func (s *FeatureSelection) Free() { s.residual, s.sortedResidual = nil, nil }
