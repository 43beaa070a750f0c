package pipeline

// CRISPRQualityControlParams is the crispr_quality_control parameter record.
type CRISPRQualityControlParams struct {
	Nmads float64 `yaml:"nmads"`
}

// CRISPRQualityControl is the C2 step for the CRISPR modality.
type CRISPRQualityControl struct {
	base
	kernel QCKernel
	params CRISPRQualityControlParams

	present    bool
	metrics    QCMetrics
	thresholds QCThresholds
	discard    DiscardVector
}

// NewCRISPRQualityControl constructs the CRISPR QC step.
func NewCRISPRQualityControl(kernel QCKernel) *CRISPRQualityControl {
	return &CRISPRQualityControl{base: newBase("crispr_quality_control"), kernel: kernel}
}

// Defaults returns the canonical crispr_quality_control parameter record.
func (s *CRISPRQualityControl) Defaults() CRISPRQualityControlParams {
	return CRISPRQualityControlParams{Nmads: 3}
}

// Valid reports whether the CRISPR modality was present at the last Compute.
func (s *CRISPRQualityControl) Valid() bool { return s.present }

func (s *CRISPRQualityControl) Compute(matrix *Matrix, block *BlockFactor, upstreamChanged bool, params CRISPRQualityControlParams) error {
	if matrix == nil {
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

	sums := matrix.ColumnSums()
	detected := columnDetected(matrix)
	maxProp, maxIdx := perColumnMax(matrix)
	s.metrics = QCMetrics{Sums: sums, Detected: detected, MaxProportion: maxProp, MaxIndex: maxIdx}

	maxCount := make([]float64, len(sums))
	for i := range maxCount {
		maxCount[i] = sums[i] * maxProp[i]
	}
	levels, groups := blockLevelsAndGroups(block, len(sums))
	discard, thresh := madThreshold(maxCount, levels, groups, s.kernel, params.Nmads, "low")

	s.thresholds = QCThresholds{Lower: map[string][]float64{"max_count": thresh}}
	s.discard = discard
	s.recompute()
	return nil
}

func (s *CRISPRQualityControl) FetchMetrics() QCMetrics       { return s.metrics }
func (s *CRISPRQualityControl) FetchThresholds() QCThresholds { return s.thresholds }
func (s *CRISPRQualityControl) FetchDiscard() DiscardVector   { return s.discard }

func (s *CRISPRQualityControl) Free() {
	s.metrics, s.thresholds, s.discard = QCMetrics{}, QCThresholds{}, nil
}

// perColumnMax returns, per cell, the proportion of its total guide count
// contributed by its single most abundant guide, and that guide's row index.
func perColumnMax(m *Matrix) ([]float64, []int32) {
	ncol := m.NumCols()
	prop := make([]float64, ncol)
	idx := make([]int32, ncol)
	sums := m.ColumnSums()
	for c := 0; c < ncol; c++ {
		var best float64
		var bestRow int32
		for r := 0; r < m.NumRows(); r++ {
			v := m.At(r, c)
			if v > best {
				best, bestRow = v, int32(r)
			}
		}
		prop[c] = safeDivide(best, sums[c])
		idx[c] = bestRow
	}
	return prop, idx
}
