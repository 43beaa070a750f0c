package pipeline

// RNAQualityControlParams is the rna_quality_control parameter record.
type RNAQualityControlParams struct {
	UseMitoDefault bool    `yaml:"use_mito_default"`
	MitoPrefix     string  `yaml:"mito_prefix"`
	Nmads          float64 `yaml:"nmads"`
}

// RNAQualityControl is the C2 step for the RNA modality.
type RNAQualityControl struct {
	base
	kernel QCKernel
	params RNAQualityControlParams

	present    bool
	metrics    QCMetrics
	thresholds QCThresholds
	discard    DiscardVector
}

// NewRNAQualityControl constructs the RNA QC step.
func NewRNAQualityControl(kernel QCKernel) *RNAQualityControl {
	return &RNAQualityControl{base: newBase("rna_quality_control"), kernel: kernel}
}

// Defaults returns the canonical rna_quality_control parameter record.
func (s *RNAQualityControl) Defaults() RNAQualityControlParams {
	return RNAQualityControlParams{UseMitoDefault: true, Nmads: 3}
}

// Valid reports whether the RNA modality was present at the last Compute.
func (s *RNAQualityControl) Valid() bool { return s.present }

func (s *RNAQualityControl) Compute(matrix *Matrix, features *FeatureAnnotations, block *BlockFactor, upstreamChanged bool, params RNAQualityControlParams) error {
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
	mitoRows := mitoFeatureRows(features, params)
	mitoSums := rowSubsetSums(matrix, mitoRows)
	mitoProp := make([]float64, len(sums))
	for i := range mitoProp {
		mitoProp[i] = safeDivide(mitoSums[i], sums[i])
	}
	s.metrics = QCMetrics{Sums: sums, Detected: detected, MitoProp: mitoProp}

	levels, groups := blockLevelsAndGroups(block, len(sums))
	sumsDiscard, sumsThresh := madThreshold(sums, levels, groups, s.kernel, params.Nmads, "low")
	detDiscard, detThresh := madThreshold(detected, levels, groups, s.kernel, params.Nmads, "low")
	mitoDiscard, mitoThresh := madThreshold(mitoProp, levels, groups, s.kernel, params.Nmads, "high")

	s.thresholds = QCThresholds{
		Lower: map[string][]float64{"sums": sumsThresh, "detected": detThresh},
		Upper: map[string][]float64{"mito_proportion": mitoThresh},
	}
	s.discard = sumsDiscard.Or(detDiscard).Or(mitoDiscard)
	s.recompute()
	return nil
}

func (s *RNAQualityControl) FetchMetrics() QCMetrics       { return s.metrics }
func (s *RNAQualityControl) FetchThresholds() QCThresholds { return s.thresholds }
func (s *RNAQualityControl) FetchDiscard() DiscardVector   { return s.discard }

func (s *RNAQualityControl) Free() {
	s.metrics, s.thresholds, s.discard = QCMetrics{}, QCThresholds{}, nil
}

func mitoFeatureRows(features *FeatureAnnotations, params RNAQualityControlParams) map[int]bool {
	out := make(map[int]bool)
	if features == nil {
		return out
	}
	symbols, ok := features.Column("symbol")
	if !ok {
		return out
	}
	for i, sym := range symbols {
		if params.MitoPrefix != "" {
			if foldHasPrefix(sym, params.MitoPrefix) {
				out[i] = true
			}
			continue
		}
		if params.UseMitoDefault && isDefaultMitoSymbol(sym) {
			out[i] = true
		}
	}
	return out
}

func columnDetected(m *Matrix) []float64 {
	if m.IsSparse() {
		return m.Sparse().ColumnDetected()
	}
	out := make([]float64, m.NumCols())
	for c := 0; c < m.NumCols(); c++ {
		var n float64
		for r := 0; r < m.NumRows(); r++ {
			if m.At(r, c) != 0 {
				n++
			}
		}
		out[c] = n
	}
	return out
}

func rowSubsetSums(m *Matrix, rows map[int]bool) []float64 {
	if m.IsSparse() {
		return m.Sparse().RowSubsetSums(rows)
	}
	out := make([]float64, m.NumCols())
	for c := 0; c < m.NumCols(); c++ {
		var s float64
		for r := range rows {
			s += m.At(r, c)
		}
		out[c] = s
	}
	return out
}
