package pipeline

// RNANormalization is the C4 step for the RNA modality: size factors are
// the filtered matrix's raw library sums.
type RNANormalization struct {
	base
	present     bool
	sizeFactors SizeFactors
	normalized  *Matrix
}

// NewRNANormalization constructs the RNA normalization step.
func NewRNANormalization() *RNANormalization {
	return &RNANormalization{base: newBase("rna_normalization")}
}

func (s *RNANormalization) Compute(matrix *Matrix, upstreamChanged bool) error {
	if matrix == nil {
		s.present = false
		s.unchanged()
		return nil
	}
	if !upstreamChanged && s.present {
		s.unchanged()
		return nil
	}
	s.present = true
	s.sizeFactors = SizeFactors(matrix.ColumnSums())
	s.normalized = logNormalizeBySizeFactor(matrix, s.sizeFactors)
	s.recompute()
	return nil
}

func (s *RNANormalization) Valid() bool                    { return s.present }
func (s *RNANormalization) FetchSizeFactors() SizeFactors  { return s.sizeFactors }
func (s *RNANormalization) FetchNormalized() *Matrix       { return s.normalized }
func (s *RNANormalization) Free()                          { s.sizeFactors, s.normalized = nil, nil }
