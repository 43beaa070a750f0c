package pipeline

// CellFilteringParams is the cell_filtering parameter record.
type CellFilteringParams struct {
	UseRNA    bool `yaml:"use_rna"`
	UseADT    bool `yaml:"use_adt"`
	UseCRISPR bool `yaml:"use_crispr"`
}

// CellFiltering is the C3 step: pools per-modality QC discard vectors and
// applies the resulting column filter to every modality matrix and to the
// block factor.
type CellFiltering struct {
	base
	params CellFilteringParams

	pooledDiscard DiscardVector
	retained      []int // original-cell indices retained, aligned to filtered columns

	filtered    *MultiMatrix
	block       *BlockFactor
	annotations *Annotations
}

// NewCellFiltering constructs the CellFiltering step.
func NewCellFiltering() *CellFiltering {
	return &CellFiltering{base: newBase("cell_filtering")}
}

// Defaults returns the canonical cell_filtering parameter record.
func (s *CellFiltering) Defaults() CellFilteringParams {
	return CellFilteringParams{UseRNA: true, UseADT: true, UseCRISPR: true}
}

func (s *CellFiltering) Compute(inputs *Inputs, rnaQC *RNAQualityControl, adtQC *ADTQualityControl, crisprQC *CRISPRQualityControl, params CellFilteringParams) error {
	upstreamChanged := anyUpstreamChanged(inputs, rnaQC, adtQC, crisprQC)
	if !upstreamChanged && paramsEqual(params, s.params) {
		s.unchanged()
		return nil
	}
	s.params = params

	n := inputs.NumCols()
	var contributing []DiscardVector
	if params.UseRNA && rnaQC.Valid() {
		contributing = append(contributing, rnaQC.FetchDiscard())
	}
	if params.UseADT && adtQC.Valid() {
		contributing = append(contributing, adtQC.FetchDiscard())
	}
	if params.UseCRISPR && crisprQC.Valid() {
		contributing = append(contributing, crisprQC.FetchDiscard())
	}

	var pooled DiscardVector
	switch len(contributing) {
	case 0:
		pooled = make(DiscardVector, n)
	case 1:
		pooled = contributing[0] // view, aliased per spec.md §4.4
	default:
		pooled = contributing[0]
		for _, d := range contributing[1:] {
			pooled = pooled.Or(d)
		}
	}
	s.pooledDiscard = pooled
	s.retained = pooled.RetainedIndices()

	filtered := NewMultiMatrix()
	for _, modality := range inputs.matrices.Modalities() {
		m, _ := inputs.FetchModality(modality)
		filtered.Set(modality, m.SubsetColumns(s.retained))
	}
	s.filtered = filtered
	s.block = inputs.FetchBlock().Subset(s.retained)
	s.annotations = inputs.FetchCellAnnotations().Subset(s.retained)

	s.recompute()
	return nil
}

// FetchPooledDiscard returns the combined discard vector over original
// (unfiltered) cell positions.
func (s *CellFiltering) FetchPooledDiscard() DiscardVector { return s.pooledDiscard }

// FetchFilteredMatrix returns a view of the filtered count matrix for a
// present modality.
func (s *CellFiltering) FetchFilteredMatrix(modality string) (*Matrix, bool) {
	return s.filtered.Get(modality)
}

// FetchFilteredBlock returns the filtered block factor, or nil.
func (s *CellFiltering) FetchFilteredBlock() *BlockFactor { return s.block }

// FetchFilteredAnnotations returns the cell-annotation table re-indexed to
// the retained cells.
func (s *CellFiltering) FetchFilteredAnnotations() *Annotations { return s.annotations }

// NumCols returns the number of retained cells.
func (s *CellFiltering) NumCols() int { return len(s.retained) }

// UndoFiltering maps an index on the filtered matrix back to its index on
// the original (pre-filter) matrix.
func (s *CellFiltering) UndoFiltering(filteredIndex int) int {
	return s.retained[filteredIndex]
}

func (s *CellFiltering) Free() {
	s.pooledDiscard, s.retained, s.filtered, s.block, s.annotations = nil, nil, nil, nil, nil
}
