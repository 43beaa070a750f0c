package pipeline

import "sort"

// ADTQualityControlParams is the adt_quality_control parameter record.
type ADTQualityControlParams struct {
	IggPrefix       string  `yaml:"igg_prefix"`
	Nmads           float64 `yaml:"nmads"`
	MinDetectedDrop float64 `yaml:"min_detected_drop"`
}

// ADTQualityControl is the C2 step for the ADT modality.
type ADTQualityControl struct {
	base
	kernel QCKernel
	params ADTQualityControlParams

	present    bool
	metrics    QCMetrics
	thresholds QCThresholds
	discard    DiscardVector
}

// NewADTQualityControl constructs the ADT QC step.
func NewADTQualityControl(kernel QCKernel) *ADTQualityControl {
	return &ADTQualityControl{base: newBase("adt_quality_control"), kernel: kernel}
}

// Defaults returns the canonical adt_quality_control parameter record.
func (s *ADTQualityControl) Defaults() ADTQualityControlParams {
	return ADTQualityControlParams{IggPrefix: "igg", Nmads: 3, MinDetectedDrop: 0.1}
}

// Valid reports whether the ADT modality was present at the last Compute.
func (s *ADTQualityControl) Valid() bool { return s.present }

func (s *ADTQualityControl) Compute(matrix *Matrix, features *FeatureAnnotations, block *BlockFactor, upstreamChanged bool, params ADTQualityControlParams) error {
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
	iggRows := prefixFeatureRows(features, params.IggPrefix)
	iggTotal := rowSubsetSums(matrix, iggRows)
	s.metrics = QCMetrics{Sums: sums, Detected: detected, IggTotal: iggTotal}

	levels, groups := blockLevelsAndGroups(block, len(sums))
	detDiscard, detThresh := madThreshold(detected, levels, groups, s.kernel, params.Nmads, "low")
	dropDiscard := proportionalDropDiscard(detected, levels, groups, params.MinDetectedDrop)
	iggDiscard, iggThresh := madThreshold(iggTotal, levels, groups, s.kernel, params.Nmads, "high")

	s.thresholds = QCThresholds{
		Lower: map[string][]float64{"detected": detThresh},
		Upper: map[string][]float64{"igg_total": iggThresh},
	}
	s.discard = detDiscard.Or(dropDiscard).Or(iggDiscard)
	s.recompute()
	return nil
}

func (s *ADTQualityControl) FetchMetrics() QCMetrics       { return s.metrics }
func (s *ADTQualityControl) FetchThresholds() QCThresholds { return s.thresholds }
func (s *ADTQualityControl) FetchDiscard() DiscardVector   { return s.discard }

func (s *ADTQualityControl) Free() {
	s.metrics, s.thresholds, s.discard = QCMetrics{}, QCThresholds{}, nil
}

func prefixFeatureRows(features *FeatureAnnotations, prefix string) map[int]bool {
	out := make(map[int]bool)
	if features == nil || prefix == "" {
		return out
	}
	ids, ok := features.Column("id")
	if !ok {
		ids, ok = features.Column("symbol")
	}
	if !ok {
		return out
	}
	for i, id := range ids {
		if foldHasPrefix(id, prefix) {
			out[i] = true
		}
	}
	return out
}

// proportionalDropDiscard adds the "at least min_detected_drop proportional
// drop from the block median" rule on top of the plain low-MAD filter on
// detected (spec.md §4.3, ADT policy).
func proportionalDropDiscard(detected []float64, levels []string, groups map[string][]int, minDrop float64) DiscardVector {
	out := make(DiscardVector, len(detected))
	if minDrop <= 0 {
		return out
	}
	for _, level := range levels {
		idx := groups[level]
		sub := make([]float64, len(idx))
		for i, c := range idx {
			sub[i] = detected[c]
		}
		median := medianOf(sub)
		threshold := median * (1 - minDrop)
		for _, c := range idx {
			if detected[c] < threshold {
				out[c] = 1
			}
		}
	}
	return out
}

func medianOf(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	n := len(sorted)
	if n == 0 {
		return 0
	}
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
