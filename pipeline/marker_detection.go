package pipeline

import "strings"

// MarkerDetectionParams is the per-modality *_marker_detection parameter record.
type MarkerDetectionParams struct {
	LFCThreshold float64 `yaml:"lfc_threshold"`
	ComputeAUC   bool    `yaml:"compute_auc"`
}

// MarkerDetection is the C12 step, one instance per modality. One-vs-rest
// statistics are computed eagerly; pairwise (versus) statistics are
// computed lazily on first request and cached keyed on the unordered group
// pair, since most analyses never request every pair.
type MarkerDetection struct {
	base
	kernel   MarkerKernel
	modality string
	params   MarkerDetectionParams

	present   bool
	data      []float64
	nrow      int
	ncol      int
	groups    []int32
	numGroups int
	stats     MarkerStats
}

// NewMarkerDetection constructs a per-modality marker detection step.
func NewMarkerDetection(modality string, kernel MarkerKernel) *MarkerDetection {
	return &MarkerDetection{base: newBase(strings.ToLower(modality) + "_marker_detection"), kernel: kernel, modality: modality}
}

// Defaults returns the canonical per-modality marker detection parameter
// record.
func (s *MarkerDetection) Defaults() MarkerDetectionParams {
	return MarkerDetectionParams{LFCThreshold: 0}
}

func (s *MarkerDetection) Compute(normalized *Matrix, clusters []int32, upstreamChanged bool, params MarkerDetectionParams) error {
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

	data := denseOf(normalized)
	numGroups := numDistinctGroups(clusters)
	stats, err := s.kernel.ComputeMarkers(data, normalized.NumRows(), normalized.NumCols(), clusters, numGroups, params.LFCThreshold, params.ComputeAUC)
	if err != nil {
		return err
	}
	stats.Versus = make(map[[2]int]PairwiseEffect)

	s.data, s.nrow, s.ncol, s.groups, s.numGroups = data, normalized.NumRows(), normalized.NumCols(), clusters, numGroups
	s.stats = stats
	s.recompute()
	return nil
}

// Valid reports whether this modality is present in the current run.
func (s *MarkerDetection) Valid() bool { return s.present }

// FetchStats returns the one-vs-rest mean/detected statistics (view).
func (s *MarkerDetection) FetchStats() MarkerStats { return s.stats }

// FetchVersus returns the pairwise effect-size statistics for the ordered
// group pair (left, right): positive effects mean "higher in left". The
// cache is keyed on the unordered pair; a request in the opposite order of
// the cached entry returns the sign-flipped statistics rather than
// recomputing, per spec.md §8's versus-symmetry property.
func (s *MarkerDetection) FetchVersus(left, right int) (PairwiseEffect, error) {
	a, b := left, right
	swapped := a > b
	if swapped {
		a, b = b, a
	}
	key := [2]int{a, b}
	v, ok := s.stats.Versus[key]
	if !ok {
		computed, err := s.kernel.ComputeVersus(s.data, s.nrow, s.ncol, s.groups, a, b, s.params.LFCThreshold, s.params.ComputeAUC)
		if err != nil {
			return PairwiseEffect{}, err
		}
		s.stats.Versus[key] = computed
		v = computed
	}
	if swapped {
		return negateEffect(v), nil
	}
	return v, nil
}

func (s *MarkerDetection) Free() {
	s.present = false
	s.data, s.groups = nil, nil
	s.stats = MarkerStats{}
}

// negateEffect flips the sign of a pairwise effect so it reads from the
// opposite group's perspective: AUC is inverted (1-x) rather than negated
// since it is a probability, not a signed quantity.
func negateEffect(e PairwiseEffect) PairwiseEffect {
	neg := func(v []float64) []float64 {
		if v == nil {
			return nil
		}
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = -x
		}
		return out
	}
	var auc []float64
	if e.AUC != nil {
		auc = make([]float64, len(e.AUC))
		for i, x := range e.AUC {
			auc[i] = 1 - x
		}
	}
	return PairwiseEffect{Cohend: neg(e.Cohend), LFC: neg(e.LFC), DeltaDetected: neg(e.DeltaDetected), AUC: auc}
}

// numDistinctGroups returns max(groups)+1, the dense group count a
// contiguous 0-based label vector implies.
func numDistinctGroups(groups []int32) int {
	max := int32(-1)
	for _, g := range groups {
		if g > max {
			max = g
		}
	}
	return int(max) + 1
}
