package pipeline

import (
	"fmt"
	"sort"
)

// CustomSelectionsParams is the custom_selections parameter record.
type CustomSelectionsParams struct {
	LFCThreshold float64 `yaml:"lfc_threshold"`
	ComputeAUC   bool    `yaml:"compute_auc"`
}

type selectionEntry struct {
	indices Selection
	stats   map[string]MarkerStats // modality -> one-vs-rest markers (group 0 = selection, group 1 = rest)
}

// CustomSelections is the C13 step: an ordered set of ad-hoc cell
// selections, each with its own one-vs-rest marker result per modality,
// plus lazily cached versus-pair statistics across selections.
type CustomSelections struct {
	base
	kernel MarkerKernel
	params CustomSelectionsParams

	normalized *MultiMatrix
	numCells   int

	order   []string
	entries map[string]*selectionEntry
	versus  map[[2]string]map[string]PairwiseEffect
}

// NewCustomSelections constructs the custom selections step.
func NewCustomSelections(kernel MarkerKernel) *CustomSelections {
	return &CustomSelections{
		base:    newBase("custom_selections"),
		kernel:  kernel,
		entries: make(map[string]*selectionEntry),
		versus:  make(map[[2]string]map[string]PairwiseEffect),
	}
}

// Defaults returns the canonical custom_selections parameter record.
func (s *CustomSelections) Defaults() CustomSelectionsParams {
	return CustomSelectionsParams{LFCThreshold: 0}
}

// Compute refreshes the normalized-matrix reference add_selection needs and
// applies the two invalidation rules: a CellFiltering change drops every
// selection outright (their column positions are no longer meaningful); a
// parameter-only change recomputes every surviving selection in place.
func (s *CustomSelections) Compute(cellFilteringChanged bool, normalized *MultiMatrix, params CustomSelectionsParams) error {
	s.normalized = normalized
	s.numCells = normalized.NumCols()

	if cellFilteringChanged {
		hadAny := len(s.order) > 0
		s.order = nil
		s.entries = make(map[string]*selectionEntry)
		s.versus = make(map[[2]string]map[string]PairwiseEffect)
		s.params = params
		if hadAny {
			s.recompute()
		} else {
			s.unchanged()
		}
		return nil
	}

	if !paramsEqual(params, s.params) {
		s.params = params
		s.versus = make(map[[2]string]map[string]PairwiseEffect)
		for _, id := range s.order {
			if err := s.recomputeEntry(s.entries[id]); err != nil {
				return err
			}
		}
		s.recompute()
		return nil
	}

	s.unchanged()
	return nil
}

// AddSelection validates indices against the filtered cell count, computes
// one-vs-rest markers for every present modality, and stores the result
// under id (replacing any existing selection of the same id).
func (s *CustomSelections) AddSelection(id string, indices []int) error {
	sorted := append(Selection(nil), indices...)
	sort.Ints(sorted)
	for _, idx := range sorted {
		if idx < 0 || idx >= s.numCells {
			return fmt.Errorf("custom_selections: index %d out of range [0,%d): %w", idx, s.numCells, ErrStaleReference)
		}
	}

	entry := &selectionEntry{indices: sorted}
	if err := s.recomputeEntry(entry); err != nil {
		return err
	}
	if _, exists := s.entries[id]; !exists {
		s.order = append(s.order, id)
	}
	s.entries[id] = entry
	s.dropVersusInvolving(id)
	s.recompute()
	return nil
}

// RemoveSelection frees the resources associated with id, a no-op if it is
// not present.
func (s *CustomSelections) RemoveSelection(id string) {
	if _, ok := s.entries[id]; !ok {
		return
	}
	delete(s.entries, id)
	for i, got := range s.order {
		if got == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.dropVersusInvolving(id)
	s.recompute()
}

// FetchSelections returns the selection ids in insertion order.
func (s *CustomSelections) FetchSelections() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// FetchIndices returns the stored column indices for id.
func (s *CustomSelections) FetchIndices(id string) (Selection, bool) {
	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	return e.indices, true
}

// FetchStats returns the one-vs-rest marker stats for id and modality.
func (s *CustomSelections) FetchStats(id, modality string) (MarkerStats, bool) {
	e, ok := s.entries[id]
	if !ok {
		return MarkerStats{}, false
	}
	st, ok := e.stats[modality]
	return st, ok
}

// FetchVersus returns, per modality, the pairwise effect-size statistics
// for the ordered pair (left, right): positive effects mean "higher in
// left". The cache is keyed on the lexicographically ordered pair,
// mirroring the group-pair cache discipline in MarkerDetection; a request
// in the opposite order of the cached entry returns the sign-flipped
// statistics rather than recomputing.
func (s *CustomSelections) FetchVersus(left, right string) (map[string]PairwiseEffect, error) {
	a, b := left, right
	swapped := a > b
	if swapped {
		a, b = b, a
	}
	key := [2]string{a, b}
	if v, ok := s.versus[key]; ok {
		if swapped {
			return negateEffectMap(v), nil
		}
		return v, nil
	}
	ea, ok := s.entries[a]
	if !ok {
		return nil, fmt.Errorf("custom_selections: unknown selection %q", a)
	}
	eb, ok := s.entries[b]
	if !ok {
		return nil, fmt.Errorf("custom_selections: unknown selection %q", b)
	}
	memberA := toMembership(ea.indices)
	memberB := toMembership(eb.indices)

	out := make(map[string]PairwiseEffect)
	for _, modality := range s.normalized.Modalities() {
		m, _ := s.normalized.Get(modality)
		data := denseOf(m)
		groups := make([]int32, s.numCells)
		for i := range groups {
			switch {
			case memberA[i]:
				groups[i] = 0
			case memberB[i]:
				groups[i] = 1
			default:
				groups[i] = -1
			}
		}
		eff, err := s.kernel.ComputeVersus(data, m.NumRows(), m.NumCols(), groups, 0, 1, s.params.LFCThreshold, s.params.ComputeAUC)
		if err != nil {
			return nil, err
		}
		out[modality] = eff
	}
	s.versus[key] = out
	if swapped {
		return negateEffectMap(out), nil
	}
	return out, nil
}

func negateEffectMap(in map[string]PairwiseEffect) map[string]PairwiseEffect {
	out := make(map[string]PairwiseEffect, len(in))
	for modality, eff := range in {
		out[modality] = negateEffect(eff)
	}
	return out
}

func (s *CustomSelections) recomputeEntry(entry *selectionEntry) error {
	member := toMembership(entry.indices)
	groups := make([]int32, s.numCells)
	for i := range groups {
		if !member[i] {
			groups[i] = 1
		}
	}
	stats := make(map[string]MarkerStats, len(s.normalized.Modalities()))
	for _, modality := range s.normalized.Modalities() {
		m, _ := s.normalized.Get(modality)
		data := denseOf(m)
		st, err := s.kernel.ComputeMarkers(data, m.NumRows(), m.NumCols(), groups, 2, s.params.LFCThreshold, s.params.ComputeAUC)
		if err != nil {
			return err
		}
		stats[modality] = st
	}
	entry.stats = stats
	return nil
}

func (s *CustomSelections) dropVersusInvolving(id string) {
	for key := range s.versus {
		if key[0] == id || key[1] == id {
			delete(s.versus, key)
		}
	}
}

func toMembership(indices Selection) map[int]bool {
	out := make(map[int]bool, len(indices))
	for _, idx := range indices {
		out[idx] = true
	}
	return out
}

func (s *CustomSelections) Free() {
	s.order = nil
	s.entries = make(map[string]*selectionEntry)
	s.versus = make(map[[2]string]map[string]PairwiseEffect)
}
