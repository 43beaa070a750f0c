package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/scpipe/scpipe/reference"
)

// FeatureSetEnrichmentParams is the feature_set_enrichment parameter record.
type FeatureSetEnrichmentParams struct {
	Collections  []string `yaml:"collections"`
	Automatic    bool     `yaml:"automatic"`
	Species      string   `yaml:"species"`
	GeneIDColumn string   `yaml:"gene_id_column"`
	GeneIDType   string   `yaml:"gene_id_type"`
	TopMarkers   int      `yaml:"top_markers"`
}

type enrichKey struct {
	cluster int
	effect  string
	summary string
}

// FeatureSetEnrichment is the C14 gene-set enrichment step. Per-request
// (cluster, effect, summary) enrichment tests and per-(collection, set)
// cell scores are both computed lazily and cached, mirroring
// MarkerDetection's lazy versus cache.
type FeatureSetEnrichment struct {
	base
	loader *reference.Loader
	hyper  HypergeometricKernel
	params FeatureSetEnrichmentParams

	present        bool
	markers        *MarkerDetection
	normalized     *Matrix
	datasetGeneIDs []string
	collections    map[string]reference.Collection

	enrichCache    map[enrichKey]map[string]float64
	cellScoreCache map[string][]float64
}

// NewFeatureSetEnrichment constructs the enrichment step.
func NewFeatureSetEnrichment(loader *reference.Loader, hyper HypergeometricKernel) *FeatureSetEnrichment {
	return &FeatureSetEnrichment{base: newBase("feature_set_enrichment"), loader: loader, hyper: hyper}
}

// Defaults returns the canonical feature_set_enrichment parameter record.
func (s *FeatureSetEnrichment) Defaults() FeatureSetEnrichmentParams {
	return FeatureSetEnrichmentParams{TopMarkers: 50}
}

func (s *FeatureSetEnrichment) Compute(ctx context.Context, featureAnnot *FeatureAnnotations, normalized *Matrix, markers *MarkerDetection, upstreamChanged bool, params FeatureSetEnrichmentParams) error {
	requested := params.Automatic || params.GeneIDColumn != ""
	if !requested || !markers.Valid() || featureAnnot == nil || normalized == nil {
		s.present = false
		s.unchanged()
		return nil
	}
	if !upstreamChanged && s.present && paramsEqual(params, s.params) {
		s.unchanged()
		return nil
	}
	s.params = params

	species, geneIDColumn := params.Species, params.GeneIDColumn
	if params.Automatic {
		columns := collectFactorColumns(featureAnnot)
		sp, col, _, err := reference.DetectColumn(ctx, s.loader, columns)
		if err != nil {
			s.present = false
			return fmt.Errorf("feature_set_enrichment: automatic mode: %v: %w", err, ErrResourceLoadFailure)
		}
		species, geneIDColumn = sp, col
	}

	datasetGeneIDs, ok := featureAnnot.Column(geneIDColumn)
	if !ok {
		s.present = false
		return fmt.Errorf("feature_set_enrichment: feature column %q: %w", geneIDColumn, ErrInvalidParameter)
	}

	collections := make(map[string]reference.Collection)
	for _, name := range params.Collections {
		c, err := s.loader.LoadCollection(ctx, species, name)
		if err != nil {
			// ResourceLoadFailure: this collection contributes nothing.
			continue
		}
		collections[name] = c
	}

	s.present = true
	s.markers, s.normalized, s.datasetGeneIDs, s.collections = markers, normalized, datasetGeneIDs, collections
	s.enrichCache = make(map[enrichKey]map[string]float64)
	s.cellScoreCache = make(map[string][]float64)
	s.recompute()
	return nil
}

// Valid reports whether an enrichment context is available.
func (s *FeatureSetEnrichment) Valid() bool { return s.present }

// Enrich selects the top_markers features ranked by effect/summary for a
// cluster and runs a hypergeometric upper-tail test against each member
// set of every requested collection, returning p-values keyed
// "collection/set". Results are cached per (cluster, effect, summary).
func (s *FeatureSetEnrichment) Enrich(cluster int, effect, summary string) (map[string]float64, error) {
	key := enrichKey{cluster, effect, summary}
	if v, ok := s.enrichCache[key]; ok {
		return v, nil
	}
	top, err := s.topMarkerGeneIDs(cluster, effect, summary)
	if err != nil {
		return nil, err
	}
	topSet := make(map[string]bool, len(top))
	for _, g := range top {
		topSet[g] = true
	}
	populationSize := len(s.datasetGeneIDs)

	out := make(map[string]float64)
	for _, collName := range sortedKeys(s.collections) {
		coll := s.collections[collName]
		for _, setName := range sortedSetNames(coll.Sets) {
			members := coll.Sets[setName]
			successesInPopulation := 0
			for _, g := range members {
				if lo.Contains(s.datasetGeneIDs, g) {
					successesInPopulation++
				}
			}
			successesInDrawn := 0
			for _, g := range members {
				if topSet[g] {
					successesInDrawn++
				}
			}
			p := s.hyper.UpperTailP(len(top), successesInDrawn, successesInPopulation, populationSize)
			out[collName+"/"+setName] = p
		}
	}
	s.enrichCache[key] = out
	return out, nil
}

// ComputeSetScore returns, per cell, the mean normalized expression across
// a gene set's members present in the dataset.
func (s *FeatureSetEnrichment) ComputeSetScore(collectionName, setName string) ([]float64, error) {
	key := collectionName + "/" + setName
	if v, ok := s.cellScoreCache[key]; ok {
		return v, nil
	}
	coll, ok := s.collections[collectionName]
	if !ok {
		return nil, fmt.Errorf("feature_set_enrichment: unknown collection %q", collectionName)
	}
	members, ok := coll.Sets[setName]
	if !ok {
		return nil, fmt.Errorf("feature_set_enrichment: unknown set %q in collection %q", setName, collectionName)
	}
	memberSet := make(map[string]bool, len(members))
	for _, g := range members {
		memberSet[g] = true
	}
	var rows []int
	for r, g := range s.datasetGeneIDs {
		if memberSet[g] {
			rows = append(rows, r)
		}
	}
	scores := make([]float64, s.normalized.NumCols())
	if len(rows) == 0 {
		s.cellScoreCache[key] = scores
		return scores, nil
	}
	for c := 0; c < s.normalized.NumCols(); c++ {
		var sum float64
		for _, r := range rows {
			sum += s.normalized.At(r, c)
		}
		scores[c] = sum / float64(len(rows))
	}
	s.cellScoreCache[key] = scores
	return scores, nil
}

func (s *FeatureSetEnrichment) Free() {
	s.present = false
	s.markers, s.normalized, s.datasetGeneIDs, s.collections = nil, nil, nil, nil
	s.enrichCache, s.cellScoreCache = nil, nil
}

// topMarkerGeneIDs ranks features by the requested effect/summary
// statistic and returns the top_markers gene IDs for a cluster.
// effect selects the direction ("up" ranks descending, "down" ascending);
// summary selects the ranking statistic ("mean" or "detected"), both read
// off MarkerDetection's one-vs-rest stats relative to the unweighted
// across-group average.
func (s *FeatureSetEnrichment) topMarkerGeneIDs(cluster int, effect, summary string) ([]string, error) {
	stats := s.markers.FetchStats()
	if cluster < 0 || cluster >= len(stats.Mean) {
		return nil, fmt.Errorf("feature_set_enrichment: cluster %d out of range: %w", cluster, ErrInvalidParameter)
	}

	var perFeature, overall []float64
	switch summary {
	case "detected":
		perFeature, overall = stats.Detected[cluster], averageAcrossGroups(stats.Detected)
	case "mean", "":
		perFeature, overall = stats.Mean[cluster], averageAcrossGroups(stats.Mean)
	default:
		return nil, fmt.Errorf("feature_set_enrichment: unknown summary %q: %w", summary, ErrInvalidParameter)
	}

	type scored struct {
		idx  int
		diff float64
	}
	ranked := make([]scored, len(perFeature))
	for i := range perFeature {
		ranked[i] = scored{i, perFeature[i] - overall[i]}
	}
	switch effect {
	case "up", "":
		sort.Slice(ranked, func(i, j int) bool { return ranked[i].diff > ranked[j].diff })
	case "down":
		sort.Slice(ranked, func(i, j int) bool { return ranked[i].diff < ranked[j].diff })
	default:
		return nil, fmt.Errorf("feature_set_enrichment: unknown effect %q: %w", effect, ErrInvalidParameter)
	}

	n := s.params.TopMarkers
	if n > len(ranked) || n <= 0 {
		n = len(ranked)
	}
	out := make([]string, 0, n)
	for _, r := range ranked[:n] {
		if r.idx < len(s.datasetGeneIDs) {
			out = append(out, s.datasetGeneIDs[r.idx])
		}
	}
	return out, nil
}

func averageAcrossGroups(perGroup [][]float64) []float64 {
	if len(perGroup) == 0 {
		return nil
	}
	out := make([]float64, len(perGroup[0]))
	for _, row := range perGroup {
		for i, v := range row {
			out[i] += v
		}
	}
	for i := range out {
		out[i] /= float64(len(perGroup))
	}
	return out
}

func sortedKeys(m map[string]reference.Collection) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedSetNames(m map[string][]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

