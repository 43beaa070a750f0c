package pipeline

import (
	"context"
	"fmt"

	"github.com/scpipe/scpipe/reference"
)

// CellLabellingParams is the cell_labelling parameter record.
type CellLabellingParams struct {
	References   []string `yaml:"references"`
	Automatic    bool     `yaml:"automatic"`
	Species      string   `yaml:"species"`
	GeneIDColumn string   `yaml:"gene_id_column"`
	GeneIDType   string   `yaml:"gene_id_type"`
}

// CellLabelling is the C14 reference-based labeling step. It depends on
// MarkerDetection's RNA result (per-cluster mean expression) and the RNA
// feature annotations.
type CellLabelling struct {
	base
	loader *reference.Loader
	params CellLabellingParams

	present bool
	labels  []string
	scores  []float64
}

// NewCellLabelling constructs the cell labelling step.
func NewCellLabelling(loader *reference.Loader) *CellLabelling {
	return &CellLabelling{base: newBase("cell_labelling"), loader: loader}
}

// Defaults returns the canonical cell_labelling parameter record.
func (s *CellLabelling) Defaults() CellLabellingParams { return CellLabellingParams{} }

func (s *CellLabelling) Compute(ctx context.Context, markers *MarkerDetection, featureAnnot *FeatureAnnotations, numClusters int, upstreamChanged bool, params CellLabellingParams) error {
	requested := params.Automatic || params.GeneIDColumn != ""
	if !requested || !markers.Valid() || featureAnnot == nil || numClusters == 0 {
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
			return fmt.Errorf("cell_labelling: automatic mode: %v: %w", err, ErrResourceLoadFailure)
		}
		species, geneIDColumn = sp, col
	}

	datasetGeneIDs, ok := featureAnnot.Column(geneIDColumn)
	if !ok {
		s.present = false
		return fmt.Errorf("cell_labelling: feature column %q: %w", geneIDColumn, ErrInvalidParameter)
	}

	clusterMeans := markers.FetchStats().Mean

	var allLabels [][]string
	var allScores [][]float64
	for _, refName := range params.References {
		profile, err := s.loader.LoadReference(ctx, species, refName)
		if err != nil {
			// ResourceLoadFailure: this reference contributes nothing rather
			// than failing the whole step.
			continue
		}
		labels, scores, err := reference.Classify(profile, datasetGeneIDs, clusterMeans)
		if err != nil {
			continue
		}
		allLabels = append(allLabels, labels)
		allScores = append(allScores, scores)
	}

	s.present = true
	if len(allLabels) == 0 {
		s.labels = make([]string, numClusters)
		s.scores = make([]float64, numClusters)
	} else {
		s.labels, s.scores = reference.Integrate(allLabels, allScores)
	}
	s.recompute()
	return nil
}

// Valid reports whether a labeling result is available.
func (s *CellLabelling) Valid() bool { return s.present }

// FetchLabels returns the per-cluster chosen label and its integration
// score.
func (s *CellLabelling) FetchLabels() ([]string, []float64) { return s.labels, s.scores }

func (s *CellLabelling) Free() {
	s.present = false
	s.labels, s.scores = nil, nil
}

// collectFactorColumns gathers every factor-valued feature annotation
// column as a name -> per-row string slice map, the candidate pool
// automatic-mode scoring considers.
func collectFactorColumns(fa *FeatureAnnotations) map[string][]string {
	out := make(map[string][]string)
	for _, name := range fa.Table().Names() {
		if col, ok := fa.Column(name); ok {
			out[name] = col
		}
	}
	return out
}
