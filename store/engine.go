package store

import (
	"fmt"

	"github.com/scpipe/scpipe/pipeline"
)

// ParametersFromContainer decodes every step group's parameters into a
// pipeline.EngineParams bundle, applying whatever defaults were already
// populated in base (typically engine.DefaultParams()) for any group the
// container doesn't mention.
func ParametersFromContainer(c *Container, base pipeline.EngineParams) (pipeline.EngineParams, error) {
	out := base
	fields := map[string]any{
		"inputs":                  &out.Inputs,
		"rna_quality_control":     &out.RNAQC,
		"adt_quality_control":     &out.ADTQC,
		"crispr_quality_control":  &out.CRISPRQC,
		"cell_filtering":          &out.CellFiltering,
		"feature_selection":       &out.FeatureSelection,
		"rna_pca":                 &out.RNAPCA,
		"adt_pca":                 &out.ADTPCA,
		"crispr_pca":              &out.CRISPRPCA,
		"adt_normalization":       &out.ADTNormalization,
		"combine_embeddings":      &out.CombineEmbeddings,
		"batch_correction":        &out.BatchCorrection,
		"neighbor_index":          &out.NeighborIndex,
		"tsne":                    &out.TSNE,
		"umap":                    &out.UMAP,
		"kmeans_cluster":          &out.KMeansCluster,
		"snn_graph_cluster":       &out.SnnGraphCluster,
		"choose_clustering":       &out.ChooseClustering,
		"rna_marker_detection":    &out.RNAMarkers,
		"adt_marker_detection":    &out.ADTMarkers,
		"crispr_marker_detection": &out.CRISPRMarkers,
		"custom_selections":       &out.CustomSelections,
		"cell_labelling":          &out.CellLabelling,
		"feature_set_enrichment":  &out.FeatureSetEnrichment,
	}
	for name, dst := range fields {
		g, ok := c.Steps[name]
		if !ok || g.Parameters == nil {
			continue
		}
		if err := remarshal(g.Parameters, dst); err != nil {
			return out, fmt.Errorf("store: decoding %s parameters: %w", name, err)
		}
	}
	return out, nil
}

// ContainerFromParameters encodes an EngineParams bundle into a fresh
// container's per-step parameter groups.
func ContainerFromParameters(p pipeline.EngineParams) (*Container, error) {
	c := NewContainer()
	fields := map[string]any{
		"inputs":                  p.Inputs,
		"rna_quality_control":     p.RNAQC,
		"adt_quality_control":     p.ADTQC,
		"crispr_quality_control":  p.CRISPRQC,
		"cell_filtering":          p.CellFiltering,
		"feature_selection":       p.FeatureSelection,
		"rna_pca":                 p.RNAPCA,
		"adt_pca":                 p.ADTPCA,
		"crispr_pca":              p.CRISPRPCA,
		"adt_normalization":       p.ADTNormalization,
		"combine_embeddings":      p.CombineEmbeddings,
		"batch_correction":        p.BatchCorrection,
		"neighbor_index":          p.NeighborIndex,
		"tsne":                    p.TSNE,
		"umap":                    p.UMAP,
		"kmeans_cluster":          p.KMeansCluster,
		"snn_graph_cluster":       p.SnnGraphCluster,
		"choose_clustering":       p.ChooseClustering,
		"rna_marker_detection":    p.RNAMarkers,
		"adt_marker_detection":    p.ADTMarkers,
		"crispr_marker_detection": p.CRISPRMarkers,
		"custom_selections":       p.CustomSelections,
		"cell_labelling":          p.CellLabelling,
		"feature_set_enrichment":  p.FeatureSetEnrichment,
	}
	for name, src := range fields {
		g := c.Group(name)
		var m map[string]any
		if err := remarshal(src, &m); err != nil {
			return nil, fmt.Errorf("store: encoding %s parameters: %w", name, err)
		}
		g.Parameters = m
	}
	return c, nil
}

// SaveEngine snapshots an engine's parameters and a per-step results digest
// (changed flag and cache generation, plus the clustering label counts and
// the cell-filtering retained-column mapping) into a container. Full
// numeric result buffers are not persisted; spec.md's per-step dataset
// contracts for every numeric result are not reproduced in this exercise,
// so SaveEngine/RestoreEngine round-trip parameters and cheap digests only
// (see DESIGN.md).
func SaveEngine(e *pipeline.Engine) (*Container, error) {
	c, err := ContainerFromParameters(e.RetrieveParameters())
	if err != nil {
		return nil, err
	}
	c.NumCells = e.CellFiltering().NumCols()
	for _, step := range e.Steps() {
		g := c.Group(step.Name())
		g.Results = map[string]any{
			"changed":    step.Changed(),
			"generation": step.Generation(),
		}
	}
	if labels := e.ChooseClustering().FetchLabels(); labels != nil {
		perCluster := make(map[string]int)
		for _, l := range labels {
			perCluster[fmt.Sprint(l)]++
		}
		c.Group("choose_clustering").Results["per_cluster"] = perCluster
	}
	c.Group("cell_filtering").Results["permutation"] = e.CellFiltering().FetchPooledDiscard().RetainedIndices()
	return c, nil
}

// RestoreEngine validates a container's recorded cell count against the
// engine's currently loaded Inputs (StateMismatch on disagreement), stages
// its decoded parameters via ApplyParameters, and marks Inputs loaded so
// the next RunAnalysis forces a full recompute cascade regardless of
// descriptor fingerprints, per spec.md §5's ordering guarantee for restored
// state.
func RestoreEngine(e *pipeline.Engine, c *Container) (pipeline.EngineParams, error) {
	if c.NumCells != 0 && e.Inputs().NumCols() != 0 && c.NumCells != e.Inputs().NumCols() {
		return pipeline.EngineParams{}, fmt.Errorf("store: restored state was saved against %d cells, loaded inputs have %d: %w",
			c.NumCells, e.Inputs().NumCols(), pipeline.ErrStateMismatch)
	}
	params, err := ParametersFromContainer(c, e.DefaultParams())
	if err != nil {
		return pipeline.EngineParams{}, err
	}
	e.ApplyParameters(params)
	e.Inputs().MarkLoaded()
	return params, nil
}
