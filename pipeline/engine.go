package pipeline

import (
	"context"

	"github.com/scpipe/scpipe/datasets"
	"github.com/scpipe/scpipe/reference"
)

// EngineParams bundles every step's parameter record into the single value
// run_analysis and the round-trip/serialization properties operate on.
type EngineParams struct {
	Inputs InputsParams `yaml:"inputs"`

	RNAQC    RNAQualityControlParams    `yaml:"rna_quality_control"`
	ADTQC    ADTQualityControlParams    `yaml:"adt_quality_control"`
	CRISPRQC CRISPRQualityControlParams `yaml:"crispr_quality_control"`

	CellFiltering CellFilteringParams `yaml:"cell_filtering"`

	FeatureSelection FeatureSelectionParams `yaml:"feature_selection"`

	RNAPCA    PCAParams `yaml:"rna_pca"`
	ADTPCA    PCAParams `yaml:"adt_pca"`
	CRISPRPCA PCAParams `yaml:"crispr_pca"`

	ADTNormalization ADTNormalizationParams `yaml:"adt_normalization"`

	CombineEmbeddings CombineEmbeddingsParams `yaml:"combine_embeddings"`
	BatchCorrection   BatchCorrectionParams   `yaml:"batch_correction"`
	NeighborIndex     NeighborIndexParams     `yaml:"neighbor_index"`

	TSNE TSNEParams `yaml:"tsne"`
	UMAP UMAPParams `yaml:"umap"`

	KMeansCluster    KMeansClusterParams    `yaml:"kmeans_cluster"`
	SnnGraphCluster  SnnGraphClusterParams  `yaml:"snn_graph_cluster"`
	ChooseClustering ChooseClusteringParams `yaml:"choose_clustering"`

	RNAMarkers    MarkerDetectionParams `yaml:"rna_marker_detection"`
	ADTMarkers    MarkerDetectionParams `yaml:"adt_marker_detection"`
	CRISPRMarkers MarkerDetectionParams `yaml:"crispr_marker_detection"`

	CustomSelections CustomSelectionsParams `yaml:"custom_selections"`

	CellLabelling        CellLabellingParams        `yaml:"cell_labelling"`
	FeatureSetEnrichment FeatureSetEnrichmentParams `yaml:"feature_set_enrichment"`
}

// Engine is the C15 driver: it owns every step and runs them in the fixed
// topological order spec.md §5 requires, awaiting the two background
// embedding workers only at the very end.
type Engine struct {
	loader    datasets.Loader
	refLoader *reference.Loader
	sink      AnimationSink

	descriptors []datasets.Descriptor
	params      EngineParams

	inputs *Inputs

	rnaQC    *RNAQualityControl
	adtQC    *ADTQualityControl
	crisprQC *CRISPRQualityControl

	cellFiltering *CellFiltering

	rnaNorm    *RNANormalization
	adtNorm    *ADTNormalization
	crisprNorm *CRISPRNormalization

	featureSelection *FeatureSelection

	rnaPCA    *PCA
	adtPCA    *PCA
	crisprPCA *PCA

	combine       *CombineEmbeddings
	correction    *BatchCorrection
	neighborIndex *NeighborIndex

	tsne *TSNEEmbedding
	umap *UMAPEmbedding

	kmeans *KMeansCluster
	snn    *SnnGraphCluster
	choose *ChooseClustering

	rnaMarkers    *MarkerDetection
	adtMarkers    *MarkerDetection
	crisprMarkers *MarkerDetection

	customSelections *CustomSelections

	cellLabelling        *CellLabelling
	featureSetEnrichment *FeatureSetEnrichment
}

// NewEngine constructs every step, wiring each to the kernel implementation
// its factory variable currently points to (see kernels.go).
func NewEngine(loader datasets.Loader, refLoader *reference.Loader, sink AnimationSink) *Engine {
	return &Engine{
		loader:    loader,
		refLoader: refLoader,
		sink:      sink,

		inputs: NewInputs(loader),

		rnaQC:    NewRNAQualityControl(NewQCKernelFunc()),
		adtQC:    NewADTQualityControl(NewQCKernelFunc()),
		crisprQC: NewCRISPRQualityControl(NewQCKernelFunc()),

		cellFiltering: NewCellFiltering(),

		rnaNorm:    NewRNANormalization(),
		adtNorm:    NewADTNormalization(NewPCAKernelFunc(), NewKMeansKernelFunc()),
		crisprNorm: NewCRISPRNormalization(),

		featureSelection: NewFeatureSelection(),

		rnaPCA:    NewPCA(ModalityRNA, NewPCAKernelFunc()),
		adtPCA:    NewPCA(ModalityADT, NewPCAKernelFunc()),
		crisprPCA: NewPCA(ModalityCRISPR, NewPCAKernelFunc()),

		combine:       NewCombineEmbeddings(NewNeighborSearchKernelFunc()),
		correction:    NewBatchCorrection(NewMNNKernelFunc()),
		neighborIndex: NewNeighborIndex(NewNeighborSearchKernelFunc()),

		tsne: NewTSNEEmbedding(NewTSNEKernelFunc(), sink),
		umap: NewUMAPEmbedding(NewUMAPKernelFunc(), sink),

		kmeans: NewKMeansCluster(NewKMeansKernelFunc()),
		snn:    NewSnnGraphCluster(NewNeighborSearchKernelFunc(), NewSNNGraphKernelFunc()),
		choose: NewChooseClustering(),

		rnaMarkers:    NewMarkerDetection(ModalityRNA, NewMarkerKernelFunc()),
		adtMarkers:    NewMarkerDetection(ModalityADT, NewMarkerKernelFunc()),
		crisprMarkers: NewMarkerDetection(ModalityCRISPR, NewMarkerKernelFunc()),

		customSelections: NewCustomSelections(NewMarkerKernelFunc()),

		cellLabelling:        NewCellLabelling(refLoader),
		featureSetEnrichment: NewFeatureSetEnrichment(refLoader, NewHypergeometricKernelFunc()),
	}
}

// DefaultParams collects every step's canonical parameter record into one
// EngineParams bundle.
func (e *Engine) DefaultParams() EngineParams {
	return EngineParams{
		Inputs:               e.inputs.Defaults(),
		RNAQC:                e.rnaQC.Defaults(),
		ADTQC:                e.adtQC.Defaults(),
		CRISPRQC:             e.crisprQC.Defaults(),
		CellFiltering:        e.cellFiltering.Defaults(),
		FeatureSelection:     e.featureSelection.Defaults(),
		RNAPCA:               e.rnaPCA.Defaults(),
		ADTPCA:               e.adtPCA.Defaults(),
		CRISPRPCA:            e.crisprPCA.Defaults(),
		ADTNormalization:     e.adtNorm.Defaults(),
		CombineEmbeddings:    e.combine.Defaults(),
		BatchCorrection:      e.correction.Defaults(),
		NeighborIndex:        e.neighborIndex.Defaults(),
		TSNE:                 e.tsne.Defaults(),
		UMAP:                 e.umap.Defaults(),
		KMeansCluster:        e.kmeans.Defaults(),
		SnnGraphCluster:      e.snn.Defaults(),
		ChooseClustering:     e.choose.Defaults(),
		RNAMarkers:           e.rnaMarkers.Defaults(),
		ADTMarkers:           e.adtMarkers.Defaults(),
		CRISPRMarkers:        e.crisprMarkers.Defaults(),
		CustomSelections:     e.customSelections.Defaults(),
		CellLabelling:        e.cellLabelling.Defaults(),
		FeatureSetEnrichment: e.featureSetEnrichment.Defaults(),
	}
}

// RetrieveParameters returns the parameter bundle from the most recent
// RunAnalysis call.
func (e *Engine) RetrieveParameters() EngineParams { return e.params }

// ApplyParameters stages a parameter bundle for the next RunAnalysis call
// without running it, the way store.RestoreEngine primes an engine before
// its first run against freshly loaded inputs.
func (e *Engine) ApplyParameters(p EngineParams) { e.params = p }

// Descriptors returns the dataset descriptors from the most recent
// RunAnalysis call.
func (e *Engine) Descriptors() []datasets.Descriptor { return e.descriptors }

// RunAnalysis invokes compute on every step in dependency order, starting
// the two background embedding workers synchronously and awaiting them
// only at the end, per spec.md §5's ordering guarantees.
func (e *Engine) RunAnalysis(ctx context.Context, descriptors []datasets.Descriptor, params EngineParams) error {
	e.params = params
	e.descriptors = descriptors

	if err := e.inputs.Compute(ctx, descriptors, params.Inputs); err != nil {
		return err
	}
	inputsChanged := e.inputs.Changed()

	rnaMatrix, _ := e.inputs.FetchModality(ModalityRNA)
	adtMatrix, _ := e.inputs.FetchModality(ModalityADT)
	crisprMatrix, _ := e.inputs.FetchModality(ModalityCRISPR)

	if err := e.rnaQC.Compute(rnaMatrix, e.inputs.FetchFeatureAnnotations(ModalityRNA), e.inputs.FetchBlock(), inputsChanged, params.RNAQC); err != nil {
		return err
	}
	if err := e.adtQC.Compute(adtMatrix, e.inputs.FetchFeatureAnnotations(ModalityADT), e.inputs.FetchBlock(), inputsChanged, params.ADTQC); err != nil {
		return err
	}
	if err := e.crisprQC.Compute(crisprMatrix, e.inputs.FetchBlock(), inputsChanged, params.CRISPRQC); err != nil {
		return err
	}

	if err := e.cellFiltering.Compute(e.inputs, e.rnaQC, e.adtQC, e.crisprQC, params.CellFiltering); err != nil {
		return err
	}
	filteringChanged := e.cellFiltering.Changed()

	rnaFiltered, _ := e.cellFiltering.FetchFilteredMatrix(ModalityRNA)
	adtFiltered, _ := e.cellFiltering.FetchFilteredMatrix(ModalityADT)
	crisprFiltered, _ := e.cellFiltering.FetchFilteredMatrix(ModalityCRISPR)

	if err := e.rnaNorm.Compute(rnaFiltered, filteringChanged); err != nil {
		return err
	}
	if err := e.adtNorm.Compute(adtFiltered, e.cellFiltering.FetchFilteredBlock(), filteringChanged, params.ADTNormalization); err != nil {
		return err
	}
	if err := e.crisprNorm.Compute(crisprFiltered, filteringChanged); err != nil {
		return err
	}

	if err := e.featureSelection.Compute(e.rnaNorm.FetchNormalized(), e.rnaNorm.Changed(), params.FeatureSelection); err != nil {
		return err
	}

	var rnaHVGs []int
	if e.featureSelection.Valid() && params.RNAPCA.NumHVGs > 0 {
		rnaHVGs = e.featureSelection.TopK(params.RNAPCA.NumHVGs)
	}

	if err := e.rnaPCA.Compute(e.rnaNorm.FetchNormalized(), rnaHVGs, e.cellFiltering.FetchFilteredBlock(), anyUpstreamChanged(e.rnaNorm, e.featureSelection), params.RNAPCA); err != nil {
		return err
	}
	if err := e.adtPCA.Compute(e.adtNorm.FetchNormalized(), nil, e.cellFiltering.FetchFilteredBlock(), e.adtNorm.Changed(), params.ADTPCA); err != nil {
		return err
	}
	if err := e.crisprPCA.Compute(e.crisprNorm.FetchNormalized(), nil, e.cellFiltering.FetchFilteredBlock(), e.crisprNorm.Changed(), params.CRISPRPCA); err != nil {
		return err
	}

	modalities := make(map[string]*PCResult, 3)
	if e.rnaPCA.Valid() {
		modalities[ModalityRNA] = e.rnaPCA.FetchResult()
	}
	if e.adtPCA.Valid() {
		modalities[ModalityADT] = e.adtPCA.FetchResult()
	}
	if e.crisprPCA.Valid() {
		modalities[ModalityCRISPR] = e.crisprPCA.FetchResult()
	}
	if err := e.combine.Compute(modalities, anyUpstreamChanged(e.rnaPCA, e.adtPCA, e.crisprPCA), params.CombineEmbeddings); err != nil {
		return err
	}

	if err := e.correction.Compute(e.combine.FetchCombined(), e.cellFiltering.FetchFilteredBlock(), e.combine.Changed(), params.BatchCorrection); err != nil {
		return err
	}

	if err := e.neighborIndex.Compute(e.correction.FetchCorrected(), e.correction.Changed(), params.NeighborIndex); err != nil {
		return err
	}

	// Background workers: RUN is sent synchronously so they start
	// immediately; their promises are only awaited at the very end.
	e.tsne.Compute(ctx, e.correction.FetchCorrected(), e.correction.Changed(), params.TSNE)
	e.umap.Compute(ctx, e.correction.FetchCorrected(), e.correction.Changed(), params.UMAP)

	runKmeans := params.ChooseClustering.Method == "kmeans"
	runSnn := params.ChooseClustering.Method == "snn_graph"
	if err := e.kmeans.Compute(e.correction.FetchCorrected(), e.correction.Changed(), runKmeans, params.KMeansCluster); err != nil {
		return err
	}
	if err := e.snn.Compute(e.correction.FetchCorrected(), e.correction.Changed(), runSnn, params.SnnGraphCluster); err != nil {
		return err
	}
	if err := e.choose.Compute(e.kmeans, e.snn, params.ChooseClustering); err != nil {
		return err
	}
	clusters := e.choose.FetchLabels()
	numClusters := numDistinctGroups(clusters)

	if err := e.rnaMarkers.Compute(e.rnaNorm.FetchNormalized(), clusters, anyUpstreamChanged(e.rnaNorm, e.choose), params.RNAMarkers); err != nil {
		return err
	}
	if err := e.adtMarkers.Compute(e.adtNorm.FetchNormalized(), clusters, anyUpstreamChanged(e.adtNorm, e.choose), params.ADTMarkers); err != nil {
		return err
	}
	if err := e.crisprMarkers.Compute(e.crisprNorm.FetchNormalized(), clusters, anyUpstreamChanged(e.crisprNorm, e.choose), params.CRISPRMarkers); err != nil {
		return err
	}

	normalizedMulti := NewMultiMatrix()
	if e.rnaNorm.Valid() {
		normalizedMulti.Set(ModalityRNA, e.rnaNorm.FetchNormalized())
	}
	if e.adtNorm.Valid() {
		normalizedMulti.Set(ModalityADT, e.adtNorm.FetchNormalized())
	}
	if e.crisprNorm.Valid() {
		normalizedMulti.Set(ModalityCRISPR, e.crisprNorm.FetchNormalized())
	}
	if err := e.customSelections.Compute(filteringChanged, normalizedMulti, params.CustomSelections); err != nil {
		return err
	}

	rnaFeatureAnnot := e.inputs.FetchFeatureAnnotations(ModalityRNA)
	labelUpstream := anyUpstreamChanged(e.rnaMarkers, e.choose)
	if err := e.cellLabelling.Compute(ctx, e.rnaMarkers, rnaFeatureAnnot, numClusters, labelUpstream, params.CellLabelling); err != nil {
		return err
	}
	if err := e.featureSetEnrichment.Compute(ctx, rnaFeatureAnnot, e.rnaNorm.FetchNormalized(), e.rnaMarkers, labelUpstream, params.FeatureSetEnrichment); err != nil {
		return err
	}

	if err := e.tsne.Await(); err != nil {
		return err
	}
	if err := e.umap.Await(); err != nil {
		return err
	}
	return nil
}

// SubsetInputs builds a new engine whose Inputs is restricted to a column
// subset of the source engine's Inputs. indices reference CellFiltering's
// output columns unless onOriginal is true, in which case they reference
// the original (pre-filter) Inputs columns directly. The new engine starts
// from a clean state and its own RunAnalysis call is required to populate
// every downstream step.
func (e *Engine) SubsetInputs(ctx context.Context, indices []int, onOriginal bool) (*Engine, error) {
	origIndices := indices
	if !onOriginal {
		origIndices = make([]int, len(indices))
		for i, idx := range indices {
			origIndices[i] = e.cellFiltering.UndoFiltering(idx)
		}
	}
	out := NewEngine(e.loader, e.refLoader, e.sink)
	subsetParams := e.params.Inputs
	subsetParams.Subset = origIndices
	if err := out.inputs.Compute(ctx, e.descriptors, subsetParams); err != nil {
		return nil, err
	}
	return out, nil
}

// FreeAll releases every step's owned result buffers.
func (e *Engine) FreeAll() {
	for _, s := range []Step{
		e.inputs, e.rnaQC, e.adtQC, e.crisprQC, e.cellFiltering,
		e.rnaNorm, e.adtNorm, e.crisprNorm, e.featureSelection,
		e.rnaPCA, e.adtPCA, e.crisprPCA,
		e.combine, e.correction, e.neighborIndex,
		e.tsne, e.umap,
		e.kmeans, e.snn, e.choose,
		e.rnaMarkers, e.adtMarkers, e.crisprMarkers,
		e.customSelections, e.cellLabelling, e.featureSetEnrichment,
	} {
		s.Free()
	}
}

// Inputs exposes the engine's Inputs step, mainly for cmd inspect.
func (e *Engine) Inputs() *Inputs { return e.inputs }

// CellFiltering exposes the engine's CellFiltering step.
func (e *Engine) CellFiltering() *CellFiltering { return e.cellFiltering }

// ChooseClustering exposes the engine's clustering selector step.
func (e *Engine) ChooseClustering() *ChooseClustering { return e.choose }

// RNAMarkers exposes the RNA marker detection step.
func (e *Engine) RNAMarkers() *MarkerDetection { return e.rnaMarkers }

// CustomSelections exposes the custom selections step.
func (e *Engine) CustomSelections() *CustomSelections { return e.customSelections }

// CellLabelling exposes the cell labelling step.
func (e *Engine) CellLabelling() *CellLabelling { return e.cellLabelling }

// FeatureSetEnrichment exposes the feature-set enrichment step.
func (e *Engine) FeatureSetEnrichment() *FeatureSetEnrichment { return e.featureSetEnrichment }

// Steps returns every step in the fixed topological order, for callers
// (cmd inspect, the store package) that need to iterate uniformly.
func (e *Engine) Steps() []Step {
	return []Step{
		e.inputs, e.rnaQC, e.adtQC, e.crisprQC, e.cellFiltering,
		e.rnaNorm, e.adtNorm, e.crisprNorm, e.featureSelection,
		e.rnaPCA, e.adtPCA, e.crisprPCA,
		e.combine, e.correction, e.neighborIndex,
		e.tsne, e.umap,
		e.kmeans, e.snn, e.choose,
		e.rnaMarkers, e.adtMarkers, e.crisprMarkers,
		e.customSelections, e.cellLabelling, e.featureSetEnrichment,
	}
}
