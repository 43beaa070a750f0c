package pipeline

// This file declares the "external collaborator" interfaces spec.md §1
// calls out as out of scope for this engine: the numeric kernels
// themselves. Each is a narrow, typed signature; a concrete implementation
// package (kernels/numeric, kernels/graph, kernels/embed) wires itself in
// via an init() that sets the corresponding factory variable below — the
// same import-cycle-breaking pattern the teacher project uses for
// sim.NewLatencyModelFunc / sim.NewKVStoreFromConfig (set from sim/latency
// and sim/kv respectively).

// PCAResult is the raw numeric output of a PCA kernel call, before it is
// wrapped into a PCResult by the pca.go step.
type PCAResult struct {
	Scores            [][]float64 // num_pcs x num_cells
	VarianceExplained []float64
}

// PCAKernel reduces a dense log-normalized matrix (features x cells) to
// principal components, optionally regressing out or projecting out a
// block factor.
type PCAKernel interface {
	RunPCA(data []float64, nrow, ncol, numPCs int, blockIndices []int32, blockMethod string) (PCAResult, error)
}

// NewPCAKernelFunc is set by kernels/numeric's init().
var NewPCAKernelFunc func() PCAKernel

// KMeansKernel partitions cells (rows of a components x cells embedding)
// into k groups.
type KMeansKernel interface {
	RunKMeans(data []float64, ncol, ndim, k int) (labels []int32, err error)
}

// NewKMeansKernelFunc is set by kernels/numeric's init().
var NewKMeansKernelFunc func() KMeansKernel

// NeighborSearchKernel finds, for each column of an embedding, its k
// nearest neighbors (by Euclidean distance in the embedding space).
type NeighborSearchKernel interface {
	FindNeighbors(data []float64, ncol, ndim, k int, approximate bool) (neighborIdx [][]int32, neighborDist [][]float64, err error)
}

// NewNeighborSearchKernelFunc is set by kernels/graph's init().
var NewNeighborSearchKernelFunc func() NeighborSearchKernel

// SNNGraphKernel builds a shared-nearest-neighbor graph from a neighbor
// list, and partitions it into communities at a given resolution.
type SNNGraphKernel interface {
	BuildGraph(neighborIdx [][]int32, scheme string) (edgesFrom, edgesTo []int32, weights []float64, err error)
	Cluster(ncol int, edgesFrom, edgesTo []int32, weights []float64, resolution float64) (labels []int32, err error)
}

// NewSNNGraphKernelFunc is set by kernels/graph's init().
var NewSNNGraphKernelFunc func() SNNGraphKernel

// MNNKernel performs mutual-nearest-neighbor batch correction on a combined
// embedding given a block assignment.
type MNNKernel interface {
	Correct(data []float64, ncol, ndim int, blockIndices []int32, numNeighbors int, approximate bool) (corrected []float64, err error)
}

// NewMNNKernelFunc is set by kernels/graph's init().
var NewMNNKernelFunc func() MNNKernel

// TSNEKernel and UMAPKernel run the respective visualization embeddings.
// AnimationSink, when non-nil, receives per-iteration coordinates.
type AnimationSink func(kind string, x, y []float64, iteration int)

type TSNEKernel interface {
	RunTSNE(data []float64, ncol, ndim int, perplexity float64, iterations int, animate bool, sink AnimationSink) (x, y []float64, err error)
}

// NewTSNEKernelFunc is set by kernels/embed's init().
var NewTSNEKernelFunc func() TSNEKernel

type UMAPKernel interface {
	RunUMAP(data []float64, ncol, ndim int, numEpochs int, minDist float64, animate bool, sink AnimationSink) (x, y []float64, err error)
}

// NewUMAPKernelFunc is set by kernels/embed's init().
var NewUMAPKernelFunc func() UMAPKernel

// MarkerStats is the per-group marker statistic bundle for one modality.
type MarkerStats struct {
	Mean     [][]float64 // per-group mean, num_groups x num_features
	Detected [][]float64 // per-group detected fraction
	// Versus holds the pairwise effect sizes for one ordered (left,right)
	// pair: per-feature Cohen's d, log-fold change, delta-detected, and
	// (optionally) AUC.
	Versus map[[2]int]PairwiseEffect
}

// PairwiseEffect holds per-feature pairwise effect-size vectors for one
// group pair.
type PairwiseEffect struct {
	Cohend  []float64
	LFC     []float64
	DeltaDetected []float64
	AUC     []float64 // nil unless compute_auc was requested
}

// MarkerKernel computes one-vs-rest and pairwise marker statistics for a
// normalized matrix given a grouping vector.
type MarkerKernel interface {
	ComputeMarkers(data []float64, nrow, ncol int, groups []int32, numGroups int, lfcThreshold float64, computeAUC bool) (MarkerStats, error)
	ComputeVersus(data []float64, nrow, ncol int, groups []int32, left, right int, lfcThreshold float64, computeAUC bool) (PairwiseEffect, error)
}

// NewMarkerKernelFunc is set by kernels/numeric's init().
var NewMarkerKernelFunc func() MarkerKernel

// QCKernel supplies the summary statistics behind the QC thresholds. The
// per-modality filter-threshold *policy* (nmads, min_detected_drop, ...)
// stays in qc_rna.go/qc_adt.go/qc_crispr.go; only the summary-statistic
// arithmetic (median, MAD) is delegated here.
type QCKernel interface {
	MedianMAD(values []float64) (median, mad float64)
}

// NewQCKernelFunc is set by kernels/numeric's init().
var NewQCKernelFunc func() QCKernel

// HypergeometricKernel computes the upper-tail hypergeometric test p-value
// used by FeatureSetEnrichment.
type HypergeometricKernel interface {
	UpperTailP(drawn, successesInDrawn, successesInPopulation, populationSize int) float64
}

// NewHypergeometricKernelFunc is set by kernels/numeric's init().
var NewHypergeometricKernelFunc func() HypergeometricKernel
