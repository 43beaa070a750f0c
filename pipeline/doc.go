// Package pipeline implements the incremental analysis engine for
// single-cell assays with one or more measurement modalities (RNA, ADT,
// CRISPR guide counts).
//
// # Reading Guide
//
// Start with these three files to understand the engine:
//   - types.go: the shared data model (Matrix, MultiMatrix, Annotations, ...)
//   - step.go: the step contract and change-detection rule common to every step
//   - engine.go: the driver that builds the step graph and runs it
//
// # Architecture
//
// The package defines the step graph and the data model; numeric work that
// the specification treats as an external collaborator (PCA, k-means, SNN
// graph construction, t-SNE/UMAP, marker scoring, QC summary statistics,
// hypergeometric enrichment) lives behind the interfaces declared in
// kernels.go, implemented by packages kernels/numeric, kernels/graph and
// kernels/embed.
// Dataset loading lives behind datasets.Loader, reference-data downloading
// behind reference.Downloader, and persisted state behind store.Container.
// Default implementations register themselves into package-level factory
// variables from their own init() functions, the same way sim/kv and
// sim/latency wire into the inference-sim core package.
//
// # Key files per component
//
//   - inputs.go: C1 Inputs
//   - qc_rna.go, qc_adt.go, qc_crispr.go: C2 per-modality QC
//   - cell_filtering.go: C3 CellFiltering
//   - normalization_rna.go, normalization_adt.go, normalization_crispr.go: C4
//   - feature_selection.go: C5 FeatureSelection
//   - pca.go: C6 per-modality PCA
//   - combine_embeddings.go: C7 CombineEmbeddings
//   - batch_correction.go: C8 BatchCorrection
//   - neighbor_index.go: C9 NeighborIndex
//   - embedding_worker.go, embedding_tsne.go, embedding_umap.go: C10
//   - clustering_kmeans.go, clustering_snn.go, clustering_choose.go: C11
//   - marker_detection.go: C12 MarkerDetection
//   - custom_selections.go: C13 CustomSelections
//   - cell_labelling.go, feature_set_enrichment.go: C14
//   - engine.go: C15 Engine driver
package pipeline
