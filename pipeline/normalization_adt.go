package pipeline

import "sort"

// ADTNormalizationParams is the adt_normalization parameter record.
type ADTNormalizationParams struct {
	NumPCs      int `yaml:"num_pcs"`
	NumClusters int `yaml:"num_clusters"`
}

// ADTNormalization is the C4 step for the ADT modality. Per spec.md §4.5,
// size factors come from a nested sub-pipeline rather than plain library
// sums: a preliminary library-size log-normalization feeds a capped PCA,
// whose embedding is quick-clustered by k-means; within each cluster a
// DESeq-style median-of-ratios against the cluster's per-feature median
// profile gives a within-cluster size factor, which is then rescaled
// across clusters onto the library-sum scale used by the other modalities.
type ADTNormalization struct {
	base
	pca    PCAKernel
	kmeans KMeansKernel
	params ADTNormalizationParams

	present     bool
	sizeFactors SizeFactors
	normalized  *Matrix
}

// NewADTNormalization constructs the ADT normalization step.
func NewADTNormalization(pca PCAKernel, kmeans KMeansKernel) *ADTNormalization {
	return &ADTNormalization{base: newBase("adt_normalization"), pca: pca, kmeans: kmeans}
}

// Defaults returns the canonical adt_normalization parameter record.
func (s *ADTNormalization) Defaults() ADTNormalizationParams {
	return ADTNormalizationParams{NumPCs: 25, NumClusters: 20}
}

func (s *ADTNormalization) Compute(matrix *Matrix, block *BlockFactor, upstreamChanged bool, params ADTNormalizationParams) error {
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

	rawSums := matrix.ColumnSums()
	prelim := logNormalizeBySizeFactor(matrix, rawSums)
	nrow, ncol := matrix.NumRows(), matrix.NumCols()

	numPCs := params.NumPCs
	if numPCs > nrow-1 {
		numPCs = nrow - 1
	}
	if numPCs > 25 {
		numPCs = 25
	}
	if numPCs < 1 {
		numPCs = 1
	}
	pcaResult, err := s.pca.RunPCA(prelim.Sparse().ToDense(), nrow, ncol, numPCs, nil, "none")
	if err != nil {
		return err
	}
	flat := make([]float64, numPCs*ncol)
	for pc, row := range pcaResult.Scores {
		for c, v := range row {
			flat[pc*ncol+c] = v
		}
	}
	numClusters := params.NumClusters
	if numClusters > ncol {
		numClusters = ncol
	}
	labels, err := s.kmeans.RunKMeans(flat, ncol, numPCs, numClusters)
	if err != nil {
		return err
	}

	rawDense := matrix.Sparse().ToDense()
	sf := groupedMedianRatioSizeFactors(rawDense, nrow, ncol, blockedLabels(labels, block), rawSums)
	s.sizeFactors = sf
	s.normalized = logNormalizeBySizeFactor(matrix, sf)
	s.recompute()
	return nil
}

func (s *ADTNormalization) Valid() bool                   { return s.present }
func (s *ADTNormalization) FetchSizeFactors() SizeFactors { return s.sizeFactors }
func (s *ADTNormalization) FetchNormalized() *Matrix      { return s.normalized }
func (s *ADTNormalization) Free()                         { s.sizeFactors, s.normalized = nil, nil }

// blockedLabels composites the k-means cluster label with the block index
// (when a block factor is present) into a single group key, so the median-
// ratio reference profile is computed per (cluster, block) stratum rather
// than pooling across blocks, per spec.md §4.5's "block awareness is
// preserved" requirement.
func blockedLabels(clusterLabels []int32, block *BlockFactor) []int32 {
	if block == nil {
		return clusterLabels
	}
	numBlocks := int32(len(block.Levels))
	out := make([]int32, len(clusterLabels))
	for i, l := range clusterLabels {
		out[i] = l*numBlocks + block.Indices[i]
	}
	return out
}

func groupedMedianRatioSizeFactors(dense []float64, nrow, ncol int, labels []int32, librarySums []float64) SizeFactors {
	groups := make(map[int32][]int)
	for c, l := range labels {
		groups[l] = append(groups[l], c)
	}
	sf := make(SizeFactors, ncol)
	for _, idx := range groups {
		ref := make([]float64, nrow)
		for f := 0; f < nrow; f++ {
			vals := make([]float64, len(idx))
			for i, c := range idx {
				vals[i] = dense[f*ncol+c]
			}
			ref[f] = medianOf(vals)
		}
		for _, c := range idx {
			var ratios []float64
			for f := 0; f < nrow; f++ {
				if ref[f] > 0 && dense[f*ncol+c] > 0 {
					ratios = append(ratios, dense[f*ncol+c]/ref[f])
				}
			}
			if len(ratios) == 0 {
				sf[c] = librarySums[c]
				continue
			}
			sort.Float64s(ratios)
			sf[c] = medianOf(ratios)
		}
	}
	rescaleToLibraryScale(sf, librarySums)
	return sf
}

// rescaleToLibraryScale multiplies sf in place so its mean matches the mean
// of librarySums, keeping ADT size factors on the same order of magnitude
// as the other modalities' plain library-sum size factors.
func rescaleToLibraryScale(sf SizeFactors, librarySums []float64) {
	meanSF := meanOf(sf)
	meanLib := meanOf(librarySums)
	if meanSF <= 0 {
		return
	}
	scale := meanLib / meanSF
	for i := range sf {
		sf[i] *= scale
	}
}
