package pipeline

import "gonum.org/v1/gonum/mat"

// KMeansClusterParams is the kmeans_cluster parameter record.
type KMeansClusterParams struct {
	K int `yaml:"k"`
}

// KMeansCluster is one of the two C11 clustering variants. The driver sets
// runMe to (choose_clustering.method == "kmeans"); when false the cache is
// cleared so a later switch back forces recomputation.
type KMeansCluster struct {
	base
	kernel KMeansKernel
	params KMeansClusterParams

	hasResult bool
	labels    []int32
}

// NewKMeansCluster constructs the k-means clustering step.
func NewKMeansCluster(kernel KMeansKernel) *KMeansCluster {
	return &KMeansCluster{base: newBase("kmeans_cluster"), kernel: kernel}
}

// Defaults returns the canonical kmeans_cluster parameter record.
func (s *KMeansCluster) Defaults() KMeansClusterParams { return KMeansClusterParams{K: 10} }

func (s *KMeansCluster) Compute(corrected *mat.Dense, upstreamChanged bool, runMe bool, params KMeansClusterParams) error {
	if !runMe {
		s.labels, s.hasResult = nil, false
		s.unchanged()
		return nil
	}
	if !upstreamChanged && s.hasResult && paramsEqual(params, s.params) {
		s.unchanged()
		return nil
	}
	s.params = params
	data, ndim, ncol := flattenDimMajor(corrected)
	labels, err := s.kernel.RunKMeans(data, ncol, ndim, params.K)
	if err != nil {
		return err
	}
	s.labels, s.hasResult = labels, true
	s.recompute()
	return nil
}

// FetchLabels returns the per-cell cluster label vector.
func (s *KMeansCluster) FetchLabels() []int32 { return s.labels }

func (s *KMeansCluster) Free() { s.labels, s.hasResult = nil, false }
