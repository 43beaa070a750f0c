package pipeline

import "gonum.org/v1/gonum/mat"

// SnnGraphClusterParams is the snn_graph_cluster parameter record.
type SnnGraphClusterParams struct {
	K          int     `yaml:"k"`
	Scheme     string  `yaml:"scheme"`
	Resolution float64 `yaml:"resolution"`
}

// SnnGraphCluster is the second C11 clustering variant: a three-stage
// sub-pipeline (neighbors -> graph -> community labels) with its own
// per-stage cascade, independent of the top-level step graph's
// upstream-changed propagation. Changing K invalidates all three stages,
// Scheme invalidates graph and labels, Resolution invalidates only labels.
type SnnGraphCluster struct {
	base
	neighborKernel NeighborSearchKernel
	snnKernel      SNNGraphKernel
	params         SnnGraphClusterParams

	hasResult   bool
	neighborIdx [][]int32
	edgesFrom   []int32
	edgesTo     []int32
	weights     []float64
	labels      []int32
}

// NewSnnGraphCluster constructs the SNN-graph clustering step.
func NewSnnGraphCluster(neighborKernel NeighborSearchKernel, snnKernel SNNGraphKernel) *SnnGraphCluster {
	return &SnnGraphCluster{base: newBase("snn_graph_cluster"), neighborKernel: neighborKernel, snnKernel: snnKernel}
}

// Defaults returns the canonical snn_graph_cluster parameter record.
func (s *SnnGraphCluster) Defaults() SnnGraphClusterParams {
	return SnnGraphClusterParams{K: 10, Scheme: "rank", Resolution: 1}
}

func (s *SnnGraphCluster) Compute(corrected *mat.Dense, upstreamChanged bool, runMe bool, params SnnGraphClusterParams) error {
	if !runMe {
		// Unlike KMeansCluster, the neighbors/graph/labels sub-cache is kept
		// intact rather than cleared: spec.md §8's deselect-then-reselect
		// scenario requires a later switch back to snn_graph with unchanged
		// K/Scheme/Resolution/upstream to reuse this cache rather than pay
		// for a full neighbors->graph->clusters recompute (see DESIGN.md).
		s.unchanged()
		return nil
	}

	neighborsStale := upstreamChanged || !s.hasResult || params.K != s.params.K
	graphStale := neighborsStale || params.Scheme != s.params.Scheme
	clustersStale := graphStale || params.Resolution != s.params.Resolution

	data, ndim, ncol := flattenDimMajor(corrected)

	if neighborsStale {
		k := params.K
		if k >= ncol {
			k = ncol - 1
		}
		idx, _, err := s.neighborKernel.FindNeighbors(data, ncol, ndim, k, false)
		if err != nil {
			return err
		}
		s.neighborIdx = idx
	}
	if graphStale {
		from, to, w, err := s.snnKernel.BuildGraph(s.neighborIdx, params.Scheme)
		if err != nil {
			return err
		}
		s.edgesFrom, s.edgesTo, s.weights = from, to, w
	}
	if clustersStale {
		labels, err := s.snnKernel.Cluster(ncol, s.edgesFrom, s.edgesTo, s.weights, params.Resolution)
		if err != nil {
			return err
		}
		s.labels = labels
	}

	s.params = params
	s.hasResult = true
	if neighborsStale || graphStale || clustersStale {
		s.recompute()
	} else {
		s.unchanged()
	}
	return nil
}

// FetchLabels returns the per-cell cluster label vector.
func (s *SnnGraphCluster) FetchLabels() []int32 { return s.labels }

func (s *SnnGraphCluster) Free() {
	s.hasResult = false
	s.neighborIdx, s.edgesFrom, s.edgesTo, s.weights, s.labels = nil, nil, nil, nil, nil
}
