package pipeline

import "fmt"

// ChooseClusteringParams is the choose_clustering parameter record.
type ChooseClusteringParams struct {
	Method string `yaml:"method"`
}

// ChooseClustering is the C11 selector step: it exposes whichever of
// KMeansCluster or SnnGraphCluster the method parameter names. Its own
// changed flag depends only on whether the chosen step recomputed or the
// method itself switched, never on the unselected variant.
type ChooseClustering struct {
	base
	params ChooseClusteringParams
	labels []int32
}

// NewChooseClustering constructs the clustering selector step.
func NewChooseClustering() *ChooseClustering { return &ChooseClustering{base: newBase("choose_clustering")} }

// Defaults returns the canonical choose_clustering parameter record.
func (s *ChooseClustering) Defaults() ChooseClusteringParams {
	return ChooseClusteringParams{Method: "kmeans"}
}

func (s *ChooseClustering) Compute(kmeans *KMeansCluster, snn *SnnGraphCluster, params ChooseClusteringParams) error {
	var chosenChanged bool
	switch params.Method {
	case "kmeans":
		s.labels = kmeans.FetchLabels()
		chosenChanged = kmeans.Changed()
	case "snn_graph":
		s.labels = snn.FetchLabels()
		chosenChanged = snn.Changed()
	default:
		return fmt.Errorf("choose_clustering: method %q: %w", params.Method, ErrInvalidParameter)
	}

	methodChanged := !paramsEqual(params, s.params)
	s.params = params
	if chosenChanged || methodChanged {
		s.recompute()
	} else {
		s.unchanged()
	}
	return nil
}

// FetchLabels returns the chosen variant's per-cell cluster label vector.
func (s *ChooseClustering) FetchLabels() []int32 { return s.labels }

func (s *ChooseClustering) Free() { s.labels = nil }
