package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// triangleNeighbors is a fully-connected 3-node neighborhood: every node
// lists the other two. Every pair then shares exactly one neighbor (the
// third node) and every set has size 2, which keeps "number" and "jaccard"
// weights identical across all three edges and makes BuildGraph's edge
// order deterministic (each pair is first discovered via the slice-ordered
// direct-neighbor loop, never the map-ordered shared-neighbor loop).
var triangleNeighbors = [][]int32{{1, 2}, {0, 2}, {0, 1}}

func TestSNN_BuildGraph_NumberScheme_WeighsByRawSharedNeighborCount(t *testing.T) {
	s := NewSNN()
	from, to, weights, err := s.BuildGraph(triangleNeighbors, "number")
	require.NoError(t, err)

	assert.Equal(t, []int32{0, 0, 1}, from)
	assert.Equal(t, []int32{1, 2, 2}, to)
	assert.Equal(t, []float64{1, 1, 1}, weights)
}

func TestSNN_BuildGraph_JaccardScheme_WeighsByOverlapRatio(t *testing.T) {
	s := NewSNN()
	from, to, weights, err := s.BuildGraph(triangleNeighbors, "jaccard")
	require.NoError(t, err)

	assert.Equal(t, []int32{0, 0, 1}, from)
	assert.Equal(t, []int32{1, 2, 2}, to)
	for _, w := range weights {
		assert.InDelta(t, 1.0/3.0, w, 1e-9)
	}
}

func TestSNN_BuildGraph_UnknownSchemeIsError(t *testing.T) {
	s := NewSNN()
	_, _, _, err := s.BuildGraph(triangleNeighbors, "bogus")
	assert.Error(t, err)
}

func TestSNN_Cluster_FullyConnectedTriangleConvergesToOneCommunity(t *testing.T) {
	s := NewSNN()
	labels, err := s.Cluster(3, []int32{0, 0, 1}, []int32{1, 2, 2}, []float64{1, 1, 1}, 1)
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 0, 0}, labels)
}

func TestSNN_Cluster_DefaultsResolutionWhenNonPositive(t *testing.T) {
	s := NewSNN()
	labels, err := s.Cluster(3, []int32{0, 0, 1}, []int32{1, 2, 2}, []float64{1, 1, 1}, 0)
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 0, 0}, labels)
}

func TestCompactLabels_RemapsToDenseZeroBasedInFirstAppearanceOrder(t *testing.T) {
	out := compactLabels([]int32{5, 5, 2, 9, 2})
	assert.Equal(t, []int32{0, 0, 1, 2, 1}, out)
}
