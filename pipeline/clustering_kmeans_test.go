package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestKMeansCluster_Compute_RunMeFalse_ClearsCache(t *testing.T) {
	kernel := &fakeKMeansKernel{}
	s := NewKMeansCluster(kernel)
	corrected := mat.NewDense(2, 4, []float64{1, 2, 3, 4, 5, 6, 7, 8})

	require.NoError(t, s.Compute(corrected, true, true, s.Defaults()))
	require.NotEmpty(t, s.FetchLabels())

	require.NoError(t, s.Compute(corrected, false, false, s.Defaults()))
	assert.False(t, s.Changed())
	assert.Nil(t, s.FetchLabels(), "deselecting kmeans clears its cache, unlike snn_graph_cluster")

	// Switching back forces a full recompute even though nothing changed.
	require.NoError(t, s.Compute(corrected, false, true, s.Defaults()))
	assert.True(t, s.Changed())
	assert.Equal(t, 2, kernel.calls)
}

func TestKMeansCluster_Compute_UnchangedWhenStable(t *testing.T) {
	kernel := &fakeKMeansKernel{}
	s := NewKMeansCluster(kernel)
	corrected := mat.NewDense(2, 4, []float64{1, 2, 3, 4, 5, 6, 7, 8})
	params := s.Defaults()

	require.NoError(t, s.Compute(corrected, true, true, params))
	require.NoError(t, s.Compute(corrected, false, true, params))
	assert.False(t, s.Changed())
	assert.Equal(t, 1, kernel.calls)
}

func TestKMeansCluster_Compute_ParamChangeForcesRecompute(t *testing.T) {
	kernel := &fakeKMeansKernel{}
	s := NewKMeansCluster(kernel)
	corrected := mat.NewDense(2, 4, []float64{1, 2, 3, 4, 5, 6, 7, 8})
	params := s.Defaults()

	require.NoError(t, s.Compute(corrected, true, true, params))
	params.K = 3
	require.NoError(t, s.Compute(corrected, false, true, params))
	assert.True(t, s.Changed())
	assert.Equal(t, 2, kernel.calls)
}

func TestKMeansCluster_Free_ClearsLabels(t *testing.T) {
	s := NewKMeansCluster(&fakeKMeansKernel{})
	corrected := mat.NewDense(2, 4, []float64{1, 2, 3, 4, 5, 6, 7, 8})
	require.NoError(t, s.Compute(corrected, true, true, s.Defaults()))
	s.Free()
	assert.Nil(t, s.FetchLabels())
}
