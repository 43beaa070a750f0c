package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestBatchCorrection_Compute_MethodNone_IsAliasedView(t *testing.T) {
	s := NewBatchCorrection(&fakeMNNKernel{})
	combined := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	require.NoError(t, s.Compute(combined, nil, true, s.Defaults()))

	assert.True(t, s.FetchCorrected() == combined)
	s.Free()
	assert.NotNil(t, s.FetchCorrected(), "aliased view must survive Free")
}

func TestBatchCorrection_Compute_NoBlock_IsAliasedViewEvenWithMNNMethod(t *testing.T) {
	s := NewBatchCorrection(&fakeMNNKernel{})
	combined := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	params := s.Defaults()
	params.Method = "mnn"
	require.NoError(t, s.Compute(combined, nil, true, params))
	assert.True(t, s.FetchCorrected() == combined)
}

func TestBatchCorrection_Compute_MNNWithBlock_InvokesKernel(t *testing.T) {
	kernel := &fakeMNNKernel{}
	s := NewBatchCorrection(kernel)
	combined := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	block := NewBlockFactor([]int32{0, 0, 1}, []string{"a", "b"})
	params := s.Defaults()
	params.Method = "mnn"

	require.NoError(t, s.Compute(combined, block, true, params))
	assert.Equal(t, 1, kernel.calls)

	corrected := s.FetchCorrected()
	r, c := corrected.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 3, c)

	s.Free()
	assert.Nil(t, s.FetchCorrected())
}

func TestBatchCorrection_Compute_UnchangedWhenStable(t *testing.T) {
	s := NewBatchCorrection(&fakeMNNKernel{})
	combined := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	params := s.Defaults()
	require.NoError(t, s.Compute(combined, nil, true, params))
	require.NoError(t, s.Compute(combined, nil, false, params))
	assert.False(t, s.Changed())
}
