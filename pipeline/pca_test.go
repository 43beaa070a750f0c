package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPCA_Compute_NilMatrix_MarksNotPresent(t *testing.T) {
	s := NewPCA(ModalityRNA, &fakePCAKernel{})
	require.NoError(t, s.Compute(nil, nil, nil, true, s.Defaults()))
	assert.False(t, s.Valid())
}

func TestPCA_Compute_RejectsUnknownBlockMethod(t *testing.T) {
	s := NewPCA(ModalityRNA, &fakePCAKernel{})
	m := NewDenseMatrix(2, 3, []int32{0, 1}, []float64{1, 2, 3, 4, 5, 6})
	params := s.Defaults()
	params.BlockMethod = "bogus"
	err := s.Compute(m, nil, nil, true, params)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestPCA_Compute_TranslatesLegacyBlockMethodAliases(t *testing.T) {
	s := NewPCA(ModalityRNA, &fakePCAKernel{})
	m := NewDenseMatrix(2, 3, []int32{0, 1}, []float64{1, 2, 3, 4, 5, 6})
	params := s.Defaults()
	params.BlockMethod = "weight"
	require.NoError(t, s.Compute(m, nil, nil, true, params))
	assert.Equal(t, "project", s.params.BlockMethod)
}

func TestPCA_Compute_SubsetsToHVGsAndStoresScores(t *testing.T) {
	kernel := &fakePCAKernel{}
	s := NewPCA(ModalityRNA, kernel)
	m := NewDenseMatrix(3, 2, []int32{0, 1, 2}, []float64{
		1, 2,
		3, 4,
		5, 6,
	})
	params := s.Defaults()
	params.NumPCs = 2

	require.NoError(t, s.Compute(m, []int{0, 2}, nil, true, params))
	require.Equal(t, 1, kernel.calls)

	result := s.FetchResult()
	require.NotNil(t, result)
	r, c := result.Scores.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, 0.0, result.Scores.At(0, 0))
	assert.Equal(t, 10.0, result.Scores.At(1, 0))
}

func TestPCA_Compute_UnchangedWhenStable(t *testing.T) {
	kernel := &fakePCAKernel{}
	s := NewPCA(ModalityRNA, kernel)
	m := NewDenseMatrix(2, 2, []int32{0, 1}, []float64{1, 2, 3, 4})
	params := s.Defaults()

	require.NoError(t, s.Compute(m, nil, nil, true, params))
	require.NoError(t, s.Compute(m, nil, nil, false, params))
	assert.False(t, s.Changed())
	assert.Equal(t, 1, kernel.calls)
}

func TestPCA_Free_ClearsResult(t *testing.T) {
	s := NewPCA(ModalityRNA, &fakePCAKernel{})
	m := NewDenseMatrix(2, 2, []int32{0, 1}, []float64{1, 2, 3, 4})
	require.NoError(t, s.Compute(m, nil, nil, true, s.Defaults()))
	require.NotNil(t, s.FetchResult())
	s.Free()
	assert.Nil(t, s.FetchResult())
}
