package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCRISPRQualityControl_Compute_NilMatrix_MarksNotPresent(t *testing.T) {
	s := NewCRISPRQualityControl(fakeQCKernel{})
	require.NoError(t, s.Compute(nil, nil, true, s.Defaults()))
	assert.False(t, s.Valid())
}

func TestCRISPRQualityControl_Compute_FlagsLowTopGuideCount(t *testing.T) {
	s := NewCRISPRQualityControl(fakeQCKernel{})

	// cell 0 has a dominant guide with plenty of counts; cell 3 has a
	// dominant guide with almost no counts at all.
	m := NewDenseMatrix(3, 4, []int32{0, 1, 2}, []float64{
		40, 10, 10, 1,
		1, 1, 1, 0,
		1, 1, 1, 0,
	})

	require.NoError(t, s.Compute(m, nil, true, CRISPRQualityControlParams{Nmads: 1}))
	discard := s.FetchDiscard()
	require.Len(t, discard, 4)
	assert.Zero(t, discard[0])
	assert.NotZero(t, discard[3], "cell with a near-empty dominant guide should be discarded")

	metrics := s.FetchMetrics()
	assert.Equal(t, int32(0), metrics.MaxIndex[0])
}

func TestCRISPRQualityControl_Compute_UnchangedWhenStable(t *testing.T) {
	s := NewCRISPRQualityControl(fakeQCKernel{})
	m := NewDenseMatrix(2, 2, []int32{0, 1}, []float64{1, 2, 3, 4})
	params := s.Defaults()
	require.NoError(t, s.Compute(m, nil, true, params))
	require.NoError(t, s.Compute(m, nil, false, params))
	assert.False(t, s.Changed())
}

func TestCRISPRQualityControl_Free_ClearsState(t *testing.T) {
	s := NewCRISPRQualityControl(fakeQCKernel{})
	m := NewDenseMatrix(2, 2, []int32{0, 1}, []float64{1, 2, 3, 4})
	require.NoError(t, s.Compute(m, nil, true, s.Defaults()))
	s.Free()
	assert.Empty(t, s.FetchDiscard())
	assert.Empty(t, s.FetchMetrics().Sums)
}
