package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func symbolFeatureAnnotations(symbols []string) *FeatureAnnotations {
	idx := make([]int32, len(symbols))
	levels := make([]string, 0, len(symbols))
	seen := make(map[string]int32)
	for i, sym := range symbols {
		id, ok := seen[sym]
		if !ok {
			id = int32(len(levels))
			levels = append(levels, sym)
			seen[sym] = id
		}
		idx[i] = id
	}
	table := NewAnnotations()
	table.Set("symbol", Annotation{Factor: &FactorColumn{Levels: levels, Indices: idx}})
	return NewFeatureAnnotations(ModalityRNA, table)
}

func TestRNAQualityControl_Compute_NilMatrix_MarksNotPresent(t *testing.T) {
	s := NewRNAQualityControl(fakeQCKernel{})
	require.NoError(t, s.Compute(nil, nil, nil, true, s.Defaults()))
	assert.False(t, s.Valid())
	assert.False(t, s.Changed())
}

func TestRNAQualityControl_Compute_FlagsLowCountAndHighMitoCells(t *testing.T) {
	s := NewRNAQualityControl(fakeQCKernel{})
	features := symbolFeatureAnnotations([]string{"MT-ND1", "ACTB", "GAPDH"})

	// 4 cells; cell 0 is mito-heavy, cell 3 has near-zero total counts.
	m := NewDenseMatrix(3, 4, []int32{0, 1, 2}, []float64{
		50, 10, 10, 0,
		1, 10, 10, 0,
		1, 10, 10, 0,
	})

	require.NoError(t, s.Compute(m, features, nil, true, RNAQualityControlParams{UseMitoDefault: true, Nmads: 1}))
	assert.True(t, s.Valid())
	assert.True(t, s.Changed())

	discard := s.FetchDiscard()
	require.Len(t, discard, 4)
	assert.NotZero(t, discard[0], "mito-heavy cell should be discarded")
	assert.NotZero(t, discard[3], "near-empty cell should be discarded")
	assert.Zero(t, discard[1])
	assert.Zero(t, discard[2])
}

func TestRNAQualityControl_Compute_UnchangedWhenUpstreamAndParamsStable(t *testing.T) {
	s := NewRNAQualityControl(fakeQCKernel{})
	m := NewDenseMatrix(2, 3, []int32{0, 1}, []float64{1, 2, 3, 4, 5, 6})
	params := s.Defaults()

	require.NoError(t, s.Compute(m, nil, nil, true, params))
	assert.True(t, s.Changed())

	require.NoError(t, s.Compute(m, nil, nil, false, params))
	assert.False(t, s.Changed())
}

func TestRNAQualityControl_Compute_ParamChangeForcesRecompute(t *testing.T) {
	s := NewRNAQualityControl(fakeQCKernel{})
	m := NewDenseMatrix(2, 3, []int32{0, 1}, []float64{1, 2, 3, 4, 5, 6})
	params := s.Defaults()

	require.NoError(t, s.Compute(m, nil, nil, true, params))
	require.NoError(t, s.Compute(m, nil, nil, false, params))
	assert.False(t, s.Changed())

	params.Nmads = params.Nmads + 1
	require.NoError(t, s.Compute(m, nil, nil, false, params))
	assert.True(t, s.Changed())
}

func TestRNAQualityControl_Free_ClearsFetchedState(t *testing.T) {
	s := NewRNAQualityControl(fakeQCKernel{})
	m := NewDenseMatrix(2, 3, []int32{0, 1}, []float64{1, 2, 3, 4, 5, 6})
	require.NoError(t, s.Compute(m, nil, nil, true, s.Defaults()))
	require.NotEmpty(t, s.FetchDiscard())

	s.Free()
	assert.Empty(t, s.FetchDiscard())
	assert.Empty(t, s.FetchMetrics().Sums)
}
