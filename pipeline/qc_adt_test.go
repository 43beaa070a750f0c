package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func idFeatureAnnotations(ids []string) *FeatureAnnotations {
	idx := make([]int32, len(ids))
	levels := make([]string, 0, len(ids))
	seen := make(map[string]int32)
	for i, v := range ids {
		id, ok := seen[v]
		if !ok {
			id = int32(len(levels))
			levels = append(levels, v)
			seen[v] = id
		}
		idx[i] = id
	}
	table := NewAnnotations()
	table.Set("id", Annotation{Factor: &FactorColumn{Levels: levels, Indices: idx}})
	return NewFeatureAnnotations(ModalityADT, table)
}

func TestADTQualityControl_Compute_NilMatrix_MarksNotPresent(t *testing.T) {
	s := NewADTQualityControl(fakeQCKernel{})
	require.NoError(t, s.Compute(nil, nil, nil, true, s.Defaults()))
	assert.False(t, s.Valid())
}

func TestADTQualityControl_Compute_FlagsHighIggAndLowDetected(t *testing.T) {
	s := NewADTQualityControl(fakeQCKernel{})
	features := idFeatureAnnotations([]string{"igg_ctrl", "CD3", "CD19"})

	// cell 0 is dominated by the IgG isotype control; cell 3 detects nothing.
	m := NewDenseMatrix(3, 4, []int32{0, 1, 2}, []float64{
		40, 0, 0, 0,
		1, 5, 5, 0,
		1, 5, 5, 0,
	})

	require.NoError(t, s.Compute(m, features, nil, true, ADTQualityControlParams{IggPrefix: "igg", Nmads: 1}))
	discard := s.FetchDiscard()
	require.Len(t, discard, 4)
	assert.NotZero(t, discard[0], "igg-dominated cell should be discarded")
	assert.NotZero(t, discard[3], "zero-detected cell should be discarded")
	assert.Zero(t, discard[1])
	assert.Zero(t, discard[2])
}

func TestADTQualityControl_Compute_ProportionalDropDiscardsBelowBlockMedian(t *testing.T) {
	s := NewADTQualityControl(fakeQCKernel{})
	// detected counts: three cells detect both features, one detects none.
	m := NewDenseMatrix(2, 4, []int32{0, 1}, []float64{
		1, 1, 1, 0,
		1, 1, 1, 0,
	})
	require.NoError(t, s.Compute(m, nil, nil, true, ADTQualityControlParams{Nmads: 1000, MinDetectedDrop: 0.5}))
	discard := s.FetchDiscard()
	assert.NotZero(t, discard[3])
	assert.Zero(t, discard[0])
}

func TestADTQualityControl_Compute_UnchangedWhenStable(t *testing.T) {
	s := NewADTQualityControl(fakeQCKernel{})
	m := NewDenseMatrix(2, 2, []int32{0, 1}, []float64{1, 2, 3, 4})
	params := s.Defaults()
	require.NoError(t, s.Compute(m, nil, nil, true, params))
	require.NoError(t, s.Compute(m, nil, nil, false, params))
	assert.False(t, s.Changed())
}
