package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFixtureCustomSelections(t *testing.T, kernel MarkerKernel) *CustomSelections {
	t.Helper()
	cs := NewCustomSelections(kernel)
	mm := NewMultiMatrix()
	mm.Set(ModalityRNA, NewDenseMatrix(2, 6, []int32{0, 1}, []float64{
		1, 2, 3, 4, 5, 6,
		6, 5, 4, 3, 2, 1,
	}))
	require.NoError(t, cs.Compute(false, mm, CustomSelectionsParams{}))
	require.NoError(t, cs.AddSelection("a", []int{0, 1, 2}))
	require.NoError(t, cs.AddSelection("b", []int{3, 4, 5}))
	return cs
}

func TestCustomSelections_FetchVersus_ReversedOrder_IsSignFlipped(t *testing.T) {
	kernel := &countingMarkerKernel{}
	cs := newFixtureCustomSelections(t, kernel)

	forward, err := cs.FetchVersus("a", "b")
	require.NoError(t, err)
	reversed, err := cs.FetchVersus("b", "a")
	require.NoError(t, err)

	for modality, fwd := range forward {
		rev, ok := reversed[modality]
		require.True(t, ok)
		assert.Equal(t, negateEffect(fwd).Cohend, rev.Cohend)
		assert.Equal(t, negateEffect(fwd).AUC, rev.AUC)
	}
}

func TestCustomSelections_FetchVersus_ReversedRequest_HitsCacheOnce(t *testing.T) {
	kernel := &countingMarkerKernel{}
	cs := newFixtureCustomSelections(t, kernel)

	_, err := cs.FetchVersus("a", "b")
	require.NoError(t, err)
	before := kernel.versusCalls
	_, err = cs.FetchVersus("b", "a")
	require.NoError(t, err)

	assert.Equal(t, before, kernel.versusCalls, "reversed-order request must be served from cache")
}

func TestCustomSelections_RemoveSelection_DropsCachedVersusInvolvingIt(t *testing.T) {
	kernel := &countingMarkerKernel{}
	cs := newFixtureCustomSelections(t, kernel)
	_, err := cs.FetchVersus("a", "b")
	require.NoError(t, err)

	cs.RemoveSelection("a")
	assert.NotContains(t, cs.FetchSelections(), "a")

	_, err = cs.FetchVersus("a", "b")
	assert.Error(t, err, "removed selection must not resolve")
}

func TestCustomSelections_AddSelection_RejectsOutOfRangeIndex(t *testing.T) {
	kernel := &countingMarkerKernel{}
	cs := NewCustomSelections(kernel)
	mm := NewMultiMatrix()
	mm.Set(ModalityRNA, NewDenseMatrix(1, 3, []int32{0}, []float64{1, 2, 3}))
	require.NoError(t, cs.Compute(false, mm, CustomSelectionsParams{}))

	err := cs.AddSelection("bad", []int{5})
	assert.ErrorIs(t, err, ErrStaleReference)
}

func TestCustomSelections_Compute_CellFilteringChange_DropsAllSelections(t *testing.T) {
	kernel := &countingMarkerKernel{}
	cs := newFixtureCustomSelections(t, kernel)
	require.NotEmpty(t, cs.FetchSelections())

	mm := NewMultiMatrix()
	mm.Set(ModalityRNA, NewDenseMatrix(2, 6, []int32{0, 1}, make([]float64, 12)))
	require.NoError(t, cs.Compute(true, mm, CustomSelectionsParams{}))

	assert.Empty(t, cs.FetchSelections())
	assert.True(t, cs.Changed())
}
