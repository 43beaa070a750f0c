package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiscardVector_Or_IsUnionOfDiscards(t *testing.T) {
	a := DiscardVector{0, 1, 0, 1}
	b := DiscardVector{0, 0, 1, 1}
	got := a.Or(b)
	assert.Equal(t, DiscardVector{0, 1, 1, 1}, got)
}

func TestDiscardVector_RetainedIndices_MatchesZeroPositions(t *testing.T) {
	d := DiscardVector{0, 1, 0, 0, 1}
	assert.Equal(t, []int{0, 2, 3}, d.RetainedIndices())
	assert.Equal(t, 3, d.Retained())
}

func TestMultiMatrix_PreservesInsertionOrder(t *testing.T) {
	mm := NewMultiMatrix()
	mm.Set(ModalityADT, NewDenseMatrix(1, 2, []int32{0}, []float64{1, 2}))
	mm.Set(ModalityRNA, NewDenseMatrix(1, 2, []int32{0}, []float64{3, 4}))
	assert.Equal(t, []string{ModalityADT, ModalityRNA}, mm.Modalities())
	assert.Equal(t, 2, mm.NumCols())
}

func TestMatrix_SubsetColumns_PreservesRowIDs(t *testing.T) {
	m := NewDenseMatrix(2, 3, []int32{10, 20}, []float64{
		1, 2, 3,
		4, 5, 6,
	})
	sub := m.SubsetColumns([]int{2, 0})
	assert.Equal(t, []int32{10, 20}, sub.RowIDs())
	assert.Equal(t, 3.0, sub.At(0, 0))
	assert.Equal(t, 1.0, sub.At(0, 1))
	assert.Equal(t, 6.0, sub.At(1, 0))
}

func TestMatrix_SubsetRows_RemapsRowIDs(t *testing.T) {
	m := NewDenseMatrix(3, 1, []int32{10, 20, 30}, []float64{1, 2, 3})
	sub := m.SubsetRows([]int{2, 0})
	assert.Equal(t, []int32{30, 10}, sub.RowIDs())
	assert.Equal(t, 3.0, sub.At(0, 0))
	assert.Equal(t, 1.0, sub.At(1, 0))
}
