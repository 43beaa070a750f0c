package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// column 0: rows {0: 1, 2: 3}; column 1: rows {1: 2}; column 2: empty.
func fixtureCSC() *CSCMatrix {
	return NewCSCMatrix(3, 3,
		[]int{0, 2, 3, 3},
		[]int32{0, 2, 1},
		[]float64{1, 3, 2},
	)
}

func TestCSCMatrix_At_ReturnsStoredAndImplicitZero(t *testing.T) {
	c := fixtureCSC()
	assert.Equal(t, 1.0, c.At(0, 0))
	assert.Equal(t, 3.0, c.At(2, 0))
	assert.Equal(t, 0.0, c.At(1, 0))
	assert.Equal(t, 2.0, c.At(1, 1))
	assert.Equal(t, 0.0, c.At(0, 2))
}

func TestCSCMatrix_ColumnSumsAndDetected(t *testing.T) {
	c := fixtureCSC()
	assert.Equal(t, []float64{4, 2, 0}, c.ColumnSums())
	assert.Equal(t, []float64{2, 1, 0}, c.ColumnDetected())
}

func TestCSCMatrix_RowSubsetSums_OnlyCountsSelectedRows(t *testing.T) {
	c := fixtureCSC()
	got := c.RowSubsetSums(map[int]bool{0: true})
	assert.Equal(t, []float64{1, 0, 0}, got)
}

func TestCSCMatrix_SubsetColumns_DropsOthers(t *testing.T) {
	c := fixtureCSC()
	sub := c.SubsetColumns([]int{1, 0})
	assert.Equal(t, 2, sub.NumCols())
	assert.Equal(t, 2.0, sub.At(1, 0))
	assert.Equal(t, 1.0, sub.At(0, 1))
	assert.Equal(t, 3.0, sub.At(2, 1))
}

func TestCSCMatrix_SubsetRows_RemapsIndices(t *testing.T) {
	c := fixtureCSC()
	sub := c.SubsetRows([]int{2, 0})
	// new row 0 == old row 2, new row 1 == old row 0
	assert.Equal(t, 3.0, sub.At(0, 0))
	assert.Equal(t, 1.0, sub.At(1, 0))
	assert.Equal(t, 0.0, sub.At(0, 1))
}

func TestCSCMatrix_ToDense_MatchesAt(t *testing.T) {
	c := fixtureCSC()
	dense := c.ToDense()
	for r := 0; r < c.NumRows(); r++ {
		for col := 0; col < c.NumCols(); col++ {
			assert.Equal(t, c.At(r, col), dense[r*c.NumCols()+col])
		}
	}
}

func TestNewCSCMatrix_PanicsOnBadIndptrLength(t *testing.T) {
	assert.Panics(t, func() {
		NewCSCMatrix(2, 2, []int{0, 1}, nil, nil)
	})
}
