package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestUMAPEmbedding_Compute_AwaitProducesCoordinates(t *testing.T) {
	kernel := &fakeUMAPKernel{}
	s := NewUMAPEmbedding(kernel, nil)
	corrected := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})

	s.Compute(context.Background(), corrected, true, s.Defaults())
	require.NoError(t, s.Await())
	assert.Equal(t, 1, kernel.calls)

	x, y := s.FetchXY()
	assert.Equal(t, []float64{0, 1, 2}, x)
	assert.Equal(t, []float64{0, -1, -2}, y)
}

func TestUMAPEmbedding_Compute_UnchangedSkipsNewGeneration(t *testing.T) {
	kernel := &fakeUMAPKernel{}
	s := NewUMAPEmbedding(kernel, nil)
	corrected := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	params := s.Defaults()

	s.Compute(context.Background(), corrected, true, params)
	require.NoError(t, s.Await())
	s.Compute(context.Background(), corrected, false, params)
	require.NoError(t, s.Await())
	assert.Equal(t, 1, kernel.calls)
}

func TestUMAPEmbedding_Free_ClearsCoordinates(t *testing.T) {
	s := NewUMAPEmbedding(&fakeUMAPKernel{}, nil)
	corrected := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	s.Compute(context.Background(), corrected, true, s.Defaults())
	require.NoError(t, s.Await())

	s.Free()
	x, y := s.FetchXY()
	assert.Nil(t, x)
	assert.Nil(t, y)
}
