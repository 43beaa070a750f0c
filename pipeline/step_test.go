package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeStep struct {
	base
}

func (f *fakeStep) Free() {}

func TestBase_Recompute_SetsChangedAndNewGeneration(t *testing.T) {
	s := fakeStep{base: newBase("fake")}
	firstGen := s.Generation()
	s.recompute()
	assert.True(t, s.Changed())
	assert.NotEqual(t, firstGen, s.Generation())
}

func TestBase_Unchanged_LeavesGenerationAlone(t *testing.T) {
	s := fakeStep{base: newBase("fake")}
	s.recompute()
	gen := s.Generation()
	s.unchanged()
	assert.False(t, s.Changed())
	assert.Equal(t, gen, s.Generation())
}

func TestParamsEqual_StructsByValue(t *testing.T) {
	a := CellFilteringParams{UseRNA: true, UseADT: true}
	b := CellFilteringParams{UseRNA: true, UseADT: true}
	c := CellFilteringParams{UseRNA: true, UseADT: false}
	assert.True(t, paramsEqual(a, b))
	assert.False(t, paramsEqual(a, c))
}

func TestAnyUpstreamChanged_TrueIfAnyStepChanged(t *testing.T) {
	unchangedStep := &fakeStep{base: newBase("a")}
	unchangedStep.unchanged()
	changedStep := &fakeStep{base: newBase("b")}
	changedStep.recompute()

	assert.False(t, anyUpstreamChanged(unchangedStep))
	assert.True(t, anyUpstreamChanged(unchangedStep, changedStep))
}

func TestAnyUpstreamChanged_IgnoresNilSteps(t *testing.T) {
	assert.False(t, anyUpstreamChanged(nil, nil))
}
