package numeric

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHypergeometric_UpperTailP_ExactSingleOutcome(t *testing.T) {
	h := NewHypergeometric()
	// population 10, 5 marked, draw 5: P(X=5) = C(5,5)C(5,0)/C(10,5) = 1/252.
	got := h.UpperTailP(5, 5, 5, 10)
	assert.InDelta(t, 1.0/252.0, got, 1e-9)
}

func TestHypergeometric_UpperTailP_ZeroSuccessesInDrawnIsCertain(t *testing.T) {
	h := NewHypergeometric()
	got := h.UpperTailP(5, 0, 5, 10)
	assert.Equal(t, 1.0, got)
}

func TestHypergeometric_UpperTailP_ImpossibleOutcomeIsZero(t *testing.T) {
	h := NewHypergeometric()
	// can't draw 2 successes when only 1 exists in the population.
	got := h.UpperTailP(2, 2, 1, 10)
	assert.Equal(t, 0.0, got)
}

func TestHypergeometric_UpperTailP_NonPositivePopulationIsCertain(t *testing.T) {
	h := NewHypergeometric()
	assert.Equal(t, 1.0, h.UpperTailP(5, 1, 1, 0))
	assert.Equal(t, 1.0, h.UpperTailP(0, 1, 1, 10))
}

func TestHypergeometric_UpperTailP_MonotonicallyDecreasesWithMoreSuccesses(t *testing.T) {
	h := NewHypergeometric()
	var prev float64 = 2
	for k := 1; k <= 5; k++ {
		got := h.UpperTailP(5, k, 5, 20)
		assert.Less(t, got, prev, "P(X>=k) must strictly decrease as k increases over a non-degenerate range")
		prev = got
	}
}

func TestHypergeometric_UpperTailP_NeverExceedsOne(t *testing.T) {
	h := NewHypergeometric()
	got := h.UpperTailP(50, 1, 50, 100)
	assert.LessOrEqual(t, got, 1.0)
}
