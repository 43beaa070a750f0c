package numeric

import "math"

// Hypergeometric is the default pipeline.HypergeometricKernel. gonum's
// stat/distuv package has no hypergeometric distribution, so the point-mass
// function is computed directly from log-factorials (math.Lgamma), the
// standard numerically stable route for the combinatorial ratio; this is
// the one piece of this kernel the DESIGN.md ledger justifies on the
// standard library rather than a third-party dependency.
type Hypergeometric struct{}

// NewHypergeometric constructs the default hypergeometric-test kernel.
func NewHypergeometric() *Hypergeometric { return &Hypergeometric{} }

// UpperTailP returns P(X >= successesInDrawn) for X drawn from a population
// of populationSize items with successesInPopulation marked, sampling drawn
// items without replacement: the probability of seeing at least as many
// marker genes in a feature set by chance.
func (h *Hypergeometric) UpperTailP(drawn, successesInDrawn, successesInPopulation, populationSize int) float64 {
	if populationSize <= 0 || drawn <= 0 || successesInDrawn <= 0 {
		return 1
	}
	lo := successesInDrawn
	hi := min(drawn, successesInPopulation)
	if lo > hi {
		return 0
	}
	var p float64
	for k := lo; k <= hi; k++ {
		p += hyperPMF(k, drawn, successesInPopulation, populationSize)
	}
	if p > 1 {
		p = 1
	}
	return p
}

func hyperPMF(k, drawn, successesInPopulation, populationSize int) float64 {
	logP := logChoose(successesInPopulation, k) +
		logChoose(populationSize-successesInPopulation, drawn-k) -
		logChoose(populationSize, drawn)
	return math.Exp(logP)
}

func logChoose(n, k int) float64 {
	if k < 0 || k > n {
		return math.Inf(-1)
	}
	a, _ := math.Lgamma(float64(n + 1))
	b, _ := math.Lgamma(float64(k + 1))
	c, _ := math.Lgamma(float64(n - k + 1))
	return a - b - c
}
