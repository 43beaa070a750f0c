package embed

import (
	"math"
	"sort"

	"github.com/scpipe/scpipe/pipeline"
)

// UMAP is the default pipeline.UMAPKernel. It is a simplified, deterministic
// reduction of McInnes, Healy & Melville's algorithm: a fuzzy simplicial set
// built from smoothed per-point nearest-neighbor weights, laid out by
// attractive/repulsive force updates over a fixed number of epochs.
// Negative samples are chosen deterministically (a fixed stride walk over
// the remaining points) rather than by random sampling, to keep layouts
// reproducible across runs without depending on math/rand seeding.
type UMAP struct{}

var _ pipeline.UMAPKernel = (*UMAP)(nil)

// NewUMAP constructs the default UMAP-style layout kernel.
func NewUMAP() *UMAP { return &UMAP{} }

func (u *UMAP) RunUMAP(data []float64, ncol, ndim int, numEpochs int, minDist float64, animate bool, sink pipeline.AnimationSink) ([]float64, []float64, error) {
	if ncol == 0 {
		return nil, nil, nil
	}
	points := toPoints(data, ncol, ndim)
	sqDist := pairwiseSqDist(points)
	k := 15
	if k > ncol-1 {
		k = ncol - 1
	}
	weights := fuzzyWeights(sqDist, k)

	if minDist <= 0 {
		minDist = 0.1
	}
	a, b := fitAB(minDist)

	x, y := spiralInit(ncol)
	if numEpochs <= 0 {
		numEpochs = 200
	}
	negSamples := 5
	initialLR := 1.0
	for epoch := 0; epoch < numEpochs; epoch++ {
		lr := initialLR * (1 - float64(epoch)/float64(numEpochs))
		if lr < 1e-3 {
			lr = 1e-3
		}
		for i := 0; i < ncol; i++ {
			for j, w := range weights[i] {
				if j == i || w <= 0 {
					continue
				}
				dx, dy := x[i]-x[j], y[i]-y[j]
				distSq := dx*dx + dy*dy
				grad := attractiveGrad(distSq, a, b) * w * lr
				x[i] -= grad * dx
				y[i] -= grad * dy
				x[j] += grad * dx
				y[j] += grad * dy
			}
			for s := 1; s <= negSamples; s++ {
				j := (i + s*7 + 1) % ncol
				if j == i {
					continue
				}
				dx, dy := x[i]-x[j], y[i]-y[j]
				distSq := dx*dx + dy*dy
				grad := repulsiveGrad(distSq, a, b) * lr
				x[i] += grad * dx
				y[i] += grad * dy
			}
		}
		if animate && sink != nil {
			sink("umap", append([]float64(nil), x...), append([]float64(nil), y...), epoch)
		}
	}
	return x, y, nil
}

func attractiveGrad(distSq, a, b float64) float64 {
	if distSq <= 0 {
		return 0
	}
	w := 1.0 / (1.0 + a*math.Pow(distSq, b))
	return -2 * a * b * math.Pow(distSq, b-1) * w
}

func repulsiveGrad(distSq, a, b float64) float64 {
	if distSq <= 0 {
		distSq = 1e-4
	}
	w := 1.0 / (1.0 + a*math.Pow(distSq, b))
	return 2 * b * w / (0.001 + distSq)
}

// fitAB derives the two UMAP curve parameters from minDist with the
// closed-form approximation used when minDist is small: b near 1 and a
// scaled so the curve crosses 0.5 around minDist.
func fitAB(minDist float64) (float64, float64) {
	b := 1.0
	a := 1.0 / (minDist * minDist)
	return a, b
}

func fuzzyWeights(sqDist [][]float64, k int) [][]float64 {
	n := len(sqDist)
	raw := make([][]float64, n)
	for i := 0; i < n; i++ {
		cands := make([]knnCand, 0, n-1)
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			cands = append(cands, knnCand{j, sqDist[i][j]})
		}
		sort.Slice(cands, func(a, b int) bool { return cands[a].d < cands[b].d })
		if len(cands) > k {
			cands = cands[:k]
		}
		rho := 0.0
		if len(cands) > 0 {
			rho = math.Sqrt(cands[0].d)
		}
		sigma := smoothKNNSigma(cands, rho, k)
		row := make([]float64, n)
		for _, c := range cands {
			d := math.Sqrt(c.d) - rho
			if d < 0 {
				d = 0
			}
			row[c.j] = math.Exp(-d / sigma)
		}
		raw[i] = row
	}
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
	}
	target := math.Log2(float64(k + 1))
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			wij, wji := raw[i][j]/target, raw[j][i]/target
			out[i][j] = wij + wji - wij*wji
		}
	}
	return out
}

type knnCand struct {
	j int
	d float64
}

func smoothKNNSigma(cands []knnCand, rho float64, k int) float64 {
	target := math.Log2(float64(k + 1))
	lo, hi := 1e-6, 1e6
	sigma := 1.0
	for iter := 0; iter < 40; iter++ {
		sigma = (lo + hi) / 2
		var sum float64
		for _, c := range cands {
			d := math.Sqrt(c.d) - rho
			if d < 0 {
				d = 0
			}
			sum += math.Exp(-d / sigma)
		}
		if sum > target {
			hi = sigma
		} else {
			lo = sigma
		}
	}
	return sigma
}
