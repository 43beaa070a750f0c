// Package embed provides the default t-SNE and UMAP-style embedding
// kernels consumed by pipeline's background embedding workers. register.go
// wires these into pipeline's factory variables the same way
// kernels/numeric and kernels/graph wire theirs.
package embed

import (
	"math"

	"github.com/scpipe/scpipe/pipeline"
)

// TSNE is the default pipeline.TSNEKernel: a full (non-Barnes-Hut) t-SNE
// gradient descent over pairwise affinities, matched to perplexity via
// per-row binary search on a Gaussian kernel bandwidth, in the style of
// van der Maaten & Hinton (2008).
type TSNE struct{}

var _ pipeline.TSNEKernel = (*TSNE)(nil)

// NewTSNE constructs the default t-SNE kernel.
func NewTSNE() *TSNE { return &TSNE{} }

func (t *TSNE) RunTSNE(data []float64, ncol, ndim int, perplexity float64, iterations int, animate bool, sink pipeline.AnimationSink) ([]float64, []float64, error) {
	if ncol == 0 {
		return nil, nil, nil
	}
	points := toPoints(data, ncol, ndim)
	sqDist := pairwiseSqDist(points)
	p := highDimAffinities(sqDist, perplexity)

	x, y := spiralInit(ncol)
	gainX := ones(ncol)
	gainY := ones(ncol)
	velX := make([]float64, ncol)
	velY := make([]float64, ncol)

	momentum := 0.5
	learningRate := 100.0
	if iterations <= 0 {
		iterations = 250
	}
	for iter := 0; iter < iterations; iter++ {
		if iter == 100 {
			momentum = 0.8
		}
		q, qSqDistInv := lowDimAffinities(x, y)
		gradX := make([]float64, ncol)
		gradY := make([]float64, ncol)
		for i := 0; i < ncol; i++ {
			for j := 0; j < ncol; j++ {
				if i == j {
					continue
				}
				mult := 4 * (p[i][j] - q[i][j]) * qSqDistInv[i][j]
				gradX[i] += mult * (x[i] - x[j])
				gradY[i] += mult * (y[i] - y[j])
			}
		}
		for i := 0; i < ncol; i++ {
			gainX[i] = adaptGain(gainX[i], gradX[i], velX[i])
			gainY[i] = adaptGain(gainY[i], gradY[i], velY[i])
			velX[i] = momentum*velX[i] - learningRate*gainX[i]*gradX[i]
			velY[i] = momentum*velY[i] - learningRate*gainY[i]*gradY[i]
			x[i] += velX[i]
			y[i] += velY[i]
		}
		recenter(x)
		recenter(y)
		if animate && sink != nil {
			sink("tsne", append([]float64(nil), x...), append([]float64(nil), y...), iter)
		}
	}
	return x, y, nil
}

func adaptGain(gain, grad, vel float64) float64 {
	sameSign := (grad > 0) == (vel > 0)
	if sameSign {
		gain *= 0.8
	} else {
		gain += 0.2
	}
	if gain < 0.01 {
		gain = 0.01
	}
	return gain
}

func toPoints(data []float64, ncol, ndim int) [][]float64 {
	points := make([][]float64, ncol)
	for c := 0; c < ncol; c++ {
		p := make([]float64, ndim)
		for d := 0; d < ndim; d++ {
			p[d] = data[d*ncol+c]
		}
		points[c] = p
	}
	return points
}

func pairwiseSqDist(points [][]float64) [][]float64 {
	n := len(points)
	d := make([][]float64, n)
	for i := range d {
		d[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			var s float64
			for k := range points[i] {
				diff := points[i][k] - points[j][k]
				s += diff * diff
			}
			d[i][j], d[j][i] = s, s
		}
	}
	return d
}

// highDimAffinities computes the symmetrized joint probability matrix P,
// binary-searching each row's Gaussian bandwidth so its perplexity matches
// the target.
func highDimAffinities(sqDist [][]float64, perplexity float64) [][]float64 {
	n := len(sqDist)
	logTarget := math.Log(perplexity)
	p := make([][]float64, n)
	for i := range p {
		p[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		beta, betaMin, betaMax := 1.0, 0.0, math.Inf(1)
		var row []float64
		for iter := 0; iter < 50; iter++ {
			row = make([]float64, n)
			var sum float64
			for j := 0; j < n; j++ {
				if j == i {
					continue
				}
				row[j] = math.Exp(-sqDist[i][j] * beta)
				sum += row[j]
			}
			if sum == 0 {
				sum = 1e-12
			}
			var entropy float64
			for j := 0; j < n; j++ {
				if j == i || row[j] == 0 {
					continue
				}
				pr := row[j] / sum
				entropy -= pr * math.Log(pr)
			}
			diff := entropy - logTarget
			if math.Abs(diff) < 1e-5 {
				break
			}
			if diff > 0 {
				betaMin = beta
				if math.IsInf(betaMax, 1) {
					beta *= 2
				} else {
					beta = (beta + betaMax) / 2
				}
			} else {
				betaMax = beta
				beta = (beta + betaMin) / 2
			}
		}
		var sum float64
		for _, v := range row {
			sum += v
		}
		if sum == 0 {
			sum = 1e-12
		}
		for j := 0; j < n; j++ {
			p[i][j] = row[j] / sum
		}
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			avg := (p[i][j] + p[j][i]) / (2 * float64(n))
			if avg < 1e-12 {
				avg = 1e-12
			}
			p[i][j], p[j][i] = avg, avg
		}
	}
	return p
}

func lowDimAffinities(x, y []float64) ([][]float64, [][]float64) {
	n := len(x)
	inv := make([][]float64, n)
	for i := range inv {
		inv[i] = make([]float64, n)
	}
	var total float64
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dx, dy := x[i]-x[j], y[i]-y[j]
			v := 1.0 / (1.0 + dx*dx + dy*dy)
			inv[i][j], inv[j][i] = v, v
			total += 2 * v
		}
	}
	if total == 0 {
		total = 1e-12
	}
	q := make([][]float64, n)
	for i := range q {
		q[i] = make([]float64, n)
		for j := range q[i] {
			if i == j {
				continue
			}
			qv := inv[i][j] / total
			if qv < 1e-12 {
				qv = 1e-12
			}
			q[i][j] = qv
		}
	}
	return q, inv
}

func spiralInit(n int) ([]float64, []float64) {
	const goldenAngle = 2.399963229728653 // radians
	x := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		r := 0.01 * math.Sqrt(float64(i))
		theta := float64(i) * goldenAngle
		x[i] = r * math.Cos(theta)
		y[i] = r * math.Sin(theta)
	}
	return x, y
}

func recenter(v []float64) {
	var mean float64
	for _, a := range v {
		mean += a
	}
	mean /= float64(len(v))
	for i := range v {
		v[i] -= mean
	}
}

func ones(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}
