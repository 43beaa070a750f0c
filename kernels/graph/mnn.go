package graph

import (
	"math"
	"sort"

	"github.com/scpipe/scpipe/pipeline"
)

// MNN is the default pipeline.MNNKernel: mutual-nearest-neighbor batch
// correction in the style of Haghverdi et al., applied one non-reference
// batch at a time against a growing pool of already-corrected cells. The
// "approximate" flag is accepted for signature compatibility; this
// implementation always searches exactly, as Neighbors does.
type MNN struct{}

var _ pipeline.MNNKernel = (*MNN)(nil)

// NewMNN constructs the default batch-correction kernel.
func NewMNN() *MNN { return &MNN{} }

func (m *MNN) Correct(data []float64, ncol, ndim int, blockIndices []int32, numNeighbors int, approximate bool) ([]float64, error) {
	if numNeighbors <= 0 {
		numNeighbors = 1
	}
	points := make([][]float64, ncol)
	for c := 0; c < ncol; c++ {
		p := make([]float64, ndim)
		for d := 0; d < ndim; d++ {
			p[d] = data[d*ncol+c]
		}
		points[c] = p
	}

	order := make([]int32, 0)
	groups := make(map[int32][]int)
	for c, b := range blockIndices {
		if _, ok := groups[b]; !ok {
			order = append(order, b)
		}
		groups[b] = append(groups[b], c)
	}
	if len(order) <= 1 {
		return data, nil
	}

	corrected := make([][]float64, ncol)
	for i, p := range points {
		corrected[i] = append([]float64(nil), p...)
	}

	refIdx := append([]int(nil), groups[order[0]]...)
	for bi := 1; bi < len(order); bi++ {
		queryIdx := groups[order[bi]]
		refPts := gather(corrected, refIdx)
		queryPts := gather(points, queryIdx)

		refNeighborsOfQuery := kNearest(queryPts, refPts, numNeighbors)
		queryNeighborsOfRef := kNearest(refPts, queryPts, numNeighbors)

		type pair struct {
			q, r int
			dist float64
		}
		var mutual []pair
		for qi, nbrs := range refNeighborsOfQuery {
			for _, n := range nbrs {
				for _, back := range queryNeighborsOfRef[n.j] {
					if back.j == qi {
						mutual = append(mutual, pair{qi, n.j, n.d})
						break
					}
				}
			}
		}

		sigma := 1.0
		if len(mutual) > 0 {
			dists := make([]float64, len(mutual))
			for i, p := range mutual {
				dists[i] = p.dist
			}
			sort.Float64s(dists)
			sigma = dists[len(dists)/2]
			if sigma <= 0 {
				sigma = 1
			}
		}

		vectors := make(map[int][]float64)
		weightSum := make(map[int]float64)
		for _, p := range mutual {
			w := math.Exp(-(p.dist * p.dist) / (2 * sigma * sigma))
			vec := vectors[p.q]
			if vec == nil {
				vec = make([]float64, ndim)
				vectors[p.q] = vec
			}
			for d := 0; d < ndim; d++ {
				vec[d] += w * (refPts[p.r][d] - queryPts[p.q][d])
			}
			weightSum[p.q] += w
		}

		queryCorrection := make([][]float64, len(queryIdx))
		for qi := range queryIdx {
			if ws := weightSum[qi]; ws > 0 {
				vec := make([]float64, ndim)
				for d := 0; d < ndim; d++ {
					vec[d] = vectors[qi][d] / ws
				}
				queryCorrection[qi] = vec
			}
		}
		// cells with no direct mutual-neighbor match borrow the correction
		// vector of their nearest matched query cell.
		matched := make([]int, 0, len(queryIdx))
		for qi, v := range queryCorrection {
			if v != nil {
				matched = append(matched, qi)
			}
		}
		for qi, v := range queryCorrection {
			if v != nil {
				continue
			}
			if len(matched) == 0 {
				queryCorrection[qi] = make([]float64, ndim)
				continue
			}
			best, bestDist := matched[0], math.Inf(1)
			for _, mi := range matched {
				if d := euclid(queryPts[qi], queryPts[mi]); d < bestDist {
					best, bestDist = mi, d
				}
			}
			queryCorrection[qi] = queryCorrection[best]
		}

		for i, qi := range queryIdx {
			vec := queryCorrection[i]
			out := make([]float64, ndim)
			for d := 0; d < ndim; d++ {
				out[d] = points[qi][d] + vec[d]
			}
			corrected[qi] = out
		}
		refIdx = append(refIdx, queryIdx...)
	}

	out := make([]float64, ndim*ncol)
	for c := 0; c < ncol; c++ {
		for d := 0; d < ndim; d++ {
			out[d*ncol+c] = corrected[c][d]
		}
	}
	return out, nil
}

func gather(points [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, j := range idx {
		out[i] = points[j]
	}
	return out
}

type neighborHit struct {
	j int
	d float64
}

// kNearest returns, for each point in from, the k nearest points in to
// (indices local to the to slice).
func kNearest(from, to [][]float64, k int) [][]neighborHit {
	out := make([][]neighborHit, len(from))
	if k > len(to) {
		k = len(to)
	}
	for i, p := range from {
		cands := make([]neighborHit, len(to))
		for j, q := range to {
			cands[j] = neighborHit{j, euclid(p, q)}
		}
		sort.Slice(cands, func(a, b int) bool { return cands[a].d < cands[b].d })
		out[i] = cands[:k]
	}
	return out
}
