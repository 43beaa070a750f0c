package graph

import (
	"fmt"
	"strconv"

	lvlath "github.com/katalvlaran/lvlath/graph/core"
	"github.com/scpipe/scpipe/pipeline"
)

// SNN is the default pipeline.SNNGraphKernel. The shared-nearest-neighbor
// graph is represented as an *lvlath/graph/core.Graph (undirected,
// weighted); community assignment is a resolution-scaled label-propagation
// pass over that graph, since the pack carries no Louvain-style community
// detector to ground a richer implementation on (see DESIGN.md).
type SNN struct{}

var _ pipeline.SNNGraphKernel = (*SNN)(nil)

// NewSNN constructs the default SNN-graph kernel.
func NewSNN() *SNN { return &SNN{} }

func (s *SNN) BuildGraph(neighborIdx [][]int32, scheme string) ([]int32, []int32, []float64, error) {
	n := len(neighborIdx)
	rank := make([]map[int32]int, n)
	set := make([]map[int32]bool, n)
	for i, nbrs := range neighborIdx {
		rank[i] = make(map[int32]int, len(nbrs))
		set[i] = make(map[int32]bool, len(nbrs))
		for r, j := range nbrs {
			rank[i][j] = r
			set[i][j] = true
		}
	}

	var from, to []int32
	var weights []float64
	seen := make(map[[2]int32]bool)
	consider := func(i, j int32) {
		if i == j {
			return
		}
		a, b := i, j
		if a > b {
			a, b = b, a
		}
		key := [2]int32{a, b}
		if seen[key] {
			return
		}
		seen[key] = true
		w, ok := snnWeight(scheme, int(a), int(b), rank, set)
		if ok && w > 0 {
			from = append(from, a)
			to = append(to, b)
			weights = append(weights, w)
		}
	}
	for i := int32(0); int(i) < n; i++ {
		for j := range neighborIdx[i] {
			consider(i, neighborIdx[i][j])
		}
		for j := range set[i] {
			for cand := range set[int(j)] {
				consider(i, cand)
			}
		}
	}
	switch scheme {
	case "rank", "number", "jaccard":
	default:
		return nil, nil, nil, fmt.Errorf("snn: unknown scheme %q", scheme)
	}
	return from, to, weights, nil
}

func snnWeight(scheme string, a, b int, rank []map[int32]int, set []map[int32]bool) (float64, bool) {
	shared := 0
	for j := range set[a] {
		if set[b][j] {
			shared++
		}
	}
	if shared == 0 {
		_, aHasB := rank[a][int32(b)]
		_, bHasA := rank[b][int32(a)]
		if !aHasB && !bHasA {
			return 0, false
		}
	}
	switch scheme {
	case "number":
		return float64(shared), true
	case "jaccard":
		union := len(set[a]) + len(set[b]) - shared
		if union == 0 {
			return 0, false
		}
		return float64(shared) / float64(union), true
	case "rank":
		k := len(set[a])
		best := 2 * k
		if r, ok := rank[a][int32(b)]; ok {
			cand := r + 0
			if cand < best {
				best = cand
			}
		}
		if r, ok := rank[b][int32(a)]; ok {
			cand := r + 0
			if cand < best {
				best = cand
			}
		}
		return float64(2*k - best), true
	default:
		return 0, false
	}
}

func (s *SNN) Cluster(ncol int, edgesFrom, edgesTo []int32, weights []float64, resolution float64) ([]int32, error) {
	g := lvlath.NewGraph(false, true)
	for c := 0; c < ncol; c++ {
		g.AddVertex(&lvlath.Vertex{ID: strconv.Itoa(c), Metadata: map[string]interface{}{}})
	}
	for i, f := range edgesFrom {
		w := int64(weights[i]*1e6) + 1
		g.AddEdge(strconv.Itoa(int(f)), strconv.Itoa(int(edgesTo[i])), w)
	}

	labels := make([]int32, ncol)
	for i := range labels {
		labels[i] = int32(i)
	}
	// Label propagation: each pass assigns every vertex the label most
	// common among its neighbors, weighted by edge weight and scaled by
	// resolution (higher resolution biases toward keeping a vertex's own
	// label, producing more/smaller communities).
	if resolution <= 0 {
		resolution = 1
	}
	for pass := 0; pass < 20; pass++ {
		changed := false
		for c := 0; c < ncol; c++ {
			id := strconv.Itoa(c)
			nbrs := g.Neighbors(id)
			if len(nbrs) == 0 {
				continue
			}
			votes := make(map[int32]float64)
			votes[labels[c]] += resolution
			for _, nb := range nbrs {
				idx, _ := strconv.Atoi(nb.ID)
				votes[labels[idx]] += 1
			}
			var best int32
			bestVote := -1.0
			for lbl, v := range votes {
				if v > bestVote || (v == bestVote && lbl < best) {
					best, bestVote = lbl, v
				}
			}
			if best != labels[c] {
				labels[c] = best
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return compactLabels(labels), nil
}

// compactLabels remaps arbitrary label values to a dense 0..n-1 range in
// first-appearance order.
func compactLabels(labels []int32) []int32 {
	remap := make(map[int32]int32)
	out := make([]int32, len(labels))
	next := int32(0)
	for i, l := range labels {
		r, ok := remap[l]
		if !ok {
			r = next
			remap[l] = r
			next++
		}
		out[i] = r
	}
	return out
}
