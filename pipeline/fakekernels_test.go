package pipeline

// fakeQCKernel computes an ordinary median/MAD; unlike kernels/numeric's QC
// kernel it does not scale the MAD by 1.4826, so threshold tests produce
// predictable, checkable numbers without importing that package (which
// would create an import cycle: kernels/numeric imports pipeline).
type fakeQCKernel struct{}

func (fakeQCKernel) MedianMAD(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	median := medianOf(values)
	deviations := make([]float64, len(values))
	for i, v := range values {
		d := v - median
		if d < 0 {
			d = -d
		}
		deviations[i] = d
	}
	return median, medianOf(deviations)
}

// fakePCAKernel returns a deterministic, recognizable embedding: component
// i of cell j is i*10+j, letting tests assert on exact scores rather than
// just shape.
type fakePCAKernel struct {
	calls int
}

func (k *fakePCAKernel) RunPCA(data []float64, nrow, ncol, numPCs int, blockIndices []int32, blockMethod string) (PCAResult, error) {
	k.calls++
	scores := make([][]float64, numPCs)
	varExp := make([]float64, numPCs)
	for i := 0; i < numPCs; i++ {
		row := make([]float64, ncol)
		for j := 0; j < ncol; j++ {
			row[j] = float64(i*10 + j)
		}
		scores[i] = row
		varExp[i] = 1.0 / float64(i+1)
	}
	return PCAResult{Scores: scores, VarianceExplained: varExp}, nil
}

// fakeKMeansKernel assigns cell j to cluster j%k, counting invocations.
type fakeKMeansKernel struct {
	calls int
}

func (k *fakeKMeansKernel) RunKMeans(data []float64, ncol, ndim, k2 int) ([]int32, error) {
	k.calls++
	labels := make([]int32, ncol)
	for j := range labels {
		labels[j] = int32(j % k2)
	}
	return labels, nil
}

// fakeNeighborKernel returns the previous column (wrapping) as the sole
// neighbor of every column, counting invocations.
type fakeNeighborKernel struct {
	calls int
}

func (k *fakeNeighborKernel) FindNeighbors(data []float64, ncol, ndim, kk int, approximate bool) ([][]int32, [][]float64, error) {
	k.calls++
	idx := make([][]int32, ncol)
	dist := make([][]float64, ncol)
	for j := 0; j < ncol; j++ {
		prev := (j - 1 + ncol) % ncol
		idx[j] = []int32{int32(prev)}
		dist[j] = []float64{1}
	}
	return idx, dist, nil
}

// fakeSNNKernel builds a trivial ring graph from the neighbor list and
// "clusters" by parity of column index, counting invocations of each method
// separately so cache-reuse tests can assert on each stage.
type fakeSNNKernel struct {
	buildCalls   int
	clusterCalls int
}

func (k *fakeSNNKernel) BuildGraph(neighborIdx [][]int32, scheme string) ([]int32, []int32, []float64, error) {
	k.buildCalls++
	var from, to []int32
	var weights []float64
	for j, nbrs := range neighborIdx {
		for _, n := range nbrs {
			from = append(from, int32(j))
			to = append(to, n)
			weights = append(weights, 1)
		}
	}
	return from, to, weights, nil
}

func (k *fakeSNNKernel) Cluster(ncol int, edgesFrom, edgesTo []int32, weights []float64, resolution float64) ([]int32, error) {
	k.clusterCalls++
	labels := make([]int32, ncol)
	for j := range labels {
		labels[j] = int32(j % 2)
	}
	return labels, nil
}

// fakeMNNKernel returns the input data unchanged (a no-op "correction"),
// counting invocations.
type fakeMNNKernel struct {
	calls int
}

func (k *fakeMNNKernel) Correct(data []float64, ncol, ndim int, blockIndices []int32, numNeighbors int, approximate bool) ([]float64, error) {
	k.calls++
	out := make([]float64, len(data))
	copy(out, data)
	return out, nil
}

// fakeTSNEKernel and fakeUMAPKernel return a deterministic two-dimensional
// layout (x=column index, y=-column index) and invoke the animation sink
// once per requested iteration so worker-sink wiring can be asserted.
type fakeTSNEKernel struct {
	calls int
}

func (k *fakeTSNEKernel) RunTSNE(data []float64, ncol, ndim int, perplexity float64, iterations int, animate bool, sink AnimationSink) ([]float64, []float64, error) {
	k.calls++
	x := make([]float64, ncol)
	y := make([]float64, ncol)
	for j := 0; j < ncol; j++ {
		x[j] = float64(j)
		y[j] = -float64(j)
	}
	if animate && sink != nil {
		for it := 0; it < iterations; it++ {
			sink("tsne", x, y, it)
		}
	}
	return x, y, nil
}

type fakeUMAPKernel struct {
	calls int
}

func (k *fakeUMAPKernel) RunUMAP(data []float64, ncol, ndim int, numEpochs int, minDist float64, animate bool, sink AnimationSink) ([]float64, []float64, error) {
	k.calls++
	x := make([]float64, ncol)
	y := make([]float64, ncol)
	for j := 0; j < ncol; j++ {
		x[j] = float64(j)
		y[j] = -float64(j)
	}
	if animate && sink != nil {
		for ep := 0; ep < numEpochs; ep++ {
			sink("umap", x, y, ep)
		}
	}
	return x, y, nil
}

// fakeMeanMarkerKernel computes genuine per-group mean and detected-fraction
// statistics over the dense data buffer, for tests (cell labelling, feature
// set enrichment) that read MarkerStats.Mean/Detected rather than only
// exercising the versus cache.
type fakeMeanMarkerKernel struct{}

func (fakeMeanMarkerKernel) ComputeMarkers(data []float64, nrow, ncol int, groups []int32, numGroups int, lfcThreshold float64, computeAUC bool) (MarkerStats, error) {
	mean := make([][]float64, numGroups)
	detected := make([][]float64, numGroups)
	for g := 0; g < numGroups; g++ {
		mean[g] = make([]float64, nrow)
		detected[g] = make([]float64, nrow)
		var n float64
		for c, grp := range groups {
			if int(grp) != g {
				continue
			}
			n++
			for r := 0; r < nrow; r++ {
				v := data[r*ncol+c]
				mean[g][r] += v
				if v != 0 {
					detected[g][r]++
				}
			}
		}
		if n > 0 {
			for r := 0; r < nrow; r++ {
				mean[g][r] /= n
				detected[g][r] /= n
			}
		}
	}
	return MarkerStats{Mean: mean, Detected: detected}, nil
}

func (fakeMeanMarkerKernel) ComputeVersus(data []float64, nrow, ncol int, groups []int32, left, right int, lfcThreshold float64, computeAUC bool) (PairwiseEffect, error) {
	return PairwiseEffect{}, nil
}

// fakeHypergeometricKernel returns a p-value ranked by how over-represented
// the draw is, without doing a real hypergeometric calculation: enough for
// tests that only care about relative ordering.
type fakeHypergeometricKernel struct{}

func (fakeHypergeometricKernel) UpperTailP(drawn, successesInDrawn, successesInPopulation, populationSize int) float64 {
	if drawn == 0 {
		return 1
	}
	expected := float64(successesInPopulation) / float64(populationSize) * float64(drawn)
	if float64(successesInDrawn) <= expected {
		return 1
	}
	return expected / float64(successesInDrawn)
}

// countingHypergeometricKernel wraps fakeHypergeometricKernel's arithmetic
// while counting invocations, for cache-reuse assertions.
type countingHypergeometricKernel struct {
	calls int
}

func (k *countingHypergeometricKernel) UpperTailP(drawn, successesInDrawn, successesInPopulation, populationSize int) float64 {
	k.calls++
	return fakeHypergeometricKernel{}.UpperTailP(drawn, successesInDrawn, successesInPopulation, populationSize)
}
