package numeric

import (
	"fmt"
	"math"

	"github.com/scpipe/scpipe/pipeline"
)

// KMeans is the default pipeline.KMeansKernel. Initialization picks the k
// cells farthest from the running centroid set (a variance-partition style
// seeding), then runs Lloyd's algorithm to a fixed iteration cap.
type KMeans struct{ MaxIterations int }

// NewKMeans constructs the default k-means kernel.
func NewKMeans() *KMeans { return &KMeans{MaxIterations: 100} }

func (k *KMeans) RunKMeans(data []float64, ncol, ndim, kk int) ([]int32, error) {
	if kk <= 0 {
		return nil, fmt.Errorf("kmeans: k must be > 0")
	}
	if kk > ncol {
		kk = ncol
	}
	points := toPoints(data, ncol, ndim)
	centroids := seedCentroids(points, kk)
	labels := make([]int32, ncol)

	iters := k.MaxIterations
	if iters <= 0 {
		iters = 100
	}
	for iter := 0; iter < iters; iter++ {
		changed := false
		for i, p := range points {
			best, bestDist := 0, math.Inf(1)
			for c, centroid := range centroids {
				d := sqDist(p, centroid)
				if d < bestDist {
					bestDist, best = d, c
				}
			}
			if labels[i] != int32(best) {
				labels[i] = int32(best)
				changed = true
			}
		}
		newCentroids := make([][]float64, kk)
		counts := make([]int, kk)
		for c := range newCentroids {
			newCentroids[c] = make([]float64, ndim)
		}
		for i, p := range points {
			c := labels[i]
			counts[c]++
			for d := 0; d < ndim; d++ {
				newCentroids[c][d] += p[d]
			}
		}
		for c := 0; c < kk; c++ {
			if counts[c] == 0 {
				newCentroids[c] = centroids[c]
				continue
			}
			for d := 0; d < ndim; d++ {
				newCentroids[c][d] /= float64(counts[c])
			}
		}
		centroids = newCentroids
		if !changed {
			break
		}
	}
	return labels, nil
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

func sqDist(a, b []float64) float64 {
	var s float64
	for i := range a {
		diff := a[i] - b[i]
		s += diff * diff
	}
	return s
}

// seedCentroids picks k points via farthest-point seeding: a deterministic
// variance-partition proxy that avoids a dependency on math/rand for
// reproducibility across runs with identical inputs.
func seedCentroids(points [][]float64, k int) [][]float64 {
	if len(points) == 0 {
		return nil
	}
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, points[0])
	for len(centroids) < k && len(centroids) < len(points) {
		farthest, farthestDist := -1, -1.0
		for i, p := range points {
			minDist := math.Inf(1)
			for _, c := range centroids {
				if d := sqDist(p, c); d < minDist {
					minDist = d
				}
			}
			if minDist > farthestDist {
				farthestDist, farthest = minDist, i
			}
		}
		centroids = append(centroids, points[farthest])
	}
	return centroids
}
