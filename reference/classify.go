package reference

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Classify scores each row of clusterMeans (aligned to datasetGeneIDs)
// against every label profile in profile, restricted to the genes the two
// vocabularies share, and returns the best-correlated label and its score
// per cluster.
func Classify(profile Profile, datasetGeneIDs []string, clusterMeans [][]float64) ([]string, []float64, error) {
	profIndex := make(map[string]int, len(profile.GeneIDs))
	for i, g := range profile.GeneIDs {
		profIndex[g] = i
	}

	var profCols, datasetCols []int
	for j, g := range datasetGeneIDs {
		if pi, ok := profIndex[g]; ok {
			profCols = append(profCols, pi)
			datasetCols = append(datasetCols, j)
		}
	}
	if len(profCols) == 0 {
		return nil, nil, fmt.Errorf("reference: classify: no shared genes between dataset and profile")
	}

	labels := make([]string, len(clusterMeans))
	scores := make([]float64, len(clusterMeans))
	for c, row := range clusterMeans {
		x := make([]float64, len(datasetCols))
		for i, col := range datasetCols {
			x[i] = row[col]
		}
		bestLabel, bestScore := "", math.Inf(-1)
		for li, label := range profile.Labels {
			y := make([]float64, len(profCols))
			for i, pi := range profCols {
				y[i] = profile.Expression[li][pi]
			}
			score := stat.Correlation(x, y, nil)
			if score > bestScore {
				bestScore, bestLabel = score, label
			}
		}
		labels[c], scores[c] = bestLabel, bestScore
	}
	return labels, scores, nil
}

// Integrate chooses, per cluster, the labeling from whichever reference
// scored highest, used when multiple references are requested.
func Integrate(perReferenceLabels [][]string, perReferenceScores [][]float64) ([]string, []float64) {
	if len(perReferenceLabels) == 0 {
		return nil, nil
	}
	numClusters := len(perReferenceLabels[0])
	labels := make([]string, numClusters)
	scores := make([]float64, numClusters)
	for c := 0; c < numClusters; c++ {
		best := math.Inf(-1)
		for r := range perReferenceLabels {
			if perReferenceScores[r][c] > best {
				best = perReferenceScores[r][c]
				labels[c] = perReferenceLabels[r][c]
				scores[c] = perReferenceScores[r][c]
			}
		}
	}
	return labels, scores
}
