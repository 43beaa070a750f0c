package numeric

import (
	"math"

	"github.com/scpipe/scpipe/pipeline"
	"gonum.org/v1/gonum/stat"
)

// Markers is the default pipeline.MarkerKernel: per-group mean and detected
// fraction, plus pairwise Cohen's d, log-fold change, delta-detected, and
// (optionally) AUC, feature by feature.
type Markers struct{}

// NewMarkers constructs the default marker kernel.
func NewMarkers() *Markers { return &Markers{} }

func (mk *Markers) ComputeMarkers(data []float64, nrow, ncol int, groups []int32, numGroups int, lfcThreshold float64, computeAUC bool) (pipeline.MarkerStats, error) {
	groupCols := make([][]int, numGroups)
	for c, g := range groups {
		groupCols[g] = append(groupCols[g], c)
	}
	mean := make([][]float64, numGroups)
	detected := make([][]float64, numGroups)
	for g := 0; g < numGroups; g++ {
		mean[g] = make([]float64, nrow)
		detected[g] = make([]float64, nrow)
		cols := groupCols[g]
		if len(cols) == 0 {
			continue
		}
		for r := 0; r < nrow; r++ {
			var sum, nz float64
			for _, c := range cols {
				v := data[r*ncol+c]
				sum += v
				if v > 0 {
					nz++
				}
			}
			mean[g][r] = sum / float64(len(cols))
			detected[g][r] = nz / float64(len(cols))
		}
	}
	versus := make(map[[2]int]pipeline.PairwiseEffect)
	for a := 0; a < numGroups; a++ {
		for b := a + 1; b < numGroups; b++ {
			eff, err := mk.ComputeVersus(data, nrow, ncol, groups, a, b, lfcThreshold, computeAUC)
			if err != nil {
				return pipeline.MarkerStats{}, err
			}
			versus[[2]int{a, b}] = eff
		}
	}
	return pipeline.MarkerStats{Mean: mean, Detected: detected, Versus: versus}, nil
}

func (mk *Markers) ComputeVersus(data []float64, nrow, ncol int, groups []int32, left, right int, lfcThreshold float64, computeAUC bool) (pipeline.PairwiseEffect, error) {
	a, b := left, right
	swap := false
	if a > b {
		a, b = b, a
		swap = true
	}
	var leftCols, rightCols []int
	for c, g := range groups {
		if int(g) == a {
			leftCols = append(leftCols, c)
		} else if int(g) == b {
			rightCols = append(rightCols, c)
		}
	}
	cohend := make([]float64, nrow)
	lfc := make([]float64, nrow)
	deltaDet := make([]float64, nrow)
	var auc []float64
	if computeAUC {
		auc = make([]float64, nrow)
	}
	lv := make([]float64, len(leftCols))
	rv := make([]float64, len(rightCols))
	for r := 0; r < nrow; r++ {
		var lSum, rSum, lNZ, rNZ float64
		for i, c := range leftCols {
			v := data[r*ncol+c]
			lv[i] = v
			lSum += v
			if v > 0 {
				lNZ++
			}
		}
		for i, c := range rightCols {
			v := data[r*ncol+c]
			rv[i] = v
			rSum += v
			if v > 0 {
				rNZ++
			}
		}
		lMean := safeDiv(lSum, float64(len(leftCols)))
		rMean := safeDiv(rSum, float64(len(rightCols)))
		lVar := variance(lv, lMean)
		rVar := variance(rv, rMean)
		pooled := math.Sqrt((lVar + rVar) / 2)
		if pooled == 0 {
			cohend[r] = 0
		} else {
			cohend[r] = (lMean - rMean) / pooled
		}
		lfcVal := math.Log2(lMean+lfcThreshold+1e-8) - math.Log2(rMean+lfcThreshold+1e-8)
		lfc[r] = lfcVal
		deltaDet[r] = safeDiv(lNZ, float64(len(leftCols))) - safeDiv(rNZ, float64(len(rightCols)))
		if computeAUC {
			auc[r] = wilcoxAUC(lv, rv)
		}
	}
	eff := pipeline.PairwiseEffect{Cohend: cohend, LFC: lfc, DeltaDetected: deltaDet, AUC: auc}
	if swap {
		eff = negateEffect(eff)
	}
	return eff, nil
}

func negateEffect(e pipeline.PairwiseEffect) pipeline.PairwiseEffect {
	neg := func(v []float64) []float64 {
		if v == nil {
			return nil
		}
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = -x
		}
		return out
	}
	invAUC := func(v []float64) []float64 {
		if v == nil {
			return nil
		}
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = 1 - x
		}
		return out
	}
	return pipeline.PairwiseEffect{
		Cohend:        neg(e.Cohend),
		LFC:           neg(e.LFC),
		DeltaDetected: neg(e.DeltaDetected),
		AUC:           invAUC(e.AUC),
	}
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

func variance(v []float64, mean float64) float64 {
	if len(v) < 2 {
		return 0
	}
	return stat.Variance(v, nil)
}

// wilcoxAUC computes the AUC (probability a random left value exceeds a
// random right value, ties counting half) via the Mann-Whitney U statistic.
func wilcoxAUC(left, right []float64) float64 {
	if len(left) == 0 || len(right) == 0 {
		return 0.5
	}
	var wins float64
	for _, l := range left {
		for _, r := range right {
			switch {
			case l > r:
				wins += 1
			case l == r:
				wins += 0.5
			}
		}
	}
	return wins / float64(len(left)*len(right))
}
