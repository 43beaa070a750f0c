package pipeline

// blockLevelsAndGroups returns the block levels (in a fixed order) and the
// column indices belonging to each, for a possibly-nil BlockFactor over n
// cells. A nil block factor is treated as one implicit level named "".
func blockLevelsAndGroups(block *BlockFactor, n int) ([]string, map[string][]int) {
	if block == nil {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return []string{""}, map[string][]int{"": idx}
	}
	return block.Levels, block.GroupIndices()
}

// madThreshold derives a per-block MAD-based filter threshold and applies
// it, the shared routine behind every per-modality QC policy (spec.md
// §4.3): "low" discards values below median-nmads*mad, "high" discards
// values above median+nmads*mad.
func madThreshold(values []float64, levels []string, groups map[string][]int, kernel QCKernel, nmads float64, tail string) (DiscardVector, []float64) {
	n := len(values)
	discard := make(DiscardVector, n)
	thresholds := make([]float64, len(levels))
	for li, level := range levels {
		idx := groups[level]
		sub := make([]float64, len(idx))
		for i, c := range idx {
			sub[i] = values[c]
		}
		median, mad := kernel.MedianMAD(sub)
		var thresh float64
		if tail == "low" {
			thresh = median - nmads*mad
		} else {
			thresh = median + nmads*mad
		}
		thresholds[li] = thresh
		for _, c := range idx {
			v := values[c]
			if (tail == "low" && v < thresh) || (tail == "high" && v > thresh) {
				discard[c] = 1
			}
		}
	}
	return discard, thresholds
}

func safeDivide(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
