package numeric

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// QC is the default pipeline.QCKernel: median and median-absolute-deviation
// via gonum/stat's mean helper over a sorted slice.
type QC struct{}

// NewQC constructs the default QC summary-statistics kernel.
func NewQC() *QC { return &QC{} }

func (q *QC) MedianMAD(values []float64) (median, mad float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sorted := append([]float64(nil), values...)
	median = quickMedian(sorted)
	devs := make([]float64, len(sorted))
	for i, v := range values {
		d := v - median
		if d < 0 {
			d = -d
		}
		devs[i] = d
	}
	mad = quickMedian(devs) * 1.4826 // scale to be consistent with stdev under normality
	return median, mad
}

func quickMedian(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return stat.Mean(sorted[n/2-1:n/2+1], nil)
}
