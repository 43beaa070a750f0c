package numeric

import "github.com/scpipe/scpipe/pipeline"

func init() {
	pipeline.NewPCAKernelFunc = func() pipeline.PCAKernel { return NewPCA() }
	pipeline.NewKMeansKernelFunc = func() pipeline.KMeansKernel { return NewKMeans() }
	pipeline.NewMarkerKernelFunc = func() pipeline.MarkerKernel { return NewMarkers() }
	pipeline.NewQCKernelFunc = func() pipeline.QCKernel { return NewQC() }
	pipeline.NewHypergeometricKernelFunc = func() pipeline.HypergeometricKernel { return NewHypergeometric() }
}
