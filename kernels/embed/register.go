package embed

import "github.com/scpipe/scpipe/pipeline"

func init() {
	pipeline.NewTSNEKernelFunc = func() pipeline.TSNEKernel { return NewTSNE() }
	pipeline.NewUMAPKernelFunc = func() pipeline.UMAPKernel { return NewUMAP() }
}
