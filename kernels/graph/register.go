package graph

import "github.com/scpipe/scpipe/pipeline"

func init() {
	pipeline.NewNeighborSearchKernelFunc = func() pipeline.NeighborSearchKernel { return NewNeighbors() }
	pipeline.NewSNNGraphKernelFunc = func() pipeline.SNNGraphKernel { return NewSNN() }
	pipeline.NewMNNKernelFunc = func() pipeline.MNNKernel { return NewMNN() }
}
