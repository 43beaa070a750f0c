package pipeline

import (
	"context"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// UMAPParams is the umap parameter record.
type UMAPParams struct {
	NumNeighbors int     `yaml:"num_neighbors"`
	NumEpochs    int     `yaml:"num_epochs"`
	MinDist      float64 `yaml:"min_dist"`
	Animate      bool    `yaml:"animate"`
}

// UMAPEmbedding is the C10 UMAP step, mirroring TSNEEmbedding's background
// worker model.
type UMAPEmbedding struct {
	base
	kernel UMAPKernel
	sink   AnimationSink
	params UMAPParams
	async  asyncRun

	mu   sync.Mutex
	x, y []float64
}

// NewUMAPEmbedding constructs the UMAP step.
func NewUMAPEmbedding(kernel UMAPKernel, sink AnimationSink) *UMAPEmbedding {
	return &UMAPEmbedding{base: newBase("umap"), kernel: kernel, sink: sink}
}

// Defaults returns the canonical umap parameter record.
func (s *UMAPEmbedding) Defaults() UMAPParams {
	return UMAPParams{NumNeighbors: 15, NumEpochs: 200, MinDist: 0.1}
}

func (s *UMAPEmbedding) Compute(ctx context.Context, corrected *mat.Dense, upstreamChanged bool, params UMAPParams) {
	if !upstreamChanged && paramsEqual(params, s.params) {
		s.unchanged()
		return
	}
	s.params = params
	data, ndim, ncol := flattenDimMajor(corrected)
	s.async.start(ctx, func(gen int64) error {
		x, y, err := s.kernel.RunUMAP(data, ncol, ndim, params.NumEpochs, params.MinDist, params.Animate, s.sink)
		if err != nil {
			return err
		}
		if s.async.stale(gen) {
			return nil
		}
		s.mu.Lock()
		s.x, s.y = x, y
		s.mu.Unlock()
		return nil
	})
	s.recompute()
}

// Await blocks until the in-flight RUN completes.
func (s *UMAPEmbedding) Await() error { return s.async.Await() }

// FetchXY returns the final coordinates (FETCH message).
func (s *UMAPEmbedding) FetchXY() ([]float64, []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.x, s.y
}

func (s *UMAPEmbedding) Free() {
	s.mu.Lock()
	s.x, s.y = nil, nil
	s.mu.Unlock()
}
