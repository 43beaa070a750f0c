package pipeline

import (
	"context"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// TSNEParams is the tsne parameter record.
type TSNEParams struct {
	Perplexity float64 `yaml:"perplexity"`
	Iterations int     `yaml:"iterations"`
	Animate    bool    `yaml:"animate"`
}

// TSNEEmbedding is the C10 t-SNE step. Its compute runs on a background
// worker; the engine collects its completion and awaits it at the end of
// run_analysis alongside UMAPEmbedding.
type TSNEEmbedding struct {
	base
	kernel TSNEKernel
	sink   AnimationSink
	params TSNEParams
	async  asyncRun

	mu   sync.Mutex
	x, y []float64
}

// NewTSNEEmbedding constructs the t-SNE step.
func NewTSNEEmbedding(kernel TSNEKernel, sink AnimationSink) *TSNEEmbedding {
	return &TSNEEmbedding{base: newBase("tsne"), kernel: kernel, sink: sink}
}

// Defaults returns the canonical tsne parameter record.
func (s *TSNEEmbedding) Defaults() TSNEParams {
	return TSNEParams{Perplexity: 30, Iterations: 1000}
}

// Compute sends the RUN message: if unchanged, no new generation is
// started and the previous result stands.
func (s *TSNEEmbedding) Compute(ctx context.Context, corrected *mat.Dense, upstreamChanged bool, params TSNEParams) {
	if !upstreamChanged && paramsEqual(params, s.params) {
		s.unchanged()
		return
	}
	s.params = params
	data, ndim, ncol := flattenDimMajor(corrected)
	s.async.start(ctx, func(gen int64) error {
		x, y, err := s.kernel.RunTSNE(data, ncol, ndim, params.Perplexity, params.Iterations, params.Animate, s.sink)
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
func (s *TSNEEmbedding) Await() error { return s.async.Await() }

// FetchXY returns the final coordinates (FETCH message).
func (s *TSNEEmbedding) FetchXY() ([]float64, []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.x, s.y
}

func (s *TSNEEmbedding) Free() {
	s.mu.Lock()
	s.x, s.y = nil, nil
	s.mu.Unlock()
}
