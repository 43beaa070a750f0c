package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// asyncRun is the shared background-worker primitive behind TSNEEmbedding
// and UMAPEmbedding (spec.md §4.11): each Compute call starts a new
// generation and hands the work to an errgroup.Group, mirroring a RUN
// message superseding any prior in-flight state. A stale generation's
// result is discarded rather than written, the message-passing-task design
// note's "single active state" guarantee implemented without an actual
// goroutine-per-worker mailbox.
type asyncRun struct {
	mu         sync.Mutex
	generation int64
	group      *errgroup.Group
}

// start launches work in a new generation, replacing any previously
// tracked group. work receives its own generation number so it can check
// staleness via (*asyncRun).stale before committing results.
func (a *asyncRun) start(ctx context.Context, work func(gen int64) error) {
	a.mu.Lock()
	a.generation++
	gen := a.generation
	a.mu.Unlock()

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error { return work(gen) })

	a.mu.Lock()
	a.group = g
	a.mu.Unlock()
}

func (a *asyncRun) stale(gen int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return gen != a.generation
}

// Await blocks until the most recently started generation completes,
// mirroring run_analysis deferring these steps to the very end.
func (a *asyncRun) Await() error {
	a.mu.Lock()
	g := a.group
	a.mu.Unlock()
	if g == nil {
		return nil
	}
	return g.Wait()
}

// flattenDimMajor copies a components x cells matrix into a dim-major
// []float64 (data[d*ncol+c]), the layout every kernel in this package
// expects, and the transfer boundary for a background worker's RUN inputs.
func flattenDimMajor(m *mat.Dense) (data []float64, ndim, ncol int) {
	ndim, ncol = m.Dims()
	data = make([]float64, ndim*ncol)
	for d := 0; d < ndim; d++ {
		for c := 0; c < ncol; c++ {
			data[d*ncol+c] = m.At(d, c)
		}
	}
	return data, ndim, ncol
}
