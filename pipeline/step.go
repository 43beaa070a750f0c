package pipeline

import (
	"reflect"

	"github.com/google/uuid"
)

// Step is the minimal contract every pipeline component satisfies: it
// reports whether its most recent compute() changed its result, and can
// release owned buffers. Each concrete step additionally exposes a typed
// Compute(parameters) method and fetch_* getters; Go's lack of a uniform
// generic signature across differently-parameterized steps means those are
// not part of this interface, mirroring how the teacher project expresses
// each policy family (AdmissionPolicy, RoutingPolicy, ...) as its own small
// interface rather than forcing a single mega-interface.
type Step interface {
	// Name identifies the step for logging and persisted-state group names.
	Name() string
	// Changed reports whether the most recent Compute call changed this
	// step's result cache.
	Changed() bool
	// Generation returns the current cache-generation token, advanced on
	// every recompute; store.SaveEngine persists it per step.
	Generation() string
	// Free releases owned result buffers.
	Free()
}

// base holds the bookkeeping every step shares: the changed flag set each
// compute, and a generation token that is regenerated on every recompute.
// A view returned by a fetch_* getter is valid only until the producer's
// next recompute, which a holder can detect as a change in the producer's
// Generation(); outliving it is a programming error in this engine, not a
// user-facing one, so it is enforced by convention/tests rather than at
// runtime.
type base struct {
	name       string
	changed    bool
	generation string // opaque cache-generation token, regenerated on recompute
}

func newBase(name string) base {
	return base{name: name, generation: uuid.NewString()}
}

func (b *base) Name() string    { return b.name }
func (b *base) Changed() bool   { return b.changed }
func (b *base) Generation() string { return b.generation }

// recompute marks this step as having changed and advances its cache
// generation. Called by Compute implementations once new results are ready.
func (b *base) recompute() {
	b.changed = true
	b.generation = uuid.NewString()
}

// unchanged marks this step as not having changed; the cache (and
// generation) remain as-is.
func (b *base) unchanged() {
	b.changed = false
}

// paramsEqual reports whether two parameter records are equal, the
// uniform change-detection primitive from spec.md §4.1:
// self.changed = upstreamChanged || !paramsEqual(params, cached).
func paramsEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

// anyUpstreamChanged is a small variadic helper so call sites read like the
// spec's "self.changed = (any_upstream.changed) or (parameters ≠ cached)".
func anyUpstreamChanged(steps ...Step) bool {
	for _, s := range steps {
		if s != nil && s.Changed() {
			return true
		}
	}
	return false
}
