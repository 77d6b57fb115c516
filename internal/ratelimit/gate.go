package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/BradenHooton/stylebook/internal/metrics"
	"github.com/BradenHooton/stylebook/internal/models"
)

// DefaultGatePermits is the default number of concurrent calls allowed through a Gate.
const DefaultGatePermits = 2

// Gate bounds in-flight calls to one expensive dependency. It never queues:
// callers that cannot get a permit fail fast with models.ErrTooBusy.
type Gate struct {
	name    string
	permits int64
	sem     *semaphore.Weighted
}

// NewGate creates a gate with max(1, permits) permits.
func NewGate(name string, permits int) *Gate {
	if permits < 1 {
		permits = 1
	}
	return &Gate{
		name:    name,
		permits: int64(permits),
		sem:     semaphore.NewWeighted(int64(permits)),
	}
}

// TryAcquire takes a permit without blocking. Every true result must be
// matched by exactly one Release.
func (g *Gate) TryAcquire() bool {
	if !g.sem.TryAcquire(1) {
		metrics.RecordRejection(g.name)
		return false
	}
	metrics.GateAcquired(g.name)
	return true
}

// Release returns a permit taken by TryAcquire.
func (g *Gate) Release() {
	g.sem.Release(1)
	metrics.GateReleased(g.name)
}

// Acquire is TryAcquire returning an idempotent release func, safe to defer.
func (g *Gate) Acquire() (release func(), ok bool) {
	if !g.TryAcquire() {
		return func() {}, false
	}
	var once sync.Once
	return func() { once.Do(g.Release) }, true
}

// Do runs fn while holding a permit, releasing it on every exit path including panics.
func (g *Gate) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	release, ok := g.Acquire()
	if !ok {
		return models.ErrTooBusy
	}
	defer release()
	return fn(ctx)
}

// Permits returns the configured permit count.
func (g *Gate) Permits() int {
	return int(g.permits)
}
