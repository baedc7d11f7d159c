// Package gate bounds the number of requests dispatched concurrently.
// Admission blocks until a slot frees or the caller's context ends, and the
// limit can be resized at runtime without disturbing requests in flight.
package gate

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/13108387302/aigate/pkg/types"
)

// Gate is a resizable concurrency limiter.
type Gate struct {
	mu    sync.RWMutex
	sem   *semaphore.Weighted
	limit int64

	active  atomic.Int64
	waiting [5]atomic.Int64 // indexed by types.Priority, 0 unused
}

// New creates a gate admitting at most limit concurrent requests.
func New(limit int) *Gate {
	if limit <= 0 {
		limit = 1
	}
	return &Gate{
		sem:   semaphore.NewWeighted(int64(limit)),
		limit: int64(limit),
	}
}

// ReleaseFunc returns the slot acquired by Acquire. Safe to call once;
// further calls panic via the underlying semaphore.
type ReleaseFunc func()

// Acquire blocks until a slot is free or ctx is done. The returned release
// func is bound to the semaphore instance that granted the slot, so a
// concurrent Resize never unbalances in-flight requests.
func (g *Gate) Acquire(ctx context.Context, prio types.Priority) (ReleaseFunc, error) {
	idx := waitIndex(prio)
	g.waiting[idx].Add(1)
	defer g.waiting[idx].Add(-1)

	g.mu.RLock()
	sem := g.sem
	g.mu.RUnlock()

	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("admission wait: %w", err)
	}

	g.active.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() {
			g.active.Add(-1)
			sem.Release(1)
		})
	}, nil
}

// TryAcquire grabs a slot without blocking. Returns nil, false when the gate
// is full.
func (g *Gate) TryAcquire() (ReleaseFunc, bool) {
	g.mu.RLock()
	sem := g.sem
	g.mu.RUnlock()

	if !sem.TryAcquire(1) {
		return nil, false
	}

	g.active.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() {
			g.active.Add(-1)
			sem.Release(1)
		})
	}, true
}

// Resize changes the admission limit. Requests already admitted keep their
// slots; waiters on the old semaphore drain as those slots release, while
// new arrivals contend for the new limit.
func (g *Gate) Resize(limit int) {
	if limit <= 0 {
		limit = 1
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if int64(limit) == g.limit {
		return
	}
	g.sem = semaphore.NewWeighted(int64(limit))
	g.limit = int64(limit)
}

// Limit returns the current admission limit.
func (g *Gate) Limit() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return int(g.limit)
}

// Active returns the number of requests currently holding a slot.
func (g *Gate) Active() int64 {
	return g.active.Load()
}

// QueueDepth reports the number of callers waiting for admission, keyed by
// priority name.
func (g *Gate) QueueDepth() map[string]int64 {
	depth := make(map[string]int64, 4)
	for p := types.PriorityLow; p <= types.PriorityUrgent; p++ {
		if n := g.waiting[waitIndex(p)].Load(); n > 0 {
			depth[p.String()] = n
		}
	}
	return depth
}

func waitIndex(p types.Priority) int {
	if p < types.PriorityLow || p > types.PriorityUrgent {
		return int(types.PriorityNormal)
	}
	return int(p)
}
