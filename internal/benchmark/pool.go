package benchmark

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// QueryPool tracks in-flight warehouse queries so they can be cancelled as a
// group, e.g. when the CLI is interrupted mid-run. The pool is process-local.
type QueryPool struct {
	mu      sync.Mutex
	active  map[string]context.CancelFunc
	maxSize int
}

// NewQueryPool creates a pool bounded at maxSize concurrent queries. Zero or
// negative means unbounded.
func NewQueryPool(maxSize int) *QueryPool {
	return &QueryPool{
		active:  map[string]context.CancelFunc{},
		maxSize: maxSize,
	}
}

// Register derives a cancellable context for one query and tracks it under a
// fresh id. The returned release function must be called when the query
// finishes. When the pool is full the oldest semantics do not apply; the
// caller's context is returned untracked.
func (p *QueryPool) Register(ctx context.Context) (context.Context, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.maxSize > 0 && len(p.active) >= p.maxSize {
		return ctx, func() {}
	}

	id := uuid.New().String()
	qctx, cancel := context.WithCancel(ctx)
	p.active[id] = cancel

	return qctx, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if c, ok := p.active[id]; ok {
			c()
			delete(p.active, id)
		}
	}
}

// Len reports the number of tracked queries.
func (p *QueryPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

// CancelAll cancels every tracked query and empties the pool.
func (p *QueryPool) CancelAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, cancel := range p.active {
		cancel()
		delete(p.active, id)
	}
}
