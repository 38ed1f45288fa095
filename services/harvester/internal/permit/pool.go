package permit

import "context"

// Pool is a fixed-capacity counting permit pool bounding concurrent
// upstream calls. Acquire blocks until a permit is free or the context
// ends; the returned release must be called exactly once.
type Pool struct {
	sem chan struct{}
}

// NewPool creates a pool with capacity max. max must be >= 1.
func NewPool(max int) *Pool {
	if max < 1 {
		max = 1
	}
	return &Pool{sem: make(chan struct{}, max)}
}

// Acquire obtains one permit. ok is false when the context ended before a
// permit became available, in which case release is nil.
func (p *Pool) Acquire(ctx context.Context) (release func(), ok bool) {
	select {
	case p.sem <- struct{}{}:
		return func() { <-p.sem }, true
	case <-ctx.Done():
		return nil, false
	}
}
