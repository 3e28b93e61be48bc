package catalog

import (
	"context"
	"sync"
	"time"
)

// Pacer enforces a minimum delay between sequential calls issued by a caller
// that makes several requests in a row against the same upstream. It is a
// cooperative rate limit, independent of the retry backoff: hammering the
// catalog with back-to-back detail fetches is what trips bot detection in
// the first place.
type Pacer struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
}

// NewPacer creates a Pacer with the given minimum spacing. A zero or
// negative interval disables pacing.
func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{interval: interval}
}

// Wait blocks until the minimum spacing since the previous call has elapsed,
// or the context is cancelled.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.interval <= 0 {
		return nil
	}

	p.mu.Lock()
	now := time.Now()
	wait := p.next.Sub(now)
	if wait < 0 {
		wait = 0
	}
	p.next = now.Add(wait + p.interval)
	p.mu.Unlock()

	if wait == 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}
