// Package lifecycle tracks the host's "about to terminate" signal.
//
// A Guard makes a single one-way transition from normal to expiring. Work loops poll
// Expiring (or select on Done) before starting a new unit of work; nothing already in flight
// is canceled. This keeps completion time bounded after the signal without throwing away a
// response that is about to arrive.
package lifecycle

import (
	"sync"
	"time"
)

// Guard is safe for concurrent use. The zero value is not usable; use New.
type Guard struct {
	once      sync.Once
	done      chan struct{}
	now       func() time.Time
	mu        sync.Mutex
	expiredAt time.Time
	timer     *time.Timer
}

// Option configures Guard.
type Option func(*Guard)

// WithClock overrides the time source for ExpiredAt.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) {
		if now != nil {
			g.now = now
		}
	}
}

// New returns a guard in the normal state.
func New(opts ...Option) *Guard {
	g := &Guard{
		done: make(chan struct{}),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Expire moves the guard to the expiring state. It reports whether this call performed the
// transition; later calls are no-ops.
func (g *Guard) Expire() bool {
	fired := false
	g.once.Do(func() {
		g.mu.Lock()
		g.expiredAt = g.now()
		if g.timer != nil {
			g.timer.Stop()
		}
		g.mu.Unlock()
		close(g.done)
		fired = true
	})
	return fired
}

// ExpireAfter schedules Expire after d, modelling a host-imposed time budget.
// Calling it again replaces the previous schedule.
func (g *Guard) ExpireAfter(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.expiredAt.IsZero() {
		return
	}
	if g.timer != nil {
		g.timer.Stop()
	}
	g.timer = time.AfterFunc(d, func() { g.Expire() })
}

// Expiring reports whether the termination signal has fired.
func (g *Guard) Expiring() bool {
	select {
	case <-g.done:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when the guard expires.
func (g *Guard) Done() <-chan struct{} {
	return g.done
}

// ExpiredAt returns when the guard expired, or the zero time if it has not.
func (g *Guard) ExpiredAt() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.expiredAt
}

// Stop cancels a pending ExpireAfter without expiring the guard.
func (g *Guard) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}
