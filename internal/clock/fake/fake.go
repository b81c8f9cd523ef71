package fake

import (
	"context"
	"sync"
	"time"
)

// Clock is a manual clock for tests. Time only moves when Advance or Set are
// called, and every blocked WaitUntil whose instant has been reached is
// released.
type Clock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*waiter
}

type waiter struct {
	until time.Time
	ch    chan struct{}
}

// New returns a fake clock frozen at the given instant.
func New(now time.Time) *Clock {
	return &Clock{now: now}
}

// Now returns the current fake instant.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

// WaitUntil blocks until the fake clock reaches t or the context is cancelled.
func (c *Clock) WaitUntil(ctx context.Context, t time.Time) error {
	c.mu.Lock()
	if !t.After(c.now) {
		c.mu.Unlock()
		return ctx.Err()
	}

	w := &waiter{until: t, ch: make(chan struct{})}
	c.waiters = append(c.waiters, w)
	c.mu.Unlock()

	select {
	case <-w.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Advance moves the clock forward and releases the waiters that are due.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.set(c.now.Add(d))
}

// Set moves the clock to an absolute instant and releases the waiters that are due.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.set(t)
}

// Waiters returns the number of currently blocked WaitUntil calls. Tests use
// it to know when the subject under test has registered its timers.
func (c *Clock) Waiters() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.waiters)
}

func (c *Clock) set(t time.Time) {
	c.now = t

	pending := c.waiters[:0]
	for _, w := range c.waiters {
		if !w.until.After(c.now) {
			close(w.ch)
			continue
		}
		pending = append(pending, w)
	}
	c.waiters = pending
}
