package clock

import (
	"context"
	"time"
)

// Clock abstracts time so checkpoint scheduling can be tested deterministically.
type Clock interface {
	// Now returns the current instant.
	Now() time.Time
	// WaitUntil blocks until t is reached or the context is cancelled. It
	// returns immediately when t is already in the past.
	WaitUntil(ctx context.Context, t time.Time) error
}

// New returns a Clock backed by real time.
func New() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (c realClock) WaitUntil(ctx context.Context, t time.Time) error {
	d := time.Until(t)
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
