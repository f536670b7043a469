package clock

import (
	"context"
	"time"
)

// Clock represents time in a way that can be provided by varying implements.
// Methods are designed to be direct replacements for methods in the time package.
type Clock interface {
	// Now provides the current local time. Equivalent to time.Now()
	Now() time.Time

	// Since returns the time elapsed since t. It is shorthand for time.Now().Sub(t).
	Since(t time.Time) time.Duration

	// NewTimer creates a timer that fires once after d.
	NewTimer(d time.Duration) Timer

	// SleepCtx blocks until d has elapsed or ctx is done, whichever comes first.
	SleepCtx(ctx context.Context, d time.Duration) error
}

type Timer interface {
	Ch() <-chan time.Time
	Stop() bool
}

var SystemClock Clock = systemClock{}

type systemClock struct {
}

func (s systemClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

func (s systemClock) Now() time.Time {
	return time.Now()
}

func (s systemClock) NewTimer(d time.Duration) Timer {
	return &SystemTimer{time.NewTimer(d)}
}

type SystemTimer struct {
	*time.Timer
}

func (t *SystemTimer) Ch() <-chan time.Time {
	return t.C
}

func (s systemClock) SleepCtx(ctx context.Context, d time.Duration) error {
	timer := s.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.Ch():
		return nil
	}
}

// NowMillis is the unix millisecond timestamp of c.Now().
func NowMillis(c Clock) int64 {
	return c.Now().UnixMilli()
}
