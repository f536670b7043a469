package clock

import (
	"context"
	"sync"
	"time"
)

type timer struct {
	ch      chan time.Time
	due     time.Time
	stopped bool
	sync.Mutex
}

func (t *timer) Ch() <-chan time.Time {
	return t.ch
}

func (t *timer) Stop() bool {
	t.Lock()
	defer t.Unlock()
	r := !t.stopped
	t.stopped = true
	return r
}

func (t *timer) fireIfDue(now time.Time) bool {
	t.Lock()
	defer t.Unlock()
	if t.stopped {
		return true
	}
	if t.due.After(now) {
		return false
	}
	t.ch <- now
	t.stopped = true
	return true
}

// DeterministicClock only moves when told to. SleepCtx advances the clock by the
// requested duration and returns at once, so retry delays can be asserted without
// real waiting.
type DeterministicClock struct {
	now     time.Time
	slept   time.Duration
	sleeps  int
	pending []*timer
	lock    sync.Mutex
}

func NewDeterministicClock(now time.Time) *DeterministicClock {
	return &DeterministicClock{now: now}
}

func (d *DeterministicClock) Now() time.Time {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.now
}

func (d *DeterministicClock) Since(t time.Time) time.Duration {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.now.Sub(t)
}

func (d *DeterministicClock) NewTimer(dur time.Duration) Timer {
	d.lock.Lock()
	defer d.lock.Unlock()
	t := &timer{ch: make(chan time.Time, 1), due: d.now.Add(dur)}
	if !t.fireIfDue(d.now) {
		d.pending = append(d.pending, t)
	}
	return t
}

func (d *DeterministicClock) SleepCtx(ctx context.Context, dur time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.lock.Lock()
	d.slept += dur
	d.sleeps++
	d.lock.Unlock()
	d.AdvanceTime(dur)
	return nil
}

// AdvanceTime moves the clock forward and fires every timer that became due.
func (d *DeterministicClock) AdvanceTime(dur time.Duration) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.now = d.now.Add(dur)
	var remaining []*timer
	for _, t := range d.pending {
		if !t.fireIfDue(d.now) {
			remaining = append(remaining, t)
		}
	}
	d.pending = remaining
}

// Slept reports the total duration and number of SleepCtx calls.
func (d *DeterministicClock) Slept() (time.Duration, int) {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.slept, d.sleeps
}

var _ Clock = (*DeterministicClock)(nil)
