package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNowReturnCurrentTime(t *testing.T) {
	now := time.UnixMilli(23829382)
	clock := NewDeterministicClock(now)
	require.Equal(t, now, clock.Now())
	require.Equal(t, int64(23829382), NowMillis(clock))
}

func TestAdvanceTime(t *testing.T) {
	start := time.UnixMilli(100)
	clock := NewDeterministicClock(start)
	clock.AdvanceTime(500 * time.Millisecond)
	require.Equal(t, start.Add(500*time.Millisecond), clock.Now())
	require.Equal(t, 500*time.Millisecond, clock.Since(start))
}

func TestSleepCtxAdvancesTime(t *testing.T) {
	start := time.UnixMilli(1_000)
	clock := NewDeterministicClock(start)

	require.NoError(t, clock.SleepCtx(context.Background(), 350*time.Millisecond))
	require.NoError(t, clock.SleepCtx(context.Background(), 350*time.Millisecond))

	slept, n := clock.Slept()
	require.Equal(t, 700*time.Millisecond, slept)
	require.Equal(t, 2, n)
	require.Equal(t, start.Add(700*time.Millisecond), clock.Now())
}

func TestSleepCtxCanceled(t *testing.T) {
	clock := NewDeterministicClock(time.UnixMilli(0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, clock.SleepCtx(ctx, time.Second), context.Canceled)
	_, n := clock.Slept()
	require.Zero(t, n)
}

func TestTimerFiresOnAdvance(t *testing.T) {
	clock := NewDeterministicClock(time.UnixMilli(0))
	timer := clock.NewTimer(time.Second)

	clock.AdvanceTime(500 * time.Millisecond)
	select {
	case <-timer.Ch():
		t.Fatal("timer fired early")
	default:
	}

	clock.AdvanceTime(500 * time.Millisecond)
	select {
	case fired := <-timer.Ch():
		require.Equal(t, time.UnixMilli(1000), fired)
	default:
		t.Fatal("timer did not fire")
	}
	require.False(t, timer.Stop())
}
