package opio

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

var DefaultInterruptSignals = []os.Signal{
	os.Interrupt,
	os.Kill,
	syscall.SIGTERM,
	syscall.SIGQUIT,
}

// BlockOnInterruptsContext blocks until a signal arrives or ctx is done.
func BlockOnInterruptsContext(ctx context.Context, signals ...os.Signal) {
	if len(signals) == 0 {
		signals = DefaultInterruptSignals
	}
	interruptChannel := make(chan os.Signal, 1)
	signal.Notify(interruptChannel, signals...)
	defer signal.Stop(interruptChannel)
	select {
	case <-interruptChannel:
	case <-ctx.Done():
	}
}

type interruptContextKeyType struct{}

var blockerContextKey = interruptContextKeyType{}

type BlockFn func(ctx context.Context)

// WithBlocker overrides how interrupts are awaited, mainly so tests can
// stop a lifecycle without sending real signals.
func WithBlocker(ctx context.Context, fn BlockFn) context.Context {
	return context.WithValue(ctx, blockerContextKey, fn)
}

func BlockerFromContext(ctx context.Context) BlockFn {
	v := ctx.Value(blockerContextKey)
	if v == nil {
		return nil
	}
	return v.(BlockFn)
}

// CancelOnInterrupt returns a context that is canceled on the first interrupt.
func CancelOnInterrupt(ctx context.Context) context.Context {
	inner, cancel := context.WithCancel(ctx)

	blockOnInterrupt := BlockerFromContext(ctx)
	if blockOnInterrupt == nil {
		blockOnInterrupt = func(ctx context.Context) {
			BlockOnInterruptsContext(ctx)
		}
	}

	go func() {
		blockOnInterrupt(inner)
		cancel()
	}()
	return inner
}
