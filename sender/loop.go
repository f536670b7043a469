package sender

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/dev-protocol/send-transactions/common/clock"
)

// AttemptFunc builds, signs and broadcasts one transaction. Retryable
// failures are reported as *BroadcastError; anything else ends the loop.
type AttemptFunc func(ctx context.Context, attempt int) (*types.Transaction, error)

type Loop struct {
	policy RetryPolicy
	clock  clock.Clock
}

func NewLoop(policy RetryPolicy, c clock.Clock) *Loop {
	if c == nil {
		c = clock.SystemClock
	}
	return &Loop{policy: policy, clock: c}
}

// Run calls attempt until it succeeds or policy.MaxAttempts attempts were
// made, waiting policy.Interval between attempts. It returns the number of
// attempts made.
func (l *Loop) Run(ctx context.Context, attempt AttemptFunc) (*types.Transaction, int, error) {
	if err := l.policy.Check(); err != nil {
		return nil, 0, err
	}
	var last *BroadcastError
	for n := 1; n <= l.policy.MaxAttempts; n++ {
		if err := ctx.Err(); err != nil {
			return nil, n - 1, err
		}
		tx, err := attempt(ctx, n)
		if err == nil {
			return tx, n, nil
		}
		var broadcastErr *BroadcastError
		if !errors.As(err, &broadcastErr) || !broadcastErr.Retryable {
			return nil, n, err
		}
		last = broadcastErr
		log.Warn("broadcast failed", "attempt", n, "maxAttempts", l.policy.MaxAttempts, "err", broadcastErr.Err)
		if n == l.policy.MaxAttempts {
			break
		}
		if err := l.clock.SleepCtx(ctx, l.policy.Interval); err != nil {
			return nil, n, err
		}
	}
	return nil, l.policy.MaxAttempts, &ExhaustedError{Attempts: l.policy.MaxAttempts, Last: last}
}
