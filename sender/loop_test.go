package sender

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/dev-protocol/send-transactions/common/clock"
)

var loopTx = types.NewTx(&types.DynamicFeeTx{ChainID: big.NewInt(137), Nonce: 1})

// failingAttempts fails the first k calls with a retryable broadcast error.
func failingAttempts(k int, calls *int) AttemptFunc {
	return func(ctx context.Context, attempt int) (*types.Transaction, error) {
		*calls++
		if attempt <= k {
			return nil, classifyBroadcast(attempt, errRPC)
		}
		return loopTx, nil
	}
}

func TestLoopSucceedsAfterFailures(t *testing.T) {
	policy := DefaultRetryPolicy
	for k := 0; k < policy.MaxAttempts; k++ {
		clk := clock.NewDeterministicClock(time.UnixMilli(0))
		calls := 0

		tx, attempts, err := NewLoop(policy, clk).Run(context.Background(), failingAttempts(k, &calls))
		require.NoError(t, err)
		require.Equal(t, loopTx, tx)
		require.Equal(t, k+1, attempts)
		require.Equal(t, k+1, calls)

		slept, sleeps := clk.Slept()
		require.Equal(t, time.Duration(k)*policy.Interval, slept)
		require.Equal(t, k, sleeps)
	}
}

func TestLoopExhausts(t *testing.T) {
	clk := clock.NewDeterministicClock(time.UnixMilli(0))
	calls := 0

	tx, attempts, err := NewLoop(DefaultRetryPolicy, clk).Run(context.Background(), failingAttempts(100, &calls))
	require.Nil(t, tx)
	require.Equal(t, 5, attempts)
	require.Equal(t, 5, calls)
	require.ErrorIs(t, err, ErrExhaustedRetries)
	require.ErrorIs(t, err, ErrBroadcastFailure)
	require.ErrorIs(t, err, errRPC)

	var exhausted *ExhaustedError
	require.True(t, errors.As(err, &exhausted))
	require.Equal(t, 5, exhausted.Last.Attempt)

	// No wait after the final attempt.
	slept, sleeps := clk.Slept()
	require.Equal(t, 4*350*time.Millisecond, slept)
	require.Equal(t, 4, sleeps)
}

func TestLoopCustomPolicy(t *testing.T) {
	clk := clock.NewDeterministicClock(time.UnixMilli(0))
	calls := 0
	policy := RetryPolicy{MaxAttempts: 2, Interval: time.Second}

	_, attempts, err := NewLoop(policy, clk).Run(context.Background(), failingAttempts(100, &calls))
	require.ErrorIs(t, err, ErrExhaustedRetries)
	require.Equal(t, 2, attempts)
	slept, _ := clk.Slept()
	require.Equal(t, time.Second, slept)
}

func TestLoopStopsOnFatalError(t *testing.T) {
	fatal := []error{
		ErrMethodNotCallable,
		ErrFeeUnavailable,
		classifyBroadcast(1, errors.New("insufficient funds for gas * price + value")),
	}
	for _, fatalErr := range fatal {
		clk := clock.NewDeterministicClock(time.UnixMilli(0))
		calls := 0
		_, attempts, err := NewLoop(DefaultRetryPolicy, clk).Run(context.Background(), func(ctx context.Context, attempt int) (*types.Transaction, error) {
			calls++
			return nil, fatalErr
		})
		require.ErrorIs(t, err, fatalErr)
		require.NotErrorIs(t, err, ErrExhaustedRetries)
		require.Equal(t, 1, attempts)
		require.Equal(t, 1, calls)
		_, sleeps := clk.Slept()
		require.Zero(t, sleeps)
	}
}

func TestLoopCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, _, err := NewLoop(DefaultRetryPolicy, clock.NewDeterministicClock(time.UnixMilli(0))).Run(ctx,
		func(ctx context.Context, attempt int) (*types.Transaction, error) {
			calls++
			cancel()
			return nil, classifyBroadcast(attempt, errRPC)
		})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

func TestLoopRejectsInvalidPolicy(t *testing.T) {
	_, _, err := NewLoop(RetryPolicy{MaxAttempts: 0}, nil).Run(context.Background(), failingAttempts(0, new(int)))
	require.Error(t, err)
}

func TestClassifyBroadcast(t *testing.T) {
	cases := map[string]bool{
		"connection reset by peer":                             true,
		"nonce too low":                                        true,
		"replacement transaction underpriced":                  true,
		"transaction underpriced":                              true,
		"insufficient funds for gas * price + value":           false,
		"invalid sender":                                       false,
		"transaction type not supported":                       false,
		"oversized data":                                       false,
		"exceeds block gas limit":                              false,
		"max priority fee per gas higher than max fee per gas": false,
	}
	for msg, retryable := range cases {
		err := classifyBroadcast(3, errors.New(msg))
		require.Equal(t, retryable, err.Retryable, msg)
		require.Equal(t, 3, err.Attempt)
		require.ErrorIs(t, err, ErrBroadcastFailure)
	}
	require.True(t, isAlreadyKnown(errors.New("already known")))
	require.False(t, isAlreadyKnown(errRPC))
}
