package sender

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
)

var (
	ErrUnsupportedChain        = errors.New("unsupported chain")
	ErrFeeUnavailable          = errors.New("fee data unavailable")
	ErrMethodNotCallable       = errors.New("method not callable")
	ErrDuplicateWithinCooldown = errors.New("duplicate request within cooldown")
	ErrDuplicateInFlight       = errors.New("duplicate request in flight")
	ErrStoreUnavailable        = errors.New("store unavailable")
	ErrBroadcastFailure        = errors.New("broadcast failure")
	ErrExhaustedRetries        = errors.New("retries exhausted")
)

// DuplicateError rejects a request whose dedup key was accepted less than a
// cooldown ago, or whose key is held by a concurrent invocation.
type DuplicateError struct {
	Key      string
	Elapsed  time.Duration
	InFlight bool
}

func (e *DuplicateError) Error() string {
	if e.InFlight {
		return fmt.Sprintf("%s: %s", ErrDuplicateInFlight, e.Key)
	}
	return fmt.Sprintf("invalid execution interval: %dms", e.Elapsed.Milliseconds())
}

func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicateWithinCooldown || (e.InFlight && target == ErrDuplicateInFlight)
}

// BroadcastError is a failed send of a signed transaction. Only retryable
// broadcast errors are attempted again.
type BroadcastError struct {
	Attempt   int
	Retryable bool
	Err       error
}

func (e *BroadcastError) Error() string {
	return fmt.Sprintf("broadcast attempt %d failed: %v", e.Attempt, e.Err)
}

func (e *BroadcastError) Is(target error) bool {
	return target == ErrBroadcastFailure
}

func (e *BroadcastError) Unwrap() error {
	return e.Err
}

// ExhaustedError ends the loop after the attempt cap and carries the last
// broadcast error.
type ExhaustedError struct {
	Attempts int
	Last     *BroadcastError
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s after %d attempts: %v", ErrExhaustedRetries, e.Attempts, e.Last)
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrExhaustedRetries
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// RecordingError means the transaction reached the network but its
// idempotency record could not be written. Tx is still valid.
type RecordingError struct {
	Tx  *types.Transaction
	Err error
}

func (e *RecordingError) Error() string {
	return fmt.Sprintf("transaction %s sent but not recorded: %v", e.Tx.Hash(), e.Err)
}

func (e *RecordingError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

func (e *RecordingError) Unwrap() error {
	return e.Err
}

// Node rejections that no amount of waiting fixes.
var permanentRejections = []string{
	"insufficient funds",
	"invalid sender",
	"transaction type not supported",
	"oversized data",
	"exceeds block gas limit",
	"max priority fee per gas higher than max fee per gas",
	"intrinsic gas too low",
}

func classifyBroadcast(attempt int, err error) *BroadcastError {
	msg := strings.ToLower(err.Error())
	retryable := true
	for _, fragment := range permanentRejections {
		if strings.Contains(msg, fragment) {
			retryable = false
			break
		}
	}
	return &BroadcastError{Attempt: attempt, Retryable: retryable, Err: err}
}

// isAlreadyKnown reports that the node already holds this exact signed
// transaction in its pool.
func isAlreadyKnown(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "already known")
}

func storeError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}
