// Package store defines the shared key-value store the submission engine
// uses for idempotency records and admission locks.
package store

import (
	"context"
	"errors"
	"time"
)

// KeyPrefix namespaces idempotency records. The full key is
// transaction-created-time::<to>:<data>:<requestId>.
const KeyPrefix = "transaction-created-time::"

var (
	// ErrLocked is returned by Locker.Lock when another holder owns the key.
	ErrLocked = errors.New("key is locked by another holder")
)

// Record is the idempotency entry written after a transaction was accepted
// by the network.
type Record struct {
	TimestampMillis int64
}

// Store is one session against the shared store. Sessions are opened per
// invocation and must be closed on every exit path.
type Store interface {
	// Get returns the record stored under key, and false when there is none.
	Get(ctx context.Context, key string) (Record, bool, error)

	// Set writes the record under key, replacing any previous value.
	Set(ctx context.Context, key string, record Record) error

	Close() error
}

// ReleaseFunc gives a lock back. Releasing a lock that already expired is
// not an error.
type ReleaseFunc func(ctx context.Context) error

// Locker grants short-lived exclusive ownership of a key so that check and
// record can be done without another invocation slipping in between.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (ReleaseFunc, error)
}

// Opener opens a store session.
type Opener interface {
	Open(ctx context.Context) (Store, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context) (Store, error)

func (f OpenerFunc) Open(ctx context.Context) (Store, error) {
	return f(ctx)
}
