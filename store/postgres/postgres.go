// Package postgres stores idempotency records and admission locks in the
// relay database.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dev-protocol/send-transactions/common/clock"
	"github.com/dev-protocol/send-transactions/database"
	"github.com/dev-protocol/send-transactions/store"
)

// Opener hands out sessions over one shared *database.DB. The pool outlives
// the sessions, so closing a session does not close the database.
type Opener struct {
	db    *database.DB
	clock clock.Clock
}

func NewOpener(db *database.DB, c clock.Clock) *Opener {
	if c == nil {
		c = clock.SystemClock
	}
	return &Opener{db: db, clock: c}
}

func (o *Opener) Open(ctx context.Context) (store.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Store{idempotency: o.db.Idempotency, locks: o.db.Locks, clock: o.clock}, nil
}

type Store struct {
	idempotency database.IdempotencyDB
	locks       database.LocksDB
	clock       clock.Clock
}

func NewStore(idempotency database.IdempotencyDB, locks database.LocksDB, c clock.Clock) *Store {
	if c == nil {
		c = clock.SystemClock
	}
	return &Store{idempotency: idempotency, locks: locks, clock: c}
}

func (s *Store) Get(ctx context.Context, key string) (store.Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return store.Record{}, false, err
	}
	record, err := s.idempotency.QueryRecord(key)
	if err != nil {
		return store.Record{}, false, fmt.Errorf("query idempotency record: %w", err)
	}
	if record == nil {
		return store.Record{}, false, nil
	}
	return store.Record{TimestampMillis: record.TimestampMillis}, true, nil
}

func (s *Store) Set(ctx context.Context, key string, record store.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.idempotency.StoreRecord(&database.IdempotencyRecord{
		DedupKey:        key,
		TimestampMillis: record.TimestampMillis,
	})
	if err != nil {
		return fmt.Errorf("store idempotency record: %w", err)
	}
	return nil
}

func (s *Store) Lock(ctx context.Context, key string, ttl time.Duration) (store.ReleaseFunc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	token := uuid.NewString()
	acquired, err := s.locks.AcquireLock(&database.RelayLock{
		LockKey:   key,
		Token:     token,
		ExpiresAt: now.Add(ttl),
	}, now)
	if err != nil {
		return nil, fmt.Errorf("acquire relay lock: %w", err)
	}
	if !acquired {
		return nil, store.ErrLocked
	}
	return func(ctx context.Context) error {
		return s.locks.ReleaseLock(key, token)
	}, nil
}

func (s *Store) Close() error {
	return nil
}

var (
	_ store.Opener = (*Opener)(nil)
	_ store.Store  = (*Store)(nil)
	_ store.Locker = (*Store)(nil)
)
