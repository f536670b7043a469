package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dev-protocol/send-transactions/common/clock"
	"github.com/dev-protocol/send-transactions/database"
	"github.com/dev-protocol/send-transactions/store"
)

type fakeIdempotencyDB struct {
	mu      sync.Mutex
	records map[string]int64
}

func (f *fakeIdempotencyDB) QueryRecord(key string) (*database.IdempotencyRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ts, ok := f.records[key]
	if !ok {
		return nil, nil
	}
	return &database.IdempotencyRecord{DedupKey: key, TimestampMillis: ts}, nil
}

func (f *fakeIdempotencyDB) StoreRecord(r *database.IdempotencyRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[r.DedupKey] = r.TimestampMillis
	return nil
}

type fakeLocksDB struct {
	mu    sync.Mutex
	locks map[string]database.RelayLock
}

func (f *fakeLocksDB) AcquireLock(lock *database.RelayLock, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if held, ok := f.locks[lock.LockKey]; ok && held.ExpiresAt.After(now) {
		return false, nil
	}
	f.locks[lock.LockKey] = *lock
	return true, nil
}

func (f *fakeLocksDB) ReleaseLock(key, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if held, ok := f.locks[key]; ok && held.Token == token {
		delete(f.locks, key)
	}
	return nil
}

func newTestStore(c clock.Clock) *Store {
	return NewStore(
		&fakeIdempotencyDB{records: make(map[string]int64)},
		&fakeLocksDB{locks: make(map[string]database.RelayLock)},
		c,
	)
}

func TestGetSet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(nil)

	_, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, s.Set(ctx, "k", store.Record{TimestampMillis: 42}))
	record, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, int64(42), record.TimestampMillis)
}

func TestLockExclusiveUntilExpiry(t *testing.T) {
	ctx := context.Background()
	c := clock.NewDeterministicClock(time.UnixMilli(0))
	s := newTestStore(c)

	release, err := s.Lock(ctx, "k", time.Minute)
	require.NoError(t, err)

	_, err = s.Lock(ctx, "k", time.Minute)
	require.ErrorIs(t, err, store.ErrLocked)

	c.AdvanceTime(time.Minute)
	releaseNext, err := s.Lock(ctx, "k", time.Minute)
	require.NoError(t, err)

	// The first holder lost the lease; its release must not free the new holder.
	require.NoError(t, release(ctx))
	_, err = s.Lock(ctx, "k", time.Minute)
	require.ErrorIs(t, err, store.ErrLocked)

	require.NoError(t, releaseNext(ctx))
	_, err = s.Lock(ctx, "k", time.Minute)
	require.NoError(t, err)
}

func TestDatabaseRoundTrip(t *testing.T) {
	db := database.SetupDb(t)
	ctx := context.Background()
	s := NewStore(db.Idempotency, db.Locks, nil)

	key := store.KeyPrefix + "0x0000000000000000000000000000000000000001:0x:" + t.Name()
	require.NoError(t, s.Set(ctx, key, store.Record{TimestampMillis: 1}))
	require.NoError(t, s.Set(ctx, key, store.Record{TimestampMillis: 2}))
	record, found, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, int64(2), record.TimestampMillis)

	release, err := s.Lock(ctx, key, time.Minute)
	require.NoError(t, err)
	_, err = s.Lock(ctx, key, time.Minute)
	require.ErrorIs(t, err, store.ErrLocked)
	require.NoError(t, release(ctx))
}
