// Package memory is an in-process store backend for tests and single-node
// development runs.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dev-protocol/send-transactions/common/clock"
	"github.com/dev-protocol/send-transactions/store"
)

type lease struct {
	token   string
	expires time.Time
}

// Backend holds the shared state. Every session opened from it sees the same
// records, the way independent connections see the same redis instance.
type Backend struct {
	mu      sync.Mutex
	clock   clock.Clock
	records map[string]store.Record
	locks   map[string]lease

	writes int
	opened int
	closed int
}

func NewBackend(c clock.Clock) *Backend {
	if c == nil {
		c = clock.SystemClock
	}
	return &Backend{
		clock:   c,
		records: make(map[string]store.Record),
		locks:   make(map[string]lease),
	}
}

func (b *Backend) Open(ctx context.Context) (store.Store, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.opened++
	return &session{backend: b}, nil
}

// Put seeds a record without counting it as a write.
func (b *Backend) Put(key string, record store.Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records[key] = record
}

// Writes is the number of Set calls made through sessions.
func (b *Backend) Writes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes
}

// Sessions reports how many sessions were opened and closed.
func (b *Backend) Sessions() (opened, closed int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opened, b.closed
}

type session struct {
	backend *Backend
	closed  bool
}

func (s *session) Get(ctx context.Context, key string) (store.Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return store.Record{}, false, err
	}
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	r, ok := s.backend.records[key]
	return r, ok, nil
}

func (s *session) Set(ctx context.Context, key string, record store.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	s.backend.records[key] = record
	s.backend.writes++
	return nil
}

func (s *session) Lock(ctx context.Context, key string, ttl time.Duration) (store.ReleaseFunc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := s.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.clock.Now()
	if l, ok := b.locks[key]; ok && now.Before(l.expires) {
		return nil, store.ErrLocked
	}
	token := uuid.NewString()
	b.locks[key] = lease{token: token, expires: now.Add(ttl)}
	return func(ctx context.Context) error {
		b.mu.Lock()
		defer b.mu.Unlock()
		if l, ok := b.locks[key]; ok && l.token == token {
			delete(b.locks, key)
		}
		return nil
	}, nil
}

func (s *session) Close() error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.backend.closed++
	}
	return nil
}

var (
	_ store.Opener = (*Backend)(nil)
	_ store.Store  = (*session)(nil)
	_ store.Locker = (*session)(nil)
)
