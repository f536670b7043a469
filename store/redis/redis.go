// Package redis keeps idempotency records and admission locks in Redis.
// Records are plain millisecond timestamp strings so they stay readable by
// other tools sharing the keyspace.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dev-protocol/send-transactions/store"
)

const lockPrefix = "lock:"

// releaseScript deletes the lock only if it still carries our token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Config struct {
	URL      string
	Username string
	Password string
}

// Options turns the config into client options. URL may be a redis:// URL or
// a bare host:port.
func (c Config) Options() (*goredis.Options, error) {
	var opts *goredis.Options
	if c.URL == "" {
		return nil, fmt.Errorf("redis url cannot be empty")
	}
	parsed, err := goredis.ParseURL(c.URL)
	if err != nil {
		opts = &goredis.Options{Addr: c.URL}
	} else {
		opts = parsed
	}
	if c.Username != "" {
		opts.Username = c.Username
	}
	if c.Password != "" {
		opts.Password = c.Password
	}
	return opts, nil
}

// Opener dials a fresh connection for every session and quits it on Close.
type Opener struct {
	opts *goredis.Options
}

func NewOpener(cfg Config) (*Opener, error) {
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	return &Opener{opts: opts}, nil
}

func (o *Opener) Open(ctx context.Context) (store.Store, error) {
	client := goredis.NewClient(o.opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", o.opts.Addr, err)
	}
	return &Store{client: client, owned: true}, nil
}

// SharedOpener hands out sessions over one long-lived client. Closing a
// session leaves the client open.
type SharedOpener struct {
	client goredis.UniversalClient
}

func NewSharedOpener(client goredis.UniversalClient) *SharedOpener {
	return &SharedOpener{client: client}
}

func (o *SharedOpener) Open(ctx context.Context) (store.Store, error) {
	return &Store{client: o.client}, nil
}

type Store struct {
	client goredis.UniversalClient
	owned  bool
}

func (s *Store) Get(ctx context.Context, key string) (store.Record, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == goredis.Nil {
		return store.Record{}, false, nil
	}
	if err != nil {
		return store.Record{}, false, err
	}
	ts, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		// An unreadable record must not admit a resend.
		log.Warn("unparsable idempotency record", "key", key, "value", val, "err", err)
		return store.Record{}, false, fmt.Errorf("unparsable idempotency record %q: %w", key, err)
	}
	return store.Record{TimestampMillis: ts}, true, nil
}

func (s *Store) Set(ctx context.Context, key string, record store.Record) error {
	return s.client.Set(ctx, key, strconv.FormatInt(record.TimestampMillis, 10), 0).Err()
}

func (s *Store) Lock(ctx context.Context, key string, ttl time.Duration) (store.ReleaseFunc, error) {
	token := uuid.NewString()
	ok, err := s.client.SetNX(ctx, lockPrefix+key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, store.ErrLocked
	}
	return func(ctx context.Context) error {
		return releaseScript.Run(ctx, s.client, []string{lockPrefix + key}, token).Err()
	}, nil
}

func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}

var (
	_ store.Opener = (*Opener)(nil)
	_ store.Opener = (*SharedOpener)(nil)
	_ store.Store  = (*Store)(nil)
	_ store.Locker = (*Store)(nil)
)
