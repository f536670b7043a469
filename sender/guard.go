package sender

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"

	"github.com/dev-protocol/send-transactions/common/clock"
	"github.com/dev-protocol/send-transactions/config"
	"github.com/dev-protocol/send-transactions/store"
)

// DedupKey identifies a logical request by destination, call data and the
// optional caller request id.
func DedupKey(to common.Address, data []byte, requestID string) string {
	return store.KeyPrefix + to.Hex() + ":" + hexutil.Encode(data) + ":" + requestID
}

// Admission is a granted check. Release must be called once the invocation
// is over; it is a no-op when no lock was taken.
type Admission struct {
	Key string
	// Elapsed since the previous accepted submission, zero when there was none.
	Elapsed time.Duration
	release store.ReleaseFunc
}

func (a *Admission) Release(ctx context.Context) {
	if a == nil || a.release == nil {
		return
	}
	if err := a.release(ctx); err != nil {
		log.Warn("failed to release admission lock", "key", a.Key, "err", err)
	}
	a.release = nil
}

type Guard struct {
	cooldown time.Duration
	lock     bool
	lockTTL  time.Duration
	clock    clock.Clock
}

func NewGuard(cfg config.IdempotencyConfig, c clock.Clock) *Guard {
	if c == nil {
		c = clock.SystemClock
	}
	return &Guard{cooldown: cfg.Cooldown, lock: cfg.Lock, lockTTL: cfg.LockTTL, clock: c}
}

// CheckAndAdmit admits key when it has no record or its record is older
// than the cooldown. With locking enabled the key stays locked until the
// admission is released.
func (g *Guard) CheckAndAdmit(ctx context.Context, s store.Store, key string) (*Admission, error) {
	admission := &Admission{Key: key}
	if g.lock {
		if locker, ok := s.(store.Locker); ok {
			release, err := locker.Lock(ctx, key, g.lockTTL)
			if errors.Is(err, store.ErrLocked) {
				return nil, &DuplicateError{Key: key, InFlight: true}
			}
			if err != nil {
				return nil, storeError("lock "+key, err)
			}
			admission.release = release
		} else {
			log.Warn("store cannot lock keys, duplicate check is advisory", "key", key)
		}
	}

	record, found, err := s.Get(ctx, key)
	if err != nil {
		admission.Release(context.WithoutCancel(ctx))
		return nil, storeError("get "+key, err)
	}
	if !found {
		return admission, nil
	}
	elapsed := time.Duration(clock.NowMillis(g.clock)-record.TimestampMillis) * time.Millisecond
	if elapsed <= g.cooldown {
		admission.Release(context.WithoutCancel(ctx))
		return nil, &DuplicateError{Key: key, Elapsed: elapsed}
	}
	admission.Elapsed = elapsed
	return admission, nil
}

// Record marks key as accepted at timestampMillis.
func (g *Guard) Record(ctx context.Context, s store.Store, key string, timestampMillis int64) error {
	if err := s.Set(ctx, key, store.Record{TimestampMillis: timestampMillis}); err != nil {
		return storeError("set "+key, err)
	}
	return nil
}
