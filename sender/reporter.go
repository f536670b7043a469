package sender

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/log"

	"github.com/dev-protocol/send-transactions/common/clock"
	"github.com/dev-protocol/send-transactions/store"
)

// Journal keeps a history of outcomes next to the idempotency records.
type Journal interface {
	Append(ctx context.Context, key string, outcome Outcome) error
}

// Journals fans every outcome out to each journal in turn.
type Journals []Journal

func (js Journals) Append(ctx context.Context, key string, outcome Outcome) error {
	var result error
	for _, j := range js {
		result = errors.Join(result, j.Append(ctx, key, outcome))
	}
	return result
}

type Reporter struct {
	guard   *Guard
	clock   clock.Clock
	journal Journal
}

func NewReporter(guard *Guard, c clock.Clock, journal Journal) *Reporter {
	if c == nil {
		c = clock.SystemClock
	}
	return &Reporter{guard: guard, clock: c, journal: journal}
}

// Finalize writes the idempotency record for a successful outcome and
// nothing for a failed one. A failed write returns *RecordingError, which
// the journals also see as the outcome's reason.
func (r *Reporter) Finalize(ctx context.Context, s store.Store, key string, outcome Outcome) error {
	var err error
	if outcome.Success() {
		if recErr := r.guard.Record(ctx, s, key, clock.NowMillis(r.clock)); recErr != nil {
			log.Error("transaction sent but idempotency record not written", "key", key, "hash", outcome.Tx.Hash(), "err", recErr)
			err = &RecordingError{Tx: outcome.Tx, Err: recErr}
			outcome.Reason = err
		}
	}
	if r.journal != nil {
		if jErr := r.journal.Append(context.WithoutCancel(ctx), key, outcome); jErr != nil {
			log.Warn("failed to journal submission", "key", key, "err", jErr)
		}
	}
	return err
}
