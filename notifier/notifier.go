package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/dev-protocol/send-transactions/common/clock"
	"github.com/dev-protocol/send-transactions/common/retry"
	"github.com/dev-protocol/send-transactions/common/tasks"
	"github.com/dev-protocol/send-transactions/config"
	"github.com/dev-protocol/send-transactions/sender"
)

const (
	queueSize     = 1024
	notifyRetries = 3
)

var ErrQueueFull = errors.New("notify queue is full")

// Notifier forwards send outcomes to a callback URL. Outcomes are queued by
// Append and posted in batches on every tick, and once more on Stop.
type Notifier struct {
	client   *NotifyClient
	clock    clock.Clock
	strategy retry.Strategy
	interval time.Duration
	queue    chan *Transaction

	resourceCtx    context.Context
	resourceCancel context.CancelFunc
	tasks          tasks.Group
	stopped        atomic.Bool
}

func NewNotifier(cfg config.NotifyConfig, c clock.Clock, shutdown context.CancelCauseFunc) (*Notifier, error) {
	client, err := NewNotifyClient(cfg.Url, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	if c == nil {
		c = clock.SystemClock
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	resCtx, resCancel := context.WithCancel(context.Background())
	return &Notifier{
		client:         client,
		clock:          c,
		strategy:       &retry.ExponentialStrategy{Min: 200 * time.Millisecond, Max: 5 * time.Second, MaxJitter: 250 * time.Millisecond},
		interval:       interval,
		queue:          make(chan *Transaction, queueSize),
		resourceCtx:    resCtx,
		resourceCancel: resCancel,
		tasks: tasks.Group{
			HandleCrit: func(err error) {
				shutdown(fmt.Errorf("critical error in notifier: %w", err))
			},
		},
	}, nil
}

// Append implements sender.Journal.
func (nf *Notifier) Append(ctx context.Context, key string, outcome sender.Outcome) error {
	txn := &Transaction{
		DedupKey:  key,
		RequestId: outcome.RequestID,
		ChainId:   outcome.ChainID,
		ToAddress: outcome.To.Hex(),
		Status:    sender.ResultLabel(outcome.Reason),
		Attempts:  outcome.Attempts,
		Timestamp: clock.NowMillis(nf.clock),
	}
	if outcome.Tx != nil {
		txn.Hash = outcome.Tx.Hash().Hex()
		txn.Nonce = outcome.Tx.Nonce()
	}
	if outcome.Reason != nil {
		txn.Reason = outcome.Reason.Error()
	}
	select {
	case nf.queue <- txn:
		return nil
	default:
		return ErrQueueFull
	}
}

func (nf *Notifier) Start(ctx context.Context) error {
	log.Info("start notifier", "url", nf.client.url, "interval", nf.interval)
	nf.tasks.Go(func() error {
		// Batches already taken off the queue are delivered even during shutdown.
		flushCtx := context.WithoutCancel(nf.resourceCtx)
		ticker := nf.clock.NewTimer(nf.interval)
		defer func() { ticker.Stop() }()
		for {
			select {
			case <-ticker.Ch():
				nf.flush(flushCtx)
				ticker = nf.clock.NewTimer(nf.interval)
			case <-nf.resourceCtx.Done():
				nf.flush(flushCtx)
				log.Info("stop notifier in worker")
				return nil
			}
		}
	})
	return nil
}

func (nf *Notifier) flush(ctx context.Context) {
	var txn []*Transaction
drain:
	for {
		select {
		case item := <-nf.queue:
			txn = append(txn, item)
		default:
			break drain
		}
	}
	if len(txn) == 0 {
		return
	}
	_, err := retry.Do[interface{}](ctx, notifyRetries, nf.strategy, func() (interface{}, error) {
		return nil, nf.client.Notify(ctx, &NotifyRequest{Txn: txn})
	})
	if err != nil {
		log.Error("notify business platform failed, dropping batch", "size", len(txn), "err", err)
		return
	}
	log.Debug("notified outcomes", "size", len(txn))
}

func (nf *Notifier) Stop(ctx context.Context) error {
	var result error
	nf.resourceCancel()
	if err := nf.tasks.Wait(); err != nil {
		result = errors.Join(result, fmt.Errorf("failed to await notify %w", err))
	}
	nf.stopped.Store(true)
	log.Info("notifier stopped")
	return result
}

func (nf *Notifier) Stopped() bool {
	return nf.stopped.Load()
}
