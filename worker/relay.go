package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dev-protocol/send-transactions/common/tasks"
	"github.com/dev-protocol/send-transactions/config"
	"github.com/dev-protocol/send-transactions/sender"
)

const (
	payloadField = "payload"
	readBlock    = 2 * time.Second
	readBackoff  = time.Second
)

type Sender interface {
	Send(ctx context.Context, intent sender.Intent, opts sender.SendOptions) (*types.Transaction, error)
}

type Metricer interface {
	RecordStreamMessage(status string)
}

type noopMetricer struct{}

func (noopMetricer) RecordStreamMessage(string) {}

// Relay consumes send requests from a Redis stream consumer group and
// publishes one result per request. Each message is an independent
// invocation of the sender.
type Relay struct {
	client   goredis.UniversalClient
	sender   Sender
	cfg      config.WorkerConfig
	defaults config.ChainConfig
	metrics  Metricer

	resourceCtx    context.Context
	resourceCancel context.CancelFunc
	tasks          tasks.Group
	stopped        atomic.Bool
}

func NewRelay(cfg config.WorkerConfig, defaults config.ChainConfig, client goredis.UniversalClient, s Sender, metrics Metricer, shutdown context.CancelCauseFunc) (*Relay, error) {
	if cfg.Stream == "" || cfg.Group == "" {
		return nil, errors.New("worker stream and group are required")
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if metrics == nil {
		metrics = noopMetricer{}
	}
	resCtx, resCancel := context.WithCancel(context.Background())
	return &Relay{
		client:         client,
		sender:         s,
		cfg:            cfg,
		defaults:       defaults,
		metrics:        metrics,
		resourceCtx:    resCtx,
		resourceCancel: resCancel,
		tasks: tasks.Group{HandleCrit: func(err error) {
			shutdown(fmt.Errorf("critical error in relay worker: %w", err))
		}},
	}, nil
}

func (r *Relay) Start(ctx context.Context) error {
	err := r.client.XGroupCreateMkStream(ctx, r.cfg.Stream, r.cfg.Group, "$").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s: %w", r.cfg.Group, err)
	}
	log.Info("starting relay worker", "stream", r.cfg.Stream, "group", r.cfg.Group, "consumers", r.cfg.Concurrency)
	for i := 0; i < r.cfg.Concurrency; i++ {
		name := fmt.Sprintf("%s-%d", r.cfg.Consumer, i)
		r.tasks.Go(func() error {
			return r.consume(name)
		})
	}
	return nil
}

func (r *Relay) Stop(ctx context.Context) error {
	log.Info("stopping relay worker")
	r.resourceCancel()
	var result error
	if err := r.tasks.Wait(); err != nil {
		result = errors.Join(result, fmt.Errorf("failed to await relay consumers: %w", err))
	}
	r.stopped.Store(true)
	log.Info("relay worker stopped")
	return result
}

func (r *Relay) Stopped() bool {
	return r.stopped.Load()
}

func (r *Relay) consume(name string) error {
	for {
		streams, err := r.client.XReadGroup(r.resourceCtx, &goredis.XReadGroupArgs{
			Group:    r.cfg.Group,
			Consumer: name,
			Streams:  []string{r.cfg.Stream, ">"},
			Count:    1,
			Block:    readBlock,
		}).Result()
		if r.resourceCtx.Err() != nil {
			return nil
		}
		if errors.Is(err, goredis.Nil) {
			continue
		}
		if err != nil {
			log.Error("read intake stream failed", "consumer", name, "err", err)
			select {
			case <-r.resourceCtx.Done():
				return nil
			case <-time.After(readBackoff):
			}
			continue
		}
		// In-flight requests run to completion on shutdown.
		handleCtx := context.WithoutCancel(r.resourceCtx)
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				r.handle(handleCtx, msg)
			}
		}
	}
}

// handle runs one request and always acks it. A redelivered request would
// only meet the idempotency guard or send twice, so failures are reported
// on the result stream instead.
func (r *Relay) handle(ctx context.Context, msg goredis.XMessage) {
	result := r.process(ctx, msg)
	if err := r.publish(ctx, result); err != nil {
		log.Error("publish result failed", "id", msg.ID, "err", err)
	}
	if err := r.client.XAck(ctx, r.cfg.Stream, r.cfg.Group, msg.ID).Err(); err != nil {
		log.Error("ack failed", "id", msg.ID, "err", err)
	}
	r.metrics.RecordStreamMessage(result.Status)
}

type Result struct {
	MessageID string
	RequestID string
	Status    string
	TxHash    string
	Error     string
}

func (r *Relay) process(ctx context.Context, msg goredis.XMessage) Result {
	result := Result{MessageID: msg.ID}
	payload, ok := msg.Values[payloadField].(string)
	if !ok {
		result.Status = "invalid"
		result.Error = "missing payload field"
		return result
	}
	req, err := DecodeRequest([]byte(payload))
	if err != nil {
		result.Status = "invalid"
		result.Error = err.Error()
		return result
	}
	result.RequestID = req.RequestID
	intent, opts, err := req.Intent(r.defaults)
	if err != nil {
		result.Status = "invalid"
		result.Error = err.Error()
		return result
	}

	tx, err := r.sender.Send(ctx, intent, opts)
	result.Status = sender.ResultLabel(err)
	if tx != nil {
		result.TxHash = tx.Hash().Hex()
	}
	if err != nil {
		result.Error = err.Error()
	}
	return result
}

func (r *Relay) publish(ctx context.Context, result Result) error {
	if r.cfg.ResultStream == "" {
		return nil
	}
	return r.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: r.cfg.ResultStream,
		Values: map[string]interface{}{
			"messageId": result.MessageID,
			"requestId": result.RequestID,
			"status":    result.Status,
			"txHash":    result.TxHash,
			"error":     result.Error,
		},
	}).Err()
}
