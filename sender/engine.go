// Package sender relays contract calls to an EVM chain at most once per
// dedup key and cooldown window, retrying transient broadcast failures.
package sender

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/dev-protocol/send-transactions/common/clock"
	"github.com/dev-protocol/send-transactions/config"
	"github.com/dev-protocol/send-transactions/rpcclient"
	"github.com/dev-protocol/send-transactions/store"
)

// DialRPC opens a JSON-RPC session with rpcclient.
func DialRPC(ctx context.Context, rpcURL string) (ChainClient, error) {
	client, err := rpcclient.Dial(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Deps are the collaborators of an Engine. Store and Signer are required.
type Deps struct {
	Store      store.Opener
	Signer     Signer
	Dial       Dialer
	GasStation GasStation
	Journal    Journal
	Metrics    Metricer
	Clock      clock.Clock
}

type Engine struct {
	fees     *FeeResolver
	builder  *Builder
	guard    *Guard
	reporter *Reporter

	opener  store.Opener
	signer  Signer
	dial    Dialer
	clock   clock.Clock
	metrics Metricer
	retry   RetryPolicy
}

func NewEngine(cfg *config.Config, deps Deps) (*Engine, error) {
	if deps.Store == nil {
		return nil, errors.New("engine needs a store")
	}
	if deps.Signer == nil {
		return nil, errors.New("engine needs a signer")
	}
	if deps.Dial == nil {
		deps.Dial = DialRPC
	}
	if deps.Metrics == nil {
		deps.Metrics = NoopMetrics
	}
	if deps.Clock == nil {
		deps.Clock = clock.SystemClock
	}
	policy := RetryPolicy{MaxAttempts: cfg.Retry.MaxAttempts, Interval: cfg.Retry.Interval}
	if err := policy.Check(); err != nil {
		return nil, err
	}

	guard := NewGuard(cfg.Idempotency, deps.Clock)
	return &Engine{
		fees:     NewFeeResolver(cfg.Fee, deps.GasStation),
		builder:  NewBuilder(cfg.Fee.Multiplier),
		guard:    guard,
		reporter: NewReporter(guard, deps.Clock, deps.Journal),
		opener:   deps.Store,
		signer:   deps.Signer,
		dial:     deps.Dial,
		clock:    deps.Clock,
		metrics:  deps.Metrics,
		retry:    policy,
	}, nil
}

// From is the address transactions are sent from.
func (e *Engine) From() string {
	return e.signer.Address().Hex()
}

// Send relays intent. On success the returned transaction has been accepted
// by the node and its dedup key recorded. A *RecordingError comes with a
// non-nil transaction: it was sent, only the record is missing.
func (e *Engine) Send(ctx context.Context, intent Intent, opts SendOptions) (*types.Transaction, error) {
	start := e.clock.Now()
	tx, attempts, err := e.send(ctx, intent, opts)
	e.metrics.RecordSend(ResultLabel(err), attempts, e.clock.Since(start))
	return tx, err
}

func (e *Engine) send(ctx context.Context, intent Intent, opts SendOptions) (*types.Transaction, int, error) {
	policy := e.retry
	if opts.Retry != nil {
		policy = *opts.Retry
	}
	if err := policy.Check(); err != nil {
		return nil, 0, err
	}

	data, err := intent.CallData()
	if err != nil {
		return nil, 0, err
	}
	key := DedupKey(intent.Contract, data, opts.RequestID)

	st, err := e.opener.Open(ctx)
	if err != nil {
		return nil, 0, storeError("open session", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Warn("failed to close store session", "err", err)
		}
	}()

	admission, err := e.guard.CheckAndAdmit(ctx, st, key)
	if err != nil {
		var dup *DuplicateError
		if errors.As(err, &dup) {
			e.metrics.RecordGuardRejection(guardReason(dup))
			log.Info("request rejected by idempotency guard", "key", key, "elapsed", dup.Elapsed, "inFlight", dup.InFlight)
		}
		return nil, 0, err
	}
	defer admission.Release(context.WithoutCancel(ctx))

	chain, err := e.dial(ctx, intent.RPCURL)
	if err != nil {
		return nil, 0, fmt.Errorf("dial chain rpc: %w", err)
	}
	defer chain.Close()

	loop := NewLoop(policy, e.clock)
	tx, attempts, err := loop.Run(ctx, func(ctx context.Context, attempt int) (*types.Transaction, error) {
		return e.attempt(ctx, chain, intent, attempt)
	})

	outcome := Outcome{
		Tx:        tx,
		Reason:    err,
		Attempts:  attempts,
		RequestID: opts.RequestID,
		ChainID:   intent.ChainID,
		To:        intent.Contract,
	}
	if recErr := e.reporter.Finalize(ctx, st, key, outcome); recErr != nil {
		return tx, attempts, recErr
	}
	if err != nil {
		log.Error("transaction not sent", "key", key, "attempts", attempts, "err", err)
		return nil, attempts, err
	}
	log.Info("transaction sent", "key", key, "hash", tx.Hash(), "nonce", tx.Nonce(), "attempts", attempts)
	return tx, attempts, nil
}

// attempt runs one Building -> Sending pass with fresh fee, gas and nonce.
func (e *Engine) attempt(ctx context.Context, chain ChainClient, intent Intent, n int) (*types.Transaction, error) {
	fee, err := e.fees.Resolve(ctx, intent.ChainID, chain)
	if err != nil {
		return nil, err
	}
	e.metrics.RecordFeeSource(string(fee.Source))

	from := e.signer.Address()
	unsigned, err := e.builder.Build(ctx, chain, from, intent, fee)
	if err != nil {
		return nil, err
	}

	nonce, err := chain.PendingNonceAt(ctx, from)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &BroadcastError{Attempt: n, Retryable: true, Err: fmt.Errorf("pending nonce: %w", err)}
	}

	chainID := new(big.Int).SetUint64(intent.ChainID)
	to := unsigned.To
	signed, err := e.signer.SignTx(chainID, types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: unsigned.Fee.MaxPriorityFeePerGas,
		GasFeeCap: unsigned.Fee.MaxFeePerGas,
		Gas:       unsigned.GasLimit,
		To:        &to,
		Data:      unsigned.Data,
	}))
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	log.Debug("broadcasting", "attempt", n, "hash", signed.Hash(), "nonce", nonce, "gas", unsigned.GasLimit,
		"maxFeePerGas", unsigned.Fee.MaxFeePerGas, "maxPriorityFeePerGas", unsigned.Fee.MaxPriorityFeePerGas, "feeSource", fee.Source)
	if err := chain.SendTransaction(ctx, signed); err != nil {
		if isAlreadyKnown(err) {
			log.Info("transaction already in pool", "hash", signed.Hash())
			return signed, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classifyBroadcast(n, err)
	}
	return signed, nil
}

// Wait blocks until tx is mined on the chain behind rpcURL.
func (e *Engine) Wait(ctx context.Context, rpcURL string, tx *types.Transaction) (*types.Receipt, error) {
	chain, err := e.dial(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial chain rpc: %w", err)
	}
	defer chain.Close()
	return bind.WaitMined(ctx, chain, tx)
}

// ResultLabel buckets a Send error for metrics and stream results.
func ResultLabel(err error) string {
	switch {
	case err == nil:
		return "sent"
	case errors.As(err, new(*RecordingError)):
		return "unrecorded"
	case errors.Is(err, ErrDuplicateWithinCooldown):
		return "duplicate"
	case errors.Is(err, ErrExhaustedRetries):
		return "exhausted"
	case errors.Is(err, ErrBroadcastFailure):
		return "rejected"
	case errors.Is(err, ErrMethodNotCallable):
		return "not_callable"
	case errors.Is(err, ErrUnsupportedChain):
		return "unsupported_chain"
	case errors.Is(err, ErrFeeUnavailable):
		return "fee_unavailable"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "failed"
	}
}

func guardReason(dup *DuplicateError) string {
	if dup.InFlight {
		return "in_flight"
	}
	return "cooldown"
}
