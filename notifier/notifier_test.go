package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/dev-protocol/send-transactions/common/clock"
	"github.com/dev-protocol/send-transactions/common/retry"
	"github.com/dev-protocol/send-transactions/config"
	"github.com/dev-protocol/send-transactions/sender"
)

type callbackServer struct {
	mu       sync.Mutex
	batches  [][]*Transaction
	requests int
	failures int
}

func (c *callbackServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests++
	if c.failures > 0 {
		c.failures--
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	var req NotifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	c.batches = append(c.batches, req.Txn)
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"success":true}`))
}

func (c *callbackServer) snapshot() ([][]*Transaction, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.batches, c.requests
}

func newTestNotifier(t *testing.T, url string, interval time.Duration, clk clock.Clock) *Notifier {
	n, err := NewNotifier(config.NotifyConfig{Url: url, Interval: interval, Timeout: time.Second}, clk, func(cause error) {
		t.Errorf("unexpected shutdown: %v", cause)
	})
	require.NoError(t, err)
	n.strategy = retry.Fixed(time.Millisecond)
	return n
}

func sentOutcome() sender.Outcome {
	tx := types.NewTx(&types.DynamicFeeTx{ChainID: big.NewInt(137), Nonce: 7})
	return sender.Outcome{Tx: tx, Attempts: 2, RequestID: "r-1", ChainID: 137, To: common.HexToAddress("0xcc")}
}

func TestNotifierFlushesOnStop(t *testing.T) {
	srv := &callbackServer{}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	clk := clock.NewDeterministicClock(time.UnixMilli(1_000))
	n := newTestNotifier(t, ts.URL, time.Hour, clk)
	require.NoError(t, n.Start(context.Background()))

	ctx := context.Background()
	require.NoError(t, n.Append(ctx, "key-1", sentOutcome()))
	require.NoError(t, n.Append(ctx, "key-2", sender.Outcome{
		Reason:  &sender.DuplicateError{Key: "key-2", Elapsed: 1500 * time.Millisecond},
		ChainID: 137,
		To:      common.HexToAddress("0xcc"),
	}))

	require.NoError(t, n.Stop(ctx))
	require.True(t, n.Stopped())

	batches, _ := srv.snapshot()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 2)

	sent := batches[0][0]
	require.Equal(t, "key-1", sent.DedupKey)
	require.Equal(t, "r-1", sent.RequestId)
	require.Equal(t, "sent", sent.Status)
	require.Equal(t, uint64(7), sent.Nonce)
	require.Equal(t, sentOutcome().Tx.Hash().Hex(), sent.Hash)
	require.Equal(t, int64(1_000), sent.Timestamp)
	require.Empty(t, sent.Reason)

	dup := batches[0][1]
	require.Equal(t, "duplicate", dup.Status)
	require.Equal(t, "invalid execution interval: 1500ms", dup.Reason)
	require.Empty(t, dup.Hash)
}

func TestNotifierFlushesOnTick(t *testing.T) {
	srv := &callbackServer{}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	n := newTestNotifier(t, ts.URL, 10*time.Millisecond, clock.SystemClock)
	require.NoError(t, n.Start(context.Background()))
	defer func() { require.NoError(t, n.Stop(context.Background())) }()

	require.NoError(t, n.Append(context.Background(), "key-1", sentOutcome()))
	require.Eventually(t, func() bool {
		batches, _ := srv.snapshot()
		return len(batches) == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestNotifierRetriesFailedBatch(t *testing.T) {
	srv := &callbackServer{failures: 2}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	n := newTestNotifier(t, ts.URL, time.Hour, clock.NewDeterministicClock(time.UnixMilli(0)))
	require.NoError(t, n.Start(context.Background()))
	require.NoError(t, n.Append(context.Background(), "key-1", sentOutcome()))
	require.NoError(t, n.Stop(context.Background()))

	batches, requests := srv.snapshot()
	require.Equal(t, 3, requests)
	require.Len(t, batches, 1)
}

func TestNotifierQueueFull(t *testing.T) {
	n := newTestNotifier(t, "http://127.0.0.1:1", time.Hour, clock.SystemClock)
	for i := 0; i < queueSize; i++ {
		require.NoError(t, n.Append(context.Background(), "key", sentOutcome()))
	}
	err := n.Append(context.Background(), "key", sentOutcome())
	require.True(t, errors.Is(err, ErrQueueFull))
}

func TestNotifyClientRefused(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":false}`))
	}))
	defer ts.Close()

	client, err := NewNotifyClient(ts.URL, time.Second)
	require.NoError(t, err)
	require.ErrorIs(t, client.Notify(context.Background(), &NotifyRequest{}), errNotifyRefused)

	_, err = NewNotifyClient("", time.Second)
	require.Error(t, err)
}
