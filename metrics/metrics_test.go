package metrics

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecordSend(t *testing.T) {
	m := NewMetrics()
	m.RecordSend("sent", 2, time.Second)
	m.RecordSend("sent", 1, time.Second)
	m.RecordSend("duplicate", 0, time.Millisecond)
	m.RecordFeeSource("chain")
	m.RecordGuardRejection("cooldown")

	require.Equal(t, 2.0, counterValue(t, m, "send_transactions_sends_total", "sent"))
	require.Equal(t, 1.0, counterValue(t, m, "send_transactions_sends_total", "duplicate"))
	require.Equal(t, 1.0, counterValue(t, m, "send_transactions_fee_estimates_total", "chain"))
	require.Equal(t, 1.0, counterValue(t, m, "send_transactions_guard_rejections_total", "cooldown"))
}

func counterValue(t *testing.T, m *Metrics, name, label string) float64 {
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if pair.GetValue() == label {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s{%s} not found", name, label)
	return 0
}

func TestServer(t *testing.T) {
	m := NewMetrics()
	m.RecordStreamMessage("acked")

	srv, err := StartServer(m.Registry(), "127.0.0.1", 0)
	require.NoError(t, err)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, srv.Stop(ctx))
	}()

	res, err := http.Get("http://" + srv.Addr().String() + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `send_transactions_stream_messages_total{status="acked"} 1`)
}
