// Package metrics exposes relay counters to prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const Namespace = "send_transactions"

type Metrics struct {
	registry *prometheus.Registry

	sends           *prometheus.CounterVec
	sendDuration    *prometheus.HistogramVec
	attempts        prometheus.Histogram
	feeSource       *prometheus.CounterVec
	guardRejections *prometheus.CounterVec
	streamMessages  *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		sends: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "sends_total",
			Help:      "Number of send requests by result",
		}, []string{"result"}),
		sendDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "send_duration_seconds",
			Help:      "Time from request to outcome",
			Buckets:   prometheus.DefBuckets,
		}, []string{"result"}),
		attempts: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "broadcast_attempts",
			Help:      "Broadcast attempts used per admitted request",
			Buckets:   []float64{1, 2, 3, 4, 5, 8, 10},
		}),
		feeSource: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "fee_estimates_total",
			Help:      "Fee estimates by the source that produced them",
		}, []string{"source"}),
		guardRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "guard_rejections_total",
			Help:      "Requests rejected as duplicates",
		}, []string{"reason"}),
		streamMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "stream_messages_total",
			Help:      "Stream messages handled by the relay worker",
		}, []string{"status"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RecordSend(result string, attempts int, duration time.Duration) {
	m.sends.WithLabelValues(result).Inc()
	m.sendDuration.WithLabelValues(result).Observe(duration.Seconds())
	if attempts > 0 {
		m.attempts.Observe(float64(attempts))
	}
}

func (m *Metrics) RecordFeeSource(source string) {
	m.feeSource.WithLabelValues(source).Inc()
}

func (m *Metrics) RecordGuardRejection(reason string) {
	m.guardRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordStreamMessage(status string) {
	m.streamMessages.WithLabelValues(status).Inc()
}

// Server serves the registry on /metrics.
type Server struct {
	listener net.Listener
	server   *http.Server
}

func StartServer(registry *prometheus.Registry, host string, port int) (*Server, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &Server{
		listener: listener,
		server:   &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second},
	}
	go func() {
		if err := srv.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", "err", err)
		}
	}()
	log.Info("metrics server started", "addr", listener.Addr())
	return srv, nil
}

func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
