// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Prairie Post Contributors

// Package observability provides HTTP endpoints for metrics and health checks.
package observability

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
)

// ReadinessChecker returns whether the service is ready to accept connections.
type ReadinessChecker func() bool

// Metrics contains the Prairie Post application metrics. The stream gauge and
// drop counter satisfy the gateway's recorder interface.
type Metrics struct {
	LoginsTotal         *prometheus.CounterVec
	LockoutsTotal       prometheus.Counter
	SessionsIssued      prometheus.Counter
	MessagesPosted      prometheus.Counter
	StreamConnections   prometheus.Gauge
	StreamEventsDropped prometheus.Counter
}

// NewMetrics creates and registers the application metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prairiepost_logins_total",
				Help: "Total number of login attempts by outcome",
			},
			[]string{"outcome"},
		),
		LockoutsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prairiepost_lockouts_total",
			Help: "Total number of account lockouts triggered",
		}),
		SessionsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prairiepost_sessions_issued_total",
			Help: "Total number of sessions issued",
		}),
		MessagesPosted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prairiepost_chat_messages_posted_total",
			Help: "Total number of chat messages posted",
		}),
		StreamConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "prairiepost_stream_connections",
			Help: "Number of currently open stream connections",
		}),
		StreamEventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prairiepost_stream_events_dropped_total",
			Help: "Total number of stream events dropped on slow connections",
		}),
	}

	reg.MustRegister(m.LoginsTotal)
	reg.MustRegister(m.LockoutsTotal)
	reg.MustRegister(m.SessionsIssued)
	reg.MustRegister(m.MessagesPosted)
	reg.MustRegister(m.StreamConnections)
	reg.MustRegister(m.StreamEventsDropped)

	return m
}

// ConnectionOpened implements the gateway recorder.
func (m *Metrics) ConnectionOpened() { m.StreamConnections.Inc() }

// ConnectionClosed implements the gateway recorder.
func (m *Metrics) ConnectionClosed() { m.StreamConnections.Dec() }

// EventDropped implements the gateway recorder.
func (m *Metrics) EventDropped() { m.StreamEventsDropped.Inc() }

// RecordLogin counts a login attempt. Outcome is one of "success",
// "failure", or "locked".
func (m *Metrics) RecordLogin(outcome string) {
	m.LoginsTotal.WithLabelValues(outcome).Inc()
}

// RecordLockout counts a newly triggered account lockout.
func (m *Metrics) RecordLockout() { m.LockoutsTotal.Inc() }

// RecordSessionIssued counts an issued session.
func (m *Metrics) RecordSessionIssued() { m.SessionsIssued.Inc() }

// RecordMessagePosted counts a persisted chat message.
func (m *Metrics) RecordMessagePosted() { m.MessagesPosted.Inc() }

// Server provides HTTP endpoints for observability (metrics and health probes).
type Server struct {
	addr       string
	listener   net.Listener
	httpServer *http.Server
	registry   *prometheus.Registry
	metrics    *Metrics
	isReady    ReadinessChecker
	running    atomic.Bool
}

// NewServer creates a new observability server.
// addr is a listen address in "host:port" form; ":9100" binds all interfaces.
func NewServer(addr string, readinessChecker ReadinessChecker) *Server {
	// Own registry, so the global one stays clean.
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	metrics := NewMetrics(registry)

	return &Server{
		addr:     addr,
		registry: registry,
		metrics:  metrics,
		isReady:  readinessChecker,
	}
}

// Metrics returns the application metrics for recording events.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Start begins serving observability endpoints. It returns an error channel
// that receives any serve failure after startup; the channel closes when the
// server stops gracefully.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("observability server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/healthz/liveness", s.handleLiveness)
	mux.HandleFunc("/healthz/readiness", s.handleReadiness)

	httpSrv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			slog.Error("observability server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	slog.Info("observability server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the observability server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_observability_server").Wrap(err)
		}
	}

	slog.Info("observability server stopped")
	return nil
}

// Addr returns the address the server is listening on, or "" if not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // health check write error is acceptable, client may disconnect
	w.Write([]byte("ok\n"))
}

func (s *Server) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if s.isReady == nil || s.isReady() {
		w.WriteHeader(http.StatusOK)
		//nolint:errcheck // health check write error is acceptable, client may disconnect
		w.Write([]byte("ok\n"))
		return
	}

	w.WriteHeader(http.StatusServiceUnavailable)
	//nolint:errcheck // health check write error is acceptable, client may disconnect
	w.Write([]byte("not ready\n"))
}
