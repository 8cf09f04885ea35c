// Package metrics exposes the bot's Prometheus collectors and the HTTP
// endpoint that serves them.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Updates counts inbound Telegram updates by type.
	Updates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchbot_updates_total",
		Help: "Inbound updates by type",
	}, []string{"type"})

	// Registrations counts registration outcomes.
	Registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchbot_registrations_total",
		Help: "Registration flows by outcome",
	}, []string{"outcome"})

	// Decisions counts recorded decisions.
	Decisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchbot_decisions_total",
		Help: "Recorded decisions by verdict",
	}, []string{"decision"})

	// Matches counts mutual matches.
	Matches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "matchbot_matches_total",
		Help: "Mutual matches detected",
	})

	// RateLimited counts decisions refused by the limiter.
	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "matchbot_rate_limited_total",
		Help: "Decisions refused because the trailing window is full",
	})

	// Selections counts candidate selections by the tier that produced them.
	Selections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchbot_candidate_selections_total",
		Help: "Candidate selections by tier (city, country, global, none)",
	}, []string{"tier"})

	// PendingNotices counts pending queue operations.
	PendingNotices = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchbot_pending_notices_total",
		Help: "Pending notice operations by action",
	}, []string{"action"})

	// GeocoderDuration tracks geocoder round trips.
	GeocoderDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "matchbot_geocoder_duration_seconds",
		Help:    "Geocoder request duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 8),
	}, []string{"operation", "result"})
)

// ObserveGeocoder records one geocoder call.
func ObserveGeocoder(operation string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	GeocoderDuration.WithLabelValues(operation, result).Observe(time.Since(start).Seconds())
}

// Server serves /metrics.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewServer returns a server listening on addr once Run is called.
func NewServer(addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger.With("component", "metrics_server"),
	}
}

// Run serves until ctx is cancelled, then shuts the server down.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Metrics server listening", "addr", s.srv.Addr)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Error shutting down metrics server", "error", err)
		return err
	}
	s.logger.Info("Metrics server stopped.")
	return nil
}
