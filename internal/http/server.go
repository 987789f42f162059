// Package http serves health checks and Prometheus metrics.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"freaksplay/internal/core"
)

const shutdownTimeout = 10 * time.Second

// ReadinessFunc reports whether the bot is connected and processing messages.
type ReadinessFunc func() bool

type Server struct {
	config   *core.ServerConfig
	logger   *zap.Logger
	server   *http.Server
	metrics  *Metrics
	registry *prometheus.Registry
}

type Metrics struct {
	MessagesTotal        *prometheus.CounterVec
	TracksAddedTotal     prometheus.Counter
	ShortLinkLookupTotal *prometheus.CounterVec
	ErrorsTotal          *prometheus.CounterVec
	ProcessingTime       prometheus.Histogram
}

func newMetrics(registry prometheus.Registerer) *Metrics {
	metrics := &Metrics{
		MessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freaksplay_messages_total",
				Help: "Total number of chat messages handled, by outcome",
			},
			[]string{"outcome"},
		),
		TracksAddedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "freaksplay_tracks_added_total",
				Help: "Total number of tracks added to the playlist",
			},
		),
		ShortLinkLookupTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freaksplay_shortlink_lookups_total",
				Help: "Total number of spotify.link lookups, by outcome",
			},
			[]string{"outcome"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freaksplay_errors_total",
				Help: "Total number of errors",
			},
			[]string{"kind"},
		),
		ProcessingTime: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "freaksplay_processing_duration_seconds",
				Help:    "Time from receiving a message to the playlist update result",
				Buckets: prometheus.DefBuckets,
			},
		),
	}

	registry.MustRegister(
		metrics.MessagesTotal,
		metrics.TracksAddedTotal,
		metrics.ShortLinkLookupTotal,
		metrics.ErrorsTotal,
		metrics.ProcessingTime,
	)
	return metrics
}

// NewServer builds the server with its own metrics registry. ready may be nil.
func NewServer(config *core.ServerConfig, logger *zap.Logger, ready ReadinessFunc) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := newMetrics(registry)

	return &Server{
		config:   config,
		logger:   logger,
		server:   createHTTPServer(config, setupRoutes(logger, registry, ready)),
		metrics:  metrics,
		registry: registry,
	}
}

func createHTTPServer(config *core.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
}

func setupRoutes(logger *zap.Logger, gatherer prometheus.Gatherer, ready ReadinessFunc) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, logger, http.StatusOK, `{"status":"ok","service":"freaksplay"}`)
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if ready != nil && !ready() {
			writeJSON(w, logger, http.StatusServiceUnavailable, `{"status":"not ready","service":"freaksplay"}`)
			return
		}
		writeJSON(w, logger, http.StatusOK, `{"status":"ready","service":"freaksplay"}`)
	})

	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return mux
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(body)); err != nil {
		logger.Debug("Failed to write response", zap.Error(err))
	}
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server",
		zap.String("addr", s.server.Addr))

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shutdown HTTP server gracefully", zap.Error(err))
		}
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

func (s *Server) GetMetrics() *Metrics {
	return s.metrics
}

// Gatherer exposes the server's registry.
func (s *Server) Gatherer() prometheus.Gatherer {
	return s.registry
}

// RegisterGauge exposes a value read at scrape time.
func (s *Server) RegisterGauge(name, help string, value func() float64) error {
	gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, value)
	if err := s.registry.Register(gauge); err != nil {
		return fmt.Errorf("failed to register gauge %s: %w", name, err)
	}
	return nil
}

func (s *Server) RecordMessage(outcome string) {
	s.metrics.MessagesTotal.WithLabelValues(outcome).Inc()
}

func (s *Server) RecordTracksAdded(count int) {
	s.metrics.TracksAddedTotal.Add(float64(count))
}

func (s *Server) RecordShortLinkLookup(outcome string) {
	s.metrics.ShortLinkLookupTotal.WithLabelValues(outcome).Inc()
}

func (s *Server) RecordError(kind string) {
	s.metrics.ErrorsTotal.WithLabelValues(kind).Inc()
}

func (s *Server) RecordProcessingDuration(d time.Duration) {
	s.metrics.ProcessingTime.Observe(d.Seconds())
}

var _ core.MetricsRecorder = (*Server)(nil)
