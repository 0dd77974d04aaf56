// Package service runs the harness's background HTTP endpoints: a liveness
// probe and the prometheus metrics exporter.
package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/scriptbridge/acceptor/metrics"
)

const (
	DefaultHealthzAddr = "0.0.0.0:8080"
	DefaultMetricsAddr = "0.0.0.0:7300"

	shutdownTimeout = 5 * time.Second
)

// Config holds the listen addresses for the background endpoints. Empty
// fields fall back to the defaults.
type Config struct {
	HealthzAddr string
	MetricsAddr string
	Log         log.Logger
}

// Service owns the healthz and metrics servers. They run for the lifetime
// of the process, independent of individual suite runs.
type Service struct {
	log     log.Logger
	healthz *http.Server
	metrics *http.Server
}

// New assembles both servers without binding their listeners.
func New(cfg Config) *Service {
	if cfg.HealthzAddr == "" {
		cfg.HealthzAddr = DefaultHealthzAddr
	}
	if cfg.MetricsAddr == "" {
		cfg.MetricsAddr = DefaultMetricsAddr
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
	}
	return &Service{
		log:     cfg.Log,
		healthz: &http.Server{Addr: cfg.HealthzAddr, Handler: healthzHandler(cfg.Log)},
		metrics: &http.Server{Addr: cfg.MetricsAddr, Handler: metricsHandler()},
	}
}

// Start brings both servers up in the background. A listen failure is
// recorded but does not abort the harness.
func (s *Service) Start() {
	go s.serve("healthz", s.healthz)
	go s.serve("metrics", s.metrics)
}

func (s *Service) serve(name string, srv *http.Server) {
	s.log.Info("Starting server", "name", name, "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Error("Server failed", "name", name, "err", err)
		metrics.RecordErrorDetails(name+"_server", err)
	}
}

// Shutdown stops both servers, waiting briefly for in-flight requests.
func (s *Service) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.healthz.Shutdown(ctx); err != nil {
		s.log.Warn("Healthz server shutdown", "err", err)
	}
	if err := s.metrics.Shutdown(ctx); err != nil {
		s.log.Warn("Metrics server shutdown", "err", err)
	}
	s.log.Info("Service stopped")
}

// healthzHandler answers liveness probes. CORS-open so dashboards can poll
// it directly.
func healthzHandler(logger log.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("Health check", "path", r.URL.Path)
		w.Write([]byte("OK")) //nolint:errcheck
	})
	return cors.New(cors.Options{AllowedOrigins: []string{"*"}}).Handler(mux)
}

func metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
