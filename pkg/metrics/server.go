package metrics

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"m17/pkg/logger"
)

// ServerConfig holds the metrics HTTP endpoint's configuration.
type ServerConfig struct {
	Enabled bool
	Port    int
	Path    string
}

// Server serves one Metrics set's registry over HTTP via the standard
// Prometheus text exposition format, through promhttp.
type Server struct {
	config  ServerConfig
	metrics *Metrics
	log     *logger.Logger
	server  *http.Server
}

// NewServer constructs a metrics HTTP server for the given Metrics set.
func NewServer(config ServerConfig, m *Metrics, log *logger.Logger) *Server {
	if log == nil {
		log = logger.New(logger.Config{Level: "info"})
	}
	return &Server{
		config:  config,
		metrics: m,
		log:     log.WithComponent("metrics"),
	}
}

// Start serves the metrics endpoint until ctx is cancelled. A no-op if
// the endpoint is disabled in config.
func (s *Server) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.log.Info("metrics server disabled")
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(s.config.Path, promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))

	addr := fmt.Sprintf(":%d", s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	actualPort := listener.Addr().(*net.TCPAddr).Port

	s.server = &http.Server{Handler: mux}
	s.log.Info("starting metrics server", logger.Int("port", actualPort), logger.String("path", s.config.Path))

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.log.Info("shutting down metrics server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Stop shuts the server down if it was started.
func (s *Server) Stop() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(ctx)
	}
}
