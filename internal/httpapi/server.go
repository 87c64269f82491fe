package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/metrics/export/prometheus"
)

const (
	defaultMaxBodyBytes     = 1 << 20
	gracefulShutdownTimeout = 10 * time.Second
)

// Options configures a Server. Engine is required.
type Options struct {
	Engine *goGate.Engine
	Logger *slog.Logger

	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	MaxBodyBytes int64

	// TrustForwardedFor takes the client IP from X-Forwarded-For. Enable it
	// only behind a proxy that overwrites the header.
	TrustForwardedFor bool

	// Metrics serves /actuator/metrics. It defaults to the Prometheus
	// exporter over Engine.
	Metrics http.Handler

	// Downstream receives every request no auth route matched, after the
	// gate allowed it.
	Downstream http.Handler
}

// Server exposes the engine over HTTP.
type Server struct {
	opts   Options
	engine *goGate.Engine
	logger *slog.Logger
	router http.Handler
	server *http.Server
}

// New validates opts and builds the router.
func New(opts Options) (*Server, error) {
	if opts.Engine == nil {
		return nil, errors.New("httpapi: engine is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if opts.Metrics == nil {
		opts.Metrics = prometheus.New(opts.Engine).Handler()
	}

	s := &Server{
		opts:   opts,
		engine: opts.Engine,
		logger: opts.Logger.With("component", "http"),
	}
	s.router = s.buildRouter()
	return s, nil
}

// Handler returns the fully wrapped router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on Options.Addr in the background. Listener errors other
// than a clean shutdown are logged.
func (s *Server) Start(ctx context.Context) error {
	if s.server != nil {
		return errors.New("httpapi: server already started")
	}

	s.server = &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadTimeout:       s.opts.ReadTimeout,
		ReadHeaderTimeout: s.opts.ReadTimeout,
		WriteTimeout:      s.opts.WriteTimeout,
		IdleTimeout:       s.opts.IdleTimeout,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	go func() {
		s.logger.Info("http server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()
	return nil
}

// Close waits up to ten seconds for in-flight requests, then drops the rest.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("http server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}
