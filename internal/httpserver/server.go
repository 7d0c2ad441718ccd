package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server exposes liveness, readiness and Prometheus metrics.
type Server struct {
	logger     zerolog.Logger
	watch      watchState
	addr       string
	startTime  time.Time
	server     *http.Server
	ready      chan struct{}
	inShutdown atomic.Bool
}

func New(logger zerolog.Logger, watch watchState, addr string) *Server {
	if addr == "" {
		addr = defaultAddr
	}

	return &Server{
		logger:    logger.With().Str("component", "http_server").Logger(),
		watch:     watch,
		addr:      addr,
		startTime: time.Now(),
		ready:     make(chan struct{}),
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(s.requestLogger)
	router.Use(middleware.Recoverer)

	router.Get("/-/healthz", s.handleHealthz)
	router.Get("/-/readyz", s.handleReadyz)
	router.Get("/-/status", s.handleStatus)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return router
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// Start listens on the configured address and serves in a goroutine.
func (s *Server) Start(ctx context.Context) error {
	if s.inShutdown.Load() {
		s.logger.Info().Msg("http server is shutting down, skipping start")

		return nil
	}

	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
	}

	lc := &net.ListenConfig{
		KeepAliveConfig: net.KeepAliveConfig{
			Enable: true,
		},
	}

	listener, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen http tcp: %w", err)
	}

	s.logger.Info().Str("addr", listener.Addr().String()).Msg("http server listening")

	go func() {
		close(s.ready)

		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("http server error")
		}
	}()

	return nil
}

// Ready returns a channel that is closed when the server is serving.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

func (s *Server) Shutdown(ctx context.Context) error {
	if !s.inShutdown.CompareAndSwap(false, true) {
		s.logger.Error().Msg("http server is already shutting down, skipping shutdown")

		return nil
	}

	s.logger.Info().Msg("shutting down http server")

	if s.server == nil {
		return nil
	}

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error().Err(err).Msg("error shutting down http server")

		return fmt.Errorf("http server shutdown: %w", err)
	}

	s.logger.Info().Msg("http server closed properly")

	return nil
}
