// Package server exposes the playground over HTTP: the page itself and a JSON
// API for evaluating, checking and sharing expressions.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	playground "github.com/invakid404/cel-playground"
	"github.com/invakid404/cel-playground/internal/metrics"
)

// maxBodyBytes bounds the JSON request bodies
const maxBodyBytes = 1 << 20

// Config holds HTTP server configuration
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// RateLimit is the number of evaluations per second; zero disables the limit.
	RateLimit float64
	Burst     int
	// BaseURL is the public address used in share links. When empty the
	// address of the request is used.
	BaseURL string
	// Version is shown in the page footer.
	Version string
}

// Server serves one Playground
type Server struct {
	playground *playground.Playground
	metrics    *metrics.Metrics
	logger     *zap.Logger
	limiter    *rate.Limiter
	page       *page
	config     Config
}

// New creates a server for p. m may be nil, in which case /metrics is not
// served.
func New(p *playground.Playground, config Config, m *metrics.Metrics, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	pg, err := newPage()
	if err != nil {
		return nil, err
	}

	s := &Server{
		playground: p,
		metrics:    m,
		logger:     logger,
		page:       pg,
		config:     config,
	}
	if config.RateLimit > 0 {
		burst := config.Burst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), burst)
	}
	return s, nil
}

// Handler returns the router of the server
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(clientCookie)

		r.Get("/", s.index)

		r.Route("/api", func(r chi.Router) {
			r.Get("/modes", s.listModes)
			r.Route("/modes/{mode}", func(r chi.Router) {
				r.Post("/select", s.selectMode)
				r.Get("/examples", s.listExamples)
				r.Get("/example", s.getExample)
			})

			r.With(s.rateLimit).Post("/eval", s.evaluate)
			r.Post("/check", s.check)

			r.Get("/share", s.decodeShare)
			r.Post("/share", s.encodeShare)

			r.Get("/prefs", s.getPrefs)
			r.Put("/prefs", s.putPrefs)
			r.Post("/prefs/theme/toggle", s.toggleTheme)
		})
	})

	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("starting playground server", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutting down playground server")

		// Give outstanding requests a deadline for completion
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("graceful shutdown did not complete", zap.Error(err))
			return srv.Close()
		}
		if err := <-serverErrors; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
