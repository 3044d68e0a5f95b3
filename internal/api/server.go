// Package api serves the reportwatch HTTP API.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"

	"github.com/maidige/consultation-admin/internal/api/health"
	"github.com/maidige/consultation-admin/internal/api/reporting"
	"github.com/maidige/consultation-admin/internal/config"
	"github.com/maidige/consultation-admin/pkg/common/logger"
	"github.com/maidige/consultation-admin/pkg/common/otel"
)

// Deps are the collaborators the routes are bound to.
type Deps struct {
	Build     string
	Poller    reporting.Poller
	Generator reporting.ReportGenerator
	Runs      reporting.RunHistory
	Checkers  []health.Checker
	Metrics   APIMetrics
}

type Server struct {
	cfg     config.ServerConfig
	logger  *logger.Logger
	router  *chi.Mux
	tracer  trace.Tracer
	metrics APIMetrics
}

func NewServer(cfg config.ServerConfig, log *logger.Logger, tracer trace.Tracer, deps Deps) *Server {
	metrics := deps.Metrics
	if metrics == nil {
		metrics = noopAPIMetrics{}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(otel.Middleware(tracer))
	r.Use(loggerMiddleware(log, metrics))
	r.Use(middleware.Recoverer)

	s := &Server{
		cfg:     cfg,
		logger:  log,
		router:  r,
		tracer:  tracer,
		metrics: metrics,
	}

	s.router.Route("/v1", func(r chi.Router) {
		health.Routes(r, health.Config{Build: deps.Build, Log: log, Checkers: deps.Checkers})
		reporting.Routes(r, reporting.Config{
			Log:       log,
			Poller:    deps.Poller,
			Generator: deps.Generator,
			Runs:      deps.Runs,
		})
	})

	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func loggerMiddleware(log *logger.Logger, metrics APIMetrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				ctx := r.Context()
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				route := r.URL.Path
				if rctx := chi.RouteContext(ctx); rctx != nil && rctx.RoutePattern() != "" {
					route = rctx.RoutePattern()
				}
				elapsed := time.Since(start)

				metrics.IncRequestsTotal(ctx, r.Method, route, status)
				metrics.ObserveRequestDuration(ctx, r.Method, route, elapsed)

				log.Info(ctx, "Request completed",
					"method", r.Method,
					"path", r.URL.Path,
					"status", status,
					"duration", elapsed,
					"request_id", middleware.GetReqID(ctx),
					"trace_id", otel.GetTraceID(ctx),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.cfg.Host,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
		ErrorLog:     logger.NewStdLogger(s.logger, logger.LevelError),
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()

		timeout := s.cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(shutdownCtx, "failed to shutdown server", "error", err)
			_ = server.Close()
		}
	}()

	s.logger.Info(ctx, "starting server", "addr", server.Addr)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-shutdownDone
	return nil
}
