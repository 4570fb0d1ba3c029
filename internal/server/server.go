// SPDX-License-Identifier: MIT

// Package server wires the page orchestrator into an HTTP server with health,
// readiness and metrics endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/pagestream/internal/api/middleware"
	"github.com/ManuGH/pagestream/internal/cache"
	"github.com/ManuGH/pagestream/internal/compose"
	"github.com/ManuGH/pagestream/internal/config"
	"github.com/ManuGH/pagestream/internal/health"
	xglog "github.com/ManuGH/pagestream/internal/log"
	"github.com/ManuGH/pagestream/internal/smartpipe"
	"github.com/ManuGH/pagestream/internal/template"
)

const (
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 120 * time.Second
)

// Server serves composed pages.
type Server struct {
	cfg     config.AppConfig
	version string
	logger  zerolog.Logger

	templates     *template.Store
	templateCache cache.Cache
	contexts      *contextSource
	decider       atomic.Pointer[smartpipe.Decider]

	compose *compose.Handler
	health  *health.Manager
	handler http.Handler
}

// New builds a server from cfg. Close releases what New acquired.
func New(cfg config.AppConfig, version string) (*Server, error) {
	s := &Server{
		cfg:     cfg,
		version: version,
		logger:  xglog.WithComponent("server"),
	}

	d, err := smartpipe.Compile(cfg.SmartPipe)
	if err != nil {
		return nil, err
	}
	s.decider.Store(d)

	s.contexts, err = newContextSource(cfg.Context)
	if err != nil {
		return nil, err
	}
	s.templates, s.templateCache = newTemplateStore(cfg.Templates, s.contexts.redis)

	opts, err := composeOptions(cfg, s.templates, s.contexts, s.forceSmartPipe)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.compose = compose.New(opts)

	s.health = health.NewManager(version)
	s.health.RegisterChecker(health.NewFuncChecker("templates", true, s.templates.Check))
	if cfg.Context.File != "" {
		s.health.RegisterChecker(health.NewFileChecker("context_file", cfg.Context.File))
	}
	if s.contexts.redis != nil {
		client := s.contexts.redis
		s.health.RegisterChecker(health.NewFuncChecker("redis", false, func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}))
	}

	s.handler = s.routes()
	return s, nil
}

func (s *Server) forceSmartPipe(r *http.Request) bool {
	return s.decider.Load().Decide(r)
}

func (s *Server) routes() http.Handler {
	stack := middleware.StackConfig{
		EnableMetrics: s.cfg.Metrics.Enabled,
		EnableLogging: true,
	}
	if s.cfg.Tracing.Enabled {
		stack.TracingService = s.cfg.Tracing.ServiceName
	}
	if s.cfg.RateLimit.Enabled {
		rl := middleware.RateLimitFromConfig(s.cfg.RateLimit)
		stack.RateLimit = &rl
	}

	r := chi.NewRouter()
	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	if s.cfg.Metrics.Enabled {
		r.Handle(s.cfg.Metrics.Path, promhttp.Handler())
	}
	r.Group(func(r chi.Router) {
		middleware.ApplyStack(r, stack)
		r.Get("/*", s.compose.ServeHTTP)
		r.Head("/*", s.compose.ServeHTTP)
	})
	return r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Render composes the page for r without a listener.
func (s *Server) Render(r *http.Request, out io.Writer) (int, http.Header, error) {
	return s.compose.Render(r, out)
}

// ApplyConfig takes over the settings that can change without a restart.
// Currently that is the smart pipe expression.
func (s *Server) ApplyConfig(cfg config.AppConfig) error {
	d, err := smartpipe.Compile(cfg.SmartPipe)
	if err != nil {
		return err
	}
	if old := s.decider.Swap(d); old.String() != d.String() {
		s.logger.Info().
			Str(xglog.FieldEvent, "smartpipe.updated").
			Str("expression", d.String()).
			Msg("smart pipe expression updated")
	}
	return nil
}

// Run serves until ctx is cancelled, then shuts down gracefully within the
// configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	if s.cfg.Templates.Watch {
		if err := s.templates.StartWatcher(gctx); err != nil {
			s.logger.Warn().Err(err).Str(xglog.FieldEvent, "template.watch_failed").
				Msg("template watcher unavailable, relying on cache TTL")
		}
	}

	g.Go(func() error {
		s.logger.Info().Str("addr", s.cfg.ListenAddr).Str(xglog.FieldEvent, "server.listening").
			Msg("page server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("page server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info().Str(xglog.FieldEvent, "server.shutdown").Msg("shutting down page server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown page server: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Close stops the template watcher and releases caches and connections.
func (s *Server) Close() error {
	s.templates.Stop()
	err := s.templateCache.Close()
	if s.contexts != nil {
		if s.contexts.cache != nil {
			err = multierr.Append(err, s.contexts.cache.Close())
		}
		if s.contexts.redis != nil {
			err = multierr.Append(err, s.contexts.redis.Close())
		}
	}
	return err
}
