// SPDX-License-Identifier: MIT

// Package middleware holds the HTTP ingress middleware of the page server.
package middleware

import (
	"github.com/go-chi/chi/v5"

	xglog "github.com/ManuGH/pagestream/internal/log"
)

// StackConfig configures the ingress middleware stack.
type StackConfig struct {
	EnableMetrics bool
	// TracingService names the server span; empty disables tracing.
	TracingService string
	EnableLogging  bool
	// RateLimit is nil when rate limiting is disabled.
	RateLimit *RateLimitConfig
}

// NewRouter constructs a chi router with the middleware stack applied.
func NewRouter(cfg StackConfig) *chi.Mux {
	r := chi.NewRouter()
	ApplyStack(r, cfg)
	return r
}

// ApplyStack applies the middleware stack to r, outermost first.
func ApplyStack(r chi.Router, cfg StackConfig) {
	r.Use(Recoverer)
	r.Use(RequestID)
	if cfg.TracingService != "" {
		r.Use(Tracing(cfg.TracingService))
	}
	if cfg.EnableMetrics {
		r.Use(Metrics())
	}
	// Logging runs inside tracing so access lines carry trace ids.
	if cfg.EnableLogging {
		r.Use(xglog.Middleware())
	}
	if cfg.RateLimit != nil {
		r.Use(RateLimit(*cfg.RateLimit))
	}
}
