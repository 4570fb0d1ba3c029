// SPDX-License-Identifier: MIT

package middleware

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/httprate"

	"github.com/ManuGH/pagestream/internal/config"
)

// RateLimitConfig holds configuration for rate limiting middleware.
type RateLimitConfig struct {
	// RequestLimit is the maximum number of requests allowed in the window.
	RequestLimit int
	// WindowSize is the sliding window.
	WindowSize time.Duration
	// Whitelist holds CIDRs that are never limited. Invalid entries are ignored.
	Whitelist []string
	// KeyFunc extracts the rate limit key; nil limits per client IP.
	KeyFunc func(r *http.Request) (string, error)
}

// RateLimitFromConfig maps the rateLimit section of the application config.
func RateLimitFromConfig(cfg config.RateLimitConfig) RateLimitConfig {
	return RateLimitConfig{
		RequestLimit: cfg.Requests,
		WindowSize:   cfg.Window,
		Whitelist:    cfg.Whitelist,
	}
}

// RateLimit limits requests with a sliding window counter.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = httprate.KeyByIP
	}

	limit := httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowSize,
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(cfg.WindowSize.Seconds())))
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte("Too many requests. Please try again later.\n"))
		}),
	)

	whitelist := parsePrefixes(cfg.Whitelist)
	return func(next http.Handler) http.Handler {
		limited := limit(next)
		if len(whitelist) == 0 {
			return limited
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if whitelisted(whitelist, r.RemoteAddr) {
				next.ServeHTTP(w, r)
				return
			}
			limited.ServeHTTP(w, r)
		})
	}
}

func parsePrefixes(cidrs []string) []netip.Prefix {
	var out []netip.Prefix
	for _, c := range cidrs {
		if p, err := netip.ParsePrefix(c); err == nil {
			out = append(out, p)
		}
	}
	return out
}

func whitelisted(prefixes []netip.Prefix, remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
