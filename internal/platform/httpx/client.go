// Package httpx builds the outbound HTTP clients used for fragment fetches and
// readiness probes.
package httpx

import (
	"context"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultClientTimeout         = 5 * time.Second
	defaultDialTimeout           = 3 * time.Second
	defaultResponseHeaderTimeout = 3 * time.Second
	defaultIdleConnTimeout       = 90 * time.Second
	defaultExpectContinueTimeout = 1 * time.Second
	defaultMaxIdleConns          = 128
	defaultMaxIdleConnsPerHost   = 32
)

// NewClient returns a hardened HTTP client with a total timeout, for probes.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	client := NewStreamingClient(timeout)
	client.Timeout = timeout
	return client
}

// Option adjusts a client's transport.
type Option func(t *http.Transport, d *net.Dialer)

// WithDialGuard connects through the dial function guard builds from the
// client's dialer. Proxies are disabled so the guarded connection is the one
// that reaches the upstream.
func WithDialGuard(guard func(*net.Dialer) func(ctx context.Context, network, address string) (net.Conn, error)) Option {
	return func(t *http.Transport, d *net.Dialer) {
		t.Proxy = nil
		t.DialContext = guard(d)
	}
}

// NewStreamingClient returns a client for fragment fetches. It has no total
// timeout because fragment bodies are streamed to the page for as long as the
// upstream produces them; dialing and response headers are bounded by
// headerTimeout. Requests are traced with otelhttp.
func NewStreamingClient(headerTimeout time.Duration, opts ...Option) *http.Client {
	if headerTimeout <= 0 {
		headerTimeout = defaultResponseHeaderTimeout
	}

	dialTimeout := headerTimeout
	if dialTimeout > defaultDialTimeout {
		dialTimeout = defaultDialTimeout
	}

	dialer := &net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          defaultMaxIdleConns,
		MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   dialTimeout,
		ResponseHeaderTimeout: headerTimeout,
		ExpectContinueTimeout: defaultExpectContinueTimeout,
	}
	for _, opt := range opts {
		opt(transport, dialer)
	}

	return &http.Client{
		Transport: otelhttp.NewTransport(transport),
		// Fragment redirects are reported to the page, not followed.
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
