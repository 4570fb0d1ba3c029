// SPDX-License-Identifier: MIT

// Package headers selects the request headers forwarded to fragment sources.
package headers

import (
	"net/http"
)

// DefaultAllow is the allowlist used when none is configured.
var DefaultAllow = []string{
	"Accept-Language",
	"Referer",
	"User-Agent",
	"X-Request-Id",
	"X-Correlation-Id",
}

// Filter forwards only allowlisted headers.
type Filter struct {
	allow []string
}

// NewFilter returns a Filter for names. An empty list uses DefaultAllow.
func NewFilter(names ...string) *Filter {
	if len(names) == 0 {
		names = DefaultAllow
	}
	allow := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		key := http.CanonicalHeaderKey(n)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		allow = append(allow, key)
	}
	return &Filter{allow: allow}
}

// Apply returns a new header holding the allowlisted entries of h. It has
// the shape of the orchestrator's header filter.
func (f *Filter) Apply(h http.Header) http.Header {
	out := make(http.Header, len(f.allow))
	for _, key := range f.allow {
		if v := h.Values(key); len(v) > 0 {
			out[key] = append([]string(nil), v...)
		}
	}
	return out
}

// Names returns the canonical allowlist.
func (f *Filter) Names() []string {
	return append([]string(nil), f.allow...)
}
