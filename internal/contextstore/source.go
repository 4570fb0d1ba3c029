// SPDX-License-Identifier: MIT

// Package contextstore provides the per-page fragment context: attribute
// overrides keyed by fragment id that operators set without editing templates.
package contextstore

import (
	"context"
	"fmt"
	"maps"
	"net/http"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/ManuGH/pagestream/internal/fragment"
)

// Source returns the fragment context of a page path. A path without context
// yields an empty Context and no error.
type Source interface {
	Context(ctx context.Context, path string) (fragment.Context, error)
}

// Fetcher adapts src to the orchestrator's context fetcher signature.
func Fetcher(src Source) func(context.Context, *http.Request) (fragment.Context, error) {
	return func(ctx context.Context, r *http.Request) (fragment.Context, error) {
		return src.Context(ctx, r.URL.Path)
	}
}

// Layered merges the contexts of its sources in order, later sources
// overriding earlier ones. The first failing source fails the lookup.
type Layered []Source

// Context implements Source.
func (l Layered) Context(ctx context.Context, path string) (fragment.Context, error) {
	out := fragment.Context{}
	for _, src := range l {
		c, err := src.Context(ctx, path)
		if err != nil {
			return nil, err
		}
		out = merge(out, c)
	}
	return out, nil
}

// merge layers override on top of base, fragment by fragment.
func merge(base, override fragment.Context) fragment.Context {
	out := make(fragment.Context, len(base)+len(override))
	for id, attrs := range base {
		out[id] = maps.Clone(attrs)
	}
	for id, attrs := range override {
		if out[id] == nil {
			out[id] = map[string]string{}
		}
		maps.Copy(out[id], attrs)
	}
	return out
}

func encode(c fragment.Context) ([]byte, error) {
	b, err := msgpack.Marshal(map[string]map[string]string(c))
	if err != nil {
		return nil, fmt.Errorf("encode context: %w", err)
	}
	return b, nil
}

func decode(b []byte) (fragment.Context, error) {
	var c map[string]map[string]string
	if err := msgpack.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("decode context: %w", err)
	}
	if c == nil {
		c = map[string]map[string]string{}
	}
	return fragment.Context(c), nil
}
