// SPDX-License-Identifier: MIT

package contextstore

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ManuGH/pagestream/internal/fragment"
)

// Wildcard is the page key whose entries apply to every path.
const Wildcard = "*"

// Static serves a fixed context table keyed by path. Entries under Wildcard
// are the base for every path. A key ending in "/" covers every path below it,
// other keys match their path exactly. Longer keys override shorter ones.
//
//	"*":
//	  header: {src: "http://header.internal/"}
//	"/shop/":
//	  cart: {src: "http://cart.internal/"}
//	"/shop/checkout":
//	  header: {public: "true"}
type Static struct {
	pages map[string]fragment.Context
	keys  []string
}

// NewStatic returns a Static source over pages.
func NewStatic(pages map[string]fragment.Context) *Static {
	if pages == nil {
		pages = map[string]fragment.Context{}
	}
	keys := make([]string, 0, len(pages))
	for k := range pages {
		if k != Wildcard {
			keys = append(keys, k)
		}
	}
	slices.SortFunc(keys, func(a, b string) int {
		return cmp.Or(cmp.Compare(len(a), len(b)), strings.Compare(a, b))
	})
	return &Static{pages: pages, keys: keys}
}

// LoadFile reads a YAML context table. Unknown structure is rejected.
func LoadFile(path string) (*Static, error) {
	f, err := os.Open(path) // #nosec G304 -- operator supplied path
	if err != nil {
		return nil, fmt.Errorf("open context file: %w", err)
	}
	defer f.Close()

	var pages map[string]fragment.Context
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&pages); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse context file %s: %w", path, err)
	}
	return NewStatic(pages), nil
}

// Context returns the merged context for path.
func (s *Static) Context(_ context.Context, path string) (fragment.Context, error) {
	out := merge(nil, s.pages[Wildcard])
	for _, k := range s.keys {
		if k == path || (strings.HasSuffix(k, "/") && strings.HasPrefix(path, k)) {
			out = merge(out, s.pages[k])
		}
	}
	return out, nil
}
