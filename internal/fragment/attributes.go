// SPDX-License-Identifier: MIT

package fragment

import (
	"maps"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/pagestream/internal/tokenizer"
)

// DefaultTimeout bounds how long a fragment may take to send response headers.
const DefaultTimeout = 3000 * time.Millisecond

// Context carries per-fragment attribute overrides keyed by fragment id.
type Context map[string]map[string]string

// Attributes are the resolved settings of one fragment tag.
type Attributes struct {
	ID      string
	Src     string
	Async   bool
	Primary bool
	Public  bool
	Timeout time.Duration
}

// ParseAttributes reads the fragment settings from tag. Entries in ctx keyed by
// the fragment id take precedence over the tag's own attributes.
func ParseAttributes(tag *tokenizer.Tag, ctx Context) Attributes {
	attrs := maps.Clone(tag.Attributes)
	if attrs == nil {
		attrs = map[string]string{}
	}
	id := attrs["id"]
	if id == "" {
		id = attrs["src"]
	}
	if override, ok := ctx[id]; ok {
		maps.Copy(attrs, override)
	}

	return Attributes{
		ID:      id,
		Src:     attrs["src"],
		Async:   flag(attrs, "async"),
		Primary: flag(attrs, "primary"),
		Public:  flag(attrs, "public"),
		Timeout: timeout(attrs["timeout"]),
	}
}

// flag treats a present attribute as set unless its value is "false".
func flag(attrs map[string]string, key string) bool {
	v, ok := attrs[key]
	if !ok {
		return false
	}
	return !strings.EqualFold(strings.TrimSpace(v), "false")
}

func timeout(ms string) time.Duration {
	n, err := strconv.Atoi(strings.TrimSpace(ms))
	if err != nil || n <= 0 {
		return DefaultTimeout
	}
	return time.Duration(n) * time.Millisecond
}
