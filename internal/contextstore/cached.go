// SPDX-License-Identifier: MIT

package contextstore

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/pagestream/internal/cache"
	"github.com/ManuGH/pagestream/internal/fragment"
	xglog "github.com/ManuGH/pagestream/internal/log"
)

// Cached memoizes another Source. Failed lookups are not cached.
type Cached struct {
	src    Source
	cache  cache.Cache
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCached wraps src with c; entries live for ttl.
func NewCached(src Source, c cache.Cache, ttl time.Duration) *Cached {
	return &Cached{src: src, cache: c, ttl: ttl, logger: xglog.WithComponent("contextstore")}
}

// Context returns the cached context for path, consulting the source on a miss.
func (c *Cached) Context(ctx context.Context, path string) (fragment.Context, error) {
	if b, ok := c.cache.Get(path); ok {
		fc, err := decode(b)
		if err == nil {
			return fc, nil
		}
		c.logger.Warn().Err(err).Str(xglog.FieldPath, path).Msg("dropping undecodable cached context")
		c.cache.Delete(path)
	}

	fc, err := c.src.Context(ctx, path)
	if err != nil {
		return nil, err
	}
	if b, err := encode(fc); err == nil {
		c.cache.Set(path, b, c.ttl)
	}
	return fc, nil
}
