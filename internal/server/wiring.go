// SPDX-License-Identifier: MIT

package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/ManuGH/pagestream/internal/cache"
	"github.com/ManuGH/pagestream/internal/compose"
	"github.com/ManuGH/pagestream/internal/config"
	"github.com/ManuGH/pagestream/internal/contextstore"
	"github.com/ManuGH/pagestream/internal/fragment"
	"github.com/ManuGH/pagestream/internal/headers"
	xglog "github.com/ManuGH/pagestream/internal/log"
	"github.com/ManuGH/pagestream/internal/metrics"
	"github.com/ManuGH/pagestream/internal/platform/httpx"
	platformnet "github.com/ManuGH/pagestream/internal/platform/net"
	"github.com/ManuGH/pagestream/internal/tags"
	"github.com/ManuGH/pagestream/internal/telemetry"
	"github.com/ManuGH/pagestream/internal/template"
	"github.com/ManuGH/pagestream/internal/tokenizer"
)

const cacheSweepInterval = time.Minute

// newTemplateStore builds the template store with a cache in front of the
// directory. A zero TTL disables caching; the redis backend shares client.
func newTemplateStore(cfg config.TemplatesConfig, client *redis.Client) (*template.Store, cache.Cache) {
	var c cache.Cache
	switch {
	case cfg.CacheTTL <= 0:
		c = cache.NewNoOpCache()
	case cfg.Cache == config.TemplateCacheRedis && client != nil:
		c = cache.NewRedisCacheFromClient(client, config.DefaultTemplatePrefix, xglog.WithComponent("template"))
	default:
		c = cache.NewMemoryCache(cacheSweepInterval)
	}
	store := template.NewStore(cfg.Dir, c, cfg.CacheTTL)
	store.OnLookup = metrics.TemplateCacheLookup
	return store, c
}

// contextSource layers the static file under Redis and memoizes the result.
// It returns a nil source when neither is configured.
type contextSource struct {
	source contextstore.Source
	redis  *redis.Client
	cache  cache.Cache
}

func newContextSource(cfg config.ContextConfig) (*contextSource, error) {
	var layers contextstore.Layered
	out := &contextSource{}

	if cfg.File != "" {
		static, err := contextstore.LoadFile(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("load context file: %w", err)
		}
		layers = append(layers, static)
	}
	if cfg.Redis.Addr != "" {
		out.redis = cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		layers = append(layers, contextstore.NewRedis(out.redis, cfg.Redis.Prefix))
	}

	switch len(layers) {
	case 0:
		return out, nil
	case 1:
		out.source = layers[0]
	default:
		out.source = layers
	}
	if cfg.CacheTTL > 0 {
		out.cache = cache.NewMemoryCache(cacheSweepInterval)
		out.source = contextstore.NewCached(out.source, out.cache, cfg.CacheTTL)
	}
	return out, nil
}

func (c *contextSource) fetcher() compose.ContextFetcher {
	if c.source == nil {
		return nil
	}
	return contextstore.Fetcher(c.source)
}

// cdnResolver resolves stylesheet URLs against base. Absolute URLs and an
// empty base are returned unchanged.
func cdnResolver(base string) (func(string) string, error) {
	if base == "" {
		return nil, nil
	}
	b, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse CDN URL: %w", err)
	}
	return func(u string) string {
		ref, err := url.Parse(u)
		if err != nil {
			return u
		}
		return b.ResolveReference(ref).String()
	}, nil
}

// newTokenizer treats the fragment tag, every tag with a renderer and the
// configured pass-through tags as special.
func newTokenizer(cfg config.FragmentsConfig, handler *tags.Handler) *tokenizer.Tokenizer {
	special := []string{cfg.Tag}
	special = append(special, handler.Names()...)
	special = append(special, cfg.SpecialTags...)
	return tokenizer.New(tokenizer.Config{
		SpecialTags:          special,
		InsertPipeBeforeTags: cfg.PipeBeforeTags,
	})
}

// composeOptions assembles the orchestrator from the configuration.
func composeOptions(cfg config.AppConfig, store *template.Store, contexts *contextSource, decide func(*http.Request) bool) (compose.Options, error) {
	cdn, err := cdnResolver(cfg.Fragments.CDNURL)
	if err != nil {
		return compose.Options{}, err
	}

	policy, err := platformnet.NewSourcePolicy(cfg.Fragments.AllowedHosts, cfg.Fragments.AllowedCIDRs)
	if err != nil {
		return compose.Options{}, err
	}
	var clientOpts []httpx.Option
	if !policy.Open() {
		clientOpts = append(clientOpts, httpx.WithDialGuard(policy.DialContext))
	}
	var fetcher fragment.Fetcher = fragment.NewHTTPFetcher(httpx.NewStreamingClient(cfg.Fragments.HeaderTimeout, clientOpts...))
	if cfg.Fragments.FetchRate > 0 {
		fetcher = &limitedFetcher{
			limiter: rate.NewLimiter(rate.Limit(cfg.Fragments.FetchRate), max(cfg.Fragments.FetchBurst, 1)),
			next:    fetcher,
		}
	}
	fetcher = &policyFetcher{policy: policy, next: fetcher}

	tagHandler := tags.NewHandler(tags.PipeScript(cfg.Fragments.PipeName, cfg.Fragments.PipeLoader))
	for name, markup := range cfg.Fragments.Tags {
		tagHandler.Register(name, tags.Static(markup))
	}
	filter := headers.NewFilter(cfg.Fragments.ForwardHeaders...)

	return compose.Options{
		FetchContext:   contexts.fetcher(),
		FetchTemplate:  store.Fetch,
		Tokenizer:      newTokenizer(cfg.Fragments, tagHandler),
		FilterHeaders:  filter.Apply,
		CDNURL:         cdn,
		HandleTag:      tagHandler.Visit,
		FragmentTag:    cfg.Fragments.Tag,
		ForceSmartPipe: decide,
		Fetcher:        fetcher,
		Observer: compose.Observers(
			compose.LogObserver(),
			metricsObserver(cfg.Metrics.Enabled),
			telemetry.NewSpanObserver(),
		),
	}, nil
}

// policyFetcher refuses fragment sources outside the allowlist. The refusal
// fails the fragment like any other fetch error.
type policyFetcher struct {
	policy *platformnet.SourcePolicy
	next   fragment.Fetcher
}

func (f *policyFetcher) Fetch(ctx context.Context, src string, header http.Header) (*http.Response, error) {
	if err := f.policy.Allow(ctx, src); err != nil {
		return nil, err
	}
	return f.next.Fetch(ctx, src, header)
}

// limitedFetcher waits for a token before each fetch. The wait counts
// against the fragment timeout.
type limitedFetcher struct {
	limiter *rate.Limiter
	next    fragment.Fetcher
}

func (f *limitedFetcher) Fetch(ctx context.Context, src string, header http.Header) (*http.Response, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("fragment fetch rate: %w", err)
	}
	return f.next.Fetch(ctx, src, header)
}

func metricsObserver(enabled bool) compose.Observer {
	if !enabled {
		return nil
	}
	return metrics.NewObserver()
}
