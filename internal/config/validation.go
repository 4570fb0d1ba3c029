// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"net/netip"
	"slices"
	"strings"
	"time"

	platformnet "github.com/ManuGH/pagestream/internal/platform/net"
	"github.com/ManuGH/pagestream/internal/smartpipe"
	"github.com/ManuGH/pagestream/internal/validate"
)

// Validate validates a AppConfig using the centralized validation package
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.ListenAddr("listenAddr", cfg.ListenAddr)
	v.DurationRange("shutdownTimeout", cfg.ShutdownTimeout, time.Second, 5*time.Minute)

	v.LogLevel("log.level", cfg.Log.Level)
	v.OneOf("log.format", cfg.Log.Format, []string{"json", "console"})

	v.Directory("templates.dir", cfg.Templates.Dir)
	if cfg.Templates.CacheTTL < 0 {
		v.AddError("templates.cacheTTL", "cannot be negative", cfg.Templates.CacheTTL)
	}
	v.OneOf("templates.cache", cfg.Templates.Cache, []string{TemplateCacheMemory, TemplateCacheRedis})
	if cfg.Templates.Cache == TemplateCacheRedis && cfg.Context.Redis.Addr == "" {
		v.AddError("templates.cache", "redis requires context.redis.addr", cfg.Templates.Cache)
	}

	v.NotEmpty("fragments.tag", cfg.Fragments.Tag)
	for _, name := range cfg.Fragments.SpecialTags {
		if strings.EqualFold(name, cfg.Fragments.Tag) {
			v.AddError("fragments.specialTags", "must not repeat the fragment tag", name)
		}
	}
	for name, markup := range cfg.Fragments.Tags {
		switch {
		case name == "" || strings.EqualFold(name, cfg.Fragments.Tag):
			v.AddError("fragments.tags", "tag name must be set and differ from the fragment tag", name)
		case slices.ContainsFunc(cfg.Fragments.SpecialTags, func(s string) bool { return strings.EqualFold(s, name) }):
			v.AddError("fragments.tags", "tag is already listed in fragments.specialTags", name)
		case markup == "":
			v.AddError("fragments.tags", "markup must not be empty", name)
		}
	}
	if cfg.Fragments.CDNURL != "" {
		v.URL("fragments.cdnURL", cfg.Fragments.CDNURL, []string{"http", "https"})
	}
	if _, err := platformnet.NewSourcePolicy(cfg.Fragments.AllowedHosts, cfg.Fragments.AllowedCIDRs); err != nil {
		v.AddError("fragments.allowedHosts", err.Error(), nil)
	}
	if cfg.Fragments.FetchRate < 0 {
		v.AddError("fragments.fetchRate", "cannot be negative", cfg.Fragments.FetchRate)
	}
	if cfg.Fragments.FetchRate > 0 {
		v.Positive("fragments.fetchBurst", cfg.Fragments.FetchBurst)
	}
	v.DurationRange("fragments.headerTimeout", cfg.Fragments.HeaderTimeout, 10*time.Millisecond, time.Minute)

	v.File("context.file", cfg.Context.File)
	if cfg.Context.CacheTTL < 0 {
		v.AddError("context.cacheTTL", "cannot be negative", cfg.Context.CacheTTL)
	}
	if cfg.Context.Redis.Addr != "" {
		v.HostPort("context.redis.addr", cfg.Context.Redis.Addr)
		v.Range("context.redis.db", cfg.Context.Redis.DB, 0, 15)
	}

	v.Custom("smartPipe", cfg.SmartPipe, func(any) error {
		_, err := smartpipe.Compile(cfg.SmartPipe)
		return err
	})

	if cfg.RateLimit.Enabled {
		v.Positive("rateLimit.requests", cfg.RateLimit.Requests)
		v.DurationRange("rateLimit.window", cfg.RateLimit.Window, time.Second, time.Hour)
		for _, cidr := range cfg.RateLimit.Whitelist {
			if _, err := netip.ParsePrefix(cidr); err != nil {
				v.AddError("rateLimit.whitelist", "must be a CIDR", cidr)
			}
		}
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		v.AddError("metrics.path", "must start with /", cfg.Metrics.Path)
	}

	if cfg.Tracing.Enabled {
		v.OneOf("tracing.exporter", cfg.Tracing.Exporter, []string{"grpc", "http"})
		v.NotEmpty("tracing.endpoint", cfg.Tracing.Endpoint)
		v.NotEmpty("tracing.serviceName", cfg.Tracing.ServiceName)
		if cfg.Tracing.SampleRate < 0 || cfg.Tracing.SampleRate > 1 {
			v.AddError("tracing.sampleRate", "must be between 0 and 1", cfg.Tracing.SampleRate)
		}
	}

	return v.Err()
}
