// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// Default values.
const (
	DefaultListenAddr      = ":8080"
	DefaultShutdownTimeout = 15 * time.Second
	DefaultTemplatesDir    = "templates"
	DefaultTemplateTTL     = 5 * time.Minute
	DefaultFragmentTag     = "fragment"
	DefaultHeaderTimeout   = 3 * time.Second
	DefaultContextCacheTTL = 30 * time.Second
	DefaultRedisPrefix     = "pagestream:context:"
	DefaultMetricsPath     = "/metrics"
	DefaultTemplatePrefix  = "pagestream:template:"
	DefaultFetchBurst      = 50
)

// Template cache backends.
const (
	TemplateCacheMemory = "memory"
	TemplateCacheRedis  = "redis"
)

func (l *Loader) setDefaults(cfg *AppConfig) error {
	cfg.ListenAddr = DefaultListenAddr
	cfg.ShutdownTimeout = DefaultShutdownTimeout

	cfg.Log = LogConfig{Level: "info", Format: "json"}

	cfg.Templates = TemplatesConfig{
		Dir:      DefaultTemplatesDir,
		CacheTTL: DefaultTemplateTTL,
		Watch:    true,
		Cache:    TemplateCacheMemory,
	}

	cfg.Fragments = FragmentsConfig{
		Tag:            DefaultFragmentTag,
		PipeBeforeTags: []string{"script"},
		HeaderTimeout:  DefaultHeaderTimeout,
		PipeName:       "Pipe",
		FetchBurst:     DefaultFetchBurst,
	}

	cfg.Context = ContextConfig{
		CacheTTL: DefaultContextCacheTTL,
		Redis:    RedisConfig{Prefix: DefaultRedisPrefix},
	}

	cfg.RateLimit = RateLimitConfig{Requests: 600, Window: time.Minute}
	cfg.Metrics = MetricsConfig{Enabled: true, Path: DefaultMetricsPath}
	cfg.Tracing = TracingConfig{
		Exporter:    "grpc",
		Endpoint:    "localhost:4317",
		ServiceName: "pagestream",
		SampleRate:  1.0,
	}
	return nil
}
