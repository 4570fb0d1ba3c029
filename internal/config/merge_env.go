// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PAGESTREAM_"

// mergeEnvConfig applies PAGESTREAM_* overrides. Unset variables keep the
// value from the file or the defaults.
func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.ListenAddr = l.envString(EnvPrefix+"LISTEN_ADDR", cfg.ListenAddr)
	cfg.ShutdownTimeout = l.envDuration(EnvPrefix+"SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)

	cfg.Log.Level = l.envString(EnvPrefix+"LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = l.envString(EnvPrefix+"LOG_FORMAT", cfg.Log.Format)

	cfg.Templates.Dir = l.envString(EnvPrefix+"TEMPLATES_DIR", cfg.Templates.Dir)
	cfg.Templates.CacheTTL = l.envDuration(EnvPrefix+"TEMPLATES_CACHE_TTL", cfg.Templates.CacheTTL)
	cfg.Templates.Watch = l.envBool(EnvPrefix+"TEMPLATES_WATCH", cfg.Templates.Watch)
	cfg.Templates.Cache = l.envString(EnvPrefix+"TEMPLATES_CACHE", cfg.Templates.Cache)

	cfg.Fragments.Tag = l.envString(EnvPrefix+"FRAGMENT_TAG", cfg.Fragments.Tag)
	cfg.Fragments.SpecialTags = l.envList(EnvPrefix+"SPECIAL_TAGS", cfg.Fragments.SpecialTags)
	cfg.Fragments.PipeBeforeTags = l.envList(EnvPrefix+"PIPE_BEFORE_TAGS", cfg.Fragments.PipeBeforeTags)
	cfg.Fragments.ForwardHeaders = l.envList(EnvPrefix+"FORWARD_HEADERS", cfg.Fragments.ForwardHeaders)
	cfg.Fragments.CDNURL = l.envString(EnvPrefix+"CDN_URL", cfg.Fragments.CDNURL)
	cfg.Fragments.HeaderTimeout = l.envDuration(EnvPrefix+"FRAGMENT_HEADER_TIMEOUT", cfg.Fragments.HeaderTimeout)
	cfg.Fragments.PipeName = l.envString(EnvPrefix+"PIPE_NAME", cfg.Fragments.PipeName)
	cfg.Fragments.PipeLoader = l.envString(EnvPrefix+"PIPE_LOADER", cfg.Fragments.PipeLoader)
	cfg.Fragments.AllowedHosts = l.envList(EnvPrefix+"ALLOWED_HOSTS", cfg.Fragments.AllowedHosts)
	cfg.Fragments.AllowedCIDRs = l.envList(EnvPrefix+"ALLOWED_CIDRS", cfg.Fragments.AllowedCIDRs)
	cfg.Fragments.FetchRate = l.envFloat(EnvPrefix+"FRAGMENT_FETCH_RATE", cfg.Fragments.FetchRate)
	cfg.Fragments.FetchBurst = l.envInt(EnvPrefix+"FRAGMENT_FETCH_BURST", cfg.Fragments.FetchBurst)

	cfg.Context.File = l.envString(EnvPrefix+"CONTEXT_FILE", cfg.Context.File)
	cfg.Context.CacheTTL = l.envDuration(EnvPrefix+"CONTEXT_CACHE_TTL", cfg.Context.CacheTTL)
	cfg.Context.Redis.Addr = l.envString(EnvPrefix+"REDIS_ADDR", cfg.Context.Redis.Addr)
	cfg.Context.Redis.Password = l.envString(EnvPrefix+"REDIS_PASSWORD", cfg.Context.Redis.Password)
	cfg.Context.Redis.DB = l.envInt(EnvPrefix+"REDIS_DB", cfg.Context.Redis.DB)
	cfg.Context.Redis.Prefix = l.envString(EnvPrefix+"REDIS_PREFIX", cfg.Context.Redis.Prefix)

	cfg.SmartPipe = l.envString(EnvPrefix+"SMART_PIPE", cfg.SmartPipe)

	cfg.RateLimit.Enabled = l.envBool(EnvPrefix+"RATE_LIMIT_ENABLED", cfg.RateLimit.Enabled)
	cfg.RateLimit.Requests = l.envInt(EnvPrefix+"RATE_LIMIT_REQUESTS", cfg.RateLimit.Requests)
	cfg.RateLimit.Window = l.envDuration(EnvPrefix+"RATE_LIMIT_WINDOW", cfg.RateLimit.Window)
	cfg.RateLimit.Whitelist = l.envList(EnvPrefix+"RATE_LIMIT_WHITELIST", cfg.RateLimit.Whitelist)

	cfg.Metrics.Enabled = l.envBool(EnvPrefix+"METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Metrics.Path = l.envString(EnvPrefix+"METRICS_PATH", cfg.Metrics.Path)

	cfg.Tracing.Enabled = l.envBool(EnvPrefix+"TRACING_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.Exporter = l.envString(EnvPrefix+"TRACING_EXPORTER", cfg.Tracing.Exporter)
	cfg.Tracing.Endpoint = l.envString(EnvPrefix+"TRACING_ENDPOINT", cfg.Tracing.Endpoint)
	cfg.Tracing.ServiceName = l.envString(EnvPrefix+"TRACING_SERVICE_NAME", cfg.Tracing.ServiceName)
	cfg.Tracing.SampleRate = l.envFloat(EnvPrefix+"TRACING_SAMPLE_RATE", cfg.Tracing.SampleRate)
}
