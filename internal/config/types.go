// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// AppConfig is the effective configuration of the service.
type AppConfig struct {
	Version         string
	ListenAddr      string
	ShutdownTimeout time.Duration

	Log       LogConfig
	Templates TemplatesConfig
	Fragments FragmentsConfig
	Context   ContextConfig
	SmartPipe string
	RateLimit RateLimitConfig
	Metrics   MetricsConfig
	Tracing   TracingConfig
}

// LogConfig selects level and output format.
type LogConfig struct {
	Level  string
	Format string
}

// TemplatesConfig locates page templates.
type TemplatesConfig struct {
	Dir      string
	CacheTTL time.Duration
	Watch    bool
	// Cache is "memory" or "redis". The redis cache shares the connection
	// of context.redis.
	Cache string
}

// FragmentsConfig controls fragment recognition and fetching.
type FragmentsConfig struct {
	Tag            string
	SpecialTags    []string
	PipeBeforeTags []string
	ForwardHeaders []string
	CDNURL         string
	HeaderTimeout  time.Duration
	PipeName       string
	PipeLoader     string
	// AllowedHosts and AllowedCIDRs restrict fragment sources. Both empty
	// allows any http(s) source.
	AllowedHosts []string
	AllowedCIDRs []string
	// FetchRate caps fragment fetches per second across all pages; zero
	// disables the cap. FetchBurst is the bucket size.
	FetchRate  float64
	FetchBurst int
	// Tags maps special tag names to markup that replaces every occurrence.
	// $name and ${name} expand to the tag's attribute values.
	Tags map[string]string
}

// ContextConfig selects the fragment context sources. Both may be set; Redis
// entries override the file.
type ContextConfig struct {
	File     string
	CacheTTL time.Duration
	Redis    RedisConfig
}

// RedisConfig addresses the Redis context store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RateLimitConfig bounds requests per client IP.
type RateLimitConfig struct {
	Enabled  bool
	Requests int
	Window   time.Duration
	// Whitelist lists CIDRs that bypass the limit.
	Whitelist []string
}

// MetricsConfig exposes Prometheus metrics.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// TracingConfig configures the OpenTelemetry exporter.
type TracingConfig struct {
	Enabled     bool
	Exporter    string
	Endpoint    string
	ServiceName string
	SampleRate  float64
}

// FileConfig is the YAML file shape. Pointer fields distinguish "unset" from
// an explicit zero value.
type FileConfig struct {
	ListenAddr      string              `yaml:"listenAddr"`
	ShutdownTimeout string              `yaml:"shutdownTimeout"`
	Log             *FileLogConfig      `yaml:"log"`
	Templates       *FileTemplateConfig `yaml:"templates"`
	Fragments       *FileFragmentConfig `yaml:"fragments"`
	Context         *FileContextConfig  `yaml:"context"`
	SmartPipe       *string             `yaml:"smartPipe"`
	RateLimit       *FileRateLimit      `yaml:"rateLimit"`
	Metrics         *FileMetricsConfig  `yaml:"metrics"`
	Tracing         *FileTracingConfig  `yaml:"tracing"`
}

type FileLogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type FileTemplateConfig struct {
	Dir      string `yaml:"dir"`
	CacheTTL string `yaml:"cacheTTL"`
	Watch    *bool  `yaml:"watch"`
	Cache    string `yaml:"cache"`
}

type FileFragmentConfig struct {
	Tag            string            `yaml:"tag"`
	SpecialTags    []string          `yaml:"specialTags"`
	PipeBeforeTags []string          `yaml:"pipeBeforeTags"`
	ForwardHeaders []string          `yaml:"forwardHeaders"`
	CDNURL         string            `yaml:"cdnURL"`
	HeaderTimeout  string            `yaml:"headerTimeout"`
	PipeName       string            `yaml:"pipeName"`
	PipeLoader     string            `yaml:"pipeLoader"`
	AllowedHosts   []string          `yaml:"allowedHosts"`
	AllowedCIDRs   []string          `yaml:"allowedCIDRs"`
	FetchRate      *float64          `yaml:"fetchRate"`
	FetchBurst     *int              `yaml:"fetchBurst"`
	Tags           map[string]string `yaml:"tags"`
}

type FileContextConfig struct {
	File     string           `yaml:"file"`
	CacheTTL string           `yaml:"cacheTTL"`
	Redis    *FileRedisConfig `yaml:"redis"`
}

type FileRedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       *int   `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type FileRateLimit struct {
	Enabled   *bool    `yaml:"enabled"`
	Requests  *int     `yaml:"requests"`
	Window    string   `yaml:"window"`
	Whitelist []string `yaml:"whitelist"`
}

type FileMetricsConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type FileTracingConfig struct {
	Enabled     *bool    `yaml:"enabled"`
	Exporter    string   `yaml:"exporter"`
	Endpoint    string   `yaml:"endpoint"`
	ServiceName string   `yaml:"serviceName"`
	SampleRate  *float64 `yaml:"sampleRate"`
}
