// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"maps"
	"time"
)

// mergeFileConfig applies every value present in the file on top of cfg.
func (l *Loader) mergeFileConfig(cfg *AppConfig, src *FileConfig) error {
	setString(&cfg.ListenAddr, src.ListenAddr)
	if err := setDuration(&cfg.ShutdownTimeout, "shutdownTimeout", src.ShutdownTimeout); err != nil {
		return err
	}

	if src.Log != nil {
		setString(&cfg.Log.Level, src.Log.Level)
		setString(&cfg.Log.Format, src.Log.Format)
	}

	if t := src.Templates; t != nil {
		setString(&cfg.Templates.Dir, expandEnv(t.Dir))
		if err := setDuration(&cfg.Templates.CacheTTL, "templates.cacheTTL", t.CacheTTL); err != nil {
			return err
		}
		setBool(&cfg.Templates.Watch, t.Watch)
		setString(&cfg.Templates.Cache, t.Cache)
	}

	if f := src.Fragments; f != nil {
		setString(&cfg.Fragments.Tag, f.Tag)
		setList(&cfg.Fragments.SpecialTags, f.SpecialTags)
		setList(&cfg.Fragments.PipeBeforeTags, f.PipeBeforeTags)
		setList(&cfg.Fragments.ForwardHeaders, f.ForwardHeaders)
		setString(&cfg.Fragments.CDNURL, f.CDNURL)
		if err := setDuration(&cfg.Fragments.HeaderTimeout, "fragments.headerTimeout", f.HeaderTimeout); err != nil {
			return err
		}
		setString(&cfg.Fragments.PipeName, f.PipeName)
		setString(&cfg.Fragments.PipeLoader, f.PipeLoader)
		setList(&cfg.Fragments.AllowedHosts, f.AllowedHosts)
		setList(&cfg.Fragments.AllowedCIDRs, f.AllowedCIDRs)
		if f.FetchRate != nil {
			cfg.Fragments.FetchRate = *f.FetchRate
		}
		if f.FetchBurst != nil {
			cfg.Fragments.FetchBurst = *f.FetchBurst
		}
		if f.Tags != nil {
			cfg.Fragments.Tags = maps.Clone(f.Tags)
		}
	}

	if c := src.Context; c != nil {
		setString(&cfg.Context.File, expandEnv(c.File))
		if err := setDuration(&cfg.Context.CacheTTL, "context.cacheTTL", c.CacheTTL); err != nil {
			return err
		}
		if r := c.Redis; r != nil {
			setString(&cfg.Context.Redis.Addr, r.Addr)
			setString(&cfg.Context.Redis.Password, expandEnv(r.Password))
			if r.DB != nil {
				cfg.Context.Redis.DB = *r.DB
			}
			setString(&cfg.Context.Redis.Prefix, r.Prefix)
		}
	}

	if src.SmartPipe != nil {
		cfg.SmartPipe = *src.SmartPipe
	}

	if r := src.RateLimit; r != nil {
		setBool(&cfg.RateLimit.Enabled, r.Enabled)
		if r.Requests != nil {
			cfg.RateLimit.Requests = *r.Requests
		}
		if err := setDuration(&cfg.RateLimit.Window, "rateLimit.window", r.Window); err != nil {
			return err
		}
		setList(&cfg.RateLimit.Whitelist, r.Whitelist)
	}

	if m := src.Metrics; m != nil {
		setBool(&cfg.Metrics.Enabled, m.Enabled)
		setString(&cfg.Metrics.Path, m.Path)
	}

	if t := src.Tracing; t != nil {
		setBool(&cfg.Tracing.Enabled, t.Enabled)
		setString(&cfg.Tracing.Exporter, t.Exporter)
		setString(&cfg.Tracing.Endpoint, t.Endpoint)
		setString(&cfg.Tracing.ServiceName, t.ServiceName)
		if t.SampleRate != nil {
			cfg.Tracing.SampleRate = *t.SampleRate
		}
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setList(dst *[]string, v []string) {
	if v != nil {
		*dst = append([]string(nil), v...)
	}
}

func setDuration(dst *time.Duration, field, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q: %w", field, v, err)
	}
	*dst = d
	return nil
}
