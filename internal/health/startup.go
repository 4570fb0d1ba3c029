// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/ManuGH/pagestream/internal/config"
	"github.com/ManuGH/pagestream/internal/log"
)

// PerformStartupChecks validates the environment before the server starts.
func PerformStartupChecks(_ context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	if err := checkTemplateDir(logger, cfg.Templates.Dir); err != nil {
		return fmt.Errorf("template directory check failed: %w", err)
	}
	if err := checkTargetedValidations(logger, cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	logger.Info().Msg("all startup checks passed")
	return nil
}

func checkTemplateDir(logger zerolog.Logger, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("directory does not exist: %s", path)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("directory is not readable: %s (error: %v)", path, err)
	}
	if len(entries) == 0 {
		logger.Warn().Str(log.FieldPath, path).Msg("template directory is empty; every page will answer 404")
	}

	logger.Info().Str(log.FieldPath, path).Msg("template directory is readable")
	return nil
}

func checkTargetedValidations(logger zerolog.Logger, cfg config.AppConfig) error {
	if cfg.ListenAddr != "" {
		_, port, err := net.SplitHostPort(cfg.ListenAddr)
		if err != nil {
			return fmt.Errorf("invalid listen address %q: %w", cfg.ListenAddr, err)
		}
		portNum, err := strconv.Atoi(port)
		if err != nil || portNum < 0 || portNum > 65535 {
			return fmt.Errorf("invalid listen port %q in %q", port, cfg.ListenAddr)
		}
	}

	if cfg.Fragments.CDNURL != "" {
		u, err := url.Parse(cfg.Fragments.CDNURL)
		if err != nil {
			return fmt.Errorf("invalid CDN URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("CDN URL scheme must be http or https, got: %s", u.Scheme)
		}
	}

	if cfg.Context.File != "" {
		if err := checkFileReadable(cfg.Context.File); err != nil {
			return fmt.Errorf("context file error: %w", err)
		}
	}

	if cfg.Context.Redis.Addr == "" && cfg.Context.File == "" {
		logger.Info().Msg("no context source configured; fragments use template attributes only")
	}
	return nil
}

func checkFileReadable(path string) error {
	f, err := os.Open(path) // #nosec G304 -- path comes from operator config
	if err != nil {
		return err
	}
	return f.Close()
}
