// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"github.com/ManuGH/pagestream/internal/config"
	xglog "github.com/ManuGH/pagestream/internal/log"
)

var (
	version   = "v0.1.0"
	commit    = "none"
	buildDate = "unknown"
)

const serviceName = "pagestream"

func newApp(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:            serviceName,
		Usage:           "streams pages composed from independently rendered fragments",
		Version:         fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		HideHelpCommand: true,
		Writer:          stdout,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "load configuration from `FILE` (YAML)"},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serves composed pages over HTTP",
				Action: serve,
			},
			{
				Name:      "render",
				Usage:     "Composes a single page and writes it out",
				ArgsUsage: "PATH",
				Action:    render(stdout),
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "write the page to `FILE` instead of STDOUT"},
					&cli.StringSliceFlag{Name: "header", Aliases: []string{"H"}, Usage: "request `HEADER` as \"Name: value\", repeatable"},
				},
			},
		},
	}
}

// loadConfig loads the configuration and reconfigures the global logger with it.
func loadConfig(cmd *cli.Command) (*config.Loader, config.AppConfig, error) {
	path := cmd.String("config")
	loader := config.NewLoader(path, version)
	cfg, err := loader.Load()
	if err != nil {
		return nil, cfg, err
	}
	configureLogging(cfg)

	logger := xglog.WithComponent("main")
	if path != "" {
		logger.Info().Str(xglog.FieldEvent, "config.loaded").Str("source", "file").Str("path", path).
			Msg("loaded configuration from file")
	} else {
		logger.Info().Str(xglog.FieldEvent, "config.loaded").Str("source", "env+defaults").
			Msg("loaded configuration from environment and defaults")
	}
	if unknown := loader.UnknownEnvKeys(os.Environ()); len(unknown) > 0 {
		logger.Warn().Strs("keys", unknown).Str(xglog.FieldEvent, "config.unknown_env").
			Msg("ignoring unknown environment variables")
	}
	return loader, cfg, nil
}

func configureLogging(cfg config.AppConfig) {
	xglog.Configure(xglog.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: serviceName,
		Version: version,
	})
}

func main() {
	// Safe defaults until the configuration is loaded.
	xglog.Configure(xglog.Config{Level: "info", Service: serviceName, Version: version})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newApp(os.Stdout).Run(ctx, os.Args)
	stop()
	if err != nil {
		logger := xglog.WithComponent("main")
		logger.Error().Err(err).Str(xglog.FieldEvent, "exit.error").Msg("pagestream failed")
		os.Exit(1)
	}
}
