// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"

	"github.com/ManuGH/pagestream/internal/config"
	"github.com/ManuGH/pagestream/internal/health"
	xglog "github.com/ManuGH/pagestream/internal/log"
	"github.com/ManuGH/pagestream/internal/server"
	"github.com/ManuGH/pagestream/internal/telemetry"
)

func serve(ctx context.Context, cmd *cli.Command) (err error) {
	loader, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := xglog.WithComponent("main")

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		return fmt.Errorf("startup checks: %w", err)
	}

	provider, err := telemetry.NewProvider(ctx, telemetry.FromConfig(cfg.Tracing, version))
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}

	srv, err := server.New(cfg, version)
	if err != nil {
		return multierr.Append(err, provider.Shutdown(context.WithoutCancel(ctx)))
	}

	holder := config.NewConfigHolder(cfg, loader, cmd.String("config"))
	if cmd.String("config") != "" {
		if err := holder.StartWatcher(ctx); err != nil {
			logger.Warn().Err(err).Str(xglog.FieldEvent, "config.watch_failed").
				Msg("config hot reload unavailable")
		}
	}
	defer func() {
		holder.Stop()
		err = multierr.Combine(err, srv.Close(), provider.Shutdown(context.WithoutCancel(ctx)))
	}()

	updates := make(chan config.AppConfig, 1)
	holder.RegisterListener(updates)
	go applyUpdates(ctx, updates, srv)

	logger.Info().
		Str(xglog.FieldEvent, "startup").
		Str("version", version).
		Str("commit", commit).
		Str("build_date", buildDate).
		Str("addr", cfg.ListenAddr).
		Msg("starting pagestream")

	return srv.Run(ctx)
}

// applyUpdates hands reloaded configuration to the running server.
func applyUpdates(ctx context.Context, updates <-chan config.AppConfig, srv *server.Server) {
	logger := xglog.WithComponent("main")
	for {
		select {
		case <-ctx.Done():
			return
		case cfg := <-updates:
			configureLogging(cfg)
			if err := srv.ApplyConfig(cfg); err != nil {
				logger.Error().Err(err).Str(xglog.FieldEvent, "config.apply_failed").
					Msg("reloaded configuration rejected")
			}
		}
	}
}
