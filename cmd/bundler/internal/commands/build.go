package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/wolfeidau/assetpipe/internal/assets"
	"github.com/wolfeidau/assetpipe/internal/buildconfig"
	"github.com/wolfeidau/assetpipe/internal/devserver"
	"github.com/wolfeidau/assetpipe/internal/logger"
	"github.com/wolfeidau/assetpipe/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

type BuildCmd struct {
	Config  string   `help:"path to a YAML asset catalog" type:"existingfile" env:"ASSETPIPE_CONFIG"`
	BaseDir string   `help:"project directory catalog paths are relative to" default:"." env:"ASSETPIPE_BASE_DIR"`
	Addr    string   `help:"development server listen address" default:"localhost:35729" env:"ASSETPIPE_ADDR"`
	Origins []string `help:"origins allowed to load bundles from the development server" default:"*" env:"ASSETPIPE_ORIGINS"`
	Once    bool     `help:"exit after the first development build instead of watching" default:"false" env:"ASSETPIPE_ONCE"`
	Tracing bool     `help:"export traces and metrics over OTLP" default:"false" env:"ASSETPIPE_TRACING"`
}

func (c *BuildCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	log.Info().Str("version", globals.Version).Msg("Starting bundler")

	cfg, err := resolve(globals, c.Config)
	if err != nil {
		return err
	}

	if c.Tracing {
		shutdown, err := telemetry.InitTelemetry(ctx, "assetpipe", globals.Version)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without it")
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(shutdownCtx); err != nil {
					log.Error().Err(err).Msg("Failed to shutdown telemetry")
				}
			}()
		}
	}

	pipelineCfg := assets.DefaultConfig()
	pipelineCfg.BaseDir = c.BaseDir
	if cfg.HasPlugin(buildconfig.PluginLiveReload) {
		pipelineCfg.LiveReloadURL = "http://" + c.Addr + devserver.LiveReloadPath
	}

	pipeline, err := assets.New(pipelineCfg, cfg)
	if err != nil {
		return fmt.Errorf("failed to load assets pipeline: %w", err)
	}

	if !cfg.Mode.IsDevelopment() || c.Once {
		if err := pipeline.Build(ctx); err != nil {
			return fmt.Errorf("failed to build assets: %w", err)
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return pipeline.Watch(ctx)
	})

	if cfg.HasPlugin(buildconfig.PluginLiveReload) {
		hub := devserver.NewHub()
		pipeline.OnRebuild(func(assets.Manifest) {
			hub.Broadcast(devserver.ReloadEvent)
		})

		srv := devserver.New(devserver.Config{
			Addr:    c.Addr,
			Dir:     filepath.Join(c.BaseDir, cfg.Output.Dir),
			Origins: c.Origins,
		}, hub, pipeline.Handler("index", "assetpipe"), log)

		g.Go(func() error {
			return srv.Run(ctx)
		})
	}

	return g.Wait()
}
