// Command gridfetch downloads the ERA5 pressure-level grid over Germany at
// every catalog event hour. Files already on disk are not fetched again.
package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/era5-sounding/internal/adapter/cds"
	httpadapter "github.com/couchcryptid/era5-sounding/internal/adapter/http"
	"github.com/couchcryptid/era5-sounding/internal/catalog"
	"github.com/couchcryptid/era5-sounding/internal/config"
	"github.com/couchcryptid/era5-sounding/internal/observability"
	"github.com/couchcryptid/era5-sounding/internal/pipeline"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	if err := run(cfg, logger); err != nil {
		logger.Error("grid stage failed", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	if err := cfg.GridBox.Validate(); err != nil {
		return err
	}

	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	creds, err := cds.LoadCredentials(cfg.CDSURL, cfg.CDSKey, cfg.CDSRCPath)
	if err != nil {
		return err
	}
	client := cds.NewClient(creds, cfg.CDSTimeout, cfg.CDSPollInterval, clock, logger)
	retriever := cds.NewRateLimited(client, cfg.CDSRequestsPerSecond)

	fetcher := pipeline.NewGridFetcher(retriever, cfg.GridBox, cfg.GridDir, logger, metrics, clock)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown := httpadapter.StartBackground(cfg.HTTPAddr, fetcher, fetcher, logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if cfg.PushgatewayURL != "" {
			if err := observability.Push(shutdownCtx, cfg.PushgatewayURL, "gridfetch", metrics); err != nil {
				logger.Error("metrics push failed", "error", err)
			}
		}
		shutdown(shutdownCtx)
	}()

	events, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return err
	}
	return fetcher.Run(ctx, events)
}
