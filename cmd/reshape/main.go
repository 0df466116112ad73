// Command reshape turns the downloaded point files into the tornado and
// random-point sounding tables, with a derived netCDF checkpoint for each.
package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/era5-sounding/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/era5-sounding/internal/adapter/kafka"
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
		logger.Error("reshape stage failed", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	metrics := observability.NewMetrics()

	// Kafka publishing is optional (KAFKA_BROKERS).
	var sink pipeline.ProfileSink
	if cfg.KafkaEnabled() {
		writer := kafkaadapter.NewWriter(cfg, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		sink = writer
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaProfileTopic)
	}

	outputs := func(collection string) pipeline.Output {
		basename := cfg.Basename(collection)
		return pipeline.Output{
			Checkpoint: cfg.CheckpointPath(basename),
			Table:      cfg.TablePath(basename),
		}
	}
	reshaper := pipeline.NewReshaper(cfg.PointDir, outputs, sink, logger, metrics, clockwork.NewRealClock())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown := httpadapter.StartBackground(cfg.HTTPAddr, reshaper, nil, logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if cfg.PushgatewayURL != "" {
			if err := observability.Push(shutdownCtx, cfg.PushgatewayURL, "reshape", metrics); err != nil {
				logger.Error("metrics push failed", "error", err)
			}
		}
		shutdown(shutdownCtx)
	}()

	return reshaper.Run(ctx)
}
