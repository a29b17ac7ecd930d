package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/bpmn-lod-mapper/internal/bootstrap"
	"github.com/kirillkom/bpmn-lod-mapper/internal/config"
	"github.com/kirillkom/bpmn-lod-mapper/internal/infrastructure/queue/nats"
	"github.com/kirillkom/bpmn-lod-mapper/internal/observability/logging"
)

func main() {
	if err := config.LoadDotEnv(os.Getenv("ENV_FILE")); err != nil {
		slog.Error("env_file_load_failed", "error", err)
		os.Exit(1)
	}
	cfg := config.Load()

	logger := logging.NewJSONLogger("bpmn-worker", cfg.LogLevel, logging.FileOptions{Path: cfg.LogFile})
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := validateConfig(cfg); err != nil {
		logger.Error("worker_config_invalid", "error", err)
		os.Exit(1)
	}

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeUploadRegistered(ctx, func(handlerCtx context.Context, event nats.UploadRegistered) error {
		lookupCtx, cancel := context.WithTimeout(handlerCtx, cfg.StoreTimeout()+5*time.Second)
		defer cancel()

		desc, err := app.GetUC.GetByID(lookupCtx, event.UploadID, event.UploadURI)
		if err != nil {
			return err
		}
		logger.Info("upload_audited",
			"upload_id", desc.ID,
			"name", desc.Name,
			"format", desc.Format,
			"size", desc.Size,
			"registered_at", event.RegisteredAt,
			"lag_ms", time.Since(event.RegisteredAt).Milliseconds(),
		)
		return nil
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}

// validateConfig rejects settings under which audits cannot succeed. The
// memory store lives inside the API process, so a worker would only ever see
// its own empty copy.
func validateConfig(cfg config.Config) error {
	if cfg.NATSURL == "" {
		return errors.New("NATS_URL is required")
	}
	if cfg.StoreBackend == config.StoreMemory {
		return errors.New("STORE_BACKEND=memory is not shared with the API; use sparql or postgres")
	}
	return nil
}
