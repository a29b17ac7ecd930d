package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/bpmn-lod-mapper/internal/adapters/http"
	"github.com/kirillkom/bpmn-lod-mapper/internal/bootstrap"
	"github.com/kirillkom/bpmn-lod-mapper/internal/config"
	"github.com/kirillkom/bpmn-lod-mapper/internal/observability/logging"
)

func main() {
	if err := config.LoadDotEnv(os.Getenv("ENV_FILE")); err != nil {
		slog.Error("env_file_load_failed", "error", err)
		os.Exit(1)
	}
	cfg := config.Load()

	logger := logging.NewJSONLogger("bpmn-api", cfg.LogLevel, logging.FileOptions{Path: cfg.LogFile})
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := httpadapter.LoadOpenAPI(ctx); err != nil {
		logger.Error("openapi_invalid", "error", err)
		os.Exit(1)
	}

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           app.Router().Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.APIShutdownSeconds)*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
	logger.Info("api_stopped")
}
