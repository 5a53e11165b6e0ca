// Package main serves the REST API over plain HTTP for local and container deployments.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"socialcore/infrastructure/config"
	"socialcore/infrastructure/di"
	"socialcore/interfaces/http/rest"

	"go.uber.org/zap"
)

const shutdownGrace = 30 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatal(err)
	}
}

// run serves until ctx is cancelled or the listener fails, then drains in-flight
// requests and flushes the container.
func run(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	container, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		return err
	}
	logger := container.Logger

	srv := &http.Server{
		Addr: cfg.ServerAddress,
		Handler: rest.NewRouter(
			container.CommandBus,
			container.QueryBus,
			container.RateLimiter,
			container.Metrics,
			cfg,
			logger,
		).Setup(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("API listening",
			zap.String("address", cfg.ServerAddress),
			zap.String("environment", cfg.Environment),
			zap.String("store", cfg.StoreBackend),
		)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Listener stopped", zap.Error(err))
			container.Shutdown(context.Background())
			return err
		}
	case <-ctx.Done():
		logger.Info("Draining connections", zap.Duration("grace", shutdownGrace))
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		logger.Warn("Drain incomplete", zap.Error(err))
	}
	container.Shutdown(drainCtx)
	return nil
}
