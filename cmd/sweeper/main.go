// Package main removes expired stories. Deployed as a Lambda it runs once per scheduled
// event; run locally it sweeps on an interval until interrupted.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"socialcore/application/commands"
	"socialcore/infrastructure/config"
	"socialcore/infrastructure/di"
	"socialcore/infrastructure/persistence/lock"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"
)

const (
	defaultInterval = time.Minute
	lockResource    = "expire-stories"
)

var (
	container *di.Container
	owner     string
	interval  = defaultInterval
)

// sweep expires stories under the sweeper lease.
func sweep(ctx context.Context) error {
	lease, err := container.Locks.Acquire(ctx, lockResource, owner, interval)
	if errors.Is(err, lock.ErrHeld) {
		container.Logger.Debug("Sweep skipped, another sweeper holds the lease")
		return nil
	}
	if err != nil {
		container.Logger.Error("Failed to take sweeper lease", zap.Error(err))
		return err
	}
	defer func() {
		if err := lease.Release(ctx); err != nil {
			container.Logger.Warn("Failed to release sweeper lease", zap.Error(err))
		}
	}()

	result, err := container.CommandBus.Send(ctx, commands.ExpirePostsCommand{Now: container.Clock.Now()})
	if expired, ok := result.(commands.Expired); ok && expired.Posts > 0 {
		container.Logger.Info("Expired stories removed", zap.Int("posts", expired.Posts))
	}
	if err != nil {
		container.Logger.Error("Sweep failed", zap.Error(err))
	}
	return err
}

func handler(ctx context.Context, event events.CloudWatchEvent) error {
	defer container.Reporter.Flush(ctx)
	container.Logger.Debug("Scheduled sweep", zap.String("eventID", event.ID))
	return sweep(ctx)
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	container, err = di.InitializeContainer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	owner, _ = os.Hostname()
	owner = fmt.Sprintf("%s-%d", owner, os.Getpid())

	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		lambda.Start(handler)
		return
	}

	if v := os.Getenv("SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			interval = d
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container.Logger.Info("Sweeper started", zap.Duration("interval", interval))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		_ = sweep(ctx)
		select {
		case <-ctx.Done():
			container.Shutdown(context.Background())
			return
		case <-ticker.C:
		}
	}
}
