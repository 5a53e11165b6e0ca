package di

import (
	"context"

	"socialcore/application/commands/bus"
	"socialcore/application/dispatch"
	"socialcore/application/ports"
	querybus "socialcore/application/queries/bus"
	"socialcore/infrastructure/config"
	"socialcore/infrastructure/persistence/lock"
	"socialcore/pkg/auth"
	"socialcore/pkg/observability"

	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config       *config.Config
	Logger       *zap.Logger
	Metrics      *observability.Metrics
	Reporter     *observability.CloudWatchReporter
	Store        ports.KeyValueStore
	Clock        ports.Clock
	Repositories *Repositories
	Dispatcher   *dispatch.Dispatcher
	Services     *Services
	Cascades     Cascades
	Sink         ports.NotificationSink
	CommandBus   *bus.CommandBus
	QueryBus     *querybus.QueryBus
	Cache        *QueryCache
	RateLimiter  *auth.StoreRateLimiter
	Locks        *lock.DistributedLock
}

// Shutdown flushes buffered logs and metrics and stops background work.
func (c *Container) Shutdown(ctx context.Context) {
	c.Reporter.Flush(ctx)
	c.Cache.Close()
	_ = c.Logger.Sync()
}
