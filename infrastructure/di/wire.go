//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"socialcore/infrastructure/config"

	"github.com/google/wire"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideCloudWatchClient,
	ProvideMetrics,
	ProvideTracer,
	ProvideCloudWatchReporter,
	ProvideStore,
	ProvideDomainConfig,
	ProvideClock,
	ProvideRepositories,
	ProvideLedger,
	ProvideCoordinator,
	ProvideAllocator,
	ProvideNotificationSink,
	ProvidePropagator,
	ProvideTrendingTracker,
	ProvideDispatcher,
	ProvideServices,
	ProvideCascades,
	ProvideCommandBus,
	ProvideQueryCache,
	ProvideQueryBus,
	ProvideRateLimiter,
	ProvideDistributedLock,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil // Wire will replace this
}
