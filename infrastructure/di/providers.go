package di

import (
	"context"
	"fmt"
	"strings"
	"time"

	"socialcore/application/commands"
	"socialcore/application/commands/bus"
	"socialcore/application/dispatch"
	"socialcore/application/fanout"
	"socialcore/application/ledger"
	"socialcore/application/ports"
	"socialcore/application/queries"
	querybus "socialcore/application/queries/bus"
	"socialcore/application/ranking"
	"socialcore/application/reactors"
	"socialcore/application/services"
	"socialcore/application/trending"
	"socialcore/application/txn"
	domaincfg "socialcore/domain/config"
	"socialcore/infrastructure/config"
	"socialcore/infrastructure/messaging"
	"socialcore/infrastructure/persistence/dynamodb"
	"socialcore/infrastructure/persistence/lock"
	"socialcore/infrastructure/persistence/memory"
	"socialcore/infrastructure/persistence/repository"
	"socialcore/pkg/auth"
	"socialcore/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// profileCacheTTL bounds how stale a cached user profile may be.
const profileCacheTTL = 5 * time.Second

// Repositories groups the table-backed repositories.
type Repositories struct {
	Users       *repository.UserRepository
	Follows     *repository.FollowRepository
	Blocks      *repository.BlockRepository
	Posts       *repository.PostRepository
	Albums      *repository.AlbumRepository
	Likes       *repository.LikeRepository
	Views       *repository.ViewRepository
	Comments    *repository.CommentRepository
	Flags       *repository.FlagRepository
	Chats       *repository.ChatRepository
	Cards       *repository.CardRepository
	Feed        *repository.FeedRepository
	Stories     *repository.FirstStoryRepository
	Connections *repository.ConnectionRepository
}

// Services groups the aggregate APIs.
type Services struct {
	Users    *services.UserService
	Follows  *services.FollowService
	Blocks   *services.BlockService
	Posts    *services.PostService
	Albums   *services.AlbumService
	Likes    *services.LikeService
	Views    *services.ViewService
	Comments *services.CommentService
	Flags    *services.FlagService
	Chats    *services.ChatService
	Cards    *services.CardService
}

// Cascades marks that the change reactors are registered on the dispatcher.
type Cascades struct {
	Registered bool
}

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	if cfg.LogLevel != "" {
		level, err := zapcore.ParseLevel(strings.ToLower(cfg.LogLevel))
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
		}
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}

	return zapCfg.Build()
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client, pointed at DYNAMODB_ENDPOINT when set
func ProvideDynamoDBClient(awsCfg aws.Config, cfg *config.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg, func(o *awsdynamodb.Options) {
		if cfg.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
		}
	})
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvideMetrics creates the Prometheus collector. Disabled metrics yield a nil
// collector, which every component accepts.
func ProvideMetrics(cfg *config.Config) *observability.Metrics {
	if !cfg.EnableMetrics {
		return nil
	}
	return observability.NewMetrics(cfg.MetricsNamespace)
}

// ProvideTracer creates the X-Ray tracer
func ProvideTracer(cfg *config.Config) *observability.Tracer {
	return observability.NewTracer("socialcore", cfg.EnableTracing)
}

// ProvideCloudWatchReporter creates the reporter Lambda handlers flush after each invocation
func ProvideCloudWatchReporter(client *awscloudwatch.Client, metrics *observability.Metrics, cfg *config.Config, logger *zap.Logger) *observability.CloudWatchReporter {
	if metrics == nil || cfg.StoreBackend == config.StoreMemory {
		return nil
	}
	namespace := fmt.Sprintf("%s/%s", cfg.MetricsNamespace, cfg.Environment)
	return observability.NewCloudWatchReporter(client, metrics, namespace, logger)
}

// ProvideStore selects the key-value store backend
func ProvideStore(cfg *config.Config, client *awsdynamodb.Client, logger *zap.Logger, metrics *observability.Metrics, tracer *observability.Tracer) ports.KeyValueStore {
	if cfg.StoreBackend == config.StoreMemory {
		logger.Warn("Using in-memory store; data does not survive restarts")
		return memory.NewStore()
	}
	return dynamodb.NewTable(client, cfg.TableName, logger, metrics, tracer)
}

// ProvideDomainConfig exposes the domain rules
func ProvideDomainConfig(cfg *config.Config) *domaincfg.DomainConfig {
	return cfg.Domain()
}

// ProvideClock returns the wall clock
func ProvideClock() ports.Clock {
	return ports.SystemClock{}
}

// ProvideRepositories creates every repository over the store
func ProvideRepositories(store ports.KeyValueStore, logger *zap.Logger) *Repositories {
	return &Repositories{
		Users:       repository.NewUserRepository(store, logger),
		Follows:     repository.NewFollowRepository(store, logger),
		Blocks:      repository.NewBlockRepository(store, logger),
		Posts:       repository.NewPostRepository(store, logger),
		Albums:      repository.NewAlbumRepository(store, logger),
		Likes:       repository.NewLikeRepository(store, logger),
		Views:       repository.NewViewRepository(store, logger),
		Comments:    repository.NewCommentRepository(store, logger),
		Flags:       repository.NewFlagRepository(store, logger),
		Chats:       repository.NewChatRepository(store, logger),
		Cards:       repository.NewCardRepository(store, logger),
		Feed:        repository.NewFeedRepository(store, logger),
		Stories:     repository.NewFirstStoryRepository(store, logger),
		Connections: repository.NewConnectionRepository(store, logger),
	}
}

// ProvideLedger creates the counter ledger
func ProvideLedger(store ports.KeyValueStore, logger *zap.Logger, metrics *observability.Metrics, clock ports.Clock, dcfg *domaincfg.DomainConfig) *ledger.Ledger {
	return ledger.NewLedger(store, logger, metrics, clock, dcfg)
}

// ProvideCoordinator creates the transaction coordinator
func ProvideCoordinator(store ports.KeyValueStore, logger *zap.Logger) *txn.Coordinator {
	return txn.NewCoordinator(store, logger)
}

// ProvideAllocator creates the album rank allocator
func ProvideAllocator(repos *Repositories, l *ledger.Ledger, logger *zap.Logger) *ranking.Allocator {
	return ranking.NewAllocator(repos.Posts, l, logger)
}

// ProvideNotificationSink combines the configured remote sinks, each behind its own
// circuit breaker. Without any remote sink notifications are dropped.
func ProvideNotificationSink(awsCfg aws.Config, eventBridge *awseventbridge.Client, repos *Repositories, cfg *config.Config, logger *zap.Logger, metrics *observability.Metrics) ports.NotificationSink {
	var sinks []ports.NotificationSink

	if cfg.EventBusName != "" {
		sink := messaging.NewEventBridgeSink(eventBridge, cfg.EventBusName, logger, metrics)
		sinks = append(sinks, messaging.NewBreakerSink(sink, messaging.DefaultBreakerConfig("eventbridge"), logger, metrics))
	}

	if cfg.WebSocketEndpoint != "" {
		client := apigatewaymanagementapi.NewFromConfig(awsCfg, func(o *apigatewaymanagementapi.Options) {
			o.BaseEndpoint = aws.String(websocketEndpoint(cfg.WebSocketEndpoint))
		})
		sink := messaging.NewWebSocketSink(client, repos.Connections, logger, metrics)
		sinks = append(sinks, messaging.NewBreakerSink(sink, messaging.DefaultBreakerConfig("websocket"), logger, metrics))
	}

	switch len(sinks) {
	case 0:
		logger.Info("No notification sink configured")
		return messaging.NoopSink{}
	case 1:
		return sinks[0]
	}
	return messaging.NewMultiSink(sinks...)
}

func websocketEndpoint(endpoint string) string {
	if strings.HasPrefix(endpoint, "https://") || strings.HasPrefix(endpoint, "http://") {
		return endpoint
	}
	return "https://" + endpoint
}

// ProvidePropagator creates the fan-out propagator
func ProvidePropagator(repos *Repositories, sink ports.NotificationSink, clock ports.Clock, logger *zap.Logger, metrics *observability.Metrics) *fanout.Propagator {
	return fanout.NewPropagator(repos.Follows, repos.Posts, repos.Feed, repos.Stories, sink, clock, logger, metrics)
}

// ProvideTrendingTracker creates the trending tracker with the additive scorer
func ProvideTrendingTracker(store ports.KeyValueStore, l *ledger.Ledger, clock ports.Clock, dcfg *domaincfg.DomainConfig, logger *zap.Logger) *trending.Tracker {
	return trending.NewTracker(store, l, trending.AdditiveScorer{}, clock, dcfg, logger)
}

// ProvideDispatcher creates the change reactor dispatcher
func ProvideDispatcher(logger *zap.Logger, metrics *observability.Metrics, tracer *observability.Tracer) *dispatch.Dispatcher {
	return dispatch.NewDispatcher(logger, metrics, tracer)
}

// ProvideServices creates the aggregate services
func ProvideServices(
	repos *Repositories,
	allocator *ranking.Allocator,
	coordinator *txn.Coordinator,
	dcfg *domaincfg.DomainConfig,
	d *dispatch.Dispatcher,
	clock ports.Clock,
	logger *zap.Logger,
) *Services {
	return &Services{
		Users:    services.NewUserService(repos.Users, d, clock, logger),
		Follows:  services.NewFollowService(repos.Users, repos.Follows, repos.Blocks, d, clock, logger),
		Blocks:   services.NewBlockService(repos.Users, repos.Blocks, d, clock, logger),
		Posts:    services.NewPostService(repos.Users, repos.Posts, repos.Albums, allocator, dcfg, d, clock, logger),
		Albums:   services.NewAlbumService(repos.Users, repos.Albums, allocator, dcfg, d, clock, logger),
		Likes:    services.NewLikeService(repos.Likes, repos.Posts, repos.Blocks, d, clock, logger),
		Views:    services.NewViewService(repos.Views, repos.Posts, d, clock, logger),
		Comments: services.NewCommentService(repos.Comments, repos.Posts, repos.Blocks, dcfg, d, clock, logger),
		Flags:    services.NewFlagService(repos.Flags, repos.Posts, repos.Chats, d, clock, logger),
		Chats:    services.NewChatService(repos.Chats, repos.Users, repos.Blocks, coordinator, dcfg, d, clock, logger),
		Cards:    services.NewCardService(repos.Cards, d, clock, logger),
	}
}

// ProvideCascades registers the change reactors. Services are complete before any
// reactor can call back into them.
func ProvideCascades(
	d *dispatch.Dispatcher,
	l *ledger.Ledger,
	propagator *fanout.Propagator,
	tracker *trending.Tracker,
	sink ports.NotificationSink,
	repos *Repositories,
	svcs *Services,
	dcfg *domaincfg.DomainConfig,
	clock ports.Clock,
	logger *zap.Logger,
) Cascades {
	reactors.Register(d, reactors.Deps{
		Ledger:     l,
		Propagator: propagator,
		Trending:   tracker,
		Sink:       sink,
		Users:      repos.Users,
		Posts:      repos.Posts,
		Chats:      repos.Chats,
		Services: reactors.Services{
			Follows:  svcs.Follows,
			Posts:    svcs.Posts,
			Likes:    svcs.Likes,
			Views:    svcs.Views,
			Comments: svcs.Comments,
			Flags:    svcs.Flags,
			Chats:    svcs.Chats,
			Cards:    svcs.Cards,
		},
		Config: dcfg,
		Clock:  clock,
		Logger: logger,
	})
	return Cascades{Registered: true}
}

// ProvideCommandBus creates a command bus with registered handlers
func ProvideCommandBus(svcs *Services, _ Cascades, logger *zap.Logger, metrics *observability.Metrics) (*bus.CommandBus, error) {
	commandBus := bus.NewCommandBus(
		bus.LoggingMiddleware(logger),
		bus.MetricsMiddleware(metrics),
	)

	handlers := &commands.Handlers{
		Users:    svcs.Users,
		Follows:  svcs.Follows,
		Blocks:   svcs.Blocks,
		Posts:    svcs.Posts,
		Albums:   svcs.Albums,
		Likes:    svcs.Likes,
		Views:    svcs.Views,
		Comments: svcs.Comments,
		Flags:    svcs.Flags,
		Chats:    svcs.Chats,
		Cards:    svcs.Cards,
	}
	if err := handlers.Register(commandBus); err != nil {
		return nil, err
	}
	return commandBus, nil
}

// ProvideQueryCache creates the cache behind profile lookups
func ProvideQueryCache() *QueryCache {
	return NewQueryCache(time.Minute)
}

// ProvideQueryBus creates a query bus with registered handlers
func ProvideQueryBus(svcs *Services, repos *Repositories, cache *QueryCache, metrics *observability.Metrics) (*querybus.QueryBus, error) {
	queryBus := querybus.NewQueryBus(metrics)

	handlers := &queries.Handlers{
		Users:        svcs.Users,
		Follows:      svcs.Follows,
		Posts:        svcs.Posts,
		Albums:       svcs.Albums,
		Comments:     svcs.Comments,
		Chats:        svcs.Chats,
		Cards:        svcs.Cards,
		Feed:         repos.Feed,
		Stories:      repos.Stories,
		ProfileCache: querybus.NewCachingMiddleware(cache, profileCacheTTL),
	}
	if err := handlers.Register(queryBus); err != nil {
		return nil, err
	}
	return queryBus, nil
}

// ProvideRateLimiter creates the per-user limiter shared by every API instance
func ProvideRateLimiter(store ports.KeyValueStore, cfg *config.Config, clock ports.Clock) *auth.StoreRateLimiter {
	return auth.NewStoreRateLimiter(store, cfg.RateLimitPerMinute, time.Minute, clock)
}

// ProvideDistributedLock creates the lease manager for singleton jobs
func ProvideDistributedLock(store ports.KeyValueStore, clock ports.Clock, logger *zap.Logger) *lock.DistributedLock {
	return lock.NewDistributedLock(store, clock, logger)
}
