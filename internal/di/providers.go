// Package di wires the application together with Google Wire.
package di

import (
	"context"
	"fmt"
	"time"

	"product-catalog/internal/config"
	"product-catalog/internal/events"
	"product-catalog/internal/health"
	"product-catalog/internal/interfaces/http/rest"
	"product-catalog/internal/interfaces/http/rest/middleware"
	"product-catalog/internal/observability"
	"product-catalog/internal/repository"
	"product-catalog/internal/repository/ddb"
	"product-catalog/internal/repository/memory"
	"product-catalog/internal/resilience"
	catalogService "product-catalog/internal/service/catalog"
	"product-catalog/pkg/auth"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/go-chi/chi/v5"
	"github.com/google/wire"
	"go.uber.org/zap"
)

// readinessTimeout bounds one readiness probe.
const readinessTimeout = 3 * time.Second

// ConfigProviders provides configuration and ambient dependencies.
var ConfigProviders = wire.NewSet(
	provideLogger,
	provideWatcher,
	provideCollector,
	provideTracing,
)

// InfrastructureProviders provides the store, the event publisher and health checks.
var InfrastructureProviders = wire.NewSet(
	provideClientCache,
	provideDynamoStore,
	provideProductStore,
	provideEventPublisher,
	provideChecker,
)

// ApplicationProviders provides the catalog service.
var ApplicationProviders = wire.NewSet(
	providePipelines,
	provideService,
	wire.Bind(new(catalogService.Recorder), new(*observability.Collector)),
)

// InterfaceProviders provides the HTTP layer.
var InterfaceProviders = wire.NewSet(
	provideValidator,
	provideRouter,
)

// SuperSet combines all provider sets for the complete application.
var SuperSet = wire.NewSet(
	ConfigProviders,
	InfrastructureProviders,
	ApplicationProviders,
	InterfaceProviders,
	NewContainer,
)

func provideLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	logger, err := observability.NewLogger(string(cfg.Environment), cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return logger, func() { _ = logger.Sync() }, nil
}

func provideWatcher(cfg *config.Config, logger *zap.Logger) (*config.Watcher, func(), error) {
	watcher, err := config.NewWatcher(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return watcher, watcher.Stop, nil
}

func provideCollector() *observability.Collector {
	return observability.NewCollector(observability.ServiceName)
}

func provideTracing(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*observability.TracerProvider, func(), error) {
	if !cfg.EnableTracing {
		return observability.NoopTracing(), func() {}, nil
	}
	tp, err := observability.InitTracing(ctx, observability.ServiceName, string(cfg.Environment), cfg.OTLPEndpoint)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	return tp, cleanup, nil
}

func provideClientCache(cfg *config.Config) *ddb.ClientCache {
	return ddb.NewClientCache(ddb.NewAWSClientFactory(cfg.DynamoDBEndpoint))
}

func provideDynamoStore(cfg *config.Config, cache *ddb.ClientCache, logger *zap.Logger) (*ddb.Store, error) {
	repoCfg := repository.Config{TableName: cfg.TableName, Region: cfg.Region, Endpoint: cfg.DynamoDBEndpoint}
	if err := repoCfg.Validate(); err != nil {
		return nil, err
	}
	return ddb.NewStore(cache, repoCfg, logger.Named("ddb")), nil
}

func provideProductStore(cfg *config.Config, dynamo *ddb.Store, logger *zap.Logger) repository.ProductStore {
	if cfg.Store == config.StoreMemory {
		logger.Warn("using in-memory product store")
		return memory.NewStore()
	}
	return dynamo
}

func provideEventPublisher(ctx context.Context, cfg *config.Config, logger *zap.Logger) (events.Publisher, error) {
	if cfg.EventBusName == "" {
		return events.NewNoopPublisher(logger), nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return events.NewEventBridgePublisher(eventbridge.NewFromConfig(awsCfg), cfg.EventBusName, logger), nil
}

func provideChecker(cfg *config.Config, watcher *config.Watcher, dynamo *ddb.Store, logger *zap.Logger) *health.Checker {
	if cfg.Store == config.StoreMemory {
		return health.NewChecker(readinessTimeout, health.DefaultBreakerSettings(), logger)
	}
	tables := health.NewTablesCheck(
		func(ctx context.Context) (health.TablesAPI, error) { return dynamo.Client(ctx) },
		func() []string { return watcher.GetConfig().Tables() },
	)
	return health.NewChecker(readinessTimeout, health.DefaultBreakerSettings(), logger, tables)
}

func providePipelines(cfg *config.Config, logger *zap.Logger, tp *observability.TracerProvider, collector *observability.Collector) (catalogService.Pipelines, error) {
	return catalogService.NewPipelines(cfg.Policy,
		resilience.WithLogger(logger.Named("resilience")),
		resilience.WithTracer(tp.Tracer("product-catalog/resilience")),
		resilience.WithObserver(collector),
	)
}

func provideService(cfg *config.Config, store repository.ProductStore, pipelines catalogService.Pipelines, publisher events.Publisher, recorder catalogService.Recorder, logger *zap.Logger) catalogService.Service {
	return catalogService.NewService(store, pipelines, publisher, cfg.MatchMode(), recorder, logger.Named("catalog"))
}

// provideValidator returns nil when no secret is configured. Bearer tokens are
// then ignored and only API Gateway identities are accepted.
func provideValidator(cfg *config.Config) (*auth.JWTValidator, error) {
	if cfg.Auth.Secret == "" {
		return nil, nil
	}
	return auth.NewJWTValidator(auth.JWTConfig{
		SecretKey: cfg.Auth.Secret,
		Issuer:    cfg.Auth.Issuer,
		Audience:  cfg.Auth.Audience,
	})
}

func provideRouter(cfg *config.Config, service catalogService.Service, checker *health.Checker, validator *auth.JWTValidator, collector *observability.Collector, logger *zap.Logger) *chi.Mux {
	var tokens middleware.TokenValidator
	if validator != nil {
		tokens = validator
	}
	router := rest.NewRouter(service, checker, tokens, collector, rest.RouterConfig{
		AdminGroup:    cfg.Auth.AdminGroup,
		TrustGateway:  cfg.Auth.TrustGateway,
		EnableMetrics: cfg.EnableMetrics,
	}, logger.Named("http"))
	return router.Setup()
}
