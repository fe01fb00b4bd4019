package di

import (
	"product-catalog/internal/config"
	"product-catalog/internal/observability"
	"product-catalog/internal/repository"
	"product-catalog/internal/repository/ddb"
	catalogService "product-catalog/internal/service/catalog"
	"product-catalog/pkg/auth"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Container holds the wired application.
type Container struct {
	Config    *config.Config
	Logger    *zap.Logger
	Watcher   *config.Watcher
	Collector *observability.Collector
	Tracing   *observability.TracerProvider
	Store     repository.ProductStore
	Dynamo    *ddb.Store
	Service   catalogService.Service
	Validator *auth.JWTValidator
	Router    *chi.Mux
}

// NewContainer assembles the container and subscribes the store and the token
// validator to configuration reloads.
func NewContainer(
	cfg *config.Config,
	logger *zap.Logger,
	watcher *config.Watcher,
	collector *observability.Collector,
	tracing *observability.TracerProvider,
	store repository.ProductStore,
	dynamo *ddb.Store,
	service catalogService.Service,
	validator *auth.JWTValidator,
	router *chi.Mux,
) *Container {
	c := &Container{
		Config:    cfg,
		Logger:    logger,
		Watcher:   watcher,
		Collector: collector,
		Tracing:   tracing,
		Store:     store,
		Dynamo:    dynamo,
		Service:   service,
		Validator: validator,
		Router:    router,
	}
	watcher.OnChange(c.applyReload)
	return c
}

func (c *Container) applyReload(cfg *config.Config) {
	c.Dynamo.Reconfigure(cfg.Region, cfg.TableName)
	if c.Validator != nil {
		c.Validator.SetIssuer(cfg.Auth.Issuer)
	}
	c.Logger.Info("configuration reloaded",
		zap.String("region", cfg.Region),
		zap.String("table", cfg.TableName),
		zap.String("issuer", cfg.Auth.Issuer),
	)
}
