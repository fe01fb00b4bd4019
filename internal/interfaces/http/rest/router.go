// Package rest assembles the chi router of the catalog API.
package rest

import (
	"product-catalog/internal/health"
	"product-catalog/internal/interfaces/http/rest/handlers"
	"product-catalog/internal/interfaces/http/rest/middleware"
	"product-catalog/internal/observability"
	catalogService "product-catalog/internal/service/catalog"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// RouterConfig holds the router's settings.
type RouterConfig struct {
	AdminGroup     string
	TrustGateway   bool
	AllowedOrigins []string
	EnableMetrics  bool
}

// Router creates and configures the HTTP router
type Router struct {
	service   catalogService.Service
	checker   *health.Checker
	validator middleware.TokenValidator
	collector *observability.Collector
	config    RouterConfig
	logger    *zap.Logger
}

// NewRouter creates a new router instance. validator and collector may be nil.
func NewRouter(
	service catalogService.Service,
	checker *health.Checker,
	validator middleware.TokenValidator,
	collector *observability.Collector,
	config RouterConfig,
	logger *zap.Logger,
) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(config.AllowedOrigins) == 0 {
		config.AllowedOrigins = []string{"*"}
	}
	return &Router{
		service:   service,
		checker:   checker,
		validator: validator,
		collector: collector,
		config:    config,
		logger:    logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() *chi.Mux {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.Recovery(rt.logger))
	router.Use(middleware.Logger(rt.logger))
	if rt.collector != nil {
		router.Use(middleware.Metrics(rt.collector))
	}

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	healthHandler := handlers.NewHealthHandler(rt.checker)
	router.Get("/health", healthHandler.Check)
	router.Get("/ready", healthHandler.Ready)
	if rt.collector != nil && rt.config.EnableMetrics {
		router.Handle("/metrics", rt.collector.Handler())
	}

	router.Route("/products", func(r chi.Router) {
		r.Use(middleware.Authenticate(rt.validator, rt.config.TrustGateway, rt.logger))

		productHandler := handlers.NewProductHandler(rt.service, rt.config.AdminGroup, rt.logger)
		r.Get("/", productHandler.ListProducts)
		r.Post("/", productHandler.AddProduct)
		r.Get("/{productId}", productHandler.GetProduct)
		r.Put("/{productId}", productHandler.UpdateRating)
		r.Delete("/{productId}", productHandler.DeleteProduct)
	})

	return router
}
