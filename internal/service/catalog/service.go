// Package catalog provides the catalog read/write operations. Every store call
// runs inside the operation's own resilience pipeline.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"product-catalog/internal/catalog"
	"product-catalog/internal/config"
	"product-catalog/internal/events"
	"product-catalog/internal/repository"
	"product-catalog/internal/resilience"
	appErrors "product-catalog/pkg/errors"

	"go.uber.org/zap"
)

// Result messages returned on success.
const (
	MessageProductAdded  = "Product added successfully"
	MessageRatingUpdated = "Product rating and comment count updated successfully"
	MessageDeleted       = "Product deleted successfully."
)

// Principal is the caller identity resolved by the transport layer.
type Principal struct {
	UserID        string
	Authenticated bool
	Admin         bool
}

// ListQuery carries the raw list parameters.
type ListQuery struct {
	SearchTerm string
	Category   string
	SortBy     string
	SortOrder  string
	Page       int
	PageSize   int
}

// Fallback is the degraded response returned when the store cannot be reached.
type Fallback struct {
	Description string `json:"description"`
	Degraded    bool   `json:"degraded"`
}

// Outcome holds either the operation's value or a fallback.
type Outcome[T any] struct {
	Value    T
	Fallback *Fallback
}

// Degraded reports whether the outcome came from a fallback.
func (o Outcome[T]) Degraded() bool { return o.Fallback != nil }

// AddResult is returned by AddProduct.
type AddResult struct {
	ProductID string `json:"productId"`
	Message   string `json:"message"`
}

// RatingResult is returned by UpdateRating.
type RatingResult struct {
	ProductID     string  `json:"productId"`
	AverageRating float64 `json:"averageRating"`
	CommentsCount int     `json:"commentsCount"`
	Message       string  `json:"message"`
}

// DeleteResult is returned by DeleteProduct.
type DeleteResult struct {
	ProductID string `json:"productId"`
	Message   string `json:"message"`
}

// Recorder receives business metrics.
type Recorder interface {
	ProductAdded()
	ProductDeleted()
	RatingUpdated()
	ListMatched(n int)
}

type nopRecorder struct{}

func (nopRecorder) ProductAdded()   {}
func (nopRecorder) ProductDeleted() {}
func (nopRecorder) RatingUpdated()  {}
func (nopRecorder) ListMatched(int) {}

// Service defines the catalog operations.
type Service interface {
	// AddProduct creates or replaces a product. Requires an authenticated admin.
	AddProduct(ctx context.Context, principal Principal, product catalog.Product) (Outcome[AddResult], error)

	// GetProduct fetches one product by identifier.
	GetProduct(ctx context.Context, productID string) (Outcome[catalog.Product], error)

	// GetProducts filters, sorts and paginates the catalog.
	GetProducts(ctx context.Context, query ListQuery) (Outcome[catalog.Page], error)

	// UpdateRating overwrites the average rating and adjusts the comment counter.
	UpdateRating(ctx context.Context, principal Principal, productID string, avgRating float64, action catalog.RatingAction) (Outcome[RatingResult], error)

	// DeleteProduct removes an existing product. Requires an authenticated admin.
	DeleteProduct(ctx context.Context, principal Principal, productID string) (Outcome[DeleteResult], error)
}

// service implements the Service interface.
type service struct {
	store     repository.ProductStore
	pipelines Pipelines
	publisher events.Publisher
	matchMode catalog.MatchMode
	recorder  Recorder
	logger    *zap.Logger
}

// NewService creates a catalog service. publisher, recorder and logger may be nil.
func NewService(store repository.ProductStore, pipelines Pipelines, publisher events.Publisher, matchMode catalog.MatchMode, recorder Recorder, logger *zap.Logger) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.NewNoopPublisher(logger)
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &service{
		store:     store,
		pipelines: pipelines,
		publisher: publisher,
		matchMode: matchMode,
		recorder:  recorder,
		logger:    logger,
	}
}

func (s *service) AddProduct(ctx context.Context, principal Principal, product catalog.Product) (Outcome[AddResult], error) {
	if err := requireAdmin(principal); err != nil {
		return Outcome[AddResult]{}, err
	}
	productID := product.EnsureID()
	if err := product.Validate(); err != nil {
		return Outcome[AddResult]{}, err
	}

	out, err := resilience.Execute(ctx, s.pipelines.Add,
		func(ctx context.Context) (Outcome[AddResult], error) {
			if err := s.store.Put(ctx, product); err != nil {
				return Outcome[AddResult]{}, err
			}
			return Outcome[AddResult]{Value: AddResult{ProductID: productID, Message: MessageProductAdded}}, nil
		},
		fallbackFor[AddResult]("Unable to add product at the moment for product: "+product.ProductName),
	)
	if err != nil || out.Degraded() {
		return out, err
	}

	s.recorder.ProductAdded()
	s.publish(ctx, events.NewEvent(events.TypeProductUpserted, productID, product))
	s.logger.Info("product saved", zap.String("productId", productID), zap.String("userId", principal.UserID))
	return out, nil
}

func (s *service) GetProduct(ctx context.Context, productID string) (Outcome[catalog.Product], error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Outcome[catalog.Product]{}, appErrors.Validation("productId is required", nil)
	}

	return resilience.Execute(ctx, s.pipelines.Get,
		func(ctx context.Context) (Outcome[catalog.Product], error) {
			product, err := s.store.Get(ctx, productID)
			if err != nil {
				return Outcome[catalog.Product]{}, err
			}
			return Outcome[catalog.Product]{Value: product}, nil
		},
		fallbackFor[catalog.Product]("Details are not available at the moment for productId: "+productID),
	)
}

func (s *service) GetProducts(ctx context.Context, query ListQuery) (Outcome[catalog.Page], error) {
	filter := catalog.BuildFilter(query.SearchTerm, query.Category, s.matchMode)

	scanned, err := resilience.Execute(ctx, s.pipelines.List,
		func(ctx context.Context) (Outcome[[]catalog.Product], error) {
			products, err := s.store.Scan(ctx, filter)
			if err != nil {
				return Outcome[[]catalog.Product]{}, err
			}
			return Outcome[[]catalog.Product]{Value: products}, nil
		},
		fallbackFor[[]catalog.Product]("Unable to fetch products at the moment. Please try again later."),
	)
	if err != nil {
		return Outcome[catalog.Page]{}, err
	}
	if scanned.Degraded() {
		return Outcome[catalog.Page]{Fallback: scanned.Fallback}, nil
	}

	s.recorder.ListMatched(len(scanned.Value))
	page := catalog.Apply(scanned.Value,
		catalog.ParseSortSpec(query.SortBy, query.SortOrder),
		catalog.NewPageSpec(query.Page, query.PageSize),
	)
	return Outcome[catalog.Page]{Value: page}, nil
}

func (s *service) UpdateRating(ctx context.Context, principal Principal, productID string, avgRating float64, action catalog.RatingAction) (Outcome[RatingResult], error) {
	if !principal.Authenticated {
		return Outcome[RatingResult]{}, appErrors.Unauthorized("authentication required")
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Outcome[RatingResult]{}, appErrors.Validation("productId is required", nil)
	}
	update, err := catalog.NewRatingUpdate(avgRating, action)
	if err != nil {
		return Outcome[RatingResult]{}, err
	}

	out, err := resilience.Execute(ctx, s.pipelines.UpdateRating,
		func(ctx context.Context) (Outcome[RatingResult], error) {
			product, err := s.store.UpdateRating(ctx, productID, update)
			if err != nil {
				return Outcome[RatingResult]{}, err
			}
			return Outcome[RatingResult]{Value: RatingResult{
				ProductID:     productID,
				AverageRating: product.AverageRating,
				CommentsCount: product.CommentsCount,
				Message:       MessageRatingUpdated,
			}}, nil
		},
		fallbackFor[RatingResult]("Unable to update product rating at the moment for productId: "+productID),
	)
	if err != nil || out.Degraded() {
		return out, err
	}

	s.recorder.RatingUpdated()
	s.publish(ctx, events.NewEvent(events.TypeProductRatingUpdated, productID, out.Value))
	return out, nil
}

func (s *service) DeleteProduct(ctx context.Context, principal Principal, productID string) (Outcome[DeleteResult], error) {
	if err := requireAdmin(principal); err != nil {
		return Outcome[DeleteResult]{}, err
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Outcome[DeleteResult]{}, appErrors.Validation("productId is required", nil)
	}

	out, err := resilience.Execute(ctx, s.pipelines.Delete,
		func(ctx context.Context) (Outcome[DeleteResult], error) {
			if _, err := s.store.Get(ctx, productID); err != nil {
				return Outcome[DeleteResult]{}, err
			}
			if err := s.store.Delete(ctx, productID); err != nil {
				return Outcome[DeleteResult]{}, err
			}
			return Outcome[DeleteResult]{Value: DeleteResult{ProductID: productID, Message: MessageDeleted}}, nil
		},
		fallbackFor[DeleteResult]("Unable to delete product at the moment for productId: "+productID),
	)
	if err != nil || out.Degraded() {
		return out, err
	}

	s.recorder.ProductDeleted()
	s.publish(ctx, events.NewEvent(events.TypeProductDeleted, productID, nil))
	s.logger.Info("product deleted", zap.String("productId", productID), zap.String("userId", principal.UserID))
	return out, nil
}

func (s *service) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event",
			zap.String("eventType", event.Type),
			zap.String("productId", event.ProductID),
			zap.Error(err),
		)
	}
}

func requireAdmin(principal Principal) error {
	if !principal.Authenticated {
		return appErrors.Unauthorized("authentication required")
	}
	if !principal.Admin {
		return appErrors.Forbidden("admin group membership required")
	}
	return nil
}

func fallbackFor[T any](description string) func(context.Context, error) Outcome[T] {
	return func(context.Context, error) Outcome[T] {
		return Outcome[T]{Fallback: &Fallback{Description: description, Degraded: true}}
	}
}

// Pipelines holds one pipeline per operation so that saturation or an open
// breaker on one operation never affects another.
type Pipelines struct {
	Get          *resilience.Pipeline
	List         *resilience.Pipeline
	Add          *resilience.Pipeline
	UpdateRating *resilience.Pipeline
	Delete       *resilience.Pipeline
}

// PolicySource resolves an operation name to its policy.
type PolicySource func(operation string) resilience.Policy

// NewPipelines builds the pipelines for every catalog operation.
func NewPipelines(policies PolicySource, opts ...resilience.Option) (Pipelines, error) {
	build := func(name string) (*resilience.Pipeline, error) {
		p, err := resilience.New(policies(name), opts...)
		if err != nil {
			return nil, fmt.Errorf("pipeline %s: %w", name, err)
		}
		return p, nil
	}

	var (
		ps  Pipelines
		err error
	)
	if ps.Get, err = build(config.OpGetProduct); err != nil {
		return Pipelines{}, err
	}
	if ps.List, err = build(config.OpGetProducts); err != nil {
		return Pipelines{}, err
	}
	if ps.Add, err = build(config.OpAddProduct); err != nil {
		return Pipelines{}, err
	}
	if ps.UpdateRating, err = build(config.OpUpdateRating); err != nil {
		return Pipelines{}, err
	}
	if ps.Delete, err = build(config.OpDeleteProduct); err != nil {
		return Pipelines{}, err
	}
	return ps, nil
}
