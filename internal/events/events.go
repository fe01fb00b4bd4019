// Package events publishes catalog change notifications.
package events

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Source identifies catalog events on the bus.
const Source = "product-catalog"

// Event types.
const (
	TypeProductUpserted      = "ProductUpserted"
	TypeProductRatingUpdated = "ProductRatingUpdated"
	TypeProductDeleted       = "ProductDeleted"
)

// Event is one catalog change.
type Event struct {
	Type      string    `json:"eventType"`
	ProductID string    `json:"productId"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// NewEvent stamps an event with the current time.
func NewEvent(eventType, productID string, data any) Event {
	return Event{
		Type:      eventType,
		ProductID: productID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// Publisher delivers events. Callers treat delivery as best effort.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
}

// NoopPublisher drops every event. Used when no event bus is configured.
type NoopPublisher struct {
	logger *zap.Logger
}

// NewNoopPublisher creates a publisher that only logs at debug level.
func NewNoopPublisher(logger *zap.Logger) *NoopPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoopPublisher{logger: logger}
}

// Publish implements Publisher.
func (p *NoopPublisher) Publish(_ context.Context, events ...Event) error {
	for _, e := range events {
		p.logger.Debug("event dropped, no event bus configured",
			zap.String("eventType", e.Type),
			zap.String("productId", e.ProductID),
		)
	}
	return nil
}
