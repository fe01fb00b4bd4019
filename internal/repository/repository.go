// Package repository defines the storage contract of the catalog. Implementations
// live in the ddb (AWS DynamoDB) and memory subpackages.
package repository

import (
	"context"
	"fmt"

	"product-catalog/internal/catalog"
)

// ProductStore is the value store adapter used by the catalog operations.
//
// Implementations classify their errors with pkg/errors: an absent record is a
// NotFoundError, every store or transport fault is a BackendError.
type ProductStore interface {
	// Get returns the record with the given identifier.
	Get(ctx context.Context, id string) (catalog.Product, error)

	// Put creates or fully replaces a record.
	Put(ctx context.Context, product catalog.Product) error

	// UpdateRating overwrites the average rating and adds the comment delta in a
	// single conditional write. It fails with NotFound when the record is absent
	// and returns the record as stored after the update.
	UpdateRating(ctx context.Context, id string, update catalog.RatingUpdate) (catalog.Product, error)

	// Delete removes a record. It fails with NotFound when the record is absent.
	Delete(ctx context.Context, id string) error

	// Scan returns every record matching the filter, following store pagination
	// until it is exhausted. Order is the store's scan order.
	Scan(ctx context.Context, filter catalog.Filter) ([]catalog.Product, error)
}

// Config represents the configuration needed for repository implementations.
type Config struct {
	TableName string // Catalog table name
	Region    string // Store region
	Endpoint  string // Optional endpoint override (local DynamoDB)
}

// Validate checks if the configuration has all required fields.
func (c Config) Validate() error {
	if c.TableName == "" {
		return fmt.Errorf("TableName is required")
	}
	if c.Region == "" {
		return fmt.Errorf("Region is required")
	}
	return nil
}
