// Package memory provides an in-memory ProductStore for local development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"product-catalog/internal/catalog"
	"product-catalog/internal/repository"
	appErrors "product-catalog/pkg/errors"
)

// Store keeps records in insertion order so scans are deterministic.
type Store struct {
	mu       sync.RWMutex
	products map[string]catalog.Product
	order    []string
}

var _ repository.ProductStore = (*Store)(nil)

// NewStore creates a store seeded with the given records.
func NewStore(seed ...catalog.Product) *Store {
	s := &Store{products: make(map[string]catalog.Product)}
	for _, p := range seed {
		s.put(p)
	}
	return s
}

// Get returns the record with the given identifier.
func (s *Store) Get(ctx context.Context, id string) (catalog.Product, error) {
	if err := ctx.Err(); err != nil {
		return catalog.Product{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return catalog.Product{}, appErrors.NotFound(fmt.Sprintf("product %s not found", id))
	}
	return p, nil
}

// Put creates or replaces a record.
func (s *Store) Put(ctx context.Context, product catalog.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(product)
	return nil
}

func (s *Store) put(p catalog.Product) {
	if _, exists := s.products[p.ProductID]; !exists {
		s.order = append(s.order, p.ProductID)
	}
	s.products[p.ProductID] = p
}

// UpdateRating applies the rating update to an existing record.
func (s *Store) UpdateRating(ctx context.Context, id string, update catalog.RatingUpdate) (catalog.Product, error) {
	if err := ctx.Err(); err != nil {
		return catalog.Product{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return catalog.Product{}, appErrors.NotFound(fmt.Sprintf("product %s not found", id))
	}
	p = update.Apply(p)
	s.products[id] = p
	return p, nil
}

// Delete removes an existing record.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return appErrors.NotFound(fmt.Sprintf("product %s not found", id))
	}
	delete(s.products, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Scan returns matching records in insertion order.
func (s *Store) Scan(ctx context.Context, filter catalog.Filter) ([]catalog.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]catalog.Product, 0, len(s.order))
	for _, id := range s.order {
		if p := s.products[id]; filter.Matches(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products)
}
