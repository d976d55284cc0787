// Package store defines the catalog record store for listify.
// Publishing logic depends on the Store interface, never on concrete
// implementations, so the storage engine can be swapped without touching it.
package store

import (
	"context"
	"errors"

	domain "github.com/dmaier/listify/pkg/types"
)

// ErrVersionConflict is returned when a publish-state update loses an
// optimistic concurrency race: the product was modified since it was read.
var ErrVersionConflict = errors.New("product modified concurrently")

// CatalogCounts is a snapshot of catalog-wide aggregates.
type CatalogCounts struct {
	Total         int
	PublishedEbay int
	PublishedEtsy int
}

// Store defines all catalog data access operations.
type Store interface {
	// AppendProduct inserts a new product, filling ID, Version and timestamps.
	AppendProduct(ctx context.Context, p *domain.Product) error

	// GetProduct returns a product by id, or domain.ErrItemNotFound.
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)

	// ListProducts returns all products in insertion order.
	ListProducts(ctx context.Context) ([]domain.Product, error)

	// SetPublishState marks a product published on one provider with the
	// returned listing id. The update only applies if the stored version
	// still equals version; otherwise ErrVersionConflict is returned and
	// the record is left untouched.
	SetPublishState(
		ctx context.Context,
		id int64,
		provider domain.Provider,
		listingID string,
		version int,
	) error

	// CountProducts returns catalog aggregates for metrics.
	CountProducts(ctx context.Context) (*CatalogCounts, error)

	// Migrations
	Migrate(ctx context.Context) error

	// Health
	Ping(ctx context.Context) error
}
