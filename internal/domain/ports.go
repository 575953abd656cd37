package domain

import (
	"context"
	"time"
)

// RecordSource returns datasets matching a filter in ascending sort key
// order. Implementations: internal/infra/postgres, internal/infra/memory.
type RecordSource interface {
	// Query returns up to limit datasets strictly after the given key
	// (from the start when after is nil). f.Limit is ignored.
	Query(ctx context.Context, f Filter, after *SortKey, limit int) ([]*Dataset, error)
}

// ProductCatalog looks up products.
type ProductCatalog interface {
	// GetProduct returns ErrNotFound for unknown names.
	GetProduct(ctx context.Context, name string) (*Product, error)

	// ListProducts returns every product ordered by name.
	ListProducts(ctx context.Context) ([]*Product, error)
}

// DatasetRepository is the full index: search source, catalog and ingest.
type DatasetRepository interface {
	RecordSource
	ProductCatalog

	// GetDataset returns ErrNotFound for unknown ids.
	GetDataset(ctx context.Context, id string) (*Dataset, error)

	// Summarize computes the extent of a product's datasets.
	Summarize(ctx context.Context, product string) (*ProductSummary, error)

	// UpsertProducts creates or updates products keyed by name.
	UpsertProducts(ctx context.Context, products []*Product) error

	// UpsertDatasets creates or updates datasets keyed by id.
	UpsertDatasets(ctx context.Context, datasets []*Dataset) error
}

// IndexProvider is an upstream index that datasets are ingested from.
// Implementation: internal/infra/provider/stacindex.
type IndexProvider interface {
	// Name returns the unique identifier for this provider.
	Name() string

	// FetchProducts lists the products the upstream serves.
	FetchProducts(ctx context.Context) ([]*Product, error)

	// FetchDatasets walks every dataset page the upstream serves.
	FetchDatasets(ctx context.Context) ([]*Dataset, error)

	// HealthCheck verifies the provider is accessible.
	HealthCheck(ctx context.Context) error
}

// Cache defines the interface for caching operations.
// Implementation: internal/infra/redis/cache.go
type Cache interface {
	// Get retrieves a value by key. Returns nil if not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes values by key.
	Delete(ctx context.Context, keys ...string) error

	// Clear removes all cached values.
	Clear(ctx context.Context) error
}
