package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching resolved price results.
type CacheRepository interface {
	Get(ctx context.Context, key string) (*PriceResult, error)
	Set(ctx context.Context, key string, value *PriceResult, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// CatalogClient defines the interface for the external pricing catalog.
// SearchProducts returns zero candidates (not an error) when the upstream
// reports a non-success status for the query.
type CatalogClient interface {
	SearchProducts(ctx context.Context, query string) ([]CatalogProduct, error)
	GetProduct(ctx context.Context, id string) (*CatalogProduct, error)
}

// SnapshotStore is the batch price tracker's persistence boundary.
type SnapshotStore interface {
	// StaleCards returns up to limit tracked cards whose last snapshot is
	// older than olderThan (or that have never been priced).
	StaleCards(ctx context.Context, olderThan time.Duration, limit int) ([]TrackedCard, error)

	// SaveSnapshot persists one price snapshot and marks the card fresh.
	SaveSnapshot(ctx context.Context, snap *PriceSnapshot) error
}
