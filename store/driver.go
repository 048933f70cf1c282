package store

import (
	"context"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	Close() error
	Ping(ctx context.Context) error

	// Migrate creates the catalog schema when it does not exist yet.
	Migrate(ctx context.Context) error

	// CatalogItem model related methods.
	CreateItem(ctx context.Context, create *CatalogItem) error
	CountItems(ctx context.Context) (int64, error)
	SearchItems(ctx context.Context, find *SearchItems) ([]*ItemWithDistance, error)

	// RunPipeline invokes a recognition pipeline hosted by the database.
	RunPipeline(ctx context.Context, pipeline string, image []byte) (string, error)
}
