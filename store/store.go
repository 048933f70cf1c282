package store

import (
	"context"
)

// Store provides database access to the product catalog.
type Store struct {
	driver Driver
}

// New creates a new instance of Store.
func New(driver Driver) *Store {
	return &Store{driver: driver}
}

func (s *Store) Close() error {
	return s.driver.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.driver.Ping(ctx)
}

// Migrate prepares the catalog schema.
func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

// RunPipeline runs a recognition pipeline through the database, which makes
// Store usable as a recognition.PipelineRunner.
func (s *Store) RunPipeline(ctx context.Context, pipeline string, image []byte) (string, error) {
	return s.driver.RunPipeline(ctx, pipeline, image)
}
