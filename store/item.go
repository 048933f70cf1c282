package store

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

const (
	// DefaultSearchLimit applies when a search does not set a limit.
	DefaultSearchLimit = 10
	// MaxSearchLimit bounds a single search.
	MaxSearchLimit = 1000
)

// CatalogItem is one stored product image.
type CatalogItem struct {
	ImageName  string
	Category   string
	Thumbnail  []byte
	Attributes string
	Feature    []float32
}

// Validate validates the CatalogItem before insertion.
func (i *CatalogItem) Validate() error {
	if i.ImageName == "" {
		return errors.New("image name cannot be empty")
	}
	if i.Category == "" {
		return errors.New("category cannot be empty")
	}
	if len(i.Thumbnail) == 0 {
		return errors.New("thumbnail cannot be empty")
	}
	return nil
}

// SearchItems is the find condition for catalog searches.
type SearchItems struct {
	Category string
	// Vector ranks results by distance to it when set.
	Vector []float32
	// Keywords must all appear in an item's attributes.
	Keywords []string
	Limit    int
}

// Validate validates the SearchItems and applies the default limit.
func (s *SearchItems) Validate() error {
	if s.Category == "" {
		return errors.New("category cannot be empty")
	}
	if s.Limit < 0 {
		return errors.Errorf("limit cannot be negative: %d", s.Limit)
	}
	if s.Limit == 0 {
		s.Limit = DefaultSearchLimit
	}
	if s.Limit > MaxSearchLimit {
		return errors.Errorf("limit too large (max %d): %d", MaxSearchLimit, s.Limit)
	}
	return nil
}

// HasVector reports whether the search is ranked by distance.
func (s *SearchItems) HasVector() bool {
	return s.Vector != nil
}

// ItemWithDistance is a search hit. Distance is nil for unranked searches.
type ItemWithDistance struct {
	ImageName string
	Thumbnail []byte
	Distance  *float64
}

// ParseKeywords splits a space delimited keyword string, dropping empty
// tokens left by repeated spaces.
func ParseKeywords(s string) []string {
	keywords := []string{}
	for _, keyword := range strings.Split(s, " ") {
		if keyword != "" {
			keywords = append(keywords, keyword)
		}
	}
	return keywords
}

// CreateItem inserts a catalog item. A duplicate image name is a driver error.
func (s *Store) CreateItem(ctx context.Context, create *CatalogItem) error {
	if err := create.Validate(); err != nil {
		return err
	}
	return s.driver.CreateItem(ctx, create)
}

// CountItems returns the number of catalog items.
func (s *Store) CountItems(ctx context.Context) (int64, error) {
	return s.driver.CountItems(ctx)
}

// SearchItems finds items of a category matching every keyword, nearest
// first when a vector is given.
func (s *Store) SearchItems(ctx context.Context, find *SearchItems) ([]*ItemWithDistance, error) {
	if err := find.Validate(); err != nil {
		return nil, err
	}
	return s.driver.SearchItems(ctx, find)
}
