// internal/catalog/service.go

package catalog

import (
	"context"

	"github.com/numbay/numbay-backend/internal/provider"
)

// Catalog is the current vendor's product list for one country
type Catalog struct {
	Vendor   string             `json:"vendor"`
	Country  string             `json:"country"`
	Products []provider.Product `json:"products"`
	Cached   bool               `json:"cached"`
}

// Service defines the catalog interface
type Service interface {
	GetCatalog(ctx context.Context, country string) (*Catalog, error)
}

type service struct {
	registry *provider.Registry
	cache    *PriceCache
}

// NewService creates a new catalog service
func NewService(registry *provider.Registry, cache *PriceCache) Service {
	return &service{registry: registry, cache: cache}
}

// GetCatalog returns the current vendor's catalog for a country, served from
// cache when a fresh entry exists
func (s *service) GetCatalog(ctx context.Context, country string) (*Catalog, error) {
	adapter, err := s.registry.Current()
	if err != nil {
		return nil, err
	}

	if products, ok := s.cache.Get(ctx, adapter.ID(), country); ok {
		return &Catalog{
			Vendor:   adapter.ID(),
			Country:  country,
			Products: products,
			Cached:   true,
		}, nil
	}

	products, err := adapter.ListProducts(ctx, country)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, adapter.ID(), country, products)
	return &Catalog{
		Vendor:   adapter.ID(),
		Country:  country,
		Products: products,
	}, nil
}
