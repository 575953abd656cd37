// Package catalogcache keeps recently used products in process memory in
// front of the product catalog.
package catalogcache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/DeZhao-Zhang/datacube-explorer/internal/domain"
)

// Catalog is a domain.ProductCatalog that caches lookups for ttl.
// Unknown products are not cached.
type Catalog struct {
	next     domain.ProductCatalog
	products *expirable.LRU[string, domain.Product]
	listing  *expirable.LRU[string, []domain.Product]
}

const listingKey = "all"

// New wraps next. size bounds the number of products held.
func New(next domain.ProductCatalog, size int, ttl time.Duration) *Catalog {
	if size <= 0 {
		size = 256
	}
	return &Catalog{
		next:     next,
		products: expirable.NewLRU[string, domain.Product](size, nil, ttl),
		listing:  expirable.NewLRU[string, []domain.Product](1, nil, ttl),
	}
}

func (c *Catalog) GetProduct(ctx context.Context, name string) (*domain.Product, error) {
	if p, ok := c.products.Get(name); ok {
		return &p, nil
	}

	p, err := c.next.GetProduct(ctx, name)
	if err != nil {
		return nil, err
	}
	c.products.Add(name, *p)
	return p, nil
}

func (c *Catalog) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	if all, ok := c.listing.Get(listingKey); ok {
		return pointers(all), nil
	}

	ps, err := c.next.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	all := make([]domain.Product, len(ps))
	for i, p := range ps {
		all[i] = *p
		c.products.Add(p.Name, *p)
	}
	c.listing.Add(listingKey, all)
	return pointers(all), nil
}

// Invalidate drops every cached product.
func (c *Catalog) Invalidate() {
	c.products.Purge()
	c.listing.Purge()
}

func pointers(all []domain.Product) []*domain.Product {
	out := make([]*domain.Product, len(all))
	for i := range all {
		p := all[i]
		out[i] = &p
	}
	return out
}
