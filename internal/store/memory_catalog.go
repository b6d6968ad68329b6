package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"storefront-service/internal/domain"
)

// MemoryCatalog implements ProductStorer over a fixed, in-memory product list.
// It is read-only after construction, so it needs no locking.
type MemoryCatalog struct {
	products []domain.Product
	byID     map[string]int
	bySlug   map[string]int
}

// NewMemoryCatalog indexes products. Ids and slugs must be unique.
func NewMemoryCatalog(products []domain.Product) (*MemoryCatalog, error) {
	c := &MemoryCatalog{
		products: make([]domain.Product, 0, len(products)),
		byID:     make(map[string]int, len(products)),
		bySlug:   make(map[string]int, len(products)),
	}
	for _, p := range products {
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("store: duplicate product id %q", p.ID)
		}
		if _, dup := c.bySlug[p.Slug]; dup {
			return nil, fmt.Errorf("store: duplicate product slug %q", p.Slug)
		}
		c.byID[p.ID] = len(c.products)
		c.bySlug[p.Slug] = len(c.products)
		c.products = append(c.products, p.Clone())
	}
	return c, nil
}

// ListProducts returns the products matching filter, in insertion order unless
// a sort is requested. Sorting is stable, so ties keep insertion order.
func (c *MemoryCatalog) ListProducts(ctx context.Context, filter ProductFilter) ([]domain.Product, error) {
	less, err := sortFunc(filter.Sort)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Product, 0, len(c.products))
	for _, p := range c.products {
		if filter.Category != nil && p.Category != *filter.Category {
			continue
		}
		if filter.Featured != nil && p.Featured != *filter.Featured {
			continue
		}
		out = append(out, p.Clone())
	}

	if less != nil {
		sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	}
	return out, nil
}

func (c *MemoryCatalog) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	idx, ok := c.byID[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	p := c.products[idx].Clone()
	return &p, nil
}

func (c *MemoryCatalog) GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	idx, ok := c.bySlug[slug]
	if !ok {
		return nil, ErrProductNotFound
	}
	p := c.products[idx].Clone()
	return &p, nil
}

// SearchProducts matches query case-insensitively as a substring of the name,
// description or category. A blank query matches the whole catalog.
func (c *MemoryCatalog) SearchProducts(ctx context.Context, query string) ([]domain.Product, error) {
	q := strings.ToLower(strings.TrimSpace(query))

	out := make([]domain.Product, 0)
	for _, p := range c.products {
		if q == "" ||
			strings.Contains(strings.ToLower(p.Name), q) ||
			strings.Contains(strings.ToLower(p.Description), q) ||
			strings.Contains(strings.ToLower(string(p.Category)), q) {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

// GetProduct resolves idOrSlug by id first, then by slug.
func GetProduct(ctx context.Context, ps ProductStorer, idOrSlug string) (*domain.Product, error) {
	p, err := ps.GetProductByID(ctx, idOrSlug)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrProductNotFound) {
		return nil, err
	}
	return ps.GetProductBySlug(ctx, idOrSlug)
}

func sortFunc(option string) (func(a, b domain.Product) bool, error) {
	switch strings.ToLower(option) {
	case SortDefault:
		return nil, nil
	case SortFeatured:
		return func(a, b domain.Product) bool { return a.Featured && !b.Featured }, nil
	case SortPriceAsc:
		return func(a, b domain.Product) bool { return a.Price.LessThan(b.Price) }, nil
	case SortPriceDesc:
		return func(a, b domain.Product) bool { return a.Price.GreaterThan(b.Price) }, nil
	case SortNewest:
		return func(a, b domain.Product) bool { return a.CreatedAt.After(b.CreatedAt) }, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidSort, option)
	}
}
