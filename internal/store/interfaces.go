package store

import (
	"context"

	"storefront-service/internal/domain"
)

// Sort orders accepted by ListProducts. SortDefault keeps catalog insertion
// order; SortNewest puts the most recently created products first.
const (
	SortDefault   = ""
	SortFeatured  = "featured"
	SortPriceAsc  = "price-asc"
	SortPriceDesc = "price-desc"
	SortNewest    = "newest"
)

// SortOptions lists every accepted sort value, default included.
var SortOptions = []string{SortDefault, SortFeatured, SortPriceAsc, SortPriceDesc, SortNewest}

// ProductFilter holds the optional filters for listing products.
type ProductFilter struct {
	Category *domain.Category // exact match; nil means any category
	Featured *bool            // exact match; nil means any
	Sort     string           // one of SortOptions
}

// ProductStorer defines the read operations on the product catalog.
type ProductStorer interface {
	ListProducts(ctx context.Context, filter ProductFilter) ([]domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error)
	SearchProducts(ctx context.Context, query string) ([]domain.Product, error)
}

// CartStorer defines the persistence operations for carts.
//
// UpdateCart runs fn against the current state of the cart and stores the
// result. Calls for the same cart id are serialized: fn always sees the
// outcome of the previous update. If fn returns an error nothing is stored.
type CartStorer interface {
	CreateCart(ctx context.Context, cart *domain.Cart) (*domain.Cart, error)
	GetCart(ctx context.Context, id string) (*domain.Cart, error)
	UpdateCart(ctx context.Context, id string, fn func(cart *domain.Cart) error) (*domain.Cart, error)
	DeleteCart(ctx context.Context, id string) error
	Ping(ctx context.Context) error
	Close() error
}
