package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Money travels as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// Category is the product category enum.
type Category string

const (
	CategoryHoodies     Category = "hoodies"
	CategoryTees        Category = "tees"
	CategoryJackets     Category = "jackets"
	CategoryAccessories Category = "accessories"
)

// Categories lists every valid category in display order.
var Categories = []Category{CategoryHoodies, CategoryTees, CategoryJackets, CategoryAccessories}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Size is a purchasable size of a product.
type Size struct {
	Name    string `json:"name"`
	Code    string `json:"code"` // XS, S, M, L, XL, XXL
	InStock bool   `json:"inStock"`
}

// Color is a purchasable colour of a product.
type Color struct {
	Name    string `json:"name"`
	Hex     string `json:"hex"`
	InStock bool   `json:"inStock"`
}

// Product represents a product in the catalog.
// The json tags correspond to the fields the storefront UI consumes.
type Product struct {
	ID             string           `json:"id"`
	Slug           string           `json:"slug"`
	Name           string           `json:"name"`
	Description    string           `json:"description"`
	Price          decimal.Decimal  `json:"price"`
	CompareAtPrice *decimal.Decimal `json:"compareAtPrice,omitempty"` // nil when the product is not discounted
	Category       Category         `json:"category"`
	Images         []string         `json:"images"`
	Sizes          []Size           `json:"sizes"`
	Colors         []Color          `json:"colors"`
	Stock          int              `json:"stock"`
	Featured       bool             `json:"featured"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

// Clone returns a deep copy of p. Cart lines hold clones so later catalog
// changes never reach them.
func (p Product) Clone() Product {
	out := p
	if p.CompareAtPrice != nil {
		v := *p.CompareAtPrice
		out.CompareAtPrice = &v
	}
	out.Images = append([]string(nil), p.Images...)
	out.Sizes = append([]Size(nil), p.Sizes...)
	out.Colors = append([]Color(nil), p.Colors...)
	return out
}

// CanonicalSize maps s onto the product's declared size code, matching code or
// name case-insensitively. A product without declared sizes accepts s as is.
func (p Product) CanonicalSize(s string) (string, bool) {
	if len(p.Sizes) == 0 {
		return s, true
	}
	for _, size := range p.Sizes {
		if strings.EqualFold(size.Code, s) || strings.EqualFold(size.Name, s) {
			return size.Code, true
		}
	}
	return "", false
}

// CanonicalColor maps c onto the product's declared colour name, matching name
// or hex case-insensitively.
func (p Product) CanonicalColor(c string) (string, bool) {
	if len(p.Colors) == 0 {
		return c, true
	}
	for _, color := range p.Colors {
		if strings.EqualFold(color.Name, c) || strings.EqualFold(color.Hex, c) {
			return color.Name, true
		}
	}
	return "", false
}
