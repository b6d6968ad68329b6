// Package catalog loads and validates the storefront's product seed data.
package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"storefront-service/internal/domain"
)

//go:embed catalog.yaml
var defaultCatalog []byte

type seedFile struct {
	Products []seedProduct `yaml:"products" validate:"required,min=1,dive"`
}

type seedSize struct {
	Name    string `yaml:"name" validate:"required"`
	Code    string `yaml:"code" validate:"required,oneof=XS S M L XL XXL"`
	InStock bool   `yaml:"in_stock"`
}

type seedColor struct {
	Name    string `yaml:"name" validate:"required"`
	Hex     string `yaml:"hex" validate:"required,hexcolor"`
	InStock bool   `yaml:"in_stock"`
}

type seedProduct struct {
	ID             string      `yaml:"id" validate:"required"`
	Slug           string      `yaml:"slug" validate:"required,max=255"`
	Name           string      `yaml:"name" validate:"required,max=255"`
	Description    string      `yaml:"description"`
	Price          string      `yaml:"price" validate:"required"`
	CompareAtPrice string      `yaml:"compare_at_price"`
	Category       string      `yaml:"category" validate:"required,oneof=hoodies tees jackets accessories"`
	Images         []string    `yaml:"images"`
	Sizes          []seedSize  `yaml:"sizes" validate:"dive"`
	Colors         []seedColor `yaml:"colors" validate:"dive"`
	Stock          int         `yaml:"stock" validate:"gte=0"`
	Featured       bool        `yaml:"featured"`
	CreatedAt      string      `yaml:"created_at" validate:"required"`
	UpdatedAt      string      `yaml:"updated_at"`
}

// Default returns the embedded storefront catalog.
func Default() ([]domain.Product, error) {
	return Load(bytes.NewReader(defaultCatalog))
}

// LoadFile reads a catalog from a YAML file on disk.
func LoadFile(path string) ([]domain.Product, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes and validates a YAML catalog. Products keep document order.
func Load(r io.Reader) ([]domain.Product, error) {
	var seed seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}

	if err := validator.New().Struct(seed); err != nil {
		return nil, fmt.Errorf("catalog: validation failed: %w", err)
	}

	products := make([]domain.Product, 0, len(seed.Products))
	ids := make(map[string]struct{}, len(seed.Products))
	slugs := make(map[string]struct{}, len(seed.Products))
	for i, sp := range seed.Products {
		if _, dup := ids[sp.ID]; dup {
			return nil, fmt.Errorf("catalog: product %d: duplicate id %q", i, sp.ID)
		}
		if _, dup := slugs[sp.Slug]; dup {
			return nil, fmt.Errorf("catalog: product %d: duplicate slug %q", i, sp.Slug)
		}
		ids[sp.ID] = struct{}{}
		slugs[sp.Slug] = struct{}{}

		p, err := sp.toDomain()
		if err != nil {
			return nil, fmt.Errorf("catalog: product %q: %w", sp.ID, err)
		}
		products = append(products, p)
	}
	return products, nil
}

func (sp seedProduct) toDomain() (domain.Product, error) {
	price, err := decimal.NewFromString(sp.Price)
	if err != nil {
		return domain.Product{}, fmt.Errorf("invalid price %q: %w", sp.Price, err)
	}
	if price.IsNegative() {
		return domain.Product{}, fmt.Errorf("negative price %s", price)
	}

	var compareAt *decimal.Decimal
	if sp.CompareAtPrice != "" {
		v, err := decimal.NewFromString(sp.CompareAtPrice)
		if err != nil {
			return domain.Product{}, fmt.Errorf("invalid compare_at_price %q: %w", sp.CompareAtPrice, err)
		}
		compareAt = &v
	}

	createdAt, err := parseDate(sp.CreatedAt)
	if err != nil {
		return domain.Product{}, fmt.Errorf("invalid created_at: %w", err)
	}
	updatedAt := createdAt
	if sp.UpdatedAt != "" {
		if updatedAt, err = parseDate(sp.UpdatedAt); err != nil {
			return domain.Product{}, fmt.Errorf("invalid updated_at: %w", err)
		}
	}

	sizes := make([]domain.Size, 0, len(sp.Sizes))
	seenCodes := make(map[string]struct{}, len(sp.Sizes))
	for _, s := range sp.Sizes {
		if _, dup := seenCodes[s.Code]; dup {
			return domain.Product{}, fmt.Errorf("duplicate size code %q", s.Code)
		}
		seenCodes[s.Code] = struct{}{}
		sizes = append(sizes, domain.Size{Name: s.Name, Code: s.Code, InStock: s.InStock})
	}

	colors := make([]domain.Color, 0, len(sp.Colors))
	seenColors := make(map[string]struct{}, len(sp.Colors))
	for _, c := range sp.Colors {
		key := strings.ToLower(c.Name)
		if _, dup := seenColors[key]; dup {
			return domain.Product{}, fmt.Errorf("duplicate color %q", c.Name)
		}
		seenColors[key] = struct{}{}
		colors = append(colors, domain.Color{Name: c.Name, Hex: strings.ToUpper(c.Hex), InStock: c.InStock})
	}

	images := sp.Images
	if images == nil {
		images = []string{}
	}

	return domain.Product{
		ID:             sp.ID,
		Slug:           sp.Slug,
		Name:           sp.Name,
		Description:    sp.Description,
		Price:          price,
		CompareAtPrice: compareAt,
		Category:       domain.Category(sp.Category),
		Images:         images,
		Sizes:          sizes,
		Colors:         colors,
		Stock:          sp.Stock,
		Featured:       sp.Featured,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
