package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-service/internal/domain"
)

func TestDefault_LoadsSeedInOrder(t *testing.T) {
	products, err := Default()
	require.NoError(t, err)
	require.Len(t, products, 9)

	for i, p := range products {
		assert.Equal(t, string(rune('1'+i)), p.ID, "products keep document order")
	}

	noir := products[2]
	assert.Equal(t, "noir-jacket", noir.Slug)
	assert.Equal(t, domain.CategoryJackets, noir.Category)
	assert.Equal(t, "149.99", noir.Price.StringFixed(2))
	require.NotNil(t, noir.CompareAtPrice)
	assert.Equal(t, "189.99", noir.CompareAtPrice.StringFixed(2))
	assert.Equal(t, 2024, noir.CreatedAt.Year())

	tee := products[1]
	assert.Nil(t, tee.CompareAtPrice)
	assert.Equal(t, "45.99", tee.Price.String())
	require.Len(t, tee.Colors, 2)
	assert.Equal(t, "#FFFFFF", tee.Colors[1].Hex)
}

const validProduct = `
  - id: "a"
    slug: a
    name: A
    price: "10.00"
    category: tees
    sizes:
      - { name: Small, code: S, in_stock: true }
    colors:
      - { name: Black, hex: "#000000", in_stock: true }
    stock: 1
    created_at: "2024-02-01"
`

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{name: "empty catalog", doc: "products: []\n", want: "validation failed"},
		{name: "unknown field", doc: "products:\n  - id: x\n    colour: red\n", want: "decode"},
		{name: "bad category", doc: strings.Replace("products:"+validProduct, "category: tees", "category: shoes", 1), want: "validation failed"},
		{name: "bad size code", doc: strings.Replace("products:"+validProduct, "code: S", "code: XXXL", 1), want: "validation failed"},
		{name: "bad hex", doc: strings.Replace("products:"+validProduct, `"#000000"`, `"black"`, 1), want: "validation failed"},
		{name: "negative stock", doc: strings.Replace("products:"+validProduct, "stock: 1", "stock: -1", 1), want: "validation failed"},
		{name: "bad price", doc: strings.Replace("products:"+validProduct, `"10.00"`, `"ten"`, 1), want: "invalid price"},
		{name: "negative price", doc: strings.Replace("products:"+validProduct, `"10.00"`, `"-1"`, 1), want: "negative price"},
		{name: "bad date", doc: strings.Replace("products:"+validProduct, `"2024-02-01"`, `"yesterday"`, 1), want: "invalid created_at"},
		{name: "duplicate id", doc: "products:" + validProduct + strings.Replace(validProduct, "slug: a", "slug: b", 1), want: "duplicate id"},
		{name: "duplicate slug", doc: "products:" + validProduct + strings.Replace(validProduct, `id: "a"`, `id: "b"`, 1), want: "duplicate slug"},
		{
			name: "duplicate size code",
			doc:  strings.Replace("products:"+validProduct, "      - { name: Small, code: S, in_stock: true }\n", "      - { name: Small, code: S, in_stock: true }\n      - { name: Petite, code: S, in_stock: true }\n", 1),
			want: "duplicate size code",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tc.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("products:"+validProduct), 0o600))

	products, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, products[0].CreatedAt, products[0].UpdatedAt, "updated_at defaults to created_at")
	assert.NotNil(t, products[0].Images)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
