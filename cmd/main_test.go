package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront-service/internal/config"
	"storefront-service/internal/domain"
	"storefront-service/internal/store"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestListFilter(t *testing.T) {
	filter, err := listFilter("Hoodies", "true", "price-asc")
	require.NoError(t, err)
	require.NotNil(t, filter.Category)
	assert.Equal(t, domain.CategoryHoodies, *filter.Category)
	require.NotNil(t, filter.Featured)
	assert.True(t, *filter.Featured)
	assert.Equal(t, store.SortPriceAsc, filter.Sort)

	filter, err = listFilter("all", "", "")
	require.NoError(t, err)
	assert.Nil(t, filter.Category)
	assert.Nil(t, filter.Featured)

	_, err = listFilter("shoes", "", "")
	assert.Error(t, err)
	_, err = listFilter("", "maybe", "")
	assert.Error(t, err)

	_, err = listFilter("", "", "cheapest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "featured, price-asc, price-desc, newest")
}

func TestCatalogCommands(t *testing.T) {
	cfg = &config.Config{DisplayCurrency: "USD"}
	t.Cleanup(func() {
		cfg = nil
		catalogJSON = false
		catalogCurrency = ""
	})

	products, err := openCatalog()
	require.NoError(t, err)
	list, err := products.ListProducts(context.Background(), store.ProductFilter{Sort: store.SortPriceDesc})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, printProducts(&buf, list[:1]))
	assert.Contains(t, buf.String(), "obsidian-jacket")
	assert.Contains(t, buf.String(), "$289.99")

	catalogCurrency = "eur"
	p, err := store.GetProduct(context.Background(), products, "noir-jacket")
	require.NoError(t, err)
	buf.Reset()
	require.NoError(t, printProduct(&buf, p))
	assert.Contains(t, buf.String(), "€149.99")
	assert.Contains(t, buf.String(), "€189.99")
	assert.Contains(t, buf.String(), "L (sold out)")

	catalogJSON = true
	buf.Reset()
	require.NoError(t, printProduct(&buf, p))
	var decoded domain.Product
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "3", decoded.ID)
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "healthy", want: "healthy"},
		{name: "backend down", err: errors.New("dial tcp: refused"), want: "unhealthy"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			healthHandler(zap.NewNop(), fakePinger{err: tc.err})(rec, httptest.NewRequest(http.MethodGet, "/api/v1/healthz", nil))

			assert.Equal(t, http.StatusOK, rec.Code)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "healthy", body["status"])
			assert.Equal(t, tc.want, body["cartStore"])
		})
	}
}
