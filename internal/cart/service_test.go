package cart

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"storefront-service/internal/catalog"
	"storefront-service/internal/domain"
	"storefront-service/internal/pricing"
	"storefront-service/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func sequentialIDs() func() string {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("id-%d", n.Add(1)) }
}

func newTestService(t *testing.T) (*Service, *store.MemoryCartStore, *store.MemoryCatalog) {
	t.Helper()
	products, err := catalog.Default()
	require.NoError(t, err)
	cat, err := store.NewMemoryCatalog(products)
	require.NoError(t, err)
	carts := store.NewMemoryCartStore()
	clock := &fakeClock{t: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	svc := NewService(carts, cat, WithClock(clock.Now), WithIDGenerator(sequentialIDs()))
	return svc, carts, cat
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertTotalsConsistent(t *testing.T, c *domain.Cart) {
	t.Helper()
	s := pricing.DefaultPolicy.Summarize(c.Items)
	assert.True(t, c.Subtotal.Equal(s.Subtotal), "subtotal %s != %s", c.Subtotal, s.Subtotal)
	assert.True(t, c.Tax.Equal(c.Subtotal.Mul(pricing.TaxRate)), "tax")
	assert.True(t, c.Total.Equal(c.Subtotal.Add(c.Tax).Add(c.Shipping)), "total")
	assert.Equal(t, s.ItemCount, c.ItemCount)
}

func TestCreate_EmptyCart(t *testing.T) {
	svc, carts, _ := newTestService(t)
	ctx := context.Background()

	c, err := svc.Create(ctx)
	require.NoError(t, err)

	assert.Equal(t, "id-1", c.ID)
	assert.Empty(t, c.Items)
	assert.True(t, c.Subtotal.IsZero())
	assert.True(t, c.Tax.IsZero())
	assert.True(t, c.Shipping.IsZero())
	assert.True(t, c.Total.IsZero())
	assert.Equal(t, c.CreatedAt, c.UpdatedAt)
	assert.Equal(t, 1, carts.Len())
}

func TestAddItem_SingleTeeScenario(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	c, err := svc.Create(ctx)
	require.NoError(t, err)

	c, err = svc.AddItem(ctx, c.ID, AddItemInput{ProductID: "2", Quantity: 1, Size: "M", Color: "Black"})
	require.NoError(t, err)

	require.Len(t, c.Items, 1)
	line := c.Items[0]
	assert.Equal(t, "2", line.ProductID)
	assert.Equal(t, "Phantom Tee", line.Product.Name)
	assert.Equal(t, "M", line.Size)
	assert.Equal(t, "Black", line.Color)
	assert.True(t, c.Subtotal.Equal(dec("45.99")))
	assert.True(t, c.Tax.Equal(dec("3.6792")))
	assert.True(t, c.Shipping.Equal(dec("9.99")))
	assert.Equal(t, "59.66", pricing.RoundCents(c.Total).StringFixed(2))
	assert.True(t, c.UpdatedAt.After(c.CreatedAt))
	assertTotalsConsistent(t, c)
}

func TestAddItem_ThreeVoidTeesShipFree(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	c, err := svc.Create(ctx)
	require.NoError(t, err)

	c, err = svc.AddItem(ctx, c.ID, AddItemInput{ProductID: "5", Quantity: 3, Size: "S", Color: "White"})
	require.NoError(t, err)

	assert.True(t, c.Subtotal.Equal(dec("119.97")))
	assert.True(t, c.Shipping.IsZero())
	assert.True(t, c.Tax.Equal(dec("9.5976")))
	assert.Equal(t, "129.57", pricing.RoundCents(c.Total).StringFixed(2))
	assert.Equal(t, 3, c.ItemCount)
}

func TestAddItem_MergesSameVariant(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	c, err := svc.Create(ctx)
	require.NoError(t, err)

	c, err = svc.AddItem(ctx, c.ID, AddItemInput{ProductID: "1", Quantity: 2, Size: "M", Color: "Black"})
	require.NoError(t, err)
	firstID := c.Items[0].ID

	// Size and colour are matched case-insensitively and by name or hex.
	c, err = svc.AddItem(ctx, c.ID, AddItemInput{ProductID: "1", Quantity: 3, Size: "medium", Color: "#000000"})
	require.NoError(t, err)

	require.Len(t, c.Items, 1)
	assert.Equal(t, firstID, c.Items[0].ID)
	assert.Equal(t, 5, c.Items[0].Quantity)
	assertTotalsConsistent(t, c)
}

func TestAddItem_DifferentVariantsKeepInsertionOrder(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	c, err := svc.Create(ctx)
	require.NoError(t, err)

	adds := []AddItemInput{
		{ProductID: "1", Quantity: 1, Size: "M", Color: "Black"},
		{ProductID: "1", Quantity: 1, Size: "L", Color: "Black"},
		{ProductID: "1", Quantity: 1, Size: "M", Color: "White"},
		{ProductID: "3", Quantity: 1, Size: "S", Color: "Black"},
	}
	for _, in := range adds {
		c, err = svc.AddItem(ctx, c.ID, in)
		require.NoError(t, err)
	}

	require.Len(t, c.Items, 4)
	assert.Equal(t, "L", c.Items[1].Size)
	assert.Equal(t, "White", c.Items[2].Color)
	assert.Equal(t, "3", c.Items[3].ProductID)
	assert.True(t, c.Shipping.IsZero())
	assertTotalsConsistent(t, c)
}

func TestAddItem_Rejects(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	c, err := svc.Create(ctx)
	require.NoError(t, err)

	tests := []struct {
		name string
		in   AddItemInput
		want error
	}{
		{name: "zero quantity", in: AddItemInput{ProductID: "2", Quantity: 0, Size: "M", Color: "Black"}, want: ErrInvalidQuantity},
		{name: "negative quantity", in: AddItemInput{ProductID: "2", Quantity: -2, Size: "M", Color: "Black"}, want: ErrInvalidInput},
		{name: "missing product id", in: AddItemInput{Quantity: 1, Size: "M", Color: "Black"}, want: ErrInvalidInput},
		{name: "missing size", in: AddItemInput{ProductID: "2", Quantity: 1, Color: "Black"}, want: ErrInvalidInput},
		{name: "missing color", in: AddItemInput{ProductID: "2", Quantity: 1, Size: "M"}, want: ErrInvalidInput},
		{name: "size not offered", in: AddItemInput{ProductID: "3", Quantity: 1, Size: "XL", Color: "Black"}, want: ErrInvalidInput},
		{name: "color not offered", in: AddItemInput{ProductID: "3", Quantity: 1, Size: "M", Color: "Pink"}, want: ErrInvalidInput},
		{name: "unknown product", in: AddItemInput{ProductID: "404", Quantity: 1, Size: "M", Color: "Black"}, want: store.ErrProductNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.AddItem(ctx, c.ID, tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	got, err := svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Items, "rejected adds leave the cart untouched")
}

func TestAddItem_UnknownCart(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.AddItem(context.Background(), "nope", AddItemInput{ProductID: "2", Quantity: 1, Size: "M", Color: "Black"})
	assert.ErrorIs(t, err, store.ErrCartNotFound)
}

func TestAddItem_SnapshotIsNotLive(t *testing.T) {
	products, err := catalog.Default()
	require.NoError(t, err)
	cat, err := store.NewMemoryCatalog(products)
	require.NoError(t, err)
	carts := store.NewMemoryCartStore()
	svc := NewService(carts, cat)
	ctx := context.Background()

	c, err := svc.Create(ctx)
	require.NoError(t, err)
	c, err = svc.AddItem(ctx, c.ID, AddItemInput{ProductID: "2", Quantity: 1, Size: "M", Color: "Black"})
	require.NoError(t, err)

	// Re-price the catalog: a new catalog with the tee at a different price.
	products[1].Price = dec("10.00")
	repriced, err := store.NewMemoryCatalog(products)
	require.NoError(t, err)
	svc = NewService(carts, repriced)

	c, err = svc.UpdateItemQuantity(ctx, c.ID, c.Items[0].ID, 2)
	require.NoError(t, err)
	assert.True(t, c.Items[0].Product.Price.Equal(dec("45.99")))
	assert.True(t, c.Subtotal.Equal(dec("91.98")))

	// A new line for another variant snapshots the new price.
	c, err = svc.AddItem(ctx, c.ID, AddItemInput{ProductID: "2", Quantity: 1, Size: "L", Color: "Black"})
	require.NoError(t, err)
	assert.True(t, c.Items[1].Product.Price.Equal(dec("10.00")))
	assert.True(t, c.Subtotal.Equal(dec("101.98")))
	assert.True(t, c.Shipping.IsZero())
}

func TestUpdateItemQuantity(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	c, err := svc.Create(ctx)
	require.NoError(t, err)
	c, err = svc.AddItem(ctx, c.ID, AddItemInput{ProductID: "6", Quantity: 1, Size: "M", Color: "Black"})
	require.NoError(t, err)
	c, err = svc.AddItem(ctx, c.ID, AddItemInput{ProductID: "2", Quantity: 1, Size: "M", Color: "Black"})
	require.NoError(t, err)
	jacket, tee := c.Items[0].ID, c.Items[1].ID

	c, err = svc.UpdateItemQuantity(ctx, c.ID, tee, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, c.Items[1].Quantity)
	assertTotalsConsistent(t, c)

	c, err = svc.UpdateItemQuantity(ctx, c.ID, jacket, 0)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, tee, c.Items[0].ID)
	assert.True(t, c.Subtotal.Equal(dec("183.96")))
	assertTotalsConsistent(t, c)

	c, err = svc.UpdateItemQuantity(ctx, c.ID, tee, -1)
	require.NoError(t, err)
	assert.Empty(t, c.Items)
	assert.True(t, c.Total.IsZero())
	assert.True(t, c.Shipping.IsZero())

	_, err = svc.UpdateItemQuantity(ctx, c.ID, "missing", 1)
	assert.ErrorIs(t, err, store.ErrCartItemNotFound)

	_, err = svc.UpdateItemQuantity(ctx, "no-cart", tee, 1)
	assert.ErrorIs(t, err, store.ErrCartNotFound)
}

func TestRemoveItem(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	c, err := svc.Create(ctx)
	require.NoError(t, err)
	c, err = svc.AddItem(ctx, c.ID, AddItemInput{ProductID: "9", Quantity: 1, Size: "M", Color: "Black"})
	require.NoError(t, err)
	before := c

	unchanged, err := svc.RemoveItem(ctx, c.ID, "missing")
	require.NoError(t, err)
	assert.Equal(t, before, unchanged, "removing an unknown line returns the cart unchanged")

	c, err = svc.RemoveItem(ctx, c.ID, before.Items[0].ID)
	require.NoError(t, err)
	assert.Empty(t, c.Items)
	assert.True(t, c.Total.IsZero())
	assert.True(t, c.UpdatedAt.After(before.UpdatedAt))

	_, err = svc.RemoveItem(ctx, "no-cart", "x")
	assert.ErrorIs(t, err, store.ErrCartNotFound)
}

func TestClear(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	c, err := svc.Create(ctx)
	require.NoError(t, err)
	c, err = svc.AddItem(ctx, c.ID, AddItemInput{ProductID: "4", Quantity: 2, Size: "L", Color: "Charcoal"})
	require.NoError(t, err)
	require.False(t, c.IsEmpty())

	c, err = svc.Clear(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
	assert.NotNil(t, c.Items)
	assert.True(t, c.Subtotal.IsZero())
	assert.True(t, c.Total.IsZero())
	assert.Equal(t, 0, c.ItemCount)

	_, err = svc.Clear(ctx, "no-cart")
	assert.ErrorIs(t, err, store.ErrCartNotFound)
}

func TestClear_EmptyCartIsUnchanged(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	c, err := svc.Create(ctx)
	require.NoError(t, err)

	cleared, err := svc.Clear(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, cleared.IsEmpty())
	assert.Equal(t, c.UpdatedAt, cleared.UpdatedAt)
}

func TestAddItem_QuantityLimit(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	c, err := svc.Create(ctx)
	require.NoError(t, err)
	tee := AddItemInput{ProductID: "2", Size: "M", Color: "Black"}

	for _, qty := range []int{MaxQuantity + 1, math.MaxInt} {
		in := tee
		in.Quantity = qty
		_, err := svc.AddItem(ctx, c.ID, in)
		assert.ErrorIs(t, err, ErrQuantityLimit, "quantity %d", qty)
		assert.ErrorIs(t, err, ErrInvalidInput)
	}

	in := tee
	in.Quantity = MaxQuantity
	c, err = svc.AddItem(ctx, c.ID, in)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)

	in.Quantity = 1
	_, err = svc.AddItem(ctx, c.ID, in)
	assert.ErrorIs(t, err, ErrQuantityLimit, "merging must not push the line past the limit")

	got, err := svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, MaxQuantity, got.Items[0].Quantity)
	assert.True(t, got.Subtotal.IsPositive())
	assertTotalsConsistent(t, got)

	_, err = svc.UpdateItemQuantity(ctx, c.ID, got.Items[0].ID, MaxQuantity+1)
	assert.ErrorIs(t, err, ErrQuantityLimit)
	_, err = svc.UpdateItemQuantity(ctx, c.ID, got.Items[0].ID, math.MaxInt)
	assert.ErrorIs(t, err, ErrQuantityLimit)
}

func TestAddItemOrCreate(t *testing.T) {
	svc, carts, _ := newTestService(t)
	ctx := context.Background()
	tee := AddItemInput{ProductID: "2", Quantity: 1, Size: "M", Color: "Black"}

	_, err := svc.AddItemOrCreate(ctx, "", AddItemInput{ProductID: "404", Quantity: 1, Size: "M", Color: "Black"})
	assert.ErrorIs(t, err, store.ErrProductNotFound)
	_, err = svc.AddItemOrCreate(ctx, "", AddItemInput{ProductID: "2", Quantity: 1, Size: "M", Color: "Pink"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, 0, carts.Len(), "rejected adds allocate no cart")

	c, err := svc.AddItemOrCreate(ctx, "", tee)
	require.NoError(t, err)
	assert.Equal(t, 1, carts.Len())
	assert.Equal(t, 1, c.ItemCount)

	again, err := svc.AddItemOrCreate(ctx, c.ID, tee)
	require.NoError(t, err)
	assert.Equal(t, c.ID, again.ID)
	assert.Equal(t, 2, again.Items[0].Quantity)

	fresh, err := svc.AddItemOrCreate(ctx, "forgotten-after-restart", tee)
	require.NoError(t, err)
	assert.NotEqual(t, c.ID, fresh.ID)
	assert.Equal(t, 2, carts.Len())
}

func TestGetOrCreate(t *testing.T) {
	svc, carts, _ := newTestService(t)
	ctx := context.Background()

	c, created, err := svc.GetOrCreate(ctx, "")
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := svc.GetOrCreate(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, c.ID, again.ID)

	fresh, created, err := svc.GetOrCreate(ctx, "forgotten-after-restart")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, "forgotten-after-restart", fresh.ID)
	assert.Equal(t, 2, carts.Len())
}

func TestConcurrentAddsToOneVariantMerge(t *testing.T) {
	products, err := catalog.Default()
	require.NoError(t, err)
	cat, err := store.NewMemoryCatalog(products)
	require.NoError(t, err)
	svc := NewService(store.NewMemoryCartStore(), cat)
	ctx := context.Background()

	c, err := svc.Create(ctx)
	require.NoError(t, err)

	const N = 100
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < N; i++ {
		g.Go(func() error {
			_, err := svc.AddItem(gctx, c.ID, AddItemInput{ProductID: "2", Quantity: 1, Size: "M", Color: "Black"})
			return err
		})
	}
	require.NoError(t, g.Wait())

	got, err := svc.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, N, got.Items[0].Quantity)
	assertTotalsConsistent(t, got)
}

// MockProductStorer is a mock implementation of store.ProductStorer
type MockProductStorer struct {
	mock.Mock
}

func (m *MockProductStorer) ListProducts(ctx context.Context, filter store.ProductFilter) ([]domain.Product, error) {
	args := m.Called(ctx, filter)
	var products []domain.Product
	if arg0 := args.Get(0); arg0 != nil {
		products = arg0.([]domain.Product)
	}
	return products, args.Error(1)
}

func (m *MockProductStorer) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *MockProductStorer) GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *MockProductStorer) SearchProducts(ctx context.Context, query string) ([]domain.Product, error) {
	args := m.Called(ctx, query)
	var products []domain.Product
	if arg0 := args.Get(0); arg0 != nil {
		products = arg0.([]domain.Product)
	}
	return products, args.Error(1)
}

func TestAddItem_PropagatesCatalogFailure(t *testing.T) {
	products := new(MockProductStorer)
	svc := NewService(store.NewMemoryCartStore(), products)
	ctx := context.Background()
	c, err := svc.Create(ctx)
	require.NoError(t, err)

	boom := errors.New("catalog unavailable")
	products.On("GetProductByID", mock.Anything, "2").Return(nil, boom).Once()

	_, err = svc.AddItem(ctx, c.ID, AddItemInput{ProductID: "2", Quantity: 1, Size: "M", Color: "Black"})
	assert.ErrorIs(t, err, boom)
	assert.False(t, store.IsNotFound(err))
	assert.False(t, errors.Is(err, ErrInvalidInput))
	products.AssertExpectations(t)
}
