// Package cart implements the shopping cart operations on top of a cart
// store and the product catalog.
package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"storefront-service/internal/domain"
	"storefront-service/internal/pricing"
	"storefront-service/internal/store"
)

// MaxQuantity is the largest quantity a single cart line may hold.
const MaxQuantity = 999

var (
	// ErrInvalidInput marks caller mistakes: missing or malformed fields.
	ErrInvalidInput = errors.New("cart: invalid input")
	// ErrInvalidQuantity is returned when a quantity of at least 1 is required.
	ErrInvalidQuantity = fmt.Errorf("%w: quantity must be a positive integer", ErrInvalidInput)
	// ErrQuantityLimit is returned when a line would hold more than MaxQuantity.
	ErrQuantityLimit = fmt.Errorf("%w: quantity cannot exceed %d per item", ErrInvalidInput, MaxQuantity)
)

// AddItemInput is a request to put a product variant into a cart.
type AddItemInput struct {
	ProductID string
	Quantity  int
	Size      string
	Color     string
}

// Service implements the cart operations. Every mutation runs inside
// CartStorer.UpdateCart, so it is serialized per cart, and recomputes all
// derived totals before the cart is stored.
type Service struct {
	carts    store.CartStorer
	products store.ProductStorer
	policy   pricing.Policy
	now      func() time.Time
	newID    func() string
	tracer   trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides how cart and line ids are generated.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// WithPolicy overrides the pricing policy.
func WithPolicy(p pricing.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// NewService creates a cart service.
func NewService(carts store.CartStorer, products store.ProductStorer, opts ...Option) *Service {
	s := &Service{
		carts:    carts,
		products: products,
		policy:   pricing.DefaultPolicy,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
		tracer:   otel.Tracer("storefront/cart"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create allocates a new, empty cart with a fresh id.
func (s *Service) Create(ctx context.Context) (*domain.Cart, error) {
	ctx, span := s.tracer.Start(ctx, "cart.Create")
	defer span.End()

	cart := domain.NewCart(s.newID(), s.now())
	s.policy.Apply(cart)
	created, err := s.carts.CreateCart(ctx, cart)
	if err != nil {
		return nil, fmt.Errorf("cart: create: %w", err)
	}
	span.SetAttributes(attribute.String("cart.id", created.ID))
	return created, nil
}

// Get fetches a cart. It returns store.ErrCartNotFound when the id is unknown.
func (s *Service) Get(ctx context.Context, cartID string) (*domain.Cart, error) {
	if strings.TrimSpace(cartID) == "" {
		return nil, store.ErrCartNotFound
	}
	return s.carts.GetCart(ctx, cartID)
}

// GetOrCreate returns the cart for cartID, or a new cart when cartID is empty
// or unknown. The boolean reports whether a cart was created.
func (s *Service) GetOrCreate(ctx context.Context, cartID string) (*domain.Cart, bool, error) {
	cart, err := s.Get(ctx, cartID)
	if err == nil {
		return cart, false, nil
	}
	if !errors.Is(err, store.ErrCartNotFound) {
		return nil, false, err
	}
	cart, err = s.Create(ctx)
	if err != nil {
		return nil, false, err
	}
	return cart, true, nil
}

// AddItem adds a product variant to a cart. If the cart already has a line for
// the same product, size and colour, that line's quantity grows; otherwise a
// new line is appended with a snapshot of the product as it is now.
func (s *Service) AddItem(ctx context.Context, cartID string, in AddItemInput) (*domain.Cart, error) {
	ctx, span := s.tracer.Start(ctx, "cart.AddItem", trace.WithAttributes(
		attribute.String("cart.id", cartID),
		attribute.String("product.id", in.ProductID),
		attribute.Int("quantity", in.Quantity),
	))
	defer span.End()

	if err := validateAdd(in); err != nil {
		return nil, err
	}

	product, err := s.products.GetProductByID(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	size, ok := product.CanonicalSize(strings.TrimSpace(in.Size))
	if !ok {
		return nil, fmt.Errorf("%w: size %q is not offered for product %s", ErrInvalidInput, in.Size, product.ID)
	}
	color, ok := product.CanonicalColor(strings.TrimSpace(in.Color))
	if !ok {
		return nil, fmt.Errorf("%w: color %q is not offered for product %s", ErrInvalidInput, in.Color, product.ID)
	}

	return s.mutate(ctx, cartID, func(cart *domain.Cart) error {
		if idx := cart.FindVariant(product.ID, size, color); idx >= 0 {
			if cart.Items[idx].Quantity > MaxQuantity-in.Quantity {
				return ErrQuantityLimit
			}
			cart.Items[idx].Quantity += in.Quantity
			return nil
		}
		cart.Items = append(cart.Items, domain.CartItem{
			ID:        s.newID(),
			ProductID: product.ID,
			Product:   product.Clone(),
			Quantity:  in.Quantity,
			Size:      size,
			Color:     color,
		})
		return nil
	})
}

// AddItemOrCreate adds a product variant to the cart bound to cartID. When
// cartID is empty or unknown a new cart is created, but only once the input
// has passed validation, so a rejected add never leaves an empty cart behind.
func (s *Service) AddItemOrCreate(ctx context.Context, cartID string, in AddItemInput) (*domain.Cart, error) {
	cart, err := s.AddItem(ctx, cartID, in)
	if !errors.Is(err, store.ErrCartNotFound) {
		return cart, err
	}
	created, err := s.Create(ctx)
	if err != nil {
		return nil, err
	}
	return s.AddItem(ctx, created.ID, in)
}

// UpdateItemQuantity sets a line's quantity exactly. A quantity of zero or less
// removes the line.
func (s *Service) UpdateItemQuantity(ctx context.Context, cartID, itemID string, quantity int) (*domain.Cart, error) {
	ctx, span := s.tracer.Start(ctx, "cart.UpdateItemQuantity", trace.WithAttributes(
		attribute.String("cart.id", cartID),
		attribute.String("item.id", itemID),
		attribute.Int("quantity", quantity),
	))
	defer span.End()

	if quantity > MaxQuantity {
		return nil, ErrQuantityLimit
	}
	return s.mutate(ctx, cartID, func(cart *domain.Cart) error {
		idx := cart.FindItem(itemID)
		if idx < 0 {
			return store.ErrCartItemNotFound
		}
		if quantity <= 0 {
			cart.RemoveItem(itemID)
			return nil
		}
		cart.Items[idx].Quantity = quantity
		return nil
	})
}

// RemoveItem drops a line from the cart. Removing an unknown line is not an
// error; the cart comes back unchanged.
func (s *Service) RemoveItem(ctx context.Context, cartID, itemID string) (*domain.Cart, error) {
	ctx, span := s.tracer.Start(ctx, "cart.RemoveItem", trace.WithAttributes(
		attribute.String("cart.id", cartID),
		attribute.String("item.id", itemID),
	))
	defer span.End()

	cart, err := s.mutate(ctx, cartID, func(cart *domain.Cart) error {
		if !cart.RemoveItem(itemID) {
			return errUnchanged
		}
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return s.Get(ctx, cartID)
	}
	return cart, err
}

// Clear empties the cart. An already empty cart is returned as stored.
func (s *Service) Clear(ctx context.Context, cartID string) (*domain.Cart, error) {
	ctx, span := s.tracer.Start(ctx, "cart.Clear", trace.WithAttributes(attribute.String("cart.id", cartID)))
	defer span.End()

	cart, err := s.mutate(ctx, cartID, func(cart *domain.Cart) error {
		if cart.IsEmpty() {
			return errUnchanged
		}
		cart.Items = []domain.CartItem{}
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return s.Get(ctx, cartID)
	}
	return cart, err
}

// errUnchanged aborts an update without storing anything.
var errUnchanged = errors.New("cart: unchanged")

// mutate applies change to the stored cart, then recomputes totals and bumps
// UpdatedAt, all under the store's per-cart serialization.
func (s *Service) mutate(ctx context.Context, cartID string, change func(cart *domain.Cart) error) (*domain.Cart, error) {
	if strings.TrimSpace(cartID) == "" {
		return nil, store.ErrCartNotFound
	}
	return s.carts.UpdateCart(ctx, cartID, func(cart *domain.Cart) error {
		if err := change(cart); err != nil {
			return err
		}
		s.policy.Apply(cart)
		cart.UpdatedAt = s.now()
		return nil
	})
}

func validateAdd(in AddItemInput) error {
	var missing []string
	if strings.TrimSpace(in.ProductID) == "" {
		missing = append(missing, "productId")
	}
	if strings.TrimSpace(in.Size) == "" {
		missing = append(missing, "size")
	}
	if strings.TrimSpace(in.Color) == "" {
		missing = append(missing, "color")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields: %s", ErrInvalidInput, strings.Join(missing, ", "))
	}
	if in.Quantity < 1 {
		return ErrInvalidQuantity
	}
	if in.Quantity > MaxQuantity {
		return ErrQuantityLimit
	}
	return nil
}
