package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartItem is one line of a cart: a product variant and its quantity.
// Product is a snapshot taken when the line was created; it is never
// re-read from the catalog.
type CartItem struct {
	ID        string  `json:"id"`
	ProductID string  `json:"productId"`
	Product   Product `json:"product"`
	Quantity  int     `json:"quantity"`
	Size      string  `json:"size"`
	Color     string  `json:"color"`
}

// Matches reports whether the line holds the given product variant.
func (i CartItem) Matches(productID, size, color string) bool {
	return i.ProductID == productID && i.Size == size && i.Color == color
}

// LineTotal is the snapshot price times quantity.
func (i CartItem) LineTotal() decimal.Decimal {
	return i.Product.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is a session-scoped shopping cart. Subtotal, Tax, Shipping, Total and
// ItemCount are derived from Items and are recomputed after every mutation.
type Cart struct {
	ID        string          `json:"id"`
	Items     []CartItem      `json:"items"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Tax       decimal.Decimal `json:"tax"`
	Shipping  decimal.Decimal `json:"shipping"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"itemCount"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// NewCart returns an empty cart with zeroed totals.
func NewCart(id string, now time.Time) *Cart {
	return &Cart{
		ID:        id,
		Items:     []CartItem{},
		Subtotal:  decimal.Zero,
		Tax:       decimal.Zero,
		Shipping:  decimal.Zero,
		Total:     decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// FindItem returns the index of the line with the given id, or -1.
func (c *Cart) FindItem(itemID string) int {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			return i
		}
	}
	return -1
}

// FindVariant returns the index of the line holding the product variant, or -1.
func (c *Cart) FindVariant(productID, size, color string) int {
	for i := range c.Items {
		if c.Items[i].Matches(productID, size, color) {
			return i
		}
	}
	return -1
}

// RemoveItem drops the line with the given id, keeping the order of the rest.
// It reports whether a line was removed.
func (c *Cart) RemoveItem(itemID string) bool {
	idx := c.FindItem(itemID)
	if idx < 0 {
		return false
	}
	c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
	return true
}

// Clone returns a deep copy of the cart.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	out := *c
	out.Items = make([]CartItem, len(c.Items))
	for i, item := range c.Items {
		item.Product = item.Product.Clone()
		out.Items[i] = item
	}
	return &out
}
