// Package pricing derives cart totals from cart lines.
//
// Every amount is exact decimal arithmetic. Nothing is rounded while totals
// are computed; rounding to cents only happens in RoundCents and Format.
package pricing

import (
	"github.com/shopspring/decimal"

	"storefront-service/internal/domain"
)

var (
	// TaxRate is the sales tax applied to the subtotal.
	TaxRate = decimal.RequireFromString("0.08")
	// FreeShippingThreshold is the pre-tax subtotal at or above which shipping is free.
	FreeShippingThreshold = decimal.RequireFromString("100.00")
	// FlatShippingFee is charged below the free-shipping threshold.
	FlatShippingFee = decimal.RequireFromString("9.99")
)

// Policy holds the pricing parameters.
type Policy struct {
	TaxRate               decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	FlatShippingFee       decimal.Decimal
}

// DefaultPolicy is the storefront's pricing policy.
var DefaultPolicy = Policy{
	TaxRate:               TaxRate,
	FreeShippingThreshold: FreeShippingThreshold,
	FlatShippingFee:       FlatShippingFee,
}

// Summary is the set of derived cart totals.
type Summary struct {
	Subtotal  decimal.Decimal
	Tax       decimal.Decimal
	Shipping  decimal.Decimal
	Total     decimal.Decimal
	ItemCount int
}

// Summarize computes the totals for items. It is a pure function of the
// snapshot prices and quantities. An empty cart has all totals at zero.
func (p Policy) Summarize(items []domain.CartItem) Summary {
	subtotal := decimal.Zero
	count := 0
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal())
		count += item.Quantity
	}

	if len(items) == 0 {
		return Summary{Subtotal: decimal.Zero, Tax: decimal.Zero, Shipping: decimal.Zero, Total: decimal.Zero}
	}

	tax := subtotal.Mul(p.TaxRate)
	shipping := p.FlatShippingFee
	if subtotal.GreaterThanOrEqual(p.FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	return Summary{
		Subtotal:  subtotal,
		Tax:       tax,
		Shipping:  shipping,
		Total:     subtotal.Add(tax).Add(shipping),
		ItemCount: count,
	}
}

// Apply recomputes every derived field of cart from its items.
func (p Policy) Apply(cart *domain.Cart) {
	s := p.Summarize(cart.Items)
	cart.Subtotal = s.Subtotal
	cart.Tax = s.Tax
	cart.Shipping = s.Shipping
	cart.Total = s.Total
	cart.ItemCount = s.ItemCount
}
