package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"storefront-service/internal/domain"
)

// Currency is a display currency code.
type Currency string

const (
	GBP Currency = "GBP"
	USD Currency = "USD"
	EUR Currency = "EUR"

	// DefaultCurrency is used when no currency is requested.
	DefaultCurrency = GBP
)

// CurrencyConfig describes how a currency is displayed.
type CurrencyConfig struct {
	Code   Currency `json:"code"`
	Symbol string   `json:"symbol"`
	Label  string   `json:"label"`
}

// Currencies are the supported display currencies. Amounts are shown with the
// currency's symbol only; no exchange rate is applied.
var Currencies = map[Currency]CurrencyConfig{
	GBP: {Code: GBP, Symbol: "£", Label: "United Kingdom"},
	USD: {Code: USD, Symbol: "$", Label: "United States"},
	EUR: {Code: EUR, Symbol: "€", Label: "Europe"},
}

// ParseCurrency resolves a case-insensitive currency code.
func ParseCurrency(code string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(code)))
	if _, ok := Currencies[c]; !ok {
		return "", fmt.Errorf("pricing: unsupported currency %q", code)
	}
	return c, nil
}

// RoundCents rounds an amount to two decimal places, half away from zero.
func RoundCents(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

// Format renders amount rounded to cents with the currency symbol, e.g. "£59.66".
// Unknown currencies fall back to the bare code as a prefix.
func Format(amount decimal.Decimal, currency Currency) string {
	prefix := string(currency) + " "
	if cfg, ok := Currencies[currency]; ok {
		prefix = cfg.Symbol
	}
	if amount.IsNegative() {
		return "-" + prefix + amount.Abs().StringFixed(2)
	}
	return prefix + amount.StringFixed(2)
}

// FormattedTotals are a cart's totals rendered for display.
type FormattedTotals struct {
	Currency Currency `json:"currency"`
	Subtotal string   `json:"subtotal"`
	Tax      string   `json:"tax"`
	Shipping string   `json:"shipping"`
	Total    string   `json:"total"`
}

// FormatCart renders the derived totals of cart in currency.
func FormatCart(cart *domain.Cart, currency Currency) FormattedTotals {
	return FormattedTotals{
		Currency: currency,
		Subtotal: Format(cart.Subtotal, currency),
		Tax:      Format(cart.Tax, currency),
		Shipping: Format(cart.Shipping, currency),
		Total:    Format(cart.Total, currency),
	}
}
