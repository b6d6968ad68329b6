// Package session binds a browser session to a cart through a cookie that
// carries the cart id.
package session

import (
	"context"
	"net/http"
	"strings"
	"time"

	"storefront-service/internal/domain"
)

const (
	// DefaultCookieName is the cookie the cart id is stored in.
	DefaultCookieName = "cartId"
	// DefaultTTL is how long a session cookie lives.
	DefaultTTL = 7 * 24 * time.Hour
)

// CartProvider returns the cart for an id, creating one when the id is empty
// or unknown.
type CartProvider interface {
	GetOrCreate(ctx context.Context, cartID string) (*domain.Cart, bool, error)
}

// Binder reads and writes the session cookie.
type Binder struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// NewBinder returns a Binder, filling in defaults for empty values.
func NewBinder(cookieName string, ttl time.Duration, secure bool) *Binder {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Binder{CookieName: cookieName, TTL: ttl, Secure: secure}
}

// Token returns the cart id carried by the request, or "" when there is none.
func (b *Binder) Token(r *http.Request) string {
	c, err := r.Cookie(b.CookieName)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}

// Issue sets the session cookie to cartID, restarting its lifetime.
func (b *Binder) Issue(w http.ResponseWriter, cartID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     b.CookieName,
		Value:    cartID,
		Path:     "/",
		MaxAge:   int(b.TTL.Seconds()),
		Expires:  time.Now().Add(b.TTL),
		HttpOnly: true,
		Secure:   b.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Resolve returns the cart bound to the request. A missing or stale token
// gets a fresh cart. The cookie is always reissued.
func (b *Binder) Resolve(w http.ResponseWriter, r *http.Request, carts CartProvider) (*domain.Cart, error) {
	cart, _, err := carts.GetOrCreate(r.Context(), b.Token(r))
	if err != nil {
		return nil, err
	}
	b.Issue(w, cart.ID)
	return cart, nil
}
