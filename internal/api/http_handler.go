package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"storefront-service/internal/cart"
	"storefront-service/internal/domain"
	"storefront-service/internal/pricing"
	"storefront-service/internal/session"
	"storefront-service/internal/store"
)

// HTTPHandler holds dependencies for HTTP handlers.
type HTTPHandler struct {
	products store.ProductStorer
	carts    *cart.Service
	sessions *session.Binder
	currency pricing.Currency
	logger   *zap.Logger
	validate *validator.Validate
}

// NewHTTPHandler creates a new HTTPHandler with dependencies.
func NewHTTPHandler(products store.ProductStorer, carts *cart.Service, sessions *session.Binder, currency pricing.Currency, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{
		products: products,
		carts:    carts,
		sessions: sessions,
		currency: currency,
		logger:   logger,
		validate: newValidator(),
	}
}

// newValidator reports field errors by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// --- Helpers ---

// Response is the envelope every endpoint answers with.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

// CartResponse is a cart plus its totals formatted for display.
type CartResponse struct {
	*domain.Cart
	Formatted pricing.FormattedTotals `json:"formatted"`
}

func (h *HTTPHandler) respondWithError(w http.ResponseWriter, code int, message string) {
	h.respondWithJSON(w, code, Response{Success: false, Error: message})
}

func (h *HTTPHandler) respondWithData(w http.ResponseWriter, code int, data interface{}, message string) {
	h.respondWithJSON(w, code, Response{Success: true, Data: data, Message: message})
}

func (h *HTTPHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode JSON response", zap.Error(err))
	}
}

// respondWithFailure maps err onto a status code. Unexpected errors are logged
// and answered with fallback so internals never reach the client.
func (h *HTTPHandler) respondWithFailure(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	code, message := httpStatusFor(err)
	if code == http.StatusInternalServerError {
		h.logger.Error(fallback,
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
		message = fallback
	} else {
		h.logger.Debug("request rejected", zap.Int("status", code), zap.Error(err))
	}
	h.respondWithError(w, code, message)
}

func (h *HTTPHandler) respondWithCart(w http.ResponseWriter, c *domain.Cart, currency pricing.Currency, message string) {
	h.respondWithData(w, http.StatusOK, CartResponse{Cart: c, Formatted: pricing.FormatCart(c, currency)}, message)
}

// validationMessage turns validator errors into "Missing required fields: a, b"
// or "Invalid value for field x".
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Validation failed: " + err.Error()
	}
	var missing, invalid []string
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
		} else {
			invalid = append(invalid, fe.Field())
		}
	}
	if len(missing) > 0 {
		return "Missing required fields: " + strings.Join(missing, ", ")
	}
	return "Invalid value for field " + strings.Join(invalid, ", ")
}

// --- Product Handlers ---

// ProductListQuery holds the query parameters of GET /products.
type ProductListQuery struct {
	Category string `json:"category" validate:"omitempty,oneof=all hoodies tees jackets accessories"`
	Featured string `json:"featured" validate:"omitempty,oneof=true false"`
	Sort     string `json:"sort" validate:"omitempty,oneof=featured price-asc price-desc newest"`
	Query    string `json:"q" validate:"max=200"`
}

// Filter converts the query into a store filter.
func (q ProductListQuery) Filter() store.ProductFilter {
	var filter store.ProductFilter
	if q.Category != "" && q.Category != "all" {
		c := domain.Category(q.Category)
		filter.Category = &c
	}
	if q.Featured != "" {
		featured, _ := strconv.ParseBool(q.Featured)
		filter.Featured = &featured
	}
	filter.Sort = q.Sort
	return filter
}

// ListProducts lists the catalog. A non-blank q searches instead and ignores
// the other filters.
func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	qParams := r.URL.Query()
	query := ProductListQuery{
		Category: strings.ToLower(strings.TrimSpace(qParams.Get("category"))),
		Featured: strings.ToLower(strings.TrimSpace(qParams.Get("featured"))),
		Sort:     strings.TrimSpace(qParams.Get("sort")),
		Query:    strings.TrimSpace(qParams.Get("q")),
	}
	if err := h.validate.Struct(query); err != nil {
		h.respondWithError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	var (
		products []domain.Product
		err      error
	)
	if query.Query != "" {
		products, err = h.products.SearchProducts(r.Context(), query.Query)
	} else {
		products, err = h.products.ListProducts(r.Context(), query.Filter())
	}
	if err != nil {
		h.respondWithFailure(w, r, err, "Failed to fetch products")
		return
	}
	if products == nil {
		products = []domain.Product{}
	}
	h.respondWithData(w, http.StatusOK, products, "")
}

// GetProduct looks a product up by id, then by slug.
func (h *HTTPHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	idOrSlug := strings.TrimSpace(chi.URLParam(r, "idOrSlug"))
	if idOrSlug == "" {
		h.respondWithError(w, http.StatusBadRequest, "Product id or slug is required")
		return
	}

	product, err := store.GetProduct(r.Context(), h.products, idOrSlug)
	if err != nil {
		h.respondWithFailure(w, r, err, "Failed to fetch product")
		return
	}
	h.respondWithData(w, http.StatusOK, product, "")
}

// --- Cart Handlers ---

// AddToCartInput defines the expected input for adding an item to the cart.
type AddToCartInput struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required"`
	Size      string `json:"size" validate:"required"`
	Color     string `json:"color" validate:"required"`
}

// UpdateCartItemInput defines the expected input for changing a line's quantity.
type UpdateCartItemInput struct {
	Quantity *int `json:"quantity" validate:"required"`
}

// currencyFor returns the currency requested with ?currency=, or the default.
func (h *HTTPHandler) currencyFor(r *http.Request) (pricing.Currency, error) {
	code := r.URL.Query().Get("currency")
	if strings.TrimSpace(code) == "" {
		return h.currency, nil
	}
	return pricing.ParseCurrency(code)
}

// GetCart returns the session's cart, creating one if needed.
func (h *HTTPHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	currency, err := h.currencyFor(r)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Unsupported currency")
		return
	}

	c, err := h.sessions.Resolve(w, r, h.carts)
	if err != nil {
		h.respondWithFailure(w, r, err, "Failed to fetch cart")
		return
	}
	h.respondWithCart(w, c, currency, "")
}

// AddToCart adds a product variant to the session's cart. The cookie is only
// written once the item is in a cart.
func (h *HTTPHandler) AddToCart(w http.ResponseWriter, r *http.Request) {
	currency, err := h.currencyFor(r)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Unsupported currency")
		return
	}

	var input AddToCartInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	if err := h.validate.Struct(input); err != nil {
		h.respondWithError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	c, err := h.carts.AddItemOrCreate(r.Context(), h.sessions.Token(r), cart.AddItemInput{
		ProductID: input.ProductID,
		Quantity:  input.Quantity,
		Size:      input.Size,
		Color:     input.Color,
	})
	if err != nil {
		h.respondWithFailure(w, r, err, "Failed to add item to cart")
		return
	}
	h.sessions.Issue(w, c.ID)
	h.respondWithCart(w, c, currency, "Item added to cart")
}

// ClearCart empties the session's cart.
func (h *HTTPHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	cartID := h.sessions.Token(r)
	if cartID == "" {
		h.respondWithError(w, http.StatusNotFound, "Cart not found")
		return
	}

	c, err := h.carts.Clear(r.Context(), cartID)
	if err != nil {
		h.respondWithFailure(w, r, err, "Failed to clear cart")
		return
	}
	h.respondWithCart(w, c, h.currency, "Cart cleared")
}

// UpdateCartItem sets the quantity of one line. Zero or less removes it.
func (h *HTTPHandler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	cartID := h.sessions.Token(r)
	if cartID == "" {
		h.respondWithError(w, http.StatusNotFound, "Cart not found")
		return
	}

	var input UpdateCartItemInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	if err := h.validate.Struct(input); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Quantity is required")
		return
	}

	c, err := h.carts.UpdateItemQuantity(r.Context(), cartID, chi.URLParam(r, "itemId"), *input.Quantity)
	if err != nil {
		h.respondWithFailure(w, r, err, "Failed to update cart")
		return
	}
	h.respondWithCart(w, c, h.currency, "Cart updated")
}

// RemoveCartItem drops one line from the session's cart.
func (h *HTTPHandler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	cartID := h.sessions.Token(r)
	if cartID == "" {
		h.respondWithError(w, http.StatusNotFound, "Cart not found")
		return
	}

	c, err := h.carts.RemoveItem(r.Context(), cartID, chi.URLParam(r, "itemId"))
	if err != nil {
		h.respondWithFailure(w, r, err, "Failed to remove item")
		return
	}
	h.respondWithCart(w, c, h.currency, "Item removed from cart")
}

// --- Route Registration ---

// RegisterRoutes sets up the HTTP routes for the service.
func (h *HTTPHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)         // GET /api/v1/products
		r.Get("/{idOrSlug}", h.GetProduct) // GET /api/v1/products/{idOrSlug}
	})

	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Get("/", h.GetCart)      // GET /api/v1/cart
		r.Post("/", h.AddToCart)   // POST /api/v1/cart
		r.Delete("/", h.ClearCart) // DELETE /api/v1/cart
		r.Route("/items/{itemId}", func(r chi.Router) {
			r.Patch("/", h.UpdateCartItem)  // PATCH /api/v1/cart/items/{itemId}
			r.Delete("/", h.RemoveCartItem) // DELETE /api/v1/cart/items/{itemId}
		})
	})
}
