package api

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"storefront-service/internal/cart"
	"storefront-service/internal/domain"
	"storefront-service/internal/pricing"
	"storefront-service/internal/store"
)

// GRPCHandler implements StorefrontServer. The cart's session token travels
// in the session_token request field instead of a cookie.
type GRPCHandler struct {
	products store.ProductStorer
	carts    *cart.Service
	currency pricing.Currency
	logger   *zap.Logger
	validate *validator.Validate
}

var _ StorefrontServer = (*GRPCHandler)(nil)

// NewGRPCHandler creates a new GRPCHandler.
func NewGRPCHandler(products store.ProductStorer, carts *cart.Service, currency pricing.Currency, logger *zap.Logger) *GRPCHandler {
	return &GRPCHandler{
		products: products,
		carts:    carts,
		currency: currency,
		logger:   logger,
		validate: newValidator(),
	}
}

// --- Request messages ---

type listProductsRequest struct {
	Category string `json:"category" validate:"omitempty,oneof=all hoodies tees jackets accessories"`
	Featured *bool  `json:"featured"`
	Sort     string `json:"sort" validate:"omitempty,oneof=featured price-asc price-desc newest"`
}

type getProductRequest struct {
	IDOrSlug string `json:"id_or_slug" validate:"required"`
}

type searchProductsRequest struct {
	Query string `json:"query" validate:"max=200"`
}

type getCartRequest struct {
	SessionToken string `json:"session_token"`
	Currency     string `json:"currency"`
}

type addCartItemRequest struct {
	SessionToken string `json:"session_token"`
	ProductID    string `json:"product_id" validate:"required"`
	Quantity     int    `json:"quantity" validate:"required"`
	Size         string `json:"size" validate:"required"`
	Color        string `json:"color" validate:"required"`
	Currency     string `json:"currency"`
}

type updateCartItemRequest struct {
	SessionToken string `json:"session_token"`
	ItemID       string `json:"item_id" validate:"required"`
	Quantity     *int   `json:"quantity" validate:"required"`
	Currency     string `json:"currency"`
}

type removeCartItemRequest struct {
	SessionToken string `json:"session_token"`
	ItemID       string `json:"item_id" validate:"required"`
	Currency     string `json:"currency"`
}

type clearCartRequest struct {
	SessionToken string `json:"session_token"`
	Currency     string `json:"currency"`
}

// --- Helpers ---

// decode copies a Struct request into a typed request and validates it.
func (s *GRPCHandler) decode(req *structpb.Struct, into interface{}) error {
	raw, err := json.Marshal(req.AsMap())
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "malformed request: %v", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		return status.Errorf(codes.InvalidArgument, "malformed request: %v", err)
	}
	if err := s.validate.Struct(into); err != nil {
		return status.Error(codes.InvalidArgument, validationMessage(err))
	}
	return nil
}

func (s *GRPCHandler) currencyFor(code string) (pricing.Currency, error) {
	if strings.TrimSpace(code) == "" {
		return s.currency, nil
	}
	c, err := pricing.ParseCurrency(code)
	if err != nil {
		return "", status.Error(codes.InvalidArgument, "Unsupported currency")
	}
	return c, nil
}

// mapStoreErrorToGrpcStatus converts a service error to a gRPC status.
// Unexpected errors are logged and reported as Internal with fallback.
func (s *GRPCHandler) mapStoreErrorToGrpcStatus(err error, fallback string) error {
	if err == nil {
		return nil
	}
	code, message := grpcCodeFor(err)
	if code == codes.Internal {
		s.logger.Error(fallback, zap.Error(err))
		return status.Error(codes.Internal, fallback)
	}
	return status.Error(code, message)
}

// envelope wraps data the same way the HTTP API does.
func envelope(data interface{}, message string, extra map[string]interface{}) (*structpb.Struct, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	fields := map[string]interface{}{"success": true, "data": generic}
	if message != "" {
		fields["message"] = message
	}
	for k, v := range extra {
		fields[k] = v
	}
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func cartEnvelope(c *domain.Cart, currency pricing.Currency, message string) (*structpb.Struct, error) {
	return envelope(CartResponse{Cart: c, Formatted: pricing.FormatCart(c, currency)}, message,
		map[string]interface{}{"session_token": c.ID})
}

func productsOrEmpty(products []domain.Product) []domain.Product {
	if products == nil {
		return []domain.Product{}
	}
	return products
}

// --- Product gRPC Methods Implementation ---

func (s *GRPCHandler) ListProducts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in listProductsRequest
	if err := s.decode(req, &in); err != nil {
		return nil, err
	}
	filter := ProductListQuery{Category: in.Category, Sort: in.Sort}.Filter()
	filter.Featured = in.Featured

	products, err := s.products.ListProducts(ctx, filter)
	if err != nil {
		return nil, s.mapStoreErrorToGrpcStatus(err, "Failed to fetch products")
	}
	return envelope(productsOrEmpty(products), "", nil)
}

func (s *GRPCHandler) GetProduct(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in getProductRequest
	if err := s.decode(req, &in); err != nil {
		return nil, err
	}
	product, err := store.GetProduct(ctx, s.products, strings.TrimSpace(in.IDOrSlug))
	if err != nil {
		return nil, s.mapStoreErrorToGrpcStatus(err, "Failed to fetch product")
	}
	return envelope(product, "", nil)
}

func (s *GRPCHandler) SearchProducts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in searchProductsRequest
	if err := s.decode(req, &in); err != nil {
		return nil, err
	}
	products, err := s.products.SearchProducts(ctx, in.Query)
	if err != nil {
		return nil, s.mapStoreErrorToGrpcStatus(err, "Failed to search products")
	}
	return envelope(productsOrEmpty(products), "", nil)
}

// --- Cart gRPC Methods Implementation ---

func (s *GRPCHandler) GetCart(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in getCartRequest
	if err := s.decode(req, &in); err != nil {
		return nil, err
	}
	currency, err := s.currencyFor(in.Currency)
	if err != nil {
		return nil, err
	}
	c, _, err := s.carts.GetOrCreate(ctx, strings.TrimSpace(in.SessionToken))
	if err != nil {
		return nil, s.mapStoreErrorToGrpcStatus(err, "Failed to fetch cart")
	}
	return cartEnvelope(c, currency, "")
}

func (s *GRPCHandler) AddCartItem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in addCartItemRequest
	if err := s.decode(req, &in); err != nil {
		return nil, err
	}
	currency, err := s.currencyFor(in.Currency)
	if err != nil {
		return nil, err
	}
	c, err := s.carts.AddItemOrCreate(ctx, strings.TrimSpace(in.SessionToken), cart.AddItemInput{
		ProductID: in.ProductID,
		Quantity:  in.Quantity,
		Size:      in.Size,
		Color:     in.Color,
	})
	if err != nil {
		return nil, s.mapStoreErrorToGrpcStatus(err, "Failed to add item to cart")
	}
	return cartEnvelope(c, currency, "Item added to cart")
}

func (s *GRPCHandler) UpdateCartItem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in updateCartItemRequest
	if err := s.decode(req, &in); err != nil {
		return nil, err
	}
	currency, err := s.currencyFor(in.Currency)
	if err != nil {
		return nil, err
	}
	c, err := s.carts.UpdateItemQuantity(ctx, strings.TrimSpace(in.SessionToken), in.ItemID, *in.Quantity)
	if err != nil {
		return nil, s.mapStoreErrorToGrpcStatus(err, "Failed to update cart")
	}
	return cartEnvelope(c, currency, "Cart updated")
}

func (s *GRPCHandler) RemoveCartItem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in removeCartItemRequest
	if err := s.decode(req, &in); err != nil {
		return nil, err
	}
	currency, err := s.currencyFor(in.Currency)
	if err != nil {
		return nil, err
	}
	c, err := s.carts.RemoveItem(ctx, strings.TrimSpace(in.SessionToken), in.ItemID)
	if err != nil {
		return nil, s.mapStoreErrorToGrpcStatus(err, "Failed to remove item")
	}
	return cartEnvelope(c, currency, "Item removed from cart")
}

func (s *GRPCHandler) ClearCart(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in clearCartRequest
	if err := s.decode(req, &in); err != nil {
		return nil, err
	}
	currency, err := s.currencyFor(in.Currency)
	if err != nil {
		return nil, err
	}
	c, err := s.carts.Clear(ctx, strings.TrimSpace(in.SessionToken))
	if err != nil {
		return nil, s.mapStoreErrorToGrpcStatus(err, "Failed to clear cart")
	}
	return cartEnvelope(c, currency, "Cart cleared")
}

// UnaryLoggingInterceptor logs every unary call with its code and latency.
func UnaryLoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("duration", time.Since(start)),
		}
		if code == codes.Internal || code == codes.Unknown {
			logger.Error("grpc request", append(fields, zap.Error(err))...)
		} else {
			logger.Info("grpc request", fields...)
		}
		return resp, err
	}
}
