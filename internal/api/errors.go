package api

import (
	"errors"
	"net/http"
	"strings"

	"google.golang.org/grpc/codes"

	"storefront-service/internal/cart"
	"storefront-service/internal/store"
)

// httpStatusFor maps a service error to a status code and a client-facing
// message. Unexpected errors map to 500 with an empty message.
func httpStatusFor(err error) (int, string) {
	switch {
	case store.IsNotFound(err):
		return http.StatusNotFound, notFoundMessage(err)
	case errors.Is(err, store.ErrInvalidSort):
		return http.StatusBadRequest, "Invalid sort option"
	case errors.Is(err, cart.ErrInvalidInput):
		return http.StatusBadRequest, invalidInputMessage(err)
	default:
		return http.StatusInternalServerError, ""
	}
}

// grpcCodeFor is httpStatusFor for gRPC.
func grpcCodeFor(err error) (codes.Code, string) {
	code, message := httpStatusFor(err)
	switch code {
	case http.StatusNotFound:
		return codes.NotFound, message
	case http.StatusBadRequest:
		return codes.InvalidArgument, message
	default:
		return codes.Internal, message
	}
}

func notFoundMessage(err error) string {
	switch {
	case errors.Is(err, store.ErrProductNotFound):
		return "Product not found"
	case errors.Is(err, store.ErrCartItemNotFound):
		return "Item not found in cart"
	default:
		return "Cart not found"
	}
}

// invalidInputMessage drops the sentinel prefix, leaving the detail.
func invalidInputMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), cart.ErrInvalidInput.Error())
	msg = strings.TrimPrefix(msg, ": ")
	if msg == "" {
		return "Invalid input"
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}
