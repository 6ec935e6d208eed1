package handler

import (
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"

	"github.com/rl1809/storefront/internal/core/service"
)

// classify maps a service error to its HTTP status, gRPC code and a short
// client-facing message.
func classify(err error) (int, codes.Code, string) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, codes.NotFound, "not found"
	case errors.Is(err, service.ErrInvalidQuantity):
		return http.StatusBadRequest, codes.InvalidArgument, "quantity must be at least 1"
	case errors.Is(err, service.ErrUnknownProduct):
		return http.StatusBadRequest, codes.InvalidArgument, "unknown product"
	case errors.Is(err, service.ErrEmptyCart):
		return http.StatusConflict, codes.FailedPrecondition, "cart is empty"
	case errors.Is(err, service.ErrCheckoutClosed):
		return http.StatusServiceUnavailable, codes.Unavailable, "checkout is closed"
	default:
		return http.StatusInternalServerError, codes.Internal, "internal error"
	}
}
