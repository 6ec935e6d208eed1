package service

import "errors"

var (
	ErrNetworkFailure  = errors.New("network failure")
	ErrCacheMiss       = errors.New("cache miss")
	ErrNotFound        = errors.New("not found")
	ErrStorageWrite    = errors.New("storage write failure")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrUnknownProduct  = errors.New("unknown product")
	ErrEmptyCart       = errors.New("cart is empty")
	ErrCheckoutClosed  = errors.New("checkout closed")
)
