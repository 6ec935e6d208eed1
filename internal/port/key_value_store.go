package port

import (
	"context"
	"errors"
)

var ErrKeyNotFound = errors.New("key not found")

type KeyValueStore interface {
	// Get returns the blob stored under key, or ErrKeyNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Set replaces the blob stored under key (last write wins)
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes key; removing an absent key is not an error
	Remove(ctx context.Context, key string) error
}
