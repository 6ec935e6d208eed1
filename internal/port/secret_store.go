package port

import "context"

// SecretStore keeps small string secrets encrypted at rest. Absent keys
// return ErrKeyNotFound.
type SecretStore interface {
	GetSecret(ctx context.Context, key string) (string, error)
	SetSecret(ctx context.Context, key, value string) error
	RemoveSecret(ctx context.Context, key string) error
}
