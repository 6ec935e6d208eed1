package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/port"
)

const (
	AuthTokenKey            = "auth_token"
	DefaultPlaceholderToken = "dummy-auth-token-12345"
)

type TokenBootstrap struct {
	secrets     port.SecretStore
	placeholder string
	log         *zap.Logger
}

func NewTokenBootstrap(secrets port.SecretStore, placeholder string, log *zap.Logger) *TokenBootstrap {
	if placeholder == "" {
		placeholder = DefaultPlaceholderToken
	}
	return &TokenBootstrap{secrets: secrets, placeholder: placeholder, log: log}
}

// Bootstrap returns the stored token, storing the placeholder first when no
// token exists. A failed write is logged and the placeholder is still
// returned, so the next launch may store it again.
func (b *TokenBootstrap) Bootstrap(ctx context.Context) string {
	token, err := b.secrets.GetSecret(ctx, AuthTokenKey)
	if err == nil && token != "" {
		return token
	}
	if err != nil && !errors.Is(err, port.ErrKeyNotFound) {
		b.log.Error("failed to retrieve token", zap.Error(err))
	}

	if err := b.secrets.SetSecret(ctx, AuthTokenKey, b.placeholder); err != nil {
		b.log.Error("failed to store token", zap.Error(fmt.Errorf("%w: %w", ErrStorageWrite, err)))
	}
	return b.placeholder
}

func (b *TokenBootstrap) Remove(ctx context.Context) error {
	if err := b.secrets.RemoveSecret(ctx, AuthTokenKey); err != nil {
		return fmt.Errorf("%w: remove token: %w", ErrStorageWrite, err)
	}
	return nil
}
