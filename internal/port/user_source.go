package port

import (
	"context"

	"github.com/rl1809/storefront/internal/core/domain"
)

type UserSource interface {
	// FetchUsers performs a single read of the remote user collection
	FetchUsers(ctx context.Context) ([]domain.User, error)
}
