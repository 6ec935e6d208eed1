package handler

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
)

type stubUserSource struct {
	users []domain.User
	err   error
}

func (s *stubUserSource) FetchUsers(ctx context.Context) ([]domain.User, error) {
	return s.users, s.err
}

var errOffline = errors.New("dial tcp: connection refused")

func sampleUsers() []domain.User {
	return []domain.User{
		{ID: 1, Name: "Leanne Graham", Username: "Bret", Email: "Sincere@april.biz"},
		{ID: 2, Name: "Ervin Howell", Username: "Antonette", Email: "Shanna@melissa.tv"},
	}
}

func newTestServices(t *testing.T, source *stubUserSource) (Services, *storage.MemoryAdapter) {
	t.Helper()

	store := storage.NewMemoryAdapter()
	cart := service.NewCartStore()
	checkout := service.NewCheckoutService(cart, store, 10)
	t.Cleanup(checkout.Close)

	return Services{
		Cart:             cart,
		Catalog:          service.NewCatalogFeed(domain.GenerateCatalog(50, 1), 20, 0),
		Directory:        service.NewDirectoryLoader(source, store, zap.NewNop()),
		Checkout:         checkout,
		Token:            "dummy-auth-token-12345",
		PlaceholderToken: "dummy-auth-token-12345",
	}, store
}
