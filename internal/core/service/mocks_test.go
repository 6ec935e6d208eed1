package service

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

// Mock KeyValueStore
type mockKeyValueStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	getErr  error
	setErr  error
	setHits int
}

func newMockKeyValueStore() *mockKeyValueStore {
	return &mockKeyValueStore{data: make(map[string][]byte)}
}

func (m *mockKeyValueStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, port.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockKeyValueStore) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.setHits++
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

func (m *mockKeyValueStore) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Mock UserSource
type mockUserSource struct {
	users   []domain.User
	err     error
	calls   atomic.Int32
	release chan struct{}
}

func (m *mockUserSource) FetchUsers(ctx context.Context) ([]domain.User, error) {
	m.calls.Add(1)
	if m.release != nil {
		select {
		case <-m.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.users, nil
}

// Mock SecretStore
type mockSecretStore struct {
	mu      sync.Mutex
	secrets map[string]string
	getErr  error
	setErr  error
}

func newMockSecretStore() *mockSecretStore {
	return &mockSecretStore{secrets: make(map[string]string)}
}

func (m *mockSecretStore) GetSecret(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.secrets[key]
	if !ok {
		return "", port.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockSecretStore) SetSecret(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.setErr != nil {
		return m.setErr
	}
	m.secrets[key] = value
	return nil
}

func (m *mockSecretStore) RemoveSecret(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.secrets, key)
	return nil
}
