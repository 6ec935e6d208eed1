// Package secret implements the encrypted-at-rest secret store backed by a
// local SQLite file.
package secret

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rl1809/storefront/internal/port"
)

const createSecretsTable = `
CREATE TABLE IF NOT EXISTS secrets (
	name       TEXT PRIMARY KEY,
	sealed     TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLiteStore keeps sealed secrets in SQLite; plaintext never hits disk.
type SQLiteStore struct {
	db     *sql.DB
	sealer *AESGCMSealer
}

// OpenSQLiteStore opens (or creates) the secret database at path. ":memory:"
// gives a throwaway store.
func OpenSQLiteStore(ctx context.Context, path string, sealer *AESGCMSealer) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("secret store path is required")
	}
	if sealer == nil {
		return nil, fmt.Errorf("secret sealer is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open secret db: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, createSecretsTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create secrets table: %w", err)
	}
	return &SQLiteStore{db: db, sealer: sealer}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) GetSecret(ctx context.Context, key string) (string, error) {
	var sealed string
	err := s.db.QueryRowContext(ctx, `SELECT sealed FROM secrets WHERE name = ?`, key).Scan(&sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return "", port.ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query secret: %w", err)
	}
	return s.sealer.Open(key, sealed)
}

func (s *SQLiteStore) SetSecret(ctx context.Context, key, value string) error {
	sealed, err := s.sealer.Seal(key, value)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO secrets (name, sealed, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET sealed = excluded.sealed, updated_at = excluded.updated_at`,
		key, sealed, time.Now().UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("upsert secret: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RemoveSecret(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM secrets WHERE name = ?`, key); err != nil {
		return fmt.Errorf("delete secret: %w", err)
	}
	return nil
}
