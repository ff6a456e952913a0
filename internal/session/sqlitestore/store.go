// Package sqlitestore persists session carts in a local SQLite file.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/session"
)

const schema = `
CREATE TABLE IF NOT EXISTS cart_sessions (
	session_id TEXT PRIMARY KEY,
	payload    BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

// Store keeps one row per session.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

// Open opens the database at path and creates the schema if needed.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) Load(ctx context.Context, sessionID string) ([]cart.Line, error) {
	var payload []byte
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT payload FROM cart_sessions WHERE session_id = ?`, sessionID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select cart session: %w", err)
	}

	lines, err := cart.Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("decode cart %s: %w", sessionID, err)
	}
	return lines, nil
}

func (s *Store) Save(ctx context.Context, sessionID string, snap cart.Snapshot) error {
	payload, err := cart.Encode(snap)
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(ctx, `
		INSERT INTO cart_sessions (session_id, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		sessionID, payload, s.now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upsert cart session: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM cart_sessions WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete cart session: %w", err)
	}
	return nil
}

// Prune removes carts not written since before. It returns the number of
// rows removed.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM cart_sessions WHERE updated_at < ?`, before.UTC().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune cart sessions: %w", err)
	}
	return res.RowsAffected()
}
