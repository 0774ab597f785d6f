package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SaveSnapshot stores data under key, replacing any previous snapshot.
func (s *Store) SaveSnapshot(ctx context.Context, key string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_snapshots (key, data, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, key, string(data), s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the snapshot stored under key.
// Returns ErrNotFound if there is none.
func (s *Store) LoadSnapshot(ctx context.Context, key string) ([]byte, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `
		SELECT data FROM session_snapshots WHERE key = ?
	`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return []byte(data), nil
}

// DeleteSnapshot removes the snapshot under key. Deleting a missing key
// is not an error.
func (s *Store) DeleteSnapshot(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session_snapshots WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}
