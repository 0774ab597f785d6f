package store

import (
	"context"
	"fmt"
	"time"

	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/model"
)

// AppendQueueEntry adds e to the tail of the offline queue.
// Uses ON CONFLICT(id) DO NOTHING - re-appending the same id is ignored.
func (s *Store) AppendQueueEntry(ctx context.Context, e model.OfflineQueueEntry) error {
	if e.ID == "" {
		return fmt.Errorf("append queue entry: empty id")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO offline_queue (id, url, method, data, timestamp, attempts)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, e.ID, e.URL, e.Method, string(e.Payload), e.Timestamp.UnixMilli(), e.Attempts)
	if err != nil {
		return fmt.Errorf("append queue entry: %w", err)
	}
	return nil
}

// ListQueueEntries returns all queued entries, oldest first.
func (s *Store) ListQueueEntries(ctx context.Context) ([]model.OfflineQueueEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, url, method, data, timestamp, attempts
		FROM offline_queue
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list queue entries: %w", err)
	}
	defer rows.Close()

	var entries []model.OfflineQueueEntry
	for rows.Next() {
		var (
			e    model.OfflineQueueEntry
			data string
			ts   int64
		)
		if err := rows.Scan(&e.ID, &e.URL, &e.Method, &data, &ts, &e.Attempts); err != nil {
			return nil, fmt.Errorf("list queue entries: scan: %w", err)
		}
		e.Payload = []byte(data)
		e.Timestamp = time.UnixMilli(ts).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list queue entries: %w", err)
	}
	return entries, nil
}

// DeleteQueueEntry removes a delivered entry.
// Returns ErrNotFound if no entry has that id.
func (s *Store) DeleteQueueEntry(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM offline_queue WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete queue entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete queue entry: rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordAttempt increments the attempt counter of a queued entry.
func (s *Store) RecordAttempt(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE offline_queue SET attempts = attempts + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record attempt: rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// QueueLen returns the number of queued entries.
func (s *Store) QueueLen(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM offline_queue`).Scan(&n); err != nil {
		return 0, fmt.Errorf("queue len: %w", err)
	}
	return n, nil
}
