package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/model"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/store"
)

// MemQueue is an in-memory offline queue with the store's contract.
//
// Set FailAppend to make the next appends fail.
//
// Thread-safety: safe for concurrent use.
type MemQueue struct {
	mu         sync.Mutex
	entries    []model.OfflineQueueEntry
	FailAppend error
}

// NewMemQueue creates an empty queue.
func NewMemQueue() *MemQueue {
	return &MemQueue{}
}

// AppendQueueEntry adds e unless an entry with its id exists.
func (q *MemQueue) AppendQueueEntry(_ context.Context, e model.OfflineQueueEntry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.FailAppend != nil {
		return q.FailAppend
	}
	if e.ID == "" {
		return errors.New("queue entry id is required")
	}
	for _, x := range q.entries {
		if x.ID == e.ID {
			return nil
		}
	}
	q.entries = append(q.entries, e)
	return nil
}

// ListQueueEntries returns entries oldest first.
func (q *MemQueue) ListQueueEntries(context.Context) ([]model.OfflineQueueEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]model.OfflineQueueEntry, len(q.entries))
	copy(out, q.entries)
	return out, nil
}

// DeleteQueueEntry removes the entry with id.
func (q *MemQueue) DeleteQueueEntry(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, x := range q.entries {
		if x.ID == id {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

// RecordAttempt increments the attempt counter of the entry with id.
func (q *MemQueue) RecordAttempt(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.entries {
		if q.entries[i].ID == id {
			q.entries[i].Attempts++
			return nil
		}
	}
	return store.ErrNotFound
}

// QueueLen returns the number of entries.
func (q *MemQueue) QueueLen(context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries), nil
}
