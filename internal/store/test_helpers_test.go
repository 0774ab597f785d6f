package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/model"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestEntry creates a queue entry with minimal required fields.
func createTestEntry(id string, ts int64) model.OfflineQueueEntry {
	return model.OfflineQueueEntry{
		ID:        id,
		URL:       "http://api.local/service-requests",
		Method:    "POST",
		Payload:   []byte(`{"formData":{"name":"A"}}`),
		Timestamp: time.UnixMilli(ts).UTC(),
	}
}
