// Package badgerstore implements the local store on BadgerDB, an embedded
// key-value store, for deployments that prefer it over SQLite.
//
// Key layout:
//
//	snapshot/<key>          serialized composition
//	queue/<seq:%020d>       JSON-encoded OfflineQueueEntry
//	queueid/<id>            seq key of the entry with that id
//	meta/queue-seq          badger.Sequence backing the seq numbers
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/model"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/store"
)

const (
	snapshotPrefix = "snapshot/"
	queuePrefix    = "queue/"
	queueIDPrefix  = "queueid/"
	seqKey         = "meta/queue-seq"
	seqBandwidth   = 64
)

// Config holds configuration for a BadgerDB-backed store.
type Config struct {
	// Path is the directory for BadgerDB files. Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence). Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives BadgerDB's internal logs. If nil they are discarded.
	Logger *slog.Logger
}

// DefaultConfig returns a durable configuration rooted at path.
func DefaultConfig(path string) Config {
	return Config{Path: path, SyncWrites: true}
}

// InMemoryConfig returns a configuration for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// Store is a BadgerDB-backed local store. Its methods mirror store.Store
// and return store.ErrNotFound for missing keys.
type Store struct {
	db  *badger.DB
	seq *badger.Sequence
}

// Open opens (or creates) the database described by cfg.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badgerstore: path is required unless in-memory")
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open: %w", err)
	}
	seq, err := db.GetSequence([]byte(seqKey), seqBandwidth)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("badgerstore: sequence: %w", err)
	}
	return &Store{db: db, seq: seq}, nil
}

// Close releases the sequence lease and closes the database.
func (s *Store) Close() error {
	var errs []error
	if s.seq != nil {
		if err := s.seq.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release sequence: %w", err))
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close: %w", err))
		}
	}
	return errors.Join(errs...)
}

// SaveSnapshot stores data under key, replacing any previous snapshot.
func (s *Store) SaveSnapshot(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(snapshotPrefix+key), data)
	})
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the snapshot stored under key.
func (s *Store) LoadSnapshot(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(snapshotPrefix + key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return data, nil
}

// DeleteSnapshot removes the snapshot under key.
func (s *Store) DeleteSnapshot(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(snapshotPrefix + key))
	})
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// AppendQueueEntry adds e to the tail of the queue. Re-appending an id
// that is already queued is ignored.
func (s *Store) AppendQueueEntry(ctx context.Context, e model.OfflineQueueEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.ID == "" {
		return fmt.Errorf("append queue entry: empty id")
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("append queue entry: %w", err)
	}
	n, err := s.seq.Next()
	if err != nil {
		return fmt.Errorf("append queue entry: sequence: %w", err)
	}
	entryKey := []byte(fmt.Sprintf("%s%020d", queuePrefix, n))

	err = s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(queueIDPrefix + e.ID))
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(entryKey, data); err != nil {
			return err
		}
		return txn.Set([]byte(queueIDPrefix+e.ID), entryKey)
	})
	if err != nil {
		return fmt.Errorf("append queue entry: %w", err)
	}
	return nil
}

// ListQueueEntries returns all queued entries, oldest first.
func (s *Store) ListQueueEntries(ctx context.Context) ([]model.OfflineQueueEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var entries []model.OfflineQueueEntry
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(queuePrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			data, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var e model.OfflineQueueEntry
			if err := json.Unmarshal(data, &e); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			e.Timestamp = e.Timestamp.UTC()
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list queue entries: %w", err)
	}
	return entries, nil
}

// DeleteQueueEntry removes a delivered entry.
func (s *Store) DeleteQueueEntry(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		entryKey, err := lookupEntryKey(txn, id)
		if err != nil {
			return err
		}
		if err := txn.Delete(entryKey); err != nil {
			return err
		}
		return txn.Delete([]byte(queueIDPrefix + id))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete queue entry: %w", err)
	}
	return nil
}

// RecordAttempt increments the attempt counter of a queued entry.
func (s *Store) RecordAttempt(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		entryKey, err := lookupEntryKey(txn, id)
		if err != nil {
			return err
		}
		item, err := txn.Get(entryKey)
		if err != nil {
			return err
		}
		data, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		var e model.OfflineQueueEntry
		if err := json.Unmarshal(data, &e); err != nil {
			return err
		}
		e.Attempts++
		if data, err = json.Marshal(e); err != nil {
			return err
		}
		return txn.Set(entryKey, data)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

// QueueLen returns the number of queued entries.
func (s *Store) QueueLen(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(queuePrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("queue len: %w", err)
	}
	return n, nil
}

func lookupEntryKey(txn *badger.Txn, id string) ([]byte, error) {
	item, err := txn.Get([]byte(queueIDPrefix + id))
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...), "component", "badger")
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...), "component", "badger")
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...), "component", "badger")
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...), "component", "badger")
}
