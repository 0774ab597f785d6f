// Package store provides SQLite-backed durable local storage for the
// composition engine.
//
// The store holds two things:
//   - Session snapshots: one serialized composition per fixed key,
//     last write wins, no versioning
//   - Offline queue: append-only submissions recorded while disconnected,
//     consumed oldest-first by a separate drain pass
//
// # Ordering
//
// Queue entries are ordered by an AUTOINCREMENT seq column, never by their
// wall-clock timestamp, so two entries enqueued within the same
// millisecond still drain in enqueue order.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// internal/store/badgerstore implements the same methods on BadgerDB.
package store
