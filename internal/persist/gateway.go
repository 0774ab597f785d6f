// Package persist saves and restores the composition across restarts.
//
// The Gateway is a write-behind cache: SchedulePersist coalesces bursts of
// edits into one write after a fixed delay, and only the latest state in
// the window is ever written. Restore treats a missing or corrupt snapshot
// as "no snapshot" and never fails startup.
package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/model"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/store"
)

const (
	// DefaultKey is the fixed key the session snapshot is stored under.
	DefaultKey = "serviceRequestState"

	// DefaultDelay is the debounce window for snapshot writes.
	DefaultDelay = 500 * time.Millisecond
)

// SnapshotStore is the durable storage the gateway writes to.
// LoadSnapshot returns store.ErrNotFound when the key has no snapshot.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, key string, data []byte) error
	LoadSnapshot(ctx context.Context, key string) ([]byte, error)
	DeleteSnapshot(ctx context.Context, key string) error
}

// snapshot is the persisted subset of the composition. Loading and Error
// are runtime-only and come back as their zero values.
type snapshot struct {
	ClientProfile model.ClientProfile    `json:"clientProfile"`
	Selections    []model.SelectionEntry `json:"selections"`
	FormIsValid   bool                   `json:"formIsValid"`
}

// Gateway owns the debounce timer and the snapshot key.
//
// Thread-safety: all methods are safe for concurrent use. Writes are
// serialized, and Clear or Flush supersede any write still waiting for
// its timer.
type Gateway struct {
	store   SnapshotStore
	key     string
	delay   time.Duration
	logger  *slog.Logger
	onWrite func()
	schema  *jsonschema.Schema

	// writeMu serializes store writes and deletes.
	writeMu sync.Mutex

	mu      sync.Mutex
	timer   *time.Timer
	pending *model.CompositionState
	// seq identifies the latest schedule; a timer whose seq is stale
	// has been superseded and does nothing.
	seq uint64
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithKey sets the snapshot key.
func WithKey(key string) Option {
	return func(g *Gateway) { g.key = key }
}

// WithDelay sets the debounce window. Zero writes on the next timer tick.
func WithDelay(d time.Duration) Option {
	return func(g *Gateway) { g.delay = d }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// WithWriteHook registers fn to run after every successful snapshot write.
func WithWriteHook(fn func()) Option {
	return func(g *Gateway) { g.onWrite = fn }
}

// New creates a gateway over s.
func New(s SnapshotStore, opts ...Option) (*Gateway, error) {
	schema, err := compileSnapshotSchema()
	if err != nil {
		return nil, err
	}
	g := &Gateway{
		store:  s,
		key:    DefaultKey,
		delay:  DefaultDelay,
		logger: slog.Default(),
		schema: schema,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Key returns the snapshot key.
func (g *Gateway) Key() string {
	return g.key
}

// SchedulePersist arranges for state to be written after the debounce
// window. A later call within the window replaces state and restarts the
// window.
func (g *Gateway) SchedulePersist(state model.CompositionState) {
	st := state.Clone()

	g.mu.Lock()
	defer g.mu.Unlock()

	g.seq++
	seq := g.seq
	g.pending = &st
	if g.timer != nil {
		g.timer.Stop()
	}
	g.timer = time.AfterFunc(g.delay, func() { g.fire(seq) })
}

// Pending reports whether a write is waiting for its timer.
func (g *Gateway) Pending() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending != nil
}

func (g *Gateway) fire(seq uint64) {
	g.writeMu.Lock()
	defer g.writeMu.Unlock()

	g.mu.Lock()
	if seq != g.seq || g.pending == nil {
		g.mu.Unlock()
		return
	}
	st := *g.pending
	g.pending = nil
	g.timer = nil
	g.mu.Unlock()

	if err := g.write(context.Background(), st); err != nil {
		g.logger.Warn("snapshot write failed", "key", g.key, "error", err)
	}
}

// takePending cancels the timer and returns the state it would have written.
func (g *Gateway) takePending() *model.CompositionState {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.seq++
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	st := g.pending
	g.pending = nil
	return st
}

// Flush writes any pending state immediately.
func (g *Gateway) Flush(ctx context.Context) error {
	g.writeMu.Lock()
	defer g.writeMu.Unlock()

	st := g.takePending()
	if st == nil {
		return nil
	}
	return g.write(ctx, *st)
}

// Clear cancels any pending write and deletes the stored snapshot.
func (g *Gateway) Clear(ctx context.Context) error {
	g.writeMu.Lock()
	defer g.writeMu.Unlock()

	g.takePending()
	if err := g.store.DeleteSnapshot(ctx, g.key); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	g.logger.Debug("snapshot cleared", "key", g.key)
	return nil
}

func (g *Gateway) write(ctx context.Context, state model.CompositionState) error {
	data, err := Encode(state)
	if err != nil {
		return err
	}
	if err := g.store.SaveSnapshot(ctx, g.key, data); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	g.logger.Debug("snapshot written", "key", g.key, "selections", len(state.Selections), "bytes", len(data))
	if g.onWrite != nil {
		g.onWrite()
	}
	return nil
}

// Restore loads the stored snapshot. It returns false when there is no
// snapshot or the stored blob cannot be used; the reason is logged.
func (g *Gateway) Restore(ctx context.Context) (model.CompositionState, bool) {
	data, err := g.store.LoadSnapshot(ctx, g.key)
	if errors.Is(err, store.ErrNotFound) {
		g.logger.Debug("no snapshot to restore", "key", g.key)
		return model.CompositionState{}, false
	}
	if err != nil {
		g.logger.Warn("snapshot load failed", "key", g.key, "error", err)
		return model.CompositionState{}, false
	}

	state, err := g.decode(data)
	if err != nil {
		g.logger.Warn("discarding unusable snapshot", "key", g.key, "error", err)
		return model.CompositionState{}, false
	}
	return state, true
}

// Encode serializes the persisted subset of state.
func Encode(state model.CompositionState) ([]byte, error) {
	snap := snapshot{
		ClientProfile: state.ClientProfile,
		Selections:    state.Selections,
		FormIsValid:   state.FormIsValid,
	}
	if snap.Selections == nil {
		snap.Selections = []model.SelectionEntry{}
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

func (g *Gateway) decode(data []byte) (model.CompositionState, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return model.CompositionState{}, fmt.Errorf("parse: %w", err)
	}
	if err := g.schema.Validate(doc); err != nil {
		return model.CompositionState{}, fmt.Errorf("shape: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return model.CompositionState{}, fmt.Errorf("decode: %w", err)
	}

	state := model.NewCompositionState()
	state.ClientProfile = snap.ClientProfile
	if snap.Selections != nil {
		state.Selections = snap.Selections
	}
	state.FormIsValid = snap.FormIsValid
	return state, nil
}
