package engine

import (
	"log/slog"
	"sync"

	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/instance"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/model"
)

// Change describes one completed transition.
type Change struct {
	Action     Action
	State      model.CompositionState
	Generation int64
}

// Subscriber observes completed transitions. Subscribers run on the
// dispatching goroutine, in subscription order, after the writer lock is
// released. They may call State but must not call Dispatch.
type Subscriber func(Change)

// Engine is the single writer of the composition state.
//
// Thread-safety model:
//   - Dispatch(): safe from any goroutine; transitions are serialized
//   - State(): safe from any goroutine; returns a deep copy
//   - Subscribe(): safe from any goroutine
type Engine struct {
	reducer Reducer
	logger  *slog.Logger

	// notifyMu serializes whole dispatches (reduce + notify) so
	// subscribers observe generations in order.
	notifyMu sync.Mutex

	mu         sync.RWMutex
	state      model.CompositionState
	generation int64
	subs       []subscription
	nextSubID  int
}

type subscription struct {
	id int
	fn Subscriber
}

// Option configures an Engine.
type Option func(*Engine)

// WithIDGenerator sets the generator for new instance ids.
func WithIDGenerator(ids instance.IDGenerator) Option {
	return func(e *Engine) {
		e.reducer = NewReducer(ids)
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine holding the initial empty state.
func New(opts ...Option) *Engine {
	e := &Engine{
		reducer: NewReducer(nil),
		logger:  slog.Default(),
		state:   model.NewCompositionState(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dispatch applies a and returns the resulting state. Actions that change
// nothing do not advance the generation and do not notify subscribers.
func (e *Engine) Dispatch(a Action) model.CompositionState {
	e.notifyMu.Lock()
	defer e.notifyMu.Unlock()

	e.mu.Lock()
	next, changed := e.reducer.Apply(e.state, a)
	if !changed {
		e.mu.Unlock()
		e.logger.Debug("action ignored", "action", a.Name())
		return next.Clone()
	}
	e.state = next
	e.generation++
	gen := e.generation
	subs := make([]subscription, len(e.subs))
	copy(subs, e.subs)
	e.mu.Unlock()

	e.logger.Debug("action applied",
		"action", a.Name(),
		"generation", gen,
		"selections", len(next.Selections),
	)

	for _, sub := range subs {
		sub.fn(Change{Action: a, State: next.Clone(), Generation: gen})
	}
	return next.Clone()
}

// State returns a deep copy of the current state.
func (e *Engine) State() model.CompositionState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Clone()
}

// Generation returns the number of state-changing dispatches so far.
func (e *Engine) Generation() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.generation
}

// Subscribe registers fn and returns a function that unregisters it.
func (e *Engine) Subscribe(fn Subscriber) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextSubID++
	id := e.nextSubID
	e.subs = append(e.subs, subscription{id: id, fn: fn})

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, s := range e.subs {
			if s.id == id {
				e.subs = append(e.subs[:i:i], e.subs[i+1:]...)
				return
			}
		}
	}
}
