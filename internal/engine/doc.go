// Package engine implements the composition state engine.
//
// The engine owns the CompositionState. Callers never mutate it; they
// dispatch actions and read snapshots.
//
// ARCHITECTURE:
//
// Pure Reducer:
// Reducer.Reduce(state, action) returns a new state and never mutates
// its input. It never fails: unknown actions and actions whose
// preconditions do not hold (missing selection, duplicate add, unknown
// instance) leave the state unchanged. A malformed action is a caller bug,
// not a runtime fault.
//
// Single-Writer Dispatch:
// Engine.Dispatch applies one action at a time under a writer lock, stamps
// the resulting state with a generation number, then notifies subscribers
// in subscription order. Side effects (debounced persistence, metrics) live
// in subscribers, never in the reducer.
//
// INVARIANTS (hold after every completed Dispatch):
//   - entry.Quantity == len(entry.Instances) for every selection
//   - no additionalInfo value is nil
//   - Selection ids are unique
//
// AddSelection, ReplaceSelections and RestoreSnapshot normalize incoming
// entries so the invariants hold by construction even for hand-built or
// restored data.
package engine
