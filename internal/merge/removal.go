// Package merge reconciles an externally sourced selection list into the
// in-progress composition without resurrecting what the user removed.
package merge

import (
	"slices"
	"sync"

	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/model"
)

// RemovalSet records catalog item ids the user explicitly deselected while
// composing from the current source record. It is session state: never
// persisted, created empty per session, cleared when the source changes.
//
// Thread-safety: RemovalSet is safe for concurrent use via internal mutex.
type RemovalSet struct {
	mu     sync.Mutex
	source string
	ids    map[model.ID]struct{}
}

// NewRemovalSet creates an empty set bound to no source.
func NewRemovalSet() *RemovalSet {
	return &RemovalSet{ids: make(map[model.ID]struct{})}
}

// Add records id as removed.
func (r *RemovalSet) Add(id model.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids[id] = struct{}{}
}

// Has reports whether id was removed.
func (r *RemovalSet) Has(id model.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.ids[id]
	return ok
}

// Clear empties the set.
func (r *RemovalSet) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.ids)
}

// Source returns the source record the set is bound to.
func (r *RemovalSet) Source() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.source
}

// SwitchSource binds the set to source. Switching to a different source
// clears the set and reports true; re-selecting the current one keeps it.
func (r *RemovalSet) SwitchSource(source string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if source == r.source {
		return false
	}
	r.source = source
	clear(r.ids)
	return true
}

// IDs returns the removed ids in sorted order.
func (r *RemovalSet) IDs() []model.ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.ID, 0, len(r.ids))
	for id := range r.ids {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Len returns the number of removed ids.
func (r *RemovalSet) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}
