package merge

import (
	"fmt"

	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/model"
)

// Mode selects how incoming selections combine with the current ones.
type Mode string

const (
	// ModeReplace discards current selections. Used once, on the first
	// load of a record being edited.
	ModeReplace Mode = "replace"

	// ModeMerge appends incoming entries that are neither present nor
	// removed. Used for every later re-import while composing.
	ModeMerge Mode = "merge"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeReplace, ModeMerge:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown merge mode %q: must be %q or %q", s, ModeMerge, ModeReplace)
}

// Merge combines current and incoming according to mode and returns a new
// list; neither input is modified. In merge mode an incoming entry is
// skipped when its id is already present or when it (or its catalog item)
// is in removed. A nil removed set behaves as empty.
func Merge(current, incoming []model.SelectionEntry, removed *RemovalSet, mode Mode) []model.SelectionEntry {
	if mode == ModeReplace {
		out := make([]model.SelectionEntry, len(incoming))
		for i, e := range incoming {
			out[i] = e.Clone()
		}
		return out
	}

	out := make([]model.SelectionEntry, 0, len(current)+len(incoming))
	present := make(map[model.ID]struct{}, len(current)+len(incoming))
	for _, e := range current {
		out = append(out, e.Clone())
		present[e.ID] = struct{}{}
	}
	for _, e := range incoming {
		if _, ok := present[e.ID]; ok {
			continue
		}
		if isRemoved(removed, e) {
			continue
		}
		out = append(out, e.Clone())
		present[e.ID] = struct{}{}
	}
	return out
}

func isRemoved(removed *RemovalSet, e model.SelectionEntry) bool {
	if removed == nil {
		return false
	}
	if removed.Has(e.ID) {
		return true
	}
	return e.Item.ID != "" && removed.Has(e.Item.ID)
}
