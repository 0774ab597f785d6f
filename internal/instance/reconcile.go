// Package instance keeps a selection's quantity and its instance list in
// lock-step.
//
// Reconcile is the only way instance lists change length. Surviving
// instances keep their order and answers; new ones are appended empty
// with fresh ids; surplus is dropped from the tail so "sample #1, #2, #3"
// shrinking to 2 keeps #1 and #2.
package instance

import "github.com/miltondw/cuentas-ingeocimyc-sub001/internal/model"

// MinQuantity is the smallest quantity a selection may hold.
const MinQuantity = 1

// maxIDAttempts bounds regeneration when a generator repeats an id that
// is already present in the list.
const maxIDAttempts = 8

// Clamp returns q raised to MinQuantity.
func Clamp(q int) int {
	if q < MinQuantity {
		return MinQuantity
	}
	return q
}

// Reconcile returns a new instance list of length Clamp(q). The input is
// never modified; retained instances are deep copies.
func Reconcile(existing []model.Instance, q int, ids IDGenerator) []model.Instance {
	q = Clamp(q)
	out := make([]model.Instance, 0, q)
	seen := make(map[string]struct{}, q)

	for i := 0; i < len(existing) && i < q; i++ {
		in := existing[i].Clone()
		out = append(out, in)
		seen[in.ID] = struct{}{}
	}
	for len(out) < q {
		id := freshID(ids, seen)
		seen[id] = struct{}{}
		out = append(out, model.Instance{ID: id, AdditionalInfo: model.AdditionalInfo{}})
	}
	return out
}

// New returns q fresh, empty instances.
func New(q int, ids IDGenerator) []model.Instance {
	return Reconcile(nil, q, ids)
}

func freshID(ids IDGenerator, seen map[string]struct{}) string {
	id := ids.Generate()
	for attempt := 1; attempt < maxIDAttempts; attempt++ {
		if _, dup := seen[id]; !dup && id != "" {
			return id
		}
		id = ids.Generate()
	}
	// A generator that keeps colliding is a programming error.
	if _, dup := seen[id]; dup || id == "" {
		panic("instance: id generator produced no unique id")
	}
	return id
}
