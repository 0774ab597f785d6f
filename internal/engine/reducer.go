package engine

import (
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/instance"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/model"
)

// Reducer is the pure state-transition function of the composition.
// The only input beyond (state, action) is the id generator used when an
// instance list has to grow.
type Reducer struct {
	ids instance.IDGenerator
}

// NewReducer creates a reducer. A nil generator defaults to UUIDv7.
func NewReducer(ids instance.IDGenerator) Reducer {
	if ids == nil {
		ids = instance.UUIDv7Generator{}
	}
	return Reducer{ids: ids}
}

// Reduce applies a to s and returns the resulting state.
func (r Reducer) Reduce(s model.CompositionState, a Action) model.CompositionState {
	next, _ := r.Apply(s, a)
	return next
}

// Apply is Reduce plus a flag telling whether the action changed anything.
// When changed is false the returned state is s itself.
func (r Reducer) Apply(s model.CompositionState, a Action) (next model.CompositionState, changed bool) {
	switch act := a.(type) {
	case SetClientProfile:
		next = s
		next.ClientProfile = act.Patch.Apply(s.ClientProfile)
		return next, next.ClientProfile != s.ClientProfile

	case SetFormValidity:
		if s.FormIsValid == act.Valid {
			return s, false
		}
		next = s
		next.FormIsValid = act.Valid
		return next, true

	case AddSelection:
		if s.SelectionIndex(act.Entry.ID) >= 0 {
			return s, false
		}
		next = s
		next.Selections = append(copySelections(s.Selections), r.normalizeEntry(act.Entry))
		return next, true

	case UpdateAdditionalInfo:
		return r.updateAdditionalInfo(s, act)

	case RemoveSelection:
		idx := s.SelectionIndex(act.ID)
		if idx < 0 {
			return s, false
		}
		next = s
		next.Selections = make([]model.SelectionEntry, 0, len(s.Selections)-1)
		next.Selections = append(next.Selections, s.Selections[:idx]...)
		next.Selections = append(next.Selections, s.Selections[idx+1:]...)
		return next, true

	case ReplaceSelections:
		next = s
		next.Selections = r.normalizeSelections(act.Selections)
		return next, true

	case SetLoading:
		if s.Loading == act.Loading {
			return s, false
		}
		next = s
		next.Loading = act.Loading
		return next, true

	case SetError:
		if s.Error == act.Message {
			return s, false
		}
		next = s
		next.Error = act.Message
		return next, true

	case Reset:
		return model.NewCompositionState(), true

	case RestoreSnapshot:
		next = model.NewCompositionState()
		next.ClientProfile = act.State.ClientProfile
		next.Selections = r.normalizeSelections(act.State.Selections)
		next.Loading = act.State.Loading
		next.Error = act.State.Error
		next.FormIsValid = act.State.FormIsValid
		return next, true

	default:
		return s, false
	}
}

func (r Reducer) updateAdditionalInfo(s model.CompositionState, act UpdateAdditionalInfo) (model.CompositionState, bool) {
	idx := s.SelectionIndex(act.ServiceID)
	if idx < 0 {
		return s, false
	}
	entry := s.Selections[idx].Clone()

	switch {
	case act.Instances != nil:
		instances := r.sanitizeInstances(act.Instances)
		q := len(instances)
		if act.NewQuantity != nil {
			q = *act.NewQuantity
		}
		entry.Instances = instance.Reconcile(instances, q, r.ids)
		entry.Quantity = len(entry.Instances)

	case act.InstanceID != "" && act.Info != nil:
		ii := entry.InstanceIndex(act.InstanceID)
		if ii < 0 {
			return s, false
		}
		entry.Instances[ii].AdditionalInfo = patchInfo(entry.Instances[ii].AdditionalInfo, act.Info)

	default:
		return s, false
	}

	next := s
	next.Selections = copySelections(s.Selections)
	next.Selections[idx] = entry
	return next, true
}

// normalizeEntry sizes instances to the quantity and drops nil answers
// of an externally built entry.
// A positive Quantity wins; otherwise the instance count is used.
func (r Reducer) normalizeEntry(e model.SelectionEntry) model.SelectionEntry {
	instances := r.sanitizeInstances(e.Instances)
	q := e.Quantity
	if q < instance.MinQuantity {
		q = len(instances)
	}
	e.Instances = instance.Reconcile(instances, q, r.ids)
	e.Quantity = len(e.Instances)
	return e
}

// normalizeSelections normalizes every entry and drops repeated ids,
// keeping the first occurrence.
func (r Reducer) normalizeSelections(in []model.SelectionEntry) []model.SelectionEntry {
	out := make([]model.SelectionEntry, 0, len(in))
	seen := make(map[model.ID]struct{}, len(in))
	for _, e := range in {
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		out = append(out, r.normalizeEntry(e))
	}
	return out
}

// sanitizeInstances copies the list, drops nil info values and gives
// id-less or repeated instances a fresh id.
func (r Reducer) sanitizeInstances(in []model.Instance) []model.Instance {
	out := make([]model.Instance, len(in))
	seen := make(map[string]struct{}, len(in))
	for i, inst := range in {
		id := inst.ID
		if _, dup := seen[id]; dup || id == "" {
			id = r.ids.Generate()
		}
		seen[id] = struct{}{}
		out[i] = model.Instance{ID: id, AdditionalInfo: inst.AdditionalInfo.Clean()}
	}
	return out
}

func patchInfo(base, patch model.AdditionalInfo) model.AdditionalInfo {
	out := base.Clone()
	for k, v := range patch {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = model.CloneValue(v)
	}
	return out
}

func copySelections(in []model.SelectionEntry) []model.SelectionEntry {
	out := make([]model.SelectionEntry, len(in), len(in)+1)
	copy(out, in)
	return out
}
