package engine

import "github.com/miltondw/cuentas-ingeocimyc-sub001/internal/model"

// Action is a sealed interface over the state transitions the reducer
// understands.
type Action interface {
	// Name returns a stable identifier used in logs and metrics.
	Name() string
	isAction()
}

// SetClientProfile shallow-merges Patch into the client profile.
type SetClientProfile struct {
	Patch model.ProfilePatch
}

// SetFormValidity records the advisory validity flag. It never blocks
// submission.
type SetFormValidity struct {
	Valid bool
}

// AddSelection appends Entry unless a selection with the same id exists.
type AddSelection struct {
	Entry model.SelectionEntry
}

// UpdateAdditionalInfo has two modes.
//
// When Instances is non-nil the entry's instance list is replaced
// wholesale (nil values dropped) and the quantity becomes NewQuantity when
// given, else the new instance count. When NewQuantity disagrees with the
// supplied list, the list is reconciled to NewQuantity.
//
// Otherwise, when InstanceID and Info are set, Info is merged into that
// one instance's additionalInfo; nil values in Info remove the key.
type UpdateAdditionalInfo struct {
	ServiceID   model.ID
	InstanceID  string
	Info        model.AdditionalInfo
	Instances   []model.Instance
	NewQuantity *int
}

// RemoveSelection drops the entry with ID. No-op when absent.
type RemoveSelection struct {
	ID model.ID
}

// ReplaceSelections swaps the whole selection list. Used to write back the
// result of a merge-from-source.
type ReplaceSelections struct {
	Selections []model.SelectionEntry
}

// SetLoading sets the loading flag.
type SetLoading struct {
	Loading bool
}

// SetError sets the error message. An empty Message clears it.
type SetError struct {
	Message string
}

// Reset returns the initial empty state.
type Reset struct{}

// RestoreSnapshot replaces the state with State laid over the initial state.
type RestoreSnapshot struct {
	State model.CompositionState
}

func (SetClientProfile) Name() string     { return "SET_FORM_DATA" }
func (SetFormValidity) Name() string      { return "SET_FORM_VALIDITY" }
func (AddSelection) Name() string         { return "ADD_SERVICE" }
func (UpdateAdditionalInfo) Name() string { return "UPDATE_ADDITIONAL_INFO" }
func (RemoveSelection) Name() string      { return "REMOVE_SERVICE" }
func (ReplaceSelections) Name() string    { return "REPLACE_SERVICES" }
func (SetLoading) Name() string           { return "SET_LOADING" }
func (SetError) Name() string             { return "SET_ERROR" }
func (Reset) Name() string                { return "RESET_FORM" }
func (RestoreSnapshot) Name() string      { return "RESTORE_STATE" }

func (SetClientProfile) isAction()     {}
func (SetFormValidity) isAction()      {}
func (AddSelection) isAction()         {}
func (UpdateAdditionalInfo) isAction() {}
func (RemoveSelection) isAction()      {}
func (ReplaceSelections) isAction()    {}
func (SetLoading) isAction()           {}
func (SetError) isAction()             {}
func (Reset) isAction()                {}
func (RestoreSnapshot) isAction()      {}
