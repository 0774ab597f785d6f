package instance

import (
	"errors"
	"fmt"

	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/model"
)

// InvariantCode identifies which composition invariant was violated.
type InvariantCode string

const (
	// CodeQuantityMismatch: quantity != len(instances).
	CodeQuantityMismatch InvariantCode = "QUANTITY_MISMATCH"

	// CodeNullInfo: an additionalInfo key holds nil.
	CodeNullInfo InvariantCode = "NULL_INFO"

	// CodeQuantityRange: quantity below MinQuantity.
	CodeQuantityRange InvariantCode = "QUANTITY_RANGE"

	// CodeDuplicateID: two selections or two instances share an id.
	CodeDuplicateID InvariantCode = "DUPLICATE_ID"
)

// InvariantError describes a composition that violates an invariant.
type InvariantError struct {
	Code        InvariantCode
	SelectionID model.ID
	InstanceID  string
	Message     string
}

// Error implements the error interface.
func (e *InvariantError) Error() string {
	if e.InstanceID != "" {
		return fmt.Sprintf("%s: %s (selection=%s, instance=%s)", e.Code, e.Message, e.SelectionID, e.InstanceID)
	}
	return fmt.Sprintf("%s: %s (selection=%s)", e.Code, e.Message, e.SelectionID)
}

// IsInvariantError returns true if err is or wraps an InvariantError.
func IsInvariantError(err error) bool {
	var ie *InvariantError
	return errors.As(err, &ie)
}

// CheckEntry verifies quantity, answers and instance id uniqueness for one entry.
func CheckEntry(e model.SelectionEntry) error {
	if e.Quantity < MinQuantity {
		return &InvariantError{
			Code:        CodeQuantityRange,
			SelectionID: e.ID,
			Message:     fmt.Sprintf("quantity %d below %d", e.Quantity, MinQuantity),
		}
	}
	if e.Quantity != len(e.Instances) {
		return &InvariantError{
			Code:        CodeQuantityMismatch,
			SelectionID: e.ID,
			Message:     fmt.Sprintf("quantity %d but %d instances", e.Quantity, len(e.Instances)),
		}
	}
	seen := make(map[string]struct{}, len(e.Instances))
	for _, in := range e.Instances {
		if _, dup := seen[in.ID]; dup {
			return &InvariantError{
				Code:        CodeDuplicateID,
				SelectionID: e.ID,
				InstanceID:  in.ID,
				Message:     "instance id repeated",
			}
		}
		seen[in.ID] = struct{}{}
		for _, k := range in.AdditionalInfo.Keys() {
			if in.AdditionalInfo[k] == nil {
				return &InvariantError{
					Code:        CodeNullInfo,
					SelectionID: e.ID,
					InstanceID:  in.ID,
					Message:     fmt.Sprintf("field %q is nil", k),
				}
			}
		}
	}
	return nil
}

// CheckState verifies every entry and selection id uniqueness. Returns the
// first violation found, in selection order.
func CheckState(s model.CompositionState) error {
	seen := make(map[model.ID]struct{}, len(s.Selections))
	for _, e := range s.Selections {
		if _, dup := seen[e.ID]; dup {
			return &InvariantError{Code: CodeDuplicateID, SelectionID: e.ID, Message: "selection id repeated"}
		}
		seen[e.ID] = struct{}{}
		if err := CheckEntry(e); err != nil {
			return err
		}
	}
	return nil
}
