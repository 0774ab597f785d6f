package harness

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"

	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/instance"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/model"
)

// AssertionError is returned when an assertion fails.
// It includes the selections so the failure can be read without a debugger.
type AssertionError struct {
	Type       string
	Expected   string
	Actual     string
	Selections []model.SelectionEntry
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nSelections:\n")
	for i, sel := range e.Selections {
		ids := make([]string, len(sel.Instances))
		for j, in := range sel.Instances {
			ids[j] = in.ID
		}
		fmt.Fprintf(&buf, "  [%d] %s quantity=%d instances=%v\n", i+1, sel.ID, sel.Quantity, ids)
	}

	return buf.String()
}

// evaluate checks one assertion against the final state.
func evaluate(state model.CompositionState, a Assertion) error {
	fail := func(expected, actual string) error {
		return &AssertionError{
			Type:       a.Type,
			Expected:   expected,
			Actual:     actual,
			Selections: state.Selections,
		}
	}

	switch a.Type {
	case AssertSelectionCount:
		if n := len(state.Selections); n != a.Count {
			return fail(fmt.Sprintf("%d selections", a.Count), fmt.Sprintf("%d selections", n))
		}

	case AssertQuantity:
		entry, ok := state.Selection(model.ID(a.Service))
		if !ok {
			return fail(fmt.Sprintf("service %s with quantity %d", a.Service, a.Count), "service not selected")
		}
		if entry.Quantity != a.Count {
			return fail(fmt.Sprintf("quantity %d", a.Count), fmt.Sprintf("quantity %d", entry.Quantity))
		}

	case AssertInfo:
		entry, ok := state.Selection(model.ID(a.Service))
		if !ok {
			return fail(fmt.Sprintf("service %s", a.Service), "service not selected")
		}
		idx := entry.InstanceIndex(a.Instance)
		if idx < 0 {
			return fail(fmt.Sprintf("instance %s", a.Instance), "instance not found")
		}
		return matchInfo(entry.Instances[idx].AdditionalInfo, a.Expect, fail)

	case AssertInvariants:
		if err := instance.CheckState(state); err != nil {
			return fail("invariants hold", err.Error())
		}

	case AssertAbsent:
		if _, ok := state.Selection(model.ID(a.Service)); ok {
			return fail(fmt.Sprintf("service %s not selected", a.Service), "service selected")
		}

	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// matchInfo checks each expected key (subset semantics). A nil expectation
// requires the key to be absent.
func matchInfo(got model.AdditionalInfo, expect map[string]any, fail func(expected, actual string) error) error {
	for _, key := range slices.Sorted(maps.Keys(expect)) {
		want, ok := model.InfoValueFrom(expect[key])
		if !ok {
			return fmt.Errorf("info assertion: unsupported value for %q", key)
		}
		have, present := got[key]
		if want == nil {
			if present {
				return fail(fmt.Sprintf("%s absent", key), fmt.Sprintf("%s=%s", key, model.Render(have)))
			}
			continue
		}
		if !present {
			return fail(fmt.Sprintf("%s=%s", key, model.Render(want)), fmt.Sprintf("%s absent", key))
		}
		if !reflect.DeepEqual(have, want) {
			return fail(fmt.Sprintf("%s=%s (%T)", key, model.Render(want), want),
				fmt.Sprintf("%s=%s (%T)", key, model.Render(have), have))
		}
	}
	return nil
}
