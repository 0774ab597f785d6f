package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/model"
)

// Snapshot is the golden form of a scenario run: the step trace and the
// final selections. Instance ids are deterministic, so the whole snapshot
// is stable across runs.
type Snapshot struct {
	Scenario   string              `json:"scenario"`
	Trace      []TraceEvent        `json:"trace"`
	Selections []SelectionSnapshot `json:"selections"`
}

// SelectionSnapshot is one selection without its catalog item.
type SelectionSnapshot struct {
	ID        model.ID         `json:"id"`
	Quantity  int              `json:"quantity"`
	Instances []model.Instance `json:"instances"`
}

// NewSnapshot builds the golden form of result.
func NewSnapshot(name string, result *Result) Snapshot {
	sels := make([]SelectionSnapshot, len(result.State.Selections))
	for i, e := range result.State.Selections {
		sels[i] = SelectionSnapshot{ID: e.ID, Quantity: e.Quantity, Instances: e.Instances}
	}
	return Snapshot{Scenario: name, Trace: result.Trace, Selections: sels}
}

// MarshalSnapshot renders s as indented JSON with a trailing newline.
func MarshalSnapshot(s Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails. Test failure (via goldie)
// occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(NewSnapshot(name, result))
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)

	return nil
}
