package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/merge"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/model"
)

// Scenario is a scripted composition session with expectations about the
// state it leaves behind.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Catalog is the path of a CUE catalog file. Required by add and
	// import steps. Relative paths are resolved against the scenario file.
	Catalog string `yaml:"catalog,omitempty"`

	// IDPrefix prefixes generated instance ids. Defaults to "inst".
	IDPrefix string `yaml:"id_prefix,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one user action. Which fields apply depends on Action.
type Step struct {
	Action     string              `yaml:"action"`
	Service    string              `yaml:"service,omitempty"`
	Instance   string              `yaml:"instance,omitempty"`
	Quantity   int                 `yaml:"quantity,omitempty"`
	Profile    *model.ProfilePatch `yaml:"profile,omitempty"`
	Info       map[string]any      `yaml:"info,omitempty"`
	Source     string              `yaml:"source,omitempty"`
	Mode       string              `yaml:"mode,omitempty"`
	Selections []ImportEntry       `yaml:"selections,omitempty"`
}

// ImportEntry is one selection of a source record. Item names the catalog
// item; ID defaults to it.
type ImportEntry struct {
	ID        string           `yaml:"id,omitempty"`
	Item      string           `yaml:"item"`
	Quantity  int              `yaml:"quantity,omitempty"`
	Instances []map[string]any `yaml:"instances,omitempty"`
}

// Assertion is an expectation about the final composition.
type Assertion struct {
	Type     string         `yaml:"type"`
	Service  string         `yaml:"service,omitempty"`
	Instance string         `yaml:"instance,omitempty"`
	Count    int            `yaml:"count,omitempty"`
	Expect   map[string]any `yaml:"expect,omitempty"`
}

// Step actions.
const (
	StepSetProfile  = "set_profile"
	StepAdd         = "add"
	StepSetQuantity = "set_quantity"
	StepPatchInfo   = "patch_info"
	StepRemove      = "remove"
	StepImport      = "import"
	StepReset       = "reset"
	StepReload      = "reload"
)

// Assertion types.
const (
	AssertSelectionCount = "selection_count"
	AssertQuantity       = "quantity"
	AssertInfo           = "info"
	AssertInvariants     = "invariants"
	AssertAbsent         = "absent"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict decoding catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Catalog != "" && !filepath.IsAbs(scenario.Catalog) {
		scenario.Catalog = filepath.Join(filepath.Dir(path), scenario.Catalog)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if s.Catalog != "" {
		if _, err := os.Stat(s.Catalog); os.IsNotExist(err) {
			return fmt.Errorf("catalog file not found: %s", s.Catalog)
		}
	}

	for i := range s.Steps {
		if err := validateStep(i, &s.Steps[i], s.Catalog != ""); err != nil {
			return err
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, st *Step, hasCatalog bool) error {
	switch st.Action {
	case "":
		return fmt.Errorf("steps[%d]: action is required", index)
	case StepSetProfile:
		if st.Profile == nil {
			return fmt.Errorf("steps[%d]: profile is required for set_profile", index)
		}
	case StepAdd:
		if st.Service == "" {
			return fmt.Errorf("steps[%d]: service is required for add", index)
		}
		if !hasCatalog {
			return fmt.Errorf("steps[%d]: add needs a catalog", index)
		}
		if st.Quantity < 0 {
			return fmt.Errorf("steps[%d]: quantity must be non-negative", index)
		}
	case StepSetQuantity:
		if st.Service == "" {
			return fmt.Errorf("steps[%d]: service is required for set_quantity", index)
		}
	case StepPatchInfo:
		if st.Service == "" || st.Instance == "" {
			return fmt.Errorf("steps[%d]: service and instance are required for patch_info", index)
		}
		if len(st.Info) == 0 {
			return fmt.Errorf("steps[%d]: info is required for patch_info", index)
		}
	case StepRemove:
		if st.Service == "" {
			return fmt.Errorf("steps[%d]: service is required for remove", index)
		}
	case StepImport:
		if st.Source == "" {
			return fmt.Errorf("steps[%d]: source is required for import", index)
		}
		if !hasCatalog {
			return fmt.Errorf("steps[%d]: import needs a catalog", index)
		}
		if _, err := merge.ParseMode(importMode(st.Mode)); err != nil {
			return fmt.Errorf("steps[%d]: %w", index, err)
		}
		for j, e := range st.Selections {
			if e.Item == "" {
				return fmt.Errorf("steps[%d].selections[%d]: item is required", index, j)
			}
		}
	case StepReset, StepReload:
	default:
		return fmt.Errorf("steps[%d]: unknown action %q", index, st.Action)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertSelectionCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for selection_count", index)
		}
	case AssertQuantity:
		if a.Service == "" {
			return fmt.Errorf("assertions[%d]: service is required for quantity", index)
		}
		if a.Count < 1 {
			return fmt.Errorf("assertions[%d]: count must be positive for quantity", index)
		}
	case AssertInfo:
		if a.Service == "" || a.Instance == "" {
			return fmt.Errorf("assertions[%d]: service and instance are required for info", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for info", index)
		}
	case AssertAbsent:
		if a.Service == "" {
			return fmt.Errorf("assertions[%d]: service is required for absent", index)
		}
	case AssertInvariants:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

// importMode defaults an empty mode to merge.
func importMode(m string) string {
	if m == "" {
		return string(merge.ModeMerge)
	}
	return m
}
