package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ID is an opaque identifier. Remote records carry numeric ids while
// locally generated ones are strings, so ID accepts both on decode and
// always encodes as a string.
type ID string

// UnmarshalJSON implements json.Unmarshaler for ID.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("id: %w", err)
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id: expected string or number, got %s", data)
	}
	*id = ID(n.String())
	return nil
}

// ClientProfile holds the requester's identity, contact and project fields.
type ClientProfile struct {
	Name           string `json:"name" validate:"required"`
	NameProject    string `json:"nameProject" validate:"required"`
	Location       string `json:"location" validate:"required"`
	Identification string `json:"identification" validate:"required"`
	Phone          string `json:"phone" validate:"required,min=7,phone"`
	Email          string `json:"email" validate:"required,email"`
	Description    string `json:"description"`
	Status         string `json:"status,omitempty" validate:"omitempty,oneof=pendiente en_proceso completado cancelado"`
}

// ProfilePatch is a partial ClientProfile. Nil fields are left untouched
// when the patch is applied.
type ProfilePatch struct {
	Name           *string `json:"name,omitempty" yaml:"name,omitempty"`
	NameProject    *string `json:"nameProject,omitempty" yaml:"nameProject,omitempty"`
	Location       *string `json:"location,omitempty" yaml:"location,omitempty"`
	Identification *string `json:"identification,omitempty" yaml:"identification,omitempty"`
	Phone          *string `json:"phone,omitempty" yaml:"phone,omitempty"`
	Email          *string `json:"email,omitempty" yaml:"email,omitempty"`
	Description    *string `json:"description,omitempty" yaml:"description,omitempty"`
	Status         *string `json:"status,omitempty" yaml:"status,omitempty"`
}

// Apply shallow-merges the patch into p and returns the result.
func (pp ProfilePatch) Apply(p ClientProfile) ClientProfile {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&p.Name, pp.Name)
	set(&p.NameProject, pp.NameProject)
	set(&p.Location, pp.Location)
	set(&p.Identification, pp.Identification)
	set(&p.Phone, pp.Phone)
	set(&p.Email, pp.Email)
	set(&p.Description, pp.Description)
	set(&p.Status, pp.Status)
	return p
}

// FieldType tags the kind of answer an additional field expects.
type FieldType string

const (
	FieldText        FieldType = "text"
	FieldNumber      FieldType = "number"
	FieldSelect      FieldType = "select"
	FieldMultiSelect FieldType = "multiselect"
	FieldCheckbox    FieldType = "checkbox"
	FieldRadio       FieldType = "radio"
	FieldDate        FieldType = "date"
)

// Valid reports whether t is one of the known field types.
func (t FieldType) Valid() bool {
	switch t {
	case FieldText, FieldNumber, FieldSelect, FieldMultiSelect, FieldCheckbox, FieldRadio, FieldDate:
		return true
	}
	return false
}

// Dependency makes a field relevant only when another field of the same
// instance equals Value.
type Dependency struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// AdditionalFieldSchema describes one extra question a service instance
// may need answered.
type AdditionalFieldSchema struct {
	Field     string      `json:"field"`
	Label     string      `json:"label,omitempty"`
	Type      FieldType   `json:"type"`
	Required  bool        `json:"required,omitempty"`
	Options   []string    `json:"options,omitempty"`
	DependsOn *Dependency `json:"dependsOn,omitempty"`
}

// ServiceCatalogItem is immutable reference data for one orderable service.
type ServiceCatalogItem struct {
	ID     ID                      `json:"id"`
	Code   string                  `json:"code"`
	Name   string                  `json:"name"`
	Fields []AdditionalFieldSchema `json:"fields,omitempty"`
}

// Field returns the schema of the named field.
func (it ServiceCatalogItem) Field(key string) (AdditionalFieldSchema, bool) {
	for _, f := range it.Fields {
		if f.Field == key {
			return f, true
		}
	}
	return AdditionalFieldSchema{}, false
}

// ServiceCategory groups catalog items.
type ServiceCategory struct {
	ID    ID                   `json:"id"`
	Name  string               `json:"name"`
	Items []ServiceCatalogItem `json:"items"`
}

// Instance is one repeated unit of a selected service.
type Instance struct {
	ID             string         `json:"id"`
	AdditionalInfo AdditionalInfo `json:"additionalInfo"`
}

// Clone returns a deep copy of the instance.
func (in Instance) Clone() Instance {
	return Instance{ID: in.ID, AdditionalInfo: in.AdditionalInfo.Clone()}
}

// SelectionEntry is one selected service with its instances.
type SelectionEntry struct {
	ID        ID                 `json:"id"`
	Item      ServiceCatalogItem `json:"item"`
	Category  string             `json:"category,omitempty"`
	Quantity  int                `json:"quantity"`
	Instances []Instance         `json:"instances"`
}

// InstanceIndex returns the position of the instance with the given id, or -1.
func (e SelectionEntry) InstanceIndex(instanceID string) int {
	for i, in := range e.Instances {
		if in.ID == instanceID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of the entry. The catalog item is shared
// because it is immutable.
func (e SelectionEntry) Clone() SelectionEntry {
	out := e
	out.Instances = make([]Instance, len(e.Instances))
	for i, in := range e.Instances {
		out.Instances[i] = in.Clone()
	}
	return out
}

// CompositionState is the whole in-progress composition.
type CompositionState struct {
	ClientProfile ClientProfile    `json:"clientProfile"`
	Selections    []SelectionEntry `json:"selections"`
	Loading       bool             `json:"loading"`
	Error         string           `json:"error,omitempty"`
	FormIsValid   bool             `json:"formIsValid"`
}

// NewCompositionState returns the initial empty state.
func NewCompositionState() CompositionState {
	return CompositionState{Selections: []SelectionEntry{}}
}

// Selection returns the entry with the given id.
func (s CompositionState) Selection(id ID) (SelectionEntry, bool) {
	if i := s.SelectionIndex(id); i >= 0 {
		return s.Selections[i], true
	}
	return SelectionEntry{}, false
}

// SelectionIndex returns the position of the entry with the given id, or -1.
func (s CompositionState) SelectionIndex(id ID) int {
	for i, e := range s.Selections {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of the state.
func (s CompositionState) Clone() CompositionState {
	out := s
	out.Selections = make([]SelectionEntry, len(s.Selections))
	for i, e := range s.Selections {
		out.Selections[i] = e.Clone()
	}
	return out
}

// OfflineQueueEntry is a submission recorded while disconnected, waiting
// for a later replay.
type OfflineQueueEntry struct {
	ID        string          `json:"id"`
	URL       string          `json:"url"`
	Method    string          `json:"method"`
	Payload   json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	Attempts  int             `json:"attempts,omitempty"`
}

// String renders the entry for logs.
func (e OfflineQueueEntry) String() string {
	return e.Method + " " + e.URL + " @" + strconv.FormatInt(e.Timestamp.UnixMilli(), 10)
}
