package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/model"
)

// Record is a stored selection list that can be imported.
type Record struct {
	Source     string                 `json:"source,omitempty"`
	Selections []model.SelectionEntry `json:"selections"`
}

// DecodeRecord reads either a Record object or a bare selection array.
func DecodeRecord(r io.Reader) (Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Record{}, fmt.Errorf("read record: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Record{}, fmt.Errorf("record is empty")
	}

	var rec Record
	if data[0] == '[' {
		err = json.Unmarshal(data, &rec.Selections)
	} else {
		err = json.Unmarshal(data, &rec)
	}
	if err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	for i, e := range rec.Selections {
		if e.ID == "" {
			return Record{}, fmt.Errorf("record selection %d has no id", i)
		}
	}
	return rec, nil
}

// removalState is the persisted form of a removal set, used by
// short-lived processes that must carry removals between runs.
type removalState struct {
	Source string     `json:"source"`
	IDs    []model.ID `json:"ids"`
}

// EncodeRemovals serializes the session's removal set.
func (s *Session) EncodeRemovals() ([]byte, error) {
	return json.Marshal(removalState{Source: s.removed.Source(), IDs: s.removed.IDs()})
}

// LoadRemovals replaces the removal set with a serialized one.
func (s *Session) LoadRemovals(data []byte) error {
	var rs removalState
	if err := json.Unmarshal(data, &rs); err != nil {
		return fmt.Errorf("decode removals: %w", err)
	}
	s.removed.SwitchSource(rs.Source)
	s.removed.Clear()
	for _, id := range rs.IDs {
		s.removed.Add(id)
	}
	return nil
}
