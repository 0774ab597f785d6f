package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
)

// InfoValue is a sealed interface over the answer types an instance may
// carry. Only Text, Number, Flag and Choices implement it.
type InfoValue interface {
	infoValue() // Sealed - only these types implement it
}

// Text is a free text, single-select, radio or date answer.
type Text string

func (Text) infoValue() {}

// Number is a numeric answer.
type Number float64

func (Number) infoValue() {}

// Flag is a checkbox answer.
type Flag bool

func (Flag) infoValue() {}

// Choices is a multi-select answer.
type Choices []string

func (Choices) infoValue() {}

// MarshalJSON encodes a nil Choices as an empty array so a cleared
// multi-select never reaches storage as null.
func (c Choices) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(c))
}

// AdditionalInfo maps field keys to answers. Use Keys() for deterministic
// iteration.
type AdditionalInfo map[string]InfoValue

// Keys returns the keys in sorted order.
func (a AdditionalInfo) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// CloneValue copies v so the result shares no backing array with it.
func CloneValue(v InfoValue) InfoValue {
	if c, ok := v.(Choices); ok {
		return slices.Clone(c)
	}
	return v
}

// Clone returns a deep copy. A nil map clones to an empty one.
func (a AdditionalInfo) Clone() AdditionalInfo {
	out := make(AdditionalInfo, len(a))
	for k, v := range a {
		out[k] = CloneValue(v)
	}
	return out
}

// Clean returns a copy with nil values removed.
func (a AdditionalInfo) Clean() AdditionalInfo {
	out := make(AdditionalInfo, len(a))
	for k, v := range a {
		if v == nil {
			continue
		}
		out[k] = CloneValue(v)
	}
	return out
}

// UnmarshalJSON implements json.Unmarshaler for AdditionalInfo.
// Null values are dropped rather than stored.
func (a *AdditionalInfo) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("additional info: %w", err)
	}
	out := make(AdditionalInfo, len(raw))
	for k, msg := range raw {
		v, err := decodeInfoValue(msg)
		if err != nil {
			return fmt.Errorf("additional info %q: %w", k, err)
		}
		if v != nil {
			out[k] = v
		}
	}
	*a = out
	return nil
}

func decodeInfoValue(msg json.RawMessage) (InfoValue, error) {
	msg = bytes.TrimSpace(msg)
	if len(msg) == 0 {
		return nil, fmt.Errorf("empty value")
	}
	switch msg[0] {
	case 'n':
		return nil, nil
	case '"':
		var s string
		if err := json.Unmarshal(msg, &s); err != nil {
			return nil, err
		}
		return Text(s), nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(msg, &b); err != nil {
			return nil, err
		}
		return Flag(b), nil
	case '[':
		var list []string
		if err := json.Unmarshal(msg, &list); err != nil {
			return nil, fmt.Errorf("only string arrays are allowed: %w", err)
		}
		if list == nil {
			list = []string{}
		}
		return Choices(list), nil
	case '{':
		return nil, fmt.Errorf("objects are not allowed")
	default:
		f, err := strconv.ParseFloat(string(msg), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %s", msg)
		}
		return Number(f), nil
	}
}

// InfoValueFrom converts a plain Go value (as produced by YAML or JSON
// decoding into any) to an InfoValue. nil converts to (nil, true).
func InfoValueFrom(v any) (InfoValue, bool) {
	switch val := v.(type) {
	case nil:
		return nil, true
	case InfoValue:
		return val, true
	case string:
		return Text(val), true
	case bool:
		return Flag(val), true
	case int:
		return Number(val), true
	case int64:
		return Number(val), true
	case float64:
		return Number(val), true
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return nil, false
		}
		return Number(f), true
	case []string:
		return Choices(slices.Clone(val)), true
	case []any:
		list := make([]string, 0, len(val))
		for _, elem := range val {
			s, ok := elem.(string)
			if !ok {
				return nil, false
			}
			list = append(list, s)
		}
		return Choices(list), true
	default:
		return nil, false
	}
}

// Render returns the textual form used for dependency matching and display.
func Render(v InfoValue) string {
	switch val := v.(type) {
	case Text:
		return string(val)
	case Number:
		return strconv.FormatFloat(float64(val), 'f', -1, 64)
	case Flag:
		return strconv.FormatBool(bool(val))
	case Choices:
		b, _ := json.Marshal([]string(val))
		return string(b)
	default:
		return ""
	}
}
