package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdditionalInfo_UnmarshalDropsNull(t *testing.T) {
	var info AdditionalInfo
	err := json.Unmarshal([]byte(`{"depth": 1.5, "notes": null, "method": "astm", "dry": true, "tags": ["a","b"]}`), &info)
	require.NoError(t, err)

	assert.Equal(t, AdditionalInfo{
		"depth":  Number(1.5),
		"method": Text("astm"),
		"dry":    Flag(true),
		"tags":   Choices{"a", "b"},
	}, info)
	_, present := info["notes"]
	assert.False(t, present, "null must be treated as absent")
}

func TestAdditionalInfo_UnmarshalRejectsObjects(t *testing.T) {
	var info AdditionalInfo
	err := json.Unmarshal([]byte(`{"nested": {"a": 1}}`), &info)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nested")
}

func TestAdditionalInfo_UnmarshalRejectsMixedArrays(t *testing.T) {
	var info AdditionalInfo
	err := json.Unmarshal([]byte(`{"tags": ["a", 1]}`), &info)
	require.Error(t, err)
}

func TestAdditionalInfo_CleanRemovesNil(t *testing.T) {
	info := AdditionalInfo{"a": Text("x"), "b": nil}
	cleaned := info.Clean()
	assert.Equal(t, AdditionalInfo{"a": Text("x")}, cleaned)
	assert.Len(t, info, 2, "Clean must not mutate the receiver")
}

func TestAdditionalInfo_CloneIsDeep(t *testing.T) {
	info := AdditionalInfo{"tags": Choices{"a"}}
	clone := info.Clone()
	clone["tags"].(Choices)[0] = "z"
	assert.Equal(t, Choices{"a"}, info["tags"])
}

func TestAdditionalInfo_Keys(t *testing.T) {
	info := AdditionalInfo{"b": Text("1"), "a": Text("2"), "c": Flag(false)}
	assert.Equal(t, []string{"a", "b", "c"}, info.Keys())
}

func TestChoices_MarshalNilAsEmpty(t *testing.T) {
	data, err := json.Marshal(AdditionalInfo{"tags": Choices(nil)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"tags": []}`, string(data))
}

func TestInfoValueFrom(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want InfoValue
		ok   bool
	}{
		{"string", "abc", Text("abc"), true},
		{"int", 3, Number(3), true},
		{"float", 2.5, Number(2.5), true},
		{"bool", true, Flag(true), true},
		{"string slice", []any{"x", "y"}, Choices{"x", "y"}, true},
		{"mixed slice", []any{"x", 1}, nil, false},
		{"nil", nil, nil, true},
		{"map", map[string]any{}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := InfoValueFrom(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRender(t *testing.T) {
	assert.Equal(t, "abc", Render(Text("abc")))
	assert.Equal(t, "2", Render(Number(2)))
	assert.Equal(t, "0.25", Render(Number(0.25)))
	assert.Equal(t, "true", Render(Flag(true)))
	assert.Equal(t, `["a","b"]`, Render(Choices{"a", "b"}))
	assert.Equal(t, "", Render(nil))
}
