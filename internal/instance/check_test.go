package instance

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/model"
)

func TestCheckEntry_Valid(t *testing.T) {
	e := model.SelectionEntry{ID: "1", Quantity: 2, Instances: New(2, NewSequenceGenerator(""))}
	assert.NoError(t, CheckEntry(e))
}

func TestCheckEntry_QuantityMismatch(t *testing.T) {
	e := model.SelectionEntry{ID: "1", Quantity: 3, Instances: New(2, NewSequenceGenerator(""))}
	err := CheckEntry(e)
	require.Error(t, err)

	var ie *InvariantError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, CodeQuantityMismatch, ie.Code)
	assert.Equal(t, model.ID("1"), ie.SelectionID)
}

func TestCheckEntry_QuantityRange(t *testing.T) {
	e := model.SelectionEntry{ID: "1", Quantity: 0}
	var ie *InvariantError
	require.ErrorAs(t, CheckEntry(e), &ie)
	assert.Equal(t, CodeQuantityRange, ie.Code)
}

func TestCheckEntry_NullInfo(t *testing.T) {
	e := model.SelectionEntry{
		ID:       "1",
		Quantity: 1,
		Instances: []model.Instance{
			{ID: "a", AdditionalInfo: model.AdditionalInfo{"depth": nil}},
		},
	}
	var ie *InvariantError
	require.ErrorAs(t, CheckEntry(e), &ie)
	assert.Equal(t, CodeNullInfo, ie.Code)
	assert.Equal(t, "a", ie.InstanceID)
	assert.Contains(t, ie.Error(), "instance=a")
}

func TestCheckEntry_DuplicateInstanceID(t *testing.T) {
	e := model.SelectionEntry{
		ID:        "1",
		Quantity:  2,
		Instances: []model.Instance{{ID: "a"}, {ID: "a"}},
	}
	var ie *InvariantError
	require.ErrorAs(t, CheckEntry(e), &ie)
	assert.Equal(t, CodeDuplicateID, ie.Code)
}

func TestCheckState_DuplicateSelection(t *testing.T) {
	ids := NewSequenceGenerator("")
	s := model.NewCompositionState()
	s.Selections = []model.SelectionEntry{
		{ID: "1", Quantity: 1, Instances: New(1, ids)},
		{ID: "1", Quantity: 1, Instances: New(1, ids)},
	}
	err := CheckState(s)
	require.Error(t, err)
	assert.True(t, IsInvariantError(err))
	assert.True(t, IsInvariantError(fmt.Errorf("wrapped: %w", err)))
}

func TestCheckState_Empty(t *testing.T) {
	assert.NoError(t, CheckState(model.NewCompositionState()))
}
