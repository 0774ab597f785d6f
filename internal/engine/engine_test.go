package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/instance"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/model"
)

func newTestEngine() *Engine {
	return New(WithIDGenerator(instance.NewSequenceGenerator("inst")))
}

func TestEngine_New(t *testing.T) {
	e := newTestEngine()
	assert.Equal(t, model.NewCompositionState(), e.State())
	assert.Equal(t, int64(0), e.Generation())
}

func TestEngine_DispatchAdvancesGeneration(t *testing.T) {
	e := newTestEngine()

	s := e.Dispatch(AddSelection{Entry: entry("1", 2)})
	require.Len(t, s.Selections, 1)
	assert.Equal(t, int64(1), e.Generation())

	e.Dispatch(SetLoading{Loading: true})
	assert.Equal(t, int64(2), e.Generation())
}

func TestEngine_NoOpDoesNotNotify(t *testing.T) {
	e := newTestEngine()
	var changes []Change
	e.Subscribe(func(c Change) { changes = append(changes, c) })

	e.Dispatch(AddSelection{Entry: entry("1", 1)})
	e.Dispatch(AddSelection{Entry: entry("1", 1)})
	e.Dispatch(RemoveSelection{ID: "missing"})

	require.Len(t, changes, 1)
	assert.Equal(t, "ADD_SERVICE", changes[0].Action.Name())
	assert.Equal(t, int64(1), changes[0].Generation)
	assert.Equal(t, int64(1), e.Generation())
}

func TestEngine_SubscribersRunInOrder(t *testing.T) {
	e := newTestEngine()
	var order []string
	e.Subscribe(func(Change) { order = append(order, "first") })
	e.Subscribe(func(Change) { order = append(order, "second") })

	e.Dispatch(SetFormValidity{Valid: true})

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestEngine_Unsubscribe(t *testing.T) {
	e := newTestEngine()
	calls := 0
	unsubscribe := e.Subscribe(func(Change) { calls++ })

	e.Dispatch(SetLoading{Loading: true})
	unsubscribe()
	e.Dispatch(SetLoading{Loading: false})

	assert.Equal(t, 1, calls)
}

func TestEngine_SubscriberMayReadState(t *testing.T) {
	e := newTestEngine()
	var seen int
	e.Subscribe(func(c Change) {
		seen = len(e.State().Selections)
	})

	e.Dispatch(AddSelection{Entry: entry("1", 1)})
	assert.Equal(t, 1, seen)
}

func TestEngine_StateIsACopy(t *testing.T) {
	e := newTestEngine()
	e.Dispatch(AddSelection{Entry: entry("1", 1)})

	s := e.State()
	s.Selections[0].Quantity = 99
	s.Selections[0].Instances[0].AdditionalInfo["x"] = model.Text("y")

	fresh := e.State()
	assert.Equal(t, 1, fresh.Selections[0].Quantity)
	assert.Empty(t, fresh.Selections[0].Instances[0].AdditionalInfo)
}

func TestEngine_ConcurrentDispatchKeepsInvariants(t *testing.T) {
	e := New()
	const workers = 8

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				id := string(rune('a' + (w+i)%5))
				e.Dispatch(AddSelection{Entry: entry(id, i%4+1)})
				if s, ok := e.State().Selection(model.ID(id)); ok {
					e.Dispatch(UpdateAdditionalInfo{ServiceID: model.ID(id), Instances: s.Instances, NewQuantity: ptr(i%6 + 1)})
				}
				if i%7 == 0 {
					e.Dispatch(RemoveSelection{ID: model.ID(id)})
				}
			}
		}(w)
	}
	wg.Wait()

	assert.NoError(t, instance.CheckState(e.State()))
}

func TestEngine_GenerationsObservedInOrder(t *testing.T) {
	e := New()
	var mu sync.Mutex
	var gens []int64
	e.Subscribe(func(c Change) {
		mu.Lock()
		gens = append(gens, c.Generation)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e.Dispatch(SetError{Message: string(rune('a' + i))})
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(gens); i++ {
		assert.Greater(t, gens[i], gens[i-1])
	}
}
