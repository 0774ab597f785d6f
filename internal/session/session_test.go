package session

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/catalog"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/engine"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/instance"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/merge"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/model"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/persist"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/store"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/submit"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/testutil"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/transport"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New([]model.ServiceCategory{{
		ID:   "1",
		Name: "Suelos",
		Items: []model.ServiceCatalogItem{
			{ID: "5", Code: "SR-05", Name: "Humedad"},
			{ID: "6", Code: "SR-06", Name: "Granulometría"},
			{ID: "7", Code: "SR-07", Name: "Límites"},
			{ID: "8", Code: "SR-08", Name: "Densidad", Fields: []model.AdditionalFieldSchema{
				{Field: "depth", Type: model.FieldNumber, Required: true},
			}},
		},
	}})
	require.NoError(t, err)
	return c
}

func newSession(t *testing.T, opts Options) *Session {
	t.Helper()
	if opts.Engine == nil {
		opts.Engine = engine.New(engine.WithIDGenerator(instance.NewSequenceGenerator("inst")))
	}
	if opts.Catalog == nil {
		opts.Catalog = testCatalog(t)
	}
	s := New(opts)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func entry(id string) model.SelectionEntry {
	return model.SelectionEntry{
		ID:       model.ID(id),
		Item:     model.ServiceCatalogItem{ID: model.ID(id), Code: "SR-" + id, Name: "svc " + id},
		Quantity: 1,
	}
}

func ids(sel []model.SelectionEntry) []model.ID {
	out := make([]model.ID, 0, len(sel))
	for _, e := range sel {
		out = append(out, e.ID)
	}
	return out
}

func TestAddService(t *testing.T) {
	s := newSession(t, Options{})

	e, err := s.AddService("5", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, e.Quantity)
	assert.Len(t, e.Instances, 3)
	assert.Equal(t, "Suelos", e.Category)

	// Idempotent.
	_, err = s.AddService("5", 1)
	require.NoError(t, err)
	assert.Len(t, s.State().Selections, 1)
	assert.Equal(t, 3, s.State().Selections[0].Quantity)

	_, err = s.AddService("404", 1)
	require.Error(t, err)
	require.NoError(t, s.Check())
}

func TestAddService_NoCatalog(t *testing.T) {
	s := New(Options{Engine: engine.New()})
	_, err := s.AddService("5", 1)
	assert.ErrorIs(t, err, ErrNoCatalog)
}

func TestSetQuantity_KeepsPrefix(t *testing.T) {
	s := newSession(t, Options{})
	e, err := s.AddService("5", 3)
	require.NoError(t, err)
	first, second := e.Instances[0].ID, e.Instances[1].ID

	require.NoError(t, s.UpdateInstanceInfo("5", first, model.AdditionalInfo{"depth": model.Number(1)}))

	e, err = s.SetQuantity("5", 2)
	require.NoError(t, err)
	require.Len(t, e.Instances, 2)
	assert.Equal(t, first, e.Instances[0].ID)
	assert.Equal(t, second, e.Instances[1].ID)
	assert.Equal(t, model.Number(1), e.Instances[0].AdditionalInfo["depth"])

	e, err = s.SetQuantity("5", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, e.Quantity, "quantity is clamped to 1")

	_, err = s.SetQuantity("9", 2)
	assert.ErrorIs(t, err, ErrUnknownService)
	require.NoError(t, s.Check())
}

func TestUpdateInstanceInfo(t *testing.T) {
	s := newSession(t, Options{})
	e, err := s.AddService("6", 1)
	require.NoError(t, err)
	inst := e.Instances[0].ID

	require.NoError(t, s.UpdateInstanceInfo("6", inst, model.AdditionalInfo{"method": model.Text("lavado"), "sieve": model.Text("200")}))
	require.NoError(t, s.UpdateInstanceInfo("6", inst, model.AdditionalInfo{"sieve": nil}))

	got, _ := s.State().Selection("6")
	assert.Equal(t, model.AdditionalInfo{"method": model.Text("lavado")}, got.Instances[0].AdditionalInfo)

	assert.ErrorIs(t, s.UpdateInstanceInfo("6", "nope", model.AdditionalInfo{}), ErrUnknownInstance)
	assert.ErrorIs(t, s.UpdateInstanceInfo("9", inst, model.AdditionalInfo{}), ErrUnknownService)
}

func TestUpdateInstanceInfo_RejectsUndeclaredField(t *testing.T) {
	s := newSession(t, Options{})
	e, err := s.AddService("8", 1)
	require.NoError(t, err)
	inst := e.Instances[0].ID

	err = s.UpdateInstanceInfo("8", inst, model.AdditionalInfo{"bogus": model.Text("zzz")})
	require.ErrorIs(t, err, ErrUnknownField)
	assert.Contains(t, err.Error(), "bogus")

	// The whole patch is refused, declared keys included.
	err = s.UpdateInstanceInfo("8", inst, model.AdditionalInfo{"depth": model.Number(2), "bogus": model.Text("zzz")})
	require.ErrorIs(t, err, ErrUnknownField)
	got, _ := s.State().Selection("8")
	assert.Empty(t, got.Instances[0].AdditionalInfo)

	require.NoError(t, s.UpdateInstanceInfo("8", inst, model.AdditionalInfo{"depth": model.Number(2)}))
	got, _ = s.State().Selection("8")
	assert.Equal(t, model.AdditionalInfo{"depth": model.Number(2)}, got.Instances[0].AdditionalInfo)

	// Items without declared fields take any key.
	e, err = s.AddService("5", 1)
	require.NoError(t, err)
	require.NoError(t, s.UpdateInstanceInfo("5", e.Instances[0].ID, model.AdditionalInfo{"note": model.Text("x")}))
}

func TestReplaceInstances_RejectsUndeclaredField(t *testing.T) {
	s := newSession(t, Options{})
	e, err := s.AddService("8", 2)
	require.NoError(t, err)

	bad := []model.Instance{
		{ID: e.Instances[0].ID, AdditionalInfo: model.AdditionalInfo{"depth": model.Number(1)}},
		{ID: e.Instances[1].ID, AdditionalInfo: model.AdditionalInfo{"bogus": model.Text("zzz")}},
	}
	require.ErrorIs(t, s.ReplaceInstances("8", bad), ErrUnknownField)

	got, _ := s.State().Selection("8")
	assert.Equal(t, 2, got.Quantity)
	for _, in := range got.Instances {
		assert.Empty(t, in.AdditionalInfo)
	}
}

func TestReplaceInstances(t *testing.T) {
	s := newSession(t, Options{})
	e, err := s.AddService("5", 3)
	require.NoError(t, err)

	// Drop the middle instance.
	kept := []model.Instance{e.Instances[0], e.Instances[2]}
	require.NoError(t, s.ReplaceInstances("5", kept))

	got, _ := s.State().Selection("5")
	assert.Equal(t, 2, got.Quantity)
	assert.Equal(t, e.Instances[2].ID, got.Instances[1].ID)
	require.NoError(t, s.Check())
}

func TestRemoveThenMergeDoesNotResurrect(t *testing.T) {
	s := newSession(t, Options{})
	s.Import("request-10", []model.SelectionEntry{entry("5"), entry("6")}, merge.ModeReplace)

	assert.True(t, s.RemoveService("5"))
	assert.True(t, s.Removed().Has("5"))

	res := s.Import("request-10", []model.SelectionEntry{entry("5"), entry("6"), entry("7")}, merge.ModeMerge)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 2, res.Skipped)
	assert.False(t, res.SourceChanged)
	assert.Equal(t, []model.ID{"6", "7"}, ids(s.State().Selections))
}

func TestSwitchingSourceForgetsRemovals(t *testing.T) {
	s := newSession(t, Options{})
	s.Import("request-10", []model.SelectionEntry{entry("5")}, merge.ModeReplace)
	s.RemoveService("5")

	res := s.Import("request-11", []model.SelectionEntry{entry("5")}, merge.ModeMerge)
	assert.True(t, res.SourceChanged)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, []model.ID{"5"}, ids(s.State().Selections))
}

func TestImport_MergeWithNothingNewDoesNotDispatch(t *testing.T) {
	e := engine.New(engine.WithIDGenerator(instance.NewSequenceGenerator("inst")))
	s := newSession(t, Options{Engine: e})
	s.Import("r", []model.SelectionEntry{entry("5")}, merge.ModeReplace)
	gen := e.Generation()

	res := s.Import("r", []model.SelectionEntry{entry("5")}, merge.ModeMerge)
	assert.Equal(t, 0, res.Added)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, gen, e.Generation())
}

func TestImport_ReplaceNormalizes(t *testing.T) {
	s := newSession(t, Options{})
	bad := entry("5")
	bad.Quantity = 2
	bad.Instances = []model.Instance{{ID: "only", AdditionalInfo: model.AdditionalInfo{"x": nil}}}

	res := s.Import("r", []model.SelectionEntry{bad, entry("5")}, merge.ModeReplace)
	assert.Equal(t, 1, res.Added, "duplicate ids collapse")
	require.NoError(t, s.Check())
}

func TestRestoreAndResetThroughGateway(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "compose.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	g, err := persist.New(st, persist.WithDelay(time.Hour))
	require.NoError(t, err)
	s := newSession(t, Options{Gateway: g})
	s.SetProfile(model.ProfilePatch{Name: ptr("Ana")})
	_, err = s.AddService("5", 2)
	require.NoError(t, err)
	require.NoError(t, s.Close(context.Background()))

	// A new process restores the composition.
	g2, err := persist.New(st, persist.WithDelay(time.Hour))
	require.NoError(t, err)
	s2 := newSession(t, Options{Gateway: g2})
	require.True(t, s2.Restore(context.Background()))
	assert.Equal(t, "Ana", s2.State().ClientProfile.Name)
	assert.Len(t, s2.State().Selections, 1)

	s2.Reset()
	_, err = st.LoadSnapshot(context.Background(), persist.DefaultKey)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSubmit(t *testing.T) {
	s := newSession(t, Options{})
	_, err := s.Submit(context.Background())
	assert.ErrorIs(t, err, ErrNoPipeline)

	e := engine.New(engine.WithIDGenerator(instance.NewSequenceGenerator("inst")))
	q := testutil.NewMemQueue()
	p := submit.New(submit.Config{
		Composer:     e,
		Sender:       testutil.NewSender("http://api/service-requests"),
		Connectivity: transport.Static(false),
		Queue:        q,
	})
	s = newSession(t, Options{Engine: e, Pipeline: p})
	s.Import("request-9", nil, merge.ModeMerge)
	s.RemoveService("6")
	_, err = s.AddService("5", 2)
	require.NoError(t, err)

	res, err := s.Submit(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, submit.QueuedOffline, res.Outcome)
	assert.Empty(t, s.State().Selections)
	n, _ := q.QueueLen(context.Background())
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, s.Removed().Len(), "removals end with the composition")
}

func TestRemovals_EncodeLoad(t *testing.T) {
	s := newSession(t, Options{})
	s.Import("request-3", nil, merge.ModeMerge)
	s.RemoveService("5")
	s.RemoveService("7")

	data, err := s.EncodeRemovals()
	require.NoError(t, err)

	other := newSession(t, Options{})
	require.NoError(t, other.LoadRemovals(data))
	assert.Equal(t, "request-3", other.Removed().Source())
	assert.Equal(t, []model.ID{"5", "7"}, other.Removed().IDs())

	require.Error(t, other.LoadRemovals([]byte("nope")))
}

func TestDecodeRecord(t *testing.T) {
	rec, err := DecodeRecord(strings.NewReader(`{"source":"request-8","selections":[{"id":5,"item":{"id":5,"code":"SR-05","name":"Humedad"},"quantity":1,"instances":[]}]}`))
	require.NoError(t, err)
	assert.Equal(t, "request-8", rec.Source)
	require.Len(t, rec.Selections, 1)
	assert.Equal(t, model.ID("5"), rec.Selections[0].ID)

	rec, err = DecodeRecord(strings.NewReader(`[{"id":"6","item":{"id":"6","code":"SR-06","name":"x"},"quantity":2}]`))
	require.NoError(t, err)
	assert.Empty(t, rec.Source)
	assert.Len(t, rec.Selections, 1)

	_, err = DecodeRecord(strings.NewReader(`  `))
	require.Error(t, err)
	_, err = DecodeRecord(strings.NewReader(`[{"quantity":1}]`))
	require.Error(t, err)
}

func ptr[T any](v T) *T { return &v }

func TestResetForgetsRemovals(t *testing.T) {
	s := newSession(t, Options{})
	s.Import("req-1", nil, merge.ModeMerge)
	_, err := s.AddService("5", 1)
	require.NoError(t, err)
	s.RemoveService("5")
	require.Equal(t, 1, s.Removed().Len())

	s.Reset()

	assert.Equal(t, 0, s.Removed().Len())
	assert.Empty(t, s.Removed().Source())
	assert.Empty(t, s.State().Selections)
}
