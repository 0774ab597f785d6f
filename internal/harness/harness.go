package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/catalog"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/engine"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/instance"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/merge"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/model"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/persist"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/session"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/store"
)

// Harness executes one scenario. It owns the session under test and
// collects the engine actions each step applies.
type Harness struct {
	store   *store.Store
	gateway *persist.Gateway
	catalog *catalog.Catalog
	ids     *instance.SequenceGenerator
	logger  *slog.Logger

	engine  *engine.Engine
	session *session.Session
	unsub   func()
	applied []string
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory SQLite store. Snapshot
// writes are held until a reload step or the end of the run so the
// stored blob never depends on timer scheduling.
//
// A step that fails stops the run; assertions are only evaluated when
// every step succeeded.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	var cat *catalog.Catalog
	if scenario.Catalog != "" {
		cat, err = catalog.Load(scenario.Catalog)
		if err != nil {
			return nil, fmt.Errorf("failed to load catalog: %w", err)
		}
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gw, err := persist.New(st, persist.WithDelay(time.Hour), persist.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	h := &Harness{
		store:   st,
		gateway: gw,
		catalog: cat,
		ids:     instance.NewSequenceGenerator(scenario.IDPrefix),
		logger:  logger,
	}
	h.open()

	ctx := context.Background()
	result := NewResult()
	defer func() {
		h.unsub()
		_ = h.session.Close(ctx)
	}()

	for i, step := range scenario.Steps {
		if err := h.execute(ctx, step); err != nil {
			result.AddError(fmt.Sprintf("steps[%d] %s: %v", i, step.Action, err))
			result.State = h.session.State()
			return result, nil
		}
		result.AddTrace(step.Action, h.applied, len(h.session.State().Selections))
		h.applied = nil
	}

	result.State = h.session.State()
	for _, a := range scenario.Assertions {
		if err := evaluate(result.State, a); err != nil {
			result.AddError(err.Error())
		}
	}
	return result, nil
}

// open starts a fresh engine and session over the shared gateway. The
// removal set is new each time, as it is after a page reload.
func (h *Harness) open() {
	h.engine = engine.New(engine.WithIDGenerator(h.ids), engine.WithLogger(h.logger))
	h.unsub = h.engine.Subscribe(func(c engine.Change) {
		h.applied = append(h.applied, c.Action.Name())
	})
	h.session = session.New(session.Options{
		Engine:  h.engine,
		Gateway: h.gateway,
		Catalog: h.catalog,
		Logger:  h.logger,
	})
}

func (h *Harness) execute(ctx context.Context, st Step) error {
	s := h.session
	switch st.Action {
	case StepSetProfile:
		s.SetProfile(*st.Profile)

	case StepAdd:
		q := st.Quantity
		if q == 0 {
			q = 1
		}
		_, err := s.AddService(model.ID(st.Service), q)
		return err

	case StepSetQuantity:
		_, err := s.SetQuantity(model.ID(st.Service), st.Quantity)
		return err

	case StepPatchInfo:
		info, err := convertInfo(st.Info)
		if err != nil {
			return err
		}
		return s.UpdateInstanceInfo(model.ID(st.Service), st.Instance, info)

	case StepRemove:
		s.RemoveService(model.ID(st.Service))

	case StepImport:
		entries, err := h.buildEntries(st.Selections)
		if err != nil {
			return err
		}
		s.Import(st.Source, entries, merge.Mode(importMode(st.Mode)))

	case StepReset:
		s.Reset()

	case StepReload:
		return h.reload(ctx)

	default:
		return fmt.Errorf("unknown action %q", st.Action)
	}
	return nil
}

// reload flushes the pending snapshot, drops the session and restores the
// snapshot into a new one.
func (h *Harness) reload(ctx context.Context) error {
	h.unsub()
	if err := h.session.Close(ctx); err != nil {
		return fmt.Errorf("flush snapshot: %w", err)
	}
	h.open()
	h.session.Restore(ctx)
	return nil
}

func (h *Harness) buildEntries(in []ImportEntry) ([]model.SelectionEntry, error) {
	if h.catalog == nil {
		return nil, session.ErrNoCatalog
	}
	out := make([]model.SelectionEntry, 0, len(in))
	for _, ie := range in {
		entry, err := h.catalog.NewSelection(model.ID(ie.Item), ie.Quantity)
		if err != nil {
			return nil, err
		}
		if ie.ID != "" {
			entry.ID = model.ID(ie.ID)
		}
		for _, raw := range ie.Instances {
			info, err := convertInfo(raw)
			if err != nil {
				return nil, fmt.Errorf("selection %s: %w", entry.ID, err)
			}
			entry.Instances = append(entry.Instances, model.Instance{AdditionalInfo: info})
		}
		out = append(out, entry)
	}
	return out, nil
}

// convertInfo turns decoded YAML answers into typed values. A nil value
// is kept so that a patch can remove the key.
func convertInfo(raw map[string]any) (model.AdditionalInfo, error) {
	info := make(model.AdditionalInfo, len(raw))
	for k, v := range raw {
		iv, ok := model.InfoValueFrom(v)
		if !ok {
			return nil, fmt.Errorf("field %q: unsupported value %v", k, v)
		}
		info[k] = iv
	}
	return info, nil
}
