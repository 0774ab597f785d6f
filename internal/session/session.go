// Package session is the facade UI handlers and the CLI drive. It owns
// the engine, the persistence binding, the removal set and the
// submission pipeline for one composition.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/catalog"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/engine"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/instance"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/merge"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/model"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/persist"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/submit"
)

var (
	// ErrUnknownService is returned for a service id that is not selected.
	ErrUnknownService = errors.New("service not selected")
	// ErrUnknownInstance is returned for an instance id the service lacks.
	ErrUnknownInstance = errors.New("instance not found")
	// ErrNoCatalog is returned by AddService when no catalog is loaded.
	ErrNoCatalog = errors.New("no catalog loaded")
	// ErrNoPipeline is returned by Submit when no pipeline is configured.
	ErrNoPipeline = errors.New("no submission pipeline configured")
	// ErrUnknownField is returned for an answer under a key the item
	// does not declare.
	ErrUnknownField = errors.New("field not declared by service")
)

// Options wires a Session. Engine is required; the rest are optional.
type Options struct {
	Engine   *engine.Engine
	Gateway  *persist.Gateway
	Catalog  *catalog.Catalog
	Pipeline *submit.Pipeline
	Removed  *merge.RemovalSet
	Logger   *slog.Logger
}

// Session is one in-progress composition.
type Session struct {
	engine   *engine.Engine
	gateway  *persist.Gateway
	catalog  *catalog.Catalog
	pipeline *submit.Pipeline
	removed  *merge.RemovalSet
	logger   *slog.Logger
	unbind   func()
}

// New creates a session and binds the gateway, if any, to the engine.
func New(opts Options) *Session {
	s := &Session{
		engine:   opts.Engine,
		gateway:  opts.Gateway,
		catalog:  opts.Catalog,
		pipeline: opts.Pipeline,
		removed:  opts.Removed,
		logger:   opts.Logger,
		unbind:   func() {},
	}
	if s.removed == nil {
		s.removed = merge.NewRemovalSet()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.gateway != nil {
		s.unbind = persist.Bind(s.engine, s.gateway)
	}
	return s
}

// Restore replays the stored snapshot, if any.
func (s *Session) Restore(ctx context.Context) bool {
	if s.gateway == nil {
		return false
	}
	return persist.RestoreInto(ctx, s.engine, s.gateway)
}

// Close writes any pending snapshot and detaches the gateway.
func (s *Session) Close(ctx context.Context) error {
	s.unbind()
	if s.gateway == nil {
		return nil
	}
	return s.gateway.Flush(ctx)
}

// State returns a copy of the current composition.
func (s *Session) State() model.CompositionState {
	return s.engine.State()
}

// Catalog returns the loaded catalog, or nil.
func (s *Session) Catalog() *catalog.Catalog {
	return s.catalog
}

// Removed returns the removal set.
func (s *Session) Removed() *merge.RemovalSet {
	return s.removed
}

// Check verifies the composition invariants.
func (s *Session) Check() error {
	return instance.CheckState(s.engine.State())
}

// SetProfile merges patch into the client profile.
func (s *Session) SetProfile(patch model.ProfilePatch) {
	s.engine.Dispatch(engine.SetClientProfile{Patch: patch})
}

// SetFormValidity records the UI's form validity flag.
func (s *Session) SetFormValidity(valid bool) {
	s.engine.Dispatch(engine.SetFormValidity{Valid: valid})
}

// AddService selects a catalog item. Selecting an already selected item
// changes nothing.
func (s *Session) AddService(id model.ID, quantity int) (model.SelectionEntry, error) {
	if s.catalog == nil {
		return model.SelectionEntry{}, ErrNoCatalog
	}
	entry, err := s.catalog.NewSelection(id, quantity)
	if err != nil {
		return model.SelectionEntry{}, err
	}
	return s.AddEntry(entry), nil
}

// AddEntry selects a prebuilt entry and returns it as stored.
func (s *Session) AddEntry(e model.SelectionEntry) model.SelectionEntry {
	st := s.engine.Dispatch(engine.AddSelection{Entry: e})
	stored, _ := st.Selection(e.ID)
	return stored
}

// SetQuantity resizes a selection, keeping the leading instances.
func (s *Session) SetQuantity(serviceID model.ID, quantity int) (model.SelectionEntry, error) {
	entry, ok := s.engine.State().Selection(serviceID)
	if !ok {
		return model.SelectionEntry{}, fmt.Errorf("%w: %s", ErrUnknownService, serviceID)
	}
	q := instance.Clamp(quantity)
	st := s.engine.Dispatch(engine.UpdateAdditionalInfo{
		ServiceID:   serviceID,
		Instances:   entry.Instances,
		NewQuantity: &q,
	})
	entry, _ = st.Selection(serviceID)
	return entry, nil
}

// UpdateInstanceInfo patches one instance's answers. A nil value in info
// removes that answer. Keys the item does not declare are rejected.
func (s *Session) UpdateInstanceInfo(serviceID model.ID, instanceID string, info model.AdditionalInfo) error {
	entry, ok := s.engine.State().Selection(serviceID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownService, serviceID)
	}
	if entry.InstanceIndex(instanceID) < 0 {
		return fmt.Errorf("%w: %s/%s", ErrUnknownInstance, serviceID, instanceID)
	}
	if err := checkDeclared(entry.Item, info); err != nil {
		return err
	}
	s.engine.Dispatch(engine.UpdateAdditionalInfo{
		ServiceID:  serviceID,
		InstanceID: instanceID,
		Info:       info,
	})
	return nil
}

// ReplaceInstances rewrites a selection's whole instance list, e.g. after
// the UI deleted one instance in the middle.
func (s *Session) ReplaceInstances(serviceID model.ID, instances []model.Instance) error {
	entry, ok := s.engine.State().Selection(serviceID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownService, serviceID)
	}
	for _, in := range instances {
		if err := checkDeclared(entry.Item, in.AdditionalInfo); err != nil {
			return fmt.Errorf("instance %s: %w", in.ID, err)
		}
	}
	if instances == nil {
		instances = []model.Instance{}
	}
	s.engine.Dispatch(engine.UpdateAdditionalInfo{ServiceID: serviceID, Instances: instances})
	return nil
}

func checkDeclared(item model.ServiceCatalogItem, info model.AdditionalInfo) error {
	if keys := catalog.UndeclaredKeys(item, info); len(keys) > 0 {
		return fmt.Errorf("%w: %s %s", ErrUnknownField, item.ID, strings.Join(keys, ", "))
	}
	return nil
}

// RemoveService deselects a service. The id is recorded in the removal
// set before the entry is dropped so a later merge cannot bring it back.
func (s *Session) RemoveService(id model.ID) bool {
	entry, ok := s.engine.State().Selection(id)
	s.removed.Add(id)
	if ok && entry.Item.ID != "" && entry.Item.ID != id {
		s.removed.Add(entry.Item.ID)
	}
	s.engine.Dispatch(engine.RemoveSelection{ID: id})
	return ok
}

// ImportResult reports what an import changed.
type ImportResult struct {
	Added         int
	Skipped       int
	SourceChanged bool
}

// Import brings selections from a stored source record into the
// composition. Switching to a different source forgets earlier removals.
// ModeReplace discards current selections; ModeMerge appends entries that
// are neither present nor removed.
func (s *Session) Import(source string, incoming []model.SelectionEntry, mode merge.Mode) ImportResult {
	var res ImportResult
	res.SourceChanged = s.removed.SwitchSource(source)

	current := s.engine.State().Selections
	merged := merge.Merge(current, incoming, s.removed, mode)
	if mode == merge.ModeReplace || len(merged) != len(current) {
		st := s.engine.Dispatch(engine.ReplaceSelections{Selections: merged})
		if mode == merge.ModeReplace {
			res.Added = len(st.Selections)
		} else {
			res.Added = len(st.Selections) - len(current)
		}
	}
	res.Skipped = len(incoming) - res.Added
	if res.Skipped < 0 {
		res.Skipped = 0
	}
	s.logger.Info("selections imported",
		"source", source,
		"mode", string(mode),
		"added", res.Added,
		"skipped", res.Skipped,
		"source_changed", res.SourceChanged)
	return res
}

// Reset discards the composition and its snapshot. The removal set is
// unbound from its source since nothing is being edited any more.
func (s *Session) Reset() {
	s.forgetRemovals()
	s.engine.Dispatch(engine.Reset{})
}

// Submit runs the submission pipeline. When the request left the user's
// hands the composition was reset, so the removal set is dropped too.
func (s *Session) Submit(ctx context.Context) (submit.Result, error) {
	if s.pipeline == nil {
		return submit.Result{}, ErrNoPipeline
	}
	res := s.pipeline.Submit(ctx)
	if res.Outcome == submit.Succeeded || res.Outcome == submit.QueuedOffline {
		s.forgetRemovals()
	}
	return res, nil
}

func (s *Session) forgetRemovals() {
	s.removed.SwitchSource("")
	s.removed.Clear()
}
