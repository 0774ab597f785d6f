// Package submit runs the validation and submission pipeline.
//
// The pipeline never leaves the user stuck. Validation only warns.
// Without connectivity the request goes to the offline queue and the
// submission is reported as successful. A field rejection or any
// unexpected failure is shown as a transient warning and still reported
// as successful. Result.Delivered tells callers what actually happened.
package submit

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/engine"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/metrics"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/model"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/transport"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/validate"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/wire"
)

// Messages reported for the synthetic outcomes.
const (
	MessageQueuedOffline = "No connection: the request was saved and will be sent when the connection returns"
	MessageFieldRejected = "The request was sent but the server rejected a field; staff will review it"
	MessageUnexpected    = "The request could not be confirmed; staff will review it"
)

// Composer is the state the pipeline reads and resets.
type Composer interface {
	State() model.CompositionState
	Dispatch(a engine.Action) model.CompositionState
}

// Sender delivers encoded payloads.
type Sender interface {
	Submit(ctx context.Context, body []byte) (*transport.SubmitResponse, error)
	SubmitURL() string
}

// Queue is the durable offline queue.
type Queue interface {
	AppendQueueEntry(ctx context.Context, e model.OfflineQueueEntry) error
	QueueLen(ctx context.Context) (int, error)
}

// SnapshotClearer deletes the persisted session snapshot.
type SnapshotClearer interface {
	Clear(ctx context.Context) error
}

// Result is what the pipeline reports. Success is the reported outcome
// and is always true; Delivered says whether the remote side accepted
// the request.
type Result struct {
	Success   bool
	Delivered bool
	Outcome   Phase
	Message   string
	RequestID model.ID
	// QueueID is the offline queue entry id for QueuedOffline.
	QueueID  string
	Warnings []validate.Warning
	// Cause is the swallowed error behind a soft success.
	Cause error
}

// Config wires a Pipeline.
type Config struct {
	Composer     Composer
	Sender       Sender
	Connectivity transport.Connectivity
	Queue        Queue
	// Snapshots is optional.
	Snapshots SnapshotClearer
	Validator *validate.Validator
	Strategy  wire.Strategy
	Notices   *Notices
	Metrics   *metrics.Collector
	Logger    *slog.Logger
	// OnPhase, if set, observes every phase change.
	OnPhase func(Phase)
	Now     func() time.Time
	NewID   func() string
}

// Pipeline submits the current composition.
//
// Thread-safety: Submit calls are serialized; Phase may be read from any
// goroutine.
type Pipeline struct {
	cfg Config

	runMu sync.Mutex

	phaseMu sync.Mutex
	phase   Phase
}

// New creates a pipeline. Composer, Sender, Connectivity and Queue are
// required.
func New(cfg Config) *Pipeline {
	if cfg.Validator == nil {
		cfg.Validator = validate.New()
	}
	if cfg.Strategy == "" {
		cfg.Strategy = wire.FirstInstance
	}
	if cfg.Notices == nil {
		cfg.Notices = NewNotices(DefaultNoticeTTL)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = func() string { return uuid.Must(uuid.NewV7()).String() }
	}
	return &Pipeline{cfg: cfg}
}

// Notices returns the warning holder.
func (p *Pipeline) Notices() *Notices {
	return p.cfg.Notices
}

// Phase returns the current phase.
func (p *Pipeline) Phase() Phase {
	p.phaseMu.Lock()
	defer p.phaseMu.Unlock()
	return p.phase
}

func (p *Pipeline) setPhase(ph Phase) {
	p.phaseMu.Lock()
	p.phase = ph
	p.phaseMu.Unlock()
	if p.cfg.OnPhase != nil {
		p.cfg.OnPhase(ph)
	}
}

// Validate runs the advisory checks. It always reports true; failures
// are posted as a warning notice and returned in the report.
func (p *Pipeline) Validate(s model.CompositionState) (bool, validate.Report) {
	report := p.cfg.Validator.Check(s)
	if !report.OK() {
		p.cfg.Notices.Warn(report.Summary())
		p.cfg.Logger.Info("validation warnings", "count", len(report.Warnings), "first", report.Warnings[0].String())
	}
	p.cfg.Composer.Dispatch(engine.SetFormValidity{Valid: report.OK()})
	return true, report
}

// Submit runs the pipeline to a terminal phase and returns to Idle.
func (p *Pipeline) Submit(ctx context.Context) (res Result) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	start := p.cfg.Now()
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("submission panicked: %v", r)
			res = p.softFailure(res.Warnings, err, MessageUnexpected)
		}
		p.cfg.Composer.Dispatch(engine.SetLoading{Loading: false})
		p.setPhase(res.Outcome)
		p.cfg.Metrics.RecordSubmission(res.Outcome.String(), p.cfg.Now().Sub(start))
		p.setPhase(Idle)
	}()

	p.setPhase(Validating)
	state := p.cfg.Composer.State()
	_, report := p.Validate(state)
	res.Warnings = report.Warnings

	p.setPhase(Submitting)
	p.cfg.Composer.Dispatch(engine.SetError{Message: ""})
	p.cfg.Composer.Dispatch(engine.SetLoading{Loading: true})

	payload := wire.Transform(state.ClientProfile, state.Selections, p.cfg.Strategy)
	body, err := wire.Encode(payload)
	if err != nil {
		return p.softFailure(report.Warnings, err, MessageUnexpected)
	}

	if !p.cfg.Connectivity.Online(ctx) {
		return p.enqueue(ctx, report.Warnings, body)
	}

	resp, err := p.cfg.Sender.Submit(ctx, body)
	if err != nil {
		msg := MessageUnexpected
		if transport.IsFieldRejected(err) {
			msg = MessageFieldRejected
		}
		return p.softFailure(report.Warnings, err, msg)
	}

	p.finish(ctx)
	p.cfg.Logger.Info("request submitted", "request_id", resp.RequestID, "services", len(payload.SelectedServices))
	return Result{
		Success:   true,
		Delivered: true,
		Outcome:   Succeeded,
		Message:   resp.Message,
		RequestID: resp.RequestID,
		Warnings:  report.Warnings,
	}
}

func (p *Pipeline) enqueue(ctx context.Context, warnings []validate.Warning, body []byte) Result {
	entry := model.OfflineQueueEntry{
		ID:        p.cfg.NewID(),
		URL:       p.cfg.Sender.SubmitURL(),
		Method:    http.MethodPost,
		Payload:   body,
		Timestamp: p.cfg.Now(),
	}
	if err := p.cfg.Queue.AppendQueueEntry(ctx, entry); err != nil {
		return p.softFailure(warnings, fmt.Errorf("enqueue offline request: %w", err), MessageUnexpected)
	}
	p.cfg.Metrics.RecordOfflineEnqueued()
	if n, err := p.cfg.Queue.QueueLen(ctx); err == nil {
		p.cfg.Metrics.SetQueueDepth(n)
	}

	p.finish(ctx)
	p.cfg.Logger.Info("request queued offline", "entry", entry.String(), "id", entry.ID)
	return Result{
		Success:  true,
		Outcome:  QueuedOffline,
		Message:  MessageQueuedOffline,
		QueueID:  entry.ID,
		Warnings: warnings,
	}
}

// finish resets the composition and drops the snapshot after the
// request left the user's hands.
func (p *Pipeline) finish(ctx context.Context) {
	p.cfg.Composer.Dispatch(engine.Reset{})
	if p.cfg.Snapshots == nil {
		return
	}
	if err := p.cfg.Snapshots.Clear(ctx); err != nil {
		p.cfg.Logger.Warn("snapshot clear after submit failed", "error", err)
	}
}

// softFailure reports success for a request that was not delivered. The
// composition and its snapshot are kept so nothing typed is lost.
func (p *Pipeline) softFailure(warnings []validate.Warning, cause error, msg string) Result {
	p.cfg.Logger.Warn("submission not delivered", "error", cause, "field_rejected", transport.IsFieldRejected(cause))
	p.cfg.Notices.Warn(msg)
	p.cfg.Composer.Dispatch(engine.SetError{Message: cause.Error()})
	return Result{
		Success:  true,
		Outcome:  SucceededWithWarnings,
		Message:  msg,
		Warnings: warnings,
		Cause:    cause,
	}
}
