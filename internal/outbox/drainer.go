// Package outbox replays submissions recorded while offline.
//
// Delivery is at-least-once: an entry is deleted only after the server
// accepted it, so a crash between acceptance and delete replays it. No
// duplicate detection is attempted.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/metrics"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/model"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/store"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/transport"
)

// DefaultRate paces replays at two requests per second.
const DefaultRate = rate.Limit(2)

// Queue is the durable offline queue.
type Queue interface {
	ListQueueEntries(ctx context.Context) ([]model.OfflineQueueEntry, error)
	DeleteQueueEntry(ctx context.Context, id string) error
	RecordAttempt(ctx context.Context, id string) error
	QueueLen(ctx context.Context) (int, error)
}

// Sender delivers a recorded request.
type Sender interface {
	Send(ctx context.Context, method, url string, body []byte) (*transport.SubmitResponse, error)
}

// Failure is an entry that was not delivered.
type Failure struct {
	ID  string
	Err error
}

// Report summarizes one drain pass.
type Report struct {
	Delivered []string
	Failed    []Failure
	// Skipped entries reached the attempt limit and were not tried.
	Skipped   []string
	Remaining int
}

// Drainer replays queued entries oldest first.
type Drainer struct {
	queue       Queue
	sender      Sender
	limiter     *rate.Limiter
	metrics     *metrics.Collector
	logger      *slog.Logger
	maxAttempts int
}

// Option configures a Drainer.
type Option func(*Drainer)

// WithRate sets the replay pace.
func WithRate(r rate.Limit, burst int) Option {
	return func(d *Drainer) { d.limiter = rate.NewLimiter(r, burst) }
}

// WithMetrics records replay results and queue depth.
func WithMetrics(m *metrics.Collector) Option {
	return func(d *Drainer) { d.metrics = m }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Drainer) { d.logger = l }
}

// WithMaxAttempts skips entries that already failed n times. Zero means
// no limit.
func WithMaxAttempts(n int) Option {
	return func(d *Drainer) { d.maxAttempts = n }
}

// New creates a drainer.
func New(q Queue, s Sender, opts ...Option) *Drainer {
	d := &Drainer{
		queue:   q,
		sender:  s,
		limiter: rate.NewLimiter(DefaultRate, 1),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Drain makes one pass over the queue. A rejection by the server keeps
// the entry and moves on; a transport failure means the API is not
// reachable, so the pass stops there. The returned error is non-nil only
// when the queue itself failed or ctx ended.
func (d *Drainer) Drain(ctx context.Context) (Report, error) {
	var rep Report

	entries, err := d.queue.ListQueueEntries(ctx)
	if err != nil {
		return rep, fmt.Errorf("list offline queue: %w", err)
	}

	for _, e := range entries {
		if d.maxAttempts > 0 && e.Attempts >= d.maxAttempts {
			rep.Skipped = append(rep.Skipped, e.ID)
			continue
		}
		if err := d.limiter.Wait(ctx); err != nil {
			return d.finish(ctx, rep), err
		}

		_, sendErr := d.sender.Send(ctx, e.Method, e.URL, e.Payload)
		d.metrics.RecordReplay(sendErr)
		if sendErr == nil {
			if err := d.queue.DeleteQueueEntry(ctx, e.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
				return d.finish(ctx, rep), fmt.Errorf("delete delivered entry %s: %w", e.ID, err)
			}
			rep.Delivered = append(rep.Delivered, e.ID)
			d.logger.Info("offline entry delivered", "id", e.ID, "queued_at", e.Timestamp)
			continue
		}

		if err := d.queue.RecordAttempt(ctx, e.ID); err != nil {
			d.logger.Warn("record attempt failed", "id", e.ID, "error", err)
		}
		rep.Failed = append(rep.Failed, Failure{ID: e.ID, Err: sendErr})
		d.logger.Warn("offline entry not delivered", "id", e.ID, "attempts", e.Attempts+1, "error", sendErr)

		if !transport.IsFieldRejected(sendErr) && !transport.IsStatus(sendErr) {
			if ctx.Err() != nil {
				return d.finish(ctx, rep), ctx.Err()
			}
			break
		}
	}
	return d.finish(ctx, rep), nil
}

func (d *Drainer) finish(ctx context.Context, rep Report) Report {
	n, err := d.queue.QueueLen(context.WithoutCancel(ctx))
	if err != nil {
		d.logger.Warn("queue length unavailable", "error", err)
		return rep
	}
	rep.Remaining = n
	d.metrics.SetQueueDepth(n)
	return rep
}
