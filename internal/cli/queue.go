package cli

import (
	"context"
	"fmt"
	"maps"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/model"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/outbox"
)

// QueueEntryView is one queued request.
type QueueEntryView struct {
	ID        string    `json:"id"`
	Method    string    `json:"method"`
	URL       string    `json:"url"`
	Timestamp time.Time `json:"timestamp"`
	Attempts  int       `json:"attempts"`
	Bytes     int       `json:"bytes"`
}

// QueueListView is the output of queue list.
type QueueListView struct {
	Entries []QueueEntryView `json:"entries"`
}

func (v QueueListView) String() string {
	if len(v.Entries) == 0 {
		return "Offline queue is empty."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Offline queue (%d):\n", len(v.Entries))
	for _, e := range v.Entries {
		fmt.Fprintf(&b, "  %s  %s %s  %s  attempts=%d\n",
			e.ID, e.Method, e.URL, e.Timestamp.Format(time.RFC3339), e.Attempts)
	}
	return strings.TrimRight(b.String(), "\n")
}

func newQueueEntryView(e model.OfflineQueueEntry) QueueEntryView {
	return QueueEntryView{
		ID:        e.ID,
		Method:    e.Method,
		URL:       e.URL,
		Timestamp: e.Timestamp,
		Attempts:  e.Attempts,
		Bytes:     len(e.Payload),
	}
}

// DrainView is the output of queue drain.
type DrainView struct {
	Delivered []string          `json:"delivered"`
	Failed    map[string]string `json:"failed,omitempty"`
	Skipped   []string          `json:"skipped,omitempty"`
	Remaining int               `json:"remaining"`
}

func newDrainView(rep outbox.Report) DrainView {
	v := DrainView{Delivered: rep.Delivered, Skipped: rep.Skipped, Remaining: rep.Remaining}
	if v.Delivered == nil {
		v.Delivered = []string{}
	}
	if len(rep.Failed) > 0 {
		v.Failed = make(map[string]string, len(rep.Failed))
		for _, f := range rep.Failed {
			v.Failed[f.ID] = f.Err.Error()
		}
	}
	return v
}

func (v DrainView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Delivered %d, failed %d, skipped %d, remaining %d",
		len(v.Delivered), len(v.Failed), len(v.Skipped), v.Remaining)
	for _, id := range slices.Sorted(maps.Keys(v.Failed)) {
		fmt.Fprintf(&b, "\n  ✗ %s: %s", id, v.Failed[id])
	}
	return b.String()
}

// QueueDrainOptions holds flags for queue drain.
type QueueDrainOptions struct {
	*RootOptions
	Watch    bool
	Interval time.Duration
}

// NewQueueCommand creates the queue command group.
func NewQueueCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and replay requests saved while offline",
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "List queued requests, oldest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, appOptions{}, func(ctx context.Context, a *app) error {
				entries, err := a.store.ListQueueEntries(ctx)
				if err != nil {
					return fail(a.out, ErrCodeStore, ExitCommandError, "failed to list queue", err)
				}
				view := QueueListView{Entries: make([]QueueEntryView, len(entries))}
				for i, e := range entries {
					view.Entries[i] = newQueueEntryView(e)
				}
				return a.out.Success(view)
			})
		},
	})

	cmd.AddCommand(newQueueDrainCommand(rootOpts))
	return cmd
}

func newQueueDrainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueueDrainOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Send queued requests to the API",
		Long: `Send queued requests oldest first, paced by the drain_rate setting.

Delivered entries are removed. A request the server rejects stays in the
queue and the pass moves on; an unreachable API ends the pass. With
--watch the pass repeats every --interval until interrupted.

Exit codes:
  0 - The queue is empty after the pass
  1 - Entries remain in the queue
  2 - Command error (store not openable, etc.)`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, appOptions{}, func(ctx context.Context, a *app) error {
				return runDrain(ctx, opts, a)
			})
		},
	}

	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "keep draining until interrupted")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 30*time.Second, "pause between passes with --watch")

	return cmd
}

func runDrain(parent context.Context, opts *QueueDrainOptions, a *app) error {
	d := outbox.New(a.store, a.client,
		outbox.WithRate(rate.Limit(a.cfg.DrainRate), 1),
		outbox.WithMaxAttempts(a.cfg.DrainMaxAttempts),
		outbox.WithMetrics(a.metrics),
		outbox.WithLogger(a.logger),
	)

	if !opts.Watch {
		rep, err := d.Drain(parent)
		if err != nil {
			return fail(a.out, ErrCodeQueueDrain, ExitCommandError, "drain failed", err)
		}
		if err := a.out.Success(newDrainView(rep)); err != nil {
			return err
		}
		if rep.Remaining > 0 {
			return NewExitError(ExitFailure, fmt.Sprintf("%d request(s) remain queued", rep.Remaining))
		}
		return nil
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			a.logger.Info("received signal, stopping drain", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()
	for {
		rep, err := d.Drain(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return fail(a.out, ErrCodeQueueDrain, ExitCommandError, "drain failed", err)
		}
		if len(rep.Delivered) > 0 || len(rep.Failed) > 0 {
			if err := a.out.Success(newDrainView(rep)); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
