package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/model"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/validate"
)

// SubmitOptions holds flags for the submit command.
type SubmitOptions struct {
	*RootOptions
	Offline bool
}

// SubmitView is the output of submit.
type SubmitView struct {
	Outcome   string             `json:"outcome"`
	Success   bool               `json:"success"`
	Delivered bool               `json:"delivered"`
	Message   string             `json:"message,omitempty"`
	RequestID model.ID           `json:"requestId,omitempty"`
	QueueID   string             `json:"queueId,omitempty"`
	Cause     string             `json:"cause,omitempty"`
	Warnings  []validate.Warning `json:"warnings,omitempty"`
}

func (v SubmitView) String() string {
	var b strings.Builder
	switch {
	case v.Delivered:
		fmt.Fprintf(&b, "✓ Request submitted")
		if v.RequestID != "" {
			fmt.Fprintf(&b, " (id %s)", v.RequestID)
		}
	case v.QueueID != "":
		fmt.Fprintf(&b, "✓ Request queued offline (entry %s)", v.QueueID)
	default:
		b.WriteString("✓ Request recorded with warnings")
	}
	if v.Message != "" {
		fmt.Fprintf(&b, "\n  %s", v.Message)
	}
	if v.Cause != "" {
		fmt.Fprintf(&b, "\n  cause: %s", v.Cause)
	}
	for _, w := range v.Warnings {
		fmt.Fprintf(&b, "\n  warning: %s", w)
	}
	return b.String()
}

// NewSubmitCommand creates the submit command.
func NewSubmitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SubmitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit the composition",
		Long: `Submit the composition to the API.

Validation is advisory: warnings are listed but never stop the request.
When the API is unreachable (or with --offline) the request is saved to
the local queue and sent later by "compose queue drain". A request the
server rejects is reported as recorded with warnings and the composition
is kept for correction.

The command exits 0 for every outcome.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, appOptions{offline: opts.Offline}, func(ctx context.Context, a *app) error {
				res, err := a.session.Submit(ctx)
				if err != nil {
					return fail(a.out, ErrCodeGeneric, ExitCommandError, "submit failed", err)
				}
				view := SubmitView{
					Outcome:   res.Outcome.String(),
					Success:   res.Success,
					Delivered: res.Delivered,
					Message:   res.Message,
					RequestID: res.RequestID,
					QueueID:   res.QueueID,
					Warnings:  res.Warnings,
				}
				if res.Cause != nil {
					view.Cause = res.Cause.Error()
				}
				return a.out.Success(view)
			})
		},
	}

	cmd.Flags().BoolVar(&opts.Offline, "offline", false, "queue the request without trying the API")

	return cmd
}
