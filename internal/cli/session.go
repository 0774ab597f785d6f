package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/catalog"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/model"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/validate"
)

// StateView is the output of session show and of commands that change
// the composition.
type StateView struct {
	State   model.CompositionState `json:"state"`
	Removed []model.ID             `json:"removed,omitempty"`
	Source  string                 `json:"source,omitempty"`
}

func (v StateView) String() string {
	var b strings.Builder
	p := v.State.ClientProfile
	fmt.Fprintf(&b, "Client: %s (%s)\n", orDash(p.Name), orDash(p.Email))
	fmt.Fprintf(&b, "Project: %s, %s\n", orDash(p.NameProject), orDash(p.Location))
	if len(v.State.Selections) == 0 {
		b.WriteString("No services selected.")
		return b.String()
	}
	fmt.Fprintf(&b, "Services (%d):\n", len(v.State.Selections))
	for _, e := range v.State.Selections {
		fmt.Fprintf(&b, "  %s  %s  x%d\n", e.ID, e.Item.Name, e.Quantity)
		for i, in := range e.Instances {
			fmt.Fprintf(&b, "    #%d %s %s\n", i+1, in.ID, renderInfo(e.Item, in.AdditionalInfo))
		}
	}
	if len(v.Removed) > 0 {
		fmt.Fprintf(&b, "Removed from %s: %v\n", orDash(v.Source), v.Removed)
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderInfo lists answers in schema order and marks visible required
// fields that are still unanswered.
func renderInfo(item model.ServiceCatalogItem, info model.AdditionalInfo) string {
	var parts []string
	for _, k := range info.Keys() {
		parts = append(parts, fmt.Sprintf("%s=%s", k, model.Render(info[k])))
	}
	for _, f := range catalog.VisibleFields(item, info) {
		if _, ok := info[f.Field]; !ok && f.Required {
			parts = append(parts, f.Field+"=?")
		}
	}
	if len(parts) == 0 {
		return "{}"
	}
	return "{" + strings.Join(parts, " ") + "}"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func (a *app) stateView() StateView {
	rs := a.session.Removed()
	return StateView{State: a.session.State(), Removed: rs.IDs(), Source: rs.Source()}
}

// CheckView is the output of session check.
type CheckView struct {
	Invariants string             `json:"invariants"`
	Warnings   []validate.Warning `json:"warnings"`
}

func (v CheckView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Invariants: %s\n", v.Invariants)
	if len(v.Warnings) == 0 {
		b.WriteString("No warnings.")
		return b.String()
	}
	fmt.Fprintf(&b, "Warnings (%d):\n", len(v.Warnings))
	for _, w := range v.Warnings {
		fmt.Fprintf(&b, "  %s\n", w)
	}
	return strings.TrimRight(b.String(), "\n")
}

// NewSessionCommand creates the session command group.
func NewSessionCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Show, check, reset or edit the saved composition",
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "show",
		Short:         "Show the saved composition",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, appOptions{}, func(_ context.Context, a *app) error {
				return a.out.Success(a.stateView())
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Check invariants and list advisory warnings",
		Long: `Check the composition invariants and run the advisory validation.

Exit codes:
  0 - Invariants hold (warnings never fail the check)
  1 - An invariant is violated`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, appOptions{}, func(_ context.Context, a *app) error {
				report := validate.New().Check(a.session.State())
				view := CheckView{Invariants: "ok", Warnings: report.Warnings}
				if view.Warnings == nil {
					view.Warnings = []validate.Warning{}
				}
				if err := a.session.Check(); err != nil {
					view.Invariants = err.Error()
					if a.out.Format == "json" {
						_ = a.out.Error(ErrCodeInvariant, "composition invariant violated", view)
					} else {
						_ = a.out.Success(view)
					}
					return WrapExitError(ExitFailure, "composition invariant violated", err)
				}
				return a.out.Success(view)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "reset",
		Short:         "Discard the composition and its snapshot",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, appOptions{}, func(_ context.Context, a *app) error {
				a.session.Reset()
				return a.out.Success(a.stateView())
			})
		},
	})

	cmd.AddCommand(newProfileCommand(rootOpts))
	return cmd
}

// profileFlags maps flag names to ProfilePatch fields.
var profileFlags = []struct {
	name  string
	usage string
	field func(*model.ProfilePatch) **string
}{
	{"name", "client name", func(p *model.ProfilePatch) **string { return &p.Name }},
	{"project", "project name", func(p *model.ProfilePatch) **string { return &p.NameProject }},
	{"location", "project location", func(p *model.ProfilePatch) **string { return &p.Location }},
	{"identification", "client identification number", func(p *model.ProfilePatch) **string { return &p.Identification }},
	{"phone", "contact phone", func(p *model.ProfilePatch) **string { return &p.Phone }},
	{"email", "contact email", func(p *model.ProfilePatch) **string { return &p.Email }},
	{"description", "request description", func(p *model.ProfilePatch) **string { return &p.Description }},
	{"status", "request status", func(p *model.ProfilePatch) **string { return &p.Status }},
}

func newProfileCommand(rootOpts *RootOptions) *cobra.Command {
	values := make(map[string]*string, len(profileFlags))

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Update client profile fields",
		Long: `Update client profile fields. Only the flags given are changed.

Example:
  compose session profile --name "Ana Pérez" --email ana@example.com`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch model.ProfilePatch
			changed := 0
			for _, pf := range profileFlags {
				if cmd.Flags().Changed(pf.name) {
					v := *values[pf.name]
					*pf.field(&patch) = &v
					changed++
				}
			}
			if changed == 0 {
				return NewExitError(ExitCommandError, "no profile flags given")
			}
			return withApp(rootOpts, cmd, appOptions{}, func(_ context.Context, a *app) error {
				a.session.SetProfile(patch)
				return a.out.Success(a.stateView())
			})
		},
	}

	for _, pf := range profileFlags {
		values[pf.name] = cmd.Flags().String(pf.name, "", pf.usage)
	}
	return cmd
}
