package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/merge"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/session"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Replace bool
	Source  string
}

// ImportView is the output of import.
type ImportView struct {
	Source        string    `json:"source"`
	Mode          string    `json:"mode"`
	Added         int       `json:"added"`
	Skipped       int       `json:"skipped"`
	SourceChanged bool      `json:"sourceChanged"`
	Composition   StateView `json:"composition"`
}

func (v ImportView) String() string {
	return fmt.Sprintf("Imported from %s (%s): %d added, %d skipped\n%s",
		v.Source, v.Mode, v.Added, v.Skipped, v.Composition)
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <record.json>",
		Short: "Import selections from a stored request",
		Long: `Import selections from a stored request record.

The record is a JSON object {"source": "...", "selections": [...]} or a
bare selection array. By default new selections are merged in: entries
already selected, or removed by the user since the source was first
imported, are skipped. --replace discards the current selections, as
when a stored request is first opened for editing.

Importing from a different source forgets earlier removals.

Examples:
  compose import request-42.json --source 42 --replace
  compose import request-42.json --source 42`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Replace, "replace", false, "replace current selections instead of merging")
	cmd.Flags().StringVar(&opts.Source, "source", "", "source record id (overrides the record's own)")

	return cmd
}

func runImport(opts *ImportOptions, path string, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)

	f, err := os.Open(path)
	if err != nil {
		return fail(out, ErrCodeNotFound, ExitCommandError, "failed to open record", err)
	}
	rec, err := session.DecodeRecord(f)
	f.Close()
	if err != nil {
		return fail(out, ErrCodeInput, ExitCommandError, "invalid record", err)
	}

	source := rec.Source
	if opts.Source != "" {
		source = opts.Source
	}
	if source == "" {
		return fail(out, ErrCodeInput, ExitCommandError, "record has no source; pass --source", nil)
	}
	mode := merge.ModeMerge
	if opts.Replace {
		mode = merge.ModeReplace
	}

	return withApp(opts.RootOptions, cmd, appOptions{}, func(_ context.Context, a *app) error {
		res := a.session.Import(source, rec.Selections, mode)
		return a.out.Success(ImportView{
			Source:        source,
			Mode:          string(mode),
			Added:         res.Added,
			Skipped:       res.Skipped,
			SourceChanged: res.SourceChanged,
			Composition:   a.stateView(),
		})
	})
}
