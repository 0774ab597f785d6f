package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/model"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/session"
)

// NewSelectCommand creates the select command group.
func NewSelectCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "select",
		Short: "Add, remove, resize or answer selected services",
	}
	cmd.AddCommand(newSelectAddCommand(rootOpts))
	cmd.AddCommand(newSelectRemoveCommand(rootOpts))
	cmd.AddCommand(newSelectQuantityCommand(rootOpts))
	cmd.AddCommand(newSelectInfoCommand(rootOpts))
	return cmd
}

func newSelectAddCommand(rootOpts *RootOptions) *cobra.Command {
	var quantity int
	cmd := &cobra.Command{
		Use:   "add <service-id>",
		Short: "Select a catalog service",
		Long: `Select a catalog service with the given number of instances.
Selecting a service that is already selected changes nothing.

Example:
  compose select add 11 --quantity 3`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, appOptions{catalog: true}, func(_ context.Context, a *app) error {
				if _, err := a.session.AddService(model.ID(args[0]), quantity); err != nil {
					return fail(a.out, ErrCodeNotFound, ExitCommandError, "failed to add service", err)
				}
				return a.out.Success(a.stateView())
			})
		},
	}
	cmd.Flags().IntVarP(&quantity, "quantity", "q", 1, "number of instances")
	return cmd
}

func newSelectRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <service-id>",
		Short: "Deselect a service",
		Long: `Deselect a service. The service is remembered as removed, so
re-importing the same source record will not bring it back.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, appOptions{}, func(_ context.Context, a *app) error {
				if !a.session.RemoveService(model.ID(args[0])) {
					a.out.VerboseLog("service %s was not selected", args[0])
				}
				return a.out.Success(a.stateView())
			})
		},
	}
}

func newSelectQuantityCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "quantity <service-id> <n>",
		Short: "Resize a selection",
		Long: `Resize a selection. Growing appends empty instances; shrinking drops
instances from the end and keeps the answers of the rest. Values below 1
are raised to 1.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid quantity %q", args[1]))
			}
			return withApp(rootOpts, cmd, appOptions{}, func(_ context.Context, a *app) error {
				if _, err := a.session.SetQuantity(model.ID(args[0]), n); err != nil {
					return fail(a.out, ErrCodeNotFound, ExitCommandError, "failed to set quantity", err)
				}
				return a.out.Success(a.stateView())
			})
		},
	}
}

func newSelectInfoCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info <service-id> <instance> key=value...",
		Short: "Answer an instance's additional fields",
		Long: `Answer an instance's additional fields.

The instance is its id or its 1-based position. Values are read as JSON
when they parse (numbers, true/false, ["a","b"]) and as text otherwise.
An empty value removes the answer.

Example:
  compose select info 11 1 method=lavado sieve='#200'
  compose select info C-1 2 'ages=["7","28"]' depth=1.5 extra=`,
		Args:          cobra.MinimumNArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := parseAssignments(args[2:])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid answer", err)
			}
			return withApp(rootOpts, cmd, appOptions{}, func(_ context.Context, a *app) error {
				serviceID := model.ID(args[0])
				instanceID, err := resolveInstance(a.session.State(), serviceID, args[1])
				if err == nil {
					err = a.session.UpdateInstanceInfo(serviceID, instanceID, info)
				}
				if errors.Is(err, session.ErrUnknownField) {
					return fail(a.out, ErrCodeInput, ExitCommandError, "failed to update answers", err)
				}
				if err != nil {
					return fail(a.out, ErrCodeNotFound, ExitCommandError, "failed to update answers", err)
				}
				return a.out.Success(a.stateView())
			})
		},
	}
}

// resolveInstance accepts an instance id or a 1-based position.
func resolveInstance(st model.CompositionState, serviceID model.ID, ref string) (string, error) {
	entry, ok := st.Selection(serviceID)
	if !ok {
		return "", fmt.Errorf("%w: %s", session.ErrUnknownService, serviceID)
	}
	if entry.InstanceIndex(ref) >= 0 {
		return ref, nil
	}
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(entry.Instances) {
		return entry.Instances[n-1].ID, nil
	}
	return "", fmt.Errorf("%w: %s/%s", session.ErrUnknownInstance, serviceID, ref)
}

// parseAssignments turns key=value arguments into a patch. An empty
// value maps to nil, which removes the key.
func parseAssignments(args []string) (model.AdditionalInfo, error) {
	info := make(model.AdditionalInfo, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		if raw == "" {
			info[key] = nil
			continue
		}
		v, err := parseValue(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		info[key] = v
	}
	return info, nil
}

var errUnsupportedValue = errors.New("objects and nested arrays are not supported")

func parseValue(raw string) (model.InfoValue, error) {
	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return model.Text(raw), nil
	}
	if decoded == nil {
		return model.Text(raw), nil
	}
	v, ok := model.InfoValueFrom(decoded)
	if !ok {
		return nil, errUnsupportedValue
	}
	return v, nil
}
