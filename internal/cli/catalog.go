package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/model"
)

// CatalogView is the output of catalog list.
type CatalogView struct {
	Categories []model.ServiceCategory `json:"categories"`
}

func (v CatalogView) String() string {
	var b strings.Builder
	for i, c := range v.Categories {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s (%s)\n", c.Name, c.ID)
		for _, it := range c.Items {
			fmt.Fprintf(&b, "  %-6s %-8s %s", it.ID, it.Code, it.Name)
			if len(it.Fields) > 0 {
				b.WriteString("  [" + describeFields(it.Fields) + "]")
			}
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func describeFields(fields []model.AdditionalFieldSchema) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		s := f.Field
		if f.Required {
			s += "*"
		}
		if f.DependsOn != nil {
			s += fmt.Sprintf(" if %s=%s", f.DependsOn.Field, f.DependsOn.Value)
		}
		parts[i] = s
	}
	return strings.Join(parts, ", ")
}

// NewCatalogCommand creates the catalog command group.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the service catalog",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List catalog categories and items",
		Long: `List the service catalog.

The catalog comes from the CUE file named by the "catalog" config
setting, or from the API when none is set. Fields marked * are required;
"if f=v" fields only apply when field f holds v.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, appOptions{catalog: true}, func(_ context.Context, a *app) error {
				return a.out.Success(CatalogView{Categories: a.session.Catalog().Categories()})
			})
		},
	})
	return cmd
}
