// Package catalog loads the service catalog and answers questions about
// its schema-driven additional fields.
//
// Catalog files are CUE. Every file is unified with the #Catalog
// definition below before it is decoded, so type tags, option lists and
// dependency shapes are checked by CUE rather than by per-service code.
package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/model"
)

// schemaCUE constrains catalog documents. Definitions are closed, so an
// unknown key (a typo like "dependOn") is rejected.
const schemaCUE = `
#Dependency: {
	field: string & !=""
	value: string
}

#Field: {
	field:      string & !=""
	label?:     string
	type:       "text" | "number" | "select" | "multiselect" | "checkbox" | "radio" | "date"
	required?:  bool
	options?:   [...string]
	dependsOn?: #Dependency
}

#Item: {
	id:      int | string
	code:    string & !=""
	name:    string & !=""
	fields?: [...#Field]
}

#Category: {
	id:    int | string
	name:  string & !=""
	items: [...#Item]
}

#Catalog: {
	categories: [...#Category]
}
`

// Catalog is an immutable, indexed view over service categories.
type Catalog struct {
	categories []model.ServiceCategory
	byID       map[model.ID]itemRef
}

type itemRef struct {
	item     model.ServiceCatalogItem
	category string
}

// New indexes categories and checks cross-field rules CUE cannot express
// per field: unique item ids, dependencies that point at a field of the
// same item, and option lists for choice fields.
func New(categories []model.ServiceCategory) (*Catalog, error) {
	c := &Catalog{
		categories: slices.Clone(categories),
		byID:       make(map[model.ID]itemRef),
	}
	for _, cat := range categories {
		for _, item := range cat.Items {
			if item.ID == "" {
				return nil, fmt.Errorf("catalog: item %q has no id", item.Code)
			}
			if _, dup := c.byID[item.ID]; dup {
				return nil, fmt.Errorf("catalog: duplicate item id %s", item.ID)
			}
			if err := checkFields(item); err != nil {
				return nil, err
			}
			c.byID[item.ID] = itemRef{item: item, category: cat.Name}
		}
	}
	return c, nil
}

func checkFields(item model.ServiceCatalogItem) error {
	keys := make(map[string]struct{}, len(item.Fields))
	for _, f := range item.Fields {
		if _, dup := keys[f.Field]; dup {
			return fmt.Errorf("catalog: item %s: duplicate field %q", item.ID, f.Field)
		}
		keys[f.Field] = struct{}{}
		if !f.Type.Valid() {
			return fmt.Errorf("catalog: item %s: field %q: unknown type %q", item.ID, f.Field, f.Type)
		}
		switch f.Type {
		case model.FieldSelect, model.FieldMultiSelect, model.FieldRadio:
			if len(f.Options) == 0 {
				return fmt.Errorf("catalog: item %s: field %q: %s needs options", item.ID, f.Field, f.Type)
			}
		}
	}
	for _, f := range item.Fields {
		if f.DependsOn == nil {
			continue
		}
		if f.DependsOn.Field == f.Field {
			return fmt.Errorf("catalog: item %s: field %q depends on itself", item.ID, f.Field)
		}
		if _, ok := keys[f.DependsOn.Field]; !ok {
			return fmt.Errorf("catalog: item %s: field %q depends on unknown field %q", item.ID, f.Field, f.DependsOn.Field)
		}
	}
	return nil
}

// Load reads and validates a CUE catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return Parse(data, path)
}

// Parse validates CUE source against #Catalog and decodes it. filename is
// only used in error positions.
func Parse(src []byte, filename string) (*Catalog, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("catalog_schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("catalog schema: %w", err)
	}

	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Catalog")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	raw, err := unified.LookupPath(cue.ParsePath("categories")).MarshalJSON()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var categories []model.ServiceCategory
	if err := json.Unmarshal(raw, &categories); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	return New(categories)
}

// remoteResponse is the body of GET /service-requests/services/all.
type remoteResponse struct {
	Success  bool                    `json:"success"`
	Services []model.ServiceCategory `json:"services"`
	Message  string                  `json:"message,omitempty"`
}

// DecodeRemote decodes the catalog endpoint's response body.
func DecodeRemote(r io.Reader) (*Catalog, error) {
	var resp remoteResponse
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, fmt.Errorf("catalog: decode response: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("catalog: remote reported failure: %s", resp.Message)
	}
	return New(resp.Services)
}

// formatCUEError flattens CUE's multi-error into one error with positions.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return fmt.Errorf("catalog: %w", err)
	}
	return fmt.Errorf("catalog: %s", cueerrors.Details(err, nil))
}

// Categories returns the categories in declaration order.
func (c *Catalog) Categories() []model.ServiceCategory {
	return slices.Clone(c.categories)
}

// Items returns every item in declaration order.
func (c *Catalog) Items() []model.ServiceCatalogItem {
	var out []model.ServiceCatalogItem
	for _, cat := range c.categories {
		out = append(out, cat.Items...)
	}
	return out
}

// Item returns the item with the given id.
func (c *Catalog) Item(id model.ID) (model.ServiceCatalogItem, bool) {
	ref, ok := c.byID[id]
	return ref.item, ok
}

// CategoryOf returns the category name of the item with the given id.
func (c *Catalog) CategoryOf(id model.ID) string {
	return c.byID[id].category
}

// NewSelection builds a selection entry for the item. The entry id is the
// item id, so a removal recorded by item id also blocks re-imports of the
// entry. Instances are left for the reducer to create.
func (c *Catalog) NewSelection(id model.ID, quantity int) (model.SelectionEntry, error) {
	ref, ok := c.byID[id]
	if !ok {
		return model.SelectionEntry{}, fmt.Errorf("catalog: unknown service %s", id)
	}
	return model.SelectionEntry{
		ID:       ref.item.ID,
		Item:     ref.item,
		Category: ref.category,
		Quantity: quantity,
	}, nil
}
