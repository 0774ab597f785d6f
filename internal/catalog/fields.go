package catalog

import (
	"slices"

	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/model"
)

// Visible reports whether f applies to an instance with the given answers.
// A field without a dependency is always visible; a dependent field is
// visible when the referenced answer equals the dependency value, or for a
// multi-select answer, contains it.
func Visible(f model.AdditionalFieldSchema, info model.AdditionalInfo) bool {
	if f.DependsOn == nil {
		return true
	}
	v, ok := info[f.DependsOn.Field]
	if !ok || v == nil {
		return false
	}
	if choices, isList := v.(model.Choices); isList {
		return slices.Contains(choices, f.DependsOn.Value)
	}
	return model.Render(v) == f.DependsOn.Value
}

// VisibleFields returns the fields of item that apply to info, in schema order.
func VisibleFields(item model.ServiceCatalogItem, info model.AdditionalInfo) []model.AdditionalFieldSchema {
	out := make([]model.AdditionalFieldSchema, 0, len(item.Fields))
	for _, f := range item.Fields {
		if Visible(f, info) {
			out = append(out, f)
		}
	}
	return out
}

// UndeclaredKeys returns the keys of info with a non-nil answer that item
// does not declare, sorted. An item without fields accepts any key.
func UndeclaredKeys(item model.ServiceCatalogItem, info model.AdditionalInfo) []string {
	if len(item.Fields) == 0 {
		return nil
	}
	var out []string
	for _, k := range info.Keys() {
		if info[k] == nil {
			continue
		}
		if _, ok := item.Field(k); !ok {
			out = append(out, k)
		}
	}
	return out
}
