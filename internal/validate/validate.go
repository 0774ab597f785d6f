// Package validate runs the advisory checks made before submission.
//
// Nothing here blocks a submission. Checks produce warnings that the
// pipeline shows for a few seconds while the request goes out anyway;
// staff downstream correct incomplete requests.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/catalog"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/model"
)

// DateLayout is the expected format of date answers.
const DateLayout = "2006-01-02"

var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 ()-]*$`)

// Warning is one failed check.
type Warning struct {
	// Path locates the value, e.g. "clientProfile.email" or
	// "selections[0].instances[1].depth".
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	return w.Path + ": " + w.Message
}

// Report collects the warnings of one validation run.
type Report struct {
	Warnings []Warning `json:"warnings"`
}

// OK reports whether no check failed.
func (r Report) OK() bool {
	return len(r.Warnings) == 0
}

// Summary renders the report as a single notice line.
func (r Report) Summary() string {
	switch len(r.Warnings) {
	case 0:
		return ""
	case 1:
		return r.Warnings[0].String()
	default:
		return fmt.Sprintf("%s (and %d more)", r.Warnings[0], len(r.Warnings)-1)
	}
}

// Validator checks compositions. It is safe for concurrent use.
type Validator struct {
	v *validator.Validate
}

// New creates a Validator.
func New() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return &Validator{v: v}
}

// Check validates the whole composition.
func (v *Validator) Check(s model.CompositionState) Report {
	var r Report
	r.Warnings = append(r.Warnings, v.Profile(s.ClientProfile)...)
	r.Warnings = append(r.Warnings, v.Selections(s.Selections)...)
	return r
}

// Profile validates the client profile fields.
func (v *Validator) Profile(p model.ClientProfile) []Warning {
	err := v.v.Struct(p)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []Warning{{Path: "clientProfile", Code: "invalid", Message: err.Error()}}
	}
	out := make([]Warning, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, Warning{
			Path:    "clientProfile." + fe.Field(),
			Code:    fe.Tag(),
			Message: profileMessage(fe),
		})
	}
	return out
}

func profileMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "is not a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "phone":
		return "is not a valid phone number"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}

// Selections validates every selected service and its instances.
func (v *Validator) Selections(sel []model.SelectionEntry) []Warning {
	if len(sel) == 0 {
		return []Warning{{Path: "selections", Code: "required", Message: "no services selected"}}
	}
	var out []Warning
	for i, e := range sel {
		base := fmt.Sprintf("selections[%d]", i)
		if e.Quantity < 1 {
			out = append(out, Warning{Path: base + ".quantity", Code: "min", Message: "must be at least 1"})
		}
		for j, in := range e.Instances {
			prefix := fmt.Sprintf("%s.instances[%d]", base, j)
			out = append(out, Instance(prefix, e.Item, in.AdditionalInfo)...)
		}
	}
	return out
}

// Instance checks one instance's answers against the item's field
// schema. Hidden fields are skipped; answers to them are not flagged.
// Answers under keys the item does not declare are.
func Instance(prefix string, item model.ServiceCatalogItem, info model.AdditionalInfo) []Warning {
	var out []Warning
	for _, f := range catalog.VisibleFields(item, info) {
		path := prefix + "." + f.Field
		val, present := info[f.Field]
		if !present || val == nil || isEmpty(val) {
			if f.Required {
				out = append(out, Warning{Path: path, Code: "required", Message: label(f) + " is required"})
			}
			continue
		}
		if msg := checkShape(f, val); msg != "" {
			out = append(out, Warning{Path: path, Code: "type", Message: label(f) + " " + msg})
		}
	}
	for _, k := range catalog.UndeclaredKeys(item, info) {
		out = append(out, Warning{
			Path:    prefix + "." + k,
			Code:    "unknown",
			Message: fmt.Sprintf("%s is not a field of %s", k, item.Name),
		})
	}
	return out
}

func label(f model.AdditionalFieldSchema) string {
	if f.Label != "" {
		return f.Label
	}
	return f.Field
}

func isEmpty(v model.InfoValue) bool {
	switch val := v.(type) {
	case model.Text:
		return strings.TrimSpace(string(val)) == ""
	case model.Choices:
		return len(val) == 0
	default:
		return false
	}
}

// checkShape returns a message when val does not fit the field type.
func checkShape(f model.AdditionalFieldSchema, val model.InfoValue) string {
	switch f.Type {
	case model.FieldNumber:
		if _, ok := val.(model.Number); !ok {
			return "must be a number"
		}
	case model.FieldCheckbox:
		if _, ok := val.(model.Flag); !ok {
			return "must be true or false"
		}
	case model.FieldText:
		if _, ok := val.(model.Text); !ok {
			return "must be text"
		}
	case model.FieldDate:
		t, ok := val.(model.Text)
		if !ok {
			return "must be a date"
		}
		if _, err := time.Parse(DateLayout, string(t)); err != nil {
			return "must be a date (YYYY-MM-DD)"
		}
	case model.FieldSelect, model.FieldRadio:
		t, ok := val.(model.Text)
		if !ok {
			return "must be a single choice"
		}
		if !slices.Contains(f.Options, string(t)) {
			return fmt.Sprintf("has unknown option %q", string(t))
		}
	case model.FieldMultiSelect:
		list, ok := val.(model.Choices)
		if !ok {
			return "must be a list of choices"
		}
		for _, c := range list {
			if !slices.Contains(f.Options, c) {
				return fmt.Sprintf("has unknown option %q", c)
			}
		}
	}
	return ""
}
