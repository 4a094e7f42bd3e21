package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kbukum/recflow/errors"
)

// FieldError is one failed check on a configuration key.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) String() string { return e.Field + ": " + e.Message }

// Validator accumulates FieldErrors. Checks return the receiver so they
// can be chained.
type Validator struct {
	errs []FieldError
}

// New returns an empty Validator.
func New() *Validator { return &Validator{} }

// AddError records a failure on field.
func (v *Validator) AddError(field, message string) *Validator {
	v.errs = append(v.errs, FieldError{Field: field, Message: message})
	return v
}

// HasErrors reports whether any check failed.
func (v *Validator) HasErrors() bool { return len(v.errs) > 0 }

// Errors returns the recorded failures in check order.
func (v *Validator) Errors() []FieldError { return v.errs }

// Validate folds the failures into one invalid-input AppError, or returns
// nil when every check passed.
func (v *Validator) Validate() *errors.AppError {
	if !v.HasErrors() {
		return nil
	}
	return invalid(v.errs)
}

func invalid(fields []FieldError) *errors.AppError {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.String()
	}
	return errors.New(errors.ErrCodeInvalidInput, strings.Join(parts, "; ")).
		WithDetail("fields", fields)
}

// Required fails when value is blank.
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "is required")
	}
	return v
}

// Regexp fails when a non-empty value does not compile.
func (v *Validator) Regexp(field, value string) *Validator {
	if value == "" {
		return v
	}
	if _, err := regexp.Compile(value); err != nil {
		v.AddError(field, "is not a valid regular expression: "+err.Error())
	}
	return v
}

// Unique reports every repeated name once per repetition.
func (v *Validator) Unique(field string, names []string) *Validator {
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			v.AddError(field, fmt.Sprintf("duplicate value %q", name))
		}
		seen[name] = struct{}{}
	}
	return v
}

// Known fails with `unknown <kind> "<name>"` unless known is true.
func (v *Validator) Known(field, kind, name string, known bool) *Validator {
	if !known {
		v.AddError(field, fmt.Sprintf("unknown %s %q", kind, name))
	}
	return v
}

// Custom records message on field unless ok.
func (v *Validator) Custom(ok bool, field, message string) *Validator {
	if !ok {
		v.AddError(field, message)
	}
	return v
}

// Merge copies the failures of other, prefixing their fields.
func (v *Validator) Merge(prefix string, other *Validator) *Validator {
	for _, e := range other.errs {
		v.AddError(prefix+e.Field, e.Message)
	}
	return v
}
