package form

import (
	"github.com/yndnr/feedauth-go/internal/core/validator"
)

// Field is one form input: its value, derived validity and interaction state.
type Field struct {
	name       string
	value      string
	valid      bool
	touched    bool
	validators []validator.Validator
}

// NewField creates an untouched field with validity computed for initial.
func NewField(name, initial string, validators ...validator.Validator) Field {
	f := Field{
		name:       name,
		validators: append([]validator.Validator(nil), validators...),
	}
	return f.SetValue(initial)
}

// SetValue returns a copy of f holding value, with Valid recomputed against
// the unchanged validator list. Touched is preserved.
func (f Field) SetValue(value string) Field {
	f.value = value
	f.valid = validator.All(value, f.validators...)
	return f
}

// MarkTouched returns a copy of f with Touched set. Idempotent.
func (f Field) MarkTouched() Field {
	f.touched = true
	return f
}

// Name returns the field name.
func (f Field) Name() string { return f.name }

// Value returns the current raw value.
func (f Field) Value() string { return f.value }

// Valid reports whether every validator accepts the current value.
func (f Field) Valid() bool { return f.valid }

// Touched reports whether the user has left the field at least once.
func (f Field) Touched() bool { return f.touched }

// ShowError reports whether a view should display this field as invalid:
// only after it was touched.
func (f Field) ShowError() bool { return f.touched && !f.valid }
