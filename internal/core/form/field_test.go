package form

import (
	"testing"

	"github.com/yndnr/feedauth-go/internal/core/validator"
)

func TestNewField(t *testing.T) {
	f := NewField("email", "", validator.Required, validator.Email)

	if f.Name() != "email" || f.Value() != "" {
		t.Errorf("NewField() = %+v", f)
	}
	if f.Valid() {
		t.Error("empty email should be invalid")
	}
	if f.Touched() {
		t.Error("new field should be untouched")
	}
}

func TestField_SetValue(t *testing.T) {
	f := NewField("password", "", validator.Required, validator.Length(validator.LengthConfig{Min: 5}))

	g := f.SetValue("abcd")
	if g.Valid() {
		t.Error("4 chars should be invalid with min 5")
	}
	h := g.SetValue("abcde")
	if !h.Valid() {
		t.Error("5 chars should be valid with min 5")
	}

	if f.Value() != "" {
		t.Error("SetValue should not modify the receiver")
	}
}

func TestField_SetValuePreservesTouched(t *testing.T) {
	f := NewField("name", "").MarkTouched().SetValue("x")
	if !f.Touched() {
		t.Error("SetValue should not reset touched")
	}
}

func TestField_MarkTouchedIdempotent(t *testing.T) {
	f := NewField("name", "bob", validator.Required)

	once := f.MarkTouched()
	twice := f.MarkTouched().MarkTouched()

	if once.Value() != twice.Value() || once.Valid() != twice.Valid() || once.Touched() != twice.Touched() {
		t.Errorf("once = %+v, twice = %+v", once, twice)
	}
}

func TestField_OperationsCommute(t *testing.T) {
	f := NewField("email", "", validator.Required, validator.Email)

	a := f.SetValue("a@b.com").MarkTouched()
	b := f.MarkTouched().SetValue("a@b.com")

	if a.Value() != b.Value() || a.Valid() != b.Valid() || a.Touched() != b.Touched() {
		t.Errorf("order changed result: %+v vs %+v", a, b)
	}
}

func TestField_ShowError(t *testing.T) {
	f := NewField("name", "", validator.Required)
	if f.ShowError() {
		t.Error("untouched invalid field should not show error")
	}
	if !f.MarkTouched().ShowError() {
		t.Error("touched invalid field should show error")
	}
	if f.MarkTouched().SetValue("x").ShowError() {
		t.Error("touched valid field should not show error")
	}
}
