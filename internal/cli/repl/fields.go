package repl

import (
	"errors"

	"github.com/yndnr/feedauth-go/internal/core/domain"
	"github.com/yndnr/feedauth-go/internal/core/form"
)

type fieldText struct {
	label string
	hint  string
}

var fieldTexts = map[string]fieldText{
	form.FieldEmail:    {"Your E-Mail", "Please enter a valid e-mail address."},
	form.FieldName:     {"Your Name", "Please enter your name."},
	form.FieldPassword: {"Password", "Please enter a password with at least 5 characters."},
}

// FieldLabel returns the prompt label for a form field.
func FieldLabel(name string) string {
	if t, ok := fieldTexts[name]; ok {
		return t.label
	}
	return name
}

// FieldHint returns the message shown while a field's error is displayed.
func FieldHint(name string) string {
	if t, ok := fieldTexts[name]; ok {
		return t.hint
	}
	return "Please enter a valid value."
}

// IsSecretField reports whether input for the field must not be echoed.
func IsSecretField(name string) bool {
	return name == form.FieldPassword
}

// ErrorTitle heads every error shown to the user.
const ErrorTitle = "An Error Occurred"

// ErrorText returns the text shown for err.
func ErrorText(err error) string {
	if err == nil {
		return ""
	}
	var de *domain.DomainError
	if !errors.As(err, &de) {
		return domain.UnknownErrorMessage
	}
	if errors.Is(err, domain.ErrFormInvalid) && de.Details != "" {
		return de.UserMessage() + ": " + de.Details
	}
	return de.UserMessage()
}
