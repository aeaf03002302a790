package form

import "github.com/yndnr/feedauth-go/internal/core/validator"

// Field names shared by the authentication forms.
const (
	FieldEmail    = "email"
	FieldName     = "name"
	FieldPassword = "password"
)

// MinPasswordLength is the shortest password the forms accept.
const MinPasswordLength = 5

// NewSignupForm returns the account creation form: email, name, password.
func NewSignupForm() *Form {
	return MustNew(
		FieldSpec{Name: FieldEmail, Validators: []validator.Validator{validator.Required, validator.Email}},
		FieldSpec{Name: FieldName, Validators: []validator.Validator{validator.Required}},
		FieldSpec{Name: FieldPassword, Validators: []validator.Validator{
			validator.Required,
			validator.Length(validator.LengthConfig{Min: MinPasswordLength}),
		}},
	)
}

// NewLoginForm returns the login form: email, password.
func NewLoginForm() *Form {
	return MustNew(
		FieldSpec{Name: FieldEmail, Validators: []validator.Validator{validator.Required, validator.Email}},
		FieldSpec{Name: FieldPassword, Validators: []validator.Validator{
			validator.Required,
			validator.Length(validator.LengthConfig{Min: MinPasswordLength}),
		}},
	)
}
