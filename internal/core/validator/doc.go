// Package validator provides the pure predicates used to validate form fields.
//
// A Validator takes a candidate value and reports whether it is acceptable.
// Validators never panic and never return errors: input they cannot make
// sense of is simply rejected. Parameterized validators (Length) are built
// from static configuration and capture it by value.
package validator
