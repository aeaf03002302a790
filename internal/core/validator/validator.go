package validator

import (
	"strings"
	"unicode/utf8"

	"github.com/asaskevich/govalidator"
)

// Validator reports whether value is acceptable.
type Validator func(value string) bool

// LengthConfig bounds the trimmed length of a value. Zero disables a bound.
type LengthConfig struct {
	Min int
	Max int
}

// Required accepts any value that is non-empty after trimming whitespace.
func Required(value string) bool {
	return strings.TrimSpace(value) != ""
}

// Length returns a validator that checks the trimmed rune count of a value
// against cfg. Min and Max are applied independently.
func Length(cfg LengthConfig) Validator {
	return func(value string) bool {
		n := utf8.RuneCountInString(strings.TrimSpace(value))
		if cfg.Min > 0 && n < cfg.Min {
			return false
		}
		if cfg.Max > 0 && n > cfg.Max {
			return false
		}
		return true
	}
}

// Email accepts values shaped like a conventional e-mail address.
func Email(value string) bool {
	if value == "" || strings.ContainsAny(value, " \t\r\n") {
		return false
	}
	return govalidator.IsEmail(value)
}

// All reports whether every validator accepts value. An empty list accepts
// everything.
func All(value string, validators ...Validator) bool {
	for _, v := range validators {
		if v == nil {
			continue
		}
		if !v(value) {
			return false
		}
	}
	return true
}
