package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business domain error with a structured error code.
// Codes follow the format FA-<AREA>-<NNNN>.
type DomainError struct {
	Code    string // Error code (e.g., "FA-AUTH-4010")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithMessage returns a copy of the error with the message replaced.
// Used when the server supplies its own wording for a known failure.
func (e *DomainError) WithMessage(message string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: message,
		Details: e.Details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// UserMessage returns the text shown to the user: the message alone,
// without code or details.
func (e *DomainError) UserMessage() string {
	if e.Message == "" {
		return UnknownErrorMessage
	}
	return e.Message
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// UnknownErrorMessage is shown when an error carries no usable message.
const UnknownErrorMessage = "An unknown error occurred."

// ============================================================================
// Form Errors (FORM)
// ============================================================================

var (
	// ErrFormInvalid indicates a submit was blocked because the form is invalid.
	// It never reaches the network.
	ErrFormInvalid = NewDomainError("FA-FORM-4000", "form is invalid")

	// ErrUnknownField indicates a mutation named a field the form does not have.
	ErrUnknownField = NewDomainError("FA-FORM-4040", "unknown form field")

	// ErrFormDefinition indicates a form was constructed with bad field specs.
	ErrFormDefinition = NewDomainError("FA-FORM-5000", "invalid form definition")
)

// ============================================================================
// Remote Authentication Errors (AUTH)
// ============================================================================

var (
	// ErrValidationFailed indicates the server rejected the submitted data (HTTP 422).
	ErrValidationFailed = NewDomainError("FA-AUTH-4220", "Validation failed.")

	// ErrSignupValidationFailed is the signup flavour of ErrValidationFailed.
	ErrSignupValidationFailed = NewDomainError("FA-AUTH-4220", "Validation failed. Make sure the email address isn't used yet!")

	// ErrAuthFailed indicates the credentials were rejected.
	ErrAuthFailed = NewDomainError("FA-AUTH-4010", "Could not authenticate you!")

	// ErrSignupFailed indicates account creation failed for a reason other than validation.
	ErrSignupFailed = NewDomainError("FA-AUTH-4090", "Creating a user failed!")
)

// ============================================================================
// Session Errors (SESS)
// ============================================================================

var (
	// ErrLoginInProgress indicates a login was attempted while another is in flight.
	ErrLoginInProgress = NewDomainError("FA-SESS-4091", "login already in progress")

	// ErrAlreadyAuthenticated indicates a login was attempted while a session is active.
	ErrAlreadyAuthenticated = NewDomainError("FA-SESS-4092", "already authenticated")

	// ErrSignupInProgress indicates a signup was attempted while another is in flight.
	ErrSignupInProgress = NewDomainError("FA-SESS-4093", "signup already in progress")

	// ErrLoginSuperseded is returned to the caller of a login whose response
	// arrived after a logout or close made it irrelevant.
	ErrLoginSuperseded = NewDomainError("FA-SESS-4990", "login attempt was superseded")

	// ErrPartialSession indicates a session with only some of token/expiry set.
	ErrPartialSession = NewDomainError("FA-SESS-4001", "partial session")

	// ErrManagerClosed indicates the session manager has been closed.
	ErrManagerClosed = NewDomainError("FA-SESS-5030", "session manager closed")
)

// ============================================================================
// System Errors (SYS)
// ============================================================================

var (
	// ErrNetworkOrUnknown indicates a transport failure or an unexpected status.
	ErrNetworkOrUnknown = NewDomainError("FA-SYS-5000", UnknownErrorMessage)

	// ErrStorageError indicates a storage layer error.
	ErrStorageError = NewDomainError("FA-SYS-5001", "storage error")

	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("FA-ARG-1001", "invalid argument")
)

// Kind classifies an error into the taxonomy surfaced to the view.
type Kind int

const (
	// KindNone means no error.
	KindNone Kind = iota
	// KindFormInvalid means a submit was blocked locally.
	KindFormInvalid
	// KindValidationFailed means the server rejected the data.
	KindValidationFailed
	// KindAuthFailed means bad credentials.
	KindAuthFailed
	// KindConflictOrOther means signup failed for another reason.
	KindConflictOrOther
	// KindNetworkOrUnknown covers transport failures and anything unclassified.
	KindNetworkOrUnknown
)

// String returns a string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindFormInvalid:
		return "form_invalid"
	case KindValidationFailed:
		return "validation_failed"
	case KindAuthFailed:
		return "auth_failed"
	case KindConflictOrOther:
		return "conflict_or_other"
	case KindNetworkOrUnknown:
		return "network_or_unknown"
	default:
		return "unknown"
	}
}

// Classify maps any error onto a Kind.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	switch {
	case errors.Is(err, ErrFormInvalid):
		return KindFormInvalid
	case errors.Is(err, ErrValidationFailed):
		return KindValidationFailed
	case errors.Is(err, ErrAuthFailed):
		return KindAuthFailed
	case errors.Is(err, ErrSignupFailed):
		return KindConflictOrOther
	default:
		return KindNetworkOrUnknown
	}
}
