package command

import (
	"errors"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/feedauth-go/internal/cli/repl"
	"github.com/yndnr/feedauth-go/internal/core/domain"
)

// Exit codes by error kind.
const (
	ExitOK               = 0
	ExitError            = 1
	ExitFormInvalid      = 2
	ExitValidationFailed = 3
	ExitAuthFailed       = 4
	ExitConflict         = 5
	ExitNetwork          = 6
)

// ExitCode returns the process exit code for err.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return ExitError
}

// sessionError turns a session error into a cli exit error carrying the
// user-facing message.
func sessionError(err error) error {
	if err == nil {
		return nil
	}
	if !domain.IsDomainError(err, "") {
		return cli.Exit(err.Error(), ExitError)
	}

	code := ExitError
	switch domain.Classify(err) {
	case domain.KindFormInvalid:
		code = ExitFormInvalid
	case domain.KindValidationFailed:
		code = ExitValidationFailed
	case domain.KindAuthFailed:
		code = ExitAuthFailed
	case domain.KindConflictOrOther:
		code = ExitConflict
	case domain.KindNetworkOrUnknown:
		if errors.Is(err, domain.ErrNetworkOrUnknown) {
			code = ExitNetwork
		}
	}
	return cli.Exit(repl.ErrorTitle+": "+repl.ErrorText(err), code)
}
