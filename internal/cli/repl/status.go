package repl

import (
	"context"
	"time"

	"github.com/yndnr/feedauth-go/internal/core/form"
	"github.com/yndnr/feedauth-go/internal/core/session"
	"github.com/yndnr/feedauth-go/internal/telemetry/logger"
)

// Status is the printable form of a session's view state.
type Status struct {
	Server        string     `json:"server,omitempty"`
	State         string     `json:"state"`
	Authenticated bool       `json:"authenticated"`
	UserID        string     `json:"userId,omitempty"`
	Token         string     `json:"token,omitempty"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	Remaining     string     `json:"remaining,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// StatusOf builds a Status from s. The token is redacted.
func StatusOf(s Session, server string) Status {
	view := s.View()
	st := Status{
		Server:        server,
		State:         view.State.String(),
		Authenticated: view.IsAuth,
		UserID:        view.UserID,
		Error:         view.ErrorMessage(),
	}
	if view.Token != "" {
		st.Token = logger.RedactToken(view.Token)
	}
	if !view.ExpiresAt.IsZero() {
		exp := view.ExpiresAt
		st.ExpiresAt = &exp
	}
	if left, ok := s.Remaining(); ok {
		st.Remaining = left.Round(time.Second).String()
	}
	return st
}

// Session is the part of session.Manager the REPL drives.
type Session interface {
	LoginForm(ctx context.Context, f *form.Form) error
	Signup(ctx context.Context, f *form.Form) (*session.SignupResult, error)
	Logout(ctx context.Context) error
	DismissError()
	View() session.ViewState
	Remaining() (time.Duration, bool)
	Subscribe(obs session.Observer) (cancel func())
}

var _ Session = (*session.Manager)(nil)
