package session

import (
	"context"
	"time"

	"github.com/yndnr/feedauth-go/internal/core/domain"
)

// State is the lifecycle state of a Manager.
type State int

const (
	StateAnonymous State = iota
	StateAuthenticating
	StateAuthenticated
	StateAuthFailed
)

// String returns a string representation of the State.
func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateAuthFailed:
		return "auth_failed"
	default:
		return "unknown"
	}
}

// LoginResult is what the auth server returns for good credentials.
type LoginResult struct {
	Token  string
	UserID string
	// TTL is the session lifetime. Zero means the manager default.
	TTL time.Duration
}

// Authenticator is the network collaborator.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Signup(ctx context.Context, email, password, name string) error
}

// Store persists the session between runs.
//
// Load returns (nil, nil) when nothing is stored and an error matching
// domain.ErrPartialSession when what is stored is incomplete.
type Store interface {
	Load(ctx context.Context) (*domain.Session, error)
	Save(ctx context.Context, s *domain.Session) error
	Clear(ctx context.Context) error
}

// SignupResult tells the caller where to go after a successful signup.
type SignupResult struct {
	Redirect string
}

// ViewState is the read model handed to the presentation layer.
type ViewState struct {
	State       State
	IsAuth      bool
	AuthLoading bool
	Error       error
	UserID      string
	Token       string
	ExpiresAt   time.Time
}

// ErrorMessage returns the text to show for Error, or "" when there is none.
func (v ViewState) ErrorMessage() string {
	if v.Error == nil {
		return ""
	}
	if de, ok := v.Error.(*domain.DomainError); ok {
		return de.UserMessage()
	}
	return domain.UnknownErrorMessage
}

// Observer receives the view state after every transition.
type Observer func(ViewState)
