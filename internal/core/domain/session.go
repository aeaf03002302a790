package domain

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// DefaultSessionTTL is the session lifetime assumed when the server does not
// report one.
const DefaultSessionTTL = 60 * time.Minute

// AttemptIDPrefix is the prefix for login attempt IDs.
const AttemptIDPrefix = "fala-"

// Session is the authenticated identity held by the client between login and
// logout or expiry.
//
// Token and ExpiresAt are either both set or both zero. UserID is carried
// alongside but may be empty if the server omitted it.
type Session struct {
	// Token is the opaque bearer token issued by the server.
	Token string `json:"token"`

	// UserID identifies the authenticated user.
	UserID string `json:"user_id"`

	// ExpiresAt is the absolute expiry instant.
	ExpiresAt time.Time `json:"expires_at"`
}

// NewSession creates a session that expires ttl after now.
func NewSession(token, userID string, now time.Time, ttl time.Duration) (*Session, error) {
	if token == "" {
		return nil, ErrInvalidArgument.WithDetails("token is required")
	}
	if ttl <= 0 {
		return nil, ErrInvalidArgument.WithDetails("ttl must be positive")
	}
	return &Session{
		Token:     token,
		UserID:    userID,
		ExpiresAt: now.Add(ttl),
	}, nil
}

// IsZero reports whether the session carries no identity at all.
func (s *Session) IsZero() bool {
	return s == nil || (s.Token == "" && s.UserID == "" && s.ExpiresAt.IsZero())
}

// Validate checks the both-or-neither rule for Token and ExpiresAt.
func (s *Session) Validate() error {
	if s == nil {
		return nil
	}
	hasToken := s.Token != ""
	hasExpiry := !s.ExpiresAt.IsZero()
	if hasToken != hasExpiry {
		return ErrPartialSession.WithDetails("token and expiry must be set together")
	}
	return nil
}

// IsExpired reports whether the session has expired at now.
// An expiry exactly equal to now counts as expired.
func (s *Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// Remaining returns the time left until expiry, or 0 if already expired.
func (s *Session) Remaining(now time.Time) time.Duration {
	d := s.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Clone returns a copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	clone := *s
	return &clone
}

// Credentials are the inputs of a login attempt.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks that both credentials are present.
func (c Credentials) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Email) == "" {
		missing = append(missing, "email is required")
	}
	if c.Password == "" {
		missing = append(missing, "password is required")
	}
	if len(missing) > 0 {
		return ErrInvalidArgument.WithDetails(strings.Join(missing, "; "))
	}
	return nil
}

// SignupData are the inputs of an account creation request.
type SignupData struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// GenerateAttemptID generates a new login attempt ID using ULID.
// Format: fala-{ulid_lowercase}.
func GenerateAttemptID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", ErrNetworkOrUnknown.WithCause(err)
	}
	return AttemptIDPrefix + strings.ToLower(id.String()), nil
}
