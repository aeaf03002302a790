package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yndnr/feedauth-go/internal/core/domain"
	"github.com/yndnr/feedauth-go/internal/core/session"
	"github.com/yndnr/feedauth-go/internal/telemetry/logger"
)

// Auth server paths.
const (
	LoginPath  = "/auth/login"
	SignupPath = "/auth/signup"
)

// maxBodySize caps how much of a response is read.
const maxBodySize = 1 << 20

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginResponse struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
	// TTLMilliseconds and ExpiresIn (seconds) are optional; the first one
	// present wins.
	TTLMilliseconds *int64 `json:"ttlMilliseconds,omitempty"`
	ExpiresIn       *int64 `json:"expiresIn,omitempty"`
}

func (r loginResponse) ttl() time.Duration {
	switch {
	case r.TTLMilliseconds != nil && *r.TTLMilliseconds > 0:
		return time.Duration(*r.TTLMilliseconds) * time.Millisecond
	case r.ExpiresIn != nil && *r.ExpiresIn > 0:
		return time.Duration(*r.ExpiresIn) * time.Second
	default:
		return 0
	}
}

// AuthClient implements session.Authenticator over HTTP.
type AuthClient struct {
	http   *HTTPClient
	logger logger.Logger
}

var _ session.Authenticator = (*AuthClient)(nil)

// NewAuthClient creates an AuthClient. A nil logger uses logger.Default().
func NewAuthClient(c *HTTPClient, l logger.Logger) *AuthClient {
	if l == nil {
		l = logger.Default()
	}
	return &AuthClient{http: c, logger: l}
}

// Login exchanges credentials for a token.
//
// 422 maps to domain.ErrValidationFailed, any other status besides 200 and
// 201 to domain.ErrAuthFailed, and transport or decoding failures to
// domain.ErrNetworkOrUnknown. A "message" in the error body replaces the
// default text.
func (a *AuthClient) Login(ctx context.Context, email, password string) (*session.LoginResult, error) {
	resp, err := a.http.Post(ctx, LoginPath, loginRequest{Email: email, Password: password})
	if err != nil {
		return nil, domain.ErrNetworkOrUnknown.WithCause(err)
	}
	body, err := readBody(resp)
	if err != nil {
		return nil, domain.ErrNetworkOrUnknown.WithCause(err)
	}

	a.logger.WithContext(ctx).Debug("login response", "status", resp.StatusCode)

	switch {
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, withServerMessage(domain.ErrValidationFailed, body, resp.StatusCode)
	case !isSuccess(resp.StatusCode):
		return nil, withServerMessage(domain.ErrAuthFailed, body, resp.StatusCode)
	}

	var out loginResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, domain.ErrNetworkOrUnknown.WithDetails("decode login response").WithCause(err)
	}
	if out.Token == "" {
		return nil, domain.ErrNetworkOrUnknown.WithDetails("login response has no token")
	}

	return &session.LoginResult{
		Token:  out.Token,
		UserID: out.UserID,
		TTL:    out.ttl(),
	}, nil
}

// Signup creates an account.
//
// 422 maps to domain.ErrSignupValidationFailed and any other status besides
// 200 and 201 to domain.ErrSignupFailed.
func (a *AuthClient) Signup(ctx context.Context, email, password, name string) error {
	resp, err := a.http.Put(ctx, SignupPath, signupRequest{Email: email, Password: password, Name: name})
	if err != nil {
		return domain.ErrNetworkOrUnknown.WithCause(err)
	}
	body, err := readBody(resp)
	if err != nil {
		return domain.ErrNetworkOrUnknown.WithCause(err)
	}

	a.logger.Debug("signup response", "status", resp.StatusCode)

	switch {
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return withServerMessage(domain.ErrSignupValidationFailed, body, resp.StatusCode)
	case !isSuccess(resp.StatusCode):
		return withServerMessage(domain.ErrSignupFailed, body, resp.StatusCode)
	}
	return nil
}

func isSuccess(status int) bool {
	return status == http.StatusOK || status == http.StatusCreated
}

func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
}

func withServerMessage(base *domain.DomainError, body []byte, status int) *domain.DomainError {
	err := base.WithDetails(fmt.Sprintf("status %d", status))
	if msg := serverMessage(body); msg != "" {
		err = err.WithMessage(msg)
	}
	return err
}
