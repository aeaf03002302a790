package repl

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/feedauth-go/internal/core/session"
	"github.com/yndnr/feedauth-go/internal/storage"
	"github.com/yndnr/feedauth-go/internal/storage/memory"
	"github.com/yndnr/feedauth-go/internal/telemetry/logger"
)

// manualClock fires the armed timer only when Expire is called.
type manualClock struct {
	mu   sync.Mutex
	now  time.Time
	fire func()
}

type noopTimer struct{}

func (noopTimer) Stop() bool { return true }

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) session.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fire = f
	return noopTimer{}
}

func (c *manualClock) Expire() {
	c.mu.Lock()
	f := c.fire
	c.mu.Unlock()
	if f != nil {
		f()
	}
}

type stubAuth struct {
	mu        sync.Mutex
	loginErr  error
	signupErr error
	logins    []string
	signups   []string
}

func (a *stubAuth) Login(ctx context.Context, email, password string) (*session.LoginResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logins = append(a.logins, email+"/"+password)
	if a.loginErr != nil {
		return nil, a.loginErr
	}
	return &session.LoginResult{Token: "tok-abcdefghijkl", UserID: "u1", TTL: time.Hour}, nil
}

func (a *stubAuth) Signup(ctx context.Context, email, password, name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.signups = append(a.signups, email+"/"+password+"/"+name)
	return a.signupErr
}

type harness struct {
	auth  *stubAuth
	clock *manualClock
	mgr   *session.Manager
	out   *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := storage.NewSessionStore(memory.New(), "http://localhost:8080")
	if err != nil {
		t.Fatalf("NewSessionStore: %v", err)
	}
	h := &harness{
		auth:  &stubAuth{},
		clock: &manualClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		out:   &bytes.Buffer{},
	}
	h.mgr, err = session.NewManager(h.auth, store,
		session.WithClock(h.clock),
		session.WithLogger(logger.NewNop()),
	)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(func() { h.mgr.Close() })
	return h
}

func (h *harness) repl(input string) *REPL {
	return New(h.mgr, Config{
		In:     strings.NewReader(input),
		Out:    h.out,
		Logger: logger.NewNop(),
		Server: "http://localhost:8080",
	})
}
