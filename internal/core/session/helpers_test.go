package session

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/feedauth-go/internal/core/form"
	"github.com/yndnr/feedauth-go/internal/storage"
	"github.com/yndnr/feedauth-go/internal/storage/memory"
	"github.com/yndnr/feedauth-go/internal/telemetry/logger"
	"github.com/yndnr/feedauth-go/internal/telemetry/metric"
)

var epoch = time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)

// fakeClock fires timers only when Advance is called.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	when    time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: epoch}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, when: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward and runs every timer that came due, in order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.when.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].when.Before(due[j].when) })
	for _, t := range due {
		t.f()
	}
}

// Armed returns the number of timers that are neither stopped nor fired.
func (c *fakeClock) Armed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// fakeAuth is a scripted Authenticator.
type fakeAuth struct {
	mu          sync.Mutex
	loginCalls  int
	signupCalls int

	loginFn  func(ctx context.Context, email, password string) (*LoginResult, error)
	signupFn func(ctx context.Context, email, password, name string) error
}

func (a *fakeAuth) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	a.mu.Lock()
	a.loginCalls++
	fn := a.loginFn
	a.mu.Unlock()
	if fn == nil {
		return &LoginResult{Token: "tok-" + email, UserID: "user-1"}, nil
	}
	return fn(ctx, email, password)
}

func (a *fakeAuth) Signup(ctx context.Context, email, password, name string) error {
	a.mu.Lock()
	a.signupCalls++
	fn := a.signupFn
	a.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(ctx, email, password, name)
}

func (a *fakeAuth) LoginCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loginCalls
}

func (a *fakeAuth) SignupCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.signupCalls
}

// blockingLogin makes Login wait until release is closed, then return res/err.
// started receives once the request is in flight.
func blockingLogin(res *LoginResult, err error) (fn func(context.Context, string, string) (*LoginResult, error), started chan struct{}, release chan struct{}) {
	started = make(chan struct{}, 1)
	release = make(chan struct{})
	fn = func(ctx context.Context, _, _ string) (*LoginResult, error) {
		started <- struct{}{}
		<-release
		return res, err
	}
	return fn, started, release
}

type testEnv struct {
	m       *Manager
	auth    *fakeAuth
	clock   *fakeClock
	kv      *memory.Store
	store   *storage.SessionStore
	metrics *metric.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		auth:    &fakeAuth{},
		clock:   newFakeClock(),
		kv:      memory.New(),
		metrics: metric.NewRegistry(),
	}
	st, err := storage.NewSessionStore(env.kv, "http://localhost:8080")
	if err != nil {
		t.Fatal(err)
	}
	env.store = st

	env.m, err = NewManager(env.auth, st,
		WithClock(env.clock),
		WithMetrics(env.metrics),
		WithLogger(logger.NewNop()),
	)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	t.Cleanup(func() { _ = env.m.Close() })
	return env
}

// storedKeys counts the session keys present in the KV engine.
func (e *testEnv) storedKeys(t *testing.T) int {
	t.Helper()
	stats, err := e.kv.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return int(stats.TotalKeys)
}

func (e *testEnv) metricsText(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	e.metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func (e *testEnv) assertMetric(t *testing.T, line string) {
	t.Helper()
	if !strings.Contains(e.metricsText(t), line) {
		t.Errorf("expected metric line %q", line)
	}
}

func filledLoginForm(t *testing.T, email, password string) *form.Form {
	t.Helper()
	f := form.NewLoginForm()
	if err := f.UpdateField(form.FieldEmail, email); err != nil {
		t.Fatal(err)
	}
	if err := f.UpdateField(form.FieldPassword, password); err != nil {
		t.Fatal(err)
	}
	return f
}

func filledSignupForm(t *testing.T, email, name, password string) *form.Form {
	t.Helper()
	f := form.NewSignupForm()
	for k, v := range map[string]string{form.FieldEmail: email, form.FieldName: name, form.FieldPassword: password} {
		if err := f.UpdateField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	return f
}
