package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/yndnr/feedauth-go/internal/core/domain"
	"github.com/yndnr/feedauth-go/internal/core/form"
	"github.com/yndnr/feedauth-go/internal/telemetry/logger"
	"github.com/yndnr/feedauth-go/internal/telemetry/metric"
)

// SignupRedirect is where a successful signup sends the user.
const SignupRedirect = "/"

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the clock. Default: RealClock().
func WithClock(c Clock) Option {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithMetrics sets the metrics registry. Default: none.
func WithMetrics(r *metric.Registry) Option {
	return func(m *Manager) {
		m.metrics = r
	}
}

// WithLogger sets the logger. Default: logger.Default().
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithDefaultTTL sets the lifetime used when the server reports none.
// Default: domain.DefaultSessionTTL.
func WithDefaultTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.defaultTTL = d
		}
	}
}

// Manager owns the session: its state, its persistence and its expiry timer.
//
// All fields below mu are guarded by it. Requests to the Authenticator are
// made without holding mu.
type Manager struct {
	auth       Authenticator
	store      Store
	clock      Clock
	metrics    *metric.Registry
	logger     logger.Logger
	defaultTTL time.Duration

	mu            sync.Mutex
	state         State
	session       *domain.Session
	err           error
	attemptID     string
	cancelAttempt context.CancelFunc
	signingUp     bool
	timer         Timer
	timerGen      uint64
	closed        bool
	observers     map[int]Observer
	nextObserver  int
}

// NewManager creates a Manager in the Anonymous state. Call Restore once
// before first use.
func NewManager(auth Authenticator, store Store, opts ...Option) (*Manager, error) {
	if auth == nil {
		return nil, domain.ErrInvalidArgument.WithDetails("authenticator is required")
	}
	if store == nil {
		return nil, domain.ErrInvalidArgument.WithDetails("store is required")
	}

	m := &Manager{
		auth:       auth,
		store:      store,
		clock:      RealClock(),
		logger:     logger.Default(),
		defaultTTL: domain.DefaultSessionTTL,
		observers:  make(map[int]Observer),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// ============================================================================
// Restore
// ============================================================================

// Restore loads a stored session. It does nothing unless the manager is
// Anonymous.
//
// A stored session that has expired, or that is only partly present, is
// cleared. A live one is adopted with its timer armed for the remaining time.
func (m *Manager) Restore(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return domain.ErrManagerClosed
	}
	if m.state != StateAnonymous {
		m.mu.Unlock()
		return nil
	}

	err := m.restoreLocked(ctx)
	obs, view := m.observersLocked()
	m.mu.Unlock()

	notify(obs, view)
	return err
}

func (m *Manager) restoreLocked(ctx context.Context) error {
	sess, err := m.store.Load(ctx)
	switch {
	case errors.Is(err, domain.ErrPartialSession):
		m.logger.Warn("discarding incomplete stored session", "error", err)
		return m.store.Clear(ctx)
	case err != nil:
		return err
	case sess == nil:
		m.logger.Debug("no stored session")
		return nil
	}

	now := m.clock.Now()
	if sess.IsExpired(now) {
		m.logger.Info("stored session expired",
			"user_id", sess.UserID,
			"expires_at", sess.ExpiresAt)
		m.metrics.RecordLogout(metric.LogoutRestoreExpired)
		return m.store.Clear(ctx)
	}

	m.session = sess
	m.state = StateAuthenticated
	m.armTimerLocked(sess.Remaining(now))
	m.metrics.SetAuthenticated(true)

	m.logger.Info("session restored",
		"user_id", sess.UserID,
		"expires_at", sess.ExpiresAt,
		"remaining", sess.Remaining(now).Round(time.Second).String())
	return nil
}

// ============================================================================
// Login
// ============================================================================

// LoginForm submits f and logs in with its email and password fields.
// An invalid form fails with domain.ErrFormInvalid before any request.
func (m *Manager) LoginForm(ctx context.Context, f *form.Form) error {
	values, err := f.Submit()
	if err != nil {
		return err
	}
	return m.Login(ctx, domain.Credentials{
		Email:    values.Get(form.FieldEmail),
		Password: values.Get(form.FieldPassword),
	})
}

// Login authenticates with creds.
//
// Only one attempt may be outstanding: a second Login while Authenticating
// fails with domain.ErrLoginInProgress and sends nothing. Login while
// Authenticated fails with domain.ErrAlreadyAuthenticated.
//
// On failure the classified error is both returned and kept for the view
// until DismissError. If Logout or Close happens while the request is in
// flight, its response is discarded and domain.ErrLoginSuperseded returned.
func (m *Manager) Login(ctx context.Context, creds domain.Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}

	// 1. Enter Authenticating
	m.mu.Lock()
	switch {
	case m.closed:
		m.mu.Unlock()
		return domain.ErrManagerClosed
	case m.state == StateAuthenticating:
		m.mu.Unlock()
		return domain.ErrLoginInProgress
	case m.state == StateAuthenticated:
		m.mu.Unlock()
		return domain.ErrAlreadyAuthenticated
	}

	attemptID, err := domain.GenerateAttemptID()
	if err != nil {
		m.mu.Unlock()
		return err
	}
	attemptCtx, cancel := context.WithCancel(logger.WithAttemptID(ctx, attemptID))
	m.state = StateAuthenticating
	m.err = nil
	m.attemptID = attemptID
	m.cancelAttempt = cancel
	obs, view := m.observersLocked()
	m.mu.Unlock()

	notify(obs, view)
	log := m.logger.WithContext(attemptCtx)
	log.Debug("login started", "email", creds.Email)

	// 2. Ask the server
	start := m.clock.Now()
	res, authErr := m.auth.Login(attemptCtx, creds.Email, creds.Password)
	m.metrics.ObserveAuthRequest("login", m.clock.Now().Sub(start).Seconds())
	cancel()

	// 3. Apply the response if it is still wanted
	m.mu.Lock()
	if m.attemptID != attemptID || m.state != StateAuthenticating {
		m.mu.Unlock()
		m.metrics.IncStaleResponse()
		log.Info("discarding stale login response")
		return domain.ErrLoginSuperseded
	}
	m.attemptID = ""
	m.cancelAttempt = nil

	if authErr == nil {
		authErr = m.establishLocked(ctx, res)
	}
	if authErr != nil {
		derr := classifyRemote(authErr)
		m.state = StateAuthFailed
		m.err = derr
		obs, view = m.observersLocked()
		m.mu.Unlock()

		notify(obs, view)
		m.metrics.RecordLoginAttempt(domain.Classify(derr).String())
		log.Warn("login failed", "kind", domain.Classify(derr).String(), "code", domain.GetErrorCode(derr), "error", authErr)
		return derr
	}

	sess := m.session
	obs, view = m.observersLocked()
	m.mu.Unlock()

	notify(obs, view)
	m.metrics.RecordLoginAttempt("success")
	log.Info("login succeeded", "user_id", sess.UserID, "expires_at", sess.ExpiresAt)
	return nil
}

// establishLocked persists the new session and arms its timer.
func (m *Manager) establishLocked(ctx context.Context, res *LoginResult) error {
	if res == nil || res.Token == "" {
		return domain.ErrNetworkOrUnknown.WithDetails("server returned no token")
	}
	ttl := res.TTL
	if ttl <= 0 {
		ttl = m.defaultTTL
	}

	sess, err := domain.NewSession(res.Token, res.UserID, m.clock.Now(), ttl)
	if err != nil {
		return err
	}
	// Persist with a context that outlives the caller's: the triple must
	// either be fully written or not at all.
	if err := m.store.Save(context.WithoutCancel(ctx), sess); err != nil {
		return err
	}

	m.session = sess
	m.state = StateAuthenticated
	m.armTimerLocked(ttl)
	m.metrics.SetAuthenticated(true)
	return nil
}

// classifyRemote keeps taxonomy errors as they are and folds everything else
// into NetworkOrUnknown.
func classifyRemote(err error) *domain.DomainError {
	var de *domain.DomainError
	if errors.As(err, &de) {
		switch domain.Classify(de) {
		case domain.KindValidationFailed, domain.KindAuthFailed, domain.KindConflictOrOther:
			return de
		}
		if errors.Is(de, domain.ErrNetworkOrUnknown) {
			return de
		}
	}
	return domain.ErrNetworkOrUnknown.WithCause(err)
}

// ============================================================================
// Logout and expiry
// ============================================================================

// Logout ends the session from any state: it disarms the timer, abandons an
// in-flight login, clears storage and returns to Anonymous.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return domain.ErrManagerClosed
	}
	err := m.endSessionLocked(ctx, metric.LogoutUser)
	obs, view := m.observersLocked()
	m.mu.Unlock()

	notify(obs, view)
	m.logger.WithContext(ctx).Info("logged out")
	return err
}

func (m *Manager) endSessionLocked(ctx context.Context, reason string) error {
	wasAuth := m.state == StateAuthenticated

	m.disarmTimerLocked()
	if m.cancelAttempt != nil {
		m.cancelAttempt()
		m.cancelAttempt = nil
	}
	m.attemptID = ""
	m.state = StateAnonymous
	m.session = nil

	if wasAuth {
		m.metrics.RecordLogout(reason)
	}
	m.metrics.SetAuthenticated(false)
	// The state change above is already final, so the clear must not be
	// skipped for a cancelled ctx or the next process would restore it.
	return m.store.Clear(context.WithoutCancel(ctx))
}

func (m *Manager) armTimerLocked(d time.Duration) {
	m.disarmTimerLocked()
	m.timerGen++
	gen := m.timerGen
	m.timer = m.clock.AfterFunc(d, func() { m.expire(gen) })
}

func (m *Manager) disarmTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// expire runs on the timer goroutine. A timer that was disarmed after it
// started firing finds a different generation and does nothing.
func (m *Manager) expire(gen uint64) {
	m.mu.Lock()
	if m.closed || m.timer == nil || m.timerGen != gen {
		m.mu.Unlock()
		return
	}
	m.timer = nil

	var userID string
	if m.session != nil {
		userID = m.session.UserID
	}
	err := m.endSessionLocked(context.Background(), metric.LogoutExpired)
	obs, view := m.observersLocked()
	m.mu.Unlock()

	notify(obs, view)
	if err != nil {
		m.logger.Error("session expired but clearing storage failed", "user_id", userID, "error", err)
		return
	}
	m.logger.Info("session expired", "user_id", userID)
}

// ============================================================================
// Signup
// ============================================================================

// Signup submits f and creates an account from its email, password and name
// fields. It never changes the session: on success the caller is sent to
// SignupRedirect to log in.
func (m *Manager) Signup(ctx context.Context, f *form.Form) (*SignupResult, error) {
	values, err := f.Submit()
	if err != nil {
		return nil, err
	}
	data := domain.SignupData{
		Email:    values.Get(form.FieldEmail),
		Password: values.Get(form.FieldPassword),
		Name:     values.Get(form.FieldName),
	}

	m.mu.Lock()
	switch {
	case m.closed:
		m.mu.Unlock()
		return nil, domain.ErrManagerClosed
	case m.signingUp:
		m.mu.Unlock()
		return nil, domain.ErrSignupInProgress
	}
	m.signingUp = true
	m.err = nil
	obs, view := m.observersLocked()
	m.mu.Unlock()
	notify(obs, view)

	start := m.clock.Now()
	err = m.auth.Signup(ctx, data.Email, data.Password, data.Name)
	m.metrics.ObserveAuthRequest("signup", m.clock.Now().Sub(start).Seconds())

	m.mu.Lock()
	m.signingUp = false
	var derr *domain.DomainError
	if err != nil {
		derr = classifyRemote(err)
		m.err = derr
	}
	obs, view = m.observersLocked()
	m.mu.Unlock()
	notify(obs, view)

	log := m.logger.WithContext(ctx)
	if derr != nil {
		m.metrics.RecordSignupAttempt(domain.Classify(derr).String())
		log.Warn("signup failed", "email", data.Email, "kind", domain.Classify(derr).String(), "code", domain.GetErrorCode(derr), "error", err)
		return nil, derr
	}
	m.metrics.RecordSignupAttempt("success")
	log.Info("account created", "email", data.Email)
	return &SignupResult{Redirect: SignupRedirect}, nil
}

// ============================================================================
// View
// ============================================================================

// DismissError clears the stored error. The state is left as it is.
func (m *Manager) DismissError() {
	m.mu.Lock()
	if m.err == nil {
		m.mu.Unlock()
		return
	}
	m.err = nil
	obs, view := m.observersLocked()
	m.mu.Unlock()
	notify(obs, view)
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// View returns the current view state.
func (m *Manager) View() ViewState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.viewLocked()
}

// Session returns a copy of the current session, or nil.
func (m *Manager) Session() *domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.Clone()
}

// Remaining reports the time left on the current session.
func (m *Manager) Remaining() (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateAuthenticated || m.session == nil {
		return 0, false
	}
	return m.session.Remaining(m.clock.Now()), true
}

// Subscribe registers obs for every transition. The returned func removes it.
// Observers run outside the manager's lock and may call back into it.
func (m *Manager) Subscribe(obs Observer) (cancel func()) {
	m.mu.Lock()
	id := m.nextObserver
	m.nextObserver++
	m.observers[id] = obs
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.observers, id)
		m.mu.Unlock()
	}
}

// Close disarms the timer and abandons any in-flight login without touching
// storage, so the session can be restored by the next process.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.disarmTimerLocked()
	if m.cancelAttempt != nil {
		m.cancelAttempt()
		m.cancelAttempt = nil
	}
	m.attemptID = ""
	m.observers = make(map[int]Observer)
	return nil
}

func (m *Manager) viewLocked() ViewState {
	v := ViewState{
		State:       m.state,
		IsAuth:      m.state == StateAuthenticated,
		AuthLoading: m.state == StateAuthenticating || m.signingUp,
		Error:       m.err,
	}
	if m.session != nil {
		v.UserID = m.session.UserID
		v.Token = m.session.Token
		v.ExpiresAt = m.session.ExpiresAt
	}
	return v
}

func (m *Manager) observersLocked() ([]Observer, ViewState) {
	if len(m.observers) == 0 {
		return nil, ViewState{}
	}
	ids := make([]int, 0, len(m.observers))
	for id := range m.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids) // registration order
	obs := make([]Observer, len(ids))
	for i, id := range ids {
		obs[i] = m.observers[id]
	}
	return obs, m.viewLocked()
}

func notify(obs []Observer, v ViewState) {
	for _, o := range obs {
		o(v)
	}
}
