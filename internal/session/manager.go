package session

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/atelier-commerce/atelier/internal/activity"
)

// Identity is the in-memory view of the authenticated user, recomputed from
// the store whenever session state changes. It is a derived value: the store
// remains the source of truth.
type Identity struct {
	User
	Token   string
	Roles   []string
	IsAdmin bool
}

// Manager derives the current identity from the Store. It holds no state the
// store does not: CheckAuth re-reads and re-decodes on every call, so the
// manager and the store can never diverge.
//
// A Manager must be constructed explicitly and passed to whoever needs it;
// construction has no side effects. Call Initialize once during application
// bootstrap so the session is settled before the first access decision.
type Manager struct {
	store  Store
	now    func() time.Time
	logger zerolog.Logger
	sink   activity.Sink

	mu       sync.RWMutex
	identity *Identity
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithClock overrides the time source, used by tests
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// WithLogger sets the manager logger
func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithActivitySink sets the audit sink for login/logout/expiry events
func WithActivitySink(sink activity.Sink) ManagerOption {
	return func(m *Manager) {
		m.sink = sink
	}
}

// NewManager creates a session manager backed by the given store
func NewManager(store Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:  store,
		now:    time.Now,
		logger: zerolog.Nop(),
		sink:   activity.Nop{},
	}

	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize settles the session once at application bootstrap. It replaces
// any implicit construction-time check so callers control exactly when the
// first storage read happens.
func (m *Manager) Initialize() {
	m.CheckAuth()
}

// CheckAuth re-derives the identity from stored credentials. An expired
// token is handled as a logout: storage is cleared and the identity dropped.
// Callers cannot distinguish "session expired" from "never logged in"; both
// surface as no identity.
func (m *Manager) CheckAuth() {
	creds, ok := m.store.Load()
	if !ok {
		m.setIdentity(nil)
		return
	}

	claims, state := Evaluate(creds, m.now())
	switch state {
	case StateValid:
		m.setIdentity(&Identity{
			User:    creds.User,
			Token:   creds.AccessToken,
			Roles:   claims.Roles(),
			IsAdmin: claims.IsAdmin(),
		})
	case StateExpired:
		m.logger.Debug().Str("email", creds.User.Email).Msg("Session expired, clearing stored credentials")
		if err := m.store.Clear(); err != nil {
			m.logger.Warn().Err(err).Msg("Failed to clear expired session")
		}
		m.sink.Record(activity.Event{Kind: activity.KindSessionExpired, Email: creds.User.Email})
		m.setIdentity(nil)
	default:
		// Absent or malformed: treated as "no session", never an error
		m.setIdentity(nil)
	}
}

// Login persists the credential bundle and re-derives the identity from
// storage rather than trusting the bundle directly. Only a bundle that
// actually establishes an identity audits as a login; a dead bundle has
// already been recorded as expired (or dropped silently) by CheckAuth.
func (m *Manager) Login(creds Credentials) error {
	if err := m.store.Save(creds); err != nil {
		return err
	}

	m.CheckAuth()
	if _, ok := m.Identity(); ok {
		m.sink.Record(activity.Event{Kind: activity.KindLogin, Email: creds.User.Email})
	}
	return nil
}

// Logout clears stored credentials and drops the identity. It is idempotent
// and performs no server-side revocation; the refresh token simply ages out
// on the identity provider.
func (m *Manager) Logout() {
	var email string
	if id, ok := m.Identity(); ok {
		email = id.Email
	}

	if err := m.store.Clear(); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to clear session on logout")
	}
	m.setIdentity(nil)

	if email != "" {
		m.sink.Record(activity.Event{Kind: activity.KindLogout, Email: email})
	}
}

// Identity returns a snapshot of the current identity, if any
func (m *Manager) Identity() (*Identity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.identity == nil {
		return nil, false
	}

	snapshot := *m.identity
	return &snapshot, true
}

// HasRole reports whether the current identity claims the role. It returns
// false, not an error, when nobody is logged in.
func (m *Manager) HasRole(role string) bool {
	id, ok := m.Identity()
	if !ok {
		return false
	}

	for _, r := range id.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (m *Manager) setIdentity(id *Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identity = id
}
