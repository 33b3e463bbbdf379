package session

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/atelier-commerce/atelier/internal/activity"
	"github.com/atelier-commerce/atelier/internal/token"
	"github.com/atelier-commerce/atelier/internal/token/tokentest"
)

// recordingSink captures audit events for assertions
type recordingSink struct {
	events []activity.Event
}

func (s *recordingSink) Record(event activity.Event) {
	s.events = append(s.events, event)
}

func (s *recordingSink) kinds() []string {
	kinds := make([]string, len(s.events))
	for i, e := range s.events {
		kinds[i] = e.Kind
	}
	return kinds
}

func newTestManager(t *testing.T) (*Manager, Store) {
	t.Helper()

	store := NewFileStore(filepath.Join(t.TempDir(), "session.json"))
	return NewManager(store), store
}

func TestCheckAuthWithNoSession(t *testing.T) {
	manager, _ := newTestManager(t)
	manager.Initialize()

	if _, ok := manager.Identity(); ok {
		t.Fatal("expected no identity at cold start")
	}
}

func TestLoginDerivesIdentityFromStorage(t *testing.T) {
	manager, _ := newTestManager(t)

	creds := testCredentials()
	creds.AccessToken = tokentest.Make(time.Now().Add(time.Hour), token.RoleAdmin, token.RoleEditor)

	if err := manager.Login(creds); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	id, ok := manager.Identity()
	if !ok {
		t.Fatal("expected identity after login")
	}

	if id.Email != creds.User.Email {
		t.Errorf("expected email %q, got %q", creds.User.Email, id.Email)
	}
	if id.Token != creds.AccessToken {
		t.Error("expected identity to carry the access token")
	}
	if !id.IsAdmin {
		t.Error("expected admin identity")
	}
	if len(id.Roles) != 2 {
		t.Errorf("expected 2 roles, got %v", id.Roles)
	}
}

func TestCheckAuthExpiredTokenClearsStorage(t *testing.T) {
	manager, store := newTestManager(t)

	creds := testCredentials()
	creds.AccessToken = tokentest.Make(time.Now().Add(-time.Minute), token.RoleEditor)
	if err := store.Save(creds); err != nil {
		t.Fatalf("failed to seed store: %v", err)
	}

	manager.CheckAuth()

	if _, ok := manager.Identity(); ok {
		t.Fatal("expected no identity after expiry")
	}
	if _, ok := store.Load(); ok {
		t.Fatal("expected expired session to be cleared from storage")
	}
}

func TestCheckAuthMalformedTokenIsNoSession(t *testing.T) {
	manager, store := newTestManager(t)

	creds := testCredentials()
	creds.AccessToken = "not-a-token"
	if err := store.Save(creds); err != nil {
		t.Fatalf("failed to seed store: %v", err)
	}

	manager.CheckAuth()

	if _, ok := manager.Identity(); ok {
		t.Fatal("expected no identity for a malformed token")
	}
}

func TestHasRole(t *testing.T) {
	manager, _ := newTestManager(t)

	creds := testCredentials()
	creds.AccessToken = tokentest.Make(time.Now().Add(time.Hour), token.RoleEditor, token.RoleSupport)
	if err := manager.Login(creds); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	for _, role := range []string{token.RoleEditor, token.RoleSupport} {
		if !manager.HasRole(role) {
			t.Errorf("expected HasRole(%s) to be true", role)
		}
	}
	if manager.HasRole(token.RoleAdmin) {
		t.Error("expected HasRole(ADMIN) to be false")
	}
}

func TestHasRoleWithoutIdentity(t *testing.T) {
	manager, _ := newTestManager(t)
	manager.Initialize()

	// False, not an error
	if manager.HasRole(token.RoleAdmin) {
		t.Error("expected HasRole to be false with no identity")
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	manager, store := newTestManager(t)

	creds := testCredentials()
	creds.AccessToken = tokentest.Make(time.Now().Add(time.Hour), token.RoleEditor)
	if err := manager.Login(creds); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	manager.Logout()
	if _, ok := manager.Identity(); ok {
		t.Fatal("expected no identity after logout")
	}
	if _, ok := store.Load(); ok {
		t.Fatal("expected storage cleared after logout")
	}

	// Second logout must not panic or resurrect anything
	manager.Logout()
	if _, ok := manager.Identity(); ok {
		t.Fatal("expected no identity after double logout")
	}
}

func TestLoginAuditsOnlyEstablishedSessions(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "session.json"))
	sink := &recordingSink{}
	manager := NewManager(store, WithActivitySink(sink))

	// An expired bundle never audits as a login; it records the expiry
	creds := testCredentials()
	creds.AccessToken = tokentest.Make(time.Now().Add(-time.Hour), token.RoleEditor)
	if err := manager.Login(creds); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	for _, e := range sink.events {
		if e.Kind == activity.KindLogin {
			t.Errorf("expected no login event for an expired bundle, got %v", sink.kinds())
		}
	}
	if len(sink.events) != 1 || sink.events[0].Kind != activity.KindSessionExpired {
		t.Errorf("expected a single session_expired event, got %v", sink.kinds())
	}

	// A live bundle does
	creds.AccessToken = tokentest.Make(time.Now().Add(time.Hour), token.RoleEditor)
	if err := manager.Login(creds); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	last := sink.events[len(sink.events)-1]
	if last.Kind != activity.KindLogin {
		t.Errorf("expected a login event for a live bundle, got %v", sink.kinds())
	}
	if last.Email != creds.User.Email {
		t.Errorf("expected login event for %q, got %q", creds.User.Email, last.Email)
	}
}

func TestCheckAuthRespectsInjectedClock(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "session.json"))

	exp := time.Now().Add(time.Hour)
	creds := testCredentials()
	creds.AccessToken = tokentest.Make(exp, token.RoleEditor)
	if err := store.Save(creds); err != nil {
		t.Fatalf("failed to seed store: %v", err)
	}

	// A clock past the expiry sees a dead session
	manager := NewManager(store, WithClock(func() time.Time { return exp.Add(time.Minute) }))
	manager.CheckAuth()
	if _, ok := manager.Identity(); ok {
		t.Fatal("expected expired identity under future clock")
	}
}
