// Package activity records the auth events a back-office operator cares
// about: logins, logouts, token refreshes, expired sessions, and guard
// redirects. Recording is best-effort; a sink failure is logged by its
// implementation and never interrupts authentication.
package activity

// Event kinds recorded by the session manager, the request transport, and
// the route guard middleware.
const (
	KindLogin          = "login"
	KindLogout         = "logout"
	KindRefresh        = "refresh"
	KindSessionExpired = "session_expired"
	KindGuardRedirect  = "guard_redirect"
)

// Event describes a single auth event
type Event struct {
	Kind   string
	Email  string
	Path   string
	Detail string
}

// Sink consumes auth events. Implementations must be safe for concurrent
// use and must not return recording failures to the caller.
type Sink interface {
	Record(event Event)
}

// Nop discards all events
type Nop struct{}

var _ Sink = Nop{}

func (Nop) Record(Event) {}
