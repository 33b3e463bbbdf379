// Package guard decides whether a protected back-office location renders or
// redirects. It is evaluated on every visit to a guarded path, reading the
// session store fresh each time, so a session torn down elsewhere takes
// effect on the next navigation.
package guard

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/atelier-commerce/atelier/internal/session"
	"github.com/atelier-commerce/atelier/internal/token"
)

// Paths are the well-known navigation targets
type Paths struct {
	Login       string
	Dashboard   string
	AdminPrefix string
}

// DefaultPaths returns the standard back-office layout
func DefaultPaths() Paths {
	return Paths{
		Login:       "/login",
		Dashboard:   "/dashboard",
		AdminPrefix: "/admin",
	}
}

// Route describes a guarded location. RequiredRoles may be empty, meaning
// any valid session is enough. AutoRedirect steers admins away from the
// plain dashboard and non-admins away from admin paths.
type Route struct {
	Path          string
	RequiredRoles []string
	AutoRedirect  bool
}

// Decision is the guard verdict. Either Allow is set and Claims carries the
// decoded token for the view, or Location names the redirect target.
// ReturnTo is set on login redirects so the login flow can send the caller
// back after authenticating.
type Decision struct {
	Allow    bool
	Claims   *token.Claims
	Location string
	ReturnTo string
}

// Guard evaluates routes against the session store
type Guard struct {
	store  session.Store
	paths  Paths
	now    func() time.Time
	logger zerolog.Logger
}

// New creates a guard over the given store with default paths
func New(store session.Store) *Guard {
	return &Guard{
		store:  store,
		paths:  DefaultPaths(),
		now:    time.Now,
		logger: zerolog.Nop(),
	}
}

// WithPaths overrides the navigation targets
func (g *Guard) WithPaths(paths Paths) *Guard {
	g.paths = paths
	return g
}

// WithClock overrides the time source, used by tests
func (g *Guard) WithClock(now func() time.Time) *Guard {
	g.now = now
	return g
}

// WithLogger sets the guard logger
func (g *Guard) WithLogger(logger zerolog.Logger) *Guard {
	g.logger = logger
	return g
}

// Evaluate runs the guard rules in fixed order; the first matching rule
// wins. Note the ordering consequence: the auto-redirect rules fire before
// the required-roles rule, so a path both under the admin prefix and carrying
// role requirements bounces on the prefix first.
func (g *Guard) Evaluate(route Route) Decision {
	creds, _ := g.store.Load()
	claims, state := session.Evaluate(creds, g.now())

	switch state {
	case session.StateAbsent:
		// Rule 1: nobody logged in, go authenticate, come back after
		return Decision{Location: g.paths.Login, ReturnTo: route.Path}

	case session.StateMalformed, session.StateExpired:
		// Rule 2: an unusable token is an implicit logout. The redirect
		// stands even when the clear fails; the next evaluation retries it.
		if err := g.store.Clear(); err != nil {
			g.logger.Warn().Err(err).Str("state", state.String()).Msg("Failed to clear unusable session")
		}
		return Decision{Location: g.paths.Login, ReturnTo: route.Path}
	}

	isAdmin := claims.IsAdmin()

	if route.AutoRedirect {
		// Rule 3: admins land on the admin console, not the user dashboard
		if isAdmin && route.Path == g.paths.Dashboard {
			return Decision{Location: g.paths.AdminPrefix}
		}

		// Rule 4: non-admins never see admin paths
		if !isAdmin && underPrefix(route.Path, g.paths.AdminPrefix) {
			return Decision{Location: g.paths.Dashboard}
		}
	}

	// Rule 5: insufficient role bounces to the caller's own home, not login
	if len(route.RequiredRoles) > 0 && !claims.HasAnyRole(route.RequiredRoles...) {
		if isAdmin {
			return Decision{Location: g.paths.AdminPrefix}
		}
		return Decision{Location: g.paths.Dashboard}
	}

	// Rule 6: render, handing the decoded claims to the view
	return Decision{Allow: true, Claims: claims}
}

func underPrefix(path, prefix string) bool {
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}
