package console

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/atelier-commerce/atelier/internal/activity"
	"github.com/atelier-commerce/atelier/internal/guard"
	"github.com/atelier-commerce/atelier/internal/token"
)

const claimsContextKey = "claims"

// Protected wraps a back-office view in the route guard. The guard runs on
// every request to the route, not once, so a session torn down between
// navigations redirects on the next visit. Role auto-redirection is always
// on for console views.
func (s *Server) Protected(requiredRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision := s.guard.Evaluate(guard.Route{
			Path:          c.Request.URL.Path,
			RequiredRoles: requiredRoles,
			AutoRedirect:  true,
		})

		if decision.Allow {
			setClaims(c, decision.Claims)
			c.Next()
			return
		}

		s.activityLog.Record(activity.Event{
			Kind:   activity.KindGuardRedirect,
			Path:   c.Request.URL.Path,
			Detail: decision.Location,
		})

		location := decision.Location
		if decision.ReturnTo != "" {
			location += "?returnTo=" + url.QueryEscape(decision.ReturnTo)
		}

		c.Redirect(http.StatusFound, location)
		c.Abort()
	}
}

func setClaims(c *gin.Context, claims *token.Claims) {
	c.Set(claimsContextKey, claims)
}

// GetClaims returns the decoded claims the guard attached to the request
func GetClaims(c *gin.Context) (*token.Claims, bool) {
	value, exists := c.Get(claimsContextKey)
	if !exists {
		return nil, false
	}

	claims, ok := value.(*token.Claims)
	return claims, ok
}
