package console

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/atelier-commerce/atelier/internal/activity"
	"github.com/atelier-commerce/atelier/internal/api"
	"github.com/atelier-commerce/atelier/internal/token"
)

// LoginRequest represents a login form submission
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// loginPage is the login entry point. Rendering is left to the storefront
// bundle; the console serves enough for redirects to resolve.
func (s *Server) loginPage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"view":     "login",
		"returnTo": c.Query("returnTo"),
	})
}

// login exchanges credentials with the identity provider and persists the
// issued bundle through the session manager
func (s *Server) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	creds, err := s.apiClient.Login(req.Email, req.Password)
	if err != nil {
		s.logger.Warn().Err(err).Str("email", req.Email).Msg("Login failed")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	if err := s.manager.Login(*creds); err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist session"})
		return
	}

	// Land admins on the admin console, everyone else on the dashboard,
	// unless the guard recorded where the caller was headed
	location := "/dashboard"
	if s.manager.HasRole(token.RoleAdmin) {
		location = "/admin"
	}
	if returnTo := c.Query("returnTo"); returnTo != "" {
		location = returnTo
	}

	c.JSON(http.StatusOK, gin.H{"location": location})
}

// logout tears down the local session. Idempotent; no provider-side
// revocation happens here.
func (s *Server) logout(c *gin.Context) {
	s.manager.Logout()
	c.JSON(http.StatusOK, gin.H{"location": "/login"})
}

// dashboard is the user home view
func (s *Server) dashboard(c *gin.Context) {
	claims, _ := GetClaims(c)

	c.JSON(http.StatusOK, gin.H{
		"view":    "dashboard",
		"subject": claims.Subject,
		"roles":   claims.Roles(),
	})
}

// reports is an editor view living outside the admin prefix
func (s *Server) reports(c *gin.Context) {
	claims, _ := GetClaims(c)

	c.JSON(http.StatusOK, gin.H{
		"view":  "reports",
		"roles": claims.Roles(),
	})
}

// sessionLost translates an unrecoverable auth failure surfaced by an API
// call mid-view into the login redirect. The transport has already cleared
// storage and dropped the manager identity by the time the error reaches a
// handler; all that is left is sending the caller to re-authenticate.
func (s *Server) sessionLost(c *gin.Context, err error) bool {
	if !errors.Is(err, api.ErrReauthRequired) {
		return false
	}

	s.activityLog.Record(activity.Event{
		Kind:   activity.KindGuardRedirect,
		Path:   c.Request.URL.Path,
		Detail: "/login",
	})
	c.Redirect(http.StatusFound, "/login?returnTo="+url.QueryEscape(c.Request.URL.Path))
	return true
}

// adminHome is the admin landing view
func (s *Server) adminHome(c *gin.Context) {
	stats, err := s.apiClient.GetDashboardStats()
	if err != nil {
		if s.sessionLost(c, err) {
			return
		}
		s.logger.Warn().Err(err).Msg("Failed to load dashboard stats")
		c.JSON(http.StatusOK, gin.H{"view": "admin"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"view":  "admin",
		"stats": stats,
	})
}

// adminUsers is the admin user-management view
func (s *Server) adminUsers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"view": "admin/users"})
}

// adminOrders lists orders for the back office
func (s *Server) adminOrders(c *gin.Context) {
	orders, err := s.apiClient.ListOrders()
	if err != nil {
		if s.sessionLost(c, err) {
			return
		}
		s.logger.Warn().Err(err).Msg("Failed to load orders")
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load orders"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"view":   "admin/orders",
		"orders": orders,
	})
}

// adminActivity lists recent auth activity recorded by the console
func (s *Server) adminActivity(c *gin.Context) {
	records, err := s.activityLog.Recent(100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load activity"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"view":   "admin/activity",
		"events": records,
	})
}
