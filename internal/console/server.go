// Package console serves the local back-office shell. It is a single-user
// server bound to loopback: every route decision runs through the route
// guard against the same session store the CLI writes, so logging in from
// either surface is visible to both.
package console

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/atelier-commerce/atelier/internal/activity"
	"github.com/atelier-commerce/atelier/internal/api"
	"github.com/atelier-commerce/atelier/internal/config"
	"github.com/atelier-commerce/atelier/internal/guard"
	"github.com/atelier-commerce/atelier/internal/session"
	"github.com/atelier-commerce/atelier/internal/token"
)

// Server represents the back-office console server
type Server struct {
	router      *gin.Engine
	db          *gorm.DB
	config      *config.Config
	logger      zerolog.Logger
	validator   *validator.Validate
	store       session.Store
	manager     *session.Manager
	guard       *guard.Guard
	apiClient   *api.Client
	activityLog *activity.Log
	cron        *cron.Cron
	version     string
}

// New creates a new console server instance
func New(cfg *config.Config, zlog zerolog.Logger, version string) (*Server, error) {
	validate := validator.New()
	if err := validate.Var(cfg.API.URL, "required,url"); err != nil {
		return nil, fmt.Errorf("invalid API URL %q: %w", cfg.API.URL, err)
	}

	db, err := initDatabase(cfg)
	if err != nil {
		return nil, err
	}

	activityLog, err := activity.NewLog(db, zlog)
	if err != nil {
		return nil, err
	}

	var store session.Store
	if cfg.Session.File != "" {
		store = session.NewFileStore(cfg.Session.File)
	} else {
		store = session.NewKeyringStore()
	}

	manager := session.NewManager(store,
		session.WithLogger(zlog),
		session.WithActivitySink(activityLog),
	)
	manager.Initialize()

	// When the transport tears the session down (refresh rejected or no
	// refresh token) the manager must drop its identity too; handlers then
	// translate the failure into the login redirect.
	apiClient := api.New(cfg.API.URL, store,
		api.WithTransportLogger(zlog),
		api.WithTransportSink(activityLog),
		api.WithSessionEndHook(func() { manager.CheckAuth() }),
	)

	server := &Server{
		db:          db,
		config:      cfg,
		logger:      zlog,
		validator:   validate,
		store:       store,
		manager:     manager,
		guard:       guard.New(store).WithLogger(zlog),
		apiClient:   apiClient,
		activityLog: activityLog,
		cron:        cron.New(),
		version:     version,
	}

	server.setupRouter()
	server.setupPruneSchedule()

	return server, nil
}

// initDatabase opens the local sqlite database holding the activity log
func initDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(cfg.Activity.DatabaseURL), &gorm.Config{
		Logger: gormlogger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			gormlogger.Config{
				LogLevel:                  gormlogger.Error,
				IgnoreRecordNotFoundError: true,
				SlowThreshold:             200 * time.Millisecond,
			},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())

	// CORS for the storefront dev server
	s.router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{s.config.Console.CORSOrigin},
		AllowMethods:     []string{"GET", "POST", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint (no auth required)
	s.router.GET("/health", s.healthCheck)

	// Login entry point (no auth required)
	s.router.GET("/login", s.loginPage)
	s.router.POST("/login", s.login)
	s.router.POST("/logout", s.logout)

	// Guarded back-office views. Auto-redirect is on for the whole shell:
	// admins are steered off the plain dashboard and non-admins off the
	// admin prefix before any per-route role requirement is considered.
	s.router.GET("/dashboard", s.Protected(), s.dashboard)
	s.router.GET("/reports", s.Protected(token.RoleEditor), s.reports)

	adminViews := s.router.Group("/admin")
	adminViews.Use(s.Protected())
	{
		adminViews.GET("", s.adminHome)
		adminViews.GET("/users", s.adminUsers)
		adminViews.GET("/orders", s.adminOrders)
		adminViews.GET("/activity", s.adminActivity)
	}
}

// setupPruneSchedule schedules the periodic activity log prune
func (s *Server) setupPruneSchedule() {
	retention := time.Duration(s.config.Activity.RetentionDays) * 24 * time.Hour

	_, err := s.cron.AddFunc(s.config.Activity.PruneSchedule, func() {
		if err := s.activityLog.Prune(retention); err != nil {
			s.logger.Warn().Err(err).Msg("Activity log prune failed")
		}
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("schedule", s.config.Activity.PruneSchedule).
			Msg("Invalid prune schedule, activity log will not be pruned")
	}
}

// loggingMiddleware creates a custom logging middleware using zerolog
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"timestamp": time.Now().UTC(),
		"service":   "atelier-console",
		"version":   s.version,
	})
}

// Router exposes the configured router, used by tests
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the console server and blocks until shutdown
func (s *Server) Start() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	srv := &http.Server{
		Addr:              s.config.Console.Addr,
		Handler:           s.router,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.cron.Start()

	go func() {
		s.logger.Info().Str("addr", s.config.Console.Addr).Msg("Starting console server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Console server error")
		}
	}()

	<-sigChan
	s.logger.Info().Msg("Received shutdown signal, shutting down gracefully...")

	cronCtx := s.cron.Stop()
	<-cronCtx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down console server")
		return err
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			s.logger.Error().Err(err).Msg("Error closing database")
		}
	}

	s.logger.Info().Msg("Console shutdown complete")
	return nil
}
