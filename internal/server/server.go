// Package server is the reference vidflow API: account lifecycle, token
// issuing and the video catalog.
package server

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
	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vidflow-dev/vidflow/internal/auth"
	"github.com/vidflow-dev/vidflow/internal/config"
	"github.com/vidflow-dev/vidflow/internal/forms"
	"github.com/vidflow-dev/vidflow/internal/models"
)

// Server represents the HTTP server
type Server struct {
	router    *gin.Engine
	db        *gorm.DB
	config    *config.Config
	logger    zerolog.Logger
	validator *forms.Validator
	issuer    *auth.Issuer
	mailer    Mailer
	clock     clockwork.Clock
	scheduler *cron.Cron
	version   string
}

// Option customizes a Server built by NewWithDB
type Option func(*Server)

// WithClock replaces the wall clock used for token and link expiry
func WithClock(clock clockwork.Clock) Option {
	return func(s *Server) {
		s.clock = clock
	}
}

// WithMailer replaces the logging mailer
func WithMailer(m Mailer) Option {
	return func(s *Server) {
		s.mailer = m
	}
}

// WithVersion sets the version reported by /health
func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// New creates a new server instance
func New(cfg *config.Config, zlog zerolog.Logger, version string) (*Server, error) {
	// Initialize database with production settings
	db, err := initDatabase(cfg, zlog)
	if err != nil {
		return nil, err
	}

	return NewWithDB(db, cfg, zlog, WithVersion(version))
}

// NewWithDB creates a server on an already opened database. Migrations and
// catalog seeding run here.
func NewWithDB(db *gorm.DB, cfg *config.Config, zlog zerolog.Logger, opts ...Option) (*Server, error) {
	// Run database migrations
	if err := models.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	server := &Server{
		db:        db,
		config:    cfg,
		logger:    zlog,
		validator: forms.New(),
		clock:     clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(server)
	}
	if server.mailer == nil {
		server.mailer = NewLogMailer(zlog)
	}

	server.issuer = auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL, server.clock)

	if cfg.Media.SeedFile != "" {
		if err := server.seedCatalog(cfg.Media.SeedFile); err != nil {
			return nil, err
		}
	}

	// Setup router
	server.setupRouter()

	return server, nil
}

// initDatabase initializes the database connection with production settings
func initDatabase(cfg *config.Config, zlog zerolog.Logger) (*gorm.DB, error) {
	const (
		maxOpenConns    = 8
		maxIdleConns    = 4
		connMaxLifetime = 300  // 5 minutes
		busyTimeout     = 5000 // 5 seconds
	)

	// Open database connection
	db, err := gorm.Open(sqlite.Open(cfg.Database.URL), &gorm.Config{
		Logger: logger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			logger.Config{
				LogLevel:                  logger.Error,
				IgnoreRecordNotFoundError: true,
				SlowThreshold:             200 * time.Millisecond,
			},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Get underlying sql.DB to configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(connMaxLifetime) * time.Second)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// WAL mode must be set first
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeout),
		"PRAGMA foreign_keys=1",
	}

	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			zlog.Warn().Str("pragma", pragma).Err(err).Msg("Failed to apply pragma")
		}
	}

	return db, nil
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()

	// Add middleware
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())

	origins := s.config.HTTP.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}
	s.router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
	})

	// Health check endpoint (no auth required)
	s.router.GET("/health", s.healthCheck)

	api := s.router.Group("/api")

	// Public account endpoints
	api.POST("/register/", s.register)
	api.POST("/login/", s.login)
	api.POST("/token/refresh/", s.refreshToken)
	api.POST("/password_reset/", s.requestPasswordReset)
	api.POST("/password_confirm/:uid/:token/", s.confirmPasswordReset)
	api.GET("/activate/:uid/:token/", s.activate)

	// Authenticated routes
	protected := api.Group("")
	protected.Use(s.JWTAuthMiddleware())
	{
		protected.GET("/user/", s.getCurrentUser)
		protected.GET("/video/", s.listVideos)
		protected.GET("/video/:id/:resolution/:file", s.serveStream)
	}
}

// loggingMiddleware creates a custom logging middleware using zerolog
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start)

		s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"timestamp": s.clock.Now().UTC(),
		"service":   "vidflow-api",
		"version":   s.version,
	})
}

// Handler returns the HTTP handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves HTTP until SIGINT/SIGTERM, then shuts down gracefully
func (s *Server) Start() error {
	port := ":" + s.config.HTTP.Port

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	srv := &http.Server{
		Addr:              port,
		Handler:           s.router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	if err := s.startJanitor(); err != nil {
		return err
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info().Str("port", port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-sigChan:
		s.logger.Info().Msg("Received shutdown signal, shutting down gracefully...")
	case err := <-errChan:
		s.logger.Error().Err(err).Msg("HTTP server error")
		s.stopJanitor()
		return err
	}

	s.stopJanitor()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	s.logger.Info().Msg("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down HTTP server")
		return err
	}

	// Close database connection to flush WAL writes
	if sqlDB, err := s.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			s.logger.Error().Err(err).Msg("Error closing database")
		}
	}

	s.logger.Info().Msg("Server shutdown complete")
	return nil
}
