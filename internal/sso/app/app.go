package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/crosstab/internal/sso/http"
	"github.com/aussiebroadwan/crosstab/internal/sso/service"
	"github.com/aussiebroadwan/crosstab/internal/sso/store"
	"github.com/aussiebroadwan/crosstab/internal/sso/store/drivers/sqlite"
	"github.com/aussiebroadwan/crosstab/pkg/cryptox"
	"github.com/aussiebroadwan/crosstab/pkg/jwtx"
	"github.com/aussiebroadwan/crosstab/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application wires one crosstab instance: a primary that signs users in and
// mints handoff tokens, or a satellite that recognises them.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db         store.Store
	keyManager *jwtx.KeyManager // primary only
	classifier *service.Classifier

	// Services
	sessionService      *service.SessionService
	userService         *service.UserService
	handoffService      *service.HandoffService
	bootstrapService    *service.BootstrapService
	mfaService          *service.MFAService
	keyRotationService  *service.KeyRotationService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized. A
// configuration error here is fatal: main exits rather than serving a
// broken topology.
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "crosstab",
			Version: BuildVersion,
			Role:    cfg.Role,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Set pepper path for password hashing
	cryptox.SetPepperPath(cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initClassifier(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	if err := app.initServices(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	if err := app.initHTTP(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("crosstab starting",
		"role", app.cfg.Role,
		"domain", app.cfg.Domain,
		"port", app.cfg.Port,
		"version", BuildVersion,
	)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down crosstab...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("crosstab stopped")
	return nil
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initClassifier builds the domain classifier from static config and
// fail-fasts on a topology the guard could not serve.
func (app *Application) initClassifier() error {
	c := &service.Classifier{
		Satellite: app.cfg.Role == RoleSatellite,
		Domain:    app.cfg.Domain,
	}

	switch {
	case app.cfg.SignInURL != "":
		u, err := url.Parse(app.cfg.SignInURL)
		if err != nil {
			return &service.ConfigurationError{Field: "SSO_SIGN_IN_URL", Reason: err.Error()}
		}
		c.SignInURL = u
	case app.cfg.Role == RolePrimary:
		u, err := url.Parse(app.cfg.Domain + "/v1/sign-in")
		if err != nil {
			return &service.ConfigurationError{Field: "SSO_DOMAIN", Reason: err.Error()}
		}
		c.SignInURL = u
	}

	if err := c.Validate(app.cfg.Env); err != nil {
		return err
	}

	app.classifier = c
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() error {
	app.sessionService = &service.SessionService{
		Store: app.db,
		TTL:   app.cfg.SessionTTL,
	}

	switch app.cfg.Role {
	case RolePrimary:
		keyManager, err := InitHandoffKeys(app.cfg, app.logger)
		if err != nil {
			return fmt.Errorf("failed to initialize handoff keys: %w", err)
		}
		app.keyManager = keyManager

		app.handoffService = &service.HandoffService{
			Store:          app.db,
			Sessions:       app.sessionService,
			Keys:           keyManager,
			Issuer:         app.cfg.handoffIssuer(),
			AllowedOrigins: app.cfg.SatelliteOrigins,
			TTL:            app.cfg.HandoffTTL,
		}

		app.userService = &service.UserService{Store: app.db}
		app.bootstrapService = &service.BootstrapService{
			Store: app.db,
			Token: app.cfg.BootstrapToken,
		}
		app.mfaService = &service.MFAService{
			Store:  app.db,
			Issuer: "Crosstab",
		}
		app.keyRotationService = &service.KeyRotationService{Keys: keyManager}

	case RoleSatellite:
		app.sessionService.TTL = app.cfg.DerivedSessionTTL

		remote := jwtx.NewRemoteKeySet(
			app.cfg.jwksURL(),
			app.cfg.JWKSFetchTimeout,
			app.cfg.JWKSRefreshTTL,
		)
		app.handoffService = &service.HandoffService{
			Store:    app.db,
			Sessions: app.sessionService,
			Verifier: jwtx.NewVerifier(remote, app.cfg.handoffIssuer()),
		}
		app.logger.Info("trusting primary key material", "jwks_url", app.cfg.jwksURL())
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() error {
	satellite := app.cfg.Role == RoleSatellite
	cookieSecure := strings.HasPrefix(app.cfg.Domain, "https://")

	var keys *jwtx.KeySet
	if app.keyManager != nil {
		keys = app.keyManager.KeySet
	}

	router := httpapi.NewRouter(
		satellite,
		cookieSecure,
		BuildVersion,
		keys,
		app.db,
		app.logger,
	)

	matcher, err := httpapi.NewRouteMatcher(app.cfg.ProtectedRoutes)
	if err != nil {
		return &service.ConfigurationError{Field: "SSO_PROTECTED_ROUTES", Reason: err.Error()}
	}

	guard := &httpapi.RouteGuard{
		Matcher:      matcher,
		Classifier:   app.classifier,
		Sessions:     app.sessionService,
		CookieSecure: cookieSecure,
	}
	if satellite {
		guard.Handoff = app.handoffService
	}

	// Wire services to router
	router.Guard = guard
	router.SessionService = app.sessionService
	router.UserService = app.userService
	router.HandoffService = app.handoffService
	router.BootstrapService = app.bootstrapService
	router.MFAService = app.mfaService
	router.KeyRotationService = app.keyRotationService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
	return nil
}
