package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/Path-Check/safeplaces-auth/internal/auth/http"
	"github.com/Path-Check/safeplaces-auth/internal/auth/service"
	"github.com/Path-Check/safeplaces-auth/internal/auth/store"
	"github.com/Path-Check/safeplaces-auth/internal/auth/store/drivers/sqlite"
	"github.com/Path-Check/safeplaces-auth/pkg/gatekeeper"
	"github.com/Path-Check/safeplaces-auth/pkg/httpx"
	"github.com/Path-Check/safeplaces-auth/pkg/idm"
	"github.com/Path-Check/safeplaces-auth/pkg/metricsx"
	"github.com/Path-Check/safeplaces-auth/pkg/slogx"
)

// BuildVersion is overridden at build time via -ldflags "-X ...app.BuildVersion=...".
var BuildVersion = "v0.1.0"

// startupTimeout bounds connector priming and the reconciliation sweep.
const startupTimeout = 2 * time.Minute

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metricsx.Metrics

	// Core dependencies
	db        store.Store
	connector *idm.Connector
	enforcer  *gatekeeper.Enforcer

	// Services
	userService  *service.UserService
	loginService *service.LoginService
	mfaService   *service.MFAService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
// The IDM connector is primed (and the reconciliation sweep run) before it
// returns, so a misconfigured tenant fails startup rather than the first
// request.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "safeplaces-auth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		metrics: metricsx.New("safeplaces_auth"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initConnector(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()
	if err := app.prime(ctx); err != nil {
		app.connector.Close()
		_ = app.db.Close()
		return nil, err
	}

	if err := app.initServices(); err != nil {
		app.connector.Close()
		_ = app.db.Close()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
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
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Let a background token refresh land before the process exits.
	app.connector.Close()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

// Handler exposes the router, mainly for in-process tests.
func (app *Application) Handler() http.Handler {
	return app.router
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

// initConnector builds the IDM connector. Nothing is fetched yet.
func (app *Application) initConnector() error {
	conn, err := idm.New(idm.Config{
		BaseURL:      app.cfg.IDMBaseURL,
		ClientID:     app.cfg.IDMClientID,
		ClientSecret: app.cfg.IDMClientSecret,
		Audience:     app.cfg.IDMManagementAudience,
		APIAudience:  app.cfg.IDMAPIAudience,
		Realm:        app.cfg.IDMRealm,
		HTTPClient:   &http.Client{Timeout: app.cfg.HTTPClientTimeout},
		Logger:       app.logger,
		Metrics:      app.metrics,
		Verbose:      app.cfg.Verbose,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize idm connector: %w", err)
	}
	app.connector = conn
	return nil
}

// prime fills the management token and role caches, optionally sweeping
// for users that exist on only one side.
func (app *Application) prime(ctx context.Context) error {
	if !app.cfg.ReconcileOnStart {
		if err := app.connector.Init(ctx); err != nil {
			return fmt.Errorf("failed to initialize idm connector: %w", err)
		}
		app.logger.Info("idm connector initialized", "roles", app.connector.Roles().Names())
		return nil
	}

	problems, err := service.Reconcile(ctx, app.connector, app.db, app.cfg.ForceProblemResolution, app.logger)
	if err != nil {
		return fmt.Errorf("failed to reconcile idm and database users: %w", err)
	}
	app.logger.Info("reconciliation finished",
		"problems", len(problems),
		"destructive", app.cfg.ForceProblemResolution,
	)
	return nil
}

// initServices wires the business logic and the request enforcer
func (app *Application) initServices() error {
	issuer, regVerifier, err := InitRegistrationTokens(app.cfg)
	if err != nil {
		return err
	}

	app.userService = &service.UserService{
		IDM:         app.connector,
		Store:       app.db,
		Issuer:      issuer,
		Verifier:    regVerifier,
		RedirectURL: app.cfg.RegistrationRedirectURL,
	}
	app.loginService = &service.LoginService{
		IDM:            app.connector,
		Store:          app.db,
		ClaimNamespace: app.cfg.ClaimNamespace,
	}
	app.mfaService = &service.MFAService{IDM: app.connector}

	strategy, err := InitStrategy(app.cfg, app.logger)
	if err != nil {
		return err
	}

	app.enforcer, err = gatekeeper.New(gatekeeper.Config{
		Strategy:   strategy,
		UserGetter: app.userService.Principal,
		Verbose:    app.cfg.Verbose,
		Logger:     app.logger,
		Metrics:    app.metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize enforcer: %w", err)
	}
	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		BuildVersion,
		app.db,
		app.metrics,
		app.logger,
	)

	router.Enforcer = app.enforcer
	router.ClaimNamespace = app.cfg.ClaimNamespace
	router.Cookies = httpx.CookieConfig{
		Secure:   app.cfg.CookieSecure,
		SameSite: app.cfg.CookieSameSite,
		Domain:   app.cfg.CookieDomain,
	}
	router.IDMReady = app.connector.Ready
	router.LoginService = app.loginService
	router.MFAService = app.mfaService
	router.UserService = app.userService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
