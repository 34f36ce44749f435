package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/driftlock/authd/internal/auth/http"
	"github.com/driftlock/authd/internal/auth/notify"
	"github.com/driftlock/authd/internal/auth/obs"
	"github.com/driftlock/authd/internal/auth/service"
	"github.com/driftlock/authd/internal/auth/store"
	"github.com/driftlock/authd/internal/auth/store/drivers/sqlite"
	"github.com/driftlock/authd/pkg/jwtx"
	"github.com/driftlock/authd/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the auth service with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db   store.Store
	keys *jwtx.Keypair

	// Services
	tokenService        *service.TokenService
	otpEngine           *service.OTPEngine
	accountService      *service.AccountService
	passwordService     *service.PasswordService
	verifyService       *service.VerificationService
	twoFAService        *service.TwoFAService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "authd",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	obs.Init()

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	keys, err := jwtx.NewEphemeralKeypair(cfg.Issuer)
	if err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to generate signing keys: %w", err)
	}
	app.keys = keys

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

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
	app.logger.Info("shutting down auth service...")

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

	app.logger.Info("auth service stopped")
	return nil
}

// initDatabase opens the database and applies migrations
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

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.otpEngine = &service.OTPEngine{
		Store:         app.db,
		Sender:        &notify.LogSender{Log: app.logger},
		TTL:           app.cfg.OTPTTL,
		CodeLength:    app.cfg.OTPLength,
		RequestLimit:  app.cfg.OTPRequestLimit,
		RequestWindow: app.cfg.OTPRequestWindow,
	}

	app.tokenService = &service.TokenService{
		Keys:       app.keys,
		Store:      app.db,
		AccessTTL:  app.cfg.AccessTokenTTL,
		RefreshTTL: app.cfg.RefreshTokenTTL,
	}

	app.twoFAService = &service.TwoFAService{
		Store:  app.db,
		OTP:    app.otpEngine,
		Issuer: app.cfg.Issuer,
	}

	app.accountService = &service.AccountService{
		Store:  app.db,
		Tokens: app.tokenService,
		OTP:    app.otpEngine,
		TwoFA:  app.twoFAService,
	}

	app.passwordService = &service.PasswordService{
		Store: app.db,
		OTP:   app.otpEngine,
	}

	app.verifyService = &service.VerificationService{
		Store: app.db,
		OTP:   app.otpEngine,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.otpEngine,
		app.twoFAService,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.db, app.logger)

	router.TokenService = app.tokenService
	router.AccountService = app.accountService
	router.PasswordService = app.passwordService
	router.VerifyService = app.verifyService
	router.TwoFAService = app.twoFAService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
