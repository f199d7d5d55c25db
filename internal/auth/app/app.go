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

	"github.com/pquerna/otp"

	"github.com/aussiebroadwan/twostep/internal/auth/directory"
	httpapi "github.com/aussiebroadwan/twostep/internal/auth/http"
	"github.com/aussiebroadwan/twostep/internal/auth/notify"
	"github.com/aussiebroadwan/twostep/internal/auth/service"
	"github.com/aussiebroadwan/twostep/internal/auth/store"
	"github.com/aussiebroadwan/twostep/internal/auth/store/drivers/memory"
	"github.com/aussiebroadwan/twostep/internal/auth/store/drivers/redis"
	"github.com/aussiebroadwan/twostep/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/twostep/pkg/clock"
	"github.com/aussiebroadwan/twostep/pkg/jwtx"
	"github.com/aussiebroadwan/twostep/pkg/otelx"
	"github.com/aussiebroadwan/twostep/pkg/slogx"
)

// BuildVersion is overridden at build time with -ldflags "-X ...".
var BuildVersion = "v0.1.0"

// Application owns the auth service and its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db            store.Store
	keyManager    *jwtx.KeyManager
	directory     directory.Directory
	sms, email    notify.Sender
	traceShutdown func(context.Context) error

	challengeService    *service.ChallengeService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "twostep-auth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	ctx := context.Background()

	shutdown, err := otelx.Setup(ctx, otelx.Config{
		Endpoint:       cfg.OTELEndpoint,
		ServiceName:    "twostep-auth",
		ServiceVersion: BuildVersion,
		SampleRatio:    cfg.OTELSampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	app.traceShutdown = shutdown

	if err := app.initStore(ctx); err != nil {
		return nil, err
	}

	keyManager, err := InitAuthKeys(ctx, cfg, app.db, app.logger)
	if err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to initialize JWT keys: %w", err)
	}
	app.keyManager = keyManager

	if err := app.initDirectory(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.initNotify()

	if err := app.initServices(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Handler returns the HTTP handler, for tests that drive the application
// without a listener.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("auth service starting",
		"port", app.cfg.Port,
		"nonce_store", app.cfg.NonceStore,
		"directory", app.cfg.Directory,
		"key_mode", app.cfg.KeyStorageMode,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		app.housekeepingService.Stop()
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

// Shutdown drains the HTTP server, stops the reaper and closes the store.
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

	if err := app.traceShutdown(ctx); err != nil {
		app.logger.Warn("error flushing traces", "error", err)
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing nonce store", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

func (app *Application) initStore(ctx context.Context) error {
	switch app.cfg.NonceStore {
	case NonceStoreMemory:
		app.db = memory.NewStore()
		app.logger.Warn("pending verifications are held in memory and lost on restart")

	case NonceStoreRedis:
		db, err := redis.Open(ctx, app.cfg.RedisURL, app.cfg.RedisPrefix)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		app.db = db
		app.logger.Info("redis nonce store connected", "prefix", app.cfg.RedisPrefix)

	default:
		db, err := sqlite.NewStore(fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", app.cfg.DatabaseFile))
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		if err := db.ApplyMigrations(); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to apply database migrations: %w", err)
		}
		app.db = db
		app.logger.Info("database migrations applied successfully", "file", app.cfg.DatabaseFile)
	}
	return nil
}

func (app *Application) initDirectory() error {
	switch app.cfg.Directory {
	case DirectoryFile:
		dir, err := directory.LoadFile(app.cfg.DirectoryFile)
		if err != nil {
			return fmt.Errorf("failed to load user directory: %w", err)
		}
		app.directory = dir
		app.logger.Info("file user directory loaded", "file", app.cfg.DirectoryFile)

	default:
		dir := directory.NewHTTPDirectory(app.cfg.DirectoryURL, app.cfg.DirectoryTimeout)
		dir.Path = app.cfg.DirectoryPath
		dir.APIKey = app.cfg.DirectoryAPIKey
		app.directory = dir
		app.logger.Info("http user directory configured", "url", app.cfg.DirectoryURL+app.cfg.DirectoryPath)
	}
	return nil
}

func (app *Application) initNotify() {
	if app.cfg.NotifyDryRun {
		app.sms = &notify.LogSender{Logger: app.logger, Channel: "sms"}
		app.email = &notify.LogSender{Logger: app.logger, Channel: "email"}
		app.logger.Warn("notification dry run enabled: verification codes are written to the log")
		return
	}

	if app.cfg.SMSGatewayURL != "" {
		app.sms = notify.NewSMSSender(app.cfg.SMSGatewayURL, app.cfg.SMSAPIKey, app.cfg.SMSSender, app.cfg.NotifyTimeout)
	}
	if smtp := app.cfg.SMTP; smtp.Host != "" {
		app.email = notify.NewEmailSender(smtp.Host, smtp.Port, smtp.Username, smtp.Password, smtp.From)
	}
	if app.sms == nil && app.email == nil {
		app.logger.Warn("no notification channel configured: every sign-in will fail delivery")
	}
}

func (app *Application) initServices() error {
	policy, err := service.ParseDeliveryPolicy(app.cfg.DeliveryPolicy)
	if err != nil {
		return err
	}

	digits := otp.DigitsSix
	if app.cfg.CodeDigits == 8 {
		digits = otp.DigitsEight
	}

	codes := &service.CodeGenerator{
		Digits:  digits,
		SMS:     app.sms,
		Email:   app.email,
		Timeout: app.cfg.NotifyTimeout,
		TTL:     app.cfg.CodeTTL,
	}
	nonces := &service.NonceStore{
		Store:       app.db,
		Codes:       codes,
		Clock:       clock.Real(),
		TTL:         app.cfg.CodeTTL,
		MaxAttempts: app.cfg.MaxAttempts,
	}

	app.challengeService = &service.ChallengeService{
		Validator: &service.CredentialValidator{
			Directory: app.directory,
			Timeout:   app.cfg.DirectoryTimeout,
		},
		Nonces:   nonces,
		Codes:    codes,
		Verifier: &service.Verifier{Nonces: nonces},
		Tokens: &service.TokenIssuer{
			KeyManager: app.keyManager,
			Issuer:     app.cfg.Issuer,
			Audience:   app.cfg.Audience,
			TTL:        app.cfg.TokenTTL,
			Clock:      clock.Real(),
		},
		Policy: policy,
	}

	app.housekeepingService = service.NewHousekeepingService(
		nonces,
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
	return nil
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(app.keyManager, BuildVersion, app.db, app.logger)
	router.ChallengeService = app.challengeService
	router.Limits = httpapi.RateLimits{
		Strict:  app.cfg.StrictLimit,
		Lenient: app.cfg.LenientLimit,
		Public:  app.cfg.PublicLimit,
	}
	router.ApplyRoutes()
	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
