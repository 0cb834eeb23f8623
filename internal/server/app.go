// Package server initializes and runs the SSO server: it opens the database,
// applies migrations, wires the ceremony engine, session manager and user
// service, and starts the HTTP API and the ext_authz endpoint, handling
// graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/janus-sso/janus/internal/logging"
	"github.com/janus-sso/janus/internal/server/authz"
	"github.com/janus-sso/janus/internal/server/ceremony"
	"github.com/janus-sso/janus/internal/server/config"
	"github.com/janus-sso/janus/internal/server/httpapi"
	"github.com/janus-sso/janus/internal/server/repositories/repomanager"
	"github.com/janus-sso/janus/internal/server/services"
	"github.com/janus-sso/janus/internal/server/sessions"
)

const challengeSweepInterval = time.Minute

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	engine      *ceremony.Engine
	sessions    *sessions.Manager
	httpServer  *httpapi.Server
	authzServer *authz.Server
}

func NewApp(cfg *config.Config) (*App, error) {

	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	rm, err := repomanager.NewPostgresRepositoryManager()
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	if cfg.RunMigrations {
		if err := rm.RunMigrations(context.Background(), db); err != nil {
			return nil, fmt.Errorf("migration error: %w", err)
		}
	}

	engine, err := ceremony.NewEngine(db, rm, logger, ceremony.Config{
		RPID:          cfg.RPID,
		RPDisplayName: cfg.RPDisplayName,
		RPOrigins:     cfg.RPOrigins,
		ChallengeTTL:  cfg.ChallengeTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("ceremony init error: %w", err)
	}

	sessionManager := sessions.NewManager(rm.Sessions(db), logger, sessions.Config{
		SessionTTL:   cfg.SessionTTL,
		BearerSecret: []byte(cfg.BearerSecret),
		BearerTTL:    cfg.BearerTTL,
		CookieName:   cfg.CookieName,
		LoginURL:     strings.TrimSuffix(cfg.PublicBaseURL, "/") + "/login",
	})

	userService := services.NewUserService(db, rm, logger, cfg.PublicBaseURL, cfg.EnrollmentTokenTTL)

	return &App{
		config:      cfg,
		logger:      logger,
		db:          db,
		engine:      engine,
		sessions:    sessionManager,
		httpServer:  httpapi.NewServer(cfg, engine, sessionManager, userService, logger),
		authzServer: authz.NewServer(cfg.EndpointAddrAuthz, sessionManager, logger),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, err.Error())
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", app.config.EndpointAddrHTTP)

	if err := app.httpServer.Start(app.config.EndpointAddrHTTP); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startAuthzServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.authzServer.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// startChallengeSweeper periodically removes expired challenge ledger rows so
// abandoned ceremonies do not accumulate.
func (app *App) startChallengeSweeper(ctx context.Context) {
	ticker := time.NewTicker(challengeSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := app.engine.SweepExpiredChallenges(ctx); err != nil {
				app.logger.Error(ctx, "challenge sweep failed", "error", err)
			}
		}
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startAuthzServer(ctx, cancelFunc)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startChallengeSweeper(ctx)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, err.Error())
	}
}
