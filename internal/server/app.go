// Package server initializes and runs the FitAuth server: it opens the
// configured storage backend, applies migrations, wires the authentication
// service and serves the HTTP API and the gRPC health service until a
// termination signal arrives.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/fitauth/internal/logging"
	"github.com/dmitrijs2005/fitauth/internal/server/auth"
	"github.com/dmitrijs2005/fitauth/internal/server/config"
	"github.com/dmitrijs2005/fitauth/internal/server/hasher"
	"github.com/dmitrijs2005/fitauth/internal/server/httpapi"
	"github.com/dmitrijs2005/fitauth/internal/server/media"
	"github.com/dmitrijs2005/fitauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/fitauth/internal/server/repositories/users"
	"github.com/dmitrijs2005/fitauth/internal/server/services"
	"github.com/dmitrijs2005/fitauth/internal/timex"

	gs "github.com/dmitrijs2005/fitauth/internal/server/grpc"
)

const insecureDefaultSecret = "secretKey"

type App struct {
	config  *config.Config
	logger  logging.Logger
	clock   timex.Clock
	repos   repomanager.RepositoryManager
	issuer  *auth.Issuer
	service *services.AuthService
}

// NewApp opens storage and builds the service graph. Log output goes to
// stdout in the configured format.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	return newApp(ctx, c, logging.New(os.Stdout, c.LogFormat, c.LogLevel))
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	clock := timex.RealClock{}

	if c.SecretKey == insecureDefaultSecret {
		logger.Warn(ctx, "using the built-in JWT secret; set -s or secret_key in production")
	}

	repos, err := repomanager.New(ctx, c, clock)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	if err := repos.RunMigrations(ctx); err != nil {
		_ = repos.Close()
		return nil, err
	}

	h, err := hasher.NewBcryptHasher(c.BcryptCost, c.HashWorkers)
	if err != nil {
		_ = repos.Close()
		return nil, err
	}

	issuer := auth.NewIssuer([]byte(c.SecretKey), c.SessionTokenValidityDuration, clock)

	opts := []services.Option{services.WithClock(clock)}
	if store := media.NewS3Store(c); store != nil {
		opts = append(opts, services.WithAvatarStore(store))
	}
	svc := services.NewAuthService(users.NewCredentialStore(repos.Users(), h), h, issuer, c, logger, opts...)

	return &App{config: c, logger: logger, clock: clock, repos: repos, issuer: issuer, service: svc}, nil
}

// Service exposes the wired authentication service to in-process callers
// such as the admin CLI.
func (app *App) Service() *services.AuthService {
	return app.service
}

func (app *App) Close() error {
	return app.repos.Close()
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
	h := httpapi.NewHandler(app.service, app.issuer, app.logger, app.config.RateLimitPerMinute, app.clock)
	s := httpapi.NewServer(app.config.EndpointAddrHTTP, h.Router(), app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewHealthServer(app.config.EndpointAddrGRPC, app.service, 0, app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or a termination signal arrives, then
// closes the storage backend.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "storage", app.config.Storage)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	if app.config.EndpointAddrGRPC != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startGRPCServer(ctx, cancelFunc)
		}()
	}

	wg.Wait()

	if err := app.Close(); err != nil {
		app.logger.Error(ctx, "storage close error", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
