// Package app wires configuration, storage and services into a runnable
// identity service. Both binaries build on it.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/labstack/echo/v4"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	mongodriver "go.mongodb.org/mongo-driver/mongo"

	"github.com/carebridge/identity-core/internal/api"
	"github.com/carebridge/identity-core/internal/api/handler"
	"github.com/carebridge/identity-core/internal/core/policy"
	"github.com/carebridge/identity-core/internal/core/ports"
	"github.com/carebridge/identity-core/internal/core/service"
	"github.com/carebridge/identity-core/internal/infrastructure/auth"
	"github.com/carebridge/identity-core/internal/infrastructure/db/mongo"
	"github.com/carebridge/identity-core/internal/infrastructure/db/redis"
	"github.com/carebridge/identity-core/internal/infrastructure/queue"
	"github.com/carebridge/identity-core/internal/pkg/config"
	"github.com/carebridge/identity-core/internal/pkg/validation"
	"github.com/carebridge/identity-core/pkg/logger"
)

const tokenIssuer = "identity-core"

// App holds the connected clients and the services built on them.
type App struct {
	Config *config.Config

	Identity  ports.IdentityService
	Accounts  ports.AccountService
	Admin     ports.AdminService
	Registrar *service.RegistrationOrchestrator
	Policy    policy.Evaluator

	mongo      *mongodriver.Client
	redis      *goredis.Client
	registry   *service.SessionRegistry
	dispatcher *queue.RefreshDispatcher
	log        zerolog.Logger
}

// New connects to MongoDB and Redis, ensures indexes and builds every
// service. Call Close when done.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	mongoClient, db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return nil, err
	}
	if err := mongo.EnsureIndexes(ctx, db); err != nil {
		_ = mongoClient.Disconnect(ctx)
		return nil, err
	}

	redisClient, err := redis.Connect(ctx, redis.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
	if err != nil {
		_ = mongoClient.Disconnect(ctx)
		return nil, err
	}

	validate := validation.New()
	profiles := mongo.NewProfileStore(db)

	creds := auth.NewCredentialStore(
		mongo.NewPrincipalRepository(db),
		redis.NewSessionStore(redisClient),
		redis.NewTokenStore(redisClient),
		auth.NewHasher(cfg.Tokens.BcryptCost),
		auth.NewTokenIssuer(cfg.JWTSecret, tokenIssuer),
		auth.NewLogNotifier(logger.WithComponent(log, "notifier")),
		auth.Options{
			SessionTTL:      cfg.Session.TTL,
			VerificationTTL: cfg.Tokens.VerificationTTL,
			ResetTTL:        cfg.Tokens.ResetTTL,
		},
		logger.WithComponent(log, "credentials"),
	)

	resolver := service.NewProfileResolver(profiles, logger.WithComponent(log, "resolver"))
	registry := service.NewSessionRegistry(resolver, service.RegistryOptions{
		Size:           cfg.Session.CacheSize,
		TTL:            cfg.Session.TTL,
		ResolveTimeout: cfg.Session.ResolveTimeout,
	}, logger.WithComponent(log, "sessions"))
	registry.Start(creds)

	dispatcher := queue.NewRefreshDispatcher(cfg.Session.RefreshWorkers, registry, logger.WithComponent(log, "refresh"))

	registrar := service.NewRegistrationOrchestrator(creds, profiles, validate, logger.WithComponent(log, "registration"))
	gateway := service.NewProfileGateway(profiles, validate, logger.WithComponent(log, "profiles"))
	ev := policy.Evaluator{RequireVerifiedEmail: cfg.Session.RequireVerifiedEmail}

	return &App{
		Config:     cfg,
		Identity:   service.NewIdentityService(creds, registry, registrar, gateway, logger.WithComponent(log, "identity")),
		Accounts:   service.NewAccountService(creds, validate, logger.WithComponent(log, "accounts")),
		Admin:      service.NewAdminService(profiles, dispatcher, ev, logger.WithComponent(log, "admin")),
		Registrar:  registrar,
		Policy:     ev,
		mongo:      mongoClient,
		redis:      redisClient,
		registry:   registry,
		dispatcher: dispatcher,
		log:        log,
	}, nil
}

// Start launches the background refresh workers. They stop with ctx.
func (a *App) Start(ctx context.Context) {
	a.dispatcher.Start(ctx)
}

// Router returns the HTTP surface of the service.
func (a *App) Router() *echo.Echo {
	return api.NewRouter(api.Dependencies{
		Identity: a.Identity,
		Accounts: a.Accounts,
		Admin:    a.Admin,
		Policy:   a.Policy,
		Checks: map[string]handler.CheckFunc{
			"mongodb": func(ctx context.Context) error { return mongo.Ping(ctx, a.mongo) },
			"redis":   func(ctx context.Context) error { return redis.Ping(ctx, a.redis) },
		},
		Log: logger.WithComponent(a.log, "http"),
	})
}

// Close stops event delivery and disconnects the clients.
func (a *App) Close(ctx context.Context) error {
	a.registry.Close()
	var errs []error
	if err := a.redis.Close(); err != nil {
		errs = append(errs, fmt.Errorf("redis close: %w", err))
	}
	if err := a.mongo.Disconnect(ctx); err != nil {
		errs = append(errs, fmt.Errorf("mongo disconnect: %w", err))
	}
	return errors.Join(errs...)
}
