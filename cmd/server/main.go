package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/familyhub/internal/api"
	"github.com/lalith-99/familyhub/internal/config"
	"github.com/lalith-99/familyhub/internal/db"
	"github.com/lalith-99/familyhub/internal/docstore"
	"github.com/lalith-99/familyhub/internal/feed"
	"github.com/lalith-99/familyhub/internal/household"
	"github.com/lalith-99/familyhub/internal/identity"
	"github.com/lalith-99/familyhub/internal/membership"
	"github.com/lalith-99/familyhub/internal/observ"
	"github.com/lalith-99/familyhub/internal/repository"
	"github.com/lalith-99/familyhub/internal/repository/postgres"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// ---------------------------------------------------------------
	// 1. Load config
	// ---------------------------------------------------------------
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// ---------------------------------------------------------------
	// 2. Create logger
	// ---------------------------------------------------------------
	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---------------------------------------------------------------
	// 3. Change feed and session revocation
	//
	// Both live in Redis when several servers share one store, so a
	// write or a sign-out on one instance reaches every instance.
	// ---------------------------------------------------------------
	var (
		bus     feed.Bus
		revoker identity.Revoker
		checks  []func(context.Context) error
	)
	switch cfg.FeedBackend {
	case config.FeedBackendRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		bus = feed.NewRedis(client, logger)
		revoker = identity.NewRedisRevoker(client)
		checks = append(checks, func(ctx context.Context) error { return client.Ping(ctx).Err() })
	default:
		bus = feed.NewLocal()
		revoker = identity.NewMemoryRevoker()
	}

	// ---------------------------------------------------------------
	// 4. Document store
	// ---------------------------------------------------------------
	var store docstore.Store
	switch cfg.StoreBackend {
	case config.StoreBackendPostgres:
		database, err := db.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer database.Close()
		if err := database.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		store = postgres.NewDocumentStore(database.Pool(), bus, logger)
		checks = append(checks, database.Health)
	default:
		logger.Warn("using in-memory document store; data is lost on restart")
		store = docstore.NewMemory(docstore.WithPublisher(bus), docstore.WithLogger(logger))
	}

	// ---------------------------------------------------------------
	// 5. Repositories and services
	// ---------------------------------------------------------------
	users := repository.NewUserStore(store)
	families := repository.NewFamilyStore(store)

	provider := identity.NewProvider(
		store,
		users,
		repository.NewCredentialStore(store),
		revoker,
		identity.Config{Secret: cfg.JWTSecret, TokenTTL: cfg.TokenTTL, BcryptCost: bcrypt.DefaultCost},
		logger,
	)
	membershipSvc := membership.NewService(store, users, families, logger,
		membership.WithInviteCodeAttempts(cfg.InviteCodeAttempts),
	)
	householdSvc := household.NewService(
		store,
		users,
		repository.NewTaskStore(store),
		repository.NewInventoryStore(store),
		repository.NewShoppingStore(store),
		logger,
	)

	// ---------------------------------------------------------------
	// 6. HTTP server
	// ---------------------------------------------------------------
	router := api.Router{
		Auth:      api.NewAuthHandler(provider, logger),
		Users:     api.NewUserHandler(users, logger),
		Families:  api.NewFamilyHandler(membershipSvc, logger),
		Household: api.NewHouseholdHandler(householdSvc, logger),
		Live:      api.NewLiveHandler(store, bus, membershipSvc, provider, logger),
		Verifier:  provider,
		Health: func(ctx context.Context) error {
			for _, check := range checks {
				if err := check(ctx); err != nil {
					return err
				}
			}
			return nil
		},
		Logger: logger,
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.Engine(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting familyhub",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.Env),
			zap.String("store", cfg.StoreBackend),
			zap.String("feed", cfg.FeedBackend),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// Live connections are hijacked and not tracked by Shutdown; they end
	// when the process exits.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http: %w", err)
	}
	return nil
}
