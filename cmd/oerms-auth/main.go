package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/mhnuk2007/oerms-sub002/config"
	"github.com/mhnuk2007/oerms-sub002/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}

	logStartupInfo(ctx, logger, &cfg)

	db, redisClient, err := initInfrastructure(ctx, &cfg, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer func() {
			if cerr := db.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close database failed", "error", cerr)
			}
		}()
	}
	if redisClient != nil {
		defer func() {
			if cerr := redisClient.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close redis failed", "error", cerr)
			}
		}()
	}

	if db != nil && cfg.Postgres.RunMigrationsOnStart {
		if err = bootstrap.RunMigrations(ctx, db, logger); err != nil {
			return err
		}
	}

	provider, err := bootstrap.BuildAuthProvider(bootstrap.AuthProviderConfig{
		Auth:    cfg.Auth,
		Session: cfg.Session,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("build auth provider: %w", err)
	}

	stores, err := bootstrap.BuildStores(bootstrap.StoresConfig{
		Backend:     cfg.TokenStoreBackend,
		Session:     cfg.Session,
		RedisClient: redisClient,
		DB:          db,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("build stores: %w", err)
	}

	metrics, err := bootstrap.BuildMetricsSink(cfg.Observability.Metrics, logger)
	if err != nil {
		return fmt.Errorf("build metrics sink: %w", err)
	}
	defer func() {
		if cerr := metrics.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close metrics sink failed", "error", cerr)
		}
	}()

	services, err := bootstrap.BuildServices(bootstrap.ServicesConfig{
		Config:   &cfg,
		Provider: provider,
		Stores:   stores,
		Metrics:  metrics,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("build services: %w", err)
	}

	server, err := bootstrap.BuildHTTPServer(bootstrap.HTTPServerConfig{
		Config:   cfg.HTTP,
		Services: services,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("build http server: %w", err)
	}

	return serveUntilSignal(ctx, server, logger)
}

// serveUntilSignal runs the HTTP server and drains it on SIGINT/SIGTERM.
func serveUntilSignal(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- bootstrap.StartHTTPServer(server, logger)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if err := bootstrap.ShutdownHTTPServer(server, logger); err != nil {
		return err
	}
	return <-errCh
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	logger.InfoContext(ctx, "starting oerms auth service",
		"addr", cfg.HTTP.Addr,
		"auth_mode", cfg.Auth.Mode,
		"token_store", cfg.TokenStoreBackend,
		"policy_enabled", cfg.Policy.IsEnabled())
}

// initInfrastructure connects the backing stores the configured token store
// backend actually needs. The memory backend needs neither.
//
//nolint:ireturn // returning redis.UniversalClient keeps sentinel/cluster support flexible.
func initInfrastructure(
	ctx context.Context,
	cfg *config.AppConfig,
	logger *slog.Logger,
) (*sql.DB, redis.UniversalClient, error) {
	var (
		db          *sql.DB
		redisClient redis.UniversalClient
		err         error
	)

	if cfg.TokenStoreBackend == config.TokenStorePostgres {
		db, err = bootstrap.ConnectDB(bootstrap.DatabaseConfig{
			DBConfig:    cfg.Postgres,
			RedisConfig: cfg.Redis,
			Logger:      logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect db: %w", err)
		}
	}

	if cfg.TokenStoreBackend != config.TokenStoreMemory {
		redisClient, err = bootstrap.ConnectRedis(bootstrap.DatabaseConfig{
			DBConfig:    cfg.Postgres,
			RedisConfig: cfg.Redis,
			Logger:      logger,
		})
		if err != nil {
			if db != nil {
				if cerr := db.Close(); cerr != nil {
					logger.ErrorContext(ctx, "close database after redis connect failure", "error", cerr)
				}
			}
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
	}

	return db, redisClient, nil
}
