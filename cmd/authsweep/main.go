// Command authsweep connects to the configured backing store and
// removes expired sessions and verification tokens in one batch pass,
// complementing the lazy purge the adapter performs on lookup.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	redisdrv "github.com/redis/go-redis/v9"

	"authstore/internal/config"
	"authstore/internal/platform/database"
	"authstore/internal/platform/logging"
	"authstore/internal/platform/migrate"
	"authstore/internal/store"
	neo4jstore "authstore/internal/store/neo4j"
	postgresstore "authstore/internal/store/postgres"
	redisstore "authstore/internal/store/redis"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	adapter, cleanup, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "store", cfg.DataStore, "error", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	maintainer, ok := adapter.(store.Maintainer)
	if !ok {
		logger.Error("store does not support batch purge", "store", cfg.DataStore)
		os.Exit(1)
	}

	sessions, tokens, err := maintainer.PurgeExpired(ctx, time.Now())
	if err != nil {
		logger.Error("purge failed", "store", cfg.DataStore, "error", err)
		os.Exit(1)
	}
	logger.Info("expired records purged",
		"store", cfg.DataStore,
		"sessions", sessions,
		"verification_tokens", tokens,
	)
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Adapter, func(), error) {
	switch cfg.DataStore {
	case "postgres":
		db, err := database.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := migrate.Apply(ctx, db, logger); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return postgresstore.New(db), func() { _ = db.Close() }, nil

	case "neo4j":
		s, closer, err := neo4jstore.Open(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = closer(context.Background()) }, nil

	case "redis":
		client := redisdrv.NewClient(&redisdrv.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		return redisstore.New(client), func() { _ = client.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("DATA_STORE %q holds no persistent records to sweep", cfg.DataStore)
	}
}
