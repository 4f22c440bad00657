// Package database opens the PostgreSQL pool shared by the repositories.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/lib/pq"

	"ubertool-reminder-dispatch/internal/config"
	"ubertool-reminder-dispatch/internal/logger"
)

// Connect opens the pool and pings it until the database answers or the retry
// window configured in database.connect_retry_seconds has elapsed.
func Connect(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	logger.Debug("Connecting to database...", "connection_string", fmt.Sprintf("%s@%s:%d/%s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database))
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	window := time.Duration(cfg.Database.ConnectRetrySecs) * time.Second
	if err := pingWithRetry(ctx, db, window); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("Database connection established")
	return db, nil
}

func pingWithRetry(ctx context.Context, db *sql.DB, window time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = window

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		return db.PingContext(ctx)
	}, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		logger.Warn("Database not reachable yet, retrying", "attempt", attempt, "retry_in", next, "error", err)
	})
	if err != nil {
		logger.Error("Failed to ping database", "attempts", attempt, "error", err)
		return fmt.Errorf("failed to ping database after %d attempts: %w", attempt, err)
	}
	return nil
}
