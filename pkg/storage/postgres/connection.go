// Package postgres implements the storage layer on PostgreSQL via database/sql.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/middenhq/midden/pkg/observability"
)

// ConnectionConfig holds database connection configuration
type ConnectionConfig struct {
	URL         string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration

	// Startup connectivity retries: attempts pings Retries times with a fixed
	// Backoff between attempts before giving up. Per-request calls do not
	// retry; only process start does.
	Retries int
	Backoff time.Duration
}

// Connect opens a connection pool and verifies connectivity, retrying with a
// fixed backoff while the database comes up.
func Connect(cfg ConnectionConfig, logger *observability.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MinConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime)
	db.SetConnMaxIdleTime(cfg.MaxIdleTime)

	retries := cfg.Retries
	if retries <= 0 {
		retries = 1
	}

	var pingErr error
	for attempt := 1; attempt <= retries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
		pingErr = db.PingContext(ctx)
		cancel()

		if pingErr == nil {
			return db, nil
		}

		if attempt < retries {
			logger.WithError(pingErr).Infof("Database not ready, retrying in %s (%d left)", cfg.Backoff, retries-attempt)
			time.Sleep(cfg.Backoff)
		}
	}

	db.Close()
	return nil, fmt.Errorf("failed to ping database after %d attempts: %w", retries, pingErr)
}
