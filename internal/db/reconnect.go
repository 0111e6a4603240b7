package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/unklstewy/viewscout/internal/logging"
	"github.com/unklstewy/viewscout/pkg/config"
)

// maxReconnectDelay caps the backoff between connection attempts.
const maxReconnectDelay = 60 * time.Second

// ReconnectWithRetry connects to the database with exponential backoff.
// This lets the server start before the database is ready.
//
// Parameters:
//   - cfg: Database configuration
//   - maxRetries: Maximum number of attempts (0 = until ctx is done)
//   - initialDelay: Initial wait time between retries
//
// Returns: Connected database or the last error once retries are exhausted
func ReconnectWithRetry(ctx context.Context, cfg config.DatabaseConfig, maxRetries int, initialDelay time.Duration) (*DB, error) {
	log := logging.Component("db")
	delay := initialDelay
	attempt := 0

	for {
		attempt++
		log.Debug().Int("attempt", attempt).Str("host", cfg.Host).Msg("connecting to database")

		db, err := Connect(cfg)
		if err == nil {
			log.Info().Int("attempt", attempt).Str("database", cfg.Database).Msg("database connected")
			return db, nil
		}

		if maxRetries > 0 && attempt >= maxRetries {
			log.Error().Err(err).Int("attempts", attempt).Msg("giving up connecting to database")
			return nil, err
		}

		log.Warn().Err(err).Dur("retry_in", delay).Msg("database connection failed")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// HealthCheck reports whether the database answers a trivial query.
func HealthCheck(ctx context.Context, db *DB) bool {
	if db == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		logging.Component("db").Warn().Err(err).Msg("health check failed")
		return false
	}

	return result == 1
}

// connErrorPatterns identify transient connection failures in driver errors.
var connErrorPatterns = []string{
	"connection refused",
	"broken pipe",
	"no connection",
	"connection reset",
	"bad connection",
	"eof",
	"timeout",
}

// isConnError reports whether err looks like a dropped or refused connection.
func isConnError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range connErrorPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// WithRetry executes a database operation, retrying connection failures
// with a linearly growing wait. Other errors are returned immediately.
func WithRetry(ctx context.Context, maxRetries int, operation func() error) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isConnError(err) {
			return err
		}

		if attempt < maxRetries {
			wait := time.Duration(attempt+1) * retryUnit
			logging.Component("db").Warn().Err(err).
				Int("attempt", attempt+1).
				Int("max_attempts", maxRetries+1).
				Dur("retry_in", wait).
				Msg("database operation failed")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}

	return lastErr
}

// retryUnit is the WithRetry backoff step; tests shorten it.
var retryUnit = time.Second
