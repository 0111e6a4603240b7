package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/unklstewy/viewscout/pkg/config"
)

//go:embed schema.sql
var schemaSQL embed.FS

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// DB wraps a database connection with helper methods.
type DB struct {
	*sql.DB
	config config.DatabaseConfig
}

// dsn builds a lib/pq connection string.
func dsn(cfg config.DatabaseConfig) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.Username,
		cfg.Password,
		cfg.Database,
		cfg.SSLMode,
	)
}

// Connect establishes a connection to the PostgreSQL database.
func Connect(cfg config.DatabaseConfig) (*DB, error) {
	sqlDB, err := sql.Open("postgres", dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: sqlDB, config: cfg}, nil
}

// InitSchema creates or updates the database schema.
// This should be called once at application startup.
func (db *DB) InitSchema(ctx context.Context) error {
	schemaBytes, err := schemaSQL.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}

	if _, err := db.ExecContext(ctx, string(schemaBytes)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

// PruneElevationCache removes cached elevations not read since maxAge.
// It returns the number of rows removed.
func (db *DB) PruneElevationCache(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)

	result, err := db.ExecContext(ctx,
		`DELETE FROM elevation_cache WHERE last_used_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune elevation cache: %w", err)
	}

	return result.RowsAffected()
}

// Stats holds row counts reported on the health endpoint.
type Stats struct {
	Viewpoints       int64 `json:"viewpoints"`
	CachedElevations int64 `json:"cachedElevations"`
}

// GetStats returns database statistics.
func (db *DB) GetStats(ctx context.Context) (*Stats, error) {
	var stats Stats

	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM viewpoints`).Scan(&stats.Viewpoints)
	if err != nil {
		return nil, fmt.Errorf("failed to count viewpoints: %w", err)
	}

	err = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM elevation_cache`).Scan(&stats.CachedElevations)
	if err != nil {
		return nil, fmt.Errorf("failed to count cached elevations: %w", err)
	}

	return &stats, nil
}
