package db

import (
	"context"
	"fmt"

	"github.com/lib/pq"
)

// ElevationCacheRepository persists sampled terrain heights so repeated
// analyses of the same area skip the elevation API. It implements
// terrain.ElevationStore.
type ElevationCacheRepository struct {
	db      *DB
	dataset string

	// maxRetries for transient connection failures
	maxRetries int
}

// NewElevationCacheRepository creates a cache scoped to one elevation
// dataset, so heights from different datasets never mix.
func NewElevationCacheRepository(db *DB, dataset string) *ElevationCacheRepository {
	return &ElevationCacheRepository{db: db, dataset: dataset, maxRetries: 2}
}

// LookupElevations returns the cached heights for keys. Missing keys are
// absent from the map. Hits have their last-used time refreshed.
func (r *ElevationCacheRepository) LookupElevations(ctx context.Context, keys []string) (map[string]float64, error) {
	found := make(map[string]float64, len(keys))
	if len(keys) == 0 {
		return found, nil
	}

	query := `
		UPDATE elevation_cache
		SET last_used_at = NOW()
		WHERE dataset = $1 AND point_key = ANY($2)
		RETURNING point_key, height
	`

	err := WithRetry(ctx, r.maxRetries, func() error {
		rows, err := r.db.QueryContext(ctx, query, r.dataset, pq.Array(keys))
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var key string
			var height float64
			if err := rows.Scan(&key, &height); err != nil {
				return err
			}
			found[key] = height
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to look up cached elevations: %w", err)
	}

	return found, nil
}

// StoreElevations upserts heights in one statement.
func (r *ElevationCacheRepository) StoreElevations(ctx context.Context, heights map[string]float64) error {
	if len(heights) == 0 {
		return nil
	}

	keys := make([]string, 0, len(heights))
	values := make([]float64, 0, len(heights))
	for k, h := range heights {
		keys = append(keys, k)
		values = append(values, h)
	}

	query := `
		INSERT INTO elevation_cache (dataset, point_key, height)
		SELECT $1, k, h FROM UNNEST($2::text[], $3::double precision[]) AS t(k, h)
		ON CONFLICT (dataset, point_key)
		DO UPDATE SET height = EXCLUDED.height, last_used_at = NOW()
	`

	err := WithRetry(ctx, r.maxRetries, func() error {
		_, err := r.db.ExecContext(ctx, query, r.dataset, pq.Array(keys), pq.Array(values))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to store elevations: %w", err)
	}

	return nil
}
