package db

import (
	"context"
	"testing"
	"time"

	"github.com/unklstewy/viewscout/pkg/terrain"
)

// Compile-time check that the repository can back a CachedSampler.
var _ terrain.ElevationStore = (*ElevationCacheRepository)(nil)

// TestElevationCacheEmpty tests that empty inputs never touch the database.
func TestElevationCacheEmpty(t *testing.T) {
	repo := NewElevationCacheRepository(nil, "srtm30m")

	got, err := repo.LookupElevations(context.Background(), nil)
	if err != nil || len(got) != 0 {
		t.Errorf("Expected empty result, got %v, %v", got, err)
	}
	if err := repo.StoreElevations(context.Background(), map[string]float64{}); err != nil {
		t.Errorf("Expected no error storing nothing, got %v", err)
	}
}

// TestElevationCacheRoundTrip runs against a real database when configured.
func TestElevationCacheRoundTrip(t *testing.T) {
	db := integrationDB(t)
	ctx := context.Background()

	srtm := NewElevationCacheRepository(db, "test-srtm")
	aster := NewElevationCacheRepository(db, "test-aster")
	t.Cleanup(func() {
		_, _ = db.ExecContext(context.Background(),
			`DELETE FROM elevation_cache WHERE dataset IN ('test-srtm', 'test-aster')`)
	})

	heights := map[string]float64{
		"21.30000,-157.80000": 12.5,
		"21.31000,-157.80000": 0,
	}
	if err := srtm.StoreElevations(ctx, heights); err != nil {
		t.Fatalf("Failed to store: %v", err)
	}

	got, err := srtm.LookupElevations(ctx, []string{"21.30000,-157.80000", "21.31000,-157.80000", "0.00000,0.00000"})
	if err != nil {
		t.Fatalf("Failed to look up: %v", err)
	}
	if len(got) != 2 || got["21.30000,-157.80000"] != 12.5 || got["21.31000,-157.80000"] != 0 {
		t.Errorf("Expected stored heights, got %v", got)
	}

	other, err := aster.LookupElevations(ctx, []string{"21.30000,-157.80000"})
	if err != nil {
		t.Fatalf("Failed to look up: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("Expected datasets to be isolated, got %v", other)
	}

	// Upsert overwrites
	if err := srtm.StoreElevations(ctx, map[string]float64{"21.30000,-157.80000": 13}); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}
	got, _ = srtm.LookupElevations(ctx, []string{"21.30000,-157.80000"})
	if got["21.30000,-157.80000"] != 13 {
		t.Errorf("Expected upserted height 13, got %v", got)
	}

	if _, err := db.PruneElevationCache(ctx, time.Hour); err != nil {
		t.Errorf("Failed to prune: %v", err)
	}
	stats, err := db.GetStats(ctx)
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if stats.CachedElevations < 2 {
		t.Errorf("Expected at least 2 cached elevations, got %d", stats.CachedElevations)
	}
}
