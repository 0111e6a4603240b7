package terrain

import (
	"context"
	"testing"

	"github.com/unklstewy/viewscout/pkg/config"
	"github.com/unklstewy/viewscout/pkg/geodesy"
)

func TestNewSampler(t *testing.T) {
	t.Run("flat without cache", func(t *testing.T) {
		cfg := config.DefaultConfig().Terrain
		cfg.Provider = "flat"
		cfg.FlatHeight = 7
		cfg.CacheEnabled = false

		s := NewSampler(cfg, nil)
		if _, ok := s.(HeightFunc); !ok {
			t.Fatalf("Expected HeightFunc, got %T", s)
		}
		got, err := s.SampleElevations(context.Background(), []geodesy.Point{{Lat: 1, Lon: 2}})
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if got[0].HeightOrZero() != 7 {
			t.Errorf("Expected height 7, got %v", got[0].HeightOrZero())
		}
	})

	t.Run("opentopo with memory cache", func(t *testing.T) {
		cfg := config.DefaultConfig().Terrain
		s := NewSampler(cfg, nil)

		cached, ok := s.(*CachedSampler)
		if !ok {
			t.Fatalf("Expected *CachedSampler, got %T", s)
		}
		if _, ok := cached.inner.(*OpenTopoClient); !ok {
			t.Errorf("Expected OpenTopoClient inside the cache, got %T", cached.inner)
		}
		mem, ok := cached.store.(*MemoryStore)
		if !ok {
			t.Fatalf("Expected MemoryStore fallback, got %T", cached.store)
		}
		if mem.capacity != cfg.MemoryCacheSize {
			t.Errorf("Expected capacity %d, got %d", cfg.MemoryCacheSize, mem.capacity)
		}
	})

	t.Run("given store", func(t *testing.T) {
		cfg := config.DefaultConfig().Terrain
		store := NewMemoryStore(10)
		s := NewSampler(cfg, store).(*CachedSampler)
		if s.store != store {
			t.Error("Expected the given store to be used")
		}
	})
}
