package terrain

import (
	"github.com/unklstewy/viewscout/pkg/config"
)

// NewSampler builds the sampler chain described by cfg: the configured
// provider, wrapped in an elevation cache when caching is enabled. A nil
// store falls back to an in-memory cache bounded by cfg.MemoryCacheSize.
func NewSampler(cfg config.TerrainConfig, store ElevationStore) Sampler {
	var sampler Sampler
	switch cfg.Provider {
	case "flat":
		sampler = Flat(cfg.FlatHeight)
	default:
		retry := DefaultRetryConfig()
		retry.MaxRetries = cfg.MaxRetries

		sampler = NewOpenTopoClient(OpenTopoConfig{
			BaseURL:           cfg.BaseURL,
			Dataset:           cfg.Dataset,
			MaxBatchSize:      cfg.MaxBatchSize,
			MaxConcurrency:    cfg.MaxConcurrency,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Burst:             cfg.Burst,
			Timeout:           cfg.Timeout,
			Retry:             retry,
			BreakerFailures:   cfg.BreakerFailures,
			BreakerCooldown:   cfg.BreakerCooldown,
		})
	}

	if !cfg.CacheEnabled {
		return sampler
	}
	if store == nil {
		store = NewMemoryStore(cfg.MemoryCacheSize)
	}
	return NewCachedSampler(sampler, store)
}
