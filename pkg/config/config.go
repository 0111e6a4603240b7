package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/unklstewy/viewscout/internal/logging"
	"github.com/unklstewy/viewscout/internal/validation"
)

// EnvPrefix prefixes every environment override, e.g. VIEWSCOUT_SERVER_PORT.
const EnvPrefix = "VIEWSCOUT_"

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are searched in order when no path is given.
var DefaultConfigPaths = []string{
	"configs/config.yaml",
	"config.yaml",
	"/etc/viewscout/config.yaml",
}

// Config represents the complete application configuration.
// Values are layered: defaults, then a YAML file, then environment variables.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Terrain  TerrainConfig  `koanf:"terrain"`
	Analysis AnalysisConfig `koanf:"analysis"`
	Logging  logging.Config `koanf:"logging"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// Port is the HTTP server port (default: 8080)
	Port string `koanf:"port" validate:"required,numeric"`

	// Host is the server bind address (default: "0.0.0.0")
	Host string `koanf:"host"`

	// TLSEnabled determines if HTTPS should be used
	TLSEnabled bool `koanf:"tls_enabled"`

	// TLSCertFile is the path to the TLS certificate
	TLSCertFile string `koanf:"tls_cert_file" validate:"required_if=TLSEnabled true"`

	// TLSKeyFile is the path to the TLS private key
	TLSKeyFile string `koanf:"tls_key_file" validate:"required_if=TLSEnabled true"`

	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gte=0"`

	// CORSOrigins lists allowed browser origins ("*" for any)
	CORSOrigins []string `koanf:"cors_origins"`

	// RateLimitRequests per RateLimitWindow per client IP (0 disables)
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"gte=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gte=0"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// DatabaseConfig contains database connection settings.
// The database is optional; without it saved viewpoints and the persistent
// elevation cache are disabled.
type DatabaseConfig struct {
	Enabled bool `koanf:"enabled"`

	// Driver is the database driver (only postgres is supported)
	Driver string `koanf:"driver" validate:"omitempty,oneof=postgres"`

	// Host is the database server hostname
	Host string `koanf:"host" validate:"required_if=Enabled true"`

	// Port is the database server port
	Port int `koanf:"port" validate:"gte=0,lte=65535"`

	// Database is the database name
	Database string `koanf:"database" validate:"required_if=Enabled true"`

	// Username for database authentication
	Username string `koanf:"username"`

	// Password for database authentication (set VIEWSCOUT_DATABASE_PASSWORD)
	Password string `koanf:"password"`

	// SSLMode for PostgreSQL connections (disable, require, verify-ca, verify-full)
	SSLMode string `koanf:"ssl_mode" validate:"omitempty,oneof=disable require verify-ca verify-full"`

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int `koanf:"max_open_conns" validate:"gte=0"`

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int `koanf:"max_idle_conns" validate:"gte=0"`
}

// TerrainConfig selects and tunes the elevation source.
type TerrainConfig struct {
	// Provider is "opentopo" for the HTTP elevation API or "flat" for a
	// constant-height surface (offline use)
	Provider string `koanf:"provider" validate:"oneof=opentopo flat"`

	// BaseURL of an OpenTopoData-compatible API
	BaseURL string `koanf:"base_url" validate:"required_if=Provider opentopo"`

	// Dataset name, e.g. srtm30m, aster30m, etopo1
	Dataset string `koanf:"dataset" validate:"required_if=Provider opentopo"`

	// MaxBatchSize is the number of locations per API request
	MaxBatchSize int `koanf:"max_batch_size" validate:"gte=1,lte=1000"`

	// MaxConcurrency bounds parallel API requests for one batch
	MaxConcurrency int `koanf:"max_concurrency" validate:"gte=1"`

	// RequestsPerSecond throttles API requests (0 = unlimited)
	RequestsPerSecond float64 `koanf:"requests_per_second" validate:"gte=0"`
	Burst             int     `koanf:"burst" validate:"gte=0"`

	Timeout    time.Duration `koanf:"timeout" validate:"gte=0"`
	MaxRetries int           `koanf:"max_retries" validate:"gte=0"`

	// Circuit breaker: consecutive failures before opening, and how long
	// it stays open
	BreakerFailures uint32        `koanf:"breaker_failures" validate:"gte=1"`
	BreakerCooldown time.Duration `koanf:"breaker_cooldown" validate:"gte=0"`

	// CacheEnabled keeps sampled elevations (in the database when one is
	// configured, otherwise in memory)
	CacheEnabled bool `koanf:"cache_enabled"`

	// MemoryCacheSize caps the in-memory cache, in heights; the least
	// recently used are evicted first
	MemoryCacheSize int `koanf:"memory_cache_size" validate:"gte=1"`

	// FlatHeight is the surface height for the flat provider
	FlatHeight float64 `koanf:"flat_height"`
}

// HeightPreset is one entry of the observer height menu.
type HeightPreset struct {
	Label  string  `koanf:"label" json:"label" validate:"required"`
	Meters float64 `koanf:"meters" json:"meters" validate:"gte=0"`
}

// AnalysisConfig holds the default analysis parameterization and limits.
type AnalysisConfig struct {
	RadiusMeters     float64 `koanf:"radius_meters" validate:"gt=0"`
	NumAzimuths      int     `koanf:"num_azimuths" validate:"gte=1"`
	NumSamplesPerRay int     `koanf:"num_samples_per_ray" validate:"gte=1"`
	ProfileSamples   int     `koanf:"profile_samples" validate:"gte=1"`
	ObserverHeight   float64 `koanf:"observer_height" validate:"gte=0"`

	// Upper bounds accepted from API clients
	MaxRadiusMeters float64 `koanf:"max_radius_meters" validate:"gtefield=RadiusMeters"`
	MaxPoints       int     `koanf:"max_points" validate:"gte=1"`

	// Timeout bounds one analysis including terrain sampling
	Timeout time.Duration `koanf:"timeout" validate:"gte=0"`

	// Heights is the observer height menu offered to clients
	Heights []HeightPreset `koanf:"heights" validate:"required,min=1,dive"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              "8080",
			Host:              "0.0.0.0",
			TLSEnabled:        false,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      2 * time.Minute,
			ShutdownTimeout:   10 * time.Second,
			CORSOrigins:       []string{"*"},
			RateLimitRequests: 60,
			RateLimitWindow:   time.Minute,
		},
		Database: DatabaseConfig{
			Enabled:      false,
			Driver:       "postgres",
			Host:         "localhost",
			Port:         5432,
			Database:     "viewscout",
			Username:     "viewscout",
			SSLMode:      "disable",
			MaxOpenConns: 25,
			MaxIdleConns: 5,
		},
		Terrain: TerrainConfig{
			Provider:          "opentopo",
			BaseURL:           "https://api.opentopodata.org",
			Dataset:           "srtm30m",
			MaxBatchSize:      100,
			MaxConcurrency:    4,
			RequestsPerSecond: 1, // public API allows 1 call/second
			Burst:             1,
			Timeout:           15 * time.Second,
			MaxRetries:        3,
			BreakerFailures:   5,
			BreakerCooldown:   30 * time.Second,
			CacheEnabled:      true,
			MemoryCacheSize:   500000,
		},
		Analysis: AnalysisConfig{
			RadiusMeters:     10000,
			NumAzimuths:      72,
			NumSamplesPerRay: 40,
			ProfileSamples:   50,
			ObserverHeight:   1.7,
			MaxRadiusMeters:  50000,
			MaxPoints:        6000,
			Timeout:          90 * time.Second,
			Heights: []HeightPreset{
				{Label: "GROUND", Meters: 1.7},
				{Label: "1 STORY", Meters: 4},
				{Label: "2 STORY", Meters: 7},
				{Label: "3 STORY", Meters: 10},
				{Label: "4 STORY", Meters: 13},
			},
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path and
// VIEWSCOUT_* environment variables, in increasing priority.
// An empty path searches CONFIG_PATH and DefaultConfigPaths; a path that
// doesn't exist is skipped.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(c, "koanf"), nil); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	data, err := k.Marshal(yaml.Parser())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks field constraints, then that the largest accepted
// analysis can finish within the analysis and response timeouts.
func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return err
	}

	timeout := c.Analysis.Timeout
	if timeout == 0 {
		return nil
	}
	if c.Server.WriteTimeout > 0 && c.Server.WriteTimeout <= timeout {
		return fmt.Errorf("server.write_timeout %v must exceed analysis.timeout %v",
			c.Server.WriteTimeout, timeout)
	}
	if need := c.Terrain.MinSamplingTime(c.Analysis.MaxPoints); need >= timeout {
		return fmt.Errorf("analysis.max_points %d needs at least %v of terrain requests, over analysis.timeout %v",
			c.Analysis.MaxPoints, need, timeout)
	}
	return nil
}

// MinSamplingTime is the least time the rate limit allows for fetching
// points in one batch; zero when sampling is not throttled.
func (t TerrainConfig) MinSamplingTime(points int) time.Duration {
	if t.Provider != "opentopo" || t.RequestsPerSecond <= 0 || t.MaxBatchSize <= 0 {
		return 0
	}
	// the observer point is a separate request
	requests := (points+t.MaxBatchSize-1)/t.MaxBatchSize + 1
	waits := requests - max(t.Burst, 1)
	if waits <= 0 {
		return 0
	}
	return time.Duration(float64(waits) / t.RequestsPerSecond * float64(time.Second))
}

// findConfigFile returns the first existing config file, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		return envPath
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envKey maps VIEWSCOUT_SERVER_PORT to server.port and
// VIEWSCOUT_TERRAIN_BASE_URL to terrain.base_url: the first segment after
// the prefix names the section.
func envKey(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	return strings.Replace(key, "_", ".", 1)
}
