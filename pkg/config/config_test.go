package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestDefaultConfig verifies that DefaultConfig returns valid defaults.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// Server defaults
	if cfg.Server.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Expected default host 0.0.0.0, got %s", cfg.Server.Host)
	}
	if cfg.Server.TLSEnabled {
		t.Error("Expected TLS disabled by default")
	}
	if cfg.Server.Addr() != "0.0.0.0:8080" {
		t.Errorf("Expected addr 0.0.0.0:8080, got %s", cfg.Server.Addr())
	}

	// Database defaults
	if cfg.Database.Enabled {
		t.Error("Expected database disabled by default")
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("Expected default postgres port 5432, got %d", cfg.Database.Port)
	}

	// Terrain defaults
	if cfg.Terrain.Provider != "opentopo" {
		t.Errorf("Expected opentopo provider, got %s", cfg.Terrain.Provider)
	}
	if cfg.Terrain.MaxBatchSize != 100 {
		t.Errorf("Expected batch size 100, got %d", cfg.Terrain.MaxBatchSize)
	}

	// Analysis defaults
	a := cfg.Analysis
	if a.RadiusMeters != 10000 || a.NumAzimuths != 72 || a.NumSamplesPerRay != 40 || a.ProfileSamples != 50 {
		t.Errorf("Unexpected analysis defaults: %+v", a)
	}
	wantHeights := []HeightPreset{
		{"GROUND", 1.7}, {"1 STORY", 4}, {"2 STORY", 7}, {"3 STORY", 10}, {"4 STORY", 13},
	}
	if len(a.Heights) != len(wantHeights) {
		t.Fatalf("Expected %d height presets, got %d", len(wantHeights), len(a.Heights))
	}
	for i, h := range wantHeights {
		if a.Heights[i] != h {
			t.Errorf("preset %d: expected %+v, got %+v", i, h, a.Heights[i])
		}
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected defaults to validate, got: %v", err)
	}
}

// TestLoadNonExistentFile tests that Load returns defaults when the file doesn't exist.
func TestLoadNonExistentFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("Expected no error for non-existent file, got: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Expected default port, got %s", cfg.Server.Port)
	}
	if cfg.Analysis.NumAzimuths != 72 {
		t.Errorf("Expected default azimuths, got %d", cfg.Analysis.NumAzimuths)
	}
}

// TestLoadYAML tests that file values override defaults.
func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  port: "9000"
terrain:
  provider: flat
  flat_height: 12.5
analysis:
  num_azimuths: 36
  heights:
    - label: ROOF
      meters: 20
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != "9000" {
		t.Errorf("Expected port 9000, got %s", cfg.Server.Port)
	}
	if cfg.Terrain.Provider != "flat" || cfg.Terrain.FlatHeight != 12.5 {
		t.Errorf("Expected flat provider at 12.5, got %s at %v", cfg.Terrain.Provider, cfg.Terrain.FlatHeight)
	}
	if cfg.Analysis.NumAzimuths != 36 {
		t.Errorf("Expected 36 azimuths, got %d", cfg.Analysis.NumAzimuths)
	}
	// Untouched values keep their defaults
	if cfg.Analysis.NumSamplesPerRay != 40 {
		t.Errorf("Expected default samples 40, got %d", cfg.Analysis.NumSamplesPerRay)
	}
	if len(cfg.Analysis.Heights) != 1 || cfg.Analysis.Heights[0].Label != "ROOF" {
		t.Errorf("Expected the file's height menu, got %+v", cfg.Analysis.Heights)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected debug logging, got %s", cfg.Logging.Level)
	}
}

// TestEnvironmentOverrides tests that VIEWSCOUT_* variables win over the file.
func TestEnvironmentOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: \"9000\"\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	t.Setenv("VIEWSCOUT_SERVER_PORT", "9191")
	t.Setenv("VIEWSCOUT_DATABASE_PASSWORD", "secret")
	t.Setenv("VIEWSCOUT_TERRAIN_BASE_URL", "http://localhost:5000")
	t.Setenv("VIEWSCOUT_ANALYSIS_RADIUS_METERS", "5000")
	t.Setenv("VIEWSCOUT_TERRAIN_TIMEOUT", "3s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != "9191" {
		t.Errorf("Expected port 9191 from env, got %s", cfg.Server.Port)
	}
	if cfg.Database.Password != "secret" {
		t.Errorf("Expected password from env, got %q", cfg.Database.Password)
	}
	if cfg.Terrain.BaseURL != "http://localhost:5000" {
		t.Errorf("Expected base URL from env, got %s", cfg.Terrain.BaseURL)
	}
	if cfg.Analysis.RadiusMeters != 5000 {
		t.Errorf("Expected radius 5000 from env, got %v", cfg.Analysis.RadiusMeters)
	}
	if cfg.Terrain.Timeout != 3*time.Second {
		t.Errorf("Expected 3s terrain timeout, got %v", cfg.Terrain.Timeout)
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"VIEWSCOUT_SERVER_PORT":                  "server.port",
		"VIEWSCOUT_TERRAIN_BASE_URL":             "terrain.base_url",
		"VIEWSCOUT_DATABASE_MAX_OPEN_CONNS":      "database.max_open_conns",
		"VIEWSCOUT_ANALYSIS_NUM_SAMPLES_PER_RAY": "analysis.num_samples_per_ray",
		"VIEWSCOUT_LOGGING_LEVEL":                "logging.level",
	}
	for in, want := range tests {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%s): expected %s, got %s", in, want, got)
		}
	}
}

// TestLoadInvalid tests that validation failures are reported.
func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "unknown terrain provider",
			env:  map[string]string{"VIEWSCOUT_TERRAIN_PROVIDER": "lidar"},
			want: "Provider",
		},
		{
			name: "tls without certificate",
			env:  map[string]string{"VIEWSCOUT_SERVER_TLS_ENABLED": "true"},
			want: "TLSCertFile",
		},
		{
			name: "zero azimuths",
			env:  map[string]string{"VIEWSCOUT_ANALYSIS_NUM_AZIMUTHS": "0"},
			want: "NumAzimuths",
		},
		{
			name: "max radius below default radius",
			env:  map[string]string{"VIEWSCOUT_ANALYSIS_MAX_RADIUS_METERS": "500"},
			want: "MaxRadiusMeters",
		},
		{
			name: "write timeout within analysis timeout",
			env:  map[string]string{"VIEWSCOUT_SERVER_WRITE_TIMEOUT": "60s"},
			want: "write_timeout",
		},
		{
			name: "max points slower than analysis timeout",
			env:  map[string]string{"VIEWSCOUT_ANALYSIS_MAX_POINTS": "20000"},
			want: "max_points",
		},
		{
			name: "zero memory cache",
			env:  map[string]string{"VIEWSCOUT_TERRAIN_MEMORY_CACHE_SIZE": "0"},
			want: "MemoryCacheSize",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("/nonexistent/path/config.yaml")
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error to mention %s, got: %v", tt.want, err)
			}
		})
	}
}

func TestMinSamplingTime(t *testing.T) {
	base := DefaultConfig().Terrain

	tests := []struct {
		name   string
		mutate func(*TerrainConfig)
		points int
		want   time.Duration
	}{
		{"default maximum", func(*TerrainConfig) {}, 6000, 60 * time.Second},
		{"default analysis", func(*TerrainConfig) {}, 2880, 29 * time.Second},
		{"within burst", func(c *TerrainConfig) { c.Burst = 5 }, 300, 0},
		{"faster rate", func(c *TerrainConfig) { c.RequestsPerSecond = 4 }, 6000, 15 * time.Second},
		{"unthrottled", func(c *TerrainConfig) { c.RequestsPerSecond = 0 }, 6000, 0},
		{"flat provider", func(c *TerrainConfig) { c.Provider = "flat" }, 6000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			if got := cfg.MinSamplingTime(tt.points); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

// TestSaveAndLoad tests saving and loading configuration.
func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Server.Port = "7070"
	cfg.Terrain.Dataset = "aster30m"
	cfg.Analysis.Heights = append(cfg.Analysis.Heights, HeightPreset{Label: "TOWER", Meters: 30})

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load saved config: %v", err)
	}

	if loaded.Server.Port != "7070" {
		t.Errorf("Expected port 7070, got %s", loaded.Server.Port)
	}
	if loaded.Terrain.Dataset != "aster30m" {
		t.Errorf("Expected dataset aster30m, got %s", loaded.Terrain.Dataset)
	}
	if loaded.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("Expected shutdown timeout 10s, got %v", loaded.Server.ShutdownTimeout)
	}
	if n := len(loaded.Analysis.Heights); n != 6 {
		t.Errorf("Expected 6 height presets, got %d", n)
	}
}

// TestExampleConfig keeps the shipped example in sync with the defaults.
func TestExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "config.example.yaml"))
	if err != nil {
		t.Fatalf("Failed to load example config: %v", err)
	}

	def := DefaultConfig()
	if cfg.Server.Addr() != def.Server.Addr() || cfg.Server.RateLimitWindow != def.Server.RateLimitWindow {
		t.Errorf("Expected example server section to match defaults, got %+v", cfg.Server)
	}
	if len(cfg.Analysis.Heights) != len(def.Analysis.Heights) {
		t.Errorf("Expected %d height presets, got %d", len(def.Analysis.Heights), len(cfg.Analysis.Heights))
	}
	if cfg.Terrain.Timeout != def.Terrain.Timeout || cfg.Analysis.Timeout != def.Analysis.Timeout {
		t.Errorf("Expected default timeouts, got %v / %v", cfg.Terrain.Timeout, cfg.Analysis.Timeout)
	}
	if cfg.Server.WriteTimeout != def.Server.WriteTimeout {
		t.Errorf("Expected write timeout %v, got %v", def.Server.WriteTimeout, cfg.Server.WriteTimeout)
	}
	if cfg.Analysis.MaxPoints != def.Analysis.MaxPoints || cfg.Terrain.MemoryCacheSize != def.Terrain.MemoryCacheSize {
		t.Errorf("Expected default limits, got max_points %d, memory_cache_size %d",
			cfg.Analysis.MaxPoints, cfg.Terrain.MemoryCacheSize)
	}
}
