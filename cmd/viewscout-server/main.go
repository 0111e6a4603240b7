// ViewScout API server
// Serves viewshed, water and score analyses over HTTP
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/unklstewy/viewscout/internal/analysis"
	"github.com/unklstewy/viewscout/internal/db"
	"github.com/unklstewy/viewscout/internal/logging"
	"github.com/unklstewy/viewscout/internal/server"
	"github.com/unklstewy/viewscout/pkg/config"
	"github.com/unklstewy/viewscout/pkg/terrain"
)

const (
	dbConnectRetries = 5
	dbRetryDelay     = 2 * time.Second

	// Cached elevations unused for this long are pruned daily
	cacheMaxAge   = 30 * 24 * time.Hour
	pruneInterval = 24 * time.Hour
)

var configPath = flag.String("config", "", "Path to configuration file (default: search CONFIG_PATH and configs/config.yaml)")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Init(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logging.Error().Err(err).Msg("server exited")
		stop()
		os.Exit(1)
	}
}

// run serves the API until ctx is done or the listener fails. Resources it
// opens are released before it returns.
func run(ctx context.Context, cfg *config.Config) error {
	log := logging.Component("server")
	opts := server.Options{Config: cfg.Server}

	var store terrain.ElevationStore
	if cfg.Database.Enabled {
		database, err := db.ReconnectWithRetry(ctx, cfg.Database, dbConnectRetries, dbRetryDelay)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer database.Close()

		if err := database.InitSchema(ctx); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}

		store = db.NewElevationCacheRepository(database, cfg.Terrain.Dataset)
		opts.DB = database
		opts.Viewpoints = db.NewViewpointRepository(database)
		go pruneCache(ctx, database)

		log.Info().Str("host", cfg.Database.Host).Str("database", cfg.Database.Database).Msg("database connected")
	}

	sampler := terrain.NewSampler(cfg.Terrain, store)
	opts.Analysis = analysis.NewService(sampler, cfg.Analysis)
	log.Info().
		Str("provider", cfg.Terrain.Provider).
		Str("dataset", cfg.Terrain.Dataset).
		Bool("cache", cfg.Terrain.CacheEnabled).
		Msg("terrain sampler ready")

	srv := server.New(opts)
	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", httpServer.Addr).Bool("tls", cfg.Server.TLSEnabled).Msg("server listening")
		if cfg.Server.TLSEnabled {
			errc <- httpServer.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			errc <- httpServer.ListenAndServe()
		}
	}()

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Info().Msg("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}

// pruneCache drops stale cached elevations until ctx is done.
func pruneCache(ctx context.Context, database *db.DB) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		n, err := database.PruneElevationCache(ctx, cacheMaxAge)
		if err != nil {
			logging.Warn().Err(err).Msg("failed to prune elevation cache")
		} else if n > 0 {
			logging.Info().Int64("rows", n).Msg("pruned elevation cache")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
