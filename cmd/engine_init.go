package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/demographics-cli/internal/census"
	"github.com/sells-group/demographics-cli/internal/config"
	"github.com/sells-group/demographics-cli/internal/db"
	"github.com/sells-group/demographics-cli/internal/demographics"
	"github.com/sells-group/demographics-cli/internal/fetcher"
	"github.com/sells-group/demographics-cli/internal/geospatial"
	"github.com/sells-group/demographics-cli/internal/insights"
	"github.com/sells-group/demographics-cli/internal/radius"
	"github.com/sells-group/demographics-cli/internal/store"
	anthropicpkg "github.com/sells-group/demographics-cli/pkg/anthropic"
	"github.com/sells-group/demographics-cli/pkg/geocode"
)

// engineEnv holds the clients and the service needed by the radius and
// serve commands.
type engineEnv struct {
	Service *demographics.Service
	Fetcher *fetcher.HTTPFetcher
	Pool    *pgxpool.Pool // nil unless a database is configured
	Cache   *store.Cache  // nil unless store.cache_path is set
}

// Close releases resources held by the environment.
func (e *engineEnv) Close() {
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.Fetcher != nil {
		e.Fetcher.CloseIdleConnections()
	}
	if e.Cache != nil {
		_ = e.Cache.Close()
	}
}

// initEngine validates config for mode and wires every lookup component
// into a Service. Callers should defer env.Close().
func initEngine(ctx context.Context, mode string, includeTracts bool) (*engineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	vars := census.DefaultVariables()
	if cfg.Census.VariablesFile != "" {
		loaded, err := census.LoadVariables(cfg.Census.VariablesFile)
		if err != nil {
			return nil, eris.Wrap(err, "load variables")
		}
		vars = loaded
		zap.L().Info("variable table loaded",
			zap.String("path", cfg.Census.VariablesFile),
			zap.Int("variables", vars.Len()),
		)
	}

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  cfg.Fetcher.UserAgent,
		Timeout:    time.Duration(cfg.Fetcher.TimeoutSecs) * time.Second,
		MaxRetries: cfg.Fetcher.MaxRetries,
		CensusRPS:  cfg.Fetcher.CensusRPS,
	})
	env := &engineEnv{Fetcher: f}

	var src fetcher.Fetcher = f
	if cfg.Store.CachePath != "" {
		cache, err := openCache(ctx, cfg.Store.CachePath)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.Cache = cache
		src = store.NewCachingFetcher(f, cache, time.Duration(cfg.Store.CacheTTLHours)*time.Hour)
		zap.L().Info("census response cache enabled", zap.String("path", cfg.Store.CachePath))
	}

	var tracts *geospatial.TractStore
	if cfg.Store.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg.Store.DatabaseURL, &db.PoolConfig{MaxConns: cfg.Store.MaxConns})
		if err != nil {
			env.Close()
			return nil, eris.Wrap(err, "connect tract store")
		}
		env.Pool = pool
		tracts = geospatial.NewTractStore(pool)
		zap.L().Info("postgis tract store enabled")
	}

	geoOpts := []geocode.Option{geocode.WithRateLimit(cfg.Geocode.RateLimit)}
	if cfg.Geocode.GoogleAPIKey != "" {
		geoOpts = append(geoOpts, geocode.WithGoogleAPIKey(cfg.Geocode.GoogleAPIKey))
		zap.L().Info("google geocoding fallback enabled")
	}
	geocoder := geocode.NewClient(geoOpts...)

	client := census.NewClient(src, cfg.Census.BaseURL, cfg.Census.APIKey)
	resolverOpts := census.ResolverOptions{
		GazetteerURL: cfg.Census.GazetteerURL,
		GeoinfoYear:  cfg.Census.GeoinfoYear,
	}
	if tracts != nil {
		resolverOpts.Local = tracts
	}

	var locator radius.TractLocator = geocoder
	if cfg.Geocode.TractLocator == config.LocatorPostGIS {
		locator = tracts
	}

	orchestrator := radius.NewOrchestrator(
		census.NewCatalog(client, cfg.Census.CurrentYear, cfg.Census.ACSDataset),
		census.NewCentroidResolver(src, client, resolverOpts),
		radius.NewSelector(locator),
		radius.NewAggregator(client, cfg.Census.ACSDataset),
	)

	env.Service = demographics.NewService(geocoder, orchestrator, buildInsights(cfg), demographics.Config{
		Radii:          cfg.Radius.DefaultRadii,
		CurrentYear:    cfg.Census.CurrentYear,
		HistoricalYear: cfg.Census.HistoricalYear,
		Variables:      vars,
		Timeout:        time.Duration(cfg.Radius.TimeoutSecs) * time.Second,
		IncludeTracts:  includeTracts,
	})
	return env, nil
}

// openCache opens and migrates the SQLite response cache.
func openCache(ctx context.Context, path string) (*store.Cache, error) {
	cache, err := store.NewSQLite(path)
	if err != nil {
		return nil, eris.Wrap(err, "open response cache")
	}
	if err := cache.Migrate(ctx); err != nil {
		_ = cache.Close()
		return nil, eris.Wrap(err, "migrate response cache")
	}
	return cache, nil
}

// buildInsights returns the configured insight engine, or nil for "none".
func buildInsights(c *config.Config) insights.Generator {
	switch c.Insights.Engine {
	case config.EngineNone:
		return nil
	case config.EngineLLM:
		return insights.NewLLM(anthropicpkg.NewClient(c.Anthropic.Key), c.Anthropic.Model, insights.Rules{})
	default:
		return insights.Rules{}
	}
}
