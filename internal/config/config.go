// Package config loads application configuration and sets up logging.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/demographics-cli/internal/census"
)

// Config holds the full application configuration.
type Config struct {
	Census    CensusConfig    `yaml:"census" mapstructure:"census"`
	Radius    RadiusConfig    `yaml:"radius" mapstructure:"radius"`
	Fetcher   FetcherConfig   `yaml:"fetcher" mapstructure:"fetcher"`
	Geocode   GeocodeConfig   `yaml:"geocode" mapstructure:"geocode"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Insights  InsightsConfig  `yaml:"insights" mapstructure:"insights"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// CensusConfig configures the Census Data API and centroid sources.
type CensusConfig struct {
	APIKey         string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
	CurrentYear    string `yaml:"current_year" mapstructure:"current_year"`
	HistoricalYear string `yaml:"historical_year" mapstructure:"historical_year"`
	ACSDataset     string `yaml:"acs_dataset" mapstructure:"acs_dataset"`
	GeoinfoYear    string `yaml:"geoinfo_year" mapstructure:"geoinfo_year"`
	GazetteerURL   string `yaml:"gazetteer_url" mapstructure:"gazetteer_url"`
	VariablesFile  string `yaml:"variables_file" mapstructure:"variables_file"`
}

// RadiusConfig configures the radius engine defaults.
type RadiusConfig struct {
	DefaultRadii []float64 `yaml:"default_radii" mapstructure:"default_radii"`
	TimeoutSecs  int       `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// FetcherConfig configures the HTTP fetcher.
type FetcherConfig struct {
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	CensusRPS   float64 `yaml:"census_rps" mapstructure:"census_rps"`
}

// GeocodeConfig configures address and point lookups.
type GeocodeConfig struct {
	GoogleAPIKey string  `yaml:"google_api_key" mapstructure:"google_api_key"`
	RateLimit    float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	// TractLocator is "census" or "postgis".
	TractLocator string `yaml:"tract_locator" mapstructure:"tract_locator"`
}

// StoreConfig configures the optional PostGIS database and the local
// response cache.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	// CachePath is a SQLite file for Census responses. Empty disables it.
	CachePath     string `yaml:"cache_path" mapstructure:"cache_path"`
	CacheTTLHours int    `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// InsightsConfig selects the insight engine: "rules", "llm", or "none".
type InsightsConfig struct {
	Engine string `yaml:"engine" mapstructure:"engine"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	// RateLimit caps requests per second across the API. Zero disables it.
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Tract locator values.
const (
	LocatorCensus  = "census"
	LocatorPostGIS = "postgis"
)

// Insight engine values.
const (
	EngineRules = "rules"
	EngineLLM   = "llm"
	EngineNone  = "none"
)

// Load reads configuration from .env, config.yaml, and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DEMOGRAPHICS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("census.base_url", "https://api.census.gov/data")
	v.SetDefault("census.api_key", "")
	v.SetDefault("census.current_year", "2022")
	v.SetDefault("census.historical_year", "2017")
	v.SetDefault("census.acs_dataset", census.DefaultACSDataset)
	v.SetDefault("census.geoinfo_year", "2023")
	v.SetDefault("census.gazetteer_url", census.DefaultGazetteerURL)
	v.SetDefault("census.variables_file", "")
	v.SetDefault("radius.default_radii", []float64{1, 3, 5})
	v.SetDefault("radius.timeout_secs", 60)
	v.SetDefault("fetcher.user_agent", "demographics-cli/1.0")
	v.SetDefault("fetcher.timeout_secs", 30)
	v.SetDefault("fetcher.max_retries", 3)
	v.SetDefault("fetcher.census_rps", 20)
	v.SetDefault("geocode.google_api_key", "")
	v.SetDefault("geocode.rate_limit", 10)
	v.SetDefault("geocode.tract_locator", LocatorCensus)
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.cache_path", "")
	v.SetDefault("store.cache_ttl_hours", 720)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("insights.engine", "rules")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_limit", 5)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	return &cfg, nil
}

// Validate checks that required config fields are present for the given
// mode ("radius", "serve", "tracts", or "cache").
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "radius":
	case "tracts":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "cache":
		if c.Store.CachePath == "" {
			errs = append(errs, "store.cache_path is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Geocode.TractLocator {
	case LocatorCensus:
	case LocatorPostGIS:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required when geocode.tract_locator is postgis")
		}
	default:
		errs = append(errs, fmt.Sprintf("geocode.tract_locator must be %q or %q", LocatorCensus, LocatorPostGIS))
	}

	switch c.Insights.Engine {
	case EngineRules, EngineNone:
	case EngineLLM:
		if c.Anthropic.Key == "" {
			errs = append(errs, "anthropic.key is required when insights.engine is llm")
		}
	default:
		errs = append(errs, "insights.engine must be rules, llm, or none")
	}

	if c.Census.CurrentYear == "" || c.Census.HistoricalYear == "" {
		errs = append(errs, "census.current_year and census.historical_year are required")
	} else if c.Census.CurrentYear <= c.Census.HistoricalYear {
		errs = append(errs, "census.current_year must be after census.historical_year")
	}
	if c.Store.CachePath != "" && c.Store.CacheTTLHours <= 0 {
		errs = append(errs, "store.cache_ttl_hours must be > 0")
	}
	for _, r := range c.Radius.DefaultRadii {
		if r <= 0 {
			errs = append(errs, "radius.default_radii must be > 0")
			break
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
