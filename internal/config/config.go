// Package config loads application configuration from file and
// environment and wires the global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Countries CountriesConfig `yaml:"countries" mapstructure:"countries"`
	Flights   FlightsConfig   `yaml:"flights" mapstructure:"flights"`
	Exchange  ExchangeConfig  `yaml:"exchange" mapstructure:"exchange"`
	Scoring   ScoringConfig   `yaml:"scoring" mapstructure:"scoring"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the snapshot database backend.
type StoreConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// CacheConfig configures the file cache.
type CacheConfig struct {
	Dir      string `yaml:"dir" mapstructure:"dir"`
	MaxBytes int64  `yaml:"max_bytes" mapstructure:"max_bytes"`
}

// CountriesConfig points at the destination catalog.
type CountriesConfig struct {
	// Path to a catalog file; empty uses the embedded default.
	Path string `yaml:"path" mapstructure:"path"`
}

// FlightsConfig holds flight search API settings.
type FlightsConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ExchangeConfig holds exchange rate API settings.
type ExchangeConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ScoringConfig tunes the scoring engine.
type ScoringConfig struct {
	// UseExpanded enables the six-indicator weight set for destinations
	// that have safety/visa/access data.
	UseExpanded bool `yaml:"use_expanded" mapstructure:"use_expanded"`
}

// PipelineConfig configures the ranking run.
type PipelineConfig struct {
	MaxConcurrentDestinations int  `yaml:"max_concurrent_destinations" mapstructure:"max_concurrent_destinations"`
	AllowStaleCache           bool `yaml:"allow_stale_cache" mapstructure:"allow_stale_cache"`
	UseMockData               bool `yaml:"use_mock_data" mapstructure:"use_mock_data"`
}

// ServerConfig configures the JSON API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Timeout returns the flight API timeout as a duration.
func (c FlightsConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// Timeout returns the exchange API timeout as a duration.
func (c ExchangeConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("NOMAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "data/snapshots.db")
	v.SetDefault("cache.dir", "data/cache")
	v.SetDefault("cache.max_bytes", 100<<20)
	v.SetDefault("flights.base_url", "https://serpapi.com/search")
	v.SetDefault("flights.timeout_secs", 30)
	v.SetDefault("exchange.base_url", "https://v6.exchangerate-api.com/v6")
	v.SetDefault("exchange.timeout_secs", 10)
	v.SetDefault("scoring.use_expanded", true)
	v.SetDefault("pipeline.max_concurrent_destinations", 4)
	v.SetDefault("pipeline.allow_stale_cache", true)
	v.SetDefault("server.port", 8080)
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
