// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Adapters  AdaptersConfig  `mapstructure:"adapters"`
	Nutrition NutritionConfig `mapstructure:"nutrition"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// SchedulerConfig governs the refresh cycle cadence.
type SchedulerConfig struct {
	IntervalMinutes     int  `mapstructure:"interval_minutes"`
	CycleTimeoutSeconds int  `mapstructure:"cycle_timeout_seconds"`
	RunOnStart          bool `mapstructure:"run_on_start"`
}

// AdaptersConfig selects and tunes the university source adapters.
type AdaptersConfig struct {
	Enabled        []string `mapstructure:"enabled"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds"`
	FetchWorkers   int      `mapstructure:"fetch_workers"`
	UserAgent      string   `mapstructure:"user_agent"`
}

// NutritionConfig configures the external nutrition lookup and its cache.
type NutritionConfig struct {
	APIKey          string  `mapstructure:"api_key"`
	BaseURL         string  `mapstructure:"base_url"`
	TimeoutSeconds  int     `mapstructure:"timeout_seconds"`
	RequestsPerSec  float64 `mapstructure:"requests_per_sec"`
	Burst           int     `mapstructure:"burst"`
	Workers         int     `mapstructure:"workers"`
	CacheSize       int     `mapstructure:"cache_size"`
	CacheTTLMinutes int     `mapstructure:"cache_ttl_minutes"`
}

// StorageConfig selects the snapshot persistence provider.
type StorageConfig struct {
	Provider    string `mapstructure:"provider"`
	LocalDir    string `mapstructure:"local_dir"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	GCSObject   string `mapstructure:"gcs_object"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MENUD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("scheduler.interval_minutes", 60)
	v.SetDefault("scheduler.cycle_timeout_seconds", 300)
	v.SetDefault("scheduler.run_on_start", true)
	v.SetDefault("adapters.enabled", []string{"columbia", "cornell"})
	v.SetDefault("adapters.timeout_seconds", 30)
	v.SetDefault("adapters.fetch_workers", 4)
	v.SetDefault("adapters.user_agent", "menud-bot/0.1")
	v.SetDefault("nutrition.base_url", "https://api.nal.usda.gov/fdc/v1")
	v.SetDefault("nutrition.timeout_seconds", 10)
	v.SetDefault("nutrition.requests_per_sec", 2.0)
	v.SetDefault("nutrition.burst", 4)
	v.SetDefault("nutrition.workers", 4)
	v.SetDefault("nutrition.cache_size", 2048)
	v.SetDefault("nutrition.cache_ttl_minutes", 1440)
	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.local_dir", "data")
	v.SetDefault("storage.gcs_object", "snapshots/latest.json")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Scheduler.IntervalMinutes <= 0 {
		return fmt.Errorf("scheduler.interval_minutes must be > 0")
	}
	if c.Scheduler.CycleTimeoutSeconds <= 0 {
		return fmt.Errorf("scheduler.cycle_timeout_seconds must be > 0")
	}
	if len(c.Adapters.Enabled) == 0 {
		return fmt.Errorf("adapters.enabled must name at least one university")
	}
	if c.Adapters.TimeoutSeconds <= 0 {
		return fmt.Errorf("adapters.timeout_seconds must be > 0")
	}
	if c.Adapters.FetchWorkers <= 0 {
		return fmt.Errorf("adapters.fetch_workers must be > 0")
	}
	if c.Nutrition.Workers <= 0 {
		return fmt.Errorf("nutrition.workers must be > 0")
	}
	if c.Nutrition.CacheSize <= 0 {
		return fmt.Errorf("nutrition.cache_size must be > 0")
	}
	switch c.Storage.Provider {
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir must be set for the local provider")
		}
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn must be set for the postgres provider")
		}
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs provider")
		}
	case "noop":
	default:
		return fmt.Errorf("unknown storage provider: %s", c.Storage.Provider)
	}
	return nil
}

// RefreshInterval converts the configured cadence into a duration.
func (c Config) RefreshInterval() time.Duration {
	return time.Duration(c.Scheduler.IntervalMinutes) * time.Minute
}

// CycleTimeout is the overall deadline for one scrape cycle.
func (c Config) CycleTimeout() time.Duration {
	return time.Duration(c.Scheduler.CycleTimeoutSeconds) * time.Second
}

// AdapterTimeout is the per-university fetch deadline.
func (c Config) AdapterTimeout() time.Duration {
	return time.Duration(c.Adapters.TimeoutSeconds) * time.Second
}

// CacheTTL is the staleness horizon for cached nutrition entries.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Nutrition.CacheTTLMinutes) * time.Minute
}
