package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Catalog  CatalogConfig
	Cache    CacheConfig
	Matching MatchingConfig
	Tracker  TrackerConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// CatalogConfig holds pricing-catalog API configuration. The base URL and
// key come from the environment; they are never hardcoded in the engine.
type CatalogConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	Retries    int           `mapstructure:"retries"`
	Timeout    time.Duration `mapstructure:"timeout"`
	PacerDelay time.Duration `mapstructure:"pacer_delay"`
}

// CacheConfig holds cache-related configuration.
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// MatchingConfig holds confidence thresholds over the match score. These are
// empirically chosen tunables, not load-bearing constants.
type MatchingConfig struct {
	HighThreshold      int  `mapstructure:"high_threshold"`
	MediumThreshold    int  `mapstructure:"medium_threshold"`
	EnableDebugLogging bool `mapstructure:"enable_debug_logging"`
}

// TrackerConfig holds batch price tracker configuration. The tracker only
// starts when enabled and a Postgres DSN is configured.
type TrackerConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	PostgresDSN string        `mapstructure:"postgres_dsn"`
	Schema      string        `mapstructure:"schema"`
	Interval    time.Duration `mapstructure:"interval"`
	GroupSize   int           `mapstructure:"group_size"`
	GroupDelay  time.Duration `mapstructure:"group_delay"`
	StaleAfter  time.Duration `mapstructure:"stale_after"`
	BatchLimit  int           `mapstructure:"batch_limit"`
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/cardlens/")

	v.SetEnvPrefix("CARDLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional; env vars and defaults are enough.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Catalog defaults
	v.SetDefault("catalog.base_url", "https://www.pricecharting.com")
	v.SetDefault("catalog.retries", 2)
	v.SetDefault("catalog.timeout", "15s")
	v.SetDefault("catalog.pacer_delay", "1s")

	// Cache defaults
	v.SetDefault("cache.ttl", "12h")

	// Matching defaults
	v.SetDefault("matching.high_threshold", 60)
	v.SetDefault("matching.medium_threshold", 35)

	// Tracker defaults
	v.SetDefault("tracker.enabled", false)
	v.SetDefault("tracker.schema", "public")
	v.SetDefault("tracker.interval", "6h")
	v.SetDefault("tracker.group_size", 5)
	v.SetDefault("tracker.group_delay", "5s")
	v.SetDefault("tracker.stale_after", "24h")
	v.SetDefault("tracker.batch_limit", 100)
}

// loadEnvFile loads variables from a local .env file into the process
// environment. Existing variables are never overridden; a missing file is
// not an error.
func loadEnvFile() error {
	f, err := os.Open(".env")
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if _, exists := os.LookupEnv(key); !exists {
			os.Setenv(key, value)
		}
	}

	return scanner.Err()
}

// validate validates the configuration.
func validate(config *Config) error {
	if config.Catalog.APIKey == "" {
		return fmt.Errorf("catalog API key is required (set CARDLENS_CATALOG_API_KEY)")
	}

	if config.Matching.HighThreshold < config.Matching.MediumThreshold {
		return fmt.Errorf("matching.high_threshold (%d) must be >= matching.medium_threshold (%d)",
			config.Matching.HighThreshold, config.Matching.MediumThreshold)
	}

	if config.Tracker.Enabled && config.Tracker.PostgresDSN == "" {
		return fmt.Errorf("tracker.postgres_dsn is required when the tracker is enabled")
	}

	return nil
}
