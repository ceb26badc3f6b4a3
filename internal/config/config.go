package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Provider   ProviderConfig   `yaml:"provider"`
	Sync       SyncConfig       `yaml:"sync"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Snapshot   SnapshotConfig   `yaml:"snapshot"`
	Auth       AuthConfig       `yaml:"auth"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ProviderConfig contains remote provider client settings.
type ProviderConfig struct {
	BaseURL    string   `yaml:"base_url"`
	ClientID   string   `yaml:"client_id"`
	Secret     string   `yaml:"-"` // env-only, never in YAML
	Timeout    Duration `yaml:"timeout"`
	MaxRetries int      `yaml:"max_retries"`
}

// SyncConfig contains sync engine settings.
type SyncConfig struct {
	Interval           Duration `yaml:"interval"`
	PageSize           int      `yaml:"page_size"`
	Concurrency        int      `yaml:"concurrency"`
	DuplicateDetection bool     `yaml:"duplicate_detection"`
	DuplicateTolerance float64  `yaml:"duplicate_tolerance"`
}

// EnrichmentConfig contains transaction category enrichment settings.
type EnrichmentConfig struct {
	Enabled     bool     `yaml:"enabled"`
	APIKey      string   `yaml:"-"` // env-only, never in YAML
	Model       string   `yaml:"model"`
	Interval    Duration `yaml:"interval"`
	MaxAttempts int      `yaml:"max_attempts"`
	BatchSize   int      `yaml:"batch_size"`
}

// SnapshotConfig contains database snapshot settings. S3 upload is disabled
// when Bucket is empty.
type SnapshotConfig struct {
	Interval  Duration `yaml:"interval"`
	Endpoint  string   `yaml:"endpoint"`
	Bucket    string   `yaml:"bucket"`
	Region    string   `yaml:"region"`
	AccessKey string   `yaml:"-"` // env-only, never in YAML
	SecretKey string   `yaml:"-"` // env-only, never in YAML
	UseSSL    *bool    `yaml:"use_ssl"`
	URLExpiry Duration `yaml:"url_expiry"`
}

// AuthConfig contains API authentication settings.
type AuthConfig struct {
	APIKey string `yaml:"-"` // env-only, never in YAML
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load loads configuration with precedence: defaults → YAML file → env vars.
// Returns an immutable Config suitable for concurrent read access.
func Load() (*Config, error) {
	cfg := newDefaults()

	configPath := getEnv("LEDGERSYNC_CONFIG_PATH", "config/ledgersync.yaml")

	// Load YAML file if it exists (missing file is not an error)
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a specific path.
// Used for testing and explicit path specification.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newDefaults returns a Config with all default values.
func newDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Database: DatabaseConfig{
			Path: "data/ledgersync.db",
		},
		Provider: ProviderConfig{
			BaseURL:    "https://sandbox.provider.example.com",
			Timeout:    Duration(30 * time.Second),
			MaxRetries: 3,
		},
		Sync: SyncConfig{
			Interval:           Duration(15 * time.Minute),
			PageSize:           100,
			Concurrency:        4,
			DuplicateDetection: true,
			DuplicateTolerance: 1.00,
		},
		Enrichment: EnrichmentConfig{
			Enabled:     false,
			Model:       "gpt-4o-mini",
			Interval:    Duration(5 * time.Minute),
			MaxAttempts: 10,
			BatchSize:   25,
		},
		Snapshot: SnapshotConfig{
			Interval:  Duration(1 * time.Hour),
			Region:    "us-east-1",
			URLExpiry: Duration(15 * time.Minute),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// loadYAMLFile loads configuration from a YAML file if it exists.
// Missing file is not an error; we just use defaults.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values.
func applyEnvOverrides(cfg *Config) {
	// Server
	if v := os.Getenv("LEDGERSYNC_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("LEDGERSYNC_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = Duration(d)
		}
	}
	if v := os.Getenv("LEDGERSYNC_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = Duration(d)
		}
	}
	if v := os.Getenv("LEDGERSYNC_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ShutdownTimeout = Duration(d)
		}
	}

	// Database
	if v := os.Getenv("LEDGERSYNC_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Provider
	if v := os.Getenv("LEDGERSYNC_PROVIDER_URL"); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := os.Getenv("LEDGERSYNC_PROVIDER_CLIENT_ID"); v != "" {
		cfg.Provider.ClientID = v
	}
	if v := os.Getenv("LEDGERSYNC_PROVIDER_SECRET"); v != "" {
		cfg.Provider.Secret = v
	}
	if v := os.Getenv("LEDGERSYNC_PROVIDER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Provider.Timeout = Duration(d)
		}
	}
	if v := os.Getenv("LEDGERSYNC_PROVIDER_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Provider.MaxRetries = n
		}
	}

	// Sync
	if v := os.Getenv("LEDGERSYNC_SYNC_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Sync.Interval = Duration(d)
		}
	}
	if v := os.Getenv("LEDGERSYNC_SYNC_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sync.PageSize = n
		}
	}
	if v := os.Getenv("LEDGERSYNC_SYNC_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sync.Concurrency = n
		}
	}
	if v := os.Getenv("LEDGERSYNC_DUPLICATE_DETECTION"); v != "" {
		cfg.Sync.DuplicateDetection = v == "true" || v == "1"
	}
	if v := os.Getenv("LEDGERSYNC_DUPLICATE_TOLERANCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Sync.DuplicateTolerance = f
		}
	}

	// Enrichment (OPENAI_API_KEY is industry convention)
	if v := os.Getenv("LEDGERSYNC_ENRICHMENT_ENABLED"); v != "" {
		cfg.Enrichment.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Enrichment.APIKey = v
	}
	if v := os.Getenv("LEDGERSYNC_ENRICHMENT_MODEL"); v != "" {
		cfg.Enrichment.Model = v
	}
	if v := os.Getenv("LEDGERSYNC_ENRICHMENT_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Enrichment.Interval = Duration(d)
		}
	}
	if v := os.Getenv("LEDGERSYNC_ENRICHMENT_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Enrichment.MaxAttempts = n
		}
	}
	if v := os.Getenv("LEDGERSYNC_ENRICHMENT_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Enrichment.BatchSize = n
		}
	}

	// Snapshot
	if v := os.Getenv("LEDGERSYNC_SNAPSHOT_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Snapshot.Interval = Duration(d)
		}
	}
	if v := os.Getenv("LEDGERSYNC_SNAPSHOT_ENDPOINT"); v != "" {
		cfg.Snapshot.Endpoint = v
	}
	if v := os.Getenv("LEDGERSYNC_SNAPSHOT_BUCKET"); v != "" {
		cfg.Snapshot.Bucket = v
	}
	if v := os.Getenv("LEDGERSYNC_SNAPSHOT_REGION"); v != "" {
		cfg.Snapshot.Region = v
	}
	if v := os.Getenv("LEDGERSYNC_SNAPSHOT_ACCESS_KEY"); v != "" {
		cfg.Snapshot.AccessKey = v
	}
	if v := os.Getenv("LEDGERSYNC_SNAPSHOT_SECRET_KEY"); v != "" {
		cfg.Snapshot.SecretKey = v
	}

	// Auth
	if v := os.Getenv("LEDGERSYNC_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}

	// Log
	if v := os.Getenv("LEDGERSYNC_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LEDGERSYNC_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// validate checks that required configuration values are set.
// In dev mode (LEDGERSYNC_DEV_MODE=true), credential validation is skipped.
func (c *Config) validate() error {
	if c.Sync.PageSize <= 0 {
		return errors.New("sync.page_size must be positive")
	}
	if c.Sync.Concurrency <= 0 {
		return errors.New("sync.concurrency must be positive")
	}
	if c.Sync.DuplicateTolerance < 0 {
		return errors.New("sync.duplicate_tolerance must not be negative")
	}

	// Dev mode bypasses credential validation
	if os.Getenv("LEDGERSYNC_DEV_MODE") == "true" {
		return nil
	}

	if c.Provider.Secret == "" {
		return errors.New("LEDGERSYNC_PROVIDER_SECRET is required")
	}
	if c.Auth.APIKey == "" {
		return errors.New("LEDGERSYNC_API_KEY is required")
	}
	if c.Enrichment.Enabled && c.Enrichment.APIKey == "" {
		return errors.New("OPENAI_API_KEY is required when enrichment is enabled")
	}
	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
