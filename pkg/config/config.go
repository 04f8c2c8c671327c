// Package config handles loading and managing riskframe configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/riskframe/riskframe/internal/blob"
)

// EnvPrefix prefixes environment overrides, e.g. RISKFRAME_DATABASE_URL.
const EnvPrefix = "RISKFRAME"

// Config is the top-level configuration shared by riskd and riskctl.
type Config struct {
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	Storage  StorageConfig  `yaml:"storage" mapstructure:"storage"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Logging  LoggingConfig  `yaml:"logging" mapstructure:"logging"`
	Tracing  TracingConfig  `yaml:"tracing" mapstructure:"tracing"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Addr           string        `yaml:"addr" mapstructure:"addr"`
	APIKey         string        `yaml:"api_key" mapstructure:"api_key"` // protects admin routes; empty disables auth
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
	CORSOrigins    []string      `yaml:"cors_origins" mapstructure:"cors_origins"`
	SeedDir        string        `yaml:"seed_dir" mapstructure:"seed_dir"` // applied with the loader on startup
}

// DatabaseConfig controls the PostgreSQL connection.
type DatabaseConfig struct {
	URL          string `yaml:"url" mapstructure:"url"`
	MaxOpenConns int    `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	AutoMigrate  bool   `yaml:"auto_migrate" mapstructure:"auto_migrate"`
}

// Submission storage backends.
const (
	StoragePostgres = "postgres"
	StorageLocal    = "local"
	StorageGCS      = "gcs"
	StorageS3       = "s3"
)

// StorageConfig selects where submission snapshots live.
type StorageConfig struct {
	Backend   string        `yaml:"backend" mapstructure:"backend"`
	LocalDir  string        `yaml:"local_dir" mapstructure:"local_dir"`
	GCSBucket string        `yaml:"gcs_bucket" mapstructure:"gcs_bucket"`
	GCSPrefix string        `yaml:"gcs_prefix" mapstructure:"gcs_prefix"`
	S3        blob.S3Config `yaml:"s3" mapstructure:"s3"`
}

// CacheConfig controls sharing of resolved versions between processes.
type CacheConfig struct {
	Backend  string `yaml:"backend" mapstructure:"backend"` // none, memory or redis
	Size     int    `yaml:"size" mapstructure:"size"`
	RedisURL string `yaml:"redis_url" mapstructure:"redis_url"`
	Prefix   string `yaml:"prefix" mapstructure:"prefix"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Mode  string `yaml:"mode" mapstructure:"mode"` // dev or prod
	Level string `yaml:"level" mapstructure:"level"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled" mapstructure:"enabled"`
	ServiceName string  `yaml:"service_name" mapstructure:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio" mapstructure:"sample_ratio"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8080",
			RequestTimeout: 30 * time.Second,
			CORSOrigins:    []string{"*"},
		},
		Database: DatabaseConfig{
			URL:          "postgres://localhost:5432/riskframe?sslmode=disable",
			MaxOpenConns: 10,
			AutoMigrate:  true,
		},
		Storage: StorageConfig{
			Backend:  StoragePostgres,
			LocalDir: "data/submissions",
		},
		Cache: CacheConfig{
			Backend: "none",
			Size:    256,
			Prefix:  "riskframe:",
		},
		Logging: LoggingConfig{
			Mode:  "prod",
			Level: "info",
		},
		Tracing: TracingConfig{
			ServiceName: "riskframe",
			SampleRatio: 1.0,
		},
	}
}

// Load reads a config file from the given path.
// If the file does not exist, it returns the default config.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overlays RISKFRAME_* environment variables onto cfg. Nested keys
// join with underscores: RISKFRAME_STORAGE_S3_BUCKET sets storage.s3.bucket.
func ApplyEnv(cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(string(data))); err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var out Config
	if err := v.Unmarshal(&out); err != nil {
		return fmt.Errorf("applying environment: %w", err)
	}
	*cfg = out
	return nil
}

// LoadWithEnv loads path and applies environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late at startup.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case StoragePostgres:
	case StorageLocal:
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir is required for the local backend")
		}
	case StorageGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket is required for the gcs backend")
		}
	case StorageS3:
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("invalid storage backend: %s. Must be 'postgres', 'local', 'gcs' or 's3'", c.Storage.Backend)
	}

	switch c.Cache.Backend {
	case "none", "memory":
	case "redis":
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("cache.redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid cache backend: %s. Must be 'none', 'memory' or 'redis'", c.Cache.Backend)
	}

	if c.Logging.Mode != "dev" && c.Logging.Mode != "prod" {
		return fmt.Errorf("invalid logging mode: %s. Must be 'dev' or 'prod'", c.Logging.Mode)
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be positive")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be between 0 and 1")
	}
	return nil
}

// FindConfigFile looks for .riskframe/config.yaml in the given directory
// and its parents, returning the path if found, or "" if not.
func FindConfigFile(dir string) string {
	for {
		candidate := filepath.Join(dir, ".riskframe", "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}
