// Package config loads sentinel's configuration from a YAML file layered
// under environment-variable overrides, with validation and a narrow
// hot-reload path for operational toggles.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig             `yaml:"server"`
	Database DatabaseConfig           `yaml:"database"`
	Redis    RedisConfig              `yaml:"redis"`
	Pipeline PipelineConfig           `yaml:"pipeline"`
	Logging  LoggingConfig            `yaml:"logging"`
	Metrics  MetricsConfig            `yaml:"metrics"`
	Sources  map[string]AdapterConfig `yaml:"sources"`
}

type ServerConfig struct {
	Host                    string        `yaml:"host"`
	Port                    int           `yaml:"port"`
	ReadTimeout             time.Duration `yaml:"read_timeout"`
	WriteTimeout            time.Duration `yaml:"write_timeout"`
	IdleTimeout             time.Duration `yaml:"idle_timeout"`
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxConns        int           `yaml:"max_conns"`
	MinConns        int           `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// PipelineConfig holds the alerting pipeline's tunables, spec.md §6's
// global configuration block. The three *_hours YAML keys decode into
// time.Duration, so they take Go duration strings ("6h", "90m"); a bare
// number such as 6 is rejected by the YAML decoder. The matching
// *_HOURS environment variables take a numeric hour count.
type PipelineConfig struct {
	WebhookURL              string        `yaml:"webhook_url"`
	MaxDistanceKM           float64       `yaml:"max_distance_km"`
	MinCorroborationSources int           `yaml:"min_corroboration_sources"`
	ClusterExpiry           time.Duration `yaml:"cluster_expiry_hours"`
	FreshMax                time.Duration `yaml:"fresh_max_hours"`
	TemporalWindow          time.Duration `yaml:"temporal_window_hours"`
	GeoWindowKM             float64       `yaml:"geo_window_km"`
	SimThreshold            float64       `yaml:"sim_threshold"`
	DryRun                  bool          `yaml:"dry_run"`
}

// AdapterConfig is one entry of the per-source adapter configuration
// spec.md §6 names: `{enabled, interval_sec, trust, adapter_params}`.
type AdapterConfig struct {
	Enabled       bool              `yaml:"enabled"`
	IntervalSec   int               `yaml:"interval_sec"`
	Trust         string            `yaml:"trust"`
	AdapterParams map[string]string `yaml:"adapter_params"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or text
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// Load reads configuration from path (if non-empty and present on
// disk), then applies environment-variable overrides on top, and
// finally validates the merged result. An empty or missing path is not
// an error: defaults plus environment overrides still produce a usable
// Config, matching the teacher's original env-only Load().
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		if err := loadYAMLFile(path, cfg); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:                    "0.0.0.0",
			Port:                    8080,
			ReadTimeout:             30 * time.Second,
			WriteTimeout:            30 * time.Second,
			IdleTimeout:             120 * time.Second,
			GracefulShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			MaxConns:        25,
			MinConns:        5,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 30 * time.Minute,
		},
		Redis: RedisConfig{},
		Pipeline: PipelineConfig{
			MaxDistanceKM:           50.0,
			MinCorroborationSources: 2,
			ClusterExpiry:           6 * time.Hour,
			FreshMax:                3 * time.Hour,
			TemporalWindow:          2 * time.Hour,
			GeoWindowKM:             3.0,
			SimThreshold:            0.25,
			DryRun:                  false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Sources: map[string]AdapterConfig{},
	}
}

// loadYAMLFile merges a YAML document at path into cfg. A missing file
// is tolerated so operators can run purely off environment variables.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides layers environment variables on top of whatever
// was loaded from YAML (or the defaults), so an operator can override
// a single field without editing the file.
func applyEnvOverrides(cfg *Config) {
	cfg.Server.Host = getEnv("SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("SERVER_PORT", cfg.Server.Port)
	cfg.Server.ReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", cfg.Server.IdleTimeout)
	cfg.Server.GracefulShutdownTimeout = getEnvDuration("SERVER_GRACEFUL_SHUTDOWN_TIMEOUT", cfg.Server.GracefulShutdownTimeout)

	cfg.Database.URL = getEnv("DATABASE_URL", cfg.Database.URL)
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", cfg.Database.MaxConns)
	cfg.Database.MinConns = getEnvInt("DB_MIN_CONNS", cfg.Database.MinConns)
	cfg.Database.MaxConnLifetime = getEnvDuration("DB_MAX_CONN_LIFETIME", cfg.Database.MaxConnLifetime)
	cfg.Database.MaxConnIdleTime = getEnvDuration("DB_MAX_CONN_IDLE_TIME", cfg.Database.MaxConnIdleTime)

	cfg.Redis.URL = getEnv("REDIS_URL", cfg.Redis.URL)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvInt("REDIS_DB", cfg.Redis.DB)

	cfg.Pipeline.WebhookURL = getEnv("WEBHOOK_URL", cfg.Pipeline.WebhookURL)
	cfg.Pipeline.MaxDistanceKM = getEnvFloat("MAX_DISTANCE_KM", cfg.Pipeline.MaxDistanceKM)
	cfg.Pipeline.MinCorroborationSources = getEnvInt("MIN_CORROBORATION_SOURCES", cfg.Pipeline.MinCorroborationSources)
	cfg.Pipeline.ClusterExpiry = getEnvHours("CLUSTER_EXPIRY_HOURS", cfg.Pipeline.ClusterExpiry)
	cfg.Pipeline.FreshMax = getEnvHours("FRESH_MAX_HOURS", cfg.Pipeline.FreshMax)
	cfg.Pipeline.TemporalWindow = getEnvHours("TEMPORAL_WINDOW_HOURS", cfg.Pipeline.TemporalWindow)
	cfg.Pipeline.GeoWindowKM = getEnvFloat("GEO_WINDOW_KM", cfg.Pipeline.GeoWindowKM)
	cfg.Pipeline.SimThreshold = getEnvFloat("SIM_THRESHOLD", cfg.Pipeline.SimThreshold)
	cfg.Pipeline.DryRun = getEnvBool("DRY_RUN", cfg.Pipeline.DryRun)

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)

	cfg.Metrics.Enabled = getEnvBool("METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Metrics.Port = getEnvInt("METRICS_PORT", cfg.Metrics.Port)
	cfg.Metrics.Path = getEnv("METRICS_PATH", cfg.Metrics.Path)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}
	if c.Pipeline.MinCorroborationSources < 1 {
		return fmt.Errorf("min corroboration sources must be at least 1")
	}
	if c.Pipeline.MaxDistanceKM <= 0 {
		return fmt.Errorf("max distance km must be positive")
	}
	switch c.Logging.Level {
	case "DEBUG", "INFO", "WARN", "ERROR", "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	return nil
}

// Helper functions for environment variable parsing.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvHours parses an hour count (spec.md §6 expresses several
// pipeline fields as "_hours" floats) into a time.Duration.
func getEnvHours(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return time.Duration(parsed * float64(time.Hour))
		}
	}
	return defaultValue
}
