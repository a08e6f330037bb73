package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides, e.g. GYMQ_DATABASE_DSN.
const EnvPrefix = "GYMQ"

// Config represents the overall application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Queue     QueueConfig     `yaml:"queue"`
	Sweeper   SweeperConfig   `yaml:"sweeper"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	Log       LogConfig       `yaml:"log"`
	// Catalog is equipment created at startup when missing.
	Catalog []EquipmentSeed `yaml:"catalog" ignored:"true"`
}

// EquipmentSeed describes one catalog entry. Name and gym identify it.
type EquipmentSeed struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	GymName  string `yaml:"gym"`
	ImageURL string `yaml:"image_url"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port" envconfig:"PORT"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec" envconfig:"RATE_LIMIT_PER_SEC"`
	RateLimitBurst  int     `yaml:"rate_limit_burst" envconfig:"RATE_LIMIT_BURST"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds" envconfig:"CACHE_TTL_SECONDS"`
}

// CacheTTL returns the catalog cache lifetime.
func (s ServerConfig) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLSeconds) * time.Second
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver" envconfig:"DRIVER"`
	DSN                    string `yaml:"dsn" envconfig:"DSN"`
	MaxOpenConns           int    `yaml:"max_open_conns" envconfig:"MAX_OPEN_CONNS"`
	MaxIdleConns           int    `yaml:"max_idle_conns" envconfig:"MAX_IDLE_CONNS"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes" envconfig:"CONN_MAX_LIFETIME_MINUTES"`
	LogSQL                 bool   `yaml:"log_sql" envconfig:"LOG_SQL"`
}

// QueueConfig holds the timing constants and late handling options of the queue engine.
type QueueConfig struct {
	LateThresholdMinutes int    `yaml:"late_threshold_minutes" envconfig:"LATE_THRESHOLD_MINUTES"`
	GraceMinutes         int    `yaml:"grace_minutes" envconfig:"GRACE_MINUTES"`
	LatePolicySource     string `yaml:"late_policy_source" envconfig:"LATE_POLICY_SOURCE"`
}

// SweeperConfig controls the background job that reports overdue invitations as late.
type SweeperConfig struct {
	Enabled  bool   `yaml:"enabled" envconfig:"ENABLED"`
	Schedule string `yaml:"schedule" envconfig:"SCHEDULE"`
}

// BroadcastConfig holds the size of the snapshot broadcast worker pool.
type BroadcastConfig struct {
	Workers int `yaml:"workers" envconfig:"WORKERS"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL"`
	Format string `yaml:"format" envconfig:"FORMAT"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads the configuration from the given path, then applies environment overrides.
// A missing file is not an error; defaults and the environment are used instead.
func Load(path string) (*Config, error) {
	var cfg Config

	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, err
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env overrides: %w", err)
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 30
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "file:gymqueue.db?_foreign_keys=on"
	}
	if cfg.Database.MaxOpenConns <= 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns <= 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetimeMinutes <= 0 {
		cfg.Database.ConnMaxLifetimeMinutes = 30
	}

	if cfg.Queue.LateThresholdMinutes == 0 {
		cfg.Queue.LateThresholdMinutes = 3
	}
	if cfg.Queue.GraceMinutes == 0 {
		cfg.Queue.GraceMinutes = 2
	}
	if cfg.Queue.LatePolicySource == "" {
		cfg.Queue.LatePolicySource = "self"
	}

	if cfg.Sweeper.Schedule == "" {
		cfg.Sweeper.Schedule = "*/10 * * * * *"
	}

	if cfg.Broadcast.Workers <= 0 {
		cfg.Broadcast.Workers = 2
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// Validate rejects values the services cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required for driver %q", c.Database.Driver)
	}
	if c.Queue.LateThresholdMinutes < 0 {
		return fmt.Errorf("queue.late_threshold_minutes must be positive, got %d", c.Queue.LateThresholdMinutes)
	}
	if c.Queue.GraceMinutes < 0 {
		return fmt.Errorf("queue.grace_minutes must be positive, got %d", c.Queue.GraceMinutes)
	}
	switch c.Queue.LatePolicySource {
	case "self", "successor":
	default:
		return fmt.Errorf("queue.late_policy_source must be self or successor, got %q", c.Queue.LatePolicySource)
	}
	for i, e := range c.Catalog {
		if e.Name == "" || e.GymName == "" {
			return fmt.Errorf("catalog[%d] needs a name and a gym", i)
		}
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}
