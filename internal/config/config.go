// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Filename string `yaml:"filename"`
}

type RedisConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
	LockTTLMs int    `yaml:"lock_ttl_ms"`
	Password  string `yaml:"-"` // Loaded from environment
}

// LockTTL is the lease lifetime for a reorder submission.
func (r RedisConfig) LockTTL() time.Duration {
	return time.Duration(r.LockTTLMs) * time.Millisecond
}

// ReorderConfig tunes the gesture tracker of server-hosted boards.
type ReorderConfig struct {
	LongPressMs   int     `yaml:"long_press_ms"`
	MaxDriftPx    float64 `yaml:"max_drift_px"`
	ContainerTop  float64 `yaml:"container_top"`
	RowHeight     float64 `yaml:"row_height"`
	ScreenWidth   float64 `yaml:"screen_width"`
	SubmitTimeout int     `yaml:"submit_timeout_ms"`
}

func (r ReorderConfig) LongPress() time.Duration {
	return time.Duration(r.LongPressMs) * time.Millisecond
}

func (r ReorderConfig) SubmitTimeoutDuration() time.Duration {
	return time.Duration(r.SubmitTimeout) * time.Millisecond
}

// RateLimitConfig caps order submissions per client.
type RateLimitConfig struct {
	SubmitsPerMinute int  `yaml:"submits_per_minute"`
	TrustProxy       bool `yaml:"trust_proxy"`
}

type SchedulerConfig struct {
	CompactionCron string `yaml:"compaction_cron"`
}

type Config struct {
	App struct {
		Name        string `yaml:"name"`
		Environment string `yaml:"environment"`
		Port        int    `yaml:"port"`
		BaseURL     string `yaml:"base_url"`
	} `yaml:"app"`

	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Reorder   ReorderConfig   `yaml:"reorder"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	Features struct {
		EnableDebug      bool `yaml:"enable_debug"`
		EnableDragBoards bool `yaml:"enable_drag_boards"`
	} `yaml:"features"`
}

// Load loads both .env and yaml configuration
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML, applies defaults and environment overrides, and validates.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	// Load sensitive values from environment
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Defaults returns a config with every optional value filled in.
func Defaults() *Config {
	cfg := &Config{}
	cfg.App.Environment = "development"
	cfg.Database.Driver = "sqlite"
	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.KeyPrefix = "rinkside:draglock:"
	cfg.Redis.LockTTLMs = 10000
	cfg.Reorder = ReorderConfig{
		LongPressMs:   200,
		MaxDriftPx:    10,
		RowHeight:     56,
		ScreenWidth:   390,
		SubmitTimeout: 5000,
	}
	cfg.RateLimit.SubmitsPerMinute = 60
	cfg.Scheduler.CompactionCron = "*/15 * * * *"
	cfg.Features.EnableDragBoards = true
	return cfg
}

func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if c.App.Port == 0 {
		return fmt.Errorf("app port is required")
	}
	if c.Database.Driver == "" {
		return fmt.Errorf("database driver is required")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Filename == "" {
			return fmt.Errorf("database filename is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis addr is required when redis is enabled")
		}
		if c.Redis.LockTTLMs <= 0 {
			return fmt.Errorf("redis lock_ttl_ms must be positive")
		}
	}

	if c.Reorder.LongPressMs <= 0 {
		return fmt.Errorf("reorder long_press_ms must be positive")
	}
	if c.Reorder.RowHeight <= 0 {
		return fmt.Errorf("reorder row_height must be positive")
	}
	if c.Reorder.ScreenWidth <= 0 {
		return fmt.Errorf("reorder screen_width must be positive")
	}
	if c.Reorder.MaxDriftPx < 0 {
		return fmt.Errorf("reorder max_drift_px cannot be negative")
	}
	if c.Reorder.SubmitTimeout <= 0 {
		return fmt.Errorf("reorder submit_timeout_ms must be positive")
	}

	if c.RateLimit.SubmitsPerMinute < 0 {
		return fmt.Errorf("rate_limit submits_per_minute cannot be negative")
	}

	if c.Scheduler.CompactionCron != "" {
		if _, err := cron.ParseStandard(c.Scheduler.CompactionCron); err != nil {
			return fmt.Errorf("scheduler compaction_cron is invalid: %w", err)
		}
	}

	return nil
}
