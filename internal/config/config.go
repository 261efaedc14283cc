package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"alphaminer/internal/logging"
)

// Config represents the application configuration
type Config struct {
	App        AppConfig        `yaml:"app"`
	Logging    logging.Config   `yaml:"logging"`
	Platform   PlatformConfig   `yaml:"platform"`
	AI         AIConfig         `yaml:"ai"`
	Mining     MiningConfig     `yaml:"mining"`
	Simulation SimulationConfig `yaml:"simulation"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Storage    StorageConfig    `yaml:"storage"`
	Server     ServerConfig     `yaml:"server"`
}

// AppConfig represents application configuration
type AppConfig struct {
	Name string `yaml:"name"`
	Env  string `yaml:"env"`
}

// PlatformConfig represents the quantitative research platform connection
type PlatformConfig struct {
	BaseURL        string          `yaml:"base_url"`
	Email          string          `yaml:"email"`
	Password       string          `yaml:"password"`
	Region         string          `yaml:"region"`
	Universe       string          `yaml:"universe"`
	Delay          int             `yaml:"delay"`
	InstrumentType string          `yaml:"instrument_type"`
	Timeout        time.Duration   `yaml:"timeout"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig represents client-side request throttling
type RateLimitConfig struct {
	RequestsPerSec float64 `yaml:"requests_per_sec"`
	Burst          int     `yaml:"burst"`
}

// AIConfig represents the language model API configuration
type AIConfig struct {
	APIURL      string        `yaml:"api_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Temperature float32       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// MiningConfig represents the refinement loop budgets
type MiningConfig struct {
	MaxIterations      int     `yaml:"max_iterations"`
	MinSharpe          float64 `yaml:"min_sharpe"`
	MaxFactors         int     `yaml:"max_factors"`
	SaveInterval       int     `yaml:"save_interval"`
	CheckpointSchedule string  `yaml:"checkpoint_schedule"`
}

// SimulationConfig represents the alpha simulation settings block
type SimulationConfig struct {
	Decay          int     `yaml:"decay"`
	Neutralization string  `yaml:"neutralization"`
	Truncation     float64 `yaml:"truncation"`
	Pasteurization string  `yaml:"pasteurization"`
	UnitHandling   string  `yaml:"unit_handling"`
	NanHandling    string  `yaml:"nan_handling"`
	Language       string  `yaml:"language"`
}

// CheckpointConfig represents checkpoint store selection
type CheckpointConfig struct {
	Backend string                `yaml:"backend"` // file or redis
	File    FileCheckpointConfig  `yaml:"file"`
	Redis   RedisCheckpointConfig `yaml:"redis"`
}

// FileCheckpointConfig represents the file checkpoint backend
type FileCheckpointConfig struct {
	Path string `yaml:"path"`
}

// RedisCheckpointConfig represents the Redis checkpoint backend
type RedisCheckpointConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// StorageConfig represents accepted factor persistence
type StorageConfig struct {
	ExportDir string         `yaml:"export_dir"`
	Postgres  PostgresConfig `yaml:"postgres"`
}

// PostgresConfig represents the factor repository database
type PostgresConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	User     string        `yaml:"user"`
	Password string        `yaml:"password"`
	DBName   string        `yaml:"dbname"`
	SSLMode  string        `yaml:"sslmode"`
	MaxOpen  int           `yaml:"max_open"`
	MaxIdle  int           `yaml:"max_idle"`
	Timeout  time.Duration `yaml:"timeout"`
}

// ServerConfig represents the status/metrics HTTP endpoint
type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// Load loads configuration from a YAML file, applies environment variable
// overrides and validates the result
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnvOverrides(NewEnvManager("", ""))

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Default returns a configuration populated with defaults
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name: "alphaminer",
			Env:  "development",
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Platform: PlatformConfig{
			BaseURL:        "https://api.worldquantbrain.com",
			Region:         "USA",
			Universe:       "TOP3000",
			Delay:          1,
			InstrumentType: "EQUITY",
			Timeout:        60 * time.Second,
			RateLimit: RateLimitConfig{
				RequestsPerSec: 2,
				Burst:          5,
			},
		},
		AI: AIConfig{
			APIURL:      "https://api.moonshot.cn/v1",
			Model:       "moonshot-v1-auto",
			Temperature: 0.3,
			Timeout:     120 * time.Second,
		},
		Mining: MiningConfig{
			MaxIterations:      10,
			MinSharpe:          1.5,
			MaxFactors:         100,
			SaveInterval:       10,
			CheckpointSchedule: "@every 5m",
		},
		Simulation: SimulationConfig{
			Decay:          13,
			Neutralization: "INDUSTRY",
			Truncation:     0.13,
			Pasteurization: "ON",
			UnitHandling:   "VERIFY",
			NanHandling:    "OFF",
			Language:       "FASTEXPR",
		},
		Checkpoint: CheckpointConfig{
			Backend: "file",
			File: FileCheckpointConfig{
				Path: "checkpoint.json",
			},
			Redis: RedisCheckpointConfig{
				Addr:     "localhost:6379",
				PoolSize: 10,
			},
		},
		Storage: StorageConfig{
			ExportDir: ".",
			Postgres: PostgresConfig{
				Port:    5432,
				SSLMode: "disable",
				MaxOpen: 10,
				MaxIdle: 2,
				Timeout: 5 * time.Second,
			},
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
	}
}

// applyEnvOverrides overrides credential and endpoint fields from environment
// variables so secrets never have to live in the config file
func (c *Config) applyEnvOverrides(env *EnvManager) {
	c.Platform.Email = env.GetEncryptedString("platform_email", c.Platform.Email)
	c.Platform.Password = env.GetEncryptedString("platform_password", c.Platform.Password)
	c.Platform.BaseURL = env.GetString("platform_base_url", c.Platform.BaseURL)

	c.AI.APIKey = env.GetEncryptedString("ai_api_key", c.AI.APIKey)
	c.AI.APIURL = env.GetString("ai_api_url", c.AI.APIURL)
	c.AI.Model = env.GetString("ai_model", c.AI.Model)

	c.Checkpoint.Redis.Addr = env.GetString("redis_addr", c.Checkpoint.Redis.Addr)
	c.Checkpoint.Redis.Password = env.GetEncryptedString("redis_password", c.Checkpoint.Redis.Password)

	c.Storage.Postgres.Host = env.GetString("postgres_host", c.Storage.Postgres.Host)
	c.Storage.Postgres.Password = env.GetEncryptedString("postgres_password", c.Storage.Postgres.Password)
}

// Validate checks configuration invariants
func (c *Config) Validate() error {
	if c.Platform.BaseURL == "" {
		return fmt.Errorf("platform.base_url is required")
	}
	if c.Platform.Email == "" || c.Platform.Password == "" {
		return fmt.Errorf("platform credentials are required")
	}
	if c.AI.APIKey == "" {
		return fmt.Errorf("ai.api_key is required")
	}
	if c.Mining.MaxIterations < 1 {
		return fmt.Errorf("mining.max_iterations must be at least 1, got %d", c.Mining.MaxIterations)
	}
	if c.Mining.MinSharpe <= 0 {
		return fmt.Errorf("mining.min_sharpe must be positive, got %f", c.Mining.MinSharpe)
	}
	if c.Mining.MaxFactors < 1 {
		return fmt.Errorf("mining.max_factors must be at least 1, got %d", c.Mining.MaxFactors)
	}
	if c.Mining.SaveInterval < 1 {
		return fmt.Errorf("mining.save_interval must be at least 1, got %d", c.Mining.SaveInterval)
	}
	switch c.Checkpoint.Backend {
	case "file", "redis":
	default:
		return fmt.Errorf("checkpoint.backend must be file or redis, got %q", c.Checkpoint.Backend)
	}
	if c.Checkpoint.Backend == "file" && c.Checkpoint.File.Path == "" {
		return fmt.Errorf("checkpoint.file.path is required for the file backend")
	}
	if c.Storage.Postgres.Enabled {
		if c.Storage.Postgres.Host == "" || c.Storage.Postgres.DBName == "" {
			return fmt.Errorf("storage.postgres host and dbname are required when enabled")
		}
	}
	return nil
}
