package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendBadger = "badger"
)

type Config struct {
	Environment string `toml:"environment"`
	Host        string `toml:"host"`
	Port        int    `toml:"port"`

	PrometheusMetricsHost string   `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string   `toml:"prometheus_metrics_port"`
	AllowedOrigins        []string `toml:"allowed_origins"`

	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`
	SentryEnabled bool   `toml:"sentry_enabled"`

	TracingEnabled bool `toml:"tracing_enabled"`

	// storage
	StorageBackend string `toml:"storage_backend"`
	RedisHost      string `toml:"redis_host"`
	RedisPort      string `toml:"redis_port"`
	RedisKeyPrefix string `toml:"redis_key_prefix"`
	BadgerPath     string `toml:"badger_path"`

	// history
	WorkoutHistoryCap   int `toml:"workout_history_cap"`
	NutritionHistoryCap int `toml:"nutrition_history_cap"`
	ProgressHistoryCap  int `toml:"progress_history_cap"`
	TimelineLimit       int `toml:"timeline_limit"`
	ChartWidth          int `toml:"chart_width"`
	ChartHeight         int `toml:"chart_height"`
	ChartMargin         int `toml:"chart_margin"`

	// plan generation service
	PlannerBaseURL        string        `toml:"planner_base_url"`
	PlannerTimeout        time.Duration `toml:"planner_timeout"`
	PlannerCacheTTL       time.Duration `toml:"planner_cache_ttl"`
	PlannerCacheSizeMB    int           `toml:"planner_cache_size_mb"`
	ExportRateLimitPerMin int           `toml:"export_rate_limit_per_min"`
	ExportDir             string        `toml:"export_dir"`
}

// Secrets are never kept in the TOML file.
type Secrets struct {
	RedisPassword string `env:"GIDEON_REDIS_PASS"`
	SentryDSN     string `env:"SENTRY_DSN"`
	PlannerAPIKey string `env:"GIDEON_PLANNER_API_KEY"`
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	switch strings.ToLower(env) {
	case "dev", "development":
		return t.Development, nil
	case "prod", "production":
		return t.Production, nil
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
}

// Load reads the TOML file at path and returns the section for env,
// with zero values replaced by defaults.
func Load(env, path string) (*Config, error) {
	var t Toml
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, fmt.Errorf("decode config file %s: %w", path, err)
	}

	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("config section for env [%s] missing", env)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func LoadSecrets() (*Secrets, error) {
	var s Secrets
	if err := env.Parse(&s); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &s, nil
}

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 9000
	}
	if c.PrometheusMetricsHost == "" {
		c.PrometheusMetricsHost = "localhost"
	}
	if c.PrometheusMetricsPort == "" {
		c.PrometheusMetricsPort = "2112"
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"http://localhost:5000", "http://127.0.0.1:5000"}
	}
	if c.StorageBackend == "" {
		c.StorageBackend = BackendBadger
	}
	if c.RedisHost == "" {
		c.RedisHost = "localhost"
	}
	if c.RedisPort == "" {
		c.RedisPort = "6379"
	}
	if c.WorkoutHistoryCap == 0 {
		c.WorkoutHistoryCap = 50
	}
	if c.NutritionHistoryCap == 0 {
		c.NutritionHistoryCap = 50
	}
	if c.ProgressHistoryCap == 0 {
		c.ProgressHistoryCap = 50
	}
	if c.TimelineLimit == 0 {
		c.TimelineLimit = 10
	}
	if c.ChartWidth == 0 {
		c.ChartWidth = 600
	}
	if c.ChartHeight == 0 {
		c.ChartHeight = 300
	}
	if c.ChartMargin == 0 {
		c.ChartMargin = 20
	}
	if c.PlannerTimeout == 0 {
		c.PlannerTimeout = 30 * time.Second
	}
	if c.PlannerCacheTTL == 0 {
		c.PlannerCacheTTL = time.Hour
	}
	if c.PlannerCacheSizeMB == 0 {
		c.PlannerCacheSizeMB = 10
	}
	if c.ExportRateLimitPerMin == 0 {
		c.ExportRateLimitPerMin = 10
	}
	if c.ExportDir == "" {
		c.ExportDir = "."
	}
}

func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendMemory, BackendRedis:
	case BackendBadger:
		if c.BadgerPath == "" {
			return errors.New("badger_path is required for the badger storage backend")
		}
	default:
		return fmt.Errorf("unknown storage backend: %s", c.StorageBackend)
	}

	if c.WorkoutHistoryCap < 0 || c.NutritionHistoryCap < 0 || c.ProgressHistoryCap < 0 {
		return errors.New("history caps must be positive")
	}
	if c.ChartWidth <= 2*c.ChartMargin || c.ChartHeight <= 2*c.ChartMargin {
		return errors.New("chart margins leave no drawing area")
	}

	return nil
}
