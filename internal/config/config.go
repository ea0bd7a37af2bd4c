package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Cache struct {
		TTLSeconds int `yaml:"ttl_seconds"`
	} `yaml:"cache"`

	API struct {
		Port           int     `yaml:"port"`
		RateLimitRPS   float64 `yaml:"rate_limit_rps"`
		RateLimitBurst int     `yaml:"rate_limit_burst"`
	} `yaml:"api"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Scheduling struct {
		NextSlotHorizonDays int `yaml:"next_slot_horizon_days"`
		BulkMaxDays         int `yaml:"bulk_max_days"`
		StoreTimeoutSeconds int `yaml:"store_timeout_seconds"`
	} `yaml:"scheduling"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/orderslot.db"
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) CacheTTL() time.Duration {
	if c.Cache.TTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

func (c *Config) NextSlotHorizon() int {
	if c.Scheduling.NextSlotHorizonDays <= 0 {
		return 30
	}
	return c.Scheduling.NextSlotHorizonDays
}

func (c *Config) BulkMaxDays() int {
	if c.Scheduling.BulkMaxDays <= 0 {
		return 90
	}
	return c.Scheduling.BulkMaxDays
}

func (c *Config) StoreTimeout() time.Duration {
	if c.Scheduling.StoreTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Scheduling.StoreTimeoutSeconds) * time.Second
}
