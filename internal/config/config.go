package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the sentinel-ops engine.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Fleet       FleetConfig       `yaml:"fleet"`
	Remediation RemediationConfig `yaml:"remediation"`
	Rules       RulesConfig       `yaml:"rules"`
	Logging     LoggingConfig     `yaml:"logging"`
	Cache       CacheConfig       `yaml:"cache"`
}

// RulesConfig points at an optional runbook rule pack that overrides the
// classifier's recommended actions.
type RulesConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig controls the HTTP listeners.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// FleetConfig configures access to the fleet API that serves metrics,
// restarts, and billing data.
type FleetConfig struct {
	BaseURL      string        `yaml:"baseURL"`
	MetricsPath  string        `yaml:"metricsPath"`
	ServicesPath string        `yaml:"servicesPath"`
	RestartPath  string        `yaml:"restartPath"`
	SummaryPath  string        `yaml:"summaryPath"`
	ForecastPath string        `yaml:"forecastPath"`
	Timeout      time.Duration `yaml:"timeout"`
}

// RemediationConfig tunes the control loop and controller policy.
type RemediationConfig struct {
	CheckInterval   time.Duration `yaml:"checkInterval"`
	SettleTime      time.Duration `yaml:"settleTime"`
	RestartTimeout  time.Duration `yaml:"restartTimeout"`
	StopTimeout     time.Duration `yaml:"stopTimeout"`
	HealthThreshold float64       `yaml:"healthThreshold"`
	StartEnabled    bool          `yaml:"startEnabled"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// CacheConfig controls Valkey-backed caching of fleet lookups and hygiene
// snapshots.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TLS          bool          `yaml:"tls"`
	HygieneTTL   time.Duration `yaml:"hygieneTTL"`
	ServicesTTL  time.Duration `yaml:"servicesTTL"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("SENTINEL_OPS_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Fleet: FleetConfig{
			MetricsPath:  "/api/v1/fleet/metrics",
			ServicesPath: "/api/v1/fleet/services",
			RestartPath:  "/api/v1/fleet/restart",
			SummaryPath:  "/api/v1/fleet/summary",
			ForecastPath: "/api/v1/fleet/forecast",
			Timeout:      5 * time.Second,
		},
		Remediation: RemediationConfig{
			CheckInterval:   30 * time.Second,
			SettleTime:      time.Second,
			RestartTimeout:  10 * time.Second,
			StopTimeout:     5 * time.Second,
			HealthThreshold: 0.7,
			StartEnabled:    false,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Cache: CacheConfig{
			Enabled:      false,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
			HygieneTTL:   time.Minute,
			ServicesTTL:  5 * time.Minute,
		},
	}
}

func (c *Config) validate() error {
	if c.Remediation.CheckInterval <= 0 {
		return fmt.Errorf("remediation.checkInterval must be positive")
	}
	if c.Remediation.HealthThreshold <= 0 || c.Remediation.HealthThreshold > 1 {
		return fmt.Errorf("remediation.healthThreshold must be in (0, 1]")
	}
	if c.Remediation.SettleTime < 0 {
		return fmt.Errorf("remediation.settleTime cannot be negative")
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SENTINEL_OPS_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("SENTINEL_OPS_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("SENTINEL_OPS_FLEET_BASE_URL"); v != "" {
		cfg.Fleet.BaseURL = v
	}
	if v := os.Getenv("SENTINEL_OPS_FLEET_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Fleet.Timeout = d
		}
	}
	if v := os.Getenv("SENTINEL_OPS_CHECK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Remediation.CheckInterval = d
		}
	}
	if v := os.Getenv("SENTINEL_OPS_SETTLE_TIME"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Remediation.SettleTime = d
		}
	}
	if v := os.Getenv("SENTINEL_OPS_HEALTH_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Remediation.HealthThreshold = f
		}
	}
	if v := os.Getenv("SENTINEL_OPS_START_ENABLED"); v != "" {
		cfg.Remediation.StartEnabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("SENTINEL_OPS_RULES_PATH"); v != "" {
		cfg.Rules.Path = v
	}
	if v := os.Getenv("SENTINEL_OPS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SENTINEL_OPS_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("SENTINEL_OPS_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("SENTINEL_OPS_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("SENTINEL_OPS_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("SENTINEL_OPS_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("SENTINEL_OPS_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("SENTINEL_OPS_CACHE_TLS"); strings.EqualFold(v, "true") || v == "1" {
		cfg.Cache.TLS = true
	}
	if v := os.Getenv("SENTINEL_OPS_CACHE_HYGIENE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.HygieneTTL = d
		}
	}
	if v := os.Getenv("SENTINEL_OPS_CACHE_SERVICES_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.ServicesTTL = d
		}
	}
}
