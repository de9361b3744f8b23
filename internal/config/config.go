// Package config loads the service configuration and the tenant catalog.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"agendei/internal/clock"
)

type Config struct {
	App struct {
		Name     string `yaml:"name"`
		Timezone string `yaml:"timezone"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup BackupConfig `yaml:"backup"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Session struct {
		TTLMinutes int    `yaml:"ttl_minutes"`
		KeyPrefix  string `yaml:"key_prefix"`
	} `yaml:"session"`

	API struct {
		Enabled        bool    `yaml:"enabled"`
		Port           int     `yaml:"port"`
		RateLimitRPS   float64 `yaml:"rate_limit_rps"`
		RateLimitBurst int     `yaml:"rate_limit_burst"`
	} `yaml:"api"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Booking struct {
		StepMinutes             int `yaml:"step_minutes"`
		LookaheadMinutes        int `yaml:"lookahead_minutes"`
		FallbackDurationMinutes int `yaml:"fallback_duration_minutes"`
		MaxAdvanceDays          int `yaml:"max_advance_days"`
	} `yaml:"booking"`

	Businesses struct {
		Path                  string `yaml:"path"`
		ReloadIntervalSeconds int    `yaml:"reload_interval_seconds"`
	} `yaml:"businesses"`
}

// BackupConfig controls scheduled database copies.
type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"` // cron expression, e.g. "0 3 * * *"
	StoragePath   string `yaml:"storage_path"`
	RetentionDays int    `yaml:"retention_days"`
	// AuditRetentionDays bounds the booking audit log; 0 keeps everything.
	AuditRetentionDays int `yaml:"audit_retention_days"`
}

// Load reads the YAML config at path. A .env file next to the working
// directory is loaded first so ${VAR} placeholders can reference it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "agendei"
	}
	if c.App.Timezone == "" {
		c.App.Timezone = clock.DefaultTimezone
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/agendei.db"
	}
	if c.Backup.Schedule == "" {
		c.Backup.Schedule = "0 3 * * *"
	}
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "data/backups"
	}
	if c.Session.TTLMinutes <= 0 {
		c.Session.TTLMinutes = 30
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.API.RateLimitRPS <= 0 {
		c.API.RateLimitRPS = 5
	}
	if c.API.RateLimitBurst <= 0 {
		c.API.RateLimitBurst = 10
	}
	if c.Monitoring.HealthCheckPort == 0 {
		c.Monitoring.HealthCheckPort = 8081
	}
	if c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Booking.StepMinutes <= 0 {
		c.Booking.StepMinutes = 30
	}
	if c.Booking.LookaheadMinutes <= 0 {
		c.Booking.LookaheadMinutes = 15
	}
	if c.Booking.FallbackDurationMinutes <= 0 {
		c.Booking.FallbackDurationMinutes = 30
	}
	if c.Businesses.Path == "" {
		c.Businesses.Path = "configs/businesses.yaml"
	}
}

// Location returns the business timezone.
func (c *Config) Location() *time.Location {
	return clock.LoadLocation(c.App.Timezone)
}

// SessionTTL returns how long an idle conversation is kept.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLMinutes) * time.Minute
}

// SlotStep returns the grid spacing.
func (c *Config) SlotStep() time.Duration {
	return time.Duration(c.Booking.StepMinutes) * time.Minute
}

// Lookahead returns the same-day lead time.
func (c *Config) Lookahead() time.Duration {
	return time.Duration(c.Booking.LookaheadMinutes) * time.Minute
}

// FallbackDuration returns the occupied length of bookings whose service is unknown.
func (c *Config) FallbackDuration() time.Duration {
	return time.Duration(c.Booking.FallbackDurationMinutes) * time.Minute
}

// MaxAdvance returns how far ahead bookings may be placed.
func (c *Config) MaxAdvance() time.Duration {
	if c.Booking.MaxAdvanceDays <= 0 {
		return 60 * 24 * time.Hour
	}
	return time.Duration(c.Booking.MaxAdvanceDays) * 24 * time.Hour
}

// BusinessesReloadInterval returns the polling interval of businesses.yaml.
func (c *Config) BusinessesReloadInterval() time.Duration {
	if c.Businesses.ReloadIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Businesses.ReloadIntervalSeconds) * time.Second
}
