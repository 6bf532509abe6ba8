package config

import (
	"time"
)

// Config represents the complete application configuration.
// Values are layered: built-in defaults, the YAML config file, .env and
// BOLAO_* environment variables, then runtime overrides.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`
	Upstream UpstreamConfig `mapstructure:"upstream" yaml:"upstream"`
	Sync     SyncConfig     `mapstructure:"sync" yaml:"sync"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
	Health   HealthConfig   `mapstructure:"health" yaml:"health"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port" validate:"min=0,max=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" validate:"gte=0"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gte=0"`
	// AdminToken enables the signal endpoint when set.
	AdminToken string `mapstructure:"admin_token" yaml:"admin_token"`
}

// StoreConfig selects the durable store backing the request log and the
// response cache. libsql covers local files and Turso; postgres takes a URL.
type StoreConfig struct {
	Driver       string `mapstructure:"driver" yaml:"driver" validate:"oneof=libsql postgres"`
	Path         string `mapstructure:"path" yaml:"path"`
	URL          string `mapstructure:"url" yaml:"url" validate:"required_if=Driver postgres"`
	AuthToken    string `mapstructure:"auth_token" yaml:"auth_token"`
	MaxOpenConns int    `mapstructure:"max_open_conns" yaml:"max_open_conns" validate:"gte=0"`
}

// UpstreamConfig describes the sports data provider.
type UpstreamConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url" validate:"required,url"`
	// APIKey may be empty; fetches then fail with config_error.
	APIKey    string        `mapstructure:"api_key" yaml:"api_key"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
	UserAgent string        `mapstructure:"user_agent" yaml:"user_agent"`
}

// SyncConfig tunes quota enforcement and polling.
type SyncConfig struct {
	DefaultInterval time.Duration `mapstructure:"default_interval" yaml:"default_interval" validate:"gt=0"`
	LiveInterval    time.Duration `mapstructure:"live_interval" yaml:"live_interval" validate:"gt=0"`
	RetryDelay      time.Duration `mapstructure:"retry_delay" yaml:"retry_delay" validate:"gt=0"`
	MaxRetries      int           `mapstructure:"max_retries" yaml:"max_retries" validate:"min=1"`
	MaxPerHour      int           `mapstructure:"max_per_hour" yaml:"max_per_hour" validate:"min=1"`
	MinInterval     time.Duration `mapstructure:"min_interval" yaml:"min_interval" validate:"gte=0"`
	// LogSnapshots keeps successful response bodies in the request log.
	LogSnapshots bool `mapstructure:"log_snapshots" yaml:"log_snapshots"`
	// UserID identifies CLI-driven fetches when --user is not given.
	UserID string `mapstructure:"user_id" yaml:"user_id"`
}

// LoggingConfig contains logging configuration.
// Profiles follow gofulmen: SIMPLE for the CLI, STRUCTURED for the server.
type LoggingConfig struct {
	Level   string `mapstructure:"level" yaml:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Profile string `mapstructure:"profile" yaml:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port" validate:"min=0,max=65535"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// Redacted returns a copy with secrets masked, suitable for display.
func (c Config) Redacted() Config {
	out := c
	out.Upstream.APIKey = mask(c.Upstream.APIKey)
	out.Store.AuthToken = mask(c.Store.AuthToken)
	out.Server.AdminToken = mask(c.Server.AdminToken)
	return out
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 6 {
		return "***"
	}
	return secret[:3] + "***"
}
