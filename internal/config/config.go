// Package config loads the settings shared by consultadm and reportwatch.
package config

import (
	"time"

	"github.com/maidige/consultation-admin/internal/infra/consultapi"
)

// EnvPrefix prefixes every environment variable the loader reads, with
// nested keys joined by underscores (CONSULTADM_API_BASE_URL).
const EnvPrefix = "CONSULTADM"

// Config is the top-level configuration.
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Polling   PollingConfig   `mapstructure:"polling"`
	Session   SessionConfig   `mapstructure:"session"`
	Server    ServerConfig    `mapstructure:"server"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
}

// APIConfig points the client at the consultation backend.
type APIConfig struct {
	BaseURL         string        `mapstructure:"base_url" validate:"required,url"`
	OrgBaseURL      string        `mapstructure:"org_base_url" validate:"required,url"`
	Timeout         time.Duration `mapstructure:"timeout" validate:"gt=0"`
	RateLimit       float64       `mapstructure:"rate_limit" validate:"gte=0"`
	RateBurst       int           `mapstructure:"rate_burst" validate:"gte=1"`
	MaxRetries      uint64        `mapstructure:"max_retries" validate:"lte=10"`
	RetryMaxElapsed time.Duration `mapstructure:"retry_max_elapsed" validate:"gte=0"`
}

// Client converts the section into consultapi settings.
func (c APIConfig) Client() consultapi.Config {
	return consultapi.Config{
		BaseURL:         c.BaseURL,
		OrgBaseURL:      c.OrgBaseURL,
		Timeout:         c.Timeout,
		RateLimit:       c.RateLimit,
		RateBurst:       c.RateBurst,
		MaxRetries:      c.MaxRetries,
		RetryMaxElapsed: c.RetryMaxElapsed,
	}
}

// PollingConfig tunes the report status poller.
type PollingConfig struct {
	Interval time.Duration `mapstructure:"interval" validate:"gte=100ms"`
	// HistoryLimit bounds the in-memory run history per entity key.
	HistoryLimit int `mapstructure:"history_limit" validate:"gte=1"`
}

// SessionConfig locates the stored login.
type SessionConfig struct {
	// Path defaults to the user config directory when empty.
	Path string `mapstructure:"path"`
}

// ServerConfig configures the reportwatch HTTP service.
type ServerConfig struct {
	Host            string        `mapstructure:"host" validate:"required,hostname_port"`
	DebugHost       string        `mapstructure:"debug_host" validate:"omitempty,hostname_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// TelemetryConfig configures OTLP export. An empty endpoint disables it.
type TelemetryConfig struct {
	ServiceName string  `mapstructure:"service_name" validate:"required"`
	Endpoint    string  `mapstructure:"endpoint" validate:"omitempty,hostname_port"`
	Probability float64 `mapstructure:"probability" validate:"gte=0,lte=1"`
	Insecure    bool    `mapstructure:"insecure"`
}

// Enabled reports whether telemetry should be exported.
func (c TelemetryConfig) Enabled() bool { return c.Endpoint != "" }

// PostgresConfig enables the durable run history. An empty DSN keeps the
// history in memory.
type PostgresConfig struct {
	DSN           string        `mapstructure:"dsn" validate:"omitempty,url"`
	ConnectWait   time.Duration `mapstructure:"connect_wait" validate:"gte=0"`
	MigrationsDir string        `mapstructure:"migrations_dir"`
}

// Enabled reports whether a database is configured.
func (c PostgresConfig) Enabled() bool { return c.DSN != "" }

// KafkaConfig enables publishing completion notifications.
type KafkaConfig struct {
	Brokers  []string `mapstructure:"brokers" validate:"omitempty,dive,hostname_port"`
	Topic    string   `mapstructure:"topic" validate:"required_with=Brokers"`
	ClientID string   `mapstructure:"client_id"`
}

// Enabled reports whether any brokers are configured.
func (c KafkaConfig) Enabled() bool { return len(c.Brokers) > 0 }
