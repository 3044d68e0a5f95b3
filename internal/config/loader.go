package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/maidige/consultation-admin/pkg/common/validate"
)

// Loader provides configuration loading capabilities. It abstracts the source
// of configuration so commands and tests can supply their own.
type Loader interface {
	// Load retrieves, parses and validates the configuration.
	Load(ctx context.Context) (*Config, error)
}

// defaults seeds every key. Viper only resolves environment variables for
// keys it already knows, so each setting needs an entry here.
var defaults = map[string]any{
	"api.base_url":          "https://app-api.maidige.com:7443/api/consultation-backend",
	"api.org_base_url":      "https://app-api.maidige.com:7443/api",
	"api.timeout":           "30s",
	"api.rate_limit":        5.0,
	"api.rate_burst":        10,
	"api.max_retries":       3,
	"api.retry_max_elapsed": "20s",

	"polling.interval":      "3s",
	"polling.history_limit": 50,

	"session.path": "",

	"server.host":             "0.0.0.0:8080",
	"server.debug_host":       "",
	"server.read_timeout":     "5s",
	"server.write_timeout":    "10s",
	"server.idle_timeout":     "120s",
	"server.shutdown_timeout": "20s",

	"telemetry.service_name": "reportwatch",
	"telemetry.endpoint":     "",
	"telemetry.probability":  0.1,
	"telemetry.insecure":     true,

	"postgres.dsn":            "",
	"postgres.connect_wait":   "30s",
	"postgres.migrations_dir": "db/migrations",

	"kafka.brokers":   []string{},
	"kafka.topic":     "report-notifications",
	"kafka.client_id": "reportwatch",
}

// ViperLoader layers defaults, an optional YAML file, a .env file,
// CONSULTADM_* environment variables and command-line flags, in increasing
// order of precedence.
type ViperLoader struct {
	// File is an optional YAML config file. A missing file is an error only
	// when set explicitly.
	File string
	// EnvFile is loaded into the process environment before reading
	// variables. Missing files are ignored.
	EnvFile string
	// Flags are bound by name, so a flag named "api.base_url" overrides
	// that key.
	Flags *pflag.FlagSet
}

var _ Loader = (*ViperLoader)(nil)

// Load implements Loader.
func (l *ViperLoader) Load(ctx context.Context) (*Config, error) {
	if l.EnvFile != "" {
		if err := godotenv.Load(l.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", l.EnvFile, err)
		}
	}

	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if l.File != "" {
		v.SetConfigFile(l.File)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if l.Flags != nil {
		var bindErr error
		l.Flags.VisitAll(func(f *pflag.Flag) {
			if _, known := defaults[f.Name]; known && bindErr == nil {
				bindErr = v.BindPFlag(f.Name, f)
			}
		})
		if bindErr != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", bindErr)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	// Comma-separated broker lists arrive as a single element from the
	// environment.
	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Load reads the configuration using a ViperLoader with no file or flags.
func Load(ctx context.Context) (*Config, error) {
	return (&ViperLoader{EnvFile: ".env"}).Load(ctx)
}

func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
