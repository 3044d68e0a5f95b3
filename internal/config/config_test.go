package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maidige/consultation-admin/pkg/common/validate"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestViperLoader_Defaults(t *testing.T) {
	cfg, err := (&ViperLoader{}).Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "https://app-api.maidige.com:7443/api/consultation-backend", cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, 3*time.Second, cfg.Polling.Interval)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Host)
	assert.False(t, cfg.Postgres.Enabled())
	assert.False(t, cfg.Kafka.Enabled())
	assert.False(t, cfg.Telemetry.Enabled())

	client := cfg.API.Client()
	assert.Equal(t, cfg.API.BaseURL, client.BaseURL)
	assert.Equal(t, uint64(3), client.MaxRetries)
}

func TestViperLoader_Precedence(t *testing.T) {
	file := writeFile(t, "config.yaml", `
api:
  base_url: https://file.example.com/api
  timeout: 10s
polling:
  interval: 5s
kafka:
  brokers: ["kafka-1:9092"]
`)
	envFile := writeFile(t, ".env", "CONSULTADM_POLLING_INTERVAL=7s\n")
	t.Cleanup(func() { os.Unsetenv("CONSULTADM_POLLING_INTERVAL") })
	t.Setenv("CONSULTADM_API_TIMEOUT", "12s")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("api.base_url", "", "")
	require.NoError(t, flags.Parse([]string{"--api.base_url=https://flag.example.com/api"}))

	cfg, err := (&ViperLoader{File: file, EnvFile: envFile, Flags: flags}).Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "https://flag.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, 12*time.Second, cfg.API.Timeout)
	assert.Equal(t, 7*time.Second, cfg.Polling.Interval)
	assert.Equal(t, []string{"kafka-1:9092"}, cfg.Kafka.Brokers)
}

func TestViperLoader_CommaSeparatedBrokers(t *testing.T) {
	t.Setenv("CONSULTADM_KAFKA_BROKERS", "a:9092, b:9092")

	cfg, err := (&ViperLoader{}).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled())
}

func TestViperLoader_Invalid(t *testing.T) {
	t.Setenv("CONSULTADM_API_BASE_URL", "not a url")
	t.Setenv("CONSULTADM_TELEMETRY_PROBABILITY", "2")

	_, err := (&ViperLoader{}).Load(context.Background())
	require.Error(t, err)

	var verrs validate.Errors
	require.True(t, errors.As(err, &verrs))
	fields := verrs.Fields()
	assert.Contains(t, fields, "api.base_url")
	assert.Contains(t, fields, "telemetry.probability")
}

func TestViperLoader_MissingFile(t *testing.T) {
	_, err := (&ViperLoader{File: filepath.Join(t.TempDir(), "nope.yaml")}).Load(context.Background())
	assert.Error(t, err)
}

func TestViperLoader_MissingEnvFileIgnored(t *testing.T) {
	_, err := (&ViperLoader{EnvFile: filepath.Join(t.TempDir(), ".env")}).Load(context.Background())
	assert.NoError(t, err)
}
