package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "https://www.federalregister.gov/api/v1", cfg.Feed.BaseURL)
	require.Equal(t, 7, cfg.Feed.WindowDays)
	require.Equal(t, 15, cfg.Feed.PerPage)
	require.Equal(t, "mistral:latest", cfg.Model.Name)
	require.Equal(t, 60*time.Second, cfg.Model.Timeout)
	require.Equal(t, 3, cfg.Model.MaxAttempts)
	require.Equal(t, time.Second, cfg.Model.RetryBackoff)
	require.Equal(t, 2000, cfg.Model.MaxAnswerChars)
	require.Equal(t, 5, cfg.Query.RetrieveLimit)
	require.Equal(t, 3, cfg.Query.ContextDocs)
	require.Equal(t, 300, cfg.Query.SnippetChars)
	require.Equal(t, 2000, cfg.Query.SummaryMaxChars)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
server:
  port: 9999
feed:
  windowDays: 14
model:
  name: llama3:latest
  timeout: 30s
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9999, cfg.Server.Port)
	require.Equal(t, 14, cfg.Feed.WindowDays)
	require.Equal(t, "llama3:latest", cfg.Model.Name)
	require.Equal(t, 30*time.Second, cfg.Model.Timeout)

	// Unset values keep their defaults.
	require.Equal(t, 15, cfg.Feed.PerPage)
	require.Equal(t, 3, cfg.Model.MaxAttempts)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RW_SERVER_PORT", "7070")
	t.Setenv("RW_POSTGRES_HOST", "db.internal")
	t.Setenv("RW_MODEL_NAME", "phi3:latest")
	t.Setenv("RW_MODEL_TIMEOUT", "90s")
	t.Setenv("RW_FEED_WINDOW_DAYS", "3")
	t.Setenv("RW_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, "db.internal", cfg.Postgres.Host)
	require.Equal(t, "phi3:latest", cfg.Model.Name)
	require.Equal(t, 90*time.Second, cfg.Model.Timeout)
	require.Equal(t, 3, cfg.Feed.WindowDays)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero window days", func(c *Config) { c.Feed.WindowDays = 0 }},
		{"zero per page", func(c *Config) { c.Feed.PerPage = 0 }},
		{"zero max attempts", func(c *Config) { c.Model.MaxAttempts = 0 }},
		{"zero model timeout", func(c *Config) { c.Model.Timeout = 0 }},
		{"zero retrieve limit", func(c *Config) { c.Query.RetrieveLimit = 0 }},
		{"context docs above retrieve limit", func(c *Config) { c.Query.ContextDocs = 10 }},
		{"zero snippet chars", func(c *Config) { c.Query.SnippetChars = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			require.Error(t, validate(cfg))
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	cfg := PostgresConfig{
		Host: "localhost", Port: 5432,
		User: "rw", Password: "secret",
		Database: "regwatch", SSLMode: "disable",
	}
	require.Equal(t,
		"host=localhost port=5432 user=rw password=secret dbname=regwatch sslmode=disable",
		cfg.DSN(),
	)
}
