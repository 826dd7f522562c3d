// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Redis, Kafka, Feed, Model, Query, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration. It is constructed once in
// main and handed to each component's constructor; nothing reads it ambiently.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Feed     FeedConfig     `yaml:"feed"`
	Model    ModelConfig    `yaml:"model"`
	Query    QueryConfig    `yaml:"query"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RateLimitWindow time.Duration `yaml:"rateLimitWindow"`
	RateLimit       int           `yaml:"rateLimit"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// RedisConfig holds Redis connection and answer-cache parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	UsageEvents string `yaml:"usageEvents"`
}

// FeedConfig controls the Federal Register feed client.
type FeedConfig struct {
	BaseURL    string        `yaml:"baseUrl"`
	WindowDays int           `yaml:"windowDays"`
	PerPage    int           `yaml:"perPage"`
	Timeout    time.Duration `yaml:"timeout"`
	Interval   time.Duration `yaml:"interval"`
}

// ModelConfig controls the generative model client.
type ModelConfig struct {
	BaseURL        string        `yaml:"baseUrl"`
	Name           string        `yaml:"name"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxAttempts    int           `yaml:"maxAttempts"`
	RetryBackoff   time.Duration `yaml:"retryBackoff"`
	MaxTokens      int           `yaml:"maxTokens"`
	ContextWindow  int           `yaml:"contextWindow"`
	Temperature    float64       `yaml:"temperature"`
	TopK           int           `yaml:"topK"`
	TopP           float64       `yaml:"topP"`
	MaxAnswerChars int           `yaml:"maxAnswerChars"`
}

// QueryConfig controls retrieval and context assembly. RetrieveLimit (store
// read cap), ContextDocs (documents rendered into the prompt), and
// SnippetChars (per-document summary budget) are deliberately independent
// knobs; they must not be collapsed into one.
type QueryConfig struct {
	RetrieveLimit   int `yaml:"retrieveLimit"`
	ContextDocs     int `yaml:"contextDocs"`
	SnippetChars    int `yaml:"snippetChars"`
	SummaryMaxChars int `yaml:"summaryMaxChars"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaultConfig returns a Config with defaults suitable for local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    90 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimitWindow: time.Minute,
			RateLimit:       30,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "regwatch",
			User:            "regwatch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
			CacheTTL: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "regwatch-group",
			Topics: KafkaTopics{
				UsageEvents: "usage-events",
			},
		},
		Feed: FeedConfig{
			BaseURL:    "https://www.federalregister.gov/api/v1",
			WindowDays: 7,
			PerPage:    15,
			Timeout:    30 * time.Second,
			Interval:   6 * time.Hour,
		},
		Model: ModelConfig{
			BaseURL:        "http://localhost:11434",
			Name:           "mistral:latest",
			Timeout:        60 * time.Second,
			MaxAttempts:    3,
			RetryBackoff:   time.Second,
			MaxTokens:      1000,
			ContextWindow:  4096,
			Temperature:    0.7,
			TopK:           40,
			TopP:           0.9,
			MaxAnswerChars: 2000,
		},
		Query: QueryConfig{
			RetrieveLimit:   5,
			ContextDocs:     3,
			SnippetChars:    300,
			SummaryMaxChars: 2000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

func validate(cfg *Config) error {
	if cfg.Feed.WindowDays <= 0 {
		return fmt.Errorf("feed.windowDays must be positive")
	}
	if cfg.Feed.PerPage <= 0 {
		return fmt.Errorf("feed.perPage must be positive")
	}
	if cfg.Model.MaxAttempts <= 0 {
		return fmt.Errorf("model.maxAttempts must be positive")
	}
	if cfg.Model.Timeout <= 0 {
		return fmt.Errorf("model.timeout must be positive")
	}
	if cfg.Query.RetrieveLimit <= 0 {
		return fmt.Errorf("query.retrieveLimit must be positive")
	}
	if cfg.Query.ContextDocs <= 0 {
		return fmt.Errorf("query.contextDocs must be positive")
	}
	if cfg.Query.ContextDocs > cfg.Query.RetrieveLimit {
		return fmt.Errorf("query.contextDocs cannot exceed query.retrieveLimit")
	}
	if cfg.Query.SnippetChars <= 0 {
		return fmt.Errorf("query.snippetChars must be positive")
	}
	return nil
}

// applyEnvOverrides reads RW_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RW_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("RW_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("RW_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("RW_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("RW_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("RW_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("RW_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("RW_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("RW_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("RW_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("RW_FEED_BASE_URL"); v != "" {
		cfg.Feed.BaseURL = v
	}
	if v := os.Getenv("RW_FEED_WINDOW_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil {
			cfg.Feed.WindowDays = days
		}
	}
	if v := os.Getenv("RW_MODEL_BASE_URL"); v != "" {
		cfg.Model.BaseURL = v
	}
	if v := os.Getenv("RW_MODEL_NAME"); v != "" {
		cfg.Model.Name = v
	}
	if v := os.Getenv("RW_MODEL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Model.Timeout = d
		}
	}
	if v := os.Getenv("RW_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RW_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
