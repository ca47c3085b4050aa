// Package config loads and validates the matrix builder configuration from
// YAML files with environment-variable overrides. It provides typed structs
// for every subsystem (Run, Transport, Redis, Kafka, Sink, Postgres, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Transport kinds.
const (
	TransportLocal = "local"
	TransportTCP   = "tcp"
	TransportRedis = "redis"
)

// Sink drivers.
const (
	SinkNone     = "none"
	SinkPostgres = "postgres"
	SinkSQLite   = "sqlite"
)

// Config is the top-level configuration.
type Config struct {
	Run       RunConfig       `yaml:"run"`
	Transport TransportConfig `yaml:"transport"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Sink      SinkConfig      `yaml:"sink"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	SQLite    SQLiteConfig    `yaml:"sqlite"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// RunConfig controls a single matrix build.
type RunConfig struct {
	Workers          int    `yaml:"workers"`
	Encoding         string `yaml:"encoding"`
	Output           string `yaml:"output"`
	VerifyVocabulary bool   `yaml:"verifyVocabulary"`
	StripHTML        bool   `yaml:"stripHTML"`
}

// TransportConfig selects how ranks exchange collective rounds.
type TransportConfig struct {
	Kind        string        `yaml:"kind"`
	Addr        string        `yaml:"addr"`
	RunID       string        `yaml:"runID"`
	Rank        int           `yaml:"rank"`
	Size        int           `yaml:"size"`
	DialTimeout time.Duration `yaml:"dialTimeout"`
	RoundTTL    time.Duration `yaml:"roundTTL"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"poolSize"`
}

// KafkaConfig holds Kafka broker and topic settings. Event publication is
// disabled when Brokers is empty.
type KafkaConfig struct {
	Brokers       []string `yaml:"brokers"`
	Topic         string   `yaml:"topic"`
	ConsumerGroup string   `yaml:"consumerGroup"`
}

// Enabled reports whether run events should be published.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0 && k.Topic != ""
}

// SinkConfig selects where the finished matrix is persisted besides the CSV.
type SinkConfig struct {
	Driver  string        `yaml:"driver"`
	Timeout time.Duration `yaml:"timeout"`
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

// SQLiteConfig holds the local database file location.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus Pushgateway target. Metrics are only
// pushed when PushURL is set.
type MetricsConfig struct {
	PushURL string `yaml:"pushURL"`
	Job     string `yaml:"job"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing
// values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Default returns the built-in configuration without reading files or the
// environment.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		Run: RunConfig{
			Workers:  4,
			Encoding: "sparse",
			Output:   "out/matriz.csv",
		},
		Transport: TransportConfig{
			Kind:        TransportLocal,
			Addr:        "localhost:7070",
			RunID:       "default",
			Rank:        0,
			Size:        1,
			DialTimeout: 30 * time.Second,
			RoundTTL:    10 * time.Minute,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			DB:       0,
			PoolSize: 10,
		},
		Kafka: KafkaConfig{
			Topic:         "matrix.complete",
			ConsumerGroup: "termmatrix-events",
		},
		Sink: SinkConfig{
			Driver:  SinkNone,
			Timeout: 30 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "termmatrix",
			User:            "termmatrix",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		SQLite: SQLiteConfig{
			Path: "out/termmatrix.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Job: "termmatrix",
		},
	}
}

// Validate checks cross-field invariants after flags have been applied.
func (c *Config) Validate() error {
	if c.Run.Workers <= 0 {
		return fmt.Errorf("run.workers must be positive, got %d: %w", c.Run.Workers, apperrors.ErrInvalidInput)
	}
	switch c.Run.Encoding {
	case "dense", "sparse":
	default:
		return fmt.Errorf("unknown run.encoding %q: %w", c.Run.Encoding, apperrors.ErrInvalidInput)
	}
	if c.Run.Output == "" {
		return fmt.Errorf("run.output must not be empty: %w", apperrors.ErrInvalidInput)
	}
	switch c.Transport.Kind {
	case TransportLocal:
	case TransportTCP, TransportRedis:
		if c.Transport.Size <= 0 {
			return fmt.Errorf("transport.size must be positive, got %d: %w", c.Transport.Size, apperrors.ErrInvalidInput)
		}
		if c.Transport.Rank < 0 || c.Transport.Rank >= c.Transport.Size {
			return fmt.Errorf("transport.rank %d out of range [0,%d): %w", c.Transport.Rank, c.Transport.Size, apperrors.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("unknown transport.kind %q: %w", c.Transport.Kind, apperrors.ErrInvalidInput)
	}
	switch c.Sink.Driver {
	case SinkNone, SinkPostgres, SinkSQLite, "":
	default:
		return fmt.Errorf("unknown sink.driver %q: %w", c.Sink.Driver, apperrors.ErrInvalidInput)
	}
	return nil
}

// applyEnvOverrides reads TM_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TM_RUN_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Run.Workers = n
		}
	}
	if v := os.Getenv("TM_RUN_ENCODING"); v != "" {
		cfg.Run.Encoding = v
	}
	if v := os.Getenv("TM_RUN_OUTPUT"); v != "" {
		cfg.Run.Output = v
	}
	if v := os.Getenv("TM_TRANSPORT_KIND"); v != "" {
		cfg.Transport.Kind = v
	}
	if v := os.Getenv("TM_TRANSPORT_ADDR"); v != "" {
		cfg.Transport.Addr = v
	}
	if v := os.Getenv("TM_TRANSPORT_RUN_ID"); v != "" {
		cfg.Transport.RunID = v
	}
	if v := os.Getenv("TM_TRANSPORT_RANK"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Transport.Rank = n
		}
	}
	if v := os.Getenv("TM_TRANSPORT_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Transport.Size = n
		}
	}
	if v := os.Getenv("TM_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("TM_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("TM_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("TM_KAFKA_TOPIC"); v != "" {
		cfg.Kafka.Topic = v
	}
	if v := os.Getenv("TM_SINK_DRIVER"); v != "" {
		cfg.Sink.Driver = v
	}
	if v := os.Getenv("TM_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("TM_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("TM_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("TM_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("TM_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("TM_SQLITE_PATH"); v != "" {
		cfg.SQLite.Path = v
	}
	if v := os.Getenv("TM_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TM_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("TM_METRICS_PUSH_URL"); v != "" {
		cfg.Metrics.PushURL = v
	}
}
