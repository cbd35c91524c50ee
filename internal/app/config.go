package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/yungbote/promptchain-backend/internal/data/db"
	"github.com/yungbote/promptchain-backend/internal/observability"
	"github.com/yungbote/promptchain-backend/internal/pkg/envutil"
	"github.com/yungbote/promptchain-backend/internal/platform/neo4jdb"
)

type Config struct {
	LogMode     string `yaml:"log_mode"`
	Environment string `yaml:"environment"`

	DB      DBConfig      `yaml:"db"`
	Redis   RedisConfig   `yaml:"redis"`
	Neo4j   Neo4jConfig   `yaml:"neo4j"`
	Tx      TxConfig      `yaml:"tx"`
	Metrics MetricsConfig `yaml:"metrics"`
	Otel    OtelConfig    `yaml:"otel"`
}

type DBConfig struct {
	Driver     string         `yaml:"driver"`
	SQLitePath string         `yaml:"sqlite_path"`
	Postgres   PostgresConfig `yaml:"postgres"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

type RedisConfig struct {
	Addr    string `yaml:"addr"`
	Channel string `yaml:"channel"`
}

type Neo4jConfig struct {
	URI      string        `yaml:"uri"`
	User     string        `yaml:"user"`
	Password string        `yaml:"password"`
	Database string        `yaml:"database"`
	Timeout  time.Duration `yaml:"timeout"`
}

type TxConfig struct {
	Timeout        time.Duration `yaml:"timeout"`
	MaxAttempts    int           `yaml:"max_attempts"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
}

type MetricsConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Addr           string        `yaml:"addr"`
	ScrapeInterval time.Duration `yaml:"scrape_interval"`
}

type OtelConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	Headers     string  `yaml:"headers"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

func DefaultConfig() Config {
	return Config{
		LogMode:     "development",
		Environment: "local",
		DB: DBConfig{
			Driver:     db.DriverSQLite,
			SQLitePath: "promptchain.db",
			Postgres: PostgresConfig{
				Host:    "localhost",
				Port:    "5432",
				User:    "postgres",
				Name:    "promptchain",
				SSLMode: "disable",
			},
		},
		Redis: RedisConfig{Channel: "promptchain.activity"},
		Neo4j: Neo4jConfig{User: "neo4j", Timeout: 10 * time.Second},
		Tx: TxConfig{
			Timeout:        5 * time.Second,
			MaxAttempts:    3,
			RetryBaseDelay: 25 * time.Millisecond,
		},
		Metrics: MetricsConfig{ScrapeInterval: 10 * time.Second},
		Otel:    OtelConfig{SampleRatio: 0.1},
	}
}

// LoadConfig layers, lowest first: defaults, .env (if present), the YAML file
// named by CONFIG_FILE, then process environment variables.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()
	cfg := DefaultConfig()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.mergeYAMLFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeYAMLFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.LogMode = envutil.String("LOG_MODE", c.LogMode)
	c.Environment = envutil.String("APP_ENV", c.Environment)

	c.DB.Driver = strings.ToLower(envutil.String("DB_DRIVER", c.DB.Driver))
	c.DB.SQLitePath = envutil.String("SQLITE_PATH", c.DB.SQLitePath)
	c.DB.Postgres.Host = envutil.String("POSTGRES_HOST", c.DB.Postgres.Host)
	c.DB.Postgres.Port = envutil.String("POSTGRES_PORT", c.DB.Postgres.Port)
	c.DB.Postgres.User = envutil.String("POSTGRES_USER", c.DB.Postgres.User)
	c.DB.Postgres.Password = envutil.String("POSTGRES_PASSWORD", c.DB.Postgres.Password)
	c.DB.Postgres.Name = envutil.String("POSTGRES_NAME", c.DB.Postgres.Name)
	c.DB.Postgres.SSLMode = envutil.String("POSTGRES_SSLMODE", c.DB.Postgres.SSLMode)

	c.Redis.Addr = envutil.String("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Channel = envutil.String("REDIS_CHANNEL", c.Redis.Channel)

	c.Neo4j.URI = envutil.String("NEO4J_URI", c.Neo4j.URI)
	c.Neo4j.User = envutil.String("NEO4J_USER", c.Neo4j.User)
	c.Neo4j.Password = envutil.String("NEO4J_PASSWORD", c.Neo4j.Password)
	c.Neo4j.Database = envutil.String("NEO4J_DATABASE", c.Neo4j.Database)
	c.Neo4j.Timeout = envutil.Duration("NEO4J_TIMEOUT", c.Neo4j.Timeout)

	c.Tx.Timeout = envutil.Duration("TX_TIMEOUT", c.Tx.Timeout)
	c.Tx.MaxAttempts = envutil.Int("TX_MAX_ATTEMPTS", c.Tx.MaxAttempts)
	c.Tx.RetryBaseDelay = envutil.Duration("TX_RETRY_BASE_DELAY", c.Tx.RetryBaseDelay)

	c.Metrics.Enabled = envutil.Bool("METRICS_ENABLED", c.Metrics.Enabled)
	c.Metrics.Addr = envutil.String("METRICS_ADDR", c.Metrics.Addr)
	c.Metrics.ScrapeInterval = envutil.Duration("METRICS_SCRAPE_INTERVAL", c.Metrics.ScrapeInterval)

	c.Otel.Enabled = envutil.Bool("OTEL_ENABLED", c.Otel.Enabled)
	c.Otel.Endpoint = envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", c.Otel.Endpoint)
	c.Otel.Headers = envutil.String("OTEL_EXPORTER_OTLP_HEADERS", c.Otel.Headers)
	c.Otel.Insecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", c.Otel.Insecure)
	c.Otel.SampleRatio = envutil.Float("OTEL_SAMPLER_RATIO", c.Otel.SampleRatio)
}

func (c Config) Validate() error {
	switch c.DB.Driver {
	case db.DriverSQLite:
		if strings.TrimSpace(c.DB.SQLitePath) == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite driver")
		}
	case db.DriverPostgres:
		if strings.TrimSpace(c.DB.Postgres.Host) == "" || strings.TrimSpace(c.DB.Postgres.Name) == "" {
			return fmt.Errorf("POSTGRES_HOST and POSTGRES_NAME are required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DB.Driver)
	}
	if c.Tx.MaxAttempts < 1 {
		return fmt.Errorf("TX_MAX_ATTEMPTS must be at least 1")
	}
	if c.Tx.Timeout < 0 {
		return fmt.Errorf("TX_TIMEOUT must not be negative")
	}
	return nil
}

func (c PostgresConfig) toDB() db.PostgresConfig {
	return db.PostgresConfig{
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: c.Password,
		Name:     c.Name,
		SSLMode:  c.SSLMode,
	}
}

func (c Neo4jConfig) toClient() neo4jdb.Config {
	return neo4jdb.Config{
		URI:      c.URI,
		User:     c.User,
		Password: c.Password,
		Database: c.Database,
		Timeout:  c.Timeout,
	}
}

func (c Config) otel() observability.OtelConfig {
	return observability.OtelConfig{
		Enabled:     c.Otel.Enabled,
		ServiceName: "promptchain",
		Environment: c.Environment,
		Endpoint:    c.Otel.Endpoint,
		Headers:     c.Otel.Headers,
		Insecure:    c.Otel.Insecure,
		SampleRatio: c.Otel.SampleRatio,
	}
}
