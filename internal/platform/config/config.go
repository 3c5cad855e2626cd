package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	listutil "compliance/pkg/platform/strings"
)

// Store backends for the audit log.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Write policies for the audit logger.
const (
	WritePolicyFailClosed = "fail_closed"
	WritePolicyFailOpen   = "fail_open"
)

// Config is the full process configuration.
type Config struct {
	Server   Server
	Audit    AuditConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	LogLevel string
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr               string
	ShutdownTimeout    time.Duration
	RateLimitPerMinute int
}

// AuditConfig selects the audit backend and its failure behaviour.
type AuditConfig struct {
	Store        string
	WritePolicy  string
	StreamBuffer int
}

// PostgresConfig holds database/sql pool settings.
type PostgresConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds go-redis client settings.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig enables the audit stream when Brokers is non-empty.
type KafkaConfig struct {
	Brokers       []string
	ConsumerGroup string
	Materialize   bool
}

// StreamEnabled reports whether the audit stream is configured.
func (c Config) StreamEnabled() bool {
	return len(c.Kafka.Brokers) > 0
}

type configFile struct {
	Server struct {
		Addr               string `yaml:"addr"`
		ShutdownTimeout    string `yaml:"shutdown_timeout"`
		RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
	} `yaml:"server"`
	Audit struct {
		Store        string `yaml:"store"`
		WritePolicy  string `yaml:"write_policy"`
		StreamBuffer int    `yaml:"stream_buffer"`
	} `yaml:"audit"`
	Postgres struct {
		URL          string `yaml:"url"`
		MaxOpenConns int    `yaml:"max_open_conns"`
		MaxIdleConns int    `yaml:"max_idle_conns"`
	} `yaml:"postgres"`
	Redis struct {
		URL      string `yaml:"url"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`
	Kafka struct {
		Brokers       []string `yaml:"brokers"`
		ConsumerGroup string   `yaml:"consumer_group"`
		Materialize   bool     `yaml:"materialize"`
	} `yaml:"kafka"`
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Server: Server{
			Addr:               ":8080",
			ShutdownTimeout:    15 * time.Second,
			RateLimitPerMinute: 120,
		},
		Audit: AuditConfig{
			Store:        StoreMemory,
			WritePolicy:  WritePolicyFailClosed,
			StreamBuffer: 1024,
		},
		Postgres: PostgresConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			ConsumerGroup: "compliance-audit-materializer",
		},
		LogLevel: "info",
	}
}

// Load applies defaults, then the optional YAML file at path, then
// environment variables. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := applyFile(&cfg, raw); err != nil {
				return Config{}, err
			}
		case !os.IsNotExist(err):
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, raw []byte) error {
	var f configFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if f.Server.Addr != "" {
		cfg.Server.Addr = f.Server.Addr
	}
	if f.Server.ShutdownTimeout != "" {
		d, err := time.ParseDuration(f.Server.ShutdownTimeout)
		if err != nil {
			return fmt.Errorf("parse server.shutdown_timeout: %w", err)
		}
		cfg.Server.ShutdownTimeout = d
	}
	if f.Server.RateLimitPerMinute > 0 {
		cfg.Server.RateLimitPerMinute = f.Server.RateLimitPerMinute
	}
	if f.Audit.Store != "" {
		cfg.Audit.Store = f.Audit.Store
	}
	if f.Audit.WritePolicy != "" {
		cfg.Audit.WritePolicy = f.Audit.WritePolicy
	}
	if f.Audit.StreamBuffer > 0 {
		cfg.Audit.StreamBuffer = f.Audit.StreamBuffer
	}
	if f.Postgres.URL != "" {
		cfg.Postgres.URL = f.Postgres.URL
	}
	if f.Postgres.MaxOpenConns > 0 {
		cfg.Postgres.MaxOpenConns = f.Postgres.MaxOpenConns
	}
	if f.Postgres.MaxIdleConns > 0 {
		cfg.Postgres.MaxIdleConns = f.Postgres.MaxIdleConns
	}
	if f.Redis.URL != "" {
		cfg.Redis.URL = f.Redis.URL
	}
	if f.Redis.PoolSize > 0 {
		cfg.Redis.PoolSize = f.Redis.PoolSize
	}
	if len(f.Kafka.Brokers) > 0 {
		cfg.Kafka.Brokers = f.Kafka.Brokers
	}
	if f.Kafka.ConsumerGroup != "" {
		cfg.Kafka.ConsumerGroup = f.Kafka.ConsumerGroup
	}
	cfg.Kafka.Materialize = cfg.Kafka.Materialize || f.Kafka.Materialize
	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Addr = envOrDefault("COMPLIANCE_ADDR", cfg.Server.Addr)
	cfg.Server.ShutdownTimeout = envDuration("SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Server.RateLimitPerMinute = envInt("RATE_LIMIT_PER_MINUTE", cfg.Server.RateLimitPerMinute)
	cfg.Audit.Store = strings.ToLower(envOrDefault("AUDIT_STORE", cfg.Audit.Store))
	cfg.Audit.WritePolicy = strings.ToLower(envOrDefault("AUDIT_WRITE_POLICY", cfg.Audit.WritePolicy))
	cfg.Audit.StreamBuffer = envInt("AUDIT_STREAM_BUFFER", cfg.Audit.StreamBuffer)
	cfg.Postgres.URL = envOrDefault("DATABASE_URL", cfg.Postgres.URL)
	cfg.Postgres.MaxOpenConns = envInt("DATABASE_MAX_OPEN_CONNS", cfg.Postgres.MaxOpenConns)
	cfg.Postgres.MaxIdleConns = envInt("DATABASE_MAX_IDLE_CONNS", cfg.Postgres.MaxIdleConns)
	cfg.Redis.URL = envOrDefault("REDIS_URL", cfg.Redis.URL)
	cfg.Redis.PoolSize = envInt("REDIS_POOL_SIZE", cfg.Redis.PoolSize)
	cfg.Redis.MinIdleConns = envInt("REDIS_MIN_IDLE_CONNS", cfg.Redis.MinIdleConns)
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = listutil.SplitList(brokers)
	}
	cfg.Kafka.ConsumerGroup = envOrDefault("KAFKA_CONSUMER_GROUP", cfg.Kafka.ConsumerGroup)
	cfg.Kafka.Materialize = envBool("AUDIT_MATERIALIZE", cfg.Kafka.Materialize)
	cfg.LogLevel = envOrDefault("LOG_LEVEL", cfg.LogLevel)
}

// Validate rejects combinations the process cannot start with.
func (c Config) Validate() error {
	switch c.Audit.Store {
	case StoreMemory:
	case StorePostgres:
		if c.Postgres.URL == "" {
			return fmt.Errorf("AUDIT_STORE=postgres requires DATABASE_URL")
		}
	case StoreRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("AUDIT_STORE=redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown audit store %q", c.Audit.Store)
	}
	switch c.Audit.WritePolicy {
	case WritePolicyFailClosed, WritePolicyFailOpen:
	default:
		return fmt.Errorf("unknown audit write policy %q", c.Audit.WritePolicy)
	}
	if c.Kafka.Materialize && c.Audit.Store == StoreMemory {
		return fmt.Errorf("AUDIT_MATERIALIZE requires a durable audit store")
	}
	if c.Kafka.Materialize && !c.StreamEnabled() {
		return fmt.Errorf("AUDIT_MATERIALIZE requires KAFKA_BROKERS")
	}
	return nil
}

func envOrDefault(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envBool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return v
}
