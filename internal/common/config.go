package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Queue    QueueConfig
	Extract  ExtractConfig
	Worker   WorkerConfig
	Server   ServerConfig
	Log      LogConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string // postgres | sqlite
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
	AutoMigrate      bool
}

// QueueConfig holds task broker configuration
type QueueConfig struct {
	Driver          string // nats | memory
	URL             string
	Topic           string
	Group           string
	Partitions      int
	AckAfterProcess bool
	FetchBatch      int
}

// ExtractConfig holds extraction service configuration
type ExtractConfig struct {
	Driver          string // openai | none
	BaseURL         string
	APIKey          string
	Model           string
	Temperature     float32
	Timeout         time.Duration // 0 waits for the service indefinitely
	DefaultCurrency string
}

// WorkerConfig holds consumer-side configuration
type WorkerConfig struct {
	Concurrency  int
	SkipTerminal bool
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string
	Format string
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverNATS     = "nats"
	DriverMemory   = "memory"
	DriverOpenAI   = "openai"
	DriverNone     = "none"
)

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:           strings.ToLower(getEnv("DB_DRIVER", DriverPostgres)),
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
			AutoMigrate:      getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Queue: QueueConfig{
			Driver:          strings.ToLower(getEnv("QUEUE_DRIVER", DriverNATS)),
			URL:             getEnv("QUEUE_URL", "nats://127.0.0.1:4222"),
			Topic:           getEnv("QUEUE_TOPIC", "extract-tasks"),
			Group:           getEnv("QUEUE_GROUP", "extract-workers"),
			Partitions:      getEnvAsInt("QUEUE_PARTITIONS", 4),
			AckAfterProcess: getEnvAsBool("QUEUE_ACK_AFTER_PROCESS", false),
			FetchBatch:      getEnvAsInt("QUEUE_FETCH_BATCH", 16),
		},
		Extract: ExtractConfig{
			Driver:          strings.ToLower(getEnv("EXTRACT_DRIVER", DriverOpenAI)),
			BaseURL:         getEnv("EXTRACT_BASE_URL", "https://api.openai.com/v1"),
			APIKey:          getEnv("EXTRACT_API_KEY", ""),
			Model:           getEnv("EXTRACT_MODEL", "gpt-4o-mini"),
			Temperature:     getEnvAsFloat32("EXTRACT_TEMPERATURE", 0.1),
			Timeout:         getEnvAsDuration("EXTRACT_TIMEOUT", 0),
			DefaultCurrency: getEnv("DEFAULT_CURRENCY", "CAD"),
		},
		Worker: WorkerConfig{
			Concurrency:  getEnvAsInt("WORKER_CONCURRENCY", 1),
			SkipTerminal: getEnvAsBool("WORKER_SKIP_TERMINAL", false),
		},
		Server: ServerConfig{
			GRPCAddr: getEnv("GRPC_ADDR", ":8080"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return NewAppError("CONFIG_ERROR", fmt.Sprintf(format, args...), ErrInvalidInput)
	}

	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return invalid("DB_DRIVER %q is not supported", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return invalid("DB_URL is required")
	}

	switch c.Queue.Driver {
	case DriverNATS, DriverMemory:
	default:
		return invalid("QUEUE_DRIVER %q is not supported", c.Queue.Driver)
	}
	if c.Queue.Driver == DriverNATS && c.Queue.URL == "" {
		return invalid("QUEUE_URL is required")
	}
	if c.Queue.Topic == "" || c.Queue.Group == "" {
		return invalid("QUEUE_TOPIC and QUEUE_GROUP are required")
	}
	if c.Queue.Partitions < 1 {
		return invalid("QUEUE_PARTITIONS must be at least 1 (got %d)", c.Queue.Partitions)
	}

	switch c.Extract.Driver {
	case DriverOpenAI:
		if c.Extract.APIKey == "" {
			return invalid("EXTRACT_API_KEY is required")
		}
	case DriverNone:
	default:
		return invalid("EXTRACT_DRIVER %q is not supported", c.Extract.Driver)
	}
	if c.Extract.Timeout < 0 {
		return invalid("EXTRACT_TIMEOUT must not be negative")
	}

	if c.Worker.Concurrency < 1 {
		return invalid("WORKER_CONCURRENCY must be at least 1 (got %d)", c.Worker.Concurrency)
	}
	if c.Server.GRPCAddr == "" {
		return invalid("GRPC_ADDR is required")
	}
	return nil
}
