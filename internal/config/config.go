package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the pipeline service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Ingest       IngestConfig
	Pipeline     PipelineConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values. An empty DSN disables the
// postgres-backed instance store and falls back to the in-memory store.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values for the record store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// IngestConfig controls the ingestion surface. When JWTSecret is set,
// POST /events requires a bearer token signed with it.
type IngestConfig struct {
	JWTSecret string
}

// PipelineConfig tunes queueing, retry and shutdown behavior.
type PipelineConfig struct {
	EntityConfigPath      string
	DefaultEntity         string
	QueueCapacity         int
	BlockOnFullQueue      bool
	MaxAttempts           int
	BackoffInitialMs      int
	BackoffMultiplier     float64
	BackoffMaxMs          int
	HandlerTimeoutSeconds int
	ShutdownGraceSeconds  int
	CriticalQueueDepth    int
	DemoMode              bool
}

// NotificationConfig holds outbound notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
	TimeoutSec int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "contact-pipeline"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Ingest: IngestConfig{
			JWTSecret: os.Getenv("INGEST_JWT_SECRET"),
		},
		Pipeline: PipelineConfig{
			EntityConfigPath:      os.Getenv("PIPELINE_ENTITY_CONFIG_PATH"),
			DefaultEntity:         getEnv("PIPELINE_DEFAULT_ENTITY", "higherself_core"),
			QueueCapacity:         getEnvAsInt("PIPELINE_QUEUE_CAPACITY", 128),
			BlockOnFullQueue:      getEnvAsBool("PIPELINE_BLOCK_ON_FULL_QUEUE", false),
			MaxAttempts:           getEnvAsInt("PIPELINE_MAX_ATTEMPTS", 3),
			BackoffInitialMs:      getEnvAsInt("PIPELINE_BACKOFF_INITIAL_MS", 200),
			BackoffMultiplier:     getEnvAsFloat("PIPELINE_BACKOFF_MULTIPLIER", 2.0),
			BackoffMaxMs:          getEnvAsInt("PIPELINE_BACKOFF_MAX_MS", 5000),
			HandlerTimeoutSeconds: getEnvAsInt("PIPELINE_HANDLER_TIMEOUT_SECONDS", 10),
			ShutdownGraceSeconds:  getEnvAsInt("PIPELINE_SHUTDOWN_GRACE_SECONDS", 15),
			CriticalQueueDepth:    getEnvAsInt("PIPELINE_CRITICAL_QUEUE_DEPTH", 100),
			DemoMode:              getEnvAsBool("PIPELINE_DEMO_MODE", false),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
			TimeoutSec: getEnvAsInt("NOTIFY_TIMEOUT_SECONDS", 5),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// HandlerTimeout bounds a single agent handler invocation.
func (p PipelineConfig) HandlerTimeout() time.Duration {
	if p.HandlerTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(p.HandlerTimeoutSeconds) * time.Second
}

// ShutdownGrace is the drain window before in-flight handlers are canceled.
func (p PipelineConfig) ShutdownGrace() time.Duration {
	if p.ShutdownGraceSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(p.ShutdownGraceSeconds) * time.Second
}

// NotifyTimeout bounds a single webhook delivery.
func (n NotificationConfig) NotifyTimeout() time.Duration {
	if n.TimeoutSec <= 0 {
		return 5 * time.Second
	}
	return time.Duration(n.TimeoutSec) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
