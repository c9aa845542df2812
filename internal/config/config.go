package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	ServiceNow   ServiceNowConfig
	Rundeck      RundeckConfig
	Orchestrator OrchestratorConfig
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

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	LocksEnabled bool
	LockTTL      time.Duration
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines platform token parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// ServiceNowConfig points at the incident table of a ServiceNow instance.
type ServiceNowConfig struct {
	Instance string
	User     string
	Password string
	Category string
}

// RundeckConfig points at the installation job.
type RundeckConfig struct {
	URL      string
	APIToken string
	JobID    string
}

// OrchestratorConfig bounds external calls and polling.
type OrchestratorConfig struct {
	CallTimeout         time.Duration
	PollInterval        time.Duration
	PollMaxAttempts     int
	PollRetryAttempts   int
	MirrorRetryAttempts int
	RetryBaseDelay      time.Duration
	PollRatePerSecond   float64
	PollBurst           int
}

// NotificationConfig holds notification sinks.
type NotificationConfig struct {
	WebhookURL   string
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "installer-orchestrator"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:         getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:     os.Getenv("REDIS_PASSWORD"),
			DB:           redisDB,
			LocksEnabled: getEnvAsBool("REDIS_LOCKS_ENABLED", false),
			LockTTL:      getEnvAsSeconds("REDIS_LOCK_TTL_SECONDS", 60),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		ServiceNow: ServiceNowConfig{
			Instance: strings.TrimRight(os.Getenv("SN_INSTANCE"), "/"),
			User:     os.Getenv("SN_USER"),
			Password: os.Getenv("SN_PASS"),
			Category: getEnv("SN_CATEGORY", "Software"),
		},
		Rundeck: RundeckConfig{
			URL:      strings.TrimRight(getEnv("RUNDECK_URL", "http://localhost:4440"), "/"),
			APIToken: os.Getenv("RUNDECK_API_TOKEN"),
			JobID:    os.Getenv("RUNDECK_JOB_ID"),
		},
		Orchestrator: OrchestratorConfig{
			CallTimeout:         getEnvAsSeconds("CALL_TIMEOUT_SECONDS", 10),
			PollInterval:        getEnvAsSeconds("POLL_INTERVAL_SECONDS", 5),
			PollMaxAttempts:     getEnvAsInt("POLL_MAX_ATTEMPTS", 120),
			PollRetryAttempts:   getEnvAsInt("POLL_RETRY_ATTEMPTS", 3),
			MirrorRetryAttempts: getEnvAsInt("MIRROR_RETRY_ATTEMPTS", 3),
			RetryBaseDelay:      time.Duration(getEnvAsInt("RETRY_BASE_DELAY_MS", 200)) * time.Millisecond,
			PollRatePerSecond:   getEnvAsFloat("POLL_RATE_PER_SECOND", 5),
			PollBurst:           getEnvAsInt("POLL_BURST", 5),
		},
		Notification: NotificationConfig{
			WebhookURL:   getEnv("NOTIFY_WEBHOOK_URL", ""),
			KafkaBrokers: getEnvAsList("KAFKA_BROKERS"),
			KafkaTopic:   getEnv("KAFKA_NOTIFICATION_TOPIC", "installer.notifications"),
		},
	}

	if err := cfg.Orchestrator.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects orchestrator settings that would make polling unbounded or stall it.
func (o OrchestratorConfig) Validate() error {
	if o.PollMaxAttempts <= 0 {
		return fmt.Errorf("POLL_MAX_ATTEMPTS must be positive, got %d", o.PollMaxAttempts)
	}
	if o.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL_SECONDS must be positive")
	}
	if o.CallTimeout <= 0 {
		return fmt.Errorf("CALL_TIMEOUT_SECONDS must be positive")
	}
	if o.PollRetryAttempts <= 0 || o.MirrorRetryAttempts <= 0 {
		return fmt.Errorf("retry attempts must be positive")
	}
	if o.PollRatePerSecond <= 0 || o.PollBurst <= 0 {
		return fmt.Errorf("POLL_RATE_PER_SECOND and POLL_BURST must be positive")
	}
	return nil
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

func getEnvAsSeconds(key string, fallback int) time.Duration {
	return time.Duration(getEnvAsInt(key, fallback)) * time.Second
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

func getEnvAsList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
