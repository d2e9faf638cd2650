package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	Telemetry TelemetryConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	DBAutoMigrate     bool

	SnowflakeNode int64

	Redis     RedisConfig
	Keycloak  KeycloakConfig
	Email     EmailConfig
	Scheduler SchedulerConfig
	Outbox    OutboxConfig
	RateLimit RateLimitConfig
	Bootstrap BootstrapConfig

	MaxConflictRetries    int
	InvitationAcceptURL   string
	PermissionCatalogPath string
}

// TelemetryConfig drives logging, tracing and OTLP export.
type TelemetryConfig struct {
	LogLevel      string
	LogFormat     string
	OtelEnabled   bool
	OTLPEndpoint  string
	OTLPProtocol  string
	SamplingRatio float64
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

type KeycloakConfig struct {
	Enabled      bool
	BaseURL      string
	Realm        string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

type EmailConfig struct {
	Enabled      bool
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

type SchedulerConfig struct {
	Enabled             bool
	InvitationSweepSpec string
	OutboxRelaySpec     string
	PolicyReloadSpec    string
	BatchSize           int
	JobTimeout          time.Duration
	LockTTL             time.Duration
}

type OutboxConfig struct {
	BatchSize   int
	MaxAttempts int
}

// RateLimitConfig bounds invitation token attempts per caller. It needs Redis.
type RateLimitConfig struct {
	Enabled               bool
	InvitationAcceptRate  float64
	InvitationAcceptBurst int
}

// BootstrapConfig names the organization seeded on startup. An empty owner
// disables seeding.
type BootstrapConfig struct {
	OwnerUserID      string
	OrganizationName string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "identity"),
		AppVersion:  getenv("SERVICE_VERSION", getenv("APP_VERSION", "0.1.0")),
		Environment: getenv("DEPLOYMENT_ENV", getenv("ENVIRONMENT", "development")),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		Telemetry: TelemetryConfig{
			LogLevel:      strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
			LogFormat:     strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", "json"))),
			OtelEnabled:   getenvBool("OTEL_ENABLED", true),
			OTLPEndpoint:  strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_ENDPOINT", getenv("OTLP_ENDPOINT", "localhost:4317"))),
			OTLPProtocol:  strings.ToLower(strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")))),
			SamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		},

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "identity"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		DBAutoMigrate:     getenvBool("DATABASE_AUTO_MIGRATE", true),

		SnowflakeNode: getenvInt64("SNOWFLAKE_NODE", 1),

		Redis: RedisConfig{
			Enabled:  getenvBool("REDIS_ENABLED", false),
			Addr:     getenv("REDIS_ADDR", "localhost:6379"),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
			CacheTTL: getenvDuration("REDIS_CACHE_TTL", 5*time.Minute),
		},
		Keycloak: KeycloakConfig{
			Enabled:      getenvBool("KEYCLOAK_ENABLED", false),
			BaseURL:      strings.TrimRight(strings.TrimSpace(getenv("KEYCLOAK_BASE_URL", "http://localhost:8081")), "/"),
			Realm:        getenv("KEYCLOAK_REALM", "master"),
			ClientID:     strings.TrimSpace(getenv("KEYCLOAK_CLIENT_ID", "")),
			ClientSecret: strings.TrimSpace(getenv("KEYCLOAK_CLIENT_SECRET", "")),
			Timeout:      getenvDuration("KEYCLOAK_TIMEOUT", 10*time.Second),
		},
		Email: EmailConfig{
			Enabled:      getenvBool("SMTP_ENABLED", false),
			SMTPHost:     getenv("SMTP_HOST", "localhost"),
			SMTPPort:     getenvInt("SMTP_PORT", 1025),
			SMTPUsername: getenv("SMTP_USERNAME", ""),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			SMTPFrom:     getenv("SMTP_FROM", "no-reply@localhost"),
		},
		Scheduler: SchedulerConfig{
			Enabled:             getenvBool("SCHEDULER_ENABLED", true),
			InvitationSweepSpec: getenv("SCHEDULER_INVITATION_SWEEP", "@every 5m"),
			OutboxRelaySpec:     getenv("SCHEDULER_OUTBOX_RELAY", "@every 5s"),
			PolicyReloadSpec:    getenv("SCHEDULER_POLICY_RELOAD", ""),
			BatchSize:           getenvInt("SCHEDULER_BATCH_SIZE", 100),
			JobTimeout:          getenvDuration("SCHEDULER_JOB_TIMEOUT", time.Minute),
			LockTTL:             getenvDuration("SCHEDULER_LOCK_TTL", 2*time.Minute),
		},
		Outbox: OutboxConfig{
			BatchSize:   getenvInt("OUTBOX_BATCH_SIZE", 100),
			MaxAttempts: getenvInt("OUTBOX_MAX_ATTEMPTS", 10),
		},
		RateLimit: RateLimitConfig{
			Enabled:               getenvBool("RATE_LIMIT_ENABLED", false),
			InvitationAcceptRate:  getenvFloat("RATE_LIMIT_INVITATION_ACCEPT_RATE", 0.2),
			InvitationAcceptBurst: getenvInt("RATE_LIMIT_INVITATION_ACCEPT_BURST", 5),
		},
		Bootstrap: BootstrapConfig{
			OwnerUserID:      strings.TrimSpace(getenv("BOOTSTRAP_OWNER_ID", "")),
			OrganizationName: strings.TrimSpace(getenv("BOOTSTRAP_ORGANIZATION_NAME", "Main")),
		},

		MaxConflictRetries:    getenvInt("MAX_CONFLICT_RETRIES", 3),
		InvitationAcceptURL:   strings.TrimSpace(getenv("INVITATION_ACCEPT_URL", "http://localhost:3000/invitations/accept")),
		PermissionCatalogPath: strings.TrimSpace(getenv("PERMISSION_CATALOG_PATH", "")),
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
