package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Auth         AuthConfig
	Redis        RedisConfig
	RateLimit    RateLimitConfig
	Logging      LoggingConfig
	Notification NotificationConfig
	Remediation  RemediationConfig
	Tracing      TracingConfig
	Archive      ArchiveConfig
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	Environment     string
}

// DatabaseConfig contains database configuration
type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// For SQLite
	Path string
}

// AuthConfig contains operator and host authentication settings
type AuthConfig struct {
	JWTSecret         string
	AccessTokenExpiry time.Duration
	BCryptCost        int
}

// RedisConfig contains Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port for the redis client.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// RateLimitConfig bounds how often a single host may check in.
type RateLimitConfig struct {
	CheckInsPerMinute int
	Burst             int
	APIRequestsPerSec float64
	APIBurst          int
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string
	Format     string // json or console
	OutputPath string
}

// NotificationConfig configures where terminal outcomes are posted.
type NotificationConfig struct {
	SlackWebhookURL string
	SlackChannel    string
	WebhookURL      string
	WebhookSecret   string
	Timeout         time.Duration
}

// RemediationConfig tunes the action queue.
type RemediationConfig struct {
	CustomScripts    []string
	NotifyOnSuccess  bool
	Timeouts         map[string]time.Duration
	WatchdogSchedule string
	DefaultListLimit int
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Endpoint     string
	SamplingRate float64
	Insecure     bool
}

// ArchiveConfig configures the optional S3 audit archive.
type ArchiveConfig struct {
	Bucket   string
	Prefix   string
	Region   string
	Schedule string
	// SettleWindow is how old a record must be before it is exported.
	SettleWindow time.Duration
	// Endpoint points at an S3-compatible store; empty means AWS.
	Endpoint string
	// Static credentials; empty falls back to the default AWS chain.
	AccessKeyID     string
	SecretAccessKey string
}

// Enabled reports whether an archive bucket is configured.
func (a ArchiveConfig) Enabled() bool {
	return a.Bucket != ""
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors as it's optional)
	_ = godotenv.Load()

	timeouts, err := parseTimeouts(getEnv("REMEDIATION_TIMEOUTS", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			AllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
			Environment:     getEnv("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "sqlite"),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			Name:            getEnv("DB_NAME", "fleetfix"),
			User:            getEnv("DB_USER", ""),
			Password:        getEnv("DB_PASSWORD", ""),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			Path:            getEnv("DB_PATH", "./fleetfix.db"),
		},
		Auth: AuthConfig{
			JWTSecret:         getEnv("JWT_SECRET", ""),
			AccessTokenExpiry: getEnvAsDuration("JWT_ACCESS_EXPIRY", 12*time.Hour),
			BCryptCost:        getEnvAsInt("BCRYPT_COST", 12),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			CheckInsPerMinute: getEnvAsInt("CHECKIN_RATE_PER_MINUTE", 6),
			Burst:             getEnvAsInt("CHECKIN_RATE_BURST", 3),
			APIRequestsPerSec: getEnvAsFloat("API_RATE_PER_SECOND", 100),
			APIBurst:          getEnvAsInt("API_RATE_BURST", 200),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			OutputPath: getEnv("LOG_OUTPUT", "stdout"),
		},
		Notification: NotificationConfig{
			SlackWebhookURL: getEnv("SLACK_WEBHOOK_URL", ""),
			SlackChannel:    getEnv("SLACK_CHANNEL", "#remediation"),
			WebhookURL:      getEnv("NOTIFY_WEBHOOK_URL", ""),
			WebhookSecret:   getEnv("NOTIFY_WEBHOOK_SECRET", ""),
			Timeout:         getEnvAsDuration("NOTIFY_TIMEOUT", 10*time.Second),
		},
		Remediation: RemediationConfig{
			CustomScripts:    getEnvAsList("REMEDIATION_CUSTOM_SCRIPTS", nil),
			NotifyOnSuccess:  getEnvAsBool("REMEDIATION_NOTIFY_ON_SUCCESS", false),
			Timeouts:         timeouts,
			WatchdogSchedule: getEnv("REMEDIATION_WATCHDOG_SCHEDULE", "@every 1m"),
			DefaultListLimit: getEnvAsInt("REMEDIATION_LIST_LIMIT", 50),
		},
		Tracing: TracingConfig{
			Endpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			SamplingRate: getEnvAsFloat("OTEL_SAMPLING_RATE", 1.0),
			Insecure:     getEnvAsBool("OTEL_INSECURE", true),
		},
		Archive: ArchiveConfig{
			Bucket:   getEnv("AUDIT_ARCHIVE_BUCKET", ""),
			Prefix:   getEnv("AUDIT_ARCHIVE_PREFIX", "fleetfix/audit"),
			Region:   getEnv("AUDIT_ARCHIVE_REGION", "us-east-1"),
			Schedule: getEnv("AUDIT_ARCHIVE_SCHEDULE", "@every 15m"),
			Endpoint: getEnv("AUDIT_ARCHIVE_ENDPOINT", ""),

			SettleWindow: getEnvAsDuration("AUDIT_ARCHIVE_SETTLE_WINDOW", time.Minute),

			AccessKeyID:     getEnv("AUDIT_ARCHIVE_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AUDIT_ARCHIVE_SECRET_ACCESS_KEY", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	if c.RateLimit.CheckInsPerMinute < 1 {
		return fmt.Errorf("CHECKIN_RATE_PER_MINUTE must be positive")
	}
	if c.Notification.WebhookURL != "" && c.Notification.WebhookSecret == "" {
		return fmt.Errorf("NOTIFY_WEBHOOK_SECRET is required when NOTIFY_WEBHOOK_URL is set")
	}
	for name, d := range c.Remediation.Timeouts {
		if d <= 0 {
			return fmt.Errorf("timeout for %s must be positive", name)
		}
	}
	return nil
}

// parseTimeouts reads "restart-service=10m,clear-logs=30m".
func parseTimeouts(raw string) (map[string]time.Duration, error) {
	out := make(map[string]time.Duration)
	if strings.TrimSpace(raw) == "" {
		return out, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("malformed REMEDIATION_TIMEOUTS entry %q", pair)
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return nil, fmt.Errorf("REMEDIATION_TIMEOUTS %s: %w", name, err)
		}
		out[strings.TrimSpace(name)] = d
	}
	return out, nil
}

// TimeoutNames returns the configured timeout keys in sorted order.
func (r RemediationConfig) TimeoutNames() []string {
	names := make([]string, 0, len(r.Timeouts))
	for k := range r.Timeouts {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
