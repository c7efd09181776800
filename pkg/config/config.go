package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/middenhq/midden/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Auth          AuthConfig          `yaml:"auth"`
	Mail          MailConfig          `yaml:"mail"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`

	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	URL            string        `yaml:"url"`
	MaxConns       int           `yaml:"max_conns"`
	MinConns       int           `yaml:"min_conns"`
	Timeout        time.Duration `yaml:"timeout"`
	ConnectRetries int           `yaml:"connect_retries"`
	ConnectBackoff time.Duration `yaml:"connect_backoff"`
}

// AuthConfig holds token and verification code configuration
type AuthConfig struct {
	// JWTSecret signs access tokens. Empty falls back to the insecure
	// development key inside pkg/auth, kept for backward compatibility.
	JWTSecret       string        `yaml:"jwt_secret"`
	TokenTTL        time.Duration `yaml:"token_ttl"`
	CodeTTL         time.Duration `yaml:"code_ttl"`
	CleanupSchedule string        `yaml:"cleanup_schedule"`
}

// MailConfig holds verification code delivery configuration
type MailConfig struct {
	SMTPHost       string `yaml:"smtp_host"`
	SMTPPort       string `yaml:"smtp_port"`
	SenderAddress  string `yaml:"sender_address"`
	SenderPassword string `yaml:"sender_password"`

	// SkipDelivery bypasses mail delivery and echoes the verification code
	// in the login response. Never enable in production.
	SkipDelivery bool `yaml:"skip_delivery"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel     observability.LogLevel `yaml:"-"`
	LogLevelName string                 `yaml:"log_level"`

	MetricsEnabled bool `yaml:"metrics_enabled"`

	OTelEnabled        bool   `yaml:"otel_enabled"`
	OTelEndpoint       string `yaml:"otel_endpoint"`
	OTelServiceName    string `yaml:"otel_service_name"`
	OTelServiceVersion string `yaml:"otel_service_version"`
	OTelInsecure       bool   `yaml:"otel_insecure"`
}

// LoadConfig loads configuration from an optional YAML file (MIDDEN_CONFIG_FILE),
// then applies environment variable overrides, then validates.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	if path := getEnv("MIDDEN_CONFIG_FILE", ""); path != "" {
		if err := loadConfigFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	cfg.Observability.LogLevel = parseLogLevel(cfg.Observability.LogLevelName)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               "8080",
			ReadTimeout:        15 * time.Second,
			WriteTimeout:       15 * time.Second,
			IdleTimeout:        60 * time.Second,
			ShutdownTimeout:    30 * time.Second,
			HealthPort:         "9090",
			CORSAllowedOrigins: []string{"http://localhost:5173"},
		},
		Database: DatabaseConfig{
			MaxConns:       25,
			MinConns:       5,
			Timeout:        10 * time.Second,
			ConnectRetries: 5,
			ConnectBackoff: 5 * time.Second,
		},
		Auth: AuthConfig{
			TokenTTL:        24 * time.Hour,
			CodeTTL:         10 * time.Minute,
			CleanupSchedule: "@every 10m",
		},
		Mail: MailConfig{
			SMTPHost: "smtp.gmail.com",
			SMTPPort: "587",
		},
		Observability: ObservabilityConfig{
			LogLevelName:       "info",
			MetricsEnabled:     true,
			OTelEnabled:        false,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "midden",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
		},
	}
}

func loadConfigFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) {
	cfg.Server.Host = getEnv("MIDDEN_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnv("MIDDEN_PORT", cfg.Server.Port)
	cfg.Server.HealthPort = getEnv("MIDDEN_HEALTH_PORT", cfg.Server.HealthPort)
	cfg.Server.ReadTimeout = getEnvDuration("MIDDEN_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getEnvDuration("MIDDEN_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = getEnvDuration("MIDDEN_IDLE_TIMEOUT", cfg.Server.IdleTimeout)
	cfg.Server.ShutdownTimeout = getEnvDuration("MIDDEN_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	if origins := getEnv("MIDDEN_CORS_ALLOWED_ORIGINS", ""); origins != "" {
		cfg.Server.CORSAllowedOrigins = splitAndTrim(origins)
	}

	cfg.Database.URL = getEnv("MIDDEN_POSTGRES_URL", cfg.Database.URL)
	cfg.Database.MaxConns = getEnvInt("MIDDEN_POSTGRES_MAX_CONNS", cfg.Database.MaxConns)
	cfg.Database.MinConns = getEnvInt("MIDDEN_POSTGRES_MIN_CONNS", cfg.Database.MinConns)
	cfg.Database.Timeout = getEnvDuration("MIDDEN_POSTGRES_TIMEOUT", cfg.Database.Timeout)
	cfg.Database.ConnectRetries = getEnvInt("MIDDEN_POSTGRES_CONNECT_RETRIES", cfg.Database.ConnectRetries)
	cfg.Database.ConnectBackoff = getEnvDuration("MIDDEN_POSTGRES_CONNECT_BACKOFF", cfg.Database.ConnectBackoff)

	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.TokenTTL = getEnvDuration("MIDDEN_TOKEN_TTL", cfg.Auth.TokenTTL)
	cfg.Auth.CodeTTL = getEnvDuration("MIDDEN_CODE_TTL", cfg.Auth.CodeTTL)
	cfg.Auth.CleanupSchedule = getEnv("MIDDEN_CODE_CLEANUP_SCHEDULE", cfg.Auth.CleanupSchedule)

	cfg.Mail.SMTPHost = getEnv("MIDDEN_SMTP_HOST", cfg.Mail.SMTPHost)
	cfg.Mail.SMTPPort = getEnv("MIDDEN_SMTP_PORT", cfg.Mail.SMTPPort)
	cfg.Mail.SenderAddress = getEnv("EMAIL_USER", cfg.Mail.SenderAddress)
	cfg.Mail.SenderPassword = getEnv("EMAIL_PASS", cfg.Mail.SenderPassword)
	cfg.Mail.SkipDelivery = getEnvBool("SKIP_EMAIL_VERIFICATION", cfg.Mail.SkipDelivery)

	cfg.Observability.LogLevelName = getEnv("MIDDEN_LOG_LEVEL", cfg.Observability.LogLevelName)
	cfg.Observability.MetricsEnabled = getEnvBool("MIDDEN_METRICS_ENABLED", cfg.Observability.MetricsEnabled)
	cfg.Observability.OTelEnabled = getEnvBool("MIDDEN_OTEL_ENABLED", cfg.Observability.OTelEnabled)
	cfg.Observability.OTelEndpoint = getEnv("MIDDEN_OTEL_ENDPOINT", cfg.Observability.OTelEndpoint)
	cfg.Observability.OTelServiceName = getEnv("MIDDEN_OTEL_SERVICE_NAME", cfg.Observability.OTelServiceName)
	cfg.Observability.OTelServiceVersion = getEnv("MIDDEN_OTEL_SERVICE_VERSION", cfg.Observability.OTelServiceVersion)
	cfg.Observability.OTelInsecure = getEnvBool("MIDDEN_OTEL_INSECURE", cfg.Observability.OTelInsecure)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}
	if c.Auth.CodeTTL <= 0 {
		return fmt.Errorf("verification code TTL must be positive")
	}

	if !c.Mail.SkipDelivery && c.Mail.SenderAddress == "" {
		return fmt.Errorf("mail sender address is required unless delivery is skipped")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
