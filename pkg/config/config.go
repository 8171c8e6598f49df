package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/platinummonkey/barbell/pkg/observability"
	"gopkg.in/yaml.v3"
)

// Storage backends
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Auth          AuthConfig          `yaml:"auth"`
	Status        StatusConfig        `yaml:"status"`
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
}

// DatabaseConfig selects and tunes the persistence backend
type DatabaseConfig struct {
	StorageType     string        `yaml:"storage_type"`
	PostgresURL     string        `yaml:"postgres_url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
	// SeedFile is a YAML document loaded into memory storage at startup
	SeedFile string `yaml:"seed_file"`
}

// RedisConfig points at the session store shared with the authentication provider
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// AuthConfig configures session resolution and the provider proxy
type AuthConfig struct {
	SessionCookieName string `yaml:"session_cookie_name"`
	// ProviderURL is the upstream authentication provider served under /api/auth/
	ProviderURL string `yaml:"provider_url"`

	OIDCIssuer   string `yaml:"oidc_issuer"`
	OIDCClientID string `yaml:"oidc_client_id"`

	UserCacheSize int           `yaml:"user_cache_size"`
	UserCacheTTL  time.Duration `yaml:"user_cache_ttl"`

	// ProviderRateLimit caps requests per client to /api/auth/ per window; 0 disables it
	ProviderRateLimit  int           `yaml:"provider_rate_limit"`
	ProviderRateWindow time.Duration `yaml:"provider_rate_window"`
}

// StatusConfig configures the competitor status invariant monitor
type StatusConfig struct {
	MonitorEnabled  bool   `yaml:"monitor_enabled"`
	MonitorSchedule string `yaml:"monitor_schedule"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`

	// OpenTelemetry
	OTelEnabled        bool   `yaml:"otel_enabled"`
	OTelEndpoint       string `yaml:"otel_endpoint"`
	OTelServiceName    string `yaml:"otel_service_name"`
	OTelServiceVersion string `yaml:"otel_service_version"`
	OTelInsecure       bool   `yaml:"otel_insecure"`
}

// Level returns the parsed log level
func (o ObservabilityConfig) Level() observability.LogLevel {
	return parseLogLevel(o.LogLevel)
}

// OTel returns the tracing configuration in the shape observability.InitOTel expects
func (o ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
	}
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			HealthPort:      "9090",
		},
		Database: DatabaseConfig{
			StorageType:     StoragePostgres,
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			ConnectTimeout:  10 * time.Second,
			AutoMigrate:     true,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
		},
		Auth: AuthConfig{
			SessionCookieName:  "barbell.session_token",
			UserCacheSize:      1024,
			UserCacheTTL:       5 * time.Minute,
			ProviderRateLimit:  60,
			ProviderRateWindow: time.Minute,
		},
		Status: StatusConfig{
			MonitorEnabled:  true,
			MonitorSchedule: "@every 15m",
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "barbell",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
		},
	}
}

// LoadConfig loads configuration with precedence defaults < YAML file < environment.
// A .env file (BARBELL_ENV_FILE, default ".env") is loaded first when present;
// it never overrides variables already set in the process environment.
func LoadConfig() (*Config, error) {
	if err := loadDotEnv(getEnv("BARBELL_ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	cfg := Default()

	if path := getEnv("BARBELL_CONFIG_FILE", ""); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// loadFile overlays a YAML document onto the current values; keys absent from
// the file keep their defaults.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Host = getEnv("BARBELL_HOST", c.Server.Host)
	c.Server.Port = getEnv("BARBELL_PORT", c.Server.Port)
	c.Server.HealthPort = getEnv("BARBELL_HEALTH_PORT", c.Server.HealthPort)
	c.Server.ReadTimeout = getEnvDuration("BARBELL_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvDuration("BARBELL_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getEnvDuration("BARBELL_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.ShutdownTimeout = getEnvDuration("BARBELL_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)

	c.Database.StorageType = strings.ToLower(getEnv("BARBELL_STORAGE_TYPE", c.Database.StorageType))
	c.Database.PostgresURL = getEnv("BARBELL_POSTGRES_URL", c.Database.PostgresURL)
	c.Database.MaxOpenConns = getEnvInt("BARBELL_POSTGRES_MAX_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = getEnvInt("BARBELL_POSTGRES_IDLE_CONNS", c.Database.MaxIdleConns)
	c.Database.ConnMaxLifetime = getEnvDuration("BARBELL_POSTGRES_CONN_LIFETIME", c.Database.ConnMaxLifetime)
	c.Database.ConnectTimeout = getEnvDuration("BARBELL_POSTGRES_TIMEOUT", c.Database.ConnectTimeout)
	c.Database.AutoMigrate = getEnvBool("BARBELL_AUTO_MIGRATE", c.Database.AutoMigrate)
	c.Database.SeedFile = getEnv("BARBELL_SEED_FILE", c.Database.SeedFile)

	c.Redis.Addr = getEnv("BARBELL_REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("BARBELL_REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvInt("BARBELL_REDIS_DB", c.Redis.DB)
	c.Redis.PoolSize = getEnvInt("BARBELL_REDIS_POOL_SIZE", c.Redis.PoolSize)

	c.Auth.SessionCookieName = getEnv("BARBELL_SESSION_COOKIE", c.Auth.SessionCookieName)
	c.Auth.ProviderURL = getEnv("BARBELL_AUTH_PROVIDER_URL", c.Auth.ProviderURL)
	c.Auth.OIDCIssuer = getEnv("BARBELL_OIDC_ISSUER", c.Auth.OIDCIssuer)
	c.Auth.OIDCClientID = getEnv("BARBELL_OIDC_CLIENT_ID", c.Auth.OIDCClientID)
	c.Auth.UserCacheSize = getEnvInt("BARBELL_USER_CACHE_SIZE", c.Auth.UserCacheSize)
	c.Auth.UserCacheTTL = getEnvDuration("BARBELL_USER_CACHE_TTL", c.Auth.UserCacheTTL)
	c.Auth.ProviderRateLimit = getEnvInt("BARBELL_PROVIDER_RATE_LIMIT", c.Auth.ProviderRateLimit)
	c.Auth.ProviderRateWindow = getEnvDuration("BARBELL_PROVIDER_RATE_WINDOW", c.Auth.ProviderRateWindow)

	c.Status.MonitorEnabled = getEnvBool("BARBELL_STATUS_MONITOR_ENABLED", c.Status.MonitorEnabled)
	c.Status.MonitorSchedule = getEnv("BARBELL_STATUS_MONITOR_SCHEDULE", c.Status.MonitorSchedule)

	c.Observability.LogLevel = getEnv("BARBELL_LOG_LEVEL", c.Observability.LogLevel)
	c.Observability.MetricsEnabled = getEnvBool("BARBELL_METRICS_ENABLED", c.Observability.MetricsEnabled)
	c.Observability.OTelEnabled = getEnvBool("BARBELL_OTEL_ENABLED", c.Observability.OTelEnabled)
	c.Observability.OTelEndpoint = getEnv("BARBELL_OTEL_ENDPOINT", c.Observability.OTelEndpoint)
	c.Observability.OTelServiceName = getEnv("BARBELL_OTEL_SERVICE_NAME", c.Observability.OTelServiceName)
	c.Observability.OTelServiceVersion = getEnv("BARBELL_OTEL_SERVICE_VERSION", c.Observability.OTelServiceVersion)
	c.Observability.OTelInsecure = getEnvBool("BARBELL_OTEL_INSECURE", c.Observability.OTelInsecure)
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

	switch c.Database.StorageType {
	case StorageMemory:
	case StoragePostgres:
		if c.Database.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for postgres storage")
		}
		if c.Database.SeedFile != "" {
			return fmt.Errorf("seed file is only supported with memory storage")
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be memory or postgres)", c.Database.StorageType)
	}

	// sessions come from redis, bearer tokens from OIDC; at least one must exist
	if c.Redis.Addr == "" && c.Auth.OIDCIssuer == "" {
		return fmt.Errorf("either a redis session store or an OIDC issuer is required")
	}
	if c.Auth.OIDCIssuer != "" && c.Auth.OIDCClientID == "" {
		return fmt.Errorf("OIDC client id is required when an OIDC issuer is configured")
	}
	if c.Auth.SessionCookieName == "" {
		return fmt.Errorf("session cookie name is required")
	}
	if c.Auth.UserCacheSize <= 0 {
		return fmt.Errorf("user cache size must be positive")
	}
	if c.Auth.ProviderRateLimit < 0 {
		return fmt.Errorf("provider rate limit must not be negative")
	}
	if c.Auth.ProviderRateLimit > 0 && c.Auth.ProviderRateWindow <= 0 {
		return fmt.Errorf("provider rate window must be positive when rate limiting is enabled")
	}

	if c.Status.MonitorEnabled && c.Status.MonitorSchedule == "" {
		return fmt.Errorf("status monitor schedule is required when the monitor is enabled")
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
