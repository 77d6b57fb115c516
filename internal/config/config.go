package config

import (
	"fmt"
	"net/netip"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	pkghttp "github.com/BradenHooton/stylebook/pkg/http"
)

type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	AI        AIConfig
	Notify    NotifyConfig
	Jobs      JobsConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	AutoMigrate       bool
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	// TrustedProxyCIDRs are the ranges whose X-Forwarded-For is honoured.
	TrustedProxyCIDRs []string
}

type AuthConfig struct {
	JWTSecret         string
	AccessTokenExpiry time.Duration
	AdminCacheTTL     time.Duration // 0 disables the authorization cache
	LoginMaxBackoff   time.Duration
	AdminEmail        string
	AdminPassword     string
}

type RateLimitConfig struct {
	BookingPerMinute    int
	BookingPerHour      int
	AIPerMinute         int
	AIPerHour           int
	MaxKeys             int
	PublicReadPerMinute int
	RedisURL            string // shared window store when set
}

type AIConfig struct {
	MaxConcurrent int
	APIKey        string
	BaseURL       string
	Model         string
	MaxImageBytes int
	Timeout       time.Duration
}

// Enabled reports whether haircut suggestions can be served.
func (c AIConfig) Enabled() bool {
	return c.APIKey != ""
}

type NotifyConfig struct {
	AWSRegion   string
	FromAddress string
	ToAddresses []string
}

// Enabled reports whether booking notifications are sent through SES.
func (c NotifyConfig) Enabled() bool {
	return c.AWSRegion != "" && c.FromAddress != "" && len(c.ToAddresses) > 0
}

type JobsConfig struct {
	StalePendingAfter    time.Duration
	StalePendingInterval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "stylebook"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
			AutoMigrate:       getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Server: ServerConfig{
			Port:              getEnv("PORT", "8080"),
			Env:               env,
			LogLevel:          getEnv("LOG_LEVEL", "info"),
			AllowedOrigins:    parseAllowedOrigins(env),
			ReadTimeout:       getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:      getEnvAsDuration("SERVER_WRITE_TIMEOUT", 45*time.Second),
			IdleTimeout:       getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			TrustedProxyCIDRs: getEnvAsList("TRUSTED_PROXY_CIDRS", slices.Clone(pkghttp.DefaultTrustedProxies)),
		},
		Auth: AuthConfig{
			JWTSecret:         jwtSecret,
			AccessTokenExpiry: getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 12*time.Hour),
			AdminCacheTTL:     maxDuration(0, getEnvAsDuration("ADMIN_CACHE_TTL", 180*time.Second)),
			LoginMaxBackoff:   getEnvAsDuration("LOGIN_MAX_BACKOFF", 300*time.Second),
			AdminEmail:        strings.ToLower(strings.TrimSpace(getEnv("ADMIN_EMAIL", ""))),
			AdminPassword:     getEnv("ADMIN_PASSWORD", ""),
		},
		RateLimit: RateLimitConfig{
			BookingPerMinute:    getEnvAsInt("BOOKING_MAX_PER_MINUTE", 12),
			BookingPerHour:      getEnvAsInt("BOOKING_MAX_PER_HOUR", 120),
			AIPerMinute:         getEnvAsInt("AI_MAX_PER_MINUTE", 4),
			AIPerHour:           getEnvAsInt("AI_MAX_PER_HOUR", 30),
			MaxKeys:             getEnvAsInt("RATE_LIMIT_MAX_KEYS", 20000),
			PublicReadPerMinute: getEnvAsInt("PUBLIC_READ_PER_MINUTE", 120),
			RedisURL:            getEnv("REDIS_URL", ""),
		},
		AI: AIConfig{
			MaxConcurrent: maxInt(1, getEnvAsInt("AI_MAX_CONCURRENT", 2)),
			APIKey:        strings.TrimSpace(getEnv("OPENAI_API_KEY", "")),
			BaseURL:       getEnv("OPENAI_BASE_URL", ""),
			Model:         getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			MaxImageBytes: maxInt(256_000, getEnvAsInt("AI_MAX_IMAGE_BYTES", 3*1024*1024)),
			Timeout:       getEnvAsDuration("AI_TIMEOUT", 30*time.Second),
		},
		Notify: NotifyConfig{
			AWSRegion:   getEnv("AWS_REGION", ""),
			FromAddress: getEnv("NOTIFY_FROM", ""),
			ToAddresses: getEnvAsList("NOTIFY_TO", nil),
		},
		Jobs: JobsConfig{
			StalePendingAfter:    getEnvAsDuration("STALE_PENDING_AFTER", 30*time.Minute),
			StalePendingInterval: getEnvAsDuration("STALE_PENDING_INTERVAL", 10*time.Minute),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	// Validate JWT secret strength
	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	if err := validateCIDRs(cfg.Server.TrustedProxyCIDRs); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	// Minimum length based on environment
	minLength := 16 // Development minimum
	if env == "production" {
		minLength = 32 // Production requires stronger secret (256 bits)
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	// Check against common weak secrets
	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

// validateCIDRs rejects malformed TRUSTED_PROXY_CIDRS entries at startup.
func validateCIDRs(cidrs []string) error {
	for _, c := range cidrs {
		if _, err := netip.ParsePrefix(c); err != nil {
			return fmt.Errorf("TRUSTED_PROXY_CIDRS contains an invalid range %q: %w", c, err)
		}
	}
	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

// getEnvAsList splits a comma-separated value, dropping empty items.
func getEnvAsList(key string, defaultVal []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultVal
	}
	items := make([]string, 0)
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		return getEnvAsList("ALLOWED_ORIGINS", []string{}) // Default to no origins in production
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://localhost:5173", // Vite default
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
		"http://127.0.0.1:5173",
	}
}
