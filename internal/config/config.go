package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Session  SessionConfig
	Security SecurityConfig
	Geo      GeoConfig
	Alerts   AlertConfig
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
	RunMigrations     bool
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

// SessionConfig selects the backend holding the session roster
type SessionConfig struct {
	Backend       string // "memory" or "redis"
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Namespace     string
}

type SecurityConfig struct {
	TabSecret              string
	MaxFailedAttempts      int
	LockoutDuration        time.Duration
	RateLimitWindow        time.Duration
	RateLimitMaxAttempts   int
	AttemptHistorySize     int
	SessionTimeout         time.Duration
	IdleTimeout            time.Duration
	CountdownInterval      time.Duration
	SyncInterval           time.Duration
	CountBackendFailures   bool
	CleanupInterval        time.Duration
	ConsoleEvictionAfter   time.Duration
	LoginRequestsPerMinute int
	FailureDelay           time.Duration
	FailureJitter          time.Duration
	CookieSecure           bool
	CookieDomain           string
}

type GeoConfig struct {
	Enabled          bool
	IPLookupTimeout  time.Duration
	GeoLookupTimeout time.Duration
}

// LookupBudget is the longest a session geolocation can take: every provider
// of both tiers running into its timeout
func (c GeoConfig) LookupBudget() time.Duration {
	if !c.Enabled {
		return 0
	}
	return 3*c.IPLookupTimeout + 3*c.GeoLookupTimeout
}

type AlertConfig struct {
	AWSRegion   string
	FromAddress string
	Recipients  []string
}

// Enabled reports whether lockout alerts should be sent
func (c AlertConfig) Enabled() bool {
	return c.FromAddress != "" && len(c.Recipients) > 0
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	tabSecret := getEnv("TAB_SECRET", "")
	if tabSecret == "" {
		return nil, fmt.Errorf("TAB_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "adminguard"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 10)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 2)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
			RunMigrations:     getEnvAsBool("RUN_MIGRATIONS", true),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			TrustedProxies: getEnvAsList("TRUSTED_PROXIES"),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Session: SessionConfig{
			Backend:       strings.ToLower(getEnv("SESSION_BACKEND", "memory")),
			RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvAsInt("REDIS_DB", 0),
			Namespace:     getEnv("REDIS_NAMESPACE", "adminguard"),
		},
		Security: SecurityConfig{
			TabSecret:              tabSecret,
			MaxFailedAttempts:      getEnvAsInt("LOCKOUT_MAX_FAILED_ATTEMPTS", 3),
			LockoutDuration:        getEnvAsDuration("LOCKOUT_DURATION", 15*time.Minute),
			RateLimitWindow:        getEnvAsDuration("RATE_LIMIT_WINDOW", 5*time.Minute),
			RateLimitMaxAttempts:   getEnvAsInt("RATE_LIMIT_MAX_ATTEMPTS", 5),
			AttemptHistorySize:     getEnvAsInt("ATTEMPT_HISTORY_SIZE", 20),
			SessionTimeout:         getEnvAsDuration("SESSION_TIMEOUT", 30*time.Minute),
			IdleTimeout:            getEnvAsDuration("IDLE_TIMEOUT", 10*time.Minute),
			CountdownInterval:      getEnvAsDuration("COUNTDOWN_INTERVAL", 1*time.Second),
			SyncInterval:           getEnvAsDuration("SESSION_SYNC_INTERVAL", 5*time.Second),
			CountBackendFailures:   getEnvAsBool("LOCKOUT_COUNT_BACKEND_FAILURES", true),
			CleanupInterval:        getEnvAsDuration("CLEANUP_INTERVAL", 1*time.Minute),
			ConsoleEvictionAfter:   getEnvAsDuration("CONSOLE_EVICTION_AFTER", 30*time.Minute),
			LoginRequestsPerMinute: getEnvAsInt("LOGIN_REQUESTS_PER_MINUTE", 20),
			FailureDelay:           getEnvAsDuration("LOGIN_FAILURE_DELAY", 250*time.Millisecond),
			FailureJitter:          getEnvAsDuration("LOGIN_FAILURE_JITTER", 100*time.Millisecond),
			CookieSecure:           env == "production",
			CookieDomain:           getEnv("COOKIE_DOMAIN", ""),
		},
		Geo: GeoConfig{
			Enabled:          getEnvAsBool("GEO_ENABLED", true),
			IPLookupTimeout:  getEnvAsDuration("GEO_IP_LOOKUP_TIMEOUT", 3*time.Second),
			GeoLookupTimeout: getEnvAsDuration("GEO_LOCATION_TIMEOUT", 4*time.Second),
		},
		Alerts: AlertConfig{
			AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
			FromAddress: getEnv("ALERT_FROM_ADDRESS", ""),
			Recipients:  getEnvAsList("ALERT_RECIPIENTS"),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if cfg.Session.Backend != "memory" && cfg.Session.Backend != "redis" {
		return nil, fmt.Errorf("SESSION_BACKEND must be memory or redis (got %q)", cfg.Session.Backend)
	}

	if cfg.Security.IdleTimeout > cfg.Security.SessionTimeout {
		return nil, fmt.Errorf("IDLE_TIMEOUT (%s) must not exceed SESSION_TIMEOUT (%s)",
			cfg.Security.IdleTimeout, cfg.Security.SessionTimeout)
	}

	for name, interval := range map[string]time.Duration{
		"COUNTDOWN_INTERVAL":    cfg.Security.CountdownInterval,
		"SESSION_SYNC_INTERVAL": cfg.Security.SyncInterval,
		"CLEANUP_INTERVAL":      cfg.Security.CleanupInterval,
	} {
		if interval <= 0 {
			return nil, fmt.Errorf("%s must be positive (got %s)", name, interval)
		}
	}

	if err := validateTabSecret(tabSecret, env); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateTabSecret enforces minimum strength for the tab cookie signing key
func validateTabSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("TAB_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("TAB_SECRET cannot be a common weak value")
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

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info
func (c *ServerConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
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
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
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

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		return getEnvAsList("ALLOWED_ORIGINS")
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
