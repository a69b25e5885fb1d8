package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Presence PresenceConfig
	Email    EmailConfig
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
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	BaseURL        string // public origin embedded in merchant QR posters
}

type AuthConfig struct {
	JWTSecret     string
	SessionExpiry time.Duration
	TimingDelayMs int
}

// PresenceConfig carries the TTLs, thresholds, and sweep interval of the
// in-memory recognition engine.
type PresenceConfig struct {
	IdentificationTTL    time.Duration // pending queue entry lifetime
	CooldownWindow       time.Duration // repeat self-identification dedup window
	LockoutThreshold     int           // consecutive failures before lockout
	LockoutDuration      time.Duration
	SecretTokenTTL       time.Duration // resolvable-secret capability tokens
	VerifyTokenTTL       time.Duration // verify-only capability tokens
	SweepInterval        time.Duration
	MaxIdentifiesPerHour int // sliding ceiling per origin
}

type EmailConfig struct {
	Enabled     bool
	AWSRegion   string
	FromAddress string
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
			Name:              getEnv("DB_NAME", "punchcard"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			BaseURL:        getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		},
		Auth: AuthConfig{
			JWTSecret:     jwtSecret,
			SessionExpiry: getEnvAsDuration("SESSION_EXPIRY", 30*24*time.Hour),
			TimingDelayMs: getEnvAsInt("AUTH_TIMING_DELAY_MS", 100),
		},
		Presence: PresenceConfig{
			IdentificationTTL:    getEnvAsDuration("IDENTIFICATION_TTL", 15*time.Minute),
			CooldownWindow:       getEnvAsDuration("COOLDOWN_WINDOW", 15*time.Minute),
			LockoutThreshold:     getEnvAsInt("LOCKOUT_THRESHOLD", 5),
			LockoutDuration:      getEnvAsDuration("LOCKOUT_DURATION", 15*time.Minute),
			SecretTokenTTL:       getEnvAsDuration("SECRET_TOKEN_TTL", 5*time.Minute),
			VerifyTokenTTL:       getEnvAsDuration("VERIFY_TOKEN_TTL", 30*time.Minute),
			SweepInterval:        getEnvAsDuration("SWEEP_INTERVAL", 2*time.Minute),
			MaxIdentifiesPerHour: getEnvAsInt("MAX_IDENTIFIES_PER_HOUR", 12),
		},
		Email: EmailConfig{
			Enabled:     getEnvAsBool("EMAIL_ENABLED", false),
			AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	if err := validatePresence(&cfg.Presence); err != nil {
		return nil, err
	}

	if cfg.Email.Enabled && cfg.Email.FromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when EMAIL_ENABLED is set")
	}

	return cfg, nil
}

// validateJWTSecret enforces minimum security standards for the JWT secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32 // 256 bits
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

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

// validatePresence rejects configurations that would break eviction: every
// TTL must be positive, and the sweep interval must not exceed the shortest
// TTL in use.
func validatePresence(p *PresenceConfig) error {
	ttls := map[string]time.Duration{
		"IDENTIFICATION_TTL": p.IdentificationTTL,
		"COOLDOWN_WINDOW":    p.CooldownWindow,
		"LOCKOUT_DURATION":   p.LockoutDuration,
		"SECRET_TOKEN_TTL":   p.SecretTokenTTL,
		"VERIFY_TOKEN_TTL":   p.VerifyTokenTTL,
	}

	shortest := time.Duration(0)
	for name, ttl := range ttls {
		if ttl <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
		if shortest == 0 || ttl < shortest {
			shortest = ttl
		}
	}

	if p.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive")
	}
	if p.SweepInterval > shortest {
		return fmt.Errorf("SWEEP_INTERVAL (%s) must not exceed the shortest TTL (%s)",
			p.SweepInterval, shortest)
	}

	if p.LockoutThreshold < 1 {
		return fmt.Errorf("LOCKOUT_THRESHOLD must be at least 1")
	}
	if p.MaxIdentifiesPerHour < 1 {
		return fmt.Errorf("MAX_IDENTIFIES_PER_HOUR must be at least 1")
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

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		originsStr := getEnv("ALLOWED_ORIGINS", "")
		if originsStr == "" {
			return []string{}
		}
		origins := strings.Split(originsStr, ",")
		for i, origin := range origins {
			origins[i] = strings.TrimSpace(origin)
		}
		return origins
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
		"http://127.0.0.1:5173",
	}
}
