package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/autovoyage/service-rental/internal/platform/database"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "RENTAL"

// AuthConfig controls token verification and the session cookie.
type AuthConfig struct {
	FirebaseProjectID string
	DevSecret         string
	CookieName        string
	CookieMaxAge      time.Duration
}

// KafkaConfig holds broker settings. An empty broker list disables Kafka.
type KafkaConfig struct {
	Brokers     []string
	GroupPrefix string
}

// Enabled reports whether any brokers are configured.
func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

// RateLimitConfig holds limiter rates in "<n>-<period>" form.
type RateLimitConfig struct {
	Bookings string
	Login    string
}

// ServiceConfig holds all configuration for the rental service.
type ServiceConfig struct {
	Port        string
	AppEnv      string
	LogFile     string
	DBConfig    database.PostgresConfig
	AuthConfig  AuthConfig
	KafkaConfig KafkaConfig
	RedisURL    string
	RateLimits  RateLimitConfig
	CORSOrigins []string
}

// IsProduction reports whether the service runs with production settings.
func (c *ServiceConfig) IsProduction() bool { return c.AppEnv == "production" }

// IsDevelopment reports whether the service runs in development mode.
func (c *ServiceConfig) IsDevelopment() bool { return c.AppEnv == "development" }

// Load reads configuration from an optional .env file and RENTAL_* environment variables.
func Load(envFiles ...string) (*ServiceConfig, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// Missing files are fine; real env vars always win over .env values.
		_ = godotenv.Load(f)
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &ServiceConfig{
		Port:    normalizePort(v.GetString("SERVICE_PORT")),
		AppEnv:  strings.ToLower(v.GetString("APP_ENV")),
		LogFile: v.GetString("LOG_FILE"),
		DBConfig: database.PostgresConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		AuthConfig: AuthConfig{
			FirebaseProjectID: v.GetString("FIREBASE_PROJECT_ID"),
			DevSecret:         v.GetString("AUTH_DEV_SECRET"),
			CookieName:        v.GetString("AUTH_COOKIE_NAME"),
			CookieMaxAge:      v.GetDuration("AUTH_COOKIE_MAX_AGE"),
		},
		KafkaConfig: KafkaConfig{
			Brokers:     splitList(v.GetString("KAFKA_BROKERS")),
			GroupPrefix: v.GetString("KAFKA_GROUP_PREFIX"),
		},
		RedisURL: v.GetString("REDIS_URL"),
		RateLimits: RateLimitConfig{
			Bookings: v.GetString("RATE_LIMIT_BOOKINGS"),
			Login:    v.GetString("RATE_LIMIT_LOGIN"),
		},
		CORSOrigins: splitList(v.GetString("CORS_ORIGINS")),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVICE_PORT", ":5000")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "autovoyage")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("AUTH_COOKIE_NAME", "authToken")
	v.SetDefault("AUTH_COOKIE_MAX_AGE", time.Hour)
	v.SetDefault("KAFKA_GROUP_PREFIX", "autovoyage-")
	v.SetDefault("RATE_LIMIT_BOOKINGS", "20-1m")
	v.SetDefault("RATE_LIMIT_LOGIN", "10-1m")
}

func (c *ServiceConfig) validate() error {
	if c.AuthConfig.FirebaseProjectID == "" && c.AuthConfig.DevSecret == "" {
		return fmt.Errorf("one of %s_FIREBASE_PROJECT_ID or %s_AUTH_DEV_SECRET must be set", envPrefix, envPrefix)
	}
	if c.IsProduction() && c.AuthConfig.FirebaseProjectID == "" {
		return fmt.Errorf("%s_FIREBASE_PROJECT_ID is required in production", envPrefix)
	}
	if c.AuthConfig.CookieMaxAge <= 0 {
		return fmt.Errorf("%s_AUTH_COOKIE_MAX_AGE must be positive", envPrefix)
	}
	return nil
}

func normalizePort(p string) string {
	if p == "" || strings.Contains(p, ":") {
		return p
	}
	return ":" + p
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
