// Package config loads runtime settings from the environment, after reading
// configs/.env when present.
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

const devJWTSecret = "default_super_secret_key"

// DefaultCORSOrigins are the dev frontend origins used when CORS_ORIGINS is
// unset or lists no usable origin.
func DefaultCORSOrigins() []string {
	return []string{"http://localhost:5173", "http://127.0.0.1:5173"}
}

type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	Port           string
	GinMode        string
	JWTSecret      string
	TokenTTL       time.Duration
	CORSOrigins    []string
	LogLevel       slog.Level
	MetricsEnabled bool
	SecureCookies  bool
}

// DSN is the PostgreSQL connection URL.
func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// Release reports whether gin runs in release mode.
func (c *Config) Release() bool {
	return c.GinMode == "release"
}

// Load reads configs/.env (a missing file is fine) and then the environment.
// It panics in release mode when JWT_SECRET is unset.
func Load() *Config {
	if err := godotenv.Load("configs/.env"); err != nil {
		slog.Debug("no configs/.env file loaded", "error", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() *Config {
	cfg := &Config{
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", "postgres"),
		DBName:         getEnv("DB_NAME", "postgres"),
		DBSSLMode:      getEnv("DB_SSLMODE", "disable"),
		Port:           getEnv("PORT", "8080"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		TokenTTL:       getDuration("TOKEN_TTL", 7*24*time.Hour),
		CORSOrigins:    splitList(os.Getenv("CORS_ORIGINS")),
		LogLevel:       parseLevel(getEnv("LOG_LEVEL", "info")),
		MetricsEnabled: getBool("METRICS_ENABLED", true),
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = DefaultCORSOrigins()
	}
	cfg.SecureCookies = getBool("SECURE_COOKIES", cfg.Release())

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		if cfg.Release() {
			panic("FATAL: JWT_SECRET environment variable is required in production mode")
		}
		cfg.JWTSecret = devJWTSecret
	}
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func getDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
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

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
