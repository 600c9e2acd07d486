// Package config loads application configuration from environment variables,
// with optional .env file support.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Zitadel  ZitadelConfig
	Email    EmailConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	BaseURL            string // public URL used in verification links
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*"
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AuthConfig selects the identity backend and session settings.
type AuthConfig struct {
	Provider          string // "local" or "zitadel"
	SessionCookieName string
	SessionTTLHours   int
	CacheTTLMinutes   int // Redis session cache TTL; 0 disables the cache
	CookieDomain      string
	CookieSecure      bool
}

// ZitadelConfig holds the external identity provider settings.
type ZitadelConfig struct {
	Issuer          string
	ServiceUserJSON string // machine key JSON, inline
}

// EmailConfig holds SMTP settings; an empty host selects the console sender.
type EmailConfig struct {
	FromAddress string
	FromName    string
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
}

// DSN returns the PostgreSQL connection string. DATABASE_URL wins when set.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			BaseURL:            getEnv("BASE_URL", "http://localhost:8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "nexiom"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			Provider:          getEnv("IDENTITY_PROVIDER", "local"),
			SessionCookieName: getEnv("SESSION_COOKIE_NAME", "app.session_token"),
			SessionTTLHours:   getEnvInt("SESSION_TTL_HOURS", 24),
			CacheTTLMinutes:   getEnvInt("SESSION_CACHE_TTL_MINUTES", 5),
			CookieDomain:      getEnv("SESSION_COOKIE_DOMAIN", ""),
			CookieSecure:      getEnvBool("SESSION_COOKIE_SECURE", false),
		},
		Zitadel: ZitadelConfig{
			Issuer:          getEnv("ZITADEL_ISSUER", ""),
			ServiceUserJSON: getEnv("ZITADEL_SERVICE_USER_JSON", ""),
		},
		Email: EmailConfig{
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", "noreply@example.com"),
			FromName:    getEnv("EMAIL_FROM_NAME", "Nexiom"),
			SMTPHost:    getEnv("SMTP_HOST", ""),
			SMTPPort:    getEnvInt("SMTP_PORT", 587),
			SMTPUser:    getEnv("SMTP_USER", ""),
			SMTPPass:    getEnv("SMTP_PASS", ""),
		},
	}

	if cfg.Auth.Provider == "zitadel" {
		if cfg.Zitadel.Issuer == "" || cfg.Zitadel.ServiceUserJSON == "" {
			return nil, fmt.Errorf("zitadel provider requires ZITADEL_ISSUER and ZITADEL_SERVICE_USER_JSON")
		}
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes":
			return true
		case "0", "false", "no":
			return false
		}
	}
	return fallback
}
