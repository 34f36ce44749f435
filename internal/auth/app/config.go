package app

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Issuer       string // Issuer claim for tokens and the authenticator app label
	DatabaseFile string // Path to SQLite database file (default: ./authd.db)

	AccessTokenTTL  time.Duration // Access token lifetime (default: 15m)
	RefreshTokenTTL time.Duration // Refresh token lifetime (default: 7 days)

	OTPTTL           time.Duration // One-time code lifetime (default: 10m)
	OTPLength        int           // One-time code digits (default: 6)
	OTPRequestLimit  int           // Max codes per identifier per window (default: 3)
	OTPRequestWindow time.Duration // Rolling window for the request limit (default: 5m)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Expired challenge sweep interval (default: 15m)
}

// LoadConfig reads configuration from the environment, with an optional
// .env file for local development.
func LoadConfig() Config {
	_ = godotenv.Load()

	cfg := Config{
		Issuer:               getEnvOrDefault("AUTHD_ISSUER", "authd"),
		DatabaseFile:         getEnvOrDefault("AUTHD_DATABASE_FILE", "authd.db"),
		AccessTokenTTL:       getEnvDurationOrDefault("AUTHD_ACCESS_TOKEN_TTL", 0),
		RefreshTokenTTL:      getEnvDurationOrDefault("AUTHD_REFRESH_TOKEN_TTL", 0),
		OTPTTL:               getEnvDurationOrDefault("AUTHD_OTP_TTL", 0),
		OTPLength:            getEnvIntOrDefault("AUTHD_OTP_LENGTH", 0),
		OTPRequestLimit:      getEnvIntOrDefault("AUTHD_OTP_REQUEST_LIMIT", 0),
		OTPRequestWindow:     getEnvDurationOrDefault("AUTHD_OTP_REQUEST_WINDOW", 0),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 15*time.Minute),
	}

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
