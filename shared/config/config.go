// Package config reads service settings from the environment, optionally
// seeded from a local .env file.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Load reads .env files into the process environment. Variables that are
// already set win, and a missing file is not an error.
func Load(files ...string) {
	_ = godotenv.Load(files...)
}

func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func GetIntEnv(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

// GetDurationEnv accepts Go duration strings ("3s", "250ms").
func GetDurationEnv(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

// GetURLEnv returns a base URL without a trailing slash.
func GetURLEnv(key, fallback string) string {
	return strings.TrimSuffix(GetEnv(key, fallback), "/")
}

// Common holds the settings every service reads.
type Common struct {
	ServiceName  string
	Environment  string
	LogLevel     string
	Port         string
	RedisAddr    string
	RedisPass    string
	ShutdownWait time.Duration
}

func LoadCommon(serviceName, defaultPort string) Common {
	return Common{
		ServiceName:  serviceName,
		Environment:  GetEnv("APP_ENV", "production"),
		LogLevel:     GetEnv("LOG_LEVEL", "info"),
		Port:         GetEnv("PORT", defaultPort),
		RedisAddr:    GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass:    GetEnv("REDIS_PASSWORD", ""),
		ShutdownWait: GetDurationEnv("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}
