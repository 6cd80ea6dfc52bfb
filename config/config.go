package config

import (
	"os"
	"strings"
)

// Config is the signald server configuration, read from the environment.
type Config struct {
	Port           string
	Environment    string
	AllowedOrigins []string
	STUNServers    []string
	Redis          RedisConfig
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Load reads the server configuration from environment variables.
func Load() *Config {
	originsStr := getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
	origins := strings.Split(originsStr, ",")

	stunStr := getEnv("STUN_SERVERS", "")
	var stun []string
	if stunStr != "" {
		stun = strings.Split(stunStr, ",")
	}

	return &Config{
		Port:           getEnv("PORT", "8080"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		AllowedOrigins: origins,
		STUNServers:    stun,
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       0,
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
