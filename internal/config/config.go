// Package config loads process configuration from the environment, with a
// .env file picked up in development.
package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port int

	// DatabaseURL enables the Postgres room store when set.
	DatabaseURL string

	// RedisAddr enables the Redis game-state store when set.
	RedisAddr string
}

func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("[Load] no .env file, using environment as-is")
	}

	return Config{
		Port:        getEnvInt("PORT", 8080),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisAddr:   getEnv("REDIS_ADDR", ""),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("[getEnvInt] invalid %s=%q, using %d", key, value, fallback)
		return fallback
	}
	return parsed
}
