// Package config loads server settings from the environment.
package config

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	RedisAddr     string
	RedisPassword string
	Env           string
}

// LoadEnv pulls a .env file into the environment for dev and test runs.
// Deployed environments set their variables directly.
func LoadEnv() {
	if os.Getenv("ENV") != "PROD" {
		godotenv.Load()
	}
}

func FromEnv() Config {
	return Config{
		Port:          getenv("PORT", "3003"),
		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PW"),
		Env:           getenv("ENV", "development"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
