// Package config reads process configuration from the environment.
package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Config — everything the server needs from the environment.
type Config struct {
	Port string // APP_PORT
	DSN  string // DB_DSN: sqlite file path (default), or a postgres URL/keyword DSN
}

func get(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// Load reads an optional .env file, then the environment. A missing .env is
// not an error.
func Load() *Config {
	_ = godotenv.Load()
	return &Config{
		Port: get("APP_PORT", "8080"),
		DSN:  get("DB_DSN", "weekend-overtime.sqlite"),
	}
}
