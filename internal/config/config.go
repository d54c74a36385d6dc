package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Config holds process-level configuration sourced from the environment.
type Config struct {
	Port string
	Env  string

	// Credentials for the streaming platform token endpoint
	StreamAPIKey    string
	StreamAPISecret string
}

// Load reads configuration from environment variables. In development a
// .env file is loaded if present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:            getEnv("PORT", DefaultPort),
		Env:             getEnv("ENV", "development"),
		StreamAPIKey:    os.Getenv("STREAM_API_KEY"),
		StreamAPISecret: os.Getenv("STREAM_API_SECRET"),
	}
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
