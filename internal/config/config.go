package config

import (
	"os"
	"strconv"
)

// Config holds application configuration, loaded from environment variables
type Config struct {
	Port      string
	DBPath    string
	JWTSecret string

	// Admin credentials for the login endpoint
	AdminUser     string
	AdminPassword string

	// Detection engine tunables
	Trees      int
	SampleSize int
	Seed       int64
}

// Load reads configuration from the environment, with defaults
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", ":8080"),
		DBPath:        getEnv("DB_PATH", "./data/flights.db"),
		JWTSecret:     getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		AdminUser:     getEnv("ADMIN_USER", "admin"),
		AdminPassword: getEnv("ADMIN_PASSWORD", "admin"),
		Trees:         getEnvInt("MODEL_TREES", 100),
		SampleSize:    getEnvInt("MODEL_SAMPLE_SIZE", 256),
		Seed:          int64(getEnvInt("MODEL_SEED", 42)),
	}
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
