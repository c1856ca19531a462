package config

import (
	"log"
	"os"
	"strconv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// External market-data collaborator (data-sync service)
	DataServiceURL string

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	ListenAddr    string
	MetricsAddr   string

	// Simulation costs (proportional to gross order value)
	FeeRate      float64
	SlippageRate float64
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		DataServiceURL: getEnv("DATA_SERVICE_URL", "http://localhost:8787"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/simtrade.db"),
		ListenAddr:    getEnv("LISTEN_ADDR", ":8788"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9091"),

		FeeRate:      getEnvFloat("FEE_RATE", 0.0005),
		SlippageRate: getEnvFloat("SLIPPAGE_RATE", 0.0005),
	}
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		log.Printf("[config] ignoring invalid %s value: %q", key, v)
		return fallback
	}
	return f
}
