package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DatabasePath     string
	SCFServiceURL    string
	RemoteBackendURL string

	DefaultBackend  string
	DefaultEncoding string
	DefaultScheme   string
	DefaultShots    int

	MaxIterations  int
	Tolerance      float64
	BackendTimeout int // seconds, 0 disables the per-call deadline

	LogLevel string
	Port     int
	DevMode  bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnvAsInt("GO_PORT", 8001),
		DevMode:          getEnvAsBool("DEV_MODE", false),
		DatabasePath:     getEnv("DATABASE_PATH", "./data/runs.db"),
		SCFServiceURL:    getEnv("SCF_SERVICE_URL", "http://localhost:8000"), // classical integral solver
		RemoteBackendURL: getEnv("REMOTE_BACKEND_URL", ""),
		DefaultBackend:   getEnv("DEFAULT_BACKEND", "statevector"),
		DefaultEncoding:  getEnv("DEFAULT_ENCODING", "jordan-wigner"),
		DefaultScheme:    getEnv("DEFAULT_SCHEME", "disjoint"),
		DefaultShots:     getEnvAsInt("DEFAULT_SHOTS", 1024),
		MaxIterations:    getEnvAsInt("MAX_ITERATIONS", 20),
		Tolerance:        getEnvAsFloat("TOLERANCE", 1e-6),
		BackendTimeout:   getEnvAsInt("BACKEND_TIMEOUT_SECONDS", 0),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.SCFServiceURL == "" {
		return fmt.Errorf("SCF_SERVICE_URL is required")
	}
	if c.DefaultBackend == "remote" && c.RemoteBackendURL == "" {
		return fmt.Errorf("REMOTE_BACKEND_URL is required when DEFAULT_BACKEND is remote")
	}
	if c.DefaultShots <= 0 {
		return fmt.Errorf("DEFAULT_SHOTS must be positive, got %d", c.DefaultShots)
	}
	if c.Tolerance <= 0 {
		return fmt.Errorf("TOLERANCE must be positive, got %g", c.Tolerance)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
