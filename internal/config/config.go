// Package config provides configuration loading for nemsgen.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Prefix is prepended to every environment variable name.
const Prefix = "NEMSGEN_"

// Config holds all configuration for the nemsgen command.
type Config struct {
	// Output configuration
	Backend        string // "local", "memory", "s3" or "minio"
	OutputDir      string
	Overwrite      bool
	IncludeVersion bool
	AtmNamelist    bool

	// S3/MinIO configuration
	S3Endpoint        string
	S3Bucket          string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3UseSSL          bool
	S3Prefix          string
	PresignExpiry     time.Duration

	// Tracing
	TracingEnabled    bool
	TracingEndpoint   string
	TracingSampleRate float64

	// Metrics
	MetricsFile string

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables with sensible
// defaults. The given env files are loaded first; variables already set in
// the environment take precedence over them.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return nil, fmt.Errorf("load env files: %w", err)
		}
	}

	return &Config{
		// Output
		Backend:        getEnv("BACKEND", "local"),
		OutputDir:      getEnv("OUTPUT_DIR", "."),
		Overwrite:      getBool("OVERWRITE", false),
		IncludeVersion: getBool("INCLUDE_VERSION", false),
		AtmNamelist:    getBool("ATM_NAMELIST", true),

		// S3
		S3Endpoint:        getEnv("S3_ENDPOINT", ""),
		S3Bucket:          getEnv("S3_BUCKET", ""),
		S3Region:          getEnv("S3_REGION", "us-east-1"),
		S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		S3UseSSL:          getBool("S3_USE_SSL", true),
		S3Prefix:          getEnv("S3_PREFIX", ""),
		PresignExpiry:     getDuration("PRESIGN_EXPIRY", 0),

		// Tracing
		TracingEnabled:    getBool("TRACING_ENABLED", false),
		TracingEndpoint:   getEnv("OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getFloat("TRACING_SAMPLE_RATE", 1.0),

		// Metrics
		MetricsFile: getEnv("METRICS_FILE", ""),

		// Logging
		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}, nil
}

// Helper functions for environment variable parsing

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(Prefix + key); val != "" {
		return val
	}
	return defaultVal
}

func getFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(Prefix + key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getBool(key string, defaultVal bool) bool {
	if val := os.Getenv(Prefix + key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(Prefix + key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
