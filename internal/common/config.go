package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Output  OutputConfig
	Auditor AuditorConfig
	Batch   BatchConfig
	Report  ReportConfig
}

// OutputConfig holds output-tree configuration
type OutputConfig struct {
	BaseDir string
}

// AuditorConfig holds configuration for the external document auditor
type AuditorConfig struct {
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	Timeout     time.Duration
	Broker      string
}

// BatchConfig holds orchestrator tuning knobs
type BatchConfig struct {
	MaxConcurrency int
	MaxAttempts    int
	RetryBaseDelay time.Duration
}

// ReportConfig holds report-generation configuration
type ReportConfig struct {
	WeightsFile string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Output: OutputConfig{
			BaseDir: getEnv("OUTPUT_DIRECTORY", "./output"),
		},
		Auditor: AuditorConfig{
			Model:       getEnv("AUDIT_MODEL", "gemini-3-pro-preview"),
			APIKey:      getEnv("AUDIT_API_KEY", ""),
			BaseURL:     getEnv("AUDIT_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai"),
			Temperature: getEnvAsFloat32("AUDIT_TEMPERATURE", 0.1),
			Timeout:     getEnvAsDuration("AUDIT_TIMEOUT", 120*time.Second),
			Broker:      getEnv("AUDIT_BROKER_NAME", ""),
		},
		Batch: BatchConfig{
			MaxConcurrency: getEnvAsInt("BATCH_MAX_CONCURRENCY", 20),
			MaxAttempts:    getEnvAsInt("BATCH_MAX_ATTEMPTS", 3),
			RetryBaseDelay: getEnvAsDuration("BATCH_RETRY_BASE_DELAY", 2*time.Second),
		},
		Report: ReportConfig{
			WeightsFile: getEnv("WEIGHTS_FILE", ""),
		},
	}
}

// Helper functions for environment variable parsing
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

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// ValidateForAudit checks the fields required to call the external auditor.
func (c *Config) ValidateForAudit() error {
	if c.Auditor.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "AUDIT_API_KEY is required", ErrInvalidInput)
	}
	if c.Batch.MaxConcurrency <= 0 {
		return NewAppError("CONFIG_ERROR", "BATCH_MAX_CONCURRENCY must be positive", ErrInvalidInput)
	}
	return nil
}
