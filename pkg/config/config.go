// Package config resolves the ambient process configuration: environment
// variables for process tuning, and the Workspace document that names
// every collaborator service and archive policy.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the environment-driven tuning knobs shared by the
// runner, transfer daemon, and audit daemon entrypoints.
type Config struct {
	LogLevel string

	// Runner
	RunnerLifetime int           // iterations; 0 = infinite
	RunnerSleep    time.Duration // sleep between empty withdraws
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration

	// Transfer daemon
	TransferPeriod    time.Duration
	TransferBatchSize int

	// Audit daemon
	AuditPeriod time.Duration
	AuditBuffer time.Duration
}

// Load reads process configuration from the environment, applying the
// defaults named in spec.md sections 4.2, 4.5, and 4.6.
func Load() *Config {
	return &Config{
		LogLevel:          getEnv("WORKFLOW_LOG_LEVEL", "info"),
		RunnerLifetime:    getEnvAsInt("WORKFLOW_RUNNER_LIFETIME", 0),
		RunnerSleep:       getEnvAsDuration("WORKFLOW_RUNNER_SLEEP", 5*time.Second),
		ConnectTimeout:    getEnvAsDuration("WORKFLOW_CONNECT_TIMEOUT", 5*time.Second),
		ReadTimeout:       getEnvAsDuration("WORKFLOW_READ_TIMEOUT", 30*time.Second),
		TransferPeriod:    getEnvAsDuration("WORKFLOW_TRANSFER_PERIOD", 30*time.Second),
		TransferBatchSize: getEnvAsInt("WORKFLOW_TRANSFER_BATCH_SIZE", 50),
		AuditPeriod:       getEnvAsDuration("WORKFLOW_AUDIT_PERIOD", time.Hour),
		AuditBuffer:       getEnvAsDuration("WORKFLOW_AUDIT_BUFFER", time.Hour),
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultValue
	}
	return d
}
