// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration for the backend.
type Config struct {
	Port           string
	AllowedOrigins []string
	DatabasePath   string

	// AI (Gemini)
	GeminiAPIKey      string
	GeminiModel       string
	GeminiCodeModel   string
	GeminiMaxTokens   int
	GeminiTemperature float64

	// Code execution
	CodeExecutionEnabled bool
	CodeExecutionTimeout time.Duration
	MaxOutputLength      int
	PythonBin            string

	// Streaming
	ExecutionCooldown time.Duration
}

// Load reads configuration from environment variables, applying defaults.
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5000"), ","),
		DatabasePath:   getEnv("DATABASE_PATH", "data/executions.db"),

		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiCodeModel:   getEnv("GEMINI_CODE_MODEL", "gemini-1.5-pro"),
		GeminiMaxTokens:   getEnvInt("GEMINI_MAX_TOKENS", 500),
		GeminiTemperature: getEnvFloat("GEMINI_TEMPERATURE", 0.7),

		CodeExecutionEnabled: getEnvBool("CODE_EXECUTION_ENABLED", true),
		CodeExecutionTimeout: time.Duration(getEnvInt("CODE_EXECUTION_TIMEOUT", 10)) * time.Second,
		MaxOutputLength:      getEnvInt("MAX_OUTPUT_LENGTH", 10000),
		PythonBin:            getEnv("PYTHON_BIN", "python3"),

		ExecutionCooldown: time.Duration(getEnvInt("EXECUTION_COOLDOWN_SECONDS", 2)) * time.Second,
	}
}

// Validate checks configuration bounds and returns a list of issues.
// An empty list means the configuration is usable.
func (c *Config) Validate() []string {
	var issues []string

	if c.GeminiAPIKey == "" {
		issues = append(issues, "GEMINI_API_KEY is missing; AI endpoints will be unavailable")
	}
	if c.GeminiMaxTokens < 100 || c.GeminiMaxTokens > 4000 {
		issues = append(issues, "GEMINI_MAX_TOKENS should be between 100 and 4000")
	}
	if c.GeminiTemperature < 0 || c.GeminiTemperature > 2 {
		issues = append(issues, "GEMINI_TEMPERATURE should be between 0 and 2")
	}
	if c.CodeExecutionTimeout < time.Second || c.CodeExecutionTimeout > 60*time.Second {
		issues = append(issues, fmt.Sprintf("CODE_EXECUTION_TIMEOUT should be between 1 and 60 seconds, got %s", c.CodeExecutionTimeout))
	}

	return issues
}

// AIAvailable reports whether the AI collaborator can be constructed.
func (c *Config) AIAvailable() bool {
	return c.GeminiAPIKey != ""
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.EqualFold(value, "true")
	}
	return defaultValue
}
