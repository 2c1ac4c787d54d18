package model

import "time"

// DefaultLanguage is assumed when an execution request carries no language tag.
const DefaultLanguage = "python"

// ExecutionResult is the outcome of running a piece of code.
type ExecutionResult struct {
	Success       bool    `json:"success"`
	Output        string  `json:"output"`
	Error         string  `json:"error"`
	ExecutionTime float64 `json:"execution_time"`
	FromCache     bool    `json:"from_cache"`
}

// ExecutionRecord is a persisted entry in the execution history.
type ExecutionRecord struct {
	ID            string    `json:"id"`
	ClientID      string    `json:"clientId,omitempty"`
	Language      string    `json:"language"`
	Success       bool      `json:"success"`
	ExecutionTime float64   `json:"executionTime"`
	Error         string    `json:"error,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ExecuteRequest represents a synchronous code execution request. The cache
// fields are accepted for wire compatibility; the subprocess runner does not
// cache.
type ExecuteRequest struct {
	Code          string `json:"code"`
	Language      string `json:"language"`
	UseCache      bool   `json:"use_cache"`
	CacheTTLHours *int   `json:"cache_ttl_hours"`
}
