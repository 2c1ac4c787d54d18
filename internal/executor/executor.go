// Package executor runs untrusted code snippets and normalizes their outcome.
package executor

import (
	"context"

	"github.com/coding-agent/backend/internal/model"
)

// Runner executes a code snippet and reports the outcome.
// Run outcomes (including timeouts and non-zero exits) are carried in the
// ExecutionResult, not in a Go error; implementations never fail for a run
// that merely produced bad code.
type Runner interface {
	Execute(ctx context.Context, code, language string) model.ExecutionResult
}
