package executor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/coding-agent/backend/internal/model"
)

const truncationMarker = "\n... (output truncated)"

// Subprocess executes Python code in a child process with a timeout and
// bounded output capture.
type Subprocess struct {
	pythonBin string
	timeout   time.Duration
	maxOutput int
}

// SubprocessOption configures a Subprocess runner.
type SubprocessOption func(*Subprocess)

// WithTimeout sets the maximum execution duration. Default: 10s.
func WithTimeout(d time.Duration) SubprocessOption {
	return func(s *Subprocess) { s.timeout = d }
}

// WithMaxOutput sets the maximum captured size in bytes for each of stdout
// and stderr. Output beyond the limit is truncated. Default: 10000.
func WithMaxOutput(n int) SubprocessOption {
	return func(s *Subprocess) { s.maxOutput = n }
}

// NewSubprocess creates a Subprocess runner that executes code via the given
// Python binary (e.g. "python3").
func NewSubprocess(pythonBin string, opts ...SubprocessOption) *Subprocess {
	s := &Subprocess{
		pythonBin: pythonBin,
		timeout:   10 * time.Second,
		maxOutput: 10000,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// compile-time check
var _ Runner = (*Subprocess)(nil)

// Execute writes the code to a temporary script, runs it, and returns the
// normalized result. The language tag is accepted for interface symmetry;
// only Python is supported and anything else is rejected up front.
func (s *Subprocess) Execute(ctx context.Context, code, language string) model.ExecutionResult {
	if language != "" && language != model.DefaultLanguage {
		return model.ExecutionResult{
			Success: false,
			Error:   fmt.Sprintf("unsupported language: %s", language),
		}
	}

	tmpFile, err := os.CreateTemp("", "coding-agent-*.py")
	if err != nil {
		return model.ExecutionResult{
			Success: false,
			Error:   fmt.Sprintf("failed to create script file: %v", err),
		}
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.WriteString(code); err != nil {
		tmpFile.Close()
		return model.ExecutionResult{
			Success: false,
			Error:   fmt.Sprintf("failed to write script file: %v", err),
		}
	}
	tmpFile.Close()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.pythonBin, tmpFile.Name())
	var stdout, stderr boundedBuffer
	stdout.max = s.maxOutput
	stderr.max = s.maxOutput
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start).Seconds()

	if ctx.Err() == context.DeadlineExceeded {
		return model.ExecutionResult{
			Success:       false,
			Output:        "",
			Error:         fmt.Sprintf("code execution timed out after %g seconds", s.timeout.Seconds()),
			ExecutionTime: s.timeout.Seconds(),
		}
	}

	result := model.ExecutionResult{
		Success:       runErr == nil,
		Output:        stdout.String(),
		Error:         stderr.String(),
		ExecutionTime: elapsed,
	}

	if runErr != nil && result.Error == "" {
		// Launch failures (missing interpreter, permission) produce no stderr.
		result.Error = fmt.Sprintf("failed to execute code: %v", runErr)
	}

	return result
}

// boundedBuffer captures at most max bytes and appends a truncation marker
// once the limit is hit. Writes past the limit are accepted and discarded so
// the child process never blocks on a full pipe.
type boundedBuffer struct {
	buf       []byte
	max       int
	truncated bool
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	if len(b.buf) < b.max {
		remaining := b.max - len(b.buf)
		if len(p) > remaining {
			b.buf = append(b.buf, p[:remaining]...)
			b.truncated = true
		} else {
			b.buf = append(b.buf, p...)
		}
	} else if len(p) > 0 {
		b.truncated = true
	}
	return len(p), nil
}

func (b *boundedBuffer) String() string {
	if b.truncated {
		return string(b.buf) + truncationMarker
	}
	return string(b.buf)
}
