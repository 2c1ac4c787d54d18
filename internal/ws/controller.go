package ws

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/coding-agent/backend/internal/executor"
	"github.com/coding-agent/backend/internal/model"
)

// Recorder persists completed execution sessions. Recording is best-effort;
// a failure never affects the event stream.
type Recorder interface {
	Record(ctx context.Context, rec model.ExecutionRecord) error
}

// Controller orchestrates one live execution request: validation, the
// started notification, and the staged streaming pipeline. It holds no
// cross-session state; every session is addressed only by
// (client id, session id) through the registry.
type Controller struct {
	registry *Registry
	runner   executor.Runner
	enabled  bool
	recorder Recorder
}

// NewController creates a Controller. runner may be nil when code execution
// could not be constructed; every request then fails with a terminal error.
func NewController(registry *Registry, runner executor.Runner, enabled bool) *Controller {
	return &Controller{
		registry: registry,
		runner:   runner,
		enabled:  enabled,
	}
}

// SetRecorder attaches an execution-history recorder.
func (c *Controller) SetRecorder(rec Recorder) {
	c.recorder = rec
}

// HandleExecute validates an execute_code_live message and, if accepted,
// emits execution_started and spawns the streaming pipeline. Control returns
// to the caller immediately so the connection's read loop is never blocked
// by a running execution. Every rejection emits a single terminal
// execution_error event and discards the session.
func (c *Controller) HandleExecute(msg *ClientMessage, clientID string) {
	sessionID := uuid.NewString()

	if !c.enabled {
		c.registry.Send(clientID, NewErrorEvent(sessionID, model.ErrExecutionDisabled.Error()))
		return
	}

	if !c.registry.Limiter().Admit(clientID, time.Now()) {
		c.registry.Send(clientID, NewErrorEvent(sessionID, model.ErrRateLimited.Error()))
		return
	}

	if msg.Code == nil {
		c.registry.Send(clientID, NewErrorEvent(sessionID, model.ErrCodeRequired.Error()))
		return
	}

	code := strings.TrimSpace(*msg.Code)
	if code == "" {
		c.registry.Send(clientID, NewErrorEvent(sessionID, model.ErrCodeEmpty.Error()))
		return
	}

	language := msg.Language
	if language == "" {
		language = model.DefaultLanguage
	}

	log.Printf("Live code execution started: client=%s session=%s", clientID, sessionID)

	c.registry.Send(clientID, NewStartedEvent(sessionID, language,
		fmt.Sprintf("Starting %s execution...", strings.ToUpper(language))))

	go c.stream(clientID, sessionID, code, language)
}

// stream runs the staged pipeline for one accepted session: advisory
// progress, the runner call, output streaming, and the terminal event.
func (c *Controller) stream(clientID, sessionID, code, language string) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("Execution pipeline panic: session=%s: %v", sessionID, r)
			c.registry.Send(clientID, NewErrorEvent(sessionID,
				fmt.Sprintf("unexpected error after %.2fs: %v", time.Since(start).Seconds(), r)))
		}
	}()

	if c.runner == nil {
		c.registry.Send(clientID, NewErrorEvent(sessionID, "code execution service unavailable"))
		return
	}

	c.registry.Send(clientID, NewProgressEvent(sessionID, "Validating code...", 10))
	c.registry.Send(clientID, NewProgressEvent(sessionID, "Running security checks...", 25))
	c.registry.Send(clientID, NewProgressEvent(sessionID, "Executing code...", 50))

	result := c.runner.Execute(context.Background(), code, language)

	if result.Output != "" {
		c.registry.Send(clientID, NewOutputEvent(sessionID, OutputStdout, result.Output))
	}
	if result.Error != "" {
		c.registry.Send(clientID, NewOutputEvent(sessionID, OutputStderr, result.Error))
	}

	c.registry.Send(clientID, NewProgressEvent(sessionID, "Execution finished", 100))

	message := "Execution completed"
	if !result.Success {
		message = "Execution failed"
	}
	c.registry.Send(clientID, NewCompletedEvent(sessionID, result.Success, result.ExecutionTime, message))

	c.record(sessionID, clientID, language, result)
}

// record persists the session outcome when a recorder is attached.
func (c *Controller) record(sessionID, clientID, language string, result model.ExecutionResult) {
	if c.recorder == nil || result.FromCache {
		return
	}

	rec := model.ExecutionRecord{
		ID:            sessionID,
		ClientID:      clientID,
		Language:      language,
		Success:       result.Success,
		ExecutionTime: result.ExecutionTime,
		CreatedAt:     time.Now(),
	}
	if !result.Success {
		rec.Error = result.Error
	}

	if err := c.recorder.Record(context.Background(), rec); err != nil {
		log.Printf("Failed to record execution %s: %v", sessionID, err)
	}
}
