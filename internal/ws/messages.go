// Package ws provides the real-time code-execution streaming core: WebSocket
// connection handling, per-client rate limiting, and the staged execution
// event pipeline.
package ws

import "time"

// EventType names a WebSocket event, inbound or outbound.
type EventType string

const (
	// Client -> Server event types
	EventExecuteCodeLive EventType = "execute_code_live"
	EventPing            EventType = "ping"
	EventTerminalCommand EventType = "terminal_command"

	// Server -> Client event types
	EventSystem             EventType = "system"
	EventExecutionStarted   EventType = "execution_started"
	EventExecutionProgress  EventType = "execution_progress"
	EventTerminalOutput     EventType = "terminal_output"
	EventExecutionCompleted EventType = "execution_completed"
	EventExecutionError     EventType = "execution_error"
	EventPong               EventType = "pong"
)

// Output stream tags for terminal_output events.
const (
	OutputStdout = "stdout"
	OutputStderr = "stderr"
	OutputInfo   = "info"
)

// ClientMessage represents an inbound WebSocket message.
// Code is a pointer so a missing field can be told apart from an empty one.
type ClientMessage struct {
	Event    EventType `json:"event"`
	Code     *string   `json:"code,omitempty"`
	Language string    `json:"language,omitempty"`
	Command  string    `json:"command,omitempty"`
}

// ServerEvent represents an outbound WebSocket event. Every event carries a
// timestamp in floating-point seconds; the remaining fields are populated per
// event type by the constructors below.
type ServerEvent struct {
	Event         EventType `json:"event"`
	SessionID     string    `json:"session_id,omitempty"`
	Message       string    `json:"message,omitempty"`
	Error         string    `json:"error,omitempty"`
	Language      string    `json:"language,omitempty"`
	Progress      *int      `json:"progress,omitempty"`
	OutputType    string    `json:"type,omitempty"`
	Success       *bool     `json:"success,omitempty"`
	ExecutionTime *float64  `json:"execution_time,omitempty"`
	Timestamp     float64   `json:"timestamp"`
}

// nowUnix returns the current time as floating-point Unix seconds.
func nowUnix() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}

// NewSystemEvent builds the connection welcome event. The session_id of a
// system event is the connection's own client id.
func NewSystemEvent(clientID, message string) ServerEvent {
	return ServerEvent{
		Event:     EventSystem,
		SessionID: clientID,
		Message:   message,
		Timestamp: nowUnix(),
	}
}

// NewStartedEvent builds an execution_started event.
func NewStartedEvent(sessionID, language, message string) ServerEvent {
	return ServerEvent{
		Event:     EventExecutionStarted,
		SessionID: sessionID,
		Language:  language,
		Message:   message,
		Timestamp: nowUnix(),
	}
}

// NewProgressEvent builds an execution_progress event. Progress is a
// percentage in [0,100].
func NewProgressEvent(sessionID, message string, progress int) ServerEvent {
	return ServerEvent{
		Event:     EventExecutionProgress,
		SessionID: sessionID,
		Message:   message,
		Progress:  &progress,
		Timestamp: nowUnix(),
	}
}

// NewOutputEvent builds a terminal_output event tagged stdout, stderr or info.
func NewOutputEvent(sessionID, outputType, message string) ServerEvent {
	return ServerEvent{
		Event:      EventTerminalOutput,
		SessionID:  sessionID,
		OutputType: outputType,
		Message:    message,
		Timestamp:  nowUnix(),
	}
}

// NewCompletedEvent builds the terminal execution_completed event.
func NewCompletedEvent(sessionID string, success bool, executionTime float64, message string) ServerEvent {
	return ServerEvent{
		Event:         EventExecutionCompleted,
		SessionID:     sessionID,
		Success:       &success,
		ExecutionTime: &executionTime,
		Message:       message,
		Timestamp:     nowUnix(),
	}
}

// NewErrorEvent builds the terminal execution_error event.
func NewErrorEvent(sessionID, errMsg string) ServerEvent {
	return ServerEvent{
		Event:     EventExecutionError,
		SessionID: sessionID,
		Error:     errMsg,
		Timestamp: nowUnix(),
	}
}

// NewPongEvent builds the reply to a ping.
func NewPongEvent() ServerEvent {
	return ServerEvent{
		Event:     EventPong,
		Timestamp: nowUnix(),
	}
}
