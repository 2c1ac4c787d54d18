package ws

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coding-agent/backend/internal/model"
)

// fakeRunner is an executor.Runner that returns a canned result and counts
// invocations.
type fakeRunner struct {
	mu     sync.Mutex
	calls  int
	result model.ExecutionResult
	delay  time.Duration
}

func (f *fakeRunner) Execute(ctx context.Context, code, language string) model.ExecutionResult {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.result
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestRegistry(cooldown time.Duration) *Registry {
	return NewRegistry(NewRateLimiter(cooldown))
}

// receiveEvent reads one event from the client's send channel.
func receiveEvent(t *testing.T, client *Client, timeout time.Duration) (ServerEvent, bool) {
	t.Helper()
	select {
	case data, ok := <-client.SendChan():
		if !ok {
			return ServerEvent{}, false
		}
		var ev ServerEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("received invalid JSON: %v", err)
		}
		return ev, true
	case <-time.After(timeout):
		return ServerEvent{}, false
	}
}

// collectUntilTerminal drains events until execution_completed or
// execution_error arrives.
func collectUntilTerminal(t *testing.T, client *Client, timeout time.Duration) []ServerEvent {
	t.Helper()
	deadline := time.After(timeout)
	var events []ServerEvent
	for {
		select {
		case data, ok := <-client.SendChan():
			if !ok {
				t.Fatalf("client closed before terminal event, got %d events", len(events))
			}
			var ev ServerEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				t.Fatalf("received invalid JSON: %v", err)
			}
			events = append(events, ev)
			if ev.Event == EventExecutionCompleted || ev.Event == EventExecutionError {
				return events
			}
		case <-deadline:
			t.Fatalf("timeout waiting for terminal event, got %d events", len(events))
		}
	}
}

func strptr(s string) *string { return &s }

func TestRegistryClientManagement(t *testing.T) {
	registry := newTestRegistry(time.Second)
	defer registry.Close()

	client1 := registry.Connect(nil)
	client2 := registry.Connect(nil)

	if registry.ClientCount() != 2 {
		t.Errorf("expected 2 clients, got %d", registry.ClientCount())
	}
	if client1.ID() == client2.ID() {
		t.Errorf("client ids must be unique, both got %s", client1.ID())
	}

	registry.Send(client1.ID(), NewPongEvent())
	ev, ok := receiveEvent(t, client1, 100*time.Millisecond)
	if !ok || ev.Event != EventPong {
		t.Errorf("client1 did not receive pong, got %+v", ev)
	}
	if _, ok := receiveEvent(t, client2, 50*time.Millisecond); ok {
		t.Error("client2 received a message addressed to client1")
	}

	registry.Disconnect(client1.ID())
	if registry.ClientCount() != 1 {
		t.Errorf("expected 1 client after disconnect, got %d", registry.ClientCount())
	}

	// Idempotent: disconnecting again or with an unknown id is a no-op.
	registry.Disconnect(client1.ID())
	registry.Disconnect("no-such-client")
	if registry.ClientCount() != 1 {
		t.Errorf("expected 1 client after repeated disconnects, got %d", registry.ClientCount())
	}
}

func TestSendToUnknownClientIsNoOp(t *testing.T) {
	registry := newTestRegistry(time.Second)
	defer registry.Close()

	// Must not panic or block.
	registry.Send("ghost", NewPongEvent())
}

func TestSendFailureEvictsClientAndClearsRateLimit(t *testing.T) {
	registry := newTestRegistry(time.Hour)
	defer registry.Close()

	client := registry.Connect(nil)
	clientID := client.ID()

	// Use up the rate-limit entry so we can observe its removal.
	if !registry.Limiter().Admit(clientID, time.Now()) {
		t.Fatal("first admit should pass")
	}
	if registry.Limiter().Admit(clientID, time.Now()) {
		t.Fatal("second admit inside cooldown should fail")
	}

	// Nobody drains the send channel; overflowing it must evict the client.
	for i := 0; i < 300; i++ {
		registry.Send(clientID, NewPongEvent())
	}

	if registry.ClientCount() != 0 {
		t.Errorf("expected client evicted after send failure, count=%d", registry.ClientCount())
	}
	if !client.IsClosed() {
		t.Error("expected client closed after send failure")
	}

	// The rate-limit entry must be gone: a fresh client under the same id
	// is admitted immediately.
	if !registry.Limiter().Admit(clientID, time.Now()) {
		t.Error("stale rate-limit entry survived eviction")
	}
}

func TestBroadcastFailureIsolation(t *testing.T) {
	registry := newTestRegistry(time.Second)
	defer registry.Close()

	healthy := registry.Connect(nil)
	broken := registry.Connect(nil)
	broken.Close()

	registry.Broadcast(NewSystemEvent("", "hello"))

	ev, ok := receiveEvent(t, healthy, 100*time.Millisecond)
	if !ok || ev.Event != EventSystem || ev.Message != "hello" {
		t.Errorf("healthy client did not receive broadcast, got %+v", ev)
	}
	if registry.ClientCount() != 1 {
		t.Errorf("expected broken client evicted during broadcast, count=%d", registry.ClientCount())
	}
}

func TestHandleMessagePing(t *testing.T) {
	registry := newTestRegistry(time.Second)
	defer registry.Close()

	controller := NewController(registry, &fakeRunner{}, true)
	handler := NewHandler(registry, controller)

	client := registry.Connect(nil)
	handler.handleMessage(client, &ClientMessage{Event: EventPing})

	ev, ok := receiveEvent(t, client, 100*time.Millisecond)
	if !ok || ev.Event != EventPong {
		t.Errorf("expected pong, got %+v", ev)
	}
	if ev.Timestamp == 0 {
		t.Error("pong missing timestamp")
	}
}

func TestHandleMessageTerminalCommand(t *testing.T) {
	registry := newTestRegistry(time.Second)
	defer registry.Close()

	handler := NewHandler(registry, NewController(registry, &fakeRunner{}, true))
	client := registry.Connect(nil)

	handler.handleMessage(client, &ClientMessage{Event: EventTerminalCommand, Command: "ls"})

	ev, ok := receiveEvent(t, client, 100*time.Millisecond)
	if !ok || ev.Event != EventTerminalOutput || ev.OutputType != OutputInfo {
		t.Errorf("expected info terminal_output, got %+v", ev)
	}
}

func TestHandleMessageUnknownEventIgnored(t *testing.T) {
	registry := newTestRegistry(time.Second)
	defer registry.Close()

	handler := NewHandler(registry, NewController(registry, &fakeRunner{}, true))
	client := registry.Connect(nil)

	handler.handleMessage(client, &ClientMessage{Event: "bogus"})

	if _, ok := receiveEvent(t, client, 50*time.Millisecond); ok {
		t.Error("unknown event must not produce a reply")
	}
}

func TestExecuteRejectsWhenDisabled(t *testing.T) {
	registry := newTestRegistry(time.Second)
	defer registry.Close()

	runner := &fakeRunner{}
	controller := NewController(registry, runner, false)
	client := registry.Connect(nil)

	controller.HandleExecute(&ClientMessage{Event: EventExecuteCodeLive, Code: strptr("print(1)")}, client.ID())

	ev, ok := receiveEvent(t, client, 100*time.Millisecond)
	if !ok || ev.Event != EventExecutionError {
		t.Fatalf("expected execution_error, got %+v", ev)
	}
	if ev.SessionID == "" {
		t.Error("error event missing session_id")
	}
	if runner.callCount() != 0 {
		t.Error("runner must not be invoked when execution is disabled")
	}
}

func TestExecuteRejectsMissingAndEmptyCode(t *testing.T) {
	registry := newTestRegistry(0)
	defer registry.Close()

	runner := &fakeRunner{}
	controller := NewController(registry, runner, true)
	client := registry.Connect(nil)

	cases := []*ClientMessage{
		{Event: EventExecuteCodeLive},                     // no code field
		{Event: EventExecuteCodeLive, Code: strptr("")},   // empty
		{Event: EventExecuteCodeLive, Code: strptr("   ")}, // blank
	}

	for _, msg := range cases {
		controller.HandleExecute(msg, client.ID())
		ev, ok := receiveEvent(t, client, 100*time.Millisecond)
		if !ok || ev.Event != EventExecutionError {
			t.Fatalf("expected execution_error for %+v, got %+v", msg, ev)
		}
	}

	if runner.callCount() != 0 {
		t.Errorf("runner invoked %d times for invalid input", runner.callCount())
	}
}

func TestExecuteRateLimiting(t *testing.T) {
	registry := newTestRegistry(time.Hour)
	defer registry.Close()

	runner := &fakeRunner{result: model.ExecutionResult{Success: true, ExecutionTime: 0.01}}
	controller := NewController(registry, runner, true)
	client := registry.Connect(nil)

	msg := &ClientMessage{Event: EventExecuteCodeLive, Code: strptr("print(1)")}

	controller.HandleExecute(msg, client.ID())
	first := collectUntilTerminal(t, client, time.Second)
	if first[len(first)-1].Event != EventExecutionCompleted {
		t.Fatalf("first request should complete, got %s", first[len(first)-1].Event)
	}

	controller.HandleExecute(msg, client.ID())
	ev, ok := receiveEvent(t, client, 100*time.Millisecond)
	if !ok || ev.Event != EventExecutionError {
		t.Fatalf("second request inside cooldown should be rejected, got %+v", ev)
	}

	if runner.callCount() != 1 {
		t.Errorf("expected exactly 1 execution, got %d", runner.callCount())
	}
}

func TestExecuteEventOrdering(t *testing.T) {
	registry := newTestRegistry(0)
	defer registry.Close()

	runner := &fakeRunner{result: model.ExecutionResult{
		Success:       true,
		Output:        "2\n",
		ExecutionTime: 0.05,
	}}
	controller := NewController(registry, runner, true)
	client := registry.Connect(nil)

	controller.HandleExecute(&ClientMessage{Event: EventExecuteCodeLive, Code: strptr("print(1+1)")}, client.ID())

	events := collectUntilTerminal(t, client, time.Second)

	if events[0].Event != EventExecutionStarted {
		t.Fatalf("first event must be execution_started, got %s", events[0].Event)
	}

	// The event type sequence must be a subsequence of
	// started, progress*, output*, completed.
	order := map[EventType]int{
		EventExecutionStarted:   0,
		EventExecutionProgress:  1,
		EventTerminalOutput:     2,
		EventExecutionCompleted: 3,
	}
	// The final 100% progress event legitimately follows output events, so
	// ordering is checked up to the terminal event with progress allowed to
	// interleave after output only at 100%.
	sawOutput := false
	lastProgress := -1
	for _, ev := range events {
		if _, known := order[ev.Event]; !known {
			t.Fatalf("unexpected event type %s", ev.Event)
		}
		if ev.Event == EventTerminalOutput {
			sawOutput = true
			if ev.OutputType != OutputStdout {
				t.Errorf("expected stdout output, got %s", ev.OutputType)
			}
			if !strings.Contains(ev.Message, "2") {
				t.Errorf("stdout event should contain program output, got %q", ev.Message)
			}
		}
		if ev.Event == EventExecutionProgress {
			if ev.Progress == nil {
				t.Fatal("progress event missing progress value")
			}
			if *ev.Progress < lastProgress {
				t.Errorf("progress went backwards: %d after %d", *ev.Progress, lastProgress)
			}
			if *ev.Progress < 0 || *ev.Progress > 100 {
				t.Errorf("progress out of range: %d", *ev.Progress)
			}
			lastProgress = *ev.Progress
			if sawOutput && *ev.Progress != 100 {
				t.Errorf("only the final 100%% progress may follow output, got %d", *ev.Progress)
			}
		}
	}

	last := events[len(events)-1]
	if last.Event != EventExecutionCompleted {
		t.Fatalf("terminal event must be execution_completed, got %s", last.Event)
	}
	if last.Success == nil || !*last.Success {
		t.Error("completed event should report success")
	}
	if last.ExecutionTime == nil || *last.ExecutionTime != 0.05 {
		t.Error("completed event should carry the runner's execution time")
	}

	// All events of one session share the session id.
	for _, ev := range events {
		if ev.SessionID != events[0].SessionID {
			t.Errorf("session id mismatch: %s vs %s", ev.SessionID, events[0].SessionID)
		}
	}
}

func TestExecuteFailedRunStillCompletes(t *testing.T) {
	registry := newTestRegistry(0)
	defer registry.Close()

	runner := &fakeRunner{result: model.ExecutionResult{
		Success:       false,
		Error:         "code execution timed out after 1 seconds",
		ExecutionTime: 1.0,
	}}
	controller := NewController(registry, runner, true)
	client := registry.Connect(nil)

	controller.HandleExecute(&ClientMessage{Event: EventExecuteCodeLive, Code: strptr("import time; time.sleep(999)")}, client.ID())

	events := collectUntilTerminal(t, client, time.Second)
	last := events[len(events)-1]

	// A timeout is a failed result, not an error path.
	if last.Event != EventExecutionCompleted {
		t.Fatalf("timeout must terminate with execution_completed, got %s", last.Event)
	}
	if last.Success == nil || *last.Success {
		t.Error("timed-out run must report success=false")
	}
	if last.ExecutionTime == nil || *last.ExecutionTime != 1.0 {
		t.Errorf("execution_time should be the timeout, got %v", last.ExecutionTime)
	}

	foundStderr := false
	for _, ev := range events {
		if ev.Event == EventTerminalOutput && ev.OutputType == OutputStderr {
			foundStderr = true
			if !strings.Contains(ev.Message, "timed out") {
				t.Errorf("stderr event should describe the timeout, got %q", ev.Message)
			}
		}
	}
	if !foundStderr {
		t.Error("expected a stderr terminal_output event for the failure")
	}
}

func TestExecuteNilRunnerEmitsError(t *testing.T) {
	registry := newTestRegistry(0)
	defer registry.Close()

	controller := NewController(registry, nil, true)
	client := registry.Connect(nil)

	controller.HandleExecute(&ClientMessage{Event: EventExecuteCodeLive, Code: strptr("print(1)")}, client.ID())

	events := collectUntilTerminal(t, client, time.Second)
	last := events[len(events)-1]
	if last.Event != EventExecutionError {
		t.Fatalf("expected execution_error when no runner is available, got %s", last.Event)
	}
	if events[0].Event != EventExecutionStarted {
		t.Errorf("validation passed, so execution_started should precede the error")
	}
}

func TestClientIndependence(t *testing.T) {
	registry := newTestRegistry(time.Hour)
	defer registry.Close()

	runner := &fakeRunner{result: model.ExecutionResult{Success: true, ExecutionTime: 0.01}}
	controller := NewController(registry, runner, true)

	clientA := registry.Connect(nil)
	clientB := registry.Connect(nil)

	msg := &ClientMessage{Event: EventExecuteCodeLive, Code: strptr("print(1)")}

	// Exhaust A's rate limit.
	controller.HandleExecute(msg, clientA.ID())
	collectUntilTerminal(t, clientA, time.Second)
	controller.HandleExecute(msg, clientA.ID())
	if ev, ok := receiveEvent(t, clientA, 100*time.Millisecond); !ok || ev.Event != EventExecutionError {
		t.Fatalf("client A should be rate limited, got %+v", ev)
	}

	// B is unaffected by A's throttling.
	controller.HandleExecute(msg, clientB.ID())
	events := collectUntilTerminal(t, clientB, time.Second)
	if events[len(events)-1].Event != EventExecutionCompleted {
		t.Errorf("client B should complete normally, got %s", events[len(events)-1].Event)
	}
}

func TestConcurrentSessionsOnOneConnection(t *testing.T) {
	registry := newTestRegistry(0)
	defer registry.Close()

	runner := &fakeRunner{
		result: model.ExecutionResult{Success: true, Output: "ok\n", ExecutionTime: 0.01},
		delay:  20 * time.Millisecond,
	}
	controller := NewController(registry, runner, true)
	client := registry.Connect(nil)

	msg := &ClientMessage{Event: EventExecuteCodeLive, Code: strptr("print('ok')")}
	controller.HandleExecute(msg, client.ID())
	controller.HandleExecute(msg, client.ID())

	// Both sessions must reach a terminal event; per-session ids stay distinct.
	sessions := make(map[string]bool)
	completed := 0
	deadline := time.After(2 * time.Second)
	for completed < 2 {
		select {
		case data := <-client.SendChan():
			var ev ServerEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			sessions[ev.SessionID] = true
			if ev.Event == EventExecutionCompleted {
				completed++
			}
		case <-deadline:
			t.Fatalf("timeout: %d of 2 sessions completed", completed)
		}
	}

	if len(sessions) != 2 {
		t.Errorf("expected 2 distinct session ids, got %d", len(sessions))
	}
	if runner.callCount() != 2 {
		t.Errorf("expected 2 executions, got %d", runner.callCount())
	}
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []model.ExecutionRecord
}

func (f *fakeRecorder) Record(ctx context.Context, rec model.ExecutionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

func TestControllerRecordsCompletedSessions(t *testing.T) {
	registry := newTestRegistry(0)
	defer registry.Close()

	runner := &fakeRunner{result: model.ExecutionResult{Success: true, ExecutionTime: 0.02}}
	controller := NewController(registry, runner, true)
	recorder := &fakeRecorder{}
	controller.SetRecorder(recorder)

	client := registry.Connect(nil)
	controller.HandleExecute(&ClientMessage{Event: EventExecuteCodeLive, Code: strptr("print(1)")}, client.ID())
	events := collectUntilTerminal(t, client, time.Second)

	// Recording happens after the terminal event is queued, so poll briefly.
	var rec model.ExecutionRecord
	deadline := time.Now().Add(time.Second)
	for {
		recorder.mu.Lock()
		n := len(recorder.records)
		if n > 0 {
			rec = recorder.records[0]
		}
		recorder.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected 1 recorded execution, got %d", n)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if rec.ID != events[0].SessionID {
		t.Errorf("record id should be the session id: %s vs %s", rec.ID, events[0].SessionID)
	}
	if rec.ClientID != client.ID() {
		t.Errorf("record should carry the client id")
	}
	if !rec.Success || rec.ExecutionTime != 0.02 {
		t.Errorf("record outcome mismatch: %+v", rec)
	}
}
