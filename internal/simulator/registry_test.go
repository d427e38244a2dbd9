package simulator

import (
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/zepef/ai-honeypot/internal/session"
	"github.com/zepef/ai-honeypot/internal/store"
)

type publishedEvent struct {
	eventType string
	payload   any
}

type fakeBus struct {
	mu        sync.Mutex
	published []string
	events    []publishedEvent
}

func (f *fakeBus) Publish(eventType string, payload any) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, eventType)
	f.events = append(f.events, publishedEvent{eventType: eventType, payload: payload})
	return int64(len(f.published))
}

func (f *fakeBus) find(eventType string) (any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e.eventType == eventType {
			return e.payload, true
		}
	}
	return nil, false
}

type echoSimulator struct{ result Result }

func (e echoSimulator) Name() string                  { return "echo" }
func (e echoSimulator) Description() string           { return "echoes a fixed result" }
func (e echoSimulator) InputSchema() json.RawMessage  { return json.RawMessage(`{"type":"object"}`) }
func (e echoSimulator) Simulate(map[string]any, *session.Context) Result { return e.result }

// tokenPlantingSimulator writes a honey token straight to the store during
// Simulate, the way the real tool simulators' tokenDeployer does, so tests
// can exercise the registry's before/after token-count delta.
type tokenPlantingSimulator struct {
	store *store.Store
}

func (s tokenPlantingSimulator) Name() string                 { return "plant" }
func (s tokenPlantingSimulator) Description() string          { return "plants a honey token" }
func (s tokenPlantingSimulator) InputSchema() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }
func (s tokenPlantingSimulator) Simulate(_ map[string]any, sess *session.Context) Result {
	_, _ = s.store.LogHoneyToken(&store.HoneyToken{
		SessionID:  sess.ID,
		TokenType:  "aws_access_key",
		TokenValue: "AKIA...",
		Context:    "test",
	})
	return Result{Output: "planted"}
}

func newTestRegistry(t *testing.T) (*Registry, *session.Manager, *fakeBus, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	bus := &fakeBus{}
	mgr := session.New(st, bus, time.Hour)
	return NewRegistry(st, mgr, bus), mgr, bus, st
}

func TestDispatchUnknownToolReturnsError(t *testing.T) {
	reg, mgr, _, _ := newTestRegistry(t)
	ctx, err := mgr.Create(nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	result := reg.Dispatch("does_not_exist", nil, ctx.ID)
	if !result.IsError {
		t.Fatal("expected an error result for an unregistered tool")
	}
}

func TestDispatchUnknownSessionReturnsError(t *testing.T) {
	reg, _, _, _ := newTestRegistry(t)
	reg.Register(echoSimulator{result: Result{Output: "ok"}})

	result := reg.Dispatch("echo", nil, "no-such-session")
	if !result.IsError {
		t.Fatal("expected an error result for an unknown session")
	}
}

func TestDispatchLogsInteractionAndPublishesEvents(t *testing.T) {
	reg, mgr, bus, _ := newTestRegistry(t)
	reg.Register(echoSimulator{result: Result{Output: "ok", EscalationDelta: 1}})

	ctx, err := mgr.Create(nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	result := reg.Dispatch("echo", map[string]any{"target": "10.0.0.5"}, ctx.ID)
	if result.IsError {
		t.Fatalf("unexpected error result: %+v", result)
	}

	got, err := mgr.Get(ctx.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.EscalationLevel != 1 {
		t.Fatalf("expected escalation level 1 after dispatch, got %d", got.EscalationLevel)
	}

	bus.mu.Lock()
	foundUpdate := false
	for _, e := range bus.published {
		if e == "session_update" {
			foundUpdate = true
		}
	}
	bus.mu.Unlock()
	if !foundUpdate {
		t.Fatalf("expected a session_update event, got %v", bus.published)
	}

	payload, ok := bus.find("interaction")
	if !ok {
		t.Fatal("expected an interaction event")
	}
	fields, ok := payload.(map[string]any)
	if !ok {
		t.Fatalf("expected interaction payload to be a map, got %T", payload)
	}
	for _, key := range []string{"session_id", "tool_name", "raw_args", "escalation_delta", "escalation", "timestamp", "prompt_summary", "injection", "interaction"} {
		if _, ok := fields[key]; !ok {
			t.Fatalf("expected interaction payload to carry %q, got %+v", key, fields)
		}
	}
	if fields["tool_name"] != "echo" {
		t.Fatalf("expected tool_name echo, got %v", fields["tool_name"])
	}
	if fields["escalation_delta"] != 1 {
		t.Fatalf("expected escalation_delta 1, got %v", fields["escalation_delta"])
	}
	args, ok := fields["raw_args"].(map[string]any)
	if !ok || args["target"] != "10.0.0.5" {
		t.Fatalf("expected raw_args to round-trip the call's arguments, got %+v", fields["raw_args"])
	}
	if fields["prompt_summary"] != "echo(target=10.0.0.5)" {
		t.Fatalf("expected prompt_summary to name the salient arg, got %v", fields["prompt_summary"])
	}
	if fields["injection"] != nil {
		t.Fatalf("expected no injection for a plain echo result, got %v", fields["injection"])
	}
}

func TestDispatchPublishesSingleTokenDeployedEventWithDelta(t *testing.T) {
	reg, mgr, bus, st := newTestRegistry(t)
	reg.Register(tokenPlantingSimulator{store: st})

	ctx, err := mgr.Create(nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if result := reg.Dispatch("plant", nil, ctx.ID); result.IsError {
		t.Fatalf("unexpected error result: %+v", result)
	}

	payload, ok := bus.find("token_deployed")
	if !ok {
		t.Fatal("expected a token_deployed event")
	}
	fields, ok := payload.(map[string]any)
	if !ok {
		t.Fatalf("expected token_deployed payload to be a map, got %T", payload)
	}
	if fields["count"] != 1 {
		t.Fatalf("expected a delta of 1 deployed token, got %v", fields["count"])
	}

	seen := 0
	bus.mu.Lock()
	for _, e := range bus.published {
		if e == "token_deployed" {
			seen++
		}
	}
	bus.mu.Unlock()
	if seen != 1 {
		t.Fatalf("expected exactly one token_deployed event, got %d", seen)
	}
}

func TestListToolsIncludesEveryRegisteredSimulator(t *testing.T) {
	reg, _, _, _ := newTestRegistry(t)
	reg.Register(echoSimulator{result: Result{Output: "a"}})

	tools := reg.ListTools()
	if len(tools) != 1 || tools[0].Name != "echo" {
		t.Fatalf("expected one tool named echo, got %+v", tools)
	}
}
