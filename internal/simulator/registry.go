package simulator

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/zepef/ai-honeypot/internal/engagement"
	"github.com/zepef/ai-honeypot/internal/session"
	"github.com/zepef/ai-honeypot/internal/store"
)

// publisher is the subset of eventbus.Bus the registry needs, declared
// locally so this package doesn't import eventbus directly.
type publisher interface {
	Publish(eventType string, payload any) int64
}

// sessions is the subset of session.Manager the registry needs.
type sessions interface {
	Get(id string) (*session.Context, error)
	Persist(id string) error
}

// Registry holds every registered Simulator and owns the full tool-call
// transaction: lookup, simulate, escalate, enrich, log, publish, persist.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Simulator

	store    *store.Store
	sessions sessions
	bus      publisher
}

// NewRegistry creates an empty Registry wired to its collaborators.
func NewRegistry(st *store.Store, sessions sessions, bus publisher) *Registry {
	return &Registry{
		tools:    make(map[string]Simulator),
		store:    st,
		sessions: sessions,
		bus:      bus,
	}
}

// Register adds a Simulator, keyed by its Name(). A later call with the
// same name overwrites the earlier registration.
func (r *Registry) Register(s Simulator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[s.Name()] = s
}

// ListTools returns every registered tool in mcp.Tool wire-schema form,
// suitable for an MCP tools/list response.
func (r *Registry) ListTools() []mcp.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]mcp.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, mcp.NewToolWithRawSchema(t.Name(), t.Description(), t.InputSchema()))
	}
	return out
}

func (r *Registry) lookup(name string) (Simulator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// salientArgKeys lists the argument keys worth surfacing in a prompt
// summary, in priority order, since a tool call's single most interesting
// argument is usually one of these.
var salientArgKeys = []string{"target", "host", "path", "command", "url", "query", "key", "id"}

// buildPromptSummary renders a short human-readable gloss of a tool call:
// the tool name plus whichever salient argument is present.
func buildPromptSummary(toolName string, args map[string]any) string {
	for _, key := range salientArgKeys {
		if v, ok := args[key]; ok {
			return fmt.Sprintf("%s(%s=%v)", toolName, key, v)
		}
	}
	if len(args) == 0 {
		return toolName
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	return fmt.Sprintf("%s(%s)", toolName, strings.Join(keys, ","))
}

// diffInjection recovers the breadcrumb or transient-error text that
// engagement.EnrichOutput spliced into raw, given the enriched result. It
// mirrors EnrichOutput's two splice shapes: a transient error prepended as
// "error\n\nraw", or a breadcrumb appended as "raw\n\n# breadcrumb". Returns
// "" if enriched carries no injection (the common case).
func diffInjection(raw, enriched string) string {
	if enriched == raw {
		return ""
	}
	if strings.HasSuffix(enriched, raw) {
		prefix := strings.TrimSuffix(enriched, raw)
		return strings.TrimSuffix(prefix, "\n\n")
	}
	if strings.HasPrefix(enriched, raw) {
		suffix := strings.TrimPrefix(enriched, raw)
		suffix = strings.TrimPrefix(suffix, "\n\n")
		return strings.TrimPrefix(suffix, "# ")
	}
	return ""
}

// Dispatch runs one MCP tools/call transaction against the named tool:
//  1. resolve the simulator (error result if unknown)
//  2. resolve the live session (error result if missing/invalid)
//  3. snapshot the session's token count before simulating
//  4. run the simulation
//  5. snapshot the token count again, to detect a newly deployed token
//  6. raise the session's escalation floor to whatever the discoveries
//     so far now justify, if higher than its current level
//  7. enrich the output with a breadcrumb or transient error
//  8. log the interaction
//  9. diff the enriched output against the raw output to recover whatever
//     breadcrumb/transient-error text was injected, if any
//  10. build a short human prompt summary from the tool name and args
//  11. publish an "interaction" event carrying the raw args, escalation
//      delta, current escalation, timestamp, prompt summary, and injection
//  12. publish a single "token_deployed" event if the token count rose
//  13. apply the simulator's own escalation delta and, when it raised the
//      level, publish a "session_update" event
//  14. persist the session
func (r *Registry) Dispatch(toolName string, args map[string]any, sessionID string) Result {
	tool, ok := r.lookup(toolName)
	if !ok {
		return Result{Output: fmt.Sprintf("unknown tool: %s", toolName), IsError: true}
	}

	sess, err := r.sessions.Get(sessionID)
	if err != nil || sess == nil {
		return Result{Output: fmt.Sprintf("unknown or expired session: %s", sessionID), IsError: true}
	}

	tokensBefore, _ := r.store.TokenCount(sessionID)

	result := tool.Simulate(args, sess)

	tokensAfter, _ := r.store.TokenCount(sessionID)

	if floor := engagement.ComputeEscalation(sess); floor > sess.EscalationLevel {
		sess.EscalationLevel = floor
	}
	rawOutput := result.Output
	result.Output = engagement.EnrichOutput(result.Output, sess)

	loggedTool := toolName
	params, _ := json.Marshal(args)
	response, _ := json.Marshal(map[string]any{"output": result.Output, "is_error": result.IsError})
	interactionID, err := r.store.LogInteraction(&store.Interaction{
		SessionID:       sessionID,
		Method:          "tools/call",
		ToolName:        &loggedTool,
		Params:          params,
		Response:        response,
		EscalationDelta: result.EscalationDelta,
	})

	if err != nil {
		log.Printf("dispatch %s: log interaction for session %s: %v", toolName, sessionID, err)
	} else {
		var injection *string
		if diff := diffInjection(rawOutput, result.Output); diff != "" {
			injection = &diff
		}

		r.bus.Publish("interaction", map[string]any{
			"session_id":       sessionID,
			"tool_name":        toolName,
			"raw_args":         args,
			"escalation_delta": result.EscalationDelta,
			"escalation":       sess.EscalationLevel,
			"timestamp":        time.Now().UTC().Format(time.RFC3339),
			"prompt_summary":   buildPromptSummary(toolName, args),
			"injection":        injection,
			"interaction":      interactionID,
		})
	}

	if tokensAfter > tokensBefore {
		r.bus.Publish("token_deployed", map[string]any{
			"session_id": sessionID,
			"count":      tokensAfter - tokensBefore,
			"tokens":     result.TokensDeployed,
		})
	}

	if result.EscalationDelta > 0 {
		sess.Escalate(result.EscalationDelta)
		r.bus.Publish("session_update", map[string]any{
			"session_id": sessionID,
			"escalation": sess.EscalationLevel,
		})
	}

	if err := r.sessions.Persist(sessionID); err != nil {
		log.Printf("dispatch %s: persist session %s: %v", toolName, sessionID, err)
	}

	return result
}
