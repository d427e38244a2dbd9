// Package simulator defines the tool-simulator contract and the registry
// that dispatches MCP tool calls into fabricated output.
package simulator

import (
	"encoding/json"

	"github.com/zepef/ai-honeypot/internal/session"
)

// Result is what a Simulator produces for one tool call.
type Result struct {
	Output          string
	IsError         bool
	EscalationDelta int

	// TokensDeployed names any fabricated credentials this call planted
	// into the session's output, as "type:context" identifiers, so the
	// registry can announce them on the event bus without re-deriving
	// what happened inside Simulate.
	TokensDeployed []string
}

// Simulator fabricates output for one MCP tool, given the caller's
// arguments and the live session it's running against. Implementations
// must never touch a real filesystem, network, or subprocess — every byte
// returned is invented.
type Simulator interface {
	Name() string
	Description() string
	InputSchema() json.RawMessage
	Simulate(args map[string]any, sess *session.Context) Result
}
