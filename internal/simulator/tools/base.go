// Package tools implements the individual fake command-line and API
// surfaces an attacker can poke at through the MCP tool-call interface.
// Every simulator here fabricates its output; none executes, reads, or
// connects to anything real.
package tools

import (
	"fmt"

	"github.com/zepef/ai-honeypot/internal/honeytoken"
	"github.com/zepef/ai-honeypot/internal/session"
	"github.com/zepef/ai-honeypot/internal/simulator"
	"github.com/zepef/ai-honeypot/internal/store"
)

// tokenDeployer logs a fabricated credential to the store, records it
// against the session's discovered-credentials list, and returns the
// fake value for embedding in the calling simulator's output. Every
// simulator that plants a honey token embeds one of these.
type tokenDeployer struct {
	store *store.Store
}

func (d *tokenDeployer) deploy(sess *session.Context, tokenType honeytoken.Type, context string) (value, credID string) {
	value = honeytoken.Generate(tokenType, sess.ID)
	credID = fmt.Sprintf("%s:%s", tokenType, context)
	_, _ = d.store.LogHoneyToken(&store.HoneyToken{
		SessionID:  sess.ID,
		TokenType:  string(tokenType),
		TokenValue: value,
		Context:    context,
	})
	sess.AddCredential(credID)
	return value, credID
}

func strArg(args map[string]any, key, fallback string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func errResult(format string, a ...any) simulator.Result {
	return simulator.Result{Output: fmt.Sprintf(format, a...), IsError: true}
}
