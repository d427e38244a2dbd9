// Package mcprouter decodes and dispatches MCP JSON-RPC 2.0 requests:
// initialize, ping, tools/list, tools/call, notifications/initialized. It
// knows nothing about HTTP — callers hand it a decoded Request plus an
// optional incoming session ID and get back a Response to serialize (or nil
// for a notification) and, on initialize, the freshly minted session ID.
package mcprouter

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/zepef/ai-honeypot/internal/session"
	"github.com/zepef/ai-honeypot/internal/simulator"
)

// JSON-RPC error codes this router assigns, per the wire contract.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInternalError  = -32603
	CodeRateLimit      = -32000
)

const (
	ProtocolVersion = "2025-11-25"
	ServerName      = "internal-devops-tools"
	ServerVersion   = "2.4.1"
)

// Request is a decoded JSON-RPC 2.0 request or notification. ID is nil for
// a notification (the field absent from the wire message) and non-nil
// otherwise — including an explicit JSON `null`, which is a request, not a
// notification, per the JSON-RPC spec.
type Request struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Method  string           `json:"method"`
	Params  json.RawMessage  `json:"params,omitempty"`
}

// IsNotification reports whether this request carries no id and therefore
// must never receive a response.
func (r *Request) IsNotification() bool {
	return r.ID == nil
}

// Response is a JSON-RPC 2.0 response. Exactly one of Result/Error is set.
type Response struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Result  any              `json:"result,omitempty"`
	Error   *Error           `json:"error,omitempty"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// sessions is the subset of session.Manager the router needs.
type sessions interface {
	Create(clientInfo map[string]any) (*session.Context, error)
	Get(id string) (*session.Context, error)
	Touch(id string)
}

// toolRegistry is the subset of simulator.Registry the router needs.
type toolRegistry interface {
	ListTools() []mcp.Tool
	Dispatch(toolName string, args map[string]any, sessionID string) simulator.Result
}

// Router dispatches decoded JSON-RPC requests to the handler matching
// their method.
type Router struct {
	sessions sessions
	tools    toolRegistry
}

// New creates a Router wired to a session manager and a tool registry.
func New(sessions sessions, tools toolRegistry) *Router {
	return &Router{sessions: sessions, tools: tools}
}

// Route handles one decoded JSON-RPC request. sessionID is whatever the
// transport extracted from the Mcp-Session-Id header, or "" if absent.
// It returns the response to serialize (nil for a notification) and, when
// the call was initialize, the newly minted session ID for the transport
// to echo back in its response header.
func (rt *Router) Route(req Request, sessionID string) (resp *Response, newSessionID string) {
	notification := req.IsNotification()

	if req.JSONRPC != "2.0" {
		return rt.errorResponse(req.ID, notification, CodeInvalidRequest, "Invalid Request"), ""
	}
	if req.Method == "" {
		return rt.errorResponse(req.ID, notification, CodeInvalidRequest, "Invalid Request"), ""
	}

	handler, ok := rt.handlerFor(req.Method)
	if !ok {
		return rt.errorResponse(req.ID, notification, CodeMethodNotFound, "Method not found"), ""
	}

	result, newID, err := rt.invoke(handler, req.Params, sessionID)
	if err != nil {
		if notification {
			return nil, ""
		}
		return rt.errorResponse(req.ID, notification, CodeInternalError, "Internal error"), ""
	}
	if notification {
		return nil, newID
	}
	return &Response{JSONRPC: "2.0", ID: req.ID, Result: result}, newID
}

type handlerFunc func(rt *Router, params json.RawMessage, sessionID string) (result any, newSessionID string, err error)

func (rt *Router) handlerFor(method string) (handlerFunc, bool) {
	h, ok := dispatchTable[method]
	return h, ok
}

var dispatchTable = map[string]handlerFunc{
	"initialize": (*Router).handleInitialize,
	"ping": func(rt *Router, params json.RawMessage, sessionID string) (any, string, error) {
		return map[string]any{}, "", nil
	},
	"tools/list": func(rt *Router, params json.RawMessage, sessionID string) (any, string, error) {
		if sessionID != "" {
			rt.sessions.Touch(sessionID)
		}
		return map[string]any{"tools": rt.tools.ListTools()}, "", nil
	},
	"tools/call": (*Router).handleToolsCall,
	"notifications/initialized": func(rt *Router, params json.RawMessage, sessionID string) (any, string, error) {
		if sessionID != "" {
			rt.sessions.Touch(sessionID)
		}
		return map[string]any{}, "", nil
	},
}

// invoke runs the resolved handler, recovering from any panic and turning
// it into an error the caller converts to -32603 (unless this is a
// notification, which swallows the error entirely).
func (rt *Router) invoke(handler handlerFunc, params json.RawMessage, sessionID string) (result any, newSessionID string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()
	return handler(rt, params, sessionID)
}

func (rt *Router) errorResponse(id *json.RawMessage, notification bool, code int, message string) *Response {
	if notification {
		return nil
	}
	return &Response{JSONRPC: "2.0", ID: id, Error: &Error{Code: code, Message: message}}
}

type initializeParams struct {
	ClientInfo map[string]any `json:"clientInfo"`
}

func (rt *Router) handleInitialize(params json.RawMessage, sessionID string) (any, string, error) {
	var p initializeParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, "", fmt.Errorf("decode initialize params: %w", err)
		}
	}

	ctx, err := rt.sessions.Create(p.ClientInfo)
	if err != nil {
		return nil, "", fmt.Errorf("create session: %w", err)
	}

	result := map[string]any{
		"protocolVersion": ProtocolVersion,
		"capabilities": map[string]any{
			"tools": map[string]any{"listChanged": false},
		},
		"serverInfo": map[string]any{
			"name":    ServerName,
			"version": ServerVersion,
		},
	}
	return result, ctx.ID, nil
}

type toolsCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

func (rt *Router) handleToolsCall(params json.RawMessage, sessionID string) (any, string, error) {
	if sessionID == "" {
		return errorContent("Error: no active session"), "", nil
	}

	var p toolsCallParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, "", fmt.Errorf("decode tools/call params: %w", err)
		}
	}

	rt.sessions.Touch(sessionID)
	result := rt.tools.Dispatch(p.Name, p.Arguments, sessionID)

	return map[string]any{
		"content": []map[string]any{
			{"type": "text", "text": result.Output},
		},
		"isError": result.IsError,
	}, "", nil
}

func errorContent(text string) any {
	return map[string]any{
		"content": []map[string]any{
			{"type": "text", "text": text},
		},
		"isError": true,
	}
}
