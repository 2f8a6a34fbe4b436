package conversation

import (
	"encoding/json"
)

// ConnectionState represents the websocket connection state.
type ConnectionState int

const (
	// StateDisconnected indicates no active connection.
	StateDisconnected ConnectionState = iota
	// StateConnecting indicates connection is being established.
	StateConnecting
	// StateConnected indicates an active connection.
	StateConnected
)

// String returns a human-readable connection state.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// ConnectionType selects the session transport.
type ConnectionType string

const (
	ConnectionWebSocket ConnectionType = "websocket"
	ConnectionWebRTC    ConnectionType = "webrtc"
)

// SessionOptions configures a conversation session.
type SessionOptions struct {
	// AgentID overrides the configured agent.
	AgentID string `json:"agent_id,omitempty"`

	// ConnectionType defaults to ConnectionWebSocket.
	ConnectionType ConnectionType `json:"connection_type,omitempty"`

	// DynamicVariables are substituted into the agent's prompt.
	DynamicVariables map[string]any `json:"dynamic_variables,omitempty"`
}

// Tool is a client-side tool the agent can call.
type Tool struct {
	// Name is the unique identifier for the tool.
	Name string

	// Description explains what the tool does (shown to the AI).
	Description string

	// Parameters defines the JSON Schema for tool arguments.
	Parameters map[string]any

	// Handler is called with the parsed arguments and returns the result
	// string handed back to the agent.
	Handler func(args map[string]any) (string, error)
}

// Message roles.
const (
	RoleUser  = "user"
	RoleAgent = "agent"
)

// Message is a finalized transcript line.
type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// MCP tool call states.
const (
	MCPStateLoading          = "loading"
	MCPStateAwaitingApproval = "awaiting_approval"
	MCPStateSuccess          = "success"
	MCPStateFailure          = "failure"
)

// MCPToolCall is a tool invocation the agent made against an MCP server.
// The same call is reported once per state change.
type MCPToolCall struct {
	ServiceID  string         `json:"service_id,omitempty"`
	ToolCallID string         `json:"tool_call_id"`
	ToolName   string         `json:"tool_name"`
	Parameters map[string]any `json:"parameters,omitempty"`
	State      string         `json:"state,omitempty"`

	// Result holds the raw content blocks, undecoded so that one malformed
	// block does not affect the others.
	Result []json.RawMessage `json:"result,omitempty"`

	ErrorMessage string `json:"error_message,omitempty"`

	// Seq is assigned by the channel and increases with every call
	// reported within a session.
	Seq uint64 `json:"-"`
}
