// Package conversation connects to a conversational voice agent and delivers
// its events: connect, disconnect, transcripts, MCP tool calls and errors.
//
// The Channel interface is what the rest of the service depends on. ElevenLabs
// implements it against the ElevenLabs Agents Platform websocket API; Mock
// implements it in memory for tests.
//
// Example usage:
//
//	ch := conversation.NewElevenLabs(
//	    conversation.WithAPIKey(os.Getenv("ELEVENLABS_API_KEY")),
//	    conversation.WithAgentID(os.Getenv("ELEVENLABS_AGENT_ID")),
//	)
//
//	ch.OnMCPToolCall(func(call conversation.MCPToolCall) {
//	    // Route the result to the view state machine
//	})
//
//	if err := ch.StartSession(ctx, conversation.SessionOptions{}); err != nil {
//	    log.Fatal(err)
//	}
//	defer ch.EndSession()
package conversation

import (
	"context"
)

// Channel is a live conversation with an agent.
//
// Callbacks are invoked from a single goroutine per session, in the order
// events arrive. They must not block for long.
type Channel interface {
	// StartSession opens a session. OnConnect fires once the agent has
	// accepted it.
	StartSession(ctx context.Context, opts SessionOptions) error

	// EndSession closes the session. OnDisconnect fires when it is gone.
	EndSession() error

	// IsConnected returns true while a session is open.
	IsConnected() bool

	// SendUserMessage sends text as if the user had said it.
	SendUserMessage(text string) error

	// SendContextualUpdate informs the agent without prompting a reply.
	SendContextualUpdate(text string) error

	// RegisterTool exposes a client tool the agent may call.
	RegisterTool(tool Tool)

	// Callbacks

	OnConnect(fn func(conversationID string))
	OnDisconnect(fn func())
	OnMessage(fn func(msg Message))
	OnMCPToolCall(fn func(call MCPToolCall))
	OnError(fn func(err error))
}
