// Package protocol defines the websocket messages exchanged between the
// shopview server and the browsers rendering the current view.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of websocket message
type MessageType string

const (
	// Server → Browser messages
	TypeView     MessageType = "view"     // Rendered view model
	TypeStatus   MessageType = "status"   // Session and connection status
	TypeNavigate MessageType = "navigate" // Open a storefront URL
	TypeError    MessageType = "error"    // Request rejected

	// Browser → Server messages
	TypeAction MessageType = "action" // UI action from a rendered resource

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all websocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data any) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v any) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// =============================================================================
// Server → Browser Message Types
// =============================================================================

// StatusData describes the conversation session and the browser hub
type StatusData struct {
	Connected      bool   `json:"connected"`
	ConversationID string `json:"conversation_id,omitempty"`
	View           string `json:"view"`
	Version        uint64 `json:"version"`
	Clients        int    `json:"clients"`
}

// Navigation targets
const (
	TargetCart     = "cart"
	TargetCheckout = "checkout"
)

// NavigateData asks the browser to open a storefront URL
type NavigateData struct {
	URL    string `json:"url"`
	Target string `json:"target,omitempty"` // "cart", "checkout"
}

// ErrorData reports a rejected browser request
type ErrorData struct {
	Message string `json:"message"`
}

// =============================================================================
// Browser → Server Message Types
// =============================================================================

// ActionData is a UI action reported by a rendered resource
type ActionData struct {
	Type    string         `json:"type"` // "prompt", ...
	Payload map[string]any `json:"payload,omitempty"`
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
