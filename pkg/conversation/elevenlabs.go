package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
)

// ElevenLabs implements Channel for the ElevenLabs Agents Platform.
type ElevenLabs struct {
	config    *Config
	logger    *slog.Logger
	apiClient *apiClient

	mu    sync.RWMutex
	conn  *websocket.Conn
	state ConnectionState
	tools map[string]Tool

	// gorilla/websocket allows one concurrent writer.
	writeMu sync.Mutex

	// Callbacks
	onConnect     func(conversationID string)
	onDisconnect  func()
	onMessage     func(msg Message)
	onMCPToolCall func(call MCPToolCall)
	onError       func(err error)

	seq              atomic.Uint64
	messagesSent     atomic.Int64
	messagesReceived atomic.Int64
}

// NewElevenLabs creates a new ElevenLabs channel.
//
// Public agents need only an agent ID. Private agents also need an API key,
// which is used to fetch a signed websocket URL per session:
//
//	ch := NewElevenLabs(
//	    WithAPIKey(apiKey),
//	    WithAgentID("agent_7101k5..."),
//	)
func NewElevenLabs(opts ...Option) *ElevenLabs {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	e := &ElevenLabs{
		config:    cfg,
		logger:    cfg.Logger.With("component", "conversation.elevenlabs"),
		apiClient: newAPIClient(cfg.APIKey, cfg.APIBaseURL, cfg.HTTPClient),
		state:     StateDisconnected,
		tools:     make(map[string]Tool),
	}
	for _, t := range cfg.Tools {
		e.tools[t.Name] = t
	}
	return e
}

// StartSession opens the websocket and sends the client initiation data.
func (e *ElevenLabs) StartSession(ctx context.Context, opts SessionOptions) error {
	if opts.ConnectionType != "" && opts.ConnectionType != ConnectionWebSocket {
		return fmt.Errorf("%w: %s", ErrTransportNotSupported, opts.ConnectionType)
	}
	agentID := opts.AgentID
	if agentID == "" {
		agentID = e.config.AgentID
	}
	if agentID == "" {
		return ErrMissingAgentID
	}

	e.mu.Lock()
	if e.state != StateDisconnected {
		e.mu.Unlock()
		return ErrAlreadyConnected
	}
	e.state = StateConnecting
	e.mu.Unlock()

	conn, err := e.dial(ctx, agentID)
	if err != nil {
		e.setState(StateDisconnected)
		return err
	}

	e.mu.Lock()
	e.conn = conn
	e.state = StateConnected
	e.mu.Unlock()
	e.seq.Store(0)

	init := map[string]any{
		"type": "conversation_initiation_client_data",
	}
	if len(opts.DynamicVariables) > 0 {
		init["dynamic_variables"] = opts.DynamicVariables
	}
	if err := e.send(init); err != nil {
		e.closeConn(conn)
		return err
	}

	go e.handleMessages(conn)

	e.logger.Info("session started", "agent_id", agentID)
	return nil
}

func (e *ElevenLabs) dial(ctx context.Context, agentID string) (*websocket.Conn, error) {
	wsURL, err := e.sessionURL(ctx, agentID)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: e.config.Timeout,
	}

	e.logger.Info("connecting to ElevenLabs Agents Platform", "agent_id", agentID)

	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, NewConnectionError(
				fmt.Sprintf("dial failed with status %d", resp.StatusCode),
				err,
				resp.StatusCode >= 500,
			)
		}
		return nil, NewConnectionError("dial failed", err, true)
	}
	return conn, nil
}

// sessionURL signs the URL for private agents, or builds the public one.
func (e *ElevenLabs) sessionURL(ctx context.Context, agentID string) (string, error) {
	if e.config.APIKey != "" {
		signed, err := e.apiClient.GetSignedURL(ctx, agentID)
		if err != nil {
			return "", fmt.Errorf("conversation.elevenlabs: get signed url: %w", err)
		}
		return signed, nil
	}

	u, err := url.Parse(e.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("conversation.elevenlabs: invalid URL: %w", err)
	}
	q := u.Query()
	q.Set("agent_id", agentID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// EndSession closes the session. It is a no-op when no session is open.
func (e *ElevenLabs) EndSession() error {
	e.mu.Lock()
	conn := e.conn
	e.conn = nil
	e.state = StateDisconnected
	e.mu.Unlock()

	if conn == nil {
		return nil
	}

	e.writeMu.Lock()
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	e.writeMu.Unlock()
	conn.Close()

	e.logger.Info("session ended")
	e.emitDisconnect()
	return nil
}

// IsConnected returns true if connected.
func (e *ElevenLabs) IsConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state == StateConnected
}

// SendUserMessage sends a text message on behalf of the user.
func (e *ElevenLabs) SendUserMessage(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	return e.send(map[string]any{"type": "user_message", "text": text})
}

// SendContextualUpdate sends background information to the agent.
func (e *ElevenLabs) SendContextualUpdate(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	return e.send(map[string]any{"type": "contextual_update", "text": text})
}

// RegisterTool registers a client tool.
func (e *ElevenLabs) RegisterTool(tool Tool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tools[tool.Name] = tool
}

// OnConnect sets the connect callback.
func (e *ElevenLabs) OnConnect(fn func(conversationID string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onConnect = fn
}

// OnDisconnect sets the disconnect callback.
func (e *ElevenLabs) OnDisconnect(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onDisconnect = fn
}

// OnMessage sets the transcript callback.
func (e *ElevenLabs) OnMessage(fn func(msg Message)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onMessage = fn
}

// OnMCPToolCall sets the MCP tool call callback.
func (e *ElevenLabs) OnMCPToolCall(fn func(call MCPToolCall)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onMCPToolCall = fn
}

// OnError sets the error callback.
func (e *ElevenLabs) OnError(fn func(err error)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onError = fn
}

func (e *ElevenLabs) setState(s ConnectionState) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// closeConn drops conn if it is still the current connection and reports
// whether it was.
func (e *ElevenLabs) closeConn(conn *websocket.Conn) bool {
	e.mu.Lock()
	current := e.conn == conn
	if current {
		e.conn = nil
		e.state = StateDisconnected
	}
	e.mu.Unlock()
	conn.Close()
	return current
}

func (e *ElevenLabs) send(v any) error {
	e.mu.RLock()
	conn := e.conn
	e.mu.RUnlock()

	if conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("conversation.elevenlabs: marshal failed: %w", err)
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(e.config.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return NewConnectionError("write failed", err, true)
	}

	e.messagesSent.Add(1)
	return nil
}

// handleMessages reads conn until it closes. The disconnect is reported
// only while conn is the current connection; EndSession reports its own.
func (e *ElevenLabs) handleMessages(conn *websocket.Conn) {
	defer func() {
		if !e.closeConn(conn) {
			return
		}
		e.logger.Info("disconnected from ElevenLabs Agents Platform",
			"messages_sent", e.messagesSent.Load(),
			"messages_received", e.messagesReceived.Load(),
		)
		e.emitDisconnect()
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(e.config.ReadTimeout))

		_, data, err := conn.ReadMessage()
		if err != nil {
			e.mu.RLock()
			ours := e.conn == conn
			e.mu.RUnlock()

			switch {
			case !ours:
				// Closed by EndSession.
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
				e.logger.Info("connection closed by server")
			default:
				e.logger.Error("read error", "error", err)
				e.emitError(NewConnectionError("read failed", err, true))
			}
			return
		}

		e.messagesReceived.Add(1)

		var msg incoming
		if err := json.Unmarshal(data, &msg); err != nil {
			e.logger.Warn("failed to parse message", "error", err)
			e.emitError(fmt.Errorf("%w: %v", ErrInvalidMessage, err))
			continue
		}

		e.handleMessage(msg, data)
	}
}

// handleMessage processes a single message.
func (e *ElevenLabs) handleMessage(msg incoming, raw []byte) {
	switch msg.Type {
	case "conversation_initiation_metadata":
		id := ""
		if msg.InitiationMetadata != nil {
			id = msg.InitiationMetadata.ConversationID
		}
		e.logger.Info("conversation started", "conversation_id", id)
		e.emitConnect(id)

	case "ping":
		eventID := 0
		if msg.PingEvent != nil {
			eventID = msg.PingEvent.EventID
		}
		if err := e.send(map[string]any{"type": "pong", "event_id": eventID}); err != nil {
			e.logger.Warn("pong failed", "error", err)
		}

	case "user_transcript":
		if msg.UserTranscription != nil {
			e.emitMessage(Message{Role: RoleUser, Text: msg.UserTranscription.UserTranscript})
		}

	case "agent_response":
		if msg.AgentResponse != nil {
			e.emitMessage(Message{Role: RoleAgent, Text: msg.AgentResponse.AgentResponse})
		}

	case "client_tool_call":
		if msg.ClientToolCall != nil {
			e.callTool(*msg.ClientToolCall)
		}

	case "mcp_tool_call":
		if msg.MCPToolCall != nil {
			call := *msg.MCPToolCall
			call.Seq = e.seq.Add(1)
			e.logger.Debug("mcp tool call",
				"tool", call.ToolName,
				"state", call.State,
				"call_id", call.ToolCallID,
				"blocks", len(call.Result),
			)
			e.emitMCPToolCall(call)
		}

	case "interruption":
		e.logger.Debug("agent interrupted")

	case "error":
		// Codes arrive as strings or numbers, nested or flat.
		ev := gjson.GetBytes(raw, "error_event")
		if !ev.Exists() {
			ev = gjson.ParseBytes(raw)
		}
		e.emitError(NewAPIError(0, ev.Get("code").String(), ev.Get("message").String()))

	case "audio", "agent_response_correction", "vad_score", "internal_tentative_agent_response":
		// Audio is played by the browser; nothing to do here.

	default:
		e.logger.Debug("unhandled message type", "type", msg.Type)
	}
}

// callTool runs a registered client tool and replies with its result.
func (e *ElevenLabs) callTool(call clientToolCall) {
	e.mu.RLock()
	tool, ok := e.tools[call.ToolName]
	e.mu.RUnlock()

	result, isError := "", false
	switch {
	case !ok || tool.Handler == nil:
		result, isError = ErrToolNotFound.Error()+": "+call.ToolName, true
		e.logger.Warn("agent called unknown tool", "tool", call.ToolName)
	default:
		out, err := tool.Handler(call.Parameters)
		if err != nil {
			result, isError = err.Error(), true
			e.logger.Warn("client tool failed", "tool", call.ToolName, "error", err)
		} else {
			result = out
		}
	}

	err := e.send(map[string]any{
		"type":         "client_tool_result",
		"tool_call_id": call.ToolCallID,
		"result":       result,
		"is_error":     isError,
	})
	if err != nil {
		e.logger.Warn("submit tool result failed", "tool", call.ToolName, "error", err)
		return
	}
	e.logger.Debug("submitted tool result",
		"call_id", call.ToolCallID,
		"result_len", len(result),
	)
}

// Emit helpers

func (e *ElevenLabs) emitConnect(id string) {
	e.mu.RLock()
	fn := e.onConnect
	e.mu.RUnlock()
	if fn != nil {
		fn(id)
	}
}

func (e *ElevenLabs) emitDisconnect() {
	e.mu.RLock()
	fn := e.onDisconnect
	e.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (e *ElevenLabs) emitMessage(msg Message) {
	e.mu.RLock()
	fn := e.onMessage
	e.mu.RUnlock()
	if fn != nil {
		fn(msg)
	}
}

func (e *ElevenLabs) emitMCPToolCall(call MCPToolCall) {
	e.mu.RLock()
	fn := e.onMCPToolCall
	e.mu.RUnlock()
	if fn != nil {
		fn(call)
	}
}

func (e *ElevenLabs) emitError(err error) {
	e.mu.RLock()
	fn := e.onError
	e.mu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

// Message types for the ElevenLabs websocket API

type incoming struct {
	Type string `json:"type"`

	InitiationMetadata *initiationMetadata `json:"conversation_initiation_metadata_event,omitempty"`
	PingEvent          *pingEvent          `json:"ping_event,omitempty"`
	UserTranscription  *userTranscription  `json:"user_transcription_event,omitempty"`
	AgentResponse      *agentResponse      `json:"agent_response_event,omitempty"`
	ClientToolCall     *clientToolCall     `json:"client_tool_call,omitempty"`
	MCPToolCall        *MCPToolCall        `json:"mcp_tool_call,omitempty"`
}

type initiationMetadata struct {
	ConversationID string `json:"conversation_id"`
}

type pingEvent struct {
	EventID int `json:"event_id"`
	PingMs  int `json:"ping_ms,omitempty"`
}

type userTranscription struct {
	UserTranscript string `json:"user_transcript"`
}

type agentResponse struct {
	AgentResponse string `json:"agent_response"`
}

type clientToolCall struct {
	ToolName   string         `json:"tool_name"`
	ToolCallID string         `json:"tool_call_id"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Ensure ElevenLabs implements Channel.
var _ Channel = (*ElevenLabs)(nil)
