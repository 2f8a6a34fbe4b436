package conversation

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Mock is an in-memory Channel for tests.
//
// StartSession and EndSession fire OnConnect and OnDisconnect synchronously,
// the way a live channel would once the agent answers.
type Mock struct {
	mu sync.RWMutex

	// State
	connected      bool
	conversationID string
	tools          map[string]Tool
	seq            uint64

	// Callbacks
	onConnect     func(conversationID string)
	onDisconnect  func()
	onMessage     func(msg Message)
	onMCPToolCall func(call MCPToolCall)
	onError       func(err error)

	// Configurable behavior
	StartSessionFunc func(ctx context.Context, opts SessionOptions) error
	SendFunc         func(text string) error

	// Captured calls for assertions
	Sessions          []SessionOptions
	UserMessages      []string
	ContextualUpdates []string
	EndCalls          int
}

// NewMock creates a new Mock channel.
func NewMock() *Mock {
	return &Mock{
		tools: make(map[string]Tool),
	}
}

// StartSession implements Channel.
func (m *Mock) StartSession(ctx context.Context, opts SessionOptions) error {
	if m.StartSessionFunc != nil {
		if err := m.StartSessionFunc(ctx, opts); err != nil {
			return err
		}
	}
	if opts.ConnectionType != "" && opts.ConnectionType != ConnectionWebSocket {
		return fmt.Errorf("%w: %s", ErrTransportNotSupported, opts.ConnectionType)
	}

	m.mu.Lock()
	if m.connected {
		m.mu.Unlock()
		return ErrAlreadyConnected
	}
	m.connected = true
	m.conversationID = "conv_" + uuid.NewString()
	m.seq = 0
	m.Sessions = append(m.Sessions, opts)
	id := m.conversationID
	fn := m.onConnect
	m.mu.Unlock()

	if fn != nil {
		fn(id)
	}
	return nil
}

// EndSession implements Channel.
func (m *Mock) EndSession() error {
	m.mu.Lock()
	m.EndCalls++
	was := m.connected
	m.connected = false
	m.conversationID = ""
	fn := m.onDisconnect
	m.mu.Unlock()

	if was && fn != nil {
		fn()
	}
	return nil
}

// IsConnected implements Channel.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// ConversationID returns the ID of the open session.
func (m *Mock) ConversationID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conversationID
}

// SendUserMessage implements Channel.
func (m *Mock) SendUserMessage(text string) error {
	if err := m.checkSend(text); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UserMessages = append(m.UserMessages, text)
	return nil
}

// SendContextualUpdate implements Channel.
func (m *Mock) SendContextualUpdate(text string) error {
	if err := m.checkSend(text); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ContextualUpdates = append(m.ContextualUpdates, text)
	return nil
}

func (m *Mock) checkSend(text string) error {
	if m.SendFunc != nil {
		if err := m.SendFunc(text); err != nil {
			return err
		}
	}
	if text == "" {
		return ErrEmptyText
	}
	if !m.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// RegisterTool implements Channel.
func (m *Mock) RegisterTool(tool Tool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tools[tool.Name] = tool
}

// OnConnect implements Channel.
func (m *Mock) OnConnect(fn func(conversationID string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConnect = fn
}

// OnDisconnect implements Channel.
func (m *Mock) OnDisconnect(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDisconnect = fn
}

// OnMessage implements Channel.
func (m *Mock) OnMessage(fn func(msg Message)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onMessage = fn
}

// OnMCPToolCall implements Channel.
func (m *Mock) OnMCPToolCall(fn func(call MCPToolCall)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onMCPToolCall = fn
}

// OnError implements Channel.
func (m *Mock) OnError(fn func(err error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onError = fn
}

// Test helpers

// SimulateDisconnect drops the session as if the server closed it.
func (m *Mock) SimulateDisconnect() {
	m.mu.Lock()
	m.connected = false
	m.conversationID = ""
	fn := m.onDisconnect
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// SimulateMessage triggers the OnMessage callback.
func (m *Mock) SimulateMessage(role, text string) {
	m.mu.RLock()
	fn := m.onMessage
	m.mu.RUnlock()
	if fn != nil {
		fn(Message{Role: role, Text: text})
	}
}

// SimulateMCPToolCall triggers the OnMCPToolCall callback. Calls without a
// sequence number get the next one.
func (m *Mock) SimulateMCPToolCall(call MCPToolCall) {
	m.mu.Lock()
	if call.Seq == 0 {
		m.seq++
		call.Seq = m.seq
	}
	fn := m.onMCPToolCall
	m.mu.Unlock()
	if fn != nil {
		fn(call)
	}
}

// SimulateError triggers the OnError callback.
func (m *Mock) SimulateError(err error) {
	m.mu.RLock()
	fn := m.onError
	m.mu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

// CallTool invokes a registered client tool as the agent would.
func (m *Mock) CallTool(name string, args map[string]any) (string, error) {
	m.mu.RLock()
	tool, ok := m.tools[name]
	m.mu.RUnlock()
	if !ok || tool.Handler == nil {
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return tool.Handler(args)
}

// GetTools returns the registered tools.
func (m *Mock) GetTools() []Tool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Tool, 0, len(m.tools))
	for _, t := range m.tools {
		out = append(out, t)
	}
	return out
}

// Reset clears all captured data.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sessions = nil
	m.UserMessages = nil
	m.ContextualUpdates = nil
	m.EndCalls = 0
}

// Ensure Mock implements Channel.
var _ Channel = (*Mock)(nil)
