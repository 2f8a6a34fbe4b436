package shopui

import (
	"log/slog"
	"sync"

	"github.com/teslashibe/go-shopview/pkg/storefront"
)

// Reasons reported by a Transition that was not applied.
const (
	ReasonUnrecognizedTool = "unrecognized tool"
	ReasonNoUsableBlocks   = "no usable blocks"
	ReasonStale            = "stale event"
	ReasonDuplicate        = "duplicate event"
)

// Session is the conversation capability the machine may use. The machine
// never starts or ends the session.
type Session interface {
	SendUserMessage(text string) error
}

// Snapshot is an immutable copy of the machine state.
type Snapshot struct {
	// Version increases by one on every state change.
	Version        uint64       `json:"version"`
	View           View         `json:"view"`
	Resources      []UIResource `json:"resources"`
	Active         *UIResource  `json:"active,omitempty"`
	Connected      bool         `json:"connected"`
	ConversationID string       `json:"conversation_id,omitempty"`
}

// Transition describes the outcome of HandleToolCall.
type Transition struct {
	Applied bool
	Reason  string
	From    View
	To      View

	// Guidance is the text injected for the agent, if any.
	Guidance string

	// Result is the result sequence to hand back to the agent, with the
	// data block augmented when guidance was injected.
	Result []ResultBlock

	Snapshot Snapshot
}

// Option configures a Machine.
type Option func(*Machine)

// WithRoutes replaces the default routing table.
func WithRoutes(r Routes) Option {
	return func(m *Machine) {
		m.routes = r
	}
}

// WithSession sets the capability used to forward prompt actions.
func WithSession(s Session) Option {
	return func(m *Machine) {
		m.session = s
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) {
		m.logger = l
	}
}

// WithStorefront sets the adapter used by Render.
func WithStorefront(a *storefront.Adapter) Option {
	return func(m *Machine) {
		m.adapter = a
	}
}

// OnChange registers a listener called after every state change. Listeners
// run outside the state lock; use Snapshot.Version to drop stale updates.
func OnChange(fn func(Snapshot)) Option {
	return func(m *Machine) {
		m.listeners = append(m.listeners, fn)
	}
}

// Machine is the tool-call-to-view state machine. It is safe for concurrent
// use.
type Machine struct {
	routes    Routes
	session   Session
	logger    *slog.Logger
	adapter   *storefront.Adapter
	listeners []func(Snapshot)

	mu             sync.Mutex
	view           View
	resources      []UIResource
	active         *UIResource
	connected      bool
	conversationID string
	version        uint64
	lastSeq        uint64
	lastID         string
}

// NewMachine creates a Machine in the idle view.
func NewMachine(opts ...Option) *Machine {
	m := &Machine{
		routes:    DefaultRoutes(),
		view:      ViewIdle,
		resources: []UIResource{},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.logger = m.logger.With("component", "shopui")
	if m.adapter == nil {
		m.adapter = storefront.New(storefront.DefaultOptions())
	}
	return m
}

// HandleToolCall applies ev to the machine. Unrecognized tools, results
// without usable blocks and stale or duplicate deliveries leave the state
// untouched.
func (m *Machine) HandleToolCall(ev ToolCallEvent) Transition {
	route, ok := m.routes.Lookup(ev.ToolName)
	if !ok {
		m.logger.Debug("ignoring tool call", "tool", ev.ToolName, "reason", ReasonUnrecognizedTool)
		return m.noop(ev, ReasonUnrecognizedTool)
	}

	p := Normalize(ev.Result)
	if p.Err != nil {
		m.logger.Warn("tool result data not decodable", "tool", ev.ToolName, "error", p.Err)
	}
	if !p.Usable() {
		m.logger.Debug("ignoring tool call", "tool", ev.ToolName, "reason", ReasonNoUsableBlocks)
		return m.noop(ev, ReasonNoUsableBlocks)
	}

	result := ev.Result
	data := []byte(p.Data)
	guidance := ""
	if aug, ok := Augment(data, route.Guidance); ok {
		data = aug
		guidance = route.Guidance
		result = WithText(ev.Result, p.TextIndex, string(aug))
	}

	resources := p.Resources
	if len(resources) == 0 {
		resources = []UIResource{syntheticResource(ev.ToolName, data)}
	}

	m.mu.Lock()
	if reason := m.rejectLocked(ev); reason != "" {
		snap := m.snapshotLocked()
		m.mu.Unlock()
		m.logger.Debug("dropping tool call", "tool", ev.ToolName, "id", ev.ID, "seq", ev.Seq, "reason", reason)
		return Transition{Reason: reason, From: snap.View, To: snap.View, Result: ev.Result, Snapshot: snap}
	}

	from := m.view
	m.view = route.View
	m.resources = resources
	m.active = nil
	if route.Single {
		first := resources[0]
		m.active = &first
	}
	if ev.Seq != 0 {
		m.lastSeq = ev.Seq
	}
	if ev.ID != "" {
		m.lastID = ev.ID
	}
	m.version++
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.logger.Info("view changed",
		"tool", ev.ToolName,
		"from", from,
		"to", route.View,
		"resources", len(resources),
		"version", snap.Version,
	)
	m.notify(snap)

	return Transition{
		Applied:  true,
		From:     from,
		To:       route.View,
		Guidance: guidance,
		Result:   result,
		Snapshot: snap,
	}
}

// rejectLocked returns a reason when ev was already superseded.
func (m *Machine) rejectLocked(ev ToolCallEvent) string {
	if ev.Seq != 0 && ev.Seq <= m.lastSeq {
		return ReasonStale
	}
	if ev.ID != "" && ev.ID == m.lastID {
		return ReasonDuplicate
	}
	return ""
}

func (m *Machine) noop(ev ToolCallEvent, reason string) Transition {
	snap := m.Snapshot()
	return Transition{Reason: reason, From: snap.View, To: snap.View, Result: ev.Result, Snapshot: snap}
}

// syntheticResource wraps a text-only result so it can be rendered.
func syntheticResource(tool string, data []byte) UIResource {
	return UIResource{
		URI:      "ui://" + tool + "/result",
		MimeType: "application/json",
		Text:     string(data),
	}
}

// Connect marks the session connected and returns to the idle view.
// Resources are kept.
func (m *Machine) Connect(conversationID string) {
	m.mu.Lock()
	m.view = ViewIdle
	m.connected = true
	m.conversationID = conversationID
	m.lastSeq, m.lastID = 0, ""
	m.version++
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.logger.Info("conversation connected", "conversation_id", conversationID)
	m.notify(snap)
}

// Disconnect resets to the idle view with no resources.
func (m *Machine) Disconnect() {
	m.mu.Lock()
	m.view = ViewIdle
	m.resources = []UIResource{}
	m.active = nil
	m.connected = false
	m.conversationID = ""
	m.lastSeq, m.lastID = 0, ""
	m.version++
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.logger.Info("conversation disconnected")
	m.notify(snap)
}

// ReportError logs a channel error. The view is left as is.
func (m *Machine) ReportError(err error) {
	if err == nil {
		return
	}
	m.logger.Warn("conversation error", "error", err)
}

// ReportMessage logs a conversation message.
func (m *Machine) ReportMessage(role, text string) {
	m.logger.Debug("conversation message", "role", role, "text", text)
}

// Snapshot returns a copy of the current state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Machine) snapshotLocked() Snapshot {
	s := Snapshot{
		Version:        m.version,
		View:           m.view,
		Resources:      make([]UIResource, len(m.resources)),
		Connected:      m.connected,
		ConversationID: m.conversationID,
	}
	copy(s.Resources, m.resources)
	if m.active != nil {
		a := *m.active
		s.Active = &a
	}
	return s
}

func (m *Machine) notify(s Snapshot) {
	for _, fn := range m.listeners {
		fn(s)
	}
}
