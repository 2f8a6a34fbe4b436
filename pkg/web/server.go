// Package web serves the shopping view to browsers: a JSON API for the
// current view and session controls, and a websocket that streams every
// view change.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"golang.org/x/time/rate"

	"github.com/teslashibe/go-shopview/pkg/conversation"
	"github.com/teslashibe/go-shopview/pkg/hub"
	"github.com/teslashibe/go-shopview/pkg/protocol"
	"github.com/teslashibe/go-shopview/pkg/shopui"
)

// Backend is the application the server presents.
type Backend interface {
	View() shopui.ViewModel
	Snapshot() shopui.Snapshot
	StartSession(ctx context.Context, opts conversation.SessionOptions) error
	EndSession() error
	HandleAction(a shopui.UIAction) error
	HandleToolCall(ev shopui.ToolCallEvent) shopui.Transition
}

// Config holds server settings.
type Config struct {
	Port      string
	StaticDir string
	Logger    *slog.Logger

	// ActionRate and ActionBurst bound UI actions forwarded to the agent,
	// shared by every browser.
	ActionRate  float64
	ActionBurst int
}

// DefaultConfig returns the default server settings.
func DefaultConfig() Config {
	return Config{
		Port:        "8080",
		ActionRate:  2,
		ActionBurst: 5,
	}
}

// ErrTooManyActions is returned when browsers send actions faster than
// the configured rate.
var ErrTooManyActions = errors.New("web: too many actions")

// ConversationEntry is one line of the transcript.
type ConversationEntry struct {
	Time    string `json:"time"`
	Role    string `json:"role"` // user, agent
	Message string `json:"message"`
}

// ToolCallEntry records how a tool call was handled.
type ToolCallEntry struct {
	Time    string      `json:"time"`
	Tool    string      `json:"tool"`
	Applied bool        `json:"applied"`
	Reason  string      `json:"reason,omitempty"`
	From    shopui.View `json:"from"`
	To      shopui.View `json:"to"`
	Version uint64      `json:"version"`
}

const (
	maxConversation = 100
	maxToolCalls    = 100
)

// Server is the browser-facing HTTP and websocket server.
type Server struct {
	app     *fiber.App
	config  Config
	logger  *slog.Logger
	backend Backend

	// Browsers watching the view
	viewHub *hub.Hub

	actions *rate.Limiter

	// Newest published view version
	publishMu   sync.Mutex
	published   bool
	lastVersion uint64

	conversation   []ConversationEntry
	conversationMu sync.RWMutex

	toolCalls   []ToolCallEntry
	toolCallsMu sync.RWMutex
}

// NewServer creates a server for backend.
func NewServer(cfg Config, backend Backend) *Server {
	def := DefaultConfig()
	if cfg.Port == "" {
		cfg.Port = def.Port
	}
	if cfg.ActionRate <= 0 {
		cfg.ActionRate = def.ActionRate
	}
	if cfg.ActionBurst <= 0 {
		cfg.ActionBurst = def.ActionBurst
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:       cfg,
		logger:       logger.With("component", "web"),
		backend:      backend,
		actions:      rate.NewLimiter(rate.Limit(cfg.ActionRate), cfg.ActionBurst),
		conversation: make([]ConversationEntry, 0, maxConversation),
		toolCalls:    make([]ToolCallEntry, 0, maxToolCalls),
	}
	s.viewHub = hub.New("view",
		hub.WithLogger(logger),
		hub.OnRegister(s.welcome),
		hub.OnMessage(s.handleClientMessage),
	)

	app := fiber.New(fiber.Config{
		AppName:               "Shopview",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	// API routes
	api := app.Group("/api")
	api.Get("/view", s.handleView)
	api.Get("/status", s.handleStatus)
	api.Get("/conversation", s.handleGetConversation)
	api.Get("/toolcalls", s.handleGetToolCalls)
	api.Post("/toolcalls", s.handleInjectToolCall)
	api.Post("/session/start", s.handleStartSession)
	api.Post("/session/end", s.handleEndSession)
	api.Post("/actions", s.handleAction)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/view", websocket.New(s.handleViewWS))

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start starts the hub and listens on the configured port.
func (s *Server) Start() error {
	go s.viewHub.Run()
	s.logger.Info("web server listening", "url", "http://localhost:"+s.config.Port)
	return s.app.Listen(":" + s.config.Port)
}

// Serve starts the hub and serves on ln.
func (s *Server) Serve(ln net.Listener) error {
	go s.viewHub.Run()
	s.logger.Info("web server listening", "addr", ln.Addr().String())
	return s.app.Listener(ln)
}

// Shutdown closes browser connections and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.viewHub.Stop()
	return s.app.ShutdownWithContext(ctx)
}

// Publish broadcasts vm unless a view with the same or a newer version was
// already published. It reports whether vm was sent.
func (s *Server) Publish(vm shopui.ViewModel) bool {
	msg, err := protocol.NewViewMessage(vm)
	if err != nil {
		s.logger.Error("encode view", "error", err)
		return false
	}

	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	if s.published && vm.Version <= s.lastVersion {
		s.logger.Debug("dropping stale view", "version", vm.Version, "last", s.lastVersion)
		return false
	}
	s.published = true
	s.lastVersion = vm.Version
	s.broadcast(msg)
	return true
}

// Navigate asks every browser to open url.
func (s *Server) Navigate(url, target string) error {
	msg, err := protocol.NewNavigateMessage(url, target)
	if err != nil {
		return err
	}
	s.broadcast(msg)
	return nil
}

// PublishStatus broadcasts the current session status.
func (s *Server) PublishStatus() {
	msg, err := protocol.NewStatusMessage(s.status())
	if err != nil {
		s.logger.Error("encode status", "error", err)
		return
	}
	s.broadcast(msg)
}

func (s *Server) broadcast(msg *protocol.Message) {
	data, err := msg.Bytes()
	if err != nil {
		s.logger.Error("encode message", "type", msg.Type, "error", err)
		return
	}
	s.viewHub.Broadcast(hub.NewJSONMessage(data))
}

// AddConversation adds a transcript entry.
func (s *Server) AddConversation(role, message string) {
	entry := ConversationEntry{
		Time:    time.Now().Format("15:04:05"),
		Role:    role,
		Message: message,
	}

	s.conversationMu.Lock()
	s.conversation = append(s.conversation, entry)
	if len(s.conversation) > maxConversation {
		s.conversation = s.conversation[1:]
	}
	s.conversationMu.Unlock()
}

// RecordToolCall adds tr to the tool call log.
func (s *Server) RecordToolCall(tool string, tr shopui.Transition) {
	entry := ToolCallEntry{
		Time:    time.Now().Format("15:04:05"),
		Tool:    tool,
		Applied: tr.Applied,
		Reason:  tr.Reason,
		From:    tr.From,
		To:      tr.To,
		Version: tr.Snapshot.Version,
	}

	s.toolCallsMu.Lock()
	s.toolCalls = append(s.toolCalls, entry)
	if len(s.toolCalls) > maxToolCalls {
		s.toolCalls = s.toolCalls[1:]
	}
	s.toolCallsMu.Unlock()
}

func (s *Server) status() protocol.StatusData {
	snap := s.backend.Snapshot()
	return protocol.StatusData{
		Connected:      snap.Connected,
		ConversationID: snap.ConversationID,
		View:           snap.View.String(),
		Version:        snap.Version,
		Clients:        s.viewHub.ClientCount(),
	}
}

// forwardAction hands a UI action to the backend within the action rate.
func (s *Server) forwardAction(a shopui.UIAction) error {
	if !s.actions.Allow() {
		return ErrTooManyActions
	}
	return s.backend.HandleAction(a)
}

// ViewHub returns the hub serving /ws/view.
func (s *Server) ViewHub() *hub.Hub {
	return s.viewHub
}
