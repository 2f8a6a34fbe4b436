package shop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-shopview/internal/httpc"
	"github.com/teslashibe/go-shopview/pkg/conversation"
	"github.com/teslashibe/go-shopview/pkg/shopui"
	"github.com/teslashibe/go-shopview/pkg/storefront"
	"github.com/teslashibe/go-shopview/pkg/web"
)

const shutdownTimeout = 5 * time.Second

// Option configures an App.
type Option func(*App)

// WithChannel replaces the ElevenLabs channel, typically with a
// conversation.Mock in tests.
func WithChannel(ch conversation.Channel) Option {
	return func(a *App) {
		a.channel = ch
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		a.logger = l
	}
}

// App is the shopview application orchestrator.
// It owns the channel, the view state machine and the web server.
type App struct {
	config Config
	logger *slog.Logger

	channel conversation.Channel
	machine *shopui.Machine
	server  *web.Server
}

// New creates an App from a validated configuration.
func New(cfg Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	routes, err := cfg.LoadRoutes()
	if err != nil {
		return nil, err
	}

	a := &App{config: cfg}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}

	if a.channel == nil {
		a.channel = conversation.NewElevenLabs(
			conversation.WithAPIKey(cfg.APIKey),
			conversation.WithAgentID(cfg.AgentID),
			conversation.WithTimeout(cfg.RequestTimeout),
			conversation.WithHTTPClient(httpc.NewClient(cfg.RequestTimeout)),
			conversation.WithLogger(a.logger),
		)
	}

	adapter := storefront.New(storefront.Options{
		DefaultCurrency: cfg.Currency,
		Brand:           cfg.Brand,
	})
	a.machine = shopui.NewMachine(
		shopui.WithRoutes(routes),
		shopui.WithSession(a.channel),
		shopui.WithStorefront(adapter),
		shopui.WithLogger(a.logger),
		shopui.OnChange(a.publish),
	)
	a.server = web.NewServer(web.Config{
		Port:      cfg.Port,
		StaticDir: cfg.StaticDir,
		Logger:    a.logger,
	}, a)

	for _, tool := range Tools(ToolsConfig{Navigator: a.server, Logger: a.logger}) {
		a.channel.RegisterTool(tool)
	}
	a.wire()

	return a, nil
}

func (a *App) wire() {
	a.channel.OnConnect(func(conversationID string) {
		a.machine.Connect(conversationID)
		a.server.PublishStatus()
	})
	a.channel.OnDisconnect(func() {
		a.machine.Disconnect()
		a.server.PublishStatus()
	})
	a.channel.OnMessage(func(msg conversation.Message) {
		a.machine.ReportMessage(msg.Role, msg.Text)
		a.server.AddConversation(msg.Role, msg.Text)
	})
	a.channel.OnError(a.machine.ReportError)
	a.channel.OnMCPToolCall(a.handleMCPToolCall)
}

// Run serves the web surface until ctx is done, then shuts down.
// With AutoStart the conversation session is opened first; a failure
// there is logged and the session can be started from the browser.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.server.Start(); err != nil {
			return fmt.Errorf("web server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return a.Shutdown()
	})

	if a.config.AutoStart {
		if err := a.StartSession(ctx, conversation.SessionOptions{}); err != nil {
			a.logger.Error("auto start failed", "error", err)
		}
	}
	return g.Wait()
}

// Shutdown ends the session and stops the web server.
func (a *App) Shutdown() error {
	var errs []error
	if a.channel.IsConnected() {
		if err := a.channel.EndSession(); err != nil {
			errs = append(errs, fmt.Errorf("end session: %w", err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("web server: %w", err))
	}
	return errors.Join(errs...)
}

// handleMCPToolCall turns a completed MCP call into a ToolCallEvent.
// The channel reports each call once per state; only the final result
// drives the view.
func (a *App) handleMCPToolCall(call conversation.MCPToolCall) {
	logger := a.logger.With("tool", call.ToolName, "tool_call_id", call.ToolCallID)

	switch call.State {
	case conversation.MCPStateSuccess, "":
	case conversation.MCPStateFailure:
		logger.Warn("mcp tool call failed", "error", call.ErrorMessage)
		return
	default:
		logger.Debug("mcp tool call pending", "state", call.State)
		return
	}

	blocks, err := shopui.DecodeBlocks(call.Result)
	if err != nil {
		logger.Warn("dropped malformed result blocks", "error", err)
	}

	ev := shopui.ToolCallEvent{
		ID:        call.ToolCallID,
		Seq:       call.Seq,
		ToolName:  call.ToolName,
		Arguments: call.Parameters,
		Result:    blocks,
	}
	tr := a.HandleToolCall(ev)
	a.server.RecordToolCall(ev.ToolName, tr)
}

func (a *App) publish(s shopui.Snapshot) {
	a.server.Publish(a.machine.RenderSnapshot(s))
}

// HandleToolCall applies ev and, when the route carries guidance, hands it
// to the agent as a contextual update.
func (a *App) HandleToolCall(ev shopui.ToolCallEvent) shopui.Transition {
	tr := a.machine.HandleToolCall(ev)
	if !tr.Applied || tr.Guidance == "" || !a.channel.IsConnected() {
		return tr
	}
	if err := a.channel.SendContextualUpdate(tr.Guidance); err != nil {
		a.logger.Warn("send guidance failed", "tool", ev.ToolName, "error", err)
	}
	return tr
}

// StartSession opens the conversation session. The configured agent is
// used when opts names none.
func (a *App) StartSession(ctx context.Context, opts conversation.SessionOptions) error {
	if opts.AgentID == "" {
		opts.AgentID = a.config.AgentID
	}
	if opts.ConnectionType == "" {
		opts.ConnectionType = conversation.ConnectionWebSocket
	}
	return a.channel.StartSession(ctx, opts)
}

// EndSession closes the conversation session.
func (a *App) EndSession() error {
	return a.channel.EndSession()
}

// HandleAction forwards a UI action from the browser.
func (a *App) HandleAction(action shopui.UIAction) error {
	return a.machine.HandleAction(action)
}

// View renders the current state.
func (a *App) View() shopui.ViewModel {
	return a.machine.Render()
}

// Snapshot returns the current machine state.
func (a *App) Snapshot() shopui.Snapshot {
	return a.machine.Snapshot()
}

// Server returns the web server.
func (a *App) Server() *web.Server {
	return a.server
}

var _ web.Backend = (*App)(nil)
