package web

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-shopview/pkg/conversation"
	"github.com/teslashibe/go-shopview/pkg/hub"
	"github.com/teslashibe/go-shopview/pkg/protocol"
	"github.com/teslashibe/go-shopview/pkg/shopui"
)

// StatusResponse is the body of GET /api/status
type StatusResponse struct {
	protocol.StatusData
	Hub hub.Stats `json:"hub"`
}

// TransitionResponse is the body of POST /api/toolcalls
type TransitionResponse struct {
	Applied  bool                 `json:"applied"`
	Reason   string               `json:"reason,omitempty"`
	From     shopui.View          `json:"from"`
	To       shopui.View          `json:"to"`
	Guidance string               `json:"guidance,omitempty"`
	Version  uint64               `json:"version"`
	Result   []shopui.ResultBlock `json:"result,omitempty"`
}

// handleView returns the current view model
func (s *Server) handleView(c *fiber.Ctx) error {
	return c.JSON(s.backend.View())
}

// handleStatus returns session status and hub stats
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(StatusResponse{
		StatusData: s.status(),
		Hub:        s.viewHub.Stats(),
	})
}

// handleGetConversation returns the recent transcript
func (s *Server) handleGetConversation(c *fiber.Ctx) error {
	s.conversationMu.RLock()
	defer s.conversationMu.RUnlock()
	return c.JSON(s.conversation)
}

// handleGetToolCalls returns recently handled tool calls
func (s *Server) handleGetToolCalls(c *fiber.Ctx) error {
	s.toolCallsMu.RLock()
	defer s.toolCallsMu.RUnlock()
	return c.JSON(s.toolCalls)
}

// handleStartSession opens the conversation session
func (s *Server) handleStartSession(c *fiber.Ctx) error {
	var opts conversation.SessionOptions
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&opts); err != nil {
			return errorJSON(c, fiber.StatusBadRequest, err)
		}
	}
	if err := s.backend.StartSession(c.UserContext(), opts); err != nil {
		s.logger.Warn("start session failed", "error", err)
		return errorJSON(c, sessionErrorStatus(err), err)
	}

	snap := s.backend.Snapshot()
	return c.JSON(fiber.Map{
		"status":          "started",
		"conversation_id": snap.ConversationID,
	})
}

// handleEndSession closes the conversation session
func (s *Server) handleEndSession(c *fiber.Ctx) error {
	if err := s.backend.EndSession(); err != nil {
		return errorJSON(c, fiber.StatusBadGateway, err)
	}
	return c.JSON(fiber.Map{"status": "ended"})
}

// handleAction forwards a UI action from a rendered resource
func (s *Server) handleAction(c *fiber.Ctx) error {
	var action shopui.UIAction
	if err := c.BodyParser(&action); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}
	if err := s.forwardAction(action); err != nil {
		return errorJSON(c, actionErrorStatus(err), err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "accepted"})
}

// handleInjectToolCall applies a tool call as if the agent had made it
func (s *Server) handleInjectToolCall(c *fiber.Ctx) error {
	var ev shopui.ToolCallEvent
	if err := c.BodyParser(&ev); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}
	if ev.ToolName == "" {
		return errorJSON(c, fiber.StatusBadRequest, errors.New("tool_name is required"))
	}

	tr := s.backend.HandleToolCall(ev)
	s.RecordToolCall(ev.ToolName, tr)

	return c.JSON(TransitionResponse{
		Applied:  tr.Applied,
		Reason:   tr.Reason,
		From:     tr.From,
		To:       tr.To,
		Guidance: tr.Guidance,
		Version:  tr.Snapshot.Version,
		Result:   tr.Result,
	})
}

// handleViewWS streams view changes. The current view is sent on connect.
func (s *Server) handleViewWS(c *websocket.Conn) {
	client := hub.NewClient(s.viewHub, c)
	if client == nil {
		return
	}
	client.Run()
}

// welcome sends the current view and status to a new browser. Browsers
// compare view versions, so a broadcast overtaking it is harmless.
func (s *Server) welcome(c *hub.Client) {
	if msg, err := protocol.NewViewMessage(s.backend.View()); err == nil {
		s.sendTo(c, msg)
	}
	if msg, err := protocol.NewStatusMessage(s.status()); err == nil {
		s.sendTo(c, msg)
	}
}

// handleClientMessage handles action and ping messages from browsers
func (s *Server) handleClientMessage(c *hub.Client, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		s.logger.Debug("invalid client message", "client", c.ID, "error", err)
		s.replyError(c, err)
		return
	}

	switch msg.Type {
	case protocol.TypeAction:
		action, err := msg.GetActionData()
		if err != nil {
			s.replyError(c, err)
			return
		}
		if err := s.forwardAction(*action); err != nil {
			s.replyError(c, err)
		}

	case protocol.TypePing:
		ping, err := msg.GetPingData()
		if err != nil {
			s.replyError(c, err)
			return
		}
		pong, err := protocol.NewPongMessage(ping.ID, ping.Timestamp, time.Now().UnixMilli())
		if err == nil {
			s.sendTo(c, pong)
		}

	default:
		s.logger.Debug("ignoring client message", "client", c.ID, "type", msg.Type)
	}
}

func (s *Server) replyError(c *hub.Client, err error) {
	msg, encErr := protocol.NewErrorMessage(err)
	if encErr != nil {
		return
	}
	s.sendTo(c, msg)
}

func (s *Server) sendTo(c *hub.Client, msg *protocol.Message) {
	data, err := msg.Bytes()
	if err != nil {
		s.logger.Error("encode message", "type", msg.Type, "error", err)
		return
	}
	s.viewHub.SendTo(c, hub.NewJSONMessage(data))
}

func errorJSON(c *fiber.Ctx, status int, err error) error {
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func sessionErrorStatus(err error) int {
	switch {
	case errors.Is(err, conversation.ErrAlreadyConnected):
		return fiber.StatusConflict
	case errors.Is(err, conversation.ErrMissingAgentID),
		errors.Is(err, conversation.ErrTransportNotSupported):
		return fiber.StatusBadRequest
	}
	var apiErr *conversation.APIError
	if errors.As(err, &apiErr) && (apiErr.StatusCode == fiber.StatusUnauthorized || apiErr.StatusCode == fiber.StatusForbidden) {
		return fiber.StatusUnauthorized
	}
	return fiber.StatusBadGateway
}

func actionErrorStatus(err error) int {
	switch {
	case errors.Is(err, ErrTooManyActions):
		return fiber.StatusTooManyRequests
	case errors.Is(err, shopui.ErrEmptyPrompt):
		return fiber.StatusBadRequest
	case errors.Is(err, shopui.ErrNoSession), conversation.IsNotConnected(err):
		return fiber.StatusConflict
	}
	return fiber.StatusBadGateway
}
