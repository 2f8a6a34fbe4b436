package shopui

import (
	"errors"
	"fmt"
	"strings"
)

// ActionPrompt is the only UI action type the machine acts on.
const ActionPrompt = "prompt"

var (
	// ErrNoSession is returned when a prompt arrives without a session.
	ErrNoSession = errors.New("shopui: no session")

	// ErrEmptyPrompt is returned for prompt actions without text.
	ErrEmptyPrompt = errors.New("shopui: empty prompt")
)

// UIAction is a user action reported by a rendered resource.
type UIAction struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Prompt returns the trimmed payload.prompt text.
func (a UIAction) Prompt() string {
	s, _ := a.Payload["prompt"].(string)
	return strings.TrimSpace(s)
}

// HandleAction forwards prompt actions to the session as a user message.
// Other action types are ignored. The state lock is not held while the
// session is called.
func (m *Machine) HandleAction(a UIAction) error {
	if a.Type != ActionPrompt {
		m.logger.Debug("ignoring ui action", "type", a.Type)
		return nil
	}
	prompt := a.Prompt()
	if prompt == "" {
		return ErrEmptyPrompt
	}
	if m.session == nil {
		return ErrNoSession
	}
	if err := m.session.SendUserMessage(prompt); err != nil {
		return fmt.Errorf("shopui: forward prompt: %w", err)
	}
	m.logger.Debug("forwarded prompt", "prompt", prompt)
	return nil
}
