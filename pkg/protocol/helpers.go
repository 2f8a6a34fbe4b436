package protocol

import (
	"fmt"
	"time"

	"github.com/teslashibe/go-shopview/pkg/shopui"
)

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewViewMessage creates a view message
func NewViewMessage(vm shopui.ViewModel) (*Message, error) {
	return NewMessage(TypeView, vm)
}

// NewStatusMessage creates a status message
func NewStatusMessage(status StatusData) (*Message, error) {
	return NewMessage(TypeStatus, status)
}

// NewNavigateMessage creates a navigate message
func NewNavigateMessage(url, target string) (*Message, error) {
	if url == "" {
		return nil, fmt.Errorf("navigate: empty url")
	}
	return NewMessage(TypeNavigate, NavigateData{URL: url, Target: target})
}

// NewErrorMessage creates an error message
func NewErrorMessage(err error) (*Message, error) {
	return NewMessage(TypeError, ErrorData{Message: err.Error()})
}

// NewActionMessage creates an action message
func NewActionMessage(actionType string, payload map[string]any) (*Message, error) {
	return NewMessage(TypeAction, ActionData{Type: actionType, Payload: payload})
}

// NewPingMessage creates a ping message
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{
		ID:        id,
		Timestamp: time.Now().UnixMilli(),
	})
}

// NewPongMessage creates a pong response
func NewPongMessage(id string, pingTS, now int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    now,
		LatencyMs: now - pingTS,
	})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetView extracts the view model from a view message
func (m *Message) GetView() (*shopui.ViewModel, error) {
	if m.Type != TypeView {
		return nil, fmt.Errorf("expected view message, got %s", m.Type)
	}
	var vm shopui.ViewModel
	if err := m.ParseData(&vm); err != nil {
		return nil, err
	}
	return &vm, nil
}

// GetStatusData extracts StatusData from a status message
func (m *Message) GetStatusData() (*StatusData, error) {
	if m.Type != TypeStatus {
		return nil, fmt.Errorf("expected status message, got %s", m.Type)
	}
	var data StatusData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetNavigateData extracts NavigateData from a navigate message
func (m *Message) GetNavigateData() (*NavigateData, error) {
	if m.Type != TypeNavigate {
		return nil, fmt.Errorf("expected navigate message, got %s", m.Type)
	}
	var data NavigateData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetActionData extracts the UI action from an action message
func (m *Message) GetActionData() (*shopui.UIAction, error) {
	if m.Type != TypeAction {
		return nil, fmt.Errorf("expected action message, got %s", m.Type)
	}
	var data ActionData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &shopui.UIAction{Type: data.Type, Payload: data.Payload}, nil
}

// GetPingData extracts PingData from a ping message
func (m *Message) GetPingData() (*PingData, error) {
	if m.Type != TypePing {
		return nil, fmt.Errorf("expected ping message, got %s", m.Type)
	}
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPongData extracts PongData from a pong message
func (m *Message) GetPongData() (*PongData, error) {
	if m.Type != TypePong {
		return nil, fmt.Errorf("expected pong message, got %s", m.Type)
	}
	var data PongData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
