package protocol

import (
	"errors"
	"testing"
	"time"

	"github.com/teslashibe/go-shopview/pkg/shopui"
	"github.com/teslashibe/go-shopview/pkg/storefront"
)

func TestNewMessage(t *testing.T) {
	tests := []struct {
		name    string
		msgType MessageType
		data    any
		wantErr bool
	}{
		{
			name:    "status message",
			msgType: TypeStatus,
			data:    StatusData{Connected: true, View: "results", Version: 3},
		},
		{
			name:    "navigate message",
			msgType: TypeNavigate,
			data:    NavigateData{URL: "https://shop.example/cart", Target: TargetCart},
		},
		{
			name:    "nil data",
			msgType: TypePing,
			data:    nil,
		},
		{
			name:    "unmarshalable data",
			msgType: TypeStatus,
			data:    make(chan int),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewMessage(tt.msgType, tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewMessage() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if msg.Type != tt.msgType {
				t.Errorf("NewMessage() type = %v, want %v", msg.Type, tt.msgType)
			}
			if msg.Timestamp == 0 {
				t.Error("NewMessage() timestamp should be set")
			}
			if tt.data == nil && msg.Data != nil {
				t.Error("NewMessage() data should be empty")
			}
		})
	}
}

func TestParseMessage(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    MessageType
		wantErr bool
	}{
		{"action", `{"type":"action","data":{"type":"prompt","payload":{"prompt":"hi"}}}`, TypeAction, false},
		{"ping without data", `{"type":"ping"}`, TypePing, false},
		{"missing type", `{"data":{}}`, "", true},
		{"invalid json", `{"type":`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := ParseMessage([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && msg.Type != tt.want {
				t.Errorf("Type = %v, want %v", msg.Type, tt.want)
			}
		})
	}
}

func TestViewMessage(t *testing.T) {
	vm := shopui.ViewModel{
		Version: 7,
		View:    shopui.ViewResults,
		Title:   shopui.ViewResults.Title(),
		Items: []shopui.Item{{
			URI: "ui://search/1",
			Model: &storefront.Model{
				Kind:    storefront.KindListing,
				Listing: &storefront.Listing{Products: []storefront.Product{{ID: "p1", Title: "Chiavari Chair"}}},
			},
		}},
	}

	msg, err := NewViewMessage(vm)
	if err != nil {
		t.Fatalf("NewViewMessage() error = %v", err)
	}

	bytes, err := msg.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}
	parsed, err := ParseMessage(bytes)
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}

	got, err := parsed.GetView()
	if err != nil {
		t.Fatalf("GetView() error = %v", err)
	}
	if got.Version != 7 || got.View != shopui.ViewResults {
		t.Errorf("unexpected view %+v", got)
	}
	if len(got.Items) != 1 || got.Items[0].Model == nil || got.Items[0].Model.Listing.Products[0].Title != "Chiavari Chair" {
		t.Errorf("items not preserved: %+v", got.Items)
	}

	if _, err := parsed.GetStatusData(); err == nil {
		t.Error("GetStatusData() should reject a view message")
	}
}

func TestStatusMessage(t *testing.T) {
	msg, err := NewStatusMessage(StatusData{Connected: true, ConversationID: "conv_1", View: "cart", Version: 2, Clients: 3})
	if err != nil {
		t.Fatalf("NewStatusMessage() error = %v", err)
	}

	status, err := msg.GetStatusData()
	if err != nil {
		t.Fatalf("GetStatusData() error = %v", err)
	}
	if !status.Connected || status.ConversationID != "conv_1" || status.Clients != 3 {
		t.Errorf("unexpected status %+v", status)
	}
}

func TestNavigateMessage(t *testing.T) {
	msg, err := NewNavigateMessage("https://shop.example/checkout", TargetCheckout)
	if err != nil {
		t.Fatalf("NewNavigateMessage() error = %v", err)
	}

	nav, err := msg.GetNavigateData()
	if err != nil {
		t.Fatalf("GetNavigateData() error = %v", err)
	}
	if nav.URL != "https://shop.example/checkout" || nav.Target != TargetCheckout {
		t.Errorf("unexpected navigate data %+v", nav)
	}

	if _, err := NewNavigateMessage("", TargetCart); err == nil {
		t.Error("NewNavigateMessage() should reject an empty url")
	}
}

func TestActionMessage(t *testing.T) {
	msg, err := NewActionMessage(shopui.ActionPrompt, map[string]any{"prompt": " show me chairs "})
	if err != nil {
		t.Fatalf("NewActionMessage() error = %v", err)
	}

	bytes, err := msg.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}
	parsed, err := ParseMessage(bytes)
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}

	action, err := parsed.GetActionData()
	if err != nil {
		t.Fatalf("GetActionData() error = %v", err)
	}
	if action.Type != shopui.ActionPrompt {
		t.Errorf("Type = %v, want prompt", action.Type)
	}
	if action.Prompt() != "show me chairs" {
		t.Errorf("Prompt() = %q", action.Prompt())
	}
}

func TestErrorMessage(t *testing.T) {
	msg, err := NewErrorMessage(errors.New("no session"))
	if err != nil {
		t.Fatalf("NewErrorMessage() error = %v", err)
	}
	var data ErrorData
	if err := msg.ParseData(&data); err != nil {
		t.Fatalf("ParseData() error = %v", err)
	}
	if msg.Type != TypeError || data.Message != "no session" {
		t.Errorf("unexpected error message %+v", data)
	}
}

func TestPingPongMessage(t *testing.T) {
	pingMsg, err := NewPingMessage("test-123")
	if err != nil {
		t.Fatalf("NewPingMessage() error = %v", err)
	}

	if pingMsg.Type != TypePing {
		t.Errorf("Type = %v, want %v", pingMsg.Type, TypePing)
	}

	pingData, err := pingMsg.GetPingData()
	if err != nil {
		t.Fatalf("GetPingData() error = %v", err)
	}

	if pingData.ID != "test-123" {
		t.Errorf("ID = %v, want test-123", pingData.ID)
	}

	// Create pong response
	now := time.Now().UnixMilli()
	pongMsg, err := NewPongMessage("test-123", pingData.Timestamp, now)
	if err != nil {
		t.Fatalf("NewPongMessage() error = %v", err)
	}

	pongData, err := pongMsg.GetPongData()
	if err != nil {
		t.Fatalf("GetPongData() error = %v", err)
	}

	if pongData.ID != "test-123" {
		t.Errorf("ID = %v, want test-123", pongData.ID)
	}
	if pongData.LatencyMs < 0 {
		t.Errorf("LatencyMs = %v, should be >= 0", pongData.LatencyMs)
	}
}
