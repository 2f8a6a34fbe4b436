// Package shopui turns tool-call events from a voice shopping conversation
// into on-screen views.
//
// A Machine receives ToolCallEvents from the conversation channel, normalizes
// their result blocks, injects agent guidance into the JSON payload and moves
// between the idle, results, product and cart views. View, resource set and
// active resource always change together.
//
// Example usage:
//
//	m := shopui.NewMachine(
//	    shopui.WithSession(channel),
//	    shopui.OnChange(func(s shopui.Snapshot) { broadcast(s) }),
//	)
//	tr := m.HandleToolCall(ev)
//	if tr.Applied {
//	    log.Info("view changed", "from", tr.From, "to", tr.To)
//	}
package shopui

import (
	"encoding/json"
	"errors"
	"fmt"
)

// View is the screen mode currently displayed.
type View string

const (
	ViewIdle    View = "idle"
	ViewResults View = "results"
	ViewProduct View = "product"
	ViewCart    View = "cart"
)

func (v View) String() string {
	return string(v)
}

// Title returns the page heading shown above the view content.
func (v View) Title() string {
	switch v {
	case ViewResults:
		return "Recommended options"
	case ViewProduct:
		return "Product details"
	case ViewCart:
		return "Your cart"
	default:
		return "Talk to Heba"
	}
}

// ParseView converts a view name to a View.
func ParseView(s string) (View, error) {
	switch v := View(s); v {
	case ViewIdle, ViewResults, ViewProduct, ViewCart:
		return v, nil
	}
	return "", fmt.Errorf("unknown view %q", s)
}

// Result block types.
const (
	BlockText     = "text"
	BlockResource = "resource"
)

// UIResource is a renderable payload returned by a backend tool. When
// MimeType indicates JSON, Text holds a JSON-encoded domain object.
type UIResource struct {
	URI      string `json:"uri,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
}

// ResultBlock is one element of a tool-call result, discriminated by Type.
// Blocks of unknown type are carried through but never used.
type ResultBlock struct {
	Type     string      `json:"type"`
	Text     string      `json:"text,omitempty"`
	Resource *UIResource `json:"resource,omitempty"`
}

// ToolCallEvent is a tool invocation resolved by the conversation channel.
type ToolCallEvent struct {
	// ID is the channel's tool call identifier. Optional.
	ID string `json:"id,omitempty"`

	// Seq is a monotonic sequence number assigned by the channel.
	// Zero means the event is unsequenced.
	Seq uint64 `json:"seq,omitempty"`

	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Result    []ResultBlock  `json:"result"`
}

// ErrInvalidBlock is returned, wrapped, for result blocks that fail to decode.
var ErrInvalidBlock = errors.New("shopui: invalid result block")

// DecodeBlocks decodes each raw block independently. Blocks that fail to
// decode are left out and reported in the returned error; their siblings are
// still returned.
func DecodeBlocks(raw []json.RawMessage) ([]ResultBlock, error) {
	blocks := make([]ResultBlock, 0, len(raw))
	var errs []error
	for i, r := range raw {
		var b ResultBlock
		if err := json.Unmarshal(r, &b); err != nil {
			errs = append(errs, fmt.Errorf("%w %d: %v", ErrInvalidBlock, i, err))
			continue
		}
		blocks = append(blocks, b)
	}
	return blocks, errors.Join(errs...)
}
