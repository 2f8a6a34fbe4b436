package shopui

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/teslashibe/go-shopview/pkg/storefront"
)

func resourceBlock(uri, text string) ResultBlock {
	return ResultBlock{Type: BlockResource, Resource: &UIResource{URI: uri, MimeType: "application/json", Text: text}}
}

func textBlock(text string) ResultBlock {
	return ResultBlock{Type: BlockText, Text: text}
}

type fakeSession struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (s *fakeSession) SendUserMessage(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, text)
	return nil
}

func TestMachineInitialState(t *testing.T) {
	m := NewMachine()
	s := m.Snapshot()
	assert.Equal(t, ViewIdle, s.View)
	assert.Empty(t, s.Resources)
	assert.Nil(t, s.Active)
	assert.False(t, s.Connected)
	assert.Zero(t, s.Version)
}

func TestMachineSearch(t *testing.T) {
	m := NewMachine()
	tr := m.HandleToolCall(ToolCallEvent{
		ToolName: ToolSearchCatalog,
		Result: []ResultBlock{
			textBlock(`{"products":[{"id":1}],"pagination":{"page":1}}`),
			resourceBlock("ui://product/1", `{"product":{"id":1}}`),
			resourceBlock("ui://product/2", `{"product":{"id":2}}`),
		},
	})

	require.True(t, tr.Applied)
	assert.Equal(t, ViewIdle, tr.From)
	assert.Equal(t, ViewResults, tr.To)
	assert.NotEmpty(t, tr.Guidance)

	s := m.Snapshot()
	assert.Equal(t, ViewResults, s.View)
	require.Len(t, s.Resources, 2)
	assert.Equal(t, "ui://product/1", s.Resources[0].URI)
	assert.Equal(t, "ui://product/2", s.Resources[1].URI)
	assert.Nil(t, s.Active)

	// The data block reaches the agent with guidance and untouched fields.
	agentText := tr.Result[0].Text
	assert.Equal(t, tr.Guidance, gjson.Get(agentText, InstructionsKey).String())
	assert.Equal(t, `[{"id":1}]`, gjson.Get(agentText, "products").Raw)
	assert.Equal(t, `{"page":1}`, gjson.Get(agentText, "pagination").Raw)

	// Stored resources are kept as delivered.
	for _, r := range s.Resources {
		assert.False(t, gjson.Get(r.Text, InstructionsKey).Exists(), r.URI)
	}
}

func TestMachineProductActiveIsFirstResource(t *testing.T) {
	m := NewMachine()
	tr := m.HandleToolCall(ToolCallEvent{
		ToolName: ToolProductDetails,
		Result: []ResultBlock{
			resourceBlock("ui://product/7", `{"product":{"id":7}}`),
			resourceBlock("ui://product/8", `{"product":{"id":8}}`),
		},
	})
	require.True(t, tr.Applied)

	s := m.Snapshot()
	assert.Equal(t, ViewProduct, s.View)
	require.NotNil(t, s.Active)
	assert.Equal(t, "ui://product/7", s.Active.URI)
	assert.Len(t, s.Resources, 2)
	assert.Empty(t, tr.Guidance, "no text block to augment")
}

func TestMachineCartClearsActive(t *testing.T) {
	m := NewMachine()
	m.HandleToolCall(ToolCallEvent{
		ToolName: ToolProductDetails,
		Result:   []ResultBlock{resourceBlock("ui://product/7", `{"product":{}}`)},
	})
	tr := m.HandleToolCall(ToolCallEvent{
		ToolName: ToolUpdateCart,
		Result:   []ResultBlock{resourceBlock("ui://cart", `{"cart":{}}`)},
	})

	require.True(t, tr.Applied)
	assert.Equal(t, ViewProduct, tr.From)
	s := m.Snapshot()
	assert.Equal(t, ViewCart, s.View)
	assert.Nil(t, s.Active)
	assert.Equal(t, []UIResource{{URI: "ui://cart", MimeType: "application/json", Text: `{"cart":{}}`}}, s.Resources)
}

func TestMachineNoTransition(t *testing.T) {
	m := NewMachine()
	m.HandleToolCall(ToolCallEvent{
		ToolName: ToolSearchCatalog,
		Result:   []ResultBlock{resourceBlock("ui://a", `{"products":[]}`)},
	})
	before := m.Snapshot()

	tests := []struct {
		name   string
		ev     ToolCallEvent
		reason string
	}{
		{"empty result", ToolCallEvent{ToolName: ToolUpdateCart}, ReasonNoUsableBlocks},
		{"undecodable text only", ToolCallEvent{ToolName: ToolUpdateCart, Result: []ResultBlock{textBlock("oops")}}, ReasonNoUsableBlocks},
		{"null text only", ToolCallEvent{ToolName: ToolUpdateCart, Result: []ResultBlock{textBlock("null")}}, ReasonNoUsableBlocks},
		{"string text only", ToolCallEvent{ToolName: ToolUpdateCart, Result: []ResultBlock{textBlock(`"hi"`)}}, ReasonNoUsableBlocks},
		{"array text only", ToolCallEvent{ToolName: ToolUpdateCart, Result: []ResultBlock{textBlock("[]")}}, ReasonNoUsableBlocks},
		{"number text only", ToolCallEvent{ToolName: ToolUpdateCart, Result: []ResultBlock{textBlock("42")}}, ReasonNoUsableBlocks},
		{"unknown block types", ToolCallEvent{ToolName: ToolUpdateCart, Result: []ResultBlock{{Type: "audio"}}}, ReasonNoUsableBlocks},
		{"unrecognized tool", ToolCallEvent{ToolName: "get_weather", Result: []ResultBlock{resourceBlock("ui://w", "{}")}}, ReasonUnrecognizedTool},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := m.HandleToolCall(tt.ev)
			assert.False(t, tr.Applied)
			assert.Equal(t, tt.reason, tr.Reason)
			assert.Equal(t, tt.ev.Result, tr.Result)
			assert.Equal(t, before, m.Snapshot())
		})
	}
}

func TestMachineTextOnlyResult(t *testing.T) {
	m := NewMachine()
	tr := m.HandleToolCall(ToolCallEvent{
		ToolName: ToolUpdateCart,
		Result:   []ResultBlock{textBlock(`{"cart":{"total":130}}`)},
	})
	require.True(t, tr.Applied)

	s := m.Snapshot()
	require.Len(t, s.Resources, 1)
	r := s.Resources[0]
	assert.Equal(t, "ui://update_cart/result", r.URI)
	assert.Equal(t, "application/json", r.MimeType)
	assert.Equal(t, "130", gjson.Get(r.Text, "cart.total").Raw)
	assert.NotEmpty(t, gjson.Get(r.Text, InstructionsKey).String())
}

func TestMachineUnrecognizedShapeStillTransitions(t *testing.T) {
	m := NewMachine()
	tr := m.HandleToolCall(ToolCallEvent{
		ToolName: ToolSearchCatalog,
		Result:   []ResultBlock{resourceBlock("ui://html", `{"html":"<div/>"}`)},
	})
	require.True(t, tr.Applied)

	vm := m.Render()
	assert.Equal(t, ViewResults, vm.View)
	require.Len(t, vm.Items, 1)
	assert.Nil(t, vm.Items[0].Model)
	require.NotNil(t, vm.Items[0].Raw)
	assert.Equal(t, "ui://html", vm.Items[0].Raw.URI)
}

func TestMachineConnectDisconnect(t *testing.T) {
	m := NewMachine()
	m.HandleToolCall(ToolCallEvent{
		ToolName: ToolProductDetails,
		Result:   []ResultBlock{resourceBlock("ui://p", `{"product":{}}`)},
	})

	m.Connect("conv_123")
	s := m.Snapshot()
	assert.Equal(t, ViewIdle, s.View)
	assert.True(t, s.Connected)
	assert.Equal(t, "conv_123", s.ConversationID)
	assert.Len(t, s.Resources, 1, "connect keeps resources")

	for _, prior := range []string{ToolSearchCatalog, ToolProductDetails, ToolUpdateCart} {
		m.HandleToolCall(ToolCallEvent{ToolName: prior, Result: []ResultBlock{resourceBlock("ui://x", "{}")}})
		m.Disconnect()

		s = m.Snapshot()
		assert.Equal(t, ViewIdle, s.View, prior)
		assert.Empty(t, s.Resources, prior)
		assert.NotNil(t, s.Resources, prior)
		assert.Nil(t, s.Active, prior)
		assert.False(t, s.Connected, prior)
	}
}

func TestMachineSequencing(t *testing.T) {
	m := NewMachine()
	ev := func(id string, seq uint64, uri string) ToolCallEvent {
		return ToolCallEvent{
			ID:       id,
			Seq:      seq,
			ToolName: ToolSearchCatalog,
			Result:   []ResultBlock{resourceBlock(uri, `{"products":[]}`)},
		}
	}

	require.True(t, m.HandleToolCall(ev("a", 2, "ui://2")).Applied)

	tr := m.HandleToolCall(ev("b", 1, "ui://1"))
	assert.False(t, tr.Applied)
	assert.Equal(t, ReasonStale, tr.Reason)

	tr = m.HandleToolCall(ev("a", 0, "ui://again"))
	assert.False(t, tr.Applied)
	assert.Equal(t, ReasonDuplicate, tr.Reason)
	assert.Equal(t, "ui://2", m.Snapshot().Resources[0].URI)

	// Unsequenced events are last-write-wins.
	require.True(t, m.HandleToolCall(ev("", 0, "ui://3")).Applied)
	require.True(t, m.HandleToolCall(ev("", 0, "ui://4")).Applied)
	assert.Equal(t, "ui://4", m.Snapshot().Resources[0].URI)

	// A new session restarts sequencing.
	m.Connect("conv_2")
	assert.True(t, m.HandleToolCall(ev("a", 1, "ui://5")).Applied)
}

func TestMachineOnChangeVersions(t *testing.T) {
	var (
		mu       sync.Mutex
		versions []uint64
	)
	m := NewMachine(OnChange(func(s Snapshot) {
		mu.Lock()
		versions = append(versions, s.Version)
		mu.Unlock()
	}))

	m.Connect("c")
	m.HandleToolCall(ToolCallEvent{ToolName: ToolUpdateCart})
	m.HandleToolCall(ToolCallEvent{ToolName: ToolUpdateCart, Result: []ResultBlock{resourceBlock("ui://cart", "{}")}})
	m.ReportError(errors.New("socket hiccup"))
	m.ReportMessage("agent", "hello")
	m.Disconnect()

	assert.Equal(t, []uint64{1, 2, 3}, versions)
}

func TestMachineReportErrorKeepsView(t *testing.T) {
	m := NewMachine()
	m.HandleToolCall(ToolCallEvent{ToolName: ToolUpdateCart, Result: []ResultBlock{resourceBlock("ui://cart", "{}")}})
	before := m.Snapshot()

	m.ReportError(errors.New("transport closed"))
	m.ReportError(nil)
	assert.Equal(t, before, m.Snapshot())
}

func TestMachineSnapshotNeverTorn(t *testing.T) {
	m := NewMachine()

	// Every event tags its resources with the view it belongs to, so a
	// snapshot pairing a view with another view's resources is torn.
	tools := []struct {
		tool string
		view View
	}{
		{ToolSearchCatalog, ViewResults},
		{ToolProductDetails, ViewProduct},
		{ToolUpdateCart, ViewCart},
	}

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				tt := tools[(w+i)%len(tools)]
				m.HandleToolCall(ToolCallEvent{
					ToolName: tt.tool,
					Result: []ResultBlock{
						resourceBlock(fmt.Sprintf("ui://%s/%d", tt.view, i), "{}"),
						resourceBlock(fmt.Sprintf("ui://%s/%d/b", tt.view, i), "{}"),
					},
				})
			}
		}(w)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	for {
		s := m.Snapshot()
		for _, r := range s.Resources {
			assert.Contains(t, r.URI, "ui://"+string(s.View)+"/")
		}
		if s.View == ViewProduct {
			require.NotNil(t, s.Active)
			assert.Equal(t, s.Resources[0], *s.Active)
		} else {
			assert.Nil(t, s.Active)
		}
		select {
		case <-done:
			return
		default:
		}
	}
}

func TestMachineHandleAction(t *testing.T) {
	sess := &fakeSession{}
	m := NewMachine(WithSession(sess))

	require.NoError(t, m.HandleAction(UIAction{Type: ActionPrompt, Payload: map[string]any{"prompt": " Show me gold chairs "}}))
	require.NoError(t, m.HandleAction(UIAction{Type: "link", Payload: map[string]any{"url": "https://x"}}))
	require.NoError(t, m.HandleAction(UIAction{Type: "tool", Payload: map[string]any{"prompt": "ignored"}}))
	assert.Equal(t, []string{"Show me gold chairs"}, sess.sent)

	assert.ErrorIs(t, m.HandleAction(UIAction{Type: ActionPrompt}), ErrEmptyPrompt)

	sess.err = errors.New("not connected")
	err := m.HandleAction(UIAction{Type: ActionPrompt, Payload: map[string]any{"prompt": "hi"}})
	assert.ErrorIs(t, err, sess.err)

	noSession := NewMachine()
	assert.ErrorIs(t, noSession.HandleAction(UIAction{Type: ActionPrompt, Payload: map[string]any{"prompt": "hi"}}), ErrNoSession)
}

func TestMachineRender(t *testing.T) {
	m := NewMachine(WithStorefront(storefront.New(storefront.Options{DefaultCurrency: "USD"})))

	m.HandleToolCall(ToolCallEvent{
		ToolName: ToolSearchCatalog,
		Result: []ResultBlock{
			resourceBlock("ui://list", `{"products":[{"title":"Chair","price":13}]}`),
			{Type: BlockResource, Resource: &UIResource{URI: "ui://html", MimeType: "text/html", Text: "<p>hi</p>"}},
		},
	})
	vm := m.Render()
	assert.Equal(t, "Recommended options", vm.Title)
	require.Len(t, vm.Items, 2)
	require.NotNil(t, vm.Items[0].Model)
	assert.Equal(t, storefront.KindListing, vm.Items[0].Model.Kind)
	assert.Equal(t, "USD 13", vm.Items[0].Model.Listing.Products[0].Price)
	require.NotNil(t, vm.Items[1].Raw)
	assert.Equal(t, "text/html", vm.Items[1].Raw.MimeType)

	m.HandleToolCall(ToolCallEvent{
		ToolName: ToolProductDetails,
		Result: []ResultBlock{
			resourceBlock("ui://p/1", `{"product":{"title":"Table"}}`),
			resourceBlock("ui://p/2", `{"product":{"title":"Other"}}`),
		},
	})
	vm = m.Render()
	require.Len(t, vm.Items, 1)
	assert.Equal(t, "ui://p/1", vm.Items[0].URI)
	assert.Equal(t, "Table", vm.Items[0].Model.Detail.Product.Title)
}
