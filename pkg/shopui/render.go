package shopui

import (
	"strings"

	"github.com/teslashibe/go-shopview/pkg/storefront"
)

// Item is one rendered resource: a canonical model when the payload shape is
// recognized, otherwise the raw resource for the generic renderer.
type Item struct {
	URI   string            `json:"uri,omitempty"`
	Model *storefront.Model `json:"model,omitempty"`
	Raw   *UIResource       `json:"raw,omitempty"`
}

// ViewModel is what a renderer needs to draw the current view.
type ViewModel struct {
	Version   uint64 `json:"version"`
	View      View   `json:"view"`
	Title     string `json:"title"`
	Connected bool   `json:"connected"`
	Items     []Item `json:"items"`
}

// Render renders the current state.
func (m *Machine) Render() ViewModel {
	return m.RenderSnapshot(m.Snapshot())
}

// RenderSnapshot renders s with the machine's storefront adapter.
func (m *Machine) RenderSnapshot(s Snapshot) ViewModel {
	return Render(s, m.adapter)
}

// Render builds a ViewModel from s. The product view shows only the active
// resource; the other views show every resource in order.
func Render(s Snapshot, a *storefront.Adapter) ViewModel {
	vm := ViewModel{
		Version:   s.Version,
		View:      s.View,
		Title:     s.View.Title(),
		Connected: s.Connected,
		Items:     []Item{},
	}

	resources := s.Resources
	if s.View == ViewProduct && s.Active != nil {
		resources = []UIResource{*s.Active}
	}
	for _, r := range resources {
		vm.Items = append(vm.Items, renderItem(r, a))
	}
	return vm
}

func renderItem(r UIResource, a *storefront.Adapter) Item {
	item := Item{URI: r.URI}
	if isJSON(r.MimeType) {
		if model, ok := a.Adapt(r.Text); ok {
			item.Model = &model
			return item
		}
	}
	raw := r
	item.Raw = &raw
	return item
}

// isJSON reports whether a resource may carry a domain JSON document.
// Resources without a MIME type are probed too.
func isJSON(mime string) bool {
	if mime == "" {
		return true
	}
	mime = strings.ToLower(mime)
	return strings.Contains(mime, "json") || strings.HasPrefix(mime, "text/plain")
}
