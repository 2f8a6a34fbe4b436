package shopui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRoutes(t *testing.T) {
	r := DefaultRoutes()

	tests := []struct {
		tool   string
		view   View
		single bool
	}{
		{ToolSearchCatalog, ViewResults, false},
		{ToolProductDetails, ViewProduct, true},
		{ToolUpdateCart, ViewCart, false},
		{ToolGetCart, ViewCart, false},
	}
	for _, tt := range tests {
		route, ok := r.Lookup(tt.tool)
		require.True(t, ok, tt.tool)
		assert.Equal(t, tt.view, route.View, tt.tool)
		assert.Equal(t, tt.single, route.Single, tt.tool)
		assert.NotEmpty(t, route.Guidance, tt.tool)
	}

	_, ok := r.Lookup("get_weather")
	assert.False(t, ok)
}

func TestParseRoutes(t *testing.T) {
	t.Run("merges over defaults", func(t *testing.T) {
		r, err := ParseRoutes([]byte(`
routes:
  - tool: search_shop_catalog
    view: results
    guidance: Keep it short.
  - tool: get_collection
    view: results
`))
		require.NoError(t, err)
		assert.Equal(t, "Keep it short.", r[ToolSearchCatalog].Guidance)
		assert.Equal(t, ViewResults, r["get_collection"].View)
		assert.Contains(t, r, ToolUpdateCart)
	})

	t.Run("replace", func(t *testing.T) {
		r, err := ParseRoutes([]byte(`
replace: true
routes:
  - tool: lookup_item
    view: product
    single: true
`))
		require.NoError(t, err)
		assert.Len(t, r, 1)
		assert.True(t, r["lookup_item"].Single)
	})

	errorCases := map[string]string{
		"bad yaml":     "routes: [",
		"missing tool": "routes:\n  - view: cart\n",
		"unknown view": "routes:\n  - tool: x\n    view: checkout\n",
		"duplicate":    "routes:\n  - tool: x\n    view: cart\n  - tool: x\n    view: results\n",
		"empty":        "replace: true\n",
	}
	for name, in := range errorCases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRoutes([]byte(in))
			assert.ErrorIs(t, err, ErrInvalidRoute)
		})
	}
}

func TestViewTitle(t *testing.T) {
	assert.Equal(t, "Talk to Heba", ViewIdle.Title())
	assert.Equal(t, "Recommended options", ViewResults.Title())
	assert.Equal(t, "Product details", ViewProduct.Title())
	assert.Equal(t, "Your cart", ViewCart.Title())

	v, err := ParseView("cart")
	require.NoError(t, err)
	assert.Equal(t, ViewCart, v)
	_, err = ParseView("home")
	assert.Error(t, err)
}
