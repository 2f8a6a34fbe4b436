package shopui

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ErrInvalidRoute is returned, wrapped, for malformed route definitions.
var ErrInvalidRoute = errors.New("shopui: invalid route")

// Tool names served by the storefront MCP server.
const (
	ToolSearchCatalog  = "search_shop_catalog"
	ToolProductDetails = "get_product_details"
	ToolUpdateCart     = "update_cart"
	ToolGetCart        = "get_cart"
)

// Route maps a tool name to the view its results are shown in.
type Route struct {
	Tool string `yaml:"tool"`
	View View   `yaml:"view"`

	// Single marks views that show only the first resource.
	Single bool `yaml:"single"`

	// Guidance is injected into the tool result for the agent.
	Guidance string `yaml:"guidance"`
}

// Routes is a routing table keyed by tool name.
type Routes map[string]Route

// Lookup returns the route for tool.
func (r Routes) Lookup(tool string) (Route, bool) {
	route, ok := r[tool]
	return route, ok
}

const (
	searchGuidance = "The matching products are already on the user's screen. " +
		"Do not read out product names or prices. Say briefly how many options you found " +
		"and ask which one they would like to hear more about."
	productGuidance = "The product details page is on screen. Summarize the product in one or two " +
		"sentences and mention that the available variants can be selected on the page."
	cartGuidance = "The updated cart is on screen. Confirm the change in one sentence without " +
		"listing every item, then offer to continue shopping or go to checkout."
)

// DefaultRoutes returns the routes for the storefront MCP tools.
func DefaultRoutes() Routes {
	return Routes{
		ToolSearchCatalog:  {Tool: ToolSearchCatalog, View: ViewResults, Guidance: searchGuidance},
		ToolProductDetails: {Tool: ToolProductDetails, View: ViewProduct, Single: true, Guidance: productGuidance},
		ToolUpdateCart:     {Tool: ToolUpdateCart, View: ViewCart, Guidance: cartGuidance},
		ToolGetCart:        {Tool: ToolGetCart, View: ViewCart, Guidance: cartGuidance},
	}
}

type routeFile struct {
	// Replace drops the default routes instead of overriding them.
	Replace bool    `yaml:"replace"`
	Routes  []Route `yaml:"routes"`
}

// ParseRoutes loads a YAML route file and merges it over DefaultRoutes.
//
//	routes:
//	  - tool: search_shop_catalog
//	    view: results
//	    guidance: Do not read the list aloud.
func ParseRoutes(data []byte) (Routes, error) {
	var f routeFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRoute, err)
	}

	routes := DefaultRoutes()
	if f.Replace {
		routes = Routes{}
	}
	seen := make(map[string]bool, len(f.Routes))
	for i, r := range f.Routes {
		if r.Tool == "" {
			return nil, fmt.Errorf("%w: entry %d has no tool", ErrInvalidRoute, i)
		}
		if seen[r.Tool] {
			return nil, fmt.Errorf("%w: duplicate tool %q", ErrInvalidRoute, r.Tool)
		}
		seen[r.Tool] = true

		v, err := ParseView(string(r.View))
		if err != nil {
			return nil, fmt.Errorf("%w: tool %q: %v", ErrInvalidRoute, r.Tool, err)
		}
		r.View = v
		routes[r.Tool] = r
	}
	if len(routes) == 0 {
		return nil, fmt.Errorf("%w: no routes defined", ErrInvalidRoute)
	}
	return routes, nil
}
