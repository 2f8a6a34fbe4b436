package shop

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/teslashibe/go-shopview/pkg/conversation"
	"github.com/teslashibe/go-shopview/pkg/protocol"
)

// Client tool names registered with the agent.
const (
	ToolAddProductToCart      = "addProductToCart"
	ToolBrowseProductIDByName = "browseProductIdByName"
	ToolOpenCart              = "open_cart"
	ToolRedirectToCheckout    = "redirect_to_checkout"
)

// Navigator opens storefront URLs in the connected browsers.
type Navigator interface {
	Navigate(url, target string) error
}

// ToolsConfig holds dependencies for the client tools.
type ToolsConfig struct {
	Navigator Navigator
	Logger    *slog.Logger
}

// Tools returns the client tools the agent may call. None of them change
// the view state.
func Tools(cfg ToolsConfig) []conversation.Tool {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "tools")

	navigate := func(args map[string]any, key, target string) error {
		raw, _ := args[key].(string)
		u, err := storefrontURL(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if cfg.Navigator == nil {
			logger.Warn("no navigator, skipping", "target", target, "url", u)
			return nil
		}
		return cfg.Navigator.Navigate(u, target)
	}

	return []conversation.Tool{
		{
			Name:        ToolAddProductToCart,
			Description: "Acknowledge that a product was added to the cart.",
			Parameters: map[string]any{
				"productId": map[string]any{
					"type":        "string",
					"description": "Product identifier",
				},
				"quantity": map[string]any{
					"type":        "number",
					"description": "Number of items, defaults to 1",
				},
			},
			Handler: func(args map[string]any) (string, error) {
				qty, err := quantity(args["quantity"])
				if err != nil {
					return "", err
				}
				logger.Info("add product to cart", "product_id", args["productId"], "quantity", qty)
				return fmt.Sprintf("Added %d item(s) to cart", qty), nil
			},
		},
		{
			Name:        ToolBrowseProductIDByName,
			Description: "Resolve a product the user named so it can be looked up.",
			Parameters: map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "Product name as the user said it",
				},
			},
			Handler: func(args map[string]any) (string, error) {
				name, _ := args["name"].(string)
				logger.Debug("browse product by name", "name", name)
				return name, nil
			},
		},
		{
			Name:        ToolOpenCart,
			Description: "Open the storefront cart page in the user's browser.",
			Parameters: map[string]any{
				"cartUrl": map[string]any{
					"type":        "string",
					"description": "Cart page URL",
				},
			},
			Handler: func(args map[string]any) (string, error) {
				if err := navigate(args, "cartUrl", protocol.TargetCart); err != nil {
					return "", err
				}
				return "Opened cart", nil
			},
		},
		{
			Name:        ToolRedirectToCheckout,
			Description: "Open the checkout page in the user's browser.",
			Parameters: map[string]any{
				"url": map[string]any{
					"type":        "string",
					"description": "Checkout URL",
				},
			},
			Handler: func(args map[string]any) (string, error) {
				if err := navigate(args, "url", protocol.TargetCheckout); err != nil {
					return "", err
				}
				return "Redirected to checkout", nil
			},
		},
	}
}

// maxQuantity bounds a single add-to-cart request.
const maxQuantity = 999

var errBadQuantity = fmt.Errorf("quantity must be a whole number from 1 to %d", maxQuantity)

// quantity reads the optional quantity argument, which the agent may send as
// a number or a string.
func quantity(v any) (int, error) {
	switch q := v.(type) {
	case nil:
		return 1, nil
	case float64:
		if q < 1 || q > maxQuantity || q != math.Trunc(q) {
			return 0, errBadQuantity
		}
		return int(q), nil
	case int:
		if q < 1 || q > maxQuantity {
			return 0, errBadQuantity
		}
		return q, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(q))
		if err != nil || n < 1 || n > maxQuantity {
			return 0, errBadQuantity
		}
		return n, nil
	}
	return 0, errBadQuantity
}

// storefrontURL accepts absolute http(s) URLs only.
func storefrontURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("unsupported url %q", raw)
	}
	return u.String(), nil
}
