package storefront

import (
	"strings"

	"github.com/tidwall/gjson"
)

// defaultVariantTitle is the Storefront API title of a product's only variant.
const defaultVariantTitle = "Default Title"

// Cart is the canonical cart view model.
type Cart struct {
	ID          string     `json:"id,omitempty"`
	Items       []LineItem `json:"items"`
	Total       string     `json:"total"`
	Currency    string     `json:"currency"`
	CheckoutURL string     `json:"checkout_url,omitempty"`
}

// LineItem is one cart line reconciled from the flat or the merchandise/cost
// schema.
type LineItem struct {
	ID           string `json:"id,omitempty"`
	Title        string `json:"title"`
	Quantity     int64  `json:"quantity"`
	UnitPrice    string `json:"unit_price"`
	VariantLabel string `json:"variant_label,omitempty"`
}

func (a *Adapter) cart(c gjson.Result) Cart {
	out := Cart{
		ID:          firstString(c, "id", "cart_id"),
		Items:       []LineItem{},
		Currency:    a.cartCurrency(c),
		CheckoutURL: firstString(c, "checkout_url", "checkoutUrl"),
	}

	lines := first(c, "items", "lines")
	if lines.IsObject() {
		// GraphQL connection shape: {"edges": [{"node": {...}}]}
		lines = lines.Get("edges.#.node")
	}
	for _, l := range lines.Array() {
		if !l.IsObject() {
			continue
		}
		out.Items = append(out.Items, a.lineItem(l, out.Currency))
	}

	out.Total = a.cartTotal(c, out.Currency)
	return out
}

func (a *Adapter) cartCurrency(c gjson.Result) string {
	return firstNonEmpty(
		currencyOf(c.Get("cost.total_amount")),
		currencyOf(c.Get("cost.subtotal_amount")),
		firstString(c, "currency", "currency_code"),
		a.opts.DefaultCurrency,
	)
}

// cartTotal reads a flat total, then the nested cost amount, each rendered
// with two fraction digits.
func (a *Adapter) cartTotal(c gjson.Result, cur string) string {
	if v := first(c, "total"); v.Exists() {
		if s := decimal(v); s != "" {
			return money(firstNonEmpty(currencyOf(v), cur), s)
		}
	}
	for _, path := range []string{"cost.total_amount", "cost.subtotal_amount"} {
		v := c.Get(path)
		if s := decimal(v); s != "" {
			return money(firstNonEmpty(currencyOf(v), cur), s)
		}
	}
	return ""
}

func (a *Adapter) lineItem(l gjson.Result, cartCurrency string) LineItem {
	merch := l.Get("merchandise")
	productTitle := firstString(merch, "product.title")
	merchTitle := firstString(merch, "title")

	item := LineItem{
		ID:       firstString(l, "productId", "product_id", "id", "merchandise.id"),
		Title:    firstNonEmpty(firstString(l, "title", "name"), productTitle, merchTitle),
		Quantity: 1,
	}
	if q := l.Get("quantity"); q.Exists() && q.Int() > 0 {
		item.Quantity = q.Int()
	}

	label := firstString(l, "variant_title", "variant")
	if label == "" && productTitle != "" {
		label = merchTitle
	}
	if label != defaultVariantTitle && !strings.EqualFold(label, item.Title) {
		item.VariantLabel = label
	}

	if v := first(l, "price"); v.Exists() {
		item.UnitPrice = money(firstNonEmpty(currencyOf(v), firstString(l, "currency"), cartCurrency), amount(v))
		return item
	}
	if v := l.Get("cost.amount_per_quantity"); decimal(v) != "" {
		item.UnitPrice = money(firstNonEmpty(currencyOf(v), cartCurrency), decimal(v))
		return item
	}
	// total_amount covers the whole line.
	if v := l.Get("cost.total_amount"); decimal(v) != "" {
		item.UnitPrice = money(firstNonEmpty(currencyOf(v), cartCurrency), perUnit(v, item.Quantity))
	}
	return item
}
