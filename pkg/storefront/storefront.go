// Package storefront adapts loosely-shaped storefront JSON into canonical,
// display-ready view models.
//
// Tool results reach the client from at least two upstream schema families:
// flat catalog records (product_id, price, image) and Storefront-API style
// records (id, price_range, merchandise, cost.total_amount). Every function in
// this package accepts either and never fails: missing data degrades to an
// empty string or a placeholder.
//
// Example usage:
//
//	a := storefront.New(storefront.DefaultOptions())
//	if m, ok := a.Adapt(resource.Text); ok {
//	    switch m.Kind {
//	    case storefront.KindListing:
//	        render(m.Listing.Products)
//	    }
//	}
package storefront

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Kind identifies which canonical model a payload was adapted into.
type Kind string

const (
	KindListing Kind = "listing"
	KindDetail  Kind = "product"
	KindCart    Kind = "cart"
)

// Discriminant keys probed on the decoded payload, in priority order.
const (
	keyProducts = "products"
	keyProduct  = "product"
	keyCart     = "cart"
)

// Default values used when a payload carries none.
const (
	DefaultCurrency         = "AED"
	DefaultBrand            = "Hafla"
	DefaultImageTemplate    = "https://book.hafla.com/cdn/shop/files/{handle}.png"
	DefaultPlaceholderImage = "https://book.hafla.com/cdn/shop/files/placeholder.png"

	// HandlePlaceholder is substituted with the product handle in ImageTemplate.
	HandlePlaceholder = "{handle}"
)

// Options tunes the fallbacks applied by an Adapter.
type Options struct {
	// DefaultCurrency is used when neither the item nor its price names one.
	DefaultCurrency string

	// Brand is shown when a product carries no vendor.
	Brand string

	// ImageTemplate builds an image URL from a product handle.
	// It must contain HandlePlaceholder.
	ImageTemplate string

	// PlaceholderImage is the last image fallback.
	PlaceholderImage string

	// AltExtensions are tried, in order, when an image fails to load.
	AltExtensions []string
}

// DefaultOptions returns the options used by the Hafla storefront.
func DefaultOptions() Options {
	return Options{
		DefaultCurrency:  DefaultCurrency,
		Brand:            DefaultBrand,
		ImageTemplate:    DefaultImageTemplate,
		PlaceholderImage: DefaultPlaceholderImage,
		AltExtensions:    []string{".jpg", ".webp"},
	}
}

// Adapter maps loose payloads to canonical models. It is stateless and safe
// for concurrent use.
type Adapter struct {
	opts Options
}

// New creates an Adapter. Zero-valued options fall back to DefaultOptions.
func New(opts Options) *Adapter {
	def := DefaultOptions()
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = def.DefaultCurrency
	}
	if opts.Brand == "" {
		opts.Brand = def.Brand
	}
	if !strings.Contains(opts.ImageTemplate, HandlePlaceholder) {
		opts.ImageTemplate = def.ImageTemplate
	}
	if opts.PlaceholderImage == "" {
		opts.PlaceholderImage = def.PlaceholderImage
	}
	if opts.AltExtensions == nil {
		opts.AltExtensions = def.AltExtensions
	}
	return &Adapter{opts: opts}
}

// Options returns the effective options.
func (a *Adapter) Options() Options {
	return a.opts
}

// Model is the adapted form of one UI resource. Exactly one of Listing,
// Detail or Cart is set, matching Kind.
type Model struct {
	Kind    Kind     `json:"kind"`
	Listing *Listing `json:"listing,omitempty"`
	Detail  *Detail  `json:"detail,omitempty"`
	Cart    *Cart    `json:"cart,omitempty"`
}

// Classify reports which canonical model a JSON document maps to, by presence
// of a discriminant key. It returns false for invalid JSON, non-objects and
// unknown shapes.
func Classify(text string) (Kind, bool) {
	if text == "" || !gjson.Valid(text) {
		return "", false
	}
	doc := gjson.Parse(text)
	if !doc.IsObject() {
		return "", false
	}
	switch {
	case doc.Get(keyProducts).Exists():
		return KindListing, true
	case doc.Get(keyProduct).Exists():
		return KindDetail, true
	case doc.Get(keyCart).Exists():
		return KindCart, true
	}
	return "", false
}

// Adapt classifies text and builds the matching model. A false result means
// the caller should hand the raw resource to the generic renderer.
func (a *Adapter) Adapt(text string) (Model, bool) {
	kind, ok := Classify(text)
	if !ok {
		return Model{}, false
	}
	doc := gjson.Parse(text)
	switch kind {
	case KindListing:
		l := a.listing(doc.Get(keyProducts))
		return Model{Kind: kind, Listing: &l}, true
	case KindDetail:
		d := Detail{Product: a.Product(doc.Get(keyProduct))}
		return Model{Kind: kind, Detail: &d}, true
	default:
		c := a.cart(doc.Get(keyCart))
		return Model{Kind: kind, Cart: &c}, true
	}
}

// Listing adapts a {"products": [...]} document.
func (a *Adapter) Listing(text string) Listing {
	return a.listing(gjson.Get(text, keyProducts))
}

// Detail adapts a {"product": {...}} document.
func (a *Adapter) Detail(text string) Detail {
	return Detail{Product: a.Product(gjson.Get(text, keyProduct))}
}

// Cart adapts a {"cart": {...}} document.
func (a *Adapter) Cart(text string) Cart {
	return a.cart(gjson.Get(text, keyCart))
}

// first returns the first existing, non-null, non-empty result among paths.
func first(r gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		v := r.Get(p)
		if !v.Exists() || v.Type == gjson.Null {
			continue
		}
		if v.Type == gjson.String && strings.TrimSpace(v.Str) == "" {
			continue
		}
		return v
	}
	return gjson.Result{}
}

// firstString is first(...).String() with surrounding whitespace trimmed.
func firstString(r gjson.Result, paths ...string) string {
	return strings.TrimSpace(first(r, paths...).String())
}
