package storefront

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Product is the canonical product card shared by listing and detail views.
type Product struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Vendor      string    `json:"vendor"`
	Price       string    `json:"price"`
	Image       Image     `json:"image"`
	Handle      string    `json:"handle,omitempty"`
	URL         string    `json:"url,omitempty"`
	Variants    []Variant `json:"variants,omitempty"`
}

// Variant is a selectable option of a product.
type Variant struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Price     string `json:"price"`
	Available bool   `json:"available"`
}

// Listing is the search results view model.
type Listing struct {
	Products []Product `json:"products"`
}

// Detail is the single product view model.
type Detail struct {
	Product Product `json:"product"`
}

func (a *Adapter) listing(items gjson.Result) Listing {
	l := Listing{Products: []Product{}}
	if !items.IsArray() {
		return l
	}
	for _, it := range items.Array() {
		if !it.IsObject() {
			continue
		}
		l.Products = append(l.Products, a.Product(it))
	}
	return l
}

// Product adapts one product record of either schema family.
func (a *Adapter) Product(p gjson.Result) Product {
	out := Product{
		ID:          firstString(p, "product_id", "id"),
		Title:       firstString(p, "title", "name"),
		Description: firstString(p, "description", "product_type", "category"),
		Vendor:      firstString(p, "vendor", "brand"),
		Price:       a.Price(p),
		Image:       a.Image(p),
		Handle:      Handle(p),
		URL:         firstString(p, "url", "product_url"),
	}
	if out.Vendor == "" {
		out.Vendor = a.opts.Brand
	}
	for _, v := range p.Get("variants").Array() {
		if !v.IsObject() {
			continue
		}
		avail := v.Get("available")
		out.Variants = append(out.Variants, Variant{
			ID:        firstString(v, "variant_id", "id"),
			Title:     firstString(v, "title", "name"),
			Price:     a.variantPrice(p, v),
			Available: !avail.Exists() || avail.Bool(),
		})
	}
	return out
}

// currency picks the item-level currency or the configured default.
func (a *Adapter) currency(p gjson.Result) string {
	if c := firstString(p, "currency", "currency_code"); c != "" {
		return c
	}
	return a.opts.DefaultCurrency
}

// Price renders a product price following the ladder: scalar price, then
// price range, then the first variant's price. It returns "" when none exist.
func (a *Adapter) Price(p gjson.Result) string {
	cur := a.currency(p)

	if v := first(p, "price"); v.Exists() {
		if s := amount(v); s != "" {
			if c := currencyOf(v); c != "" {
				cur = c
			}
			return money(cur, s)
		}
	}

	if pr := p.Get("price_range"); pr.IsObject() {
		lo := first(pr, "min", "min_price", "min_variant_price")
		hi := first(pr, "max", "max_price", "max_variant_price")
		if c := firstNonEmpty(currencyOf(pr), currencyOf(lo), currencyOf(hi)); c != "" {
			cur = c
		}
		from, to := amount(lo), amount(hi)
		switch {
		case from != "" && to != "" && !sameAmount(from, to):
			return money(cur, from+" - "+to)
		case from != "":
			return money(cur, from)
		case to != "":
			return money(cur, to)
		}
	}

	if v := first(p, "variants.0.price"); v.Exists() {
		if c := firstNonEmpty(currencyOf(v), firstString(p, "variants.0.currency")); c != "" {
			cur = c
		}
		return money(cur, amount(v))
	}
	return ""
}

func (a *Adapter) variantPrice(p, v gjson.Result) string {
	pv := first(v, "price")
	cur := firstNonEmpty(currencyOf(pv), firstString(v, "currency"), a.currency(p))
	return money(cur, amount(pv))
}

// Image is a display-ready image reference. Renderers try URL first and walk
// Fallbacks in order when loading fails.
type Image struct {
	URL       string   `json:"url"`
	Fallbacks []string `json:"fallbacks,omitempty"`
}

// Image resolves a product image: explicit URL, then a URL derived from the
// product handle, then the placeholder.
func (a *Adapter) Image(p gjson.Result) Image {
	if u := explicitImage(p); u != "" {
		return a.withFallbacks(u)
	}
	if h := Handle(p); h != "" {
		return a.withFallbacks(a.ImageForHandle(h))
	}
	return Image{URL: a.opts.PlaceholderImage}
}

// ImageForHandle expands the image template for handle.
func (a *Adapter) ImageForHandle(handle string) string {
	return strings.ReplaceAll(a.opts.ImageTemplate, HandlePlaceholder, url.PathEscape(handle))
}

func explicitImage(p gjson.Result) string {
	for _, path := range []string{"image", "image_url", "images.0", "featured_image", "variants.0.image_url"} {
		v := p.Get(path)
		switch {
		case v.Type == gjson.String:
			if s := strings.TrimSpace(v.Str); s != "" {
				return s
			}
		case v.IsObject():
			if s := firstString(v, "url", "src"); s != "" {
				return s
			}
		}
	}
	return ""
}

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".webp", ".gif"}

// withFallbacks builds the retry chain for u: u with each alternate extension,
// then the placeholder.
func (a *Adapter) withFallbacks(u string) Image {
	img := Image{URL: u}
	base, query := u, ""
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		base, query = u[:i], u[i:]
	}
	lower := strings.ToLower(base)
	for _, ext := range imageExtensions {
		if !strings.HasSuffix(lower, ext) {
			continue
		}
		stem := base[:len(base)-len(ext)]
		for _, alt := range a.opts.AltExtensions {
			if strings.EqualFold(alt, ext) {
				continue
			}
			img.Fallbacks = append(img.Fallbacks, stem+alt+query)
		}
		break
	}
	if u != a.opts.PlaceholderImage {
		img.Fallbacks = append(img.Fallbacks, a.opts.PlaceholderImage)
	}
	return img
}

// Handle returns the product handle, from an explicit field or parsed out of
// the product page URL.
func Handle(p gjson.Result) string {
	if h := firstString(p, "product_handle", "handle"); h != "" {
		return h
	}
	return HandleFromURL(firstString(p, "url", "product_url"))
}

// HandleFromURL extracts the path segment that follows "/products/".
// It returns "" when the URL has no such segment.
func HandleFromURL(raw string) string {
	const marker = "/products/"
	p := raw
	if u, err := url.Parse(raw); err == nil {
		p = u.Path
	} else if i := strings.IndexAny(raw, "?#"); i >= 0 {
		p = raw[:i]
	}
	i := strings.Index(p, marker)
	if i < 0 {
		return ""
	}
	rest := p[i+len(marker):]
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		rest = rest[:j]
	}
	return strings.TrimSpace(rest)
}

func sameAmount(a, b string) bool {
	if a == b {
		return true
	}
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	return errA == nil && errB == nil && fa == fb
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
