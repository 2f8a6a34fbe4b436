package storefront

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// amount renders a scalar as it was sent: numbers in shortest form,
// strings verbatim. Objects of the form {amount, currency_code} yield their
// amount. Anything else is "".
func amount(v gjson.Result) string {
	switch v.Type {
	case gjson.Number:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case gjson.String:
		return strings.TrimSpace(v.Str)
	case gjson.JSON:
		if v.IsObject() {
			return amount(v.Get("amount"))
		}
	}
	return ""
}

// decimal renders a scalar with two fraction digits. Amounts that do not
// parse as a number are returned as sent.
func decimal(v gjson.Result) string {
	if v.IsObject() {
		v = v.Get("amount")
	}
	switch v.Type {
	case gjson.Number:
		return strconv.FormatFloat(v.Num, 'f', 2, 64)
	case gjson.String:
		s := strings.TrimSpace(v.Str)
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return s
		}
		return strconv.FormatFloat(f, 'f', 2, 64)
	}
	return ""
}

// perUnit divides a line total by qty. Totals that do not parse as a
// number are returned as sent.
func perUnit(v gjson.Result, qty int64) string {
	s := decimal(v)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || qty <= 1 {
		return s
	}
	return strconv.FormatFloat(f/float64(qty), 'f', 2, 64)
}

// currencyOf returns the currency code carried by v itself, if any.
func currencyOf(v gjson.Result) string {
	if !v.IsObject() {
		return ""
	}
	return firstString(v, "currency_code", "currency", "currencyCode")
}

// money joins a currency and an amount, or returns "" without an amount.
func money(currency, amt string) string {
	if amt == "" {
		return ""
	}
	return currency + " " + amt
}
