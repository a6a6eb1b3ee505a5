package provider

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/WessleyAI/carsearch/engine/domain"
	"github.com/shopspring/decimal"
)

// MaxImages caps the images kept per listing.
const MaxImages = 8

var numberRe = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

// CoercePrice extracts a decimal from a number, json.Number or formatted
// string such as "$41,300" or "41,300.50 CAD". Strings without digits, like
// "accepting_offers", are rejected. Sign is not checked here.
func CoercePrice(v any) (decimal.Decimal, bool) {
	switch p := v.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return p, true
	case float64:
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(p), true
	case float32:
		return CoercePrice(float64(p))
	case int:
		return decimal.NewFromInt(int64(p)), true
	case int64:
		return decimal.NewFromInt(p), true
	case json.Number:
		d, err := decimal.NewFromString(p.String())
		return d, err == nil
	case string:
		m := numberRe.FindString(p)
		if m == "" {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(strings.ReplaceAll(m, ",", ""))
		if err != nil {
			return decimal.Zero, false
		}
		if strings.Contains(p, "-"+m) {
			d = d.Neg()
		}
		return d, true
	default:
		return decimal.Zero, false
	}
}

// CoerceMileage parses an odometer value. Strings carry their own unit when
// they mention one ("146,227 Miles", "52 000 km"); otherwise defaultUnit is
// used. Nil, negative and unparseable values return nil.
func CoerceMileage(v any, defaultUnit string) *domain.Mileage {
	unit := defaultUnit
	var n float64
	switch m := v.(type) {
	case nil:
		return nil
	case float64:
		n = m
	case int:
		n = float64(m)
	case int64:
		n = float64(m)
	case json.Number:
		f, err := m.Float64()
		if err != nil {
			return nil
		}
		n = f
	case string:
		lower := strings.ToLower(m)
		switch {
		case strings.Contains(lower, "km") || strings.Contains(lower, "kilom"):
			unit = domain.UnitKM
		case strings.Contains(lower, "mi"):
			unit = domain.UnitMiles
		}
		digits := numberRe.FindString(strings.ReplaceAll(m, " ", ""))
		if digits == "" {
			return nil
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(digits, ",", ""), 64)
		if err != nil {
			return nil
		}
		n = f
	default:
		return nil
	}
	if n < 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return nil
	}
	return &domain.Mileage{Value: int(n), Unit: unit}
}

// NormalizeImages flattens a string, an object with a url/uri field, or a
// list of either into at most MaxImages distinct raster http(s) URLs.
func NormalizeImages(v any) []string {
	var raw []string
	collectImages(v, &raw)

	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, min(len(raw), MaxImages))
	for _, u := range raw {
		u = strings.TrimSpace(u)
		if !isRasterURL(u) || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
		if len(out) == MaxImages {
			break
		}
	}
	return out
}

func collectImages(v any, out *[]string) {
	switch img := v.(type) {
	case string:
		*out = append(*out, img)
	case []string:
		*out = append(*out, img...)
	case []any:
		for _, item := range img {
			collectImages(item, out)
		}
	case map[string]any:
		for _, k := range []string{"url", "uri", "href", "src"} {
			if s, ok := img[k].(string); ok && s != "" {
				*out = append(*out, s)
				return
			}
		}
	}
}

func isRasterURL(raw string) bool {
	if !IsHTTPURL(raw) {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	p := strings.ToLower(u.Path)
	for _, ext := range []string{".svg", ".pdf", ".eps"} {
		if strings.HasSuffix(p, ext) {
			return false
		}
	}
	return true
}

// IsHTTPURL reports whether s is an absolute http or https URL with a host.
func IsHTTPURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// DealerOr trims the dealer fields and defaults an empty name.
func DealerOr(d domain.Dealer, fallbackName string) domain.Dealer {
	d.Name = strings.TrimSpace(d.Name)
	d.Phone = strings.TrimSpace(d.Phone)
	d.Address = strings.Trim(strings.TrimSpace(d.Address), ", ")
	if d.Name == "" {
		d.Name = fallbackName
	}
	return d
}

// SourceURL returns the first valid http(s) candidate, or a web search for
// the non-empty fallback parts.
func SourceURL(candidates []string, fallbackParts ...string) string {
	for _, c := range candidates {
		if IsHTTPURL(c) {
			return strings.TrimSpace(c)
		}
	}
	var parts []string
	for _, p := range fallbackParts {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return "https://www.google.com/search?q=" + url.QueryEscape(strings.Join(parts, " "))
}

// InferBodyType guesses a body type from a title or description.
func InferBodyType(text string) string {
	t := strings.ToLower(text)
	has := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(t, w) {
				return true
			}
		}
		return false
	}
	switch {
	case has("suv", "crossover", "4x4", "awd"):
		return "SUV"
	case has("truck", "pickup"):
		return "Truck"
	case has("sedan"):
		return "Sedan"
	case has("coupe", "convertible"):
		return "Coupe"
	case has("minivan", "van"):
		return "Van"
	default:
		return ""
	}
}

// Str returns the first non-empty string-like value among keys of m.
// Numbers are formatted without exponent.
func Str(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case json.Number:
			return v.String()
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

// Int returns the first integer-like value among keys of m.
func Int(m map[string]any, keys ...string) (int, bool) {
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			return int(v), true
		case json.Number:
			if n, err := v.Int64(); err == nil {
				return int(n), true
			}
			if f, err := v.Float64(); err == nil {
				return int(f), true
			}
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

// First returns the first non-nil value among keys of m.
func First(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
				continue
			}
			return v
		}
	}
	return nil
}

// Obj returns m[key] as an object, or an empty map.
func Obj(m map[string]any, key string) map[string]any {
	if o, ok := m[key].(map[string]any); ok {
		return o
	}
	return map[string]any{}
}

// SplitList turns a list value or a "a, b; c" string into trimmed items.
func SplitList(v any) []string {
	var out []string
	switch l := v.(type) {
	case string:
		for _, part := range strings.FieldsFunc(l, func(r rune) bool { return r == ',' || r == ';' }) {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	case []any:
		for _, item := range l {
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" && item != nil {
				out = append(out, s)
			}
		}
	case []string:
		for _, s := range l {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// JoinNonEmpty joins the trimmed, non-empty parts with sep.
func JoinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
