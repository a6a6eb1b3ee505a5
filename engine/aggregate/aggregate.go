// Package aggregate merges provider batches into one deduplicated set of
// canonical listings.
package aggregate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/WessleyAI/carsearch/engine/domain"
	"github.com/WessleyAI/carsearch/engine/provider"
	"github.com/WessleyAI/carsearch/pkg/fn"
)

// Stats counts what Merge did with its input.
type Stats struct {
	Raw          int `json:"raw"`
	DroppedPrice int `json:"dropped_price"`
	Duplicates   int `json:"duplicates"`
	Kept         int `json:"kept"`
}

// Merge normalizes every raw listing and keeps the first listing per dedup
// key, visiting batches in ascending priority order. Listings whose price
// does not resolve to a positive amount are dropped before deduplication.
// The input slice is not reordered.
func Merge(batches []provider.Batch) ([]domain.Listing, Stats) {
	ordered := make([]provider.Batch, len(batches))
	copy(ordered, batches)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority < ordered[j].Priority })

	var st Stats
	var normalized []domain.Listing
	for _, b := range ordered {
		st.Raw += len(b.Listings)
		for _, raw := range b.Listings {
			l, ok := Normalize(raw)
			if !ok {
				st.DroppedPrice++
				continue
			}
			normalized = append(normalized, l)
		}
	}

	merged := fn.UniqueBy(normalized, func(l domain.Listing) string { return l.DedupKey })
	st.Duplicates = len(normalized) - len(merged)
	st.Kept = len(merged)
	return merged, st
}

// Normalize converts a raw listing into a canonical one. It reports false
// when the price is missing, unparseable or not positive.
func Normalize(raw provider.RawListing) (domain.Listing, bool) {
	price, ok := provider.CoercePrice(raw.Price)
	if !ok || !price.IsPositive() {
		return domain.Listing{}, false
	}
	currency := strings.ToUpper(strings.TrimSpace(raw.Currency))
	if currency == "" {
		currency = "USD"
	}

	brand := domain.CanonicalBrand(raw.Make)
	model := collapse(raw.Model)
	title := collapse(raw.Title)
	if title == "" {
		year := ""
		if raw.Year > 0 {
			year = fmt.Sprint(raw.Year)
		}
		title = provider.JoinNonEmpty(" ", year, brand, model, raw.Trim)
	}

	l := domain.Listing{
		VIN:              domain.NormalizeVIN(raw.VIN),
		Brand:            brand,
		Model:            model,
		Trim:             collapse(raw.Trim),
		Title:            title,
		Year:             raw.Year,
		Price:            domain.Money{Amount: price, Currency: currency},
		Mileage:          raw.Mileage,
		Location:         collapse(raw.Location),
		Dealer:           raw.Dealer,
		Images:           provider.NormalizeImages(raw.Images),
		Features:         dedupe(raw.Features),
		Color:            collapse(raw.Color),
		BodyType:         collapse(raw.BodyType),
		FuelType:         collapse(raw.FuelType),
		Transmission:     collapse(raw.Transmission),
		Description:      strings.TrimSpace(raw.Description),
		Source:           raw.Provider,
		SourceURL:        raw.SourceURL,
		ProviderPriority: raw.Priority,
	}
	l.DedupKey = DedupKey(l)
	return l, true
}

// DedupKey is the upper-cased VIN when present, otherwise
// brand|model|year|price lower-cased with whitespace collapsed.
func DedupKey(l domain.Listing) string {
	if v := domain.NormalizeVIN(l.VIN); v != "" {
		return v
	}
	key := fmt.Sprintf("%s|%s|%d|%s", l.Brand, l.Model, l.Year, l.Price.Amount.StringFixed(2))
	return strings.ToLower(collapse(key))
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = collapse(s)
		k := strings.ToLower(s)
		if s == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
