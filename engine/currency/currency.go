// Package currency converts listing prices into the display currency of the
// searching country using fixed rates.
package currency

import (
	"fmt"
	"strings"

	"github.com/WessleyAI/carsearch/engine/domain"
	"github.com/shopspring/decimal"
)

// DefaultUSDToCAD is the fixed USD to CAD factor.
var DefaultUSDToCAD = decimal.RequireFromString("1.35")

// Normalizer holds the conversion factors. It is safe for concurrent use.
type Normalizer struct {
	rates map[string]decimal.Decimal // "FROM>TO" -> factor
}

// New builds a Normalizer from a USD to CAD factor. The reverse factor is
// 1/usdToCAD rounded to four places.
func New(usdToCAD decimal.Decimal) (*Normalizer, error) {
	if !usdToCAD.IsPositive() {
		return nil, domain.NewValidationError("usd_to_cad", usdToCAD.String(), domain.ErrInvalidAmount)
	}
	return &Normalizer{rates: map[string]decimal.Decimal{
		"USD>CAD": usdToCAD,
		"CAD>USD": decimal.NewFromInt(1).DivRound(usdToCAD, 4),
	}}, nil
}

// ParseRate parses a configured factor such as "1.35".
func ParseRate(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse rate %q: %w", s, err)
	}
	return d, nil
}

// Default returns a Normalizer using DefaultUSDToCAD.
func Default() *Normalizer {
	n, _ := New(DefaultUSDToCAD)
	return n
}

// Rate returns the factor from one currency to another. Identical
// currencies convert at 1.
func (n *Normalizer) Rate(from, to string) (decimal.Decimal, bool) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to {
		return decimal.NewFromInt(1), true
	}
	r, ok := n.rates[from+">"+to]
	return r, ok
}

// Normalize returns l priced in the currency of country. Listings in an
// unknown currency pair are returned unchanged.
func (n *Normalizer) Normalize(l domain.Listing, country string) domain.Listing {
	target := domain.CurrencyFor(country)
	if strings.EqualFold(l.Price.Currency, target) {
		return l
	}
	rate, ok := n.Rate(l.Price.Currency, target)
	if !ok {
		return l
	}
	l.Price = domain.Money{Amount: l.Price.Amount.Mul(rate).Round(2), Currency: target}
	return l
}

// NormalizeAll converts every result into a new slice; order is kept.
func (n *Normalizer) NormalizeAll(results []domain.RankedResult, country string) []domain.RankedResult {
	out := make([]domain.RankedResult, len(results))
	for i, r := range results {
		r.Listing = n.Normalize(r.Listing, country)
		out[i] = r
	}
	return out
}
