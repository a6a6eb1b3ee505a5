package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// PartialCriteria is the untrusted output of the feature extractor or an API
// caller. Every field is optional; unknown JSON fields are ignored.
type PartialCriteria struct {
	Brand      *string          `json:"brand,omitempty"`
	Model      *string          `json:"model,omitempty"`
	YearMin    *int             `json:"year_min,omitempty"`
	YearMax    *int             `json:"year_max,omitempty"`
	PriceMin   *decimal.Decimal `json:"price_min,omitempty"`
	PriceMax   *decimal.Decimal `json:"price_max,omitempty"`
	MileageMax *int             `json:"mileage_max,omitempty"`
	Features   []string         `json:"features,omitempty"`
	BodyType   *string          `json:"body_type,omitempty"`
	FuelType   *string          `json:"fuel_type,omitempty"`
	Query      *string          `json:"query,omitempty"`
	Location   *string          `json:"location,omitempty"`
	PostalCode *string          `json:"postal_code,omitempty"`
	Country    *string          `json:"country,omitempty"`
	RadiusKM   *int             `json:"radius_km,omitempty"`
	Page       *int             `json:"page,omitempty"`
	Limit      *int             `json:"limit,omitempty"`
}

// Merge returns p with every field that is unset in p taken from other.
func (p PartialCriteria) Merge(other PartialCriteria) PartialCriteria {
	out := p
	pick := func(dst **string, src *string) {
		if *dst == nil && src != nil {
			*dst = src
		}
	}
	pickInt := func(dst **int, src *int) {
		if *dst == nil && src != nil {
			*dst = src
		}
	}
	pick(&out.Brand, other.Brand)
	pick(&out.Model, other.Model)
	pick(&out.BodyType, other.BodyType)
	pick(&out.FuelType, other.FuelType)
	pick(&out.Query, other.Query)
	pick(&out.Location, other.Location)
	pick(&out.PostalCode, other.PostalCode)
	pick(&out.Country, other.Country)
	pickInt(&out.YearMin, other.YearMin)
	pickInt(&out.YearMax, other.YearMax)
	pickInt(&out.MileageMax, other.MileageMax)
	pickInt(&out.RadiusKM, other.RadiusKM)
	pickInt(&out.Page, other.Page)
	pickInt(&out.Limit, other.Limit)
	if out.PriceMin == nil {
		out.PriceMin = other.PriceMin
	}
	if out.PriceMax == nil {
		out.PriceMax = other.PriceMax
	}
	if len(out.Features) == 0 {
		out.Features = other.Features
	}
	return out
}

// CriteriaDefaults are applied by BuildCriteria to unset or invalid fields.
type CriteriaDefaults struct {
	Country  string
	RadiusKM int
	Limit    int
	MaxLimit int
}

// DefaultCriteria mirrors the service defaults: Canada, 150 km, 10 per page.
var DefaultCriteria = CriteriaDefaults{
	Country:  "CA",
	RadiusKM: 150,
	Limit:    10,
	MaxLimit: 50,
}

// BuildCriteria sanitizes p into SearchCriteria. It never fails: malformed
// fields are dropped or replaced by defaults.
func BuildCriteria(p PartialCriteria, d CriteriaDefaults) SearchCriteria {
	if d.Country == "" {
		d = DefaultCriteria
	}
	c := SearchCriteria{
		Brand:         CanonicalBrand(str(p.Brand)),
		Model:         collapse(str(p.Model)),
		BodyType:      strings.ToLower(collapse(str(p.BodyType))),
		FuelType:      strings.ToLower(collapse(str(p.FuelType))),
		FreeTextQuery: collapse(str(p.Query)),
		Location:      collapse(str(p.Location)),
		PostalCode:    strings.TrimSpace(str(p.PostalCode)),
		Country:       d.Country,
		RadiusKM:      d.RadiusKM,
		Page:          1,
		Limit:         d.Limit,
	}

	if cc := strings.ToUpper(strings.TrimSpace(str(p.Country))); len(cc) == 2 && isAlpha(cc) {
		c.Country = cc
	}
	if p.RadiusKM != nil && *p.RadiusKM > 0 {
		c.RadiusKM = *p.RadiusKM
	}
	if p.Page != nil && *p.Page >= 1 {
		c.Page = *p.Page
	}
	if p.Limit != nil && *p.Limit >= 1 {
		c.Limit = *p.Limit
	}
	if d.MaxLimit > 0 && c.Limit > d.MaxLimit {
		c.Limit = d.MaxLimit
	}

	c.YearMin = validYear(p.YearMin)
	c.YearMax = validYear(p.YearMax)
	if c.YearMin != nil && c.YearMax != nil && *c.YearMin > *c.YearMax {
		c.YearMin, c.YearMax = c.YearMax, c.YearMin
	}

	c.PriceMin = positive(p.PriceMin)
	c.PriceMax = positive(p.PriceMax)
	if c.PriceMin != nil && c.PriceMax != nil && c.PriceMin.GreaterThan(*c.PriceMax) {
		c.PriceMin, c.PriceMax = c.PriceMax, c.PriceMin
	}

	if p.MileageMax != nil && *p.MileageMax > 0 {
		m := *p.MileageMax
		c.MileageMax = &m
	}

	c.RequiredFeatures = normalizeFeatures(p.Features)
	return c
}

func normalizeFeatures(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	var out []string
	for _, f := range in {
		f = strings.ToLower(collapse(f))
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

func validYear(y *int) *int {
	if y == nil || *y < MinModelYear || *y > MaxModelYear {
		return nil
	}
	v := *y
	return &v
}

func positive(d *decimal.Decimal) *decimal.Decimal {
	if d == nil || !d.IsPositive() {
		return nil
	}
	v := *d
	return &v
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
