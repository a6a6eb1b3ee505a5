// Package geo resolves free-text locations and postal codes into a GeoTarget
// using an offline postal table and a list of known cities and regions.
package geo

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/WessleyAI/carsearch/engine/domain"
)

var (
	caPostalRe = regexp.MustCompile(`^[ABCEGHJ-NPRSTVXY]\d[ABCEGHJ-NPRSTV-Z]\d[ABCEGHJ-NPRSTV-Z]\d$`)
	usZipRe    = regexp.MustCompile(`^\d{5}(\d{4})?$`)
)

// NormalizePostal strips separators, upper-cases and validates a postal code
// for country. US ZIP+4 codes are truncated to five digits.
func NormalizePostal(postal, country string) (string, bool) {
	var b strings.Builder
	for _, r := range strings.ToUpper(postal) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	code := b.String()
	switch strings.ToUpper(country) {
	case "CA":
		if caPostalRe.MatchString(code) {
			return code, true
		}
	case "US":
		if usZipRe.MatchString(code) {
			return code[:5], true
		}
	}
	return "", false
}

// Resolver turns request location hints into a GeoTarget. It never fails:
// anything it cannot resolve degrades to a country-only target.
type Resolver struct {
	lookup Lookup
	log    *slog.Logger
}

// NewResolver creates a Resolver. A nil lookup uses the built-in Table.
func NewResolver(lookup Lookup, log *slog.Logger) *Resolver {
	if lookup == nil {
		lookup = NewTable()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{lookup: lookup, log: log}
}

// Resolve applies, in order: a valid postal code, a known city named in
// location, a province or state named in location, and finally the country.
func (r *Resolver) Resolve(location, postal, country string) domain.GeoTarget {
	country = strings.ToUpper(strings.TrimSpace(country))
	if country == "" {
		country = domain.DefaultCriteria.Country
	}
	target := domain.GeoTarget{Country: country}
	text := normalizeText(location)

	if postal != "" {
		if code, ok := NormalizePostal(postal, country); ok {
			target.ResolvedPostal = code
			if country == "CA" {
				target.Region = fsaRegion[code[0]]
			}
			if c, ok := cityForPostal(code, country); ok {
				target.City = c.Name
				target.Region = c.Region
			}
			if lat, lon, ok := r.lookup.Lookup(code, country); ok {
				setCoords(&target, lat, lon)
				return target
			}
			r.log.Debug("postal code not in geo table", "postal", code, "country", country)
		} else {
			r.log.Debug("dropping malformed postal code", "postal", postal, "country", country)
		}
	}

	if c, ok := matchCity(text, country); ok {
		r.fromCity(&target, c)
		return target
	}
	if reg, ok := matchRegion(text, country); ok {
		if target.Region == "" {
			target.Region = reg.Slug
		}
		if c, ok := CityBySlug(reg.DefaultCity); ok {
			r.fromCity(&target, c)
		}
		return target
	}
	return target
}

func (r *Resolver) fromCity(t *domain.GeoTarget, c City) {
	if t.City == "" {
		t.City = c.Name
	}
	if t.Region == "" {
		t.Region = c.Region
	}
	if t.ResolvedPostal == "" {
		t.ResolvedPostal = c.Postal
	}
	if lat, lon, ok := r.lookup.Lookup(c.Postal, c.Country); ok {
		setCoords(t, lat, lon)
		return
	}
	setCoords(t, c.Lat, c.Lon)
}

func setCoords(t *domain.GeoTarget, lat, lon float64) {
	t.Latitude = &lat
	t.Longitude = &lon
}

func cityForPostal(code, country string) (City, bool) {
	for _, c := range knownCities {
		if c.Country == country && strings.HasPrefix(code, c.Postal[:3]) {
			return c, true
		}
	}
	return City{}, false
}

func matchCity(text, country string) (City, bool) {
	if text == "" {
		return City{}, false
	}
	for _, c := range knownCities {
		if c.Country != country {
			continue
		}
		if strings.Contains(text, normalizeText(c.Name)) || strings.Contains(text, strings.ReplaceAll(c.Slug, "-", " ")) {
			return c, true
		}
	}
	return City{}, false
}

func matchRegion(text, country string) (Region, bool) {
	if text == "" {
		return Region{}, false
	}
	padded := " " + text + " "
	for _, reg := range regions {
		if reg.Country != country {
			continue
		}
		for _, alias := range reg.Aliases {
			if strings.Contains(padded, " "+alias+" ") {
				return reg, true
			}
		}
	}
	return Region{}, false
}

// normalizeText lower-cases s, drops dots and apostrophes, and turns other
// punctuation into spaces so that "St. John's, N.L." becomes "st johns nl".
func normalizeText(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r == '.' || r == '\'' || r == '’':
		case r == ',' || r == '-' || r == '/' || r == '(' || r == ')' || r == ';':
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
