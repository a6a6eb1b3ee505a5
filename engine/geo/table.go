package geo

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// Lookup geocodes a normalized postal code.
type Lookup interface {
	Lookup(postal, country string) (lat, lon float64, ok bool)
}

type point struct{ lat, lon float64 }

// Table is an offline postal-code geocoder. Entries are keyed by the full
// normalized code; lookups fall back to the three character prefix (the
// Canadian FSA or the US ZIP3).
type Table struct {
	mu      sync.RWMutex
	entries map[string]point
}

// NewTable returns a Table seeded with the built-in city entries.
func NewTable() *Table {
	t := &Table{entries: make(map[string]point)}
	for _, c := range knownCities {
		t.Add(c.Country, c.Postal, c.Lat, c.Lon)
	}
	return t
}

// Add registers a code and its three character prefix if not already known.
func (t *Table) Add(country, postal string, lat, lon float64) {
	country = strings.ToUpper(country)
	code, ok := NormalizePostal(postal, country)
	if !ok {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[country+":"+code] = point{lat, lon}
	prefix := country + ":" + code[:3]
	if _, exists := t.entries[prefix]; !exists {
		t.entries[prefix] = point{lat, lon}
	}
}

// Lookup implements Lookup.
func (t *Table) Lookup(postal, country string) (float64, float64, bool) {
	country = strings.ToUpper(country)
	t.mu.RLock()
	defer t.mu.RUnlock()
	if p, ok := t.entries[country+":"+postal]; ok {
		return p.lat, p.lon, true
	}
	if len(postal) >= 3 {
		if p, ok := t.entries[country+":"+postal[:3]]; ok {
			return p.lat, p.lon, true
		}
	}
	return 0, 0, false
}

// Len returns the number of keys, prefixes included.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

type tableFile struct {
	Postal []struct {
		Country string  `toml:"country"`
		Code    string  `toml:"code"`
		Lat     float64 `toml:"lat"`
		Lon     float64 `toml:"lon"`
	} `toml:"postal"`
}

// LoadTOML merges entries from a file of the form
//
//	[[postal]]
//	country = "CA"
//	code = "K2P 1L4"
//	lat = 45.41
//	lon = -75.69
//
// and returns how many were accepted.
func (t *Table) LoadTOML(path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read geo table: %w", err)
	}
	return t.LoadTOMLBytes(raw)
}

// LoadTOMLBytes is LoadTOML over an in-memory document.
func (t *Table) LoadTOMLBytes(raw []byte) (int, error) {
	var f tableFile
	if err := toml.Unmarshal(raw, &f); err != nil {
		return 0, fmt.Errorf("parse geo table: %w", err)
	}
	n := 0
	for _, e := range f.Postal {
		if _, ok := NormalizePostal(e.Code, e.Country); !ok {
			continue
		}
		t.Add(e.Country, e.Code, e.Lat, e.Lon)
		n++
	}
	return n, nil
}
