// Package marketcheck adapts the MarketCheck US dealer inventory API.
package marketcheck

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/WessleyAI/carsearch/engine/domain"
	"github.com/WessleyAI/carsearch/engine/provider"
)

// Name is the adapter and source name.
const Name = "MarketCheck"

const maxRows = 50

// Config configures the adapter.
type Config struct {
	BaseURL string
	APIKey  string
	Client  *provider.HTTPClient
	Logger  *slog.Logger
}

// Adapter queries MarketCheck. Prices are USD, odometers in miles.
type Adapter struct {
	baseURL string
	apiKey  string
	client  *provider.HTTPClient
	log     *slog.Logger
}

// New creates the adapter. Without an API key it is disabled and returns
// no listings.
func New(cfg Config) *Adapter {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Client == nil {
		cfg.Client = provider.NewHTTPClient(Name, provider.ClientOpts{Logger: cfg.Logger})
	}
	if cfg.APIKey == "" {
		cfg.Logger.Warn("marketcheck disabled: no API key")
	}
	return &Adapter{baseURL: cfg.BaseURL, apiKey: cfg.APIKey, client: cfg.Client, log: cfg.Logger}
}

func (a *Adapter) Name() string { return Name }

// Search implements provider.Adapter.
func (a *Adapter) Search(ctx context.Context, c domain.SearchCriteria, g domain.GeoTarget) ([]provider.RawListing, error) {
	if a.apiKey == "" {
		return nil, nil
	}
	params := a.translate(c, g)
	var body map[string]any
	if err := a.client.GetJSON(ctx, a.baseURL+"?"+params.Encode(), nil, &body); err != nil {
		return nil, err
	}
	items := asList(body["listings"])
	if len(items) == 0 {
		items = asList(body["results"])
	}
	out := parse(items)
	a.log.Debug("marketcheck search done", "received", len(items), "parsed", len(out))
	return out, nil
}

func (a *Adapter) translate(c domain.SearchCriteria, g domain.GeoTarget) url.Values {
	p := url.Values{}
	p.Set("api_key", a.apiKey)
	p.Set("car_type", "used")
	p.Set("seller_type", "dealer")
	if c.Brand != "" {
		p.Set("make", c.Brand)
	}
	if c.Model != "" {
		p.Set("model", c.Model)
	}
	if c.PriceMin != nil {
		p.Set("price_range_min", c.PriceMin.StringFixed(0))
	}
	if c.PriceMax != nil {
		p.Set("price_range_max", c.PriceMax.StringFixed(0))
	}
	if c.YearMin != nil {
		p.Set("year", strconv.Itoa(*c.YearMin))
	}
	if c.YearMax != nil {
		p.Set("year_max", strconv.Itoa(*c.YearMax))
	}
	if c.MileageMax != nil {
		p.Set("miles_range", fmt.Sprintf("0-%d", kmToMiles(*c.MileageMax)))
	}

	p.Set("rows", strconv.Itoa(provider.FetchSize(c, maxRows)))
	p.Set("start", "0")

	addLocation(p, c, g)
	return p
}

func addLocation(p url.Values, c domain.SearchCriteria, g domain.GeoTarget) {
	switch g.Country {
	case "US":
		if g.ResolvedPostal != "" {
			p.Set("zip", g.ResolvedPostal)
			p.Set("radius", strconv.Itoa(max(kmToMiles(c.RadiusKM), 1)))
			return
		}
		if g.HasCoordinates() {
			p.Set("latitude", strconv.FormatFloat(*g.Latitude, 'f', 4, 64))
			p.Set("longitude", strconv.FormatFloat(*g.Longitude, 'f', 4, 64))
			p.Set("radius", strconv.Itoa(max(kmToMiles(c.RadiusKM), 1)))
			return
		}
	case "CA":
		if st := borderState(g); st != "" {
			p.Set("state", st)
			return
		}
	}
	if c.Location == "" {
		return
	}
	if st := usState(c.Location); st != "" {
		p.Set("state", st)
		return
	}
	p.Set("city", c.Location)
}

func kmToMiles(km int) int {
	return int(math.Round(float64(km) * 0.621371))
}

// borderCity and borderRegion map Canadian targets to the nearest US state
// with comparable inventory.
var (
	borderCity = map[string]string{
		"Vancouver": "WA", "Victoria": "WA", "Surrey": "WA", "Richmond": "WA",
		"Calgary": "MT", "Edmonton": "MT",
		"Toronto": "NY", "Ottawa": "NY", "Montreal": "NY", "Mississauga": "NY", "Hamilton": "NY", "Markham": "NY",
		"Quebec City": "VT",
		"Winnipeg":    "ND",
	}
	borderRegion = map[string]string{
		"bc": "WA", "ab": "MT", "sk": "ND", "mb": "ND",
		"on": "MI", "qc": "VT", "nb": "ME", "ns": "ME", "pe": "ME", "nl": "ME",
	}
	borderFSA = map[byte]string{'V': "WA", 'T': "MT", 'M': "NY", 'K': "NY", 'H': "NY", 'R': "ND"}
)

func borderState(g domain.GeoTarget) string {
	if st, ok := borderCity[g.City]; ok {
		return st
	}
	if g.ResolvedPostal != "" {
		if st, ok := borderFSA[g.ResolvedPostal[0]]; ok {
			return st
		}
	}
	return borderRegion[g.Region]
}

var usStates = map[string]string{
	"alabama": "AL", "alaska": "AK", "arizona": "AZ", "arkansas": "AR",
	"california": "CA", "colorado": "CO", "connecticut": "CT", "delaware": "DE",
	"florida": "FL", "georgia": "GA", "hawaii": "HI", "idaho": "ID",
	"illinois": "IL", "indiana": "IN", "iowa": "IA", "kansas": "KS",
	"kentucky": "KY", "louisiana": "LA", "maine": "ME", "maryland": "MD",
	"massachusetts": "MA", "michigan": "MI", "minnesota": "MN", "mississippi": "MS",
	"missouri": "MO", "montana": "MT", "nebraska": "NE", "nevada": "NV",
	"new hampshire": "NH", "new jersey": "NJ", "new mexico": "NM", "new york": "NY",
	"north carolina": "NC", "north dakota": "ND", "ohio": "OH", "oklahoma": "OK",
	"oregon": "OR", "pennsylvania": "PA", "rhode island": "RI", "south carolina": "SC",
	"south dakota": "SD", "tennessee": "TN", "texas": "TX", "utah": "UT",
	"vermont": "VT", "virginia": "VA", "washington": "WA", "west virginia": "WV",
	"wisconsin": "WI", "wyoming": "WY",
}

// stateOrder lists state names longest first so "west virginia" wins over
// "virginia".
var stateOrder = func() []string {
	names := make([]string, 0, len(usStates))
	for n := range usStates {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	return names
}()

// usState reads a two-letter code or a state name from a location string.
func usState(location string) string {
	l := strings.ToLower(strings.TrimSpace(location))
	if len(l) == 2 {
		code := strings.ToUpper(l)
		for _, c := range usStates {
			if c == code {
				return code
			}
		}
	}
	for _, name := range stateOrder {
		if strings.Contains(l, name) {
			return usStates[name]
		}
	}
	return ""
}

func asList(v any) []map[string]any {
	items, _ := v.([]any)
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		if m, ok := it.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
