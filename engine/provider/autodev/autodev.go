// Package autodev adapts the Auto.dev listings API.
package autodev

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/WessleyAI/carsearch/engine/domain"
	"github.com/WessleyAI/carsearch/engine/provider"
)

// Name is the adapter and source name.
const Name = "Auto.dev"

// Config configures the adapter.
type Config struct {
	BaseURL string
	APIKey  string
	Client  *provider.HTTPClient
	Logger  *slog.Logger
}

// Adapter queries Auto.dev with bearer authentication. Prices are USD.
type Adapter struct {
	baseURL string
	apiKey  string
	client  *provider.HTTPClient
	log     *slog.Logger
}

// New creates the adapter; it is disabled without an API key.
func New(cfg Config) *Adapter {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Client == nil {
		cfg.Client = provider.NewHTTPClient(Name, provider.ClientOpts{Logger: cfg.Logger})
	}
	if cfg.APIKey == "" {
		cfg.Logger.Warn("auto.dev disabled: no API key")
	}
	return &Adapter{baseURL: cfg.BaseURL, apiKey: cfg.APIKey, client: cfg.Client, log: cfg.Logger}
}

func (a *Adapter) Name() string { return Name }

type response struct {
	Records []map[string]any `json:"records"`
}

// Search implements provider.Adapter.
func (a *Adapter) Search(ctx context.Context, c domain.SearchCriteria, g domain.GeoTarget) ([]provider.RawListing, error) {
	if a.apiKey == "" {
		return nil, nil
	}
	var resp response
	header := http.Header{"Authorization": {"Bearer " + a.apiKey}}
	if err := a.client.GetJSON(ctx, a.baseURL+"?"+translate(c, g).Encode(), header, &resp); err != nil {
		return nil, err
	}
	out := make([]provider.RawListing, 0, len(resp.Records))
	for _, r := range resp.Records {
		out = append(out, parseRecord(r))
	}
	a.log.Debug("auto.dev search done", "parsed", len(out))
	return out, nil
}

func translate(c domain.SearchCriteria, g domain.GeoTarget) url.Values {
	p := url.Values{}
	if c.Brand != "" {
		p.Set("make", c.Brand)
	}
	if c.Model != "" {
		p.Set("model", c.Model)
	}
	if c.PriceMin != nil {
		p.Set("price_min", c.PriceMin.StringFixed(0))
	}
	if c.PriceMax != nil {
		p.Set("price_max", c.PriceMax.StringFixed(0))
	}
	if c.YearMin != nil {
		p.Set("year_min", strconv.Itoa(*c.YearMin))
	}
	if c.YearMax != nil {
		p.Set("year_max", strconv.Itoa(*c.YearMax))
	}
	if g.Country == "US" && g.ResolvedPostal != "" {
		p.Set("zip", g.ResolvedPostal)
		p.Set("radius", strconv.Itoa(max(int(float64(c.RadiusKM)*0.621371+0.5), 1)))
	}
	p.Set("page_size", strconv.Itoa(provider.FetchSize(c, 50)))
	return p
}

func parseRecord(r map[string]any) provider.RawListing {
	dealer := provider.Obj(r, "dealer")
	year, _ := provider.Int(r, "year")
	mk := provider.Str(r, "make")
	model := provider.Str(r, "model")
	trim := provider.Str(r, "trim")
	city := provider.Str(dealer, "city")
	state := provider.Str(dealer, "state")
	location := provider.JoinNonEmpty(", ", city, state)

	exterior := provider.Str(r, "exterior_color", "displayColor")
	var features []string
	if exterior != "" {
		features = append(features, exterior+" Exterior")
	}
	if interior := provider.Str(r, "interior_color"); interior != "" {
		features = append(features, interior+" Interior")
	}
	transmission := provider.Str(r, "transmission")
	fuel := provider.Str(r, "fuel_type", "fuelType")
	for _, f := range []string{transmission, fuel} {
		if f != "" {
			features = append(features, f)
		}
	}

	title := provider.JoinNonEmpty(" ", strconv.Itoa(year), mk, model, trim)
	if year == 0 {
		title = provider.JoinNonEmpty(" ", mk, model, trim)
	}
	address := provider.Str(dealer, "address")
	if address == "" {
		address = location
	}
	d := provider.DealerOr(domain.Dealer{
		Name:    provider.Str(dealer, "name"),
		Phone:   provider.Str(dealer, "phone"),
		Address: address,
	}, "Auto Dealer")

	return provider.RawListing{
		VIN:          provider.Str(r, "vin"),
		Make:         mk,
		Model:        model,
		Trim:         trim,
		Title:        title,
		Year:         year,
		Price:        provider.First(r, "price", "priceUnformatted"),
		Currency:     "USD",
		Mileage:      provider.CoerceMileage(provider.First(r, "mileage", "mileageUnformatted"), domain.UnitMiles),
		Location:     location,
		Dealer:       d,
		Images:       provider.NormalizeImages(provider.First(r, "photos", "photoUrls")),
		Features:     features,
		Color:        exterior,
		BodyType:     provider.Str(r, "body_type", "bodyStyle"),
		FuelType:     fuel,
		Transmission: transmission,
		Description:  title,
		SourceURL:    provider.SourceURL([]string{provider.Str(r, "link"), provider.Str(r, "url", "clickoffUrl")}, title, d.Name, city),
	}
}
