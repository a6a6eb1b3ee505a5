package marketcheck

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/WessleyAI/carsearch/engine/domain"
	"github.com/WessleyAI/carsearch/engine/provider"
	"github.com/WessleyAI/carsearch/pkg/fn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const payload = `{
  "num_found": 2,
  "listings": [
    {
      "vin": "1hgcv1f34la000001",
      "price": 24500,
      "miles": 31000,
      "exterior_color": "Black",
      "vdp_url": "https://dealer.test/vdp/1",
      "build": {"year": 2020, "make": "Honda", "model": "Accord", "trim": "Sport", "body_type": "Sedan", "transmission": "Automatic", "fuel_type": "Gasoline"},
      "media": {"photo_links": ["https://img.test/1.jpg", "https://img.test/badge.svg"]},
      "dealer": {"name": "Metro Honda", "city": "Seattle", "state": "WA", "street": "1 Main St", "zip": "98101", "phone": "206-555-0100"}
    },
    {
      "price": "accepting_offers",
      "year": 2018,
      "make": "Ford",
      "model": "F-150",
      "dealer_name": "Lakeside Ford"
    }
  ]
}`

func testAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := provider.NewHTTPClient(Name, provider.ClientOpts{
		RPS:   100,
		Retry: fn.RetryPolicy{MaxAttempts: 1},
	})
	return New(Config{BaseURL: srv.URL, APIKey: "k", Client: client})
}

func TestSearchParsesListings(t *testing.T) {
	var got url.Values
	a := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		w.Write([]byte(payload))
	})

	yearMin := 2018
	priceMax := decimal.NewFromInt(30000)
	c := domain.SearchCriteria{Brand: "Honda", YearMin: &yearMin, PriceMax: &priceMax, Country: "US", RadiusKM: 100, Page: 1, Limit: 10}
	g := domain.GeoTarget{Country: "US", ResolvedPostal: "98101"}

	listings, err := a.Search(context.Background(), c, g)
	require.NoError(t, err)
	require.Len(t, listings, 2)

	assert.Equal(t, "k", got.Get("api_key"))
	assert.Equal(t, "Honda", got.Get("make"))
	assert.Equal(t, "30000", got.Get("price_range_max"))
	assert.Equal(t, "2018", got.Get("year"))
	assert.Equal(t, "98101", got.Get("zip"))
	assert.Equal(t, "62", got.Get("radius"))
	assert.Equal(t, "10", got.Get("rows"))

	first := listings[0]
	assert.Equal(t, "Honda", first.Make)
	assert.Equal(t, "Accord", first.Model)
	assert.Equal(t, 2020, first.Year)
	assert.Equal(t, "2020 Honda Accord Sport", first.Title)
	assert.Equal(t, "USD", first.Currency)
	require.NotNil(t, first.Mileage)
	assert.Equal(t, domain.Mileage{Value: 31000, Unit: domain.UnitMiles}, *first.Mileage)
	assert.Equal(t, []string{"https://img.test/1.jpg"}, first.Images)
	assert.Equal(t, "https://dealer.test/vdp/1", first.SourceURL)
	assert.Equal(t, "Seattle, WA", first.Location)
	assert.Equal(t, "1 Main St, Seattle, WA 98101", first.Dealer.Address)
	assert.Contains(t, first.Features, "Black Exterior")
	price, ok := provider.CoercePrice(first.Price)
	require.True(t, ok)
	assert.Equal(t, "24500", price.String())

	second := listings[1]
	assert.Equal(t, "accepting_offers", second.Price)
	assert.Equal(t, "Lakeside Ford", second.Dealer.Name)
	assert.Contains(t, second.SourceURL, "https://www.google.com/search?q=2018+Ford+F-150+Lakeside+Ford")
}

func TestSearchResultsKeyAndDisabled(t *testing.T) {
	a := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[{"price":1000,"build":{"make":"Kia"}}]}`))
	})
	listings, err := a.Search(context.Background(), domain.SearchCriteria{Page: 1, Limit: 5}, domain.GeoTarget{Country: "US"})
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "Kia", listings[0].Make)
	assert.Equal(t, "Auto Dealer", listings[0].Dealer.Name)

	disabled := New(Config{BaseURL: "http://unused.invalid"})
	listings, err = disabled.Search(context.Background(), domain.SearchCriteria{}, domain.GeoTarget{})
	assert.NoError(t, err)
	assert.Empty(t, listings)
}

func TestSearchUpstreamError(t *testing.T) {
	a := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := a.Search(ctx, domain.SearchCriteria{}, domain.GeoTarget{})
	assert.Error(t, err)
}

func TestTranslateLocation(t *testing.T) {
	a := New(Config{APIKey: "k"})
	lat, lon := 49.28, -123.03

	tests := []struct {
		name string
		c    domain.SearchCriteria
		g    domain.GeoTarget
		key  string
		want string
	}{
		{"canadian city", domain.SearchCriteria{}, domain.GeoTarget{Country: "CA", City: "Calgary"}, "state", "MT"},
		{"canadian postal", domain.SearchCriteria{}, domain.GeoTarget{Country: "CA", ResolvedPostal: "V6B1A1"}, "state", "WA"},
		{"canadian region", domain.SearchCriteria{}, domain.GeoTarget{Country: "CA", Region: "on"}, "state", "MI"},
		{"us coords", domain.SearchCriteria{RadiusKM: 50}, domain.GeoTarget{Country: "US", Latitude: &lat, Longitude: &lon}, "latitude", "49.2800"},
		{"us state name", domain.SearchCriteria{Location: "somewhere in West Virginia"}, domain.GeoTarget{Country: "US"}, "state", "WV"},
		{"us state code", domain.SearchCriteria{Location: "tx"}, domain.GeoTarget{Country: "US"}, "state", "TX"},
		{"city fallback", domain.SearchCriteria{Location: "Springfield"}, domain.GeoTarget{Country: "US"}, "city", "Springfield"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := a.translate(tt.c, tt.g)
			assert.Equal(t, tt.want, p.Get(tt.key))
		})
	}
}
