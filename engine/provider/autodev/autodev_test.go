package autodev

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/WessleyAI/carsearch/engine/domain"
	"github.com/WessleyAI/carsearch/engine/provider"
	"github.com/WessleyAI/carsearch/pkg/fn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch(t *testing.T) {
	var auth, zip string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		zip = r.URL.Query().Get("zip")
		w.Write([]byte(`{"records":[
			{"vin":"5YJ3E1EA7KF000001","year":2019,"make":"Tesla","model":"Model 3","price":"$31,900","mileage":"41,200 Miles",
			 "photos":[{"url":"https://img.test/a.jpg"},{"uri":"https://img.test/b.jpg"}],
			 "dealer":{"name":"EV Motors","city":"Denver","state":"CO"},"link":"https://ev.test/1"},
			{"year":2021,"make":"Kia","model":"Soul","photos":["https://img.test/c.jpg"]}
		]}`))
	}))
	defer srv.Close()

	a := New(Config{
		BaseURL: srv.URL,
		APIKey:  "secret",
		Client:  provider.NewHTTPClient(Name, provider.ClientOpts{RPS: 100, Retry: fn.RetryPolicy{MaxAttempts: 1}}),
	})
	listings, err := a.Search(context.Background(),
		domain.SearchCriteria{Brand: "Tesla", RadiusKM: 150, Page: 1, Limit: 10},
		domain.GeoTarget{Country: "US", ResolvedPostal: "80202"})
	require.NoError(t, err)
	require.Len(t, listings, 2)

	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, "80202", zip)

	tesla := listings[0]
	assert.Equal(t, "2019 Tesla Model 3", tesla.Title)
	assert.Equal(t, "$31,900", tesla.Price)
	assert.Equal(t, []string{"https://img.test/a.jpg", "https://img.test/b.jpg"}, tesla.Images)
	require.NotNil(t, tesla.Mileage)
	assert.Equal(t, 41200, tesla.Mileage.Value)
	assert.Equal(t, "Denver, CO", tesla.Location)
	assert.Equal(t, "Denver, CO", tesla.Dealer.Address)
	assert.Equal(t, "https://ev.test/1", tesla.SourceURL)

	soul := listings[1]
	assert.Nil(t, soul.Price)
	assert.Equal(t, []string{"https://img.test/c.jpg"}, soul.Images)
	assert.Equal(t, "Auto Dealer", soul.Dealer.Name)
}

func TestDisabledWithoutKey(t *testing.T) {
	a := New(Config{BaseURL: "http://unused.invalid"})
	listings, err := a.Search(context.Background(), domain.SearchCriteria{}, domain.GeoTarget{})
	assert.NoError(t, err)
	assert.Empty(t, listings)
	assert.Equal(t, Name, a.Name())
}

func TestTranslateSkipsCanadianPostal(t *testing.T) {
	p := translate(domain.SearchCriteria{Page: 2, Limit: 10}, domain.GeoTarget{Country: "CA", ResolvedPostal: "M5H2N2"})
	assert.Empty(t, p.Get("zip"))
	assert.Equal(t, "20", p.Get("page_size"))
}
