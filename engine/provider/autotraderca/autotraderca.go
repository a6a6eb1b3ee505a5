// Package autotraderca adapts AutoTrader.ca through an Apify scraping actor.
// Results are Canadian dealer and private listings priced in CAD.
package autotraderca

import (
	"context"
	"log/slog"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/WessleyAI/carsearch/engine/domain"
	"github.com/WessleyAI/carsearch/engine/geo"
	"github.com/WessleyAI/carsearch/engine/provider"
	"github.com/WessleyAI/carsearch/pkg/vehiclenlp"
)

// Name is the adapter and source name.
const Name = "AutoTrader.ca"

const (
	siteURL    = "https://www.autotrader.ca/cars/"
	maxRadius  = 250
	pageSize   = 100
	defaultRgn = "on"
	defaultCty = "toronto"
)

// Config configures the adapter.
type Config struct {
	ApifyURL string
	Token    string
	Actor    string
	Client   *provider.HTTPClient
	Logger   *slog.Logger
}

// Adapter runs the actor synchronously and reads its dataset items.
type Adapter struct {
	endpoint string
	token    string
	client   *provider.HTTPClient
	log      *slog.Logger
}

// New creates the adapter; it is disabled without an Apify token.
func New(cfg Config) *Adapter {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Client == nil {
		cfg.Client = provider.NewHTTPClient(Name, provider.ClientOpts{Logger: cfg.Logger})
	}
	if cfg.Token == "" {
		cfg.Logger.Warn("autotrader.ca disabled: no Apify token")
	}
	endpoint := strings.TrimRight(cfg.ApifyURL, "/") + "/acts/" + cfg.Actor + "/run-sync-get-dataset-items"
	return &Adapter{endpoint: endpoint, token: cfg.Token, client: cfg.Client, log: cfg.Logger}
}

func (a *Adapter) Name() string { return Name }

type startURL struct {
	URL string `json:"url"`
}

type runInput struct {
	StartURLs []startURL `json:"start_urls"`
}

// Search implements provider.Adapter.
func (a *Adapter) Search(ctx context.Context, c domain.SearchCriteria, g domain.GeoTarget) ([]provider.RawListing, error) {
	if a.token == "" {
		return nil, nil
	}
	target := SearchURL(c, g)
	a.log.Debug("autotrader.ca search", "url", target)

	var items []map[string]any
	endpoint := a.endpoint + "?token=" + url.QueryEscape(a.token)
	if err := a.client.PostJSON(ctx, endpoint, nil, runInput{StartURLs: []startURL{{URL: target}}}, &items); err != nil {
		return nil, err
	}
	out := make([]provider.RawListing, 0, len(items))
	for _, it := range items {
		out = append(out, parseItem(it))
	}
	return out, nil
}

// SearchURL builds the AutoTrader.ca results page for the criteria. The
// location defaults to Toronto, Ontario when the target has no Canadian region.
func SearchURL(c domain.SearchCriteria, g domain.GeoTarget) string {
	region, ok := geo.RegionBySlug("CA", g.Region)
	if !ok {
		region, _ = geo.RegionBySlug("CA", defaultRgn)
	}
	citySlug := region.DefaultCity
	cityName := ""
	if city, found := geo.CityBySlug(slugify(g.City)); found && city.Country == "CA" && city.Region == region.Slug {
		citySlug = city.Slug
		cityName = city.Name
	} else if g.City != "" && ok {
		citySlug = slugify(g.City)
		cityName = g.City
	}
	if citySlug == "" {
		citySlug = defaultCty
	}
	if cityName == "" {
		if city, found := geo.CityBySlug(citySlug); found {
			cityName = city.Name
		}
	}

	var path []string
	if c.Brand != "" {
		path = append(path, slugify(c.Brand))
		if c.Model != "" {
			path = append(path, slugify(c.Model))
		}
	}
	path = append(path, region.Slug, citySlug)

	q := url.Values{}
	q.Set("rcp", strconv.Itoa(pageSize))
	q.Set("rcs", "0")
	q.Set("hprc", "True")
	q.Set("inMarket", "advancedSearch")
	q.Set("srt", "35")
	q.Set("loc", cityName)
	q.Set("prv", region.Name)
	radius := c.RadiusKM
	if radius <= 0 || radius > maxRadius {
		radius = maxRadius
	}
	q.Set("prx", strconv.Itoa(radius))
	if c.PriceMin != nil {
		q.Set("priceMin", c.PriceMin.StringFixed(0))
	}
	if c.PriceMax != nil {
		q.Set("priceMax", c.PriceMax.StringFixed(0))
	}
	if c.YearMin != nil {
		q.Set("yearMin", strconv.Itoa(*c.YearMin))
	}
	if c.YearMax != nil {
		q.Set("yearMax", strconv.Itoa(*c.YearMax))
	}
	if c.MileageMax != nil {
		q.Set("odometerMax", strconv.Itoa(*c.MileageMax))
	}
	return siteURL + strings.Join(path, "/") + "/?" + q.Encode()
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(s string) string {
	return strings.Trim(slugRe.ReplaceAllString(strings.ToLower(strings.ReplaceAll(s, "'", "")), "-"), "-")
}

func parseItem(it map[string]any) provider.RawListing {
	title := provider.Str(it, "title", "name")
	parsed := vehiclenlp.ParseTitle(title)

	mk := provider.Str(it, "make", "brand")
	if mk == "" {
		mk = parsed.Make
	}
	model := provider.Str(it, "model")
	if model == "" {
		model = parsed.Model
	}
	year, ok := provider.Int(it, "year")
	if !ok {
		year = parsed.Year
	}
	trim := provider.Str(it, "trim")
	if trim == "" {
		trim = parsed.Trim
	}

	location := provider.JoinNonEmpty(", ", provider.Str(it, "city"), provider.Str(it, "province"))
	if location == "" {
		location = provider.Str(it, "location")
	}
	if location == "" {
		location = "Canada"
	}

	body := provider.Str(it, "body_type", "bodyType")
	if body == "" {
		body = provider.InferBodyType(title)
	}
	color := provider.Str(it, "exterior_color", "color")

	return provider.RawListing{
		VIN:          provider.Str(it, "vin"),
		Make:         mk,
		Model:        model,
		Trim:         trim,
		Title:        title,
		Year:         year,
		Price:        provider.First(it, "price_cad", "price", "price_str"),
		Currency:     "CAD",
		Mileage:      provider.CoerceMileage(provider.First(it, "mileage_km", "mileage", "mileage_str"), domain.UnitKM),
		Location:     location,
		Dealer:       provider.DealerOr(domain.Dealer{Name: provider.Str(it, "dealer_name", "seller_name"), Phone: provider.Str(it, "dealer_phone", "phone"), Address: location}, "AutoTrader Seller"),
		Images:       provider.NormalizeImages(images(it)),
		Features:     provider.SplitList(provider.First(it, "features", "options", "equipment")),
		Color:        color,
		BodyType:     body,
		FuelType:     provider.Str(it, "fuel_type", "fuelType"),
		Transmission: provider.Str(it, "transmission"),
		Description:  provider.Str(it, "description"),
		SourceURL:    provider.SourceURL([]string{provider.Str(it, "url", "listing_url", "link")}, title, "autotrader.ca"),
	}
}

// images reads a list field, or the flattened "image_urls/0" keys some
// dataset exports produce.
func images(it map[string]any) any {
	if v := provider.First(it, "image_urls", "images"); v != nil {
		return v
	}
	type indexed struct {
		i   int
		url string
	}
	var flat []indexed
	for k, v := range it {
		rest, found := strings.CutPrefix(k, "image_urls/")
		if !found {
			continue
		}
		i, err := strconv.Atoi(rest)
		s, isStr := v.(string)
		if err != nil || !isStr {
			continue
		}
		flat = append(flat, indexed{i, s})
	}
	sort.Slice(flat, func(a, b int) bool { return flat[a].i < flat[b].i })
	out := make([]string, len(flat))
	for n, f := range flat {
		out[n] = f.url
	}
	return out
}
