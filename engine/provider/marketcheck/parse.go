package marketcheck

import (
	"strconv"
	"strings"

	"github.com/WessleyAI/carsearch/engine/domain"
	"github.com/WessleyAI/carsearch/engine/provider"
)

func parse(items []map[string]any) []provider.RawListing {
	out := make([]provider.RawListing, 0, len(items))
	for _, it := range items {
		out = append(out, parseListing(it))
	}
	return out
}

func parseListing(it map[string]any) provider.RawListing {
	build := provider.Obj(it, "build")
	dealer := provider.Obj(it, "dealer")
	media := provider.Obj(it, "media")

	year, _ := provider.Int(build, "year")
	if year == 0 {
		year, _ = provider.Int(it, "year")
	}
	mk := firstOf(build, it, "make")
	model := firstOf(build, it, "model")
	trim := firstOf(build, it, "trim")
	body := firstOf(build, it, "body_type")
	transmission := firstOf(build, it, "transmission")
	engine := firstOf(build, it, "engine")
	fuel := firstOf(build, it, "fuel_type")
	drivetrain := firstOf(build, it, "drivetrain")

	city := firstOf(dealer, it, "city")
	state := firstOf(dealer, it, "state")
	name := provider.Str(dealer, "name")
	if name == "" {
		name = provider.Str(it, "dealer_name")
	}
	phone := provider.Str(dealer, "phone")
	if phone == "" {
		phone = provider.Str(it, "dealer_phone")
	}
	street := provider.Str(dealer, "street")
	if street == "" {
		street = provider.Str(it, "dealer_address")
	}
	address := provider.JoinNonEmpty(", ", street, city, strings.TrimSpace(state+" "+provider.Str(dealer, "zip")))

	exterior := provider.Str(it, "exterior_color", "base_ext_color")
	interior := provider.Str(it, "interior_color", "base_int_color")
	var features []string
	if exterior != "" {
		features = append(features, exterior+" Exterior")
	}
	if interior != "" {
		features = append(features, interior+" Interior")
	}
	for _, f := range []string{body, transmission, drivetrain, engine} {
		if f != "" {
			features = append(features, f)
		}
	}

	title := provider.JoinNonEmpty(" ", yearString(year), mk, model, trim)
	description := title
	if body != "" {
		description += " - " + body
	}

	photos := provider.First(media, "photo_links", "photos")
	d := provider.DealerOr(domain.Dealer{Name: name, Phone: phone, Address: address}, "Auto Dealer")

	return provider.RawListing{
		VIN:          provider.Str(it, "vin"),
		Make:         mk,
		Model:        model,
		Trim:         trim,
		Title:        title,
		Year:         year,
		Price:        provider.First(it, "price"),
		Currency:     "USD",
		Mileage:      provider.CoerceMileage(provider.First(it, "miles", "mileage"), domain.UnitMiles),
		Location:     provider.JoinNonEmpty(", ", city, state),
		Dealer:       d,
		Images:       provider.NormalizeImages(photos),
		Features:     features,
		Color:        exterior,
		BodyType:     body,
		FuelType:     fuel,
		Transmission: transmission,
		Description:  description,
		SourceURL: provider.SourceURL([]string{
			provider.Str(it, "vdp_url", "vdpUrl"),
			provider.Str(it, "inventory_url", "inventoryUrl"),
			provider.Str(it, "dealer_url", "dealerUrl"),
			provider.Str(it, "dealer_website", "dealerWebsite"),
			provider.Str(it, "listing_url", "listingUrl"),
			provider.Str(it, "url"),
		}, yearString(year), mk, model, d.Name, city, state),
	}
}

func firstOf(primary, fallback map[string]any, key string) string {
	if s := provider.Str(primary, key); s != "" {
		return s
	}
	return provider.Str(fallback, key)
}

func yearString(y int) string {
	if y <= 0 {
		return ""
	}
	return strconv.Itoa(y)
}
