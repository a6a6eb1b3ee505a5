// Package domain defines the core search types, credit account model, and
// sentinel errors shared by every stage of the search pipeline.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SearchCriteria is the validated, defaulted search request. Built once per
// request by BuildCriteria and passed by value afterwards.
type SearchCriteria struct {
	Brand            string           `json:"brand,omitempty"`
	Model            string           `json:"model,omitempty"`
	YearMin          *int             `json:"year_min,omitempty"`
	YearMax          *int             `json:"year_max,omitempty"`
	PriceMin         *decimal.Decimal `json:"price_min,omitempty"`
	PriceMax         *decimal.Decimal `json:"price_max,omitempty"`
	MileageMax       *int             `json:"mileage_max,omitempty"`
	RequiredFeatures []string         `json:"required_features,omitempty"`
	BodyType         string           `json:"body_type,omitempty"`
	FuelType         string           `json:"fuel_type,omitempty"`
	FreeTextQuery    string           `json:"query,omitempty"`
	Location         string           `json:"location,omitempty"`
	PostalCode       string           `json:"postal_code,omitempty"`
	Country          string           `json:"country"`
	RadiusKM         int              `json:"radius_km"`
	Page             int              `json:"page"`
	Limit            int              `json:"limit"`
}

// Offset is the zero-based index of the first result on the requested page.
func (c SearchCriteria) Offset() int { return (c.Page - 1) * c.Limit }

// GeoTarget is a possibly partial location resolution. Coordinates are nil
// when nothing could be resolved beyond the country.
type GeoTarget struct {
	Country        string   `json:"country"`
	Latitude       *float64 `json:"latitude,omitempty"`
	Longitude      *float64 `json:"longitude,omitempty"`
	ResolvedPostal string   `json:"resolved_postal,omitempty"`
	City           string   `json:"city,omitempty"`
	Region         string   `json:"region,omitempty"`
}

// HasCoordinates reports whether both latitude and longitude are set.
func (g GeoTarget) HasCoordinates() bool { return g.Latitude != nil && g.Longitude != nil }

// Money is a positive amount in an ISO 4217 currency.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// Mileage units.
const (
	UnitKM    = "km"
	UnitMiles = "mi"
)

// Mileage is an odometer reading.
type Mileage struct {
	Value int    `json:"value"`
	Unit  string `json:"unit"`
}

// Dealer holds seller contact details. Any field may be empty.
type Dealer struct {
	Name    string `json:"name,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// Listing is the canonical, deduplicated representation of one vehicle offer.
// Price.Amount is always positive.
type Listing struct {
	VIN              string   `json:"vin,omitempty"`
	DedupKey         string   `json:"dedup_key"`
	Brand            string   `json:"brand"`
	Model            string   `json:"model"`
	Trim             string   `json:"trim,omitempty"`
	Title            string   `json:"title"`
	Year             int      `json:"year,omitempty"`
	Price            Money    `json:"price"`
	Mileage          *Mileage `json:"mileage,omitempty"`
	Location         string   `json:"location,omitempty"`
	Dealer           Dealer   `json:"dealer"`
	Images           []string `json:"images"`
	Features         []string `json:"features"`
	Color            string   `json:"color,omitempty"`
	BodyType         string   `json:"body_type,omitempty"`
	FuelType         string   `json:"fuel_type,omitempty"`
	Transmission     string   `json:"transmission,omitempty"`
	Description      string   `json:"description,omitempty"`
	Source           string   `json:"source"`
	SourceURL        string   `json:"source_url"`
	ProviderPriority int      `json:"provider_priority"`
}

// RankedResult is a listing with its relevance score and 1-based rank.
type RankedResult struct {
	Listing    Listing `json:"listing"`
	MatchScore int     `json:"match_score"`
	Rank       int     `json:"rank"`
}

// RankedResults is one page of a ranked search.
type RankedResults struct {
	SearchID string         `json:"search_id"`
	Results  []RankedResult `json:"results"`
	Page     int            `json:"page"`
	Limit    int            `json:"limit"`
	Total    int            `json:"total"`
	Currency string         `json:"currency"`
	Geo      GeoTarget      `json:"geo"`
}

// CreditAccount is the per-user search allowance.
type CreditAccount struct {
	UserID           string    `json:"user_id"`
	CreditsRemaining int       `json:"credits_remaining"`
	Unlimited        bool      `json:"unlimited"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// CanDeduct reports whether a search may be charged to the account.
func (a CreditAccount) CanDeduct() bool { return a.Unlimited || a.CreditsRemaining > 0 }

// SearchCompleted is handed to the persistence collaborator after a
// successful search.
type SearchCompleted struct {
	SearchID    string         `json:"search_id"`
	UserID      string         `json:"user_id"`
	Criteria    SearchCriteria `json:"criteria"`
	Results     []RankedResult `json:"results"`
	Total       int            `json:"total"`
	CompletedAt time.Time      `json:"completed_at"`
}
