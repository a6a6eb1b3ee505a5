// Package provider defines the inventory source adapter contract, the shared
// helpers adapters use to normalize loosely typed payloads, and the Pool that
// queries every adapter concurrently.
package provider

import (
	"context"
	"time"

	"github.com/WessleyAI/carsearch/engine/domain"
)

// RawListing is one listing as an adapter parsed it. Price keeps the value
// the provider returned (number, string or nil); the aggregator coerces it.
type RawListing struct {
	Provider     string
	Priority     int
	VIN          string
	Make         string
	Model        string
	Trim         string
	Title        string
	Year         int
	Price        any
	Currency     string
	Mileage      *domain.Mileage
	Location     string
	Dealer       domain.Dealer
	Images       []string
	Features     []string
	Color        string
	BodyType     string
	FuelType     string
	Transmission string
	Description  string
	SourceURL    string
}

// Adapter is an inventory source. Search translates the criteria into the
// provider's request, performs it and parses the response. The returned
// error is informational: the Pool logs and counts it, then treats the
// adapter as having returned nothing.
type Adapter interface {
	Name() string
	Search(ctx context.Context, criteria domain.SearchCriteria, geo domain.GeoTarget) ([]RawListing, error)
}

// Outcomes recorded per adapter call.
const (
	OutcomeOK          = "ok"
	OutcomeEmpty       = "empty"
	OutcomeError       = "error"
	OutcomeTimeout     = "timeout"
	OutcomePanic       = "panic"
	OutcomeCircuitOpen = "circuit_open"
	OutcomeCanceled    = "canceled"
)

// Batch is the result of one adapter call.
type Batch struct {
	Provider string
	Priority int
	Listings []RawListing
	Outcome  string
	Took     time.Duration
}

// FetchSize is the number of rows an adapter asks for so that the merged
// set covers the requested page, capped at ceiling.
func FetchSize(c domain.SearchCriteria, ceiling int) int {
	if c.Page < 1 || c.Limit < 1 || c.Page > ceiling/c.Limit {
		return ceiling
	}
	return min(c.Page*c.Limit, ceiling)
}
