package semantic

import (
	"fmt"
	"strings"

	"github.com/WessleyAI/carsearch/engine/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Match is one similar-listing hit.
type Match struct {
	ID        string          `json:"id"`
	Score     float32         `json:"score"`
	DedupKey  string          `json:"dedup_key"`
	Title     string          `json:"title"`
	Brand     string          `json:"brand"`
	Model     string          `json:"model"`
	Year      int             `json:"year,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency"`
	Source    string          `json:"source"`
	SourceURL string          `json:"source_url"`
}

// listingSpace namespaces point IDs derived from dedup keys.
var listingSpace = uuid.MustParse("5a3c1e9e-6a0f-4c8b-9f0e-2f1d7b9c4e21")

// PointID is the stable Qdrant point ID for a listing, so re-indexing the
// same vehicle overwrites its point.
func PointID(l domain.Listing) string {
	return uuid.NewSHA1(listingSpace, []byte(l.DedupKey)).String()
}

// Document is the text embedded for a listing.
func Document(l domain.Listing) string {
	var b strings.Builder
	b.WriteString(l.Title)
	if l.Color != "" {
		fmt.Fprintf(&b, ". %s", l.Color)
	}
	if l.BodyType != "" {
		fmt.Fprintf(&b, ". %s", l.BodyType)
	}
	if l.FuelType != "" {
		fmt.Fprintf(&b, ". %s", l.FuelType)
	}
	if len(l.Features) > 0 {
		fmt.Fprintf(&b, ". Features: %s", strings.Join(l.Features, ", "))
	}
	if l.Description != "" {
		fmt.Fprintf(&b, ". %s", l.Description)
	}
	return b.String()
}
