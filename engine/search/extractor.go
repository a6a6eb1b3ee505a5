package search

import (
	"context"
	"strings"

	"github.com/WessleyAI/carsearch/engine/domain"
	"github.com/WessleyAI/carsearch/pkg/vehiclenlp"
	"github.com/shopspring/decimal"
)

// RuleExtractor adapts the offline vehiclenlp parser to Extractor.
type RuleExtractor struct {
	nlp vehiclenlp.Extractor
}

func (r RuleExtractor) Extract(ctx context.Context, text string) (domain.PartialCriteria, error) {
	q, err := r.nlp.Extract(ctx, text)
	if err != nil {
		return domain.PartialCriteria{}, err
	}
	return FromQuery(q), nil
}

// FromQuery converts a parsed query into partial criteria.
func FromQuery(q vehiclenlp.Query) domain.PartialCriteria {
	p := domain.PartialCriteria{
		Brand:      nonEmpty(q.Make),
		Model:      nonEmpty(q.Model),
		YearMin:    q.YearMin,
		YearMax:    q.YearMax,
		MileageMax: q.MileageMax,
		BodyType:   nonEmpty(q.BodyType),
		FuelType:   nonEmpty(q.FuelType),
		Location:   nonEmpty(q.Location),
		PostalCode: nonEmpty(q.PostalCode),
		Country:    nonEmpty(q.Country),
		Features:   q.Features,
	}
	if q.PriceMin != nil {
		d := decimal.NewFromFloat(*q.PriceMin)
		p.PriceMin = &d
	}
	if q.PriceMax != nil {
		d := decimal.NewFromFloat(*q.PriceMax)
		p.PriceMax = &d
	}
	return p
}

func nonEmpty(s string) *string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return &s
}
