package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestBuildCriteria_Defaults(t *testing.T) {
	c := BuildCriteria(PartialCriteria{}, DefaultCriteria)

	assert.Equal(t, "CA", c.Country)
	assert.Equal(t, 150, c.RadiusKM)
	assert.Equal(t, 1, c.Page)
	assert.Equal(t, 10, c.Limit)
	assert.Equal(t, 0, c.Offset())
	assert.Nil(t, c.YearMin)
	assert.Nil(t, c.PriceMax)
	assert.Empty(t, c.RequiredFeatures)
}

func TestBuildCriteria_ZeroDefaultsFallBack(t *testing.T) {
	c := BuildCriteria(PartialCriteria{}, CriteriaDefaults{})
	assert.Equal(t, "CA", c.Country)
	assert.Equal(t, 10, c.Limit)
}

func TestBuildCriteria_Sanitizes(t *testing.T) {
	c := BuildCriteria(PartialCriteria{
		Brand:    ptr("  chevy "),
		Model:    ptr("  Silverado   1500 "),
		YearMin:  ptr(2022),
		YearMax:  ptr(2018),
		PriceMin: ptr(decimal.NewFromInt(-5)),
		PriceMax: ptr(decimal.NewFromInt(30000)),
		Features: []string{" Red", "red", "", "Sunroof"},
		Country:  ptr("us"),
		RadiusKM: ptr(-3),
		Page:     ptr(0),
		Limit:    ptr(500),
	}, DefaultCriteria)

	assert.Equal(t, "Chevrolet", c.Brand)
	assert.Equal(t, "Silverado 1500", c.Model)
	require.NotNil(t, c.YearMin)
	require.NotNil(t, c.YearMax)
	assert.Equal(t, 2018, *c.YearMin)
	assert.Equal(t, 2022, *c.YearMax)
	assert.Nil(t, c.PriceMin)
	require.NotNil(t, c.PriceMax)
	assert.True(t, c.PriceMax.Equal(decimal.NewFromInt(30000)))
	assert.Equal(t, []string{"red", "sunroof"}, c.RequiredFeatures)
	assert.Equal(t, "US", c.Country)
	assert.Equal(t, 150, c.RadiusKM)
	assert.Equal(t, 1, c.Page)
	assert.Equal(t, 50, c.Limit)
}

func TestBuildCriteria_InvalidCountryIgnored(t *testing.T) {
	c := BuildCriteria(PartialCriteria{Country: ptr("Canada")}, DefaultCriteria)
	assert.Equal(t, "CA", c.Country)
}

func TestBuildCriteria_OffsetForLaterPages(t *testing.T) {
	c := BuildCriteria(PartialCriteria{Page: ptr(3), Limit: ptr(10)}, DefaultCriteria)
	assert.Equal(t, 20, c.Offset())
}

func TestPartialCriteria_IgnoresUnknownFields(t *testing.T) {
	var p PartialCriteria
	err := json.Unmarshal([]byte(`{"brand":"Toyota","price_max":30000,"mood":"happy","features":["red"]}`), &p)
	require.NoError(t, err)
	require.NotNil(t, p.Brand)
	assert.Equal(t, "Toyota", *p.Brand)
	require.NotNil(t, p.PriceMax)
	assert.Equal(t, "30000", p.PriceMax.String())
	assert.Equal(t, []string{"red"}, p.Features)
}

func TestPartialCriteria_Merge(t *testing.T) {
	a := PartialCriteria{Brand: ptr("Honda")}
	b := PartialCriteria{Brand: ptr("Toyota"), Model: ptr("Civic"), Features: []string{"red"}}
	m := a.Merge(b)
	assert.Equal(t, "Honda", *m.Brand)
	assert.Equal(t, "Civic", *m.Model)
	assert.Equal(t, []string{"red"}, m.Features)
}

func TestExpandBrand(t *testing.T) {
	assert.Equal(t, []string{"range rover", "land rover"}, ExpandBrand("Range Rover"))
	assert.Equal(t, []string{"toyota"}, ExpandBrand("Toyota"))
	assert.Nil(t, ExpandBrand("  "))
}

func TestCanonicalBrand(t *testing.T) {
	assert.Equal(t, "Mercedes-Benz", CanonicalBrand("benz"))
	assert.Equal(t, "Land Rover", CanonicalBrand("Range Rover"))
	assert.Equal(t, "Toyota", CanonicalBrand(" Toyota "))
}

func TestNormalizeVIN(t *testing.T) {
	assert.Equal(t, "1HGCM82633A004352", NormalizeVIN(" 1hgcm82633a004352 "))
	assert.True(t, ValidVIN("1hgcm82633a004352"))
	assert.False(t, ValidVIN("1HGCM82633A00435O"))
	assert.False(t, ValidVIN("short"))
}

func TestCurrencyFor(t *testing.T) {
	assert.Equal(t, "CAD", CurrencyFor("ca"))
	assert.Equal(t, "USD", CurrencyFor("US"))
	assert.Equal(t, "USD", CurrencyFor(""))
}

func TestCreditAccount_CanDeduct(t *testing.T) {
	assert.True(t, CreditAccount{CreditsRemaining: 1}.CanDeduct())
	assert.False(t, CreditAccount{}.CanDeduct())
	assert.True(t, CreditAccount{Unlimited: true}.CanDeduct())
}

func TestValidationError_Unwrap(t *testing.T) {
	err := NewValidationError("amount", "-1", ErrInvalidAmount)
	assert.True(t, errors.Is(err, ErrInvalidAmount))
	assert.Contains(t, err.Error(), "amount")
}
