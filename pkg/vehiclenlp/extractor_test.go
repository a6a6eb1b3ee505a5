package vehiclenlp

import (
	"context"
	"testing"
)

func TestBest(t *testing.T) {
	tests := []struct {
		input     string
		wantMake  string
		wantModel string
		wantYear  int
	}{
		{"My 2019 Honda Civic is making a clicking noise", "Honda", "Civic", 2019},
		{"F-150 EcoBoost for sale", "Ford", "F-150", 0},
		{"2022 Camry hybrid, one owner", "Toyota", "Camry", 2022},
		{"Looking for an '18 Chevy Silverado", "Chevrolet", "Silverado", 2018},
		{"BMW 3 Series with sport package", "BMW", "3 Series", 0},
		{"Tesla Model 3 long range", "Tesla", "Model 3", 0},
		{"Jeep Grand Cherokee 2020 overland", "Jeep", "Grand Cherokee", 2020},
		{"VW Golf R manual", "Volkswagen", "Golf", 0},
		{"Lexus RX 350 2021 with navigation", "Lexus", "RX", 2021},
		{"2018 Mazda CX-5 GT", "Mazda", "CX-5", 2018},
		{"Mercedes C-Class 2020 AMG line", "Mercedes-Benz", "C-Class", 2020},
		{"GMC Sierra 1500 2022 6.2L", "GMC", "Sierra", 2022},
		{"2023 Land Rover Range Rover Sport", "Land Rover", "Range Rover Sport", 2023},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			m, ok := Best(tt.input)
			if !ok {
				t.Fatalf("Best(%q) found nothing", tt.input)
			}
			if m.Make != tt.wantMake || m.Model != tt.wantModel || m.Year != tt.wantYear {
				t.Errorf("got %s/%s/%d, want %s/%s/%d", m.Make, m.Model, m.Year, tt.wantMake, tt.wantModel, tt.wantYear)
			}
		})
	}
}

func TestBestNothing(t *testing.T) {
	if _, ok := Best(""); ok {
		t.Error("expected no match for empty string")
	}
	if m, ok := Best("nothing about cars here"); ok {
		t.Errorf("expected no match, got %+v", m)
	}
}

func TestMentionsMultiple(t *testing.T) {
	ms := Mentions("trading my 2019 Honda Civic for a 2023 Toyota RAV4")
	if len(ms) != 2 {
		t.Fatalf("expected 2 mentions, got %d: %+v", len(ms), ms)
	}
	if ms[0].Confidence < ms[1].Confidence {
		t.Error("mentions should be sorted by confidence")
	}
}

func TestParseTitle(t *testing.T) {
	tests := []struct {
		in   string
		want Title
	}{
		{"2023 Land Rover Range Rover Sport HSE", Title{2023, "Land Rover", "Range Rover Sport", "HSE"}},
		{"2021 Honda CR-V EX-L AWD", Title{2021, "Honda", "CR-V", "EX-L AWD"}},
		{"2019 chevy equinox lt", Title{2019, "Chevrolet", "Equinox", "lt"}},
		{"2020 Honda Element EX", Title{2020, "Honda", "Element", "EX"}},
		{"2017 Pontiac Vibe GT", Title{2017, "Pontiac", "Vibe", "GT"}},
		{"Camry SE 2018", Title{2018, "Toyota", "Camry", "SE"}},
		{"", Title{}},
	}
	for _, tt := range tests {
		if got := ParseTitle(tt.in); got != tt.want {
			t.Errorf("ParseTitle(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	q := Parse("Looking for a 2018-2021 Toyota RAV4 hybrid under $30k with heated seats and a sunroof in Vancouver, BC")
	if q.Make != "Toyota" || q.Model != "RAV4" {
		t.Errorf("make/model = %s/%s", q.Make, q.Model)
	}
	if q.YearMin == nil || *q.YearMin != 2018 || q.YearMax == nil || *q.YearMax != 2021 {
		t.Errorf("years = %v/%v", q.YearMin, q.YearMax)
	}
	if q.PriceMax == nil || *q.PriceMax != 30000 {
		t.Errorf("price max = %v", q.PriceMax)
	}
	if q.FuelType != "hybrid" {
		t.Errorf("fuel = %q", q.FuelType)
	}
	if len(q.Features) != 2 || q.Features[0] != "heated seats" || q.Features[1] != "sunroof" {
		t.Errorf("features = %v", q.Features)
	}
	if q.Location != "Vancouver, BC" {
		t.Errorf("location = %q", q.Location)
	}
}

func TestParseBoundsAndPostal(t *testing.T) {
	q := Parse("black SUV 2019 or newer, between 20,000 and 35,000, less than 80k km near m5h 2n2")
	if q.BodyType != "suv" {
		t.Errorf("body = %q", q.BodyType)
	}
	if q.YearMin == nil || *q.YearMin != 2019 || q.YearMax != nil {
		t.Errorf("years = %v/%v", q.YearMin, q.YearMax)
	}
	if q.PriceMin == nil || *q.PriceMin != 20000 || q.PriceMax == nil || *q.PriceMax != 35000 {
		t.Errorf("prices = %v/%v", q.PriceMin, q.PriceMax)
	}
	if q.MileageMax == nil || *q.MileageMax != 80000 {
		t.Errorf("mileage = %v", q.MileageMax)
	}
	if q.PostalCode != "M5H2N2" || q.Country != "CA" {
		t.Errorf("postal = %q/%q", q.PostalCode, q.Country)
	}
	if len(q.Features) != 1 || q.Features[0] != "black" {
		t.Errorf("features = %v", q.Features)
	}
	if q.Location != "" {
		t.Errorf("location = %q", q.Location)
	}
}

func TestParseYearWords(t *testing.T) {
	q := Parse("ford mustang after 2015 over $15,000 zip 98101")
	if q.YearMin == nil || *q.YearMin != 2016 {
		t.Errorf("year min = %v", q.YearMin)
	}
	if q.PriceMin == nil || *q.PriceMin != 15000 {
		t.Errorf("price min = %v", q.PriceMin)
	}
	if q.PostalCode != "98101" || q.Country != "US" {
		t.Errorf("zip = %q/%q", q.PostalCode, q.Country)
	}

	q = Parse("truck before 2010 under 2015")
	if q.YearMax == nil || *q.YearMax != 2009 || q.PriceMax != nil {
		t.Errorf("year max = %v, price max = %v", q.YearMax, q.PriceMax)
	}
}

func TestParseEmpty(t *testing.T) {
	q := Parse("   ")
	if q.Make != "" || q.YearMin != nil || q.Features != nil {
		t.Errorf("expected empty query, got %+v", q)
	}
}

func TestExtractorHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (Extractor{}).Extract(ctx, "honda civic"); err == nil {
		t.Error("expected context error")
	}
	q, err := (Extractor{}).Extract(context.Background(), "honda civic")
	if err != nil || q.Model != "Civic" {
		t.Errorf("got %+v, %v", q, err)
	}
}
