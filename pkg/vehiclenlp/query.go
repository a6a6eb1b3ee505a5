package vehiclenlp

import (
	"context"
	"regexp"
	"strconv"
	"strings"
)

// Query is the structured reading of a free-text vehicle search. Every field
// is optional.
type Query struct {
	Make       string
	Model      string
	YearMin    *int
	YearMax    *int
	PriceMin   *float64
	PriceMax   *float64
	MileageMax *int
	BodyType   string
	FuelType   string
	Features   []string
	Location   string
	PostalCode string
	Country    string
}

var (
	amount        = `\$?\s*(\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?)\s*(k\b)?`
	unitSuffix    = `\s*(km|kms|kilometers|kilometres|miles|mi)?\b`
	betweenRe     = regexp.MustCompile(`(?i)\bbetween\s+` + amount + `\s*(?:and|to|-)\s*` + amount + unitSuffix)
	upperBoundRe  = regexp.MustCompile(`(?i)(?:\bunder|\bbelow|\bless than|\bmax(?:imum)?|\bup to|\bno more than|<)\s*` + amount + unitSuffix)
	lowerBoundRe  = regexp.MustCompile(`(?i)(?:\bover|\babove|\bmore than|\bat least|\bmin(?:imum)?|>)\s*` + amount + unitSuffix)
	yearRangeRe   = regexp.MustCompile(`\b((?:19|20)\d{2})\s*(?:-|–|to|and)\s*((?:19|20)\d{2})\b`)
	yearOrNewerRe = regexp.MustCompile(`(?i)\b((?:19|20)\d{2})\s*(?:or|and)\s*(?:newer|later|up|above)\b`)
	yearAfterRe   = regexp.MustCompile(`(?i)\b(newer than|after|since|from)\s+((?:19|20)\d{2})\b`)
	yearBeforeRe  = regexp.MustCompile(`(?i)\b(older than|before|up to)\s+((?:19|20)\d{2})\b`)
	caPostalRe    = regexp.MustCompile(`(?i)\b([ABCEGHJ-NPRSTVXY]\d[ABCEGHJ-NPRSTV-Z])\s?(\d[ABCEGHJ-NPRSTV-Z]\d)\b`)
	zipRe         = regexp.MustCompile(`(?i)\bzip(?:\s*code)?\s*(\d{5})\b`)
	locationKeyRe = regexp.MustCompile(`(?i)\b(?:in|near|around)\s+`)
)

var bodyTypes = []struct{ word, value string }{
	{"minivan", "minivan"},
	{"pickup", "truck"},
	{"truck", "truck"},
	{"crossover", "suv"},
	{"suv", "suv"},
	{"sedan", "sedan"},
	{"coupe", "coupe"},
	{"convertible", "convertible"},
	{"hatchback", "hatchback"},
	{"wagon", "wagon"},
	{"van", "van"},
}

var fuelTypes = []struct{ word, value string }{
	{"plug-in hybrid", "plug-in hybrid"},
	{"phev", "plug-in hybrid"},
	{"hybrid", "hybrid"},
	{"electric", "electric"},
	{"ev", "electric"},
	{"diesel", "diesel"},
	{"gasoline", "gasoline"},
	{"petrol", "gasoline"},
}

// featureWords are matched as whole words or phrases; the value is what
// ends up in the feature list.
var featureWords = []struct{ word, value string }{
	{"heated seats", "heated seats"},
	{"leather seats", "leather"},
	{"leather", "leather"},
	{"sunroof", "sunroof"},
	{"moonroof", "sunroof"},
	{"panoramic roof", "panoramic roof"},
	{"backup camera", "backup camera"},
	{"navigation", "navigation"},
	{"apple carplay", "apple carplay"},
	{"carplay", "apple carplay"},
	{"android auto", "android auto"},
	{"bluetooth", "bluetooth"},
	{"third row", "third row"},
	{"3rd row", "third row"},
	{"tow package", "tow package"},
	{"towing", "tow package"},
	{"awd", "awd"},
	{"all wheel drive", "awd"},
	{"4wd", "4wd"},
	{"4x4", "4wd"},
	{"manual", "manual"},
	{"automatic", "automatic"},
	{"remote start", "remote start"},
	{"black", "black"},
	{"white", "white"},
	{"silver", "silver"},
	{"grey", "grey"},
	{"gray", "grey"},
	{"red", "red"},
	{"blue", "blue"},
	{"green", "green"},
}

// locationStop ends a captured location phrase.
var locationStop = map[string]bool{
	"under": true, "below": true, "with": true, "for": true, "between": true,
	"over": true, "from": true, "and": true, "or": true, "that": true,
	"less": true, "more": true, "max": true, "around": true, "near": true,
	"black": true, "white": true, "silver": true, "red": true, "blue": true,
	"good": true, "great": true, "excellent": true, "condition": true, "the": true,
	"a": true, "an": true, "my": true, "stock": true, "mint": true, "person": true,
}

// Parse reads a free-text search into a Query.
func Parse(text string) Query {
	var q Query
	if strings.TrimSpace(text) == "" {
		return q
	}
	lower := strings.ToLower(text)
	padded := " " + wordsOnly(lower) + " "

	if m, ok := Best(text); ok {
		q.Make, q.Model = m.Make, m.Model
		if m.Year > 0 {
			y := m.Year
			q.YearMin, q.YearMax = &y, &y
		}
	}
	parseYears(text, &q)
	parseAmounts(text, &q)

	for _, b := range bodyTypes {
		if strings.Contains(padded, " "+b.word+" ") || strings.Contains(padded, " "+b.word+"s ") {
			q.BodyType = b.value
			break
		}
	}
	for _, f := range fuelTypes {
		if strings.Contains(padded, " "+f.word+" ") {
			q.FuelType = f.value
			break
		}
	}
	seen := map[string]bool{}
	for _, f := range featureWords {
		if !seen[f.value] && strings.Contains(padded, " "+f.word+" ") {
			seen[f.value] = true
			q.Features = append(q.Features, f.value)
		}
	}

	if m := caPostalRe.FindStringSubmatch(text); m != nil {
		q.PostalCode = strings.ToUpper(m[1] + m[2])
		q.Country = "CA"
	} else if m := zipRe.FindStringSubmatch(text); m != nil {
		q.PostalCode = m[1]
		q.Country = "US"
	}
	q.Location = parseLocation(text)
	return q
}

func parseYears(text string, q *Query) {
	if m := yearRangeRe.FindStringSubmatch(text); m != nil {
		lo, _ := strconv.Atoi(m[1])
		hi, _ := strconv.Atoi(m[2])
		if lo > hi {
			lo, hi = hi, lo
		}
		q.YearMin, q.YearMax = &lo, &hi
		return
	}
	if m := yearOrNewerRe.FindStringSubmatch(text); m != nil {
		y, _ := strconv.Atoi(m[1])
		q.YearMin, q.YearMax = &y, nil
		return
	}
	if m := yearAfterRe.FindStringSubmatch(text); m != nil {
		y, _ := strconv.Atoi(m[2])
		if strings.EqualFold(m[1], "after") || strings.EqualFold(m[1], "newer than") {
			y++
		}
		q.YearMin, q.YearMax = &y, nil
		return
	}
	if m := yearBeforeRe.FindStringSubmatch(text); m != nil {
		y, _ := strconv.Atoi(m[2])
		if !strings.EqualFold(m[1], "up to") {
			y--
		}
		q.YearMin, q.YearMax = nil, &y
		return
	}
	if q.YearMin == nil {
		if y := firstYear(text); y > 0 {
			q.YearMin, q.YearMax = &y, &y
		}
	}
}

func parseAmounts(text string, q *Query) {
	if m := betweenRe.FindStringSubmatch(text); m != nil {
		lo, hi := toAmount(m[1], m[2]), toAmount(m[3], m[4])
		if lo > hi {
			lo, hi = hi, lo
		}
		if isDistance(m[5]) {
			h := int(hi)
			q.MileageMax = &h
		} else if lo > 0 && !isYear(m[1], m[2]) {
			q.PriceMin, q.PriceMax = &lo, &hi
		}
	}
	for _, m := range upperBoundRe.FindAllStringSubmatch(text, -1) {
		v := toAmount(m[1], m[2])
		switch {
		case isDistance(m[3]):
			n := int(v)
			q.MileageMax = &n
		case q.PriceMax == nil && v >= 500 && !isYear(m[1], m[2]):
			q.PriceMax = &v
		}
	}
	for _, m := range lowerBoundRe.FindAllStringSubmatch(text, -1) {
		v := toAmount(m[1], m[2])
		if !isDistance(m[3]) && q.PriceMin == nil && v >= 500 && !isYear(m[1], m[2]) {
			q.PriceMin = &v
		}
	}
}

func toAmount(num, k string) float64 {
	v, err := strconv.ParseFloat(strings.ReplaceAll(num, ",", ""), 64)
	if err != nil {
		return 0
	}
	if k != "" {
		v *= 1000
	}
	return v
}

func isDistance(unit string) bool { return unit != "" }

// isYear rejects bare four-digit years such as "under 2015" as prices.
func isYear(num, k string) bool {
	if k != "" || len(num) != 4 {
		return false
	}
	return yearFullRe.MatchString(num)
}

func parseLocation(text string) string {
	for _, loc := range locationKeyRe.FindAllStringIndex(text, -1) {
		if phrase := locationPhrase(text[loc[1]:]); phrase != "" {
			return phrase
		}
	}
	return ""
}

// locationPhrase takes up to four place-name words from the start of s.
func locationPhrase(s string) string {
	var kept []string
	words := 0
	for _, w := range strings.Fields(strings.ReplaceAll(s, ",", " , ")) {
		if w == "," {
			kept = append(kept, w)
			continue
		}
		lw := strings.ToLower(w)
		if locationStop[lw] || !isPlaceWord(w) {
			break
		}
		if _, isMake := aliasToMake[lw]; isMake {
			return ""
		}
		kept = append(kept, w)
		if words++; words == 4 {
			break
		}
	}
	for len(kept) > 0 && kept[len(kept)-1] == "," {
		kept = kept[:len(kept)-1]
	}
	if len(kept) == 0 || kept[0] == "," {
		return ""
	}
	return strings.ReplaceAll(strings.Join(kept, " "), " ,", ",")
}

func isPlaceWord(w string) bool {
	for _, r := range w {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r == '.' || r == '\'' || r == '’' || r == '-') {
			return false
		}
	}
	return true
}

func wordsOnly(s string) string {
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-')
	}), " ")
}

// Extractor is the offline, rule-based feature extractor.
type Extractor struct{}

// Extract parses text, honoring ctx cancellation.
func (Extractor) Extract(ctx context.Context, text string) (Query, error) {
	if err := ctx.Err(); err != nil {
		return Query{}, err
	}
	return Parse(text), nil
}
