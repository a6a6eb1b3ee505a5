// Package vehiclenlp recognizes vehicle makes, models, years and search
// constraints in free text using a built-in catalog and regular expressions.
package vehiclenlp

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// Match is one vehicle mention found in text.
type Match struct {
	Make       string
	Model      string
	Year       int // 0 when absent
	Confidence float64
	Span       string
}

var (
	yearFullRe = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)
	yearAbbrRe = regexp.MustCompile(`'(\d{2})\b`)
)

// Mentions finds every vehicle mention in text, most confident first.
func Mentions(text string) []Match {
	if text == "" {
		return nil
	}
	var out []Match
	seen := make(map[string]bool)

	for _, loc := range makeRe.FindAllStringSubmatchIndex(text, -1) {
		mk := aliasToMake[strings.ToLower(text[loc[2]:loc[3]])]
		if mk == "" {
			continue
		}
		after := text[loc[1]:min(loc[1]+40, len(text))]
		model, modelEnd := modelAt(mk, after)

		before := text[max(0, loc[0]-10):loc[0]]
		year := firstYear(before)
		if year == 0 {
			year = firstYear(after[modelEnd:])
		}
		if year == 0 {
			year = abbrYear(before)
		}

		key := fmt.Sprintf("%s|%s|%d", mk, model, year)
		if seen[key] {
			continue
		}
		seen[key] = true

		start, end := loc[0], loc[1]
		if year > 0 {
			if i := strings.Index(before, strconv.Itoa(year)); i >= 0 {
				start = loc[0] - len(before) + i
			}
		}
		if model != "" {
			end = loc[1] + modelEnd
		}
		out = append(out, Match{
			Make:       mk,
			Model:      model,
			Year:       year,
			Confidence: confidence(model != "", year > 0),
			Span:       strings.TrimSpace(text[start:end]),
		})
	}

	out = append(out, standalone(text, seen)...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}

// Best returns the most confident mention in text.
func Best(text string) (Match, bool) {
	ms := Mentions(text)
	if len(ms) == 0 {
		return Match{}, false
	}
	return ms[0], true
}

func confidence(hasModel, hasYear bool) float64 {
	switch {
	case hasModel && hasYear:
		return 0.95
	case hasModel:
		return 0.80
	case hasYear:
		return 0.70
	default:
		return 0.60
	}
}

// modelAt matches a model of mk at the start of s (after leading spaces)
// and returns it with the offset just past it in s.
func modelAt(mk, s string) (string, int) {
	trimmed := strings.TrimLeftFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '\'' || r == '’'
	})
	offset := len(s) - len(trimmed)
	lower := strings.ToLower(trimmed)
	for _, m := range modelsByMake[mk] {
		if !strings.HasPrefix(lower, m.lower) {
			continue
		}
		if n := len(m.lower); n < len(lower) && isWordByte(lower[n]) {
			continue
		}
		return m.canonical, offset + len(m.lower)
	}
	return "", 0
}

// standalone finds distinctive models mentioned without their make.
func standalone(text string, seen map[string]bool) []Match {
	var out []Match
	lower := strings.ToLower(text)
	for _, d := range distinctModel {
		ml := d.model.lower
		if len(ml) <= 2 && !strings.Contains(ml, "-") {
			continue
		}
		idx := strings.Index(lower, ml)
		if idx < 0 {
			continue
		}
		end := idx + len(ml)
		if (idx > 0 && isWordByte(lower[idx-1])) || (end < len(lower) && isWordByte(lower[end])) {
			continue
		}
		if seen[fmt.Sprintf("%s|%s|0", d.mk, d.model.canonical)] || claimed(seen, d.mk, d.model.canonical) {
			continue
		}

		near := text[max(0, idx-12):min(end+12, len(text))]
		year := firstYear(near)
		if year == 0 {
			year = abbrYear(text[max(0, idx-12):idx])
		}
		key := fmt.Sprintf("%s|%s|%d", d.mk, d.model.canonical, year)
		if seen[key] {
			continue
		}
		seen[key] = true

		conf := 0.50
		if year > 0 {
			conf = 0.75
		}
		out = append(out, Match{
			Make:       d.mk,
			Model:      d.model.canonical,
			Year:       year,
			Confidence: conf,
			Span:       strings.TrimSpace(near),
		})
	}
	return out
}

// claimed reports whether a make mention already covered this model.
func claimed(seen map[string]bool, mk, model string) bool {
	prefix := mk + "|" + model + "|"
	for k := range seen {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}

func isWordByte(b byte) bool {
	r := rune(b)
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func firstYear(s string) int {
	m := yearFullRe.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	y, _ := strconv.Atoi(m[1])
	if y >= 1980 && y <= 2035 {
		return y
	}
	return 0
}

func abbrYear(s string) int {
	m := yearAbbrRe.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	yy, _ := strconv.Atoi(m[1])
	switch {
	case yy <= 35:
		return 2000 + yy
	case yy >= 80:
		return 1900 + yy
	default:
		return 0
	}
}
