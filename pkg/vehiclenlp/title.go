package vehiclenlp

import "strings"

// Title is a listing headline split into its parts.
type Title struct {
	Year  int
	Make  string
	Model string
	Trim  string
}

// ParseTitle splits a headline such as "2023 Land Rover Range Rover Sport
// HSE" into year, make, model and trim. Unknown makes fall back to "first
// word is the make, second word is the model".
func ParseTitle(title string) Title {
	t := Title{Year: firstYear(title)}
	clean := strings.Join(strings.Fields(yearFullRe.ReplaceAllString(title, " ")), " ")
	if clean == "" {
		return t
	}

	if loc := makeRe.FindStringSubmatchIndex(clean); loc != nil {
		t.Make = aliasToMake[strings.ToLower(clean[loc[2]:loc[3]])]
		rest := clean[loc[1]:]
		if model, end := modelAt(t.Make, rest); model != "" {
			t.Model = model
			t.Trim = strings.TrimSpace(rest[end:])
			return t
		}
		t.Model, t.Trim = splitFirst(strings.TrimSpace(rest))
		return t
	}

	for _, d := range distinctModel {
		if len(d.model.lower) > 2 && strings.HasPrefix(strings.ToLower(clean), d.model.lower+" ") {
			t.Make = d.mk
			t.Model = d.model.canonical
			t.Trim = strings.TrimSpace(clean[len(d.model.lower):])
			return t
		}
	}

	t.Make, clean = splitFirst(clean)
	t.Model, t.Trim = splitFirst(clean)
	return t
}

func splitFirst(s string) (string, string) {
	first, rest, _ := strings.Cut(s, " ")
	return first, strings.TrimSpace(rest)
}
