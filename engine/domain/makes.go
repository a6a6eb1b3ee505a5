package domain

import "strings"

// BrandAliasGroups lists brand names that refer to the same vehicle lines.
// The first entry of each group is the canonical brand.
var BrandAliasGroups = [][]string{
	{"land rover", "range rover"},
	{"chevrolet", "chevy"},
	{"mercedes-benz", "mercedes", "benz"},
	{"volkswagen", "vw"},
	{"ram", "dodge ram"},
	{"alfa romeo", "alfa"},
	{"mini", "mini cooper"},
	{"tesla", "tesla motors"},
}

var aliasIndex = buildAliasIndex()

func buildAliasIndex() map[string]int {
	idx := make(map[string]int)
	for i, group := range BrandAliasGroups {
		for _, name := range group {
			idx[name] = i
		}
	}
	return idx
}

// ExpandBrand returns the lower-cased brand plus every alias in its group.
func ExpandBrand(brand string) []string {
	b := strings.ToLower(strings.TrimSpace(brand))
	if b == "" {
		return nil
	}
	i, ok := aliasIndex[b]
	if !ok {
		return []string{b}
	}
	out := []string{b}
	for _, name := range BrandAliasGroups[i] {
		if name != b {
			out = append(out, name)
		}
	}
	return out
}

// CanonicalBrand maps an alias to the first name of its group, title-cased.
// Unknown brands are returned trimmed and unchanged.
func CanonicalBrand(brand string) string {
	b := strings.TrimSpace(brand)
	i, ok := aliasIndex[strings.ToLower(b)]
	if !ok {
		return b
	}
	return titleWords(BrandAliasGroups[i][0])
}

func titleWords(s string) string {
	parts := strings.Fields(s)
	for i, p := range parts {
		segs := strings.Split(p, "-")
		for j, seg := range segs {
			if seg != "" {
				segs[j] = strings.ToUpper(seg[:1]) + seg[1:]
			}
		}
		parts[i] = strings.Join(segs, "-")
	}
	return strings.Join(parts, " ")
}

// MinModelYear and MaxModelYear bound accepted model years.
const (
	MinModelYear = 1900
	MaxModelYear = 2100
)
