// Package rank filters canonical listings against search criteria, scores
// them for relevance and assigns a stable, paginated order.
package rank

import (
	"sort"
	"strings"

	"github.com/WessleyAI/carsearch/engine/domain"
	"github.com/WessleyAI/carsearch/pkg/fn"
)

// Score weights.
const (
	BaseScore   = 50
	BrandBonus  = 20
	ModelBonus  = 10
	ImageBonus  = 5
	PriceBonus  = 5
	NoImageCost = 5
	NoPriceCost = 10
	MinScore    = 0
	MaxScore    = 100
)

// Filter keeps the listings matching the brand, model and required
// features of c. Order is preserved.
func Filter(listings []domain.Listing, c domain.SearchCriteria) []domain.Listing {
	brands := domain.ExpandBrand(c.Brand)
	model := strings.ToLower(strings.TrimSpace(c.Model))
	return fn.Filter(listings, func(l domain.Listing) bool {
		return matchBrand(l, brands) && matchModel(l, model) && matchFeatures(l, c.RequiredFeatures)
	})
}

func matchBrand(l domain.Listing, brands []string) bool {
	if len(brands) == 0 {
		return true
	}
	brand := strings.ToLower(l.Brand)
	full := brand + " " + strings.ToLower(l.Model)
	for _, b := range brands {
		if strings.Contains(brand, b) || strings.Contains(full, b) {
			return true
		}
	}
	return false
}

func matchModel(l domain.Listing, model string) bool {
	if model == "" {
		return true
	}
	if strings.Contains(strings.ToLower(l.Model), model) || strings.Contains(strings.ToLower(l.Title), model) {
		return true
	}
	words := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(l.Brand + " " + l.Model)) {
		words[w] = true
	}
	for _, w := range strings.Fields(model) {
		if !words[w] {
			return false
		}
	}
	return true
}

// matchFeatures requires every token to appear in the features list, the
// description or the color.
func matchFeatures(l domain.Listing, required []string) bool {
	if len(required) == 0 {
		return true
	}
	fields := make([]string, 0, len(l.Features)+2)
	for _, f := range l.Features {
		fields = append(fields, strings.ToLower(f))
	}
	fields = append(fields, strings.ToLower(l.Description), strings.ToLower(l.Color))

	for _, token := range required {
		token = strings.ToLower(strings.TrimSpace(token))
		if token == "" {
			continue
		}
		found := false
		for _, f := range fields {
			if strings.Contains(f, token) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Score rates a listing against the free-text query, clamped to [0, 100].
func Score(l domain.Listing, freeText string) int {
	q := strings.ToLower(freeText)
	score := BaseScore
	if b := strings.ToLower(strings.TrimSpace(l.Brand)); b != "" && strings.Contains(q, b) {
		score += BrandBonus
	}
	if m := strings.ToLower(strings.TrimSpace(l.Model)); m != "" && strings.Contains(q, m) {
		score += ModelBonus
	}
	if len(l.Images) > 0 {
		score += ImageBonus
	} else {
		score -= NoImageCost
	}
	if l.Price.Amount.IsPositive() {
		score += PriceBonus
	} else {
		score -= NoPriceCost
	}
	return min(max(score, MinScore), MaxScore)
}

// Rank scores every listing and orders them by score descending. Equal
// scores keep their input order. Ranks start at 1.
func Rank(listings []domain.Listing, freeText string) []domain.RankedResult {
	ranked := make([]domain.RankedResult, len(listings))
	for i, l := range listings {
		ranked[i] = domain.RankedResult{Listing: l, MatchScore: Score(l, freeText)}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].MatchScore > ranked[j].MatchScore })
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

// Paginate returns a copy of at most limit results starting at
// (page-1)*limit. Out-of-range pages are empty.
func Paginate(ranked []domain.RankedResult, page, limit int) []domain.RankedResult {
	if page < 1 || limit < 1 {
		return []domain.RankedResult{}
	}
	pages := len(ranked) / limit
	if len(ranked)%limit != 0 {
		pages++
	}
	if page > pages {
		return []domain.RankedResult{}
	}
	start := (page - 1) * limit
	end := start + min(limit, len(ranked)-start)
	out := make([]domain.RankedResult, end-start)
	copy(out, ranked[start:end])
	return out
}
