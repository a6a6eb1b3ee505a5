// Package history persists completed searches as a graph:
//
//	(:User)-[:RAN]->(:Search)-[:RESULT {rank, score}]->(:Listing)
//	(:Make)-[:HAS_MODEL]->(:VehicleModel)<-[:OF_MODEL]-(:Listing)
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/WessleyAI/carsearch/engine/domain"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Summary is one past search of a user.
type Summary struct {
	SearchID    string    `json:"search_id"`
	Query       string    `json:"query,omitempty"`
	Brand       string    `json:"brand,omitempty"`
	Model       string    `json:"model,omitempty"`
	Total       int       `json:"total"`
	CompletedAt time.Time `json:"completed_at"`
}

// Store writes and reads the search history graph.
type Store struct {
	opener SessionOpener
	log    *slog.Logger
}

// New creates a Store on a neo4j driver.
func New(driver neo4j.DriverWithContext, log *slog.Logger) *Store {
	return NewWithOpener(NewDriverOpener(driver), log)
}

// NewWithOpener creates a Store on any SessionOpener.
func NewWithOpener(opener SessionOpener, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{opener: opener, log: log}
}

var schema = []string{
	`CREATE CONSTRAINT user_id IF NOT EXISTS FOR (u:User) REQUIRE u.id IS UNIQUE`,
	`CREATE CONSTRAINT search_id IF NOT EXISTS FOR (s:Search) REQUIRE s.id IS UNIQUE`,
	`CREATE CONSTRAINT listing_key IF NOT EXISTS FOR (l:Listing) REQUIRE l.key IS UNIQUE`,
	`CREATE CONSTRAINT make_id IF NOT EXISTS FOR (m:Make) REQUIRE m.id IS UNIQUE`,
	`CREATE CONSTRAINT vehicle_model_id IF NOT EXISTS FOR (m:VehicleModel) REQUIRE m.id IS UNIQUE`,
}

// EnsureSchema creates the uniqueness constraints the MERGEs rely on.
func (s *Store) EnsureSchema(ctx context.Context) error {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)
	for _, cypher := range schema {
		if _, err := sess.Run(ctx, cypher, nil); err != nil {
			return fmt.Errorf("history schema: %w", err)
		}
	}
	return nil
}

const recordSearch = `MERGE (u:User {id: $userID})
MERGE (s:Search {id: $searchID})
SET s.query = $query, s.brand = $brand, s.model = $model, s.country = $country,
    s.total = $total, s.criteria = $criteria, s.completed_at = $completedAt
MERGE (u)-[:RAN]->(s)`

const recordResults = `UNWIND $results AS r
MERGE (mk:Make {id: r.make_id}) SET mk.name = r.make
MERGE (m:VehicleModel {id: r.model_id}) SET m.name = r.model, m.make_id = r.make_id
MERGE (mk)-[:HAS_MODEL]->(m)
MERGE (l:Listing {key: r.key}) SET l += r.props
MERGE (l)-[:OF_MODEL]->(m)
WITH l, r
MATCH (s:Search {id: $searchID})
MERGE (s)-[rel:RESULT]->(l)
SET rel.rank = r.rank, rel.score = r.score`

// Record writes one completed search and its ordered results in a single
// transaction. Re-recording the same search ID is idempotent.
func (s *Store) Record(ctx context.Context, ev domain.SearchCompleted) error {
	if ev.SearchID == "" || ev.UserID == "" {
		return fmt.Errorf("history: search %q for user %q: %w", ev.SearchID, ev.UserID, domain.ErrInvalidUser)
	}
	criteria, err := json.Marshal(ev.Criteria)
	if err != nil {
		return fmt.Errorf("history: encode criteria: %w", err)
	}

	results := make([]map[string]any, 0, len(ev.Results))
	for _, r := range ev.Results {
		results = append(results, resultParams(r))
	}

	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	_, err = sess.ExecuteWrite(ctx, func(tx CypherRunner) (any, error) {
		if _, err := tx.Run(ctx, recordSearch, map[string]any{
			"userID":      ev.UserID,
			"searchID":    ev.SearchID,
			"query":       ev.Criteria.FreeTextQuery,
			"brand":       ev.Criteria.Brand,
			"model":       ev.Criteria.Model,
			"country":     ev.Criteria.Country,
			"total":       ev.Total,
			"criteria":    string(criteria),
			"completedAt": ev.CompletedAt.UTC(),
		}); err != nil {
			return nil, err
		}
		if len(results) == 0 {
			return nil, nil
		}
		_, err := tx.Run(ctx, recordResults, map[string]any{"searchID": ev.SearchID, "results": results})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("history: record %s: %w", ev.SearchID, err)
	}
	s.log.Debug("search recorded", "search_id", ev.SearchID, "user_id", ev.UserID, "results", len(results))
	return nil
}

func resultParams(r domain.RankedResult) map[string]any {
	l := r.Listing
	mk := l.Brand
	if mk == "" {
		mk = "Unknown"
	}
	makeID, modelID := vehicleIDs(mk, l.Model)
	return map[string]any{
		"key":      l.DedupKey,
		"make":     mk,
		"make_id":  makeID,
		"model":    l.Model,
		"model_id": modelID,
		"rank":     r.Rank,
		"score":    r.MatchScore,
		"props": map[string]any{
			"title":      l.Title,
			"year":       l.Year,
			"price":      l.Price.Amount.InexactFloat64(),
			"currency":   l.Price.Currency,
			"source":     l.Source,
			"source_url": l.SourceURL,
			"vin":        l.VIN,
		},
	}
}

// vehicleIDs derives the Make and VehicleModel node IDs.
func vehicleIDs(mk, model string) (string, string) {
	makeID := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(mk), " ", "-"))
	return makeID, fmt.Sprintf("%s-%s", makeID, strings.ToLower(strings.ReplaceAll(strings.TrimSpace(model), " ", "-")))
}

const recentSearches = `MATCH (:User {id: $userID})-[:RAN]->(s:Search)
RETURN s.id AS id, s.query AS query, s.brand AS brand, s.model AS model,
       s.total AS total, s.completed_at AS completed_at
ORDER BY s.completed_at DESC
LIMIT $limit`

// Recent returns a user's latest searches, newest first.
func (s *Store) Recent(ctx context.Context, userID string, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 20
	}
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, recentSearches, map[string]any{"userID": userID, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("history: recent %s: %w", userID, err)
	}
	var out []Summary
	for result.Next(ctx) {
		rec := result.Record()
		sum := Summary{
			SearchID: str(rec, "id"),
			Query:    str(rec, "query"),
			Brand:    str(rec, "brand"),
			Model:    str(rec, "model"),
		}
		if n, _, err := neo4j.GetRecordValue[int64](rec, "total"); err == nil {
			sum.Total = int(n)
		}
		if t, _, err := neo4j.GetRecordValue[time.Time](rec, "completed_at"); err == nil {
			sum.CompletedAt = t
		}
		out = append(out, sum)
	}
	return out, result.Err()
}

func str(rec *neo4j.Record, key string) string {
	v, _, _ := neo4j.GetRecordValue[string](rec, key)
	return v
}
