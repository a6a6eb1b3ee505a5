package history

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/WessleyAI/carsearch/engine/domain"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResult struct {
	records []*neo4j.Record
	i       int
}

func (r *stubResult) Next(context.Context) bool {
	if r.i >= len(r.records) {
		return false
	}
	r.i++
	return true
}

func (r *stubResult) Record() *neo4j.Record { return r.records[r.i-1] }
func (r *stubResult) Err() error           { return nil }

type trackingTx struct {
	queries []string
	params  []map[string]any
	failOn  string
	rows    []*neo4j.Record
}

func (t *trackingTx) Run(_ context.Context, cypher string, params map[string]any) (CypherResult, error) {
	t.queries = append(t.queries, cypher)
	t.params = append(t.params, params)
	if t.failOn != "" && strings.Contains(cypher, t.failOn) {
		return nil, errors.New("neo4j unavailable")
	}
	return &stubResult{records: t.rows}, nil
}

type trackingSession struct {
	*trackingTx
	writes int
	closed int
}

func (s *trackingSession) ExecuteWrite(_ context.Context, work func(tx CypherRunner) (any, error)) (any, error) {
	s.writes++
	return work(s.trackingTx)
}

func (s *trackingSession) Close(context.Context) error {
	s.closed++
	return nil
}

type trackingOpener struct{ sess *trackingSession }

func (o trackingOpener) OpenSession(context.Context) CypherSession { return o.sess }

func newTrackingStore() (*Store, *trackingSession) {
	sess := &trackingSession{trackingTx: &trackingTx{}}
	return NewWithOpener(trackingOpener{sess}, nil), sess
}

func completed() domain.SearchCompleted {
	listing := func(key, brand, model string, price int64) domain.Listing {
		return domain.Listing{
			DedupKey: key, Brand: brand, Model: model, Title: brand + " " + model,
			Price: domain.Money{Amount: decimal.NewFromInt(price), Currency: "CAD"},
		}
	}
	return domain.SearchCompleted{
		SearchID: "s-1",
		UserID:   "u-1",
		Criteria: domain.SearchCriteria{Brand: "Land Rover", FreeTextQuery: "range rover sport", Country: "CA"},
		Results: []domain.RankedResult{
			{Listing: listing("vin1", "Land Rover", "Range Rover Sport", 89000), MatchScore: 90, Rank: 1},
			{Listing: listing("vin2", "", "Defender", 70000), MatchScore: 60, Rank: 2},
		},
		Total:       2,
		CompletedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("EST", -5*3600)),
	}
}

func TestRecord(t *testing.T) {
	s, sess := newTrackingStore()
	require.NoError(t, s.Record(context.Background(), completed()))

	assert.Equal(t, 1, sess.writes)
	assert.Equal(t, 1, sess.closed)
	require.Len(t, sess.queries, 2)
	assert.Contains(t, sess.queries[0], "MERGE (u)-[:RAN]->(s)")
	assert.Contains(t, sess.queries[1], "MERGE (mk)-[:HAS_MODEL]->(m)")

	p := sess.params[0]
	assert.Equal(t, "u-1", p["userID"])
	assert.Equal(t, "range rover sport", p["query"])
	assert.Equal(t, time.Date(2026, 3, 1, 17, 0, 0, 0, time.UTC), p["completedAt"])
	assert.Contains(t, p["criteria"], `"brand":"Land Rover"`)

	results := sess.params[1]["results"].([]map[string]any)
	require.Len(t, results, 2)
	assert.Equal(t, "land-rover", results[0]["make_id"])
	assert.Equal(t, "land-rover-range-rover-sport", results[0]["model_id"])
	assert.Equal(t, 1, results[0]["rank"])
	assert.Equal(t, 90, results[0]["score"])
	assert.Equal(t, 89000.0, results[0]["props"].(map[string]any)["price"])
	assert.Equal(t, "Unknown", results[1]["make"])
	assert.Equal(t, "unknown-defender", results[1]["model_id"])
}

func TestRecordWithoutResults(t *testing.T) {
	s, sess := newTrackingStore()
	ev := completed()
	ev.Results = nil
	ev.Total = 0
	require.NoError(t, s.Record(context.Background(), ev))
	assert.Len(t, sess.queries, 1)
}

func TestRecordRejectsAnonymous(t *testing.T) {
	s, sess := newTrackingStore()
	ev := completed()
	ev.UserID = ""
	assert.ErrorIs(t, s.Record(context.Background(), ev), domain.ErrInvalidUser)
	assert.Empty(t, sess.queries)
}

func TestRecordWrapsDriverErrors(t *testing.T) {
	s, sess := newTrackingStore()
	sess.failOn = "UNWIND"
	err := s.Record(context.Background(), completed())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "history: record s-1")
}

func TestEnsureSchema(t *testing.T) {
	s, sess := newTrackingStore()
	require.NoError(t, s.EnsureSchema(context.Background()))
	assert.Len(t, sess.queries, len(schema))

	s, sess = newTrackingStore()
	sess.failOn = "CONSTRAINT"
	assert.Error(t, s.EnsureSchema(context.Background()))
}

func TestRecent(t *testing.T) {
	s, sess := newTrackingStore()
	at := time.Date(2026, 3, 1, 17, 0, 0, 0, time.UTC)
	sess.rows = []*neo4j.Record{{
		Keys:   []string{"id", "query", "brand", "model", "total", "completed_at"},
		Values: []any{"s-1", "range rover sport", "Land Rover", nil, int64(2), at},
	}}

	got, err := s.Recent(context.Background(), "u-1", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, Summary{SearchID: "s-1", Query: "range rover sport", Brand: "Land Rover", Total: 2, CompletedAt: at}, got[0])
	assert.Equal(t, 20, sess.params[0]["limit"])
}
