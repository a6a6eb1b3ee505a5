package semantic

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/WessleyAI/carsearch/engine/domain"
	pb "github.com/qdrant/go-client/qdrant"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
)

type mockPoints struct {
	upserted  *pb.UpsertPoints
	upsertErr error
	searched  *pb.SearchPoints
	searchRes *pb.SearchResponse
	searchErr error
}

func (m *mockPoints) Upsert(_ context.Context, in *pb.UpsertPoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	m.upserted = in
	return &pb.PointsOperationResponse{}, m.upsertErr
}

func (m *mockPoints) Search(_ context.Context, in *pb.SearchPoints, _ ...grpc.CallOption) (*pb.SearchResponse, error) {
	m.searched = in
	return m.searchRes, m.searchErr
}

type mockCollections struct {
	existing []string
	created  *pb.CreateCollection
	listErr  error
}

func (m *mockCollections) List(context.Context, *pb.ListCollectionsRequest, ...grpc.CallOption) (*pb.ListCollectionsResponse, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	resp := &pb.ListCollectionsResponse{}
	for _, n := range m.existing {
		resp.Collections = append(resp.Collections, &pb.CollectionDescription{Name: n})
	}
	return resp, nil
}

func (m *mockCollections) Create(_ context.Context, in *pb.CreateCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	m.created = in
	return &pb.CollectionOperationResponse{Result: true}, nil
}

func (m *mockCollections) Delete(context.Context, *pb.DeleteCollection, ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	return &pb.CollectionOperationResponse{Result: true}, nil
}

type fakeEmbedder struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return []float32{float32(len(text)), 1}, f.err
}

func camry() domain.Listing {
	return domain.Listing{
		DedupKey:  "4t1bf1fk5cu123456",
		Title:     "2020 Toyota Camry SE",
		Brand:     "Toyota",
		Model:     "Camry",
		Year:      2020,
		Price:     domain.Money{Amount: decimal.NewFromInt(24500), Currency: "CAD"},
		Color:     "Red",
		Features:  []string{"sunroof", "heated seats"},
		Source:    "MarketCheck",
		SourceURL: "https://example.com/camry",
	}
}

func TestEnsureCollection(t *testing.T) {
	cols := &mockCollections{existing: []string{"listings"}}
	ix := NewWithClients(&mockPoints{}, cols, "listings", nil)
	require.NoError(t, ix.EnsureCollection(context.Background(), 768))
	assert.Nil(t, cols.created)

	cols = &mockCollections{}
	ix = NewWithClients(&mockPoints{}, cols, "listings", nil)
	require.NoError(t, ix.EnsureCollection(context.Background(), 768))
	require.NotNil(t, cols.created)
	assert.Equal(t, uint64(768), cols.created.GetVectorsConfig().GetParams().GetSize())
	assert.NoError(t, ix.Close())

	ix = NewWithClients(&mockPoints{}, &mockCollections{listErr: errors.New("unavailable")}, "listings", nil)
	assert.ErrorContains(t, ix.EnsureCollection(context.Background(), 768), "list collections")
}

func TestIndexListings(t *testing.T) {
	pts := &mockPoints{}
	emb := &fakeEmbedder{}
	ix := NewWithClients(pts, &mockCollections{}, "listings", emb)

	noKey := camry()
	noKey.DedupKey = ""
	n, err := ix.IndexListings(context.Background(), []domain.Listing{camry(), noKey})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NotNil(t, pts.upserted)
	require.Len(t, pts.upserted.Points, 1)
	p := pts.upserted.Points[0]
	assert.Equal(t, PointID(camry()), p.GetId().GetUuid())
	assert.Equal(t, "Toyota", p.GetPayload()["brand"].GetStringValue())
	assert.Equal(t, int64(2020), p.GetPayload()["year"].GetIntegerValue())
	assert.Equal(t, 24500.0, p.GetPayload()["price"].GetDoubleValue())
	assert.Equal(t, []string{"2020 Toyota Camry SE. Red. Features: sunroof, heated seats"}, emb.texts)
}

func TestIndexListingsNothingToWrite(t *testing.T) {
	pts := &mockPoints{}
	ix := NewWithClients(pts, &mockCollections{}, "listings", &fakeEmbedder{})
	n, err := ix.IndexListings(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Nil(t, pts.upserted)
}

func TestIndexListingsErrors(t *testing.T) {
	ix := NewWithClients(&mockPoints{}, &mockCollections{}, "listings", nil)
	_, err := ix.IndexListings(context.Background(), []domain.Listing{camry()})
	assert.ErrorIs(t, err, ErrNoEmbedder)

	ix = NewWithClients(&mockPoints{}, &mockCollections{}, "listings", &fakeEmbedder{err: errors.New("ollama down")})
	_, err = ix.IndexListings(context.Background(), []domain.Listing{camry()})
	assert.ErrorContains(t, err, "ollama down")

	ix = NewWithClients(&mockPoints{upsertErr: errors.New("rpc")}, &mockCollections{}, "listings", &fakeEmbedder{})
	_, err = ix.IndexListings(context.Background(), []domain.Listing{camry()})
	assert.ErrorContains(t, err, "upsert 1 points")
}

func TestIndexListingsBatchesUpserts(t *testing.T) {
	pts := &countingPoints{}
	ix := NewWithClients(pts, &mockCollections{}, "listings", &fakeEmbedder{})

	listings := make([]domain.Listing, 150)
	for i := range listings {
		listings[i] = camry()
		listings[i].DedupKey = fmt.Sprintf("key-%d", i)
	}
	n, err := ix.IndexListings(context.Background(), listings)
	require.NoError(t, err)
	assert.Equal(t, 150, n)
	assert.Equal(t, []int{64, 64, 22}, pts.sizes)
	assert.Equal(t, PointID(listings[149]), pts.last.GetId().GetUuid())
}

type countingPoints struct {
	mockPoints
	sizes []int
	last  *pb.PointStruct
}

func (c *countingPoints) Upsert(_ context.Context, in *pb.UpsertPoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	c.sizes = append(c.sizes, len(in.Points))
	c.last = in.Points[len(in.Points)-1]
	return &pb.PointsOperationResponse{}, nil
}

func TestPointIDIsStable(t *testing.T) {
	a, b := camry(), camry()
	b.Price.Amount = decimal.NewFromInt(1)
	assert.Equal(t, PointID(a), PointID(b))

	b.DedupKey = "other"
	assert.NotEqual(t, PointID(a), PointID(b))
}

func TestSimilar(t *testing.T) {
	pts := &mockPoints{searchRes: &pb.SearchResponse{Result: []*pb.ScoredPoint{{
		Id:    &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: "abc"}},
		Score: 0.93,
		Payload: map[string]*pb.Value{
			"title":    stringValue("2019 Honda Civic"),
			"brand":    stringValue("Honda"),
			"currency": stringValue("CAD"),
			"year":     {Kind: &pb.Value_IntegerValue{IntegerValue: 2019}},
			"price":    {Kind: &pb.Value_DoubleValue{DoubleValue: 18999.5}},
		},
	}}}}
	ix := NewWithClients(pts, &mockCollections{}, "listings", &fakeEmbedder{})

	got, err := ix.Similar(context.Background(), "compact sedan", 0, map[string]string{"brand": "Honda"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "abc", got[0].ID)
	assert.Equal(t, 2019, got[0].Year)
	assert.Equal(t, "18999.5", got[0].Price.String())
	assert.Equal(t, "", got[0].SourceURL)

	assert.Equal(t, uint64(10), pts.searched.GetLimit())
	require.Len(t, pts.searched.GetFilter().GetMust(), 1)
	assert.Equal(t, "brand", pts.searched.GetFilter().GetMust()[0].GetField().GetKey())
}

func TestSimilarErrors(t *testing.T) {
	ix := NewWithClients(&mockPoints{searchErr: errors.New("rpc")}, &mockCollections{}, "listings", &fakeEmbedder{})
	_, err := ix.Similar(context.Background(), "x", 5, nil)
	assert.ErrorContains(t, err, "semantic: search")

	ix = NewWithClients(&mockPoints{}, &mockCollections{}, "listings", nil)
	_, err = ix.Similar(context.Background(), "x", 5, nil)
	assert.ErrorIs(t, err, ErrNoEmbedder)
}
