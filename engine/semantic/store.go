// Package semantic indexes canonical listings in Qdrant and answers
// "similar vehicles" lookups by embedding similarity.
package semantic

import (
	"context"
	"errors"
	"fmt"

	"github.com/WessleyAI/carsearch/engine/domain"
	"github.com/WessleyAI/carsearch/pkg/fn"
	pb "github.com/qdrant/go-client/qdrant"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ErrNoEmbedder is returned when an operation needs embeddings but the
// index was built without an Embedder.
var ErrNoEmbedder = errors.New("semantic: no embedder configured")

// Embedder turns text into a vector. *ollama.EmbedClient satisfies it.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
}

type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// Index is the sole owner of all Qdrant operations.
type Index struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	collection  string
	embed       Embedder
}

// New creates an Index connected to Qdrant at the given gRPC address.
func New(addr, collection string, embed Embedder) (*Index, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	ix := NewWithClients(pb.NewPointsClient(conn), pb.NewCollectionsClient(conn), collection, embed)
	ix.conn = conn
	return ix, nil
}

// NewWithClients builds an Index on existing Qdrant clients.
func NewWithClients(points pointsAPI, collections collectionsAPI, collection string, embed Embedder) *Index {
	return &Index{points: points, collections: collections, collection: collection, embed: embed}
}

// Close closes the underlying gRPC connection, if the Index owns one.
func (ix *Index) Close() error {
	if ix.conn == nil {
		return nil
	}
	return ix.conn.Close()
}

// EnsureCollection creates the collection if it doesn't exist.
func (ix *Index) EnsureCollection(ctx context.Context, dims int) error {
	list, err := ix.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == ix.collection {
			return nil
		}
	}

	_, err = ix.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: ix.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{Size: uint64(dims), Distance: pb.Distance_Cosine},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", ix.collection, err)
	}
	return nil
}

// DeleteCollection drops the collection.
func (ix *Index) DeleteCollection(ctx context.Context) error {
	if _, err := ix.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: ix.collection}); err != nil {
		return fmt.Errorf("semantic: delete collection %s: %w", ix.collection, err)
	}
	return nil
}

const (
	embedWorkers = 4
	upsertBatch  = 64
)

// IndexListings embeds and upserts the listings. Listings without a dedup
// key are skipped. It returns the number of points written.
func (ix *Index) IndexListings(ctx context.Context, listings []domain.Listing) (int, error) {
	if ix.embed == nil {
		return 0, ErrNoEmbedder
	}
	keyed := fn.Filter(listings, func(l domain.Listing) bool { return l.DedupKey != "" })
	points, err := fn.ParTry(ctx, keyed, embedWorkers, func(ctx context.Context, l domain.Listing) (*pb.PointStruct, error) {
		vec, err := ix.embed.Embed(ctx, Document(l))
		if err != nil {
			return nil, fmt.Errorf("semantic: embed %s: %w", l.DedupKey, err)
		}
		return &pb.PointStruct{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(l)}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: vec}}},
			Payload: listingPayload(l),
		}, nil
	})
	if err != nil {
		return 0, err
	}

	written := 0
	wait := true
	for _, batch := range fn.Chunk(points, upsertBatch) {
		_, err := ix.points.Upsert(ctx, &pb.UpsertPoints{
			CollectionName: ix.collection,
			Wait:           &wait,
			Points:         batch,
		})
		if err != nil {
			return written, fmt.Errorf("semantic: upsert %d points: %w", len(batch), err)
		}
		written += len(batch)
	}
	return written, nil
}

// Similar returns the topK listings closest to text. Filters are exact
// keyword matches on payload fields such as "brand".
func (ix *Index) Similar(ctx context.Context, text string, topK int, filters map[string]string) ([]Match, error) {
	if ix.embed == nil {
		return nil, ErrNoEmbedder
	}
	vec, err := ix.embed.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("semantic: embed query: %w", err)
	}
	return ix.SimilarTo(ctx, vec, topK, filters)
}

// SimilarTo is Similar for a precomputed embedding.
func (ix *Index) SimilarTo(ctx context.Context, vec []float32, topK int, filters map[string]string) ([]Match, error) {
	if topK <= 0 {
		topK = 10
	}
	req := &pb.SearchPoints{
		CollectionName: ix.collection,
		Vector:         vec,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}
	if len(filters) > 0 {
		must := make([]*pb.Condition, 0, len(filters))
		for k, v := range filters {
			must = append(must, fieldMatch(k, v))
		}
		req.Filter = &pb.Filter{Must: must}
	}

	resp, err := ix.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("semantic: search: %w", err)
	}

	out := make([]Match, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		p := r.GetPayload()
		out[i] = Match{
			ID:        r.GetId().GetUuid(),
			Score:     r.GetScore(),
			DedupKey:  p["dedup_key"].GetStringValue(),
			Title:     p["title"].GetStringValue(),
			Brand:     p["brand"].GetStringValue(),
			Model:     p["model"].GetStringValue(),
			Year:      int(p["year"].GetIntegerValue()),
			Price:     decimal.NewFromFloat(p["price"].GetDoubleValue()),
			Currency:  p["currency"].GetStringValue(),
			Source:    p["source"].GetStringValue(),
			SourceURL: p["source_url"].GetStringValue(),
		}
	}
	return out, nil
}

func listingPayload(l domain.Listing) map[string]*pb.Value {
	price, _ := l.Price.Amount.Float64()
	return map[string]*pb.Value{
		"dedup_key":  stringValue(l.DedupKey),
		"title":      stringValue(l.Title),
		"brand":      stringValue(l.Brand),
		"model":      stringValue(l.Model),
		"year":       {Kind: &pb.Value_IntegerValue{IntegerValue: int64(l.Year)}},
		"price":      {Kind: &pb.Value_DoubleValue{DoubleValue: price}},
		"currency":   stringValue(l.Price.Currency),
		"source":     stringValue(l.Source),
		"source_url": stringValue(l.SourceURL),
	}
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key:   key,
				Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: value}},
			},
		},
	}
}
