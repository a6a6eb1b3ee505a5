//go:build integration

package semantic

import (
	"context"
	"os"
	"testing"

	"github.com/WessleyAI/carsearch/engine/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func qdrantAddr() string {
	if v := os.Getenv("QDRANT_URL"); v != "" {
		return v
	}
	return "localhost:6334"
}

func TestQdrant_IndexAndSimilar(t *testing.T) {
	ix, err := New(qdrantAddr(), "test_listings", &fakeEmbedder{})
	require.NoError(t, err)
	ctx := context.Background()
	t.Cleanup(func() {
		ix.DeleteCollection(ctx)
		ix.Close()
	})

	require.NoError(t, ix.EnsureCollection(ctx, 2))
	require.NoError(t, ix.EnsureCollection(ctx, 2))

	n, err := ix.IndexListings(ctx, []domain.Listing{camry()})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := ix.Similar(ctx, "2020 Toyota Camry SE. Red. Features: sunroof, heated seats", 3, map[string]string{"brand": "Toyota"})
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, PointID(camry()), got[0].ID)
}
