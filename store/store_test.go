package store

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/outrank/core"
)

func TestMemoryStore_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close()

	_, err := s.Get(ctx, "missing")
	assert.True(t, core.IsStoreNotFound(err))

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 0))
	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	got[0] = 'x'
	again, _ := s.Get(ctx, "k")
	assert.Equal(t, []byte("v"), again, "returned slice must be a copy")

	require.NoError(t, s.Delete(ctx, "k"))
	_, err = s.Get(ctx, "k")
	assert.True(t, core.IsStoreNotFound(err))
	assert.Equal(t, "memory", s.Name())
}

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close()

	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(ctx, "short", []byte("1"), time.Minute))
	require.NoError(t, s.Set(ctx, "forever", []byte("2"), 0))
	assert.Equal(t, 2, s.Len())

	now = now.Add(2 * time.Minute)
	_, err := s.Get(ctx, "short")
	assert.True(t, core.IsStoreNotFound(err))
	_, err = s.Get(ctx, "forever")
	assert.NoError(t, err)

	s.evict()
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_CloseTwice(t *testing.T) {
	s := NewMemoryStore()
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}

func TestRedisStore(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available, skipping integration test")
	}

	s := NewRedisStoreFromClient(client).WithPrefix("outrank-test:" + strconv.FormatInt(time.Now().UnixNano(), 10) + ":")
	defer s.Close()

	_, err := s.Get(ctx, "k")
	assert.True(t, core.IsStoreNotFound(err))

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, s.Delete(ctx, "k"))
	_, err = s.Get(ctx, "k")
	assert.True(t, core.IsStoreNotFound(err))
}

func catalogFixture() *MemoryCatalog {
	return NewMemoryCatalog(
		core.SearchHit{ID: "a", Similarity: 0.9, Category: "HCM"},
		core.SearchHit{ID: "b", Similarity: 0.6, Category: "Hanoi"},
		core.SearchHit{ID: "c", Similarity: 0.6, Category: "HCM"},
		core.SearchHit{ID: "d", Similarity: 0.3, Category: "HCM"},
	)
}

func TestMemoryCatalog_Search(t *testing.T) {
	ctx := context.Background()
	c := catalogFixture()

	tests := []struct {
		name string
		req  core.SearchRequest
		want []string
	}{
		{name: "threshold", req: core.SearchRequest{Threshold: 0.5}, want: []string{"a", "b", "c"}},
		{name: "threshold is inclusive", req: core.SearchRequest{Threshold: 0.6}, want: []string{"a", "b", "c"}},
		{name: "category filter ignores case", req: core.SearchRequest{Threshold: 0, Filter: "hcm"}, want: []string{"a", "c", "d"}},
		{name: "limit", req: core.SearchRequest{Threshold: 0, Limit: 2}, want: []string{"a", "b"}},
		{name: "nothing above threshold", req: core.SearchRequest{Threshold: 0.95}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits, err := c.Search(ctx, &tt.req)
			require.NoError(t, err)
			ids := make([]string, 0, len(hits))
			for _, h := range hits {
				ids = append(ids, h.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	_, err := c.Search(ctx, nil)
	assert.True(t, core.IsInvalidInput(err))
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hits.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
  {"id": "r1", "name": "Pho 24", "similarity": 0.8,
   "signals": {"food": {"positive": 10, "negative": 2}},
   "location": {"lat": 10.77, "lon": 106.70}, "category": "HCM"}
]`), 0o600))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())

	hits, err := c.Search(context.Background(), &core.SearchRequest{Threshold: 0.5})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Pho 24", hits[0].Name)
	assert.Equal(t, core.Signal{Positive: 10, Negative: 2}, hits[0].Signals["food"])
	require.NotNil(t, hits[0].Location)
	assert.Equal(t, 10.77, hits[0].Location.Lat)

	_, err = ParseCatalog([]byte(`[{"name": "no id"}]`))
	assert.True(t, core.IsInvalidInput(err))
}

func TestMemoryCatalog_MinReviews(t *testing.T) {
	reviewed := func(id string, sim float64, reviews any) core.SearchHit {
		h := core.SearchHit{ID: id, Similarity: sim}
		if reviews != nil {
			h.Meta = map[string]any{core.MetaReviewCount: reviews}
		}
		return h
	}
	c := NewMemoryCatalog(
		reviewed("zero", 0.9, 0.0),
		reviewed("one", 0.8, 1),
		reviewed("many", 0.7, 40.0),
		reviewed("unknown", 0.6, nil),
	)

	hits, err := c.Search(context.Background(), &core.SearchRequest{Limit: 2, MinReviews: 2})
	require.NoError(t, err)
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ID)
	}
	assert.Equal(t, []string{"many", "unknown"}, ids, "excluded before the limit applies")

	hits, err = c.Search(context.Background(), &core.SearchRequest{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, hits, 2)
	assert.Equal(t, "zero", hits[0].ID)
}
