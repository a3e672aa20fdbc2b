package workflow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/rushteam/outrank/config"
	"github.com/rushteam/outrank/core"
	"github.com/rushteam/outrank/metrics"
	"github.com/rushteam/outrank/pipeline"
	"github.com/rushteam/outrank/rank"
	"github.com/rushteam/outrank/rerank"
	"github.com/rushteam/outrank/store"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func hit(id string, sim float64, food core.Signal) core.SearchHit {
	return core.SearchHit{
		ID:         id,
		Name:       "Restaurant " + id,
		Similarity: sim,
		Category:   "HCM",
		Signals: map[string]core.Signal{
			core.CriterionFood:     food,
			core.CriterionService:  {Positive: 3, Negative: 3},
			core.CriterionAmbience: {Positive: 2, Negative: 2},
			core.CriterionPrice:    {Positive: 1, Negative: 1},
		},
	}
}

// 两条高于 0.5，四条落在 [0.45, 0.5)
func sixRestaurants() *store.MemoryCatalog {
	return store.NewMemoryCatalog(
		hit("a", 0.80, core.Signal{Positive: 20, Negative: 0}),
		hit("b", 0.55, core.Signal{Positive: 10, Negative: 10}),
		hit("c", 0.49, core.Signal{Positive: 0, Negative: 20}),
		hit("d", 0.48, core.Signal{Positive: 15, Negative: 5}),
		hit("e", 0.47, core.Signal{Positive: 5, Negative: 15}),
		hit("f", 0.46, core.Signal{Positive: 12, Negative: 8}),
	)
}

type spySearch struct {
	inner      core.SimilaritySearch
	err        error
	thresholds []float64
}

func (s *spySearch) Search(ctx context.Context, req *core.SearchRequest) ([]core.SearchHit, error) {
	s.thresholds = append(s.thresholds, req.Threshold)
	if s.err != nil {
		return nil, s.err
	}
	if s.inner == nil {
		return nil, nil
	}
	return s.inner.Search(ctx, req)
}

func counter(t *testing.T, reg *prometheus.Registry, name, status string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			if status == "" {
				return m.GetCounter().GetValue()
			}
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "status" && lp.GetValue() == status {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestRecommend_RelaxesAndRanks(t *testing.T) {
	spy := &spySearch{inner: sixRestaurants()}

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	defer tp.Shutdown(context.Background())

	m := metrics.NewMetrics()
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))

	o, err := New(spy, WithLogger(quiet), WithMetrics(m), WithTracerProvider(tp))
	require.NoError(t, err)

	req := o.NewRequest("pho near ben thanh")
	req.Filter = "HCM"
	results, err := o.Recommend(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, spy.thresholds, 2)
	assert.Equal(t, 0.5, spy.thresholds[0])
	assert.InDelta(t, 0.45, spy.thresholds[1], 1e-12)

	require.Len(t, results, 5)
	assert.Equal(t, "a", results[0].CandidateID)
	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, "Restaurant a", results[0].Name)
	assert.Contains(t, results[0].Scores, core.CriterionQueryMatch)
	assert.NotContains(t, results[0].Scores, core.CriterionDistance)
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].Rank, results[i].Rank)
		assert.GreaterOrEqual(t, results[i-1].NetCredibility, results[i].NetCredibility-1e-9)
	}
	assert.Empty(t, req.RequestID, "caller's request is not mutated")

	names := map[string]bool{}
	for _, s := range rec.Ended() {
		names[s.Name()] = true
	}
	assert.True(t, names["workflow.recommend"])
	assert.True(t, names["recall.adaptive"])
	assert.True(t, names["rank.electre"])

	assert.Equal(t, 1.0, counter(t, reg, metrics.MetricRequestsTotal, metrics.StatusOK))
	assert.Equal(t, 1.0, counter(t, reg, metrics.MetricRelaxationsTotal, ""))
}

func TestRecommend_WithDistancePreference(t *testing.T) {
	near := hit("near", 0.6, core.Signal{Positive: 5, Negative: 5})
	near.Location = &core.GeoPoint{Lat: 10.7725, Lon: 106.6980}
	far := hit("far", 0.6, core.Signal{Positive: 5, Negative: 5})
	far.Location = &core.GeoPoint{Lat: 21.0285, Lon: 105.8542}

	o, err := New(store.NewMemoryCatalog(far, near), WithLogger(quiet))
	require.NoError(t, err)

	req := o.NewRequest("bun bo")
	req.Distance = &core.DistancePreference{MaxDistanceKm: 3, Reference: core.GeoPoint{Lat: 10.7769, Lon: 106.7009}}
	results, err := o.Recommend(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "near", results[0].CandidateID)
	assert.Greater(t, results[0].Scores[core.CriterionDistance], 0.0)
	assert.Equal(t, 0.0, results[1].Scores[core.CriterionDistance])
}

func TestRecommend_ZeroSignalCandidatesAreRanked(t *testing.T) {
	sparse := core.SearchHit{ID: "sparse", Similarity: 0.9, Meta: map[string]any{core.MetaReviewCount: 1}}
	silent := core.SearchHit{ID: "silent", Similarity: 0.7}
	mentioned := core.SearchHit{ID: "mentioned", Similarity: 0.6, Signals: map[string]core.Signal{
		core.CriterionFood: {Positive: 1},
	}}

	o, err := New(store.NewMemoryCatalog(sparse, silent, mentioned), WithLogger(quiet))
	require.NoError(t, err)
	results, err := o.Recommend(context.Background(), o.NewRequest("com tam"))
	require.NoError(t, err)

	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.CandidateID)
		assert.GreaterOrEqual(t, r.Rank, 1)
	}
	assert.ElementsMatch(t, []string{"silent", "mentioned"}, ids)
	for _, r := range results {
		if r.CandidateID == "silent" {
			assert.Equal(t, 50.0, r.Scores[core.CriterionFood])
		}
	}
}

func TestRecommend_EmptyAfterRelaxing(t *testing.T) {
	spy := &spySearch{}
	m := metrics.NewMetrics()
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))

	o, err := New(spy, WithLogger(quiet), WithMetrics(m))
	require.NoError(t, err)
	_, err = o.Recommend(context.Background(), o.NewRequest("nothing"))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrEmptyCandidateSet)
	assert.Len(t, spy.thresholds, 2)
	assert.Equal(t, 1.0, counter(t, reg, metrics.MetricRequestsTotal, metrics.StatusEmpty))
}

func TestRecommend_SearchErrorPropagates(t *testing.T) {
	boom := errors.New("vector index unavailable")
	o, err := New(&spySearch{err: boom}, WithLogger(quiet))
	require.NoError(t, err)
	_, err = o.Recommend(context.Background(), o.NewRequest("pho"))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.False(t, core.IsEmptyCandidateSet(err))
}

func TestRecommend_InvalidRequest(t *testing.T) {
	o, err := New(sixRestaurants(), WithLogger(quiet))
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(r *core.RankRequest)
	}{
		{name: "zero top_k", mutate: func(r *core.RankRequest) { r.TopK = 0 }},
		{name: "threshold above one", mutate: func(r *core.RankRequest) { r.Threshold = 1.5 }},
		{name: "negative weight", mutate: func(r *core.RankRequest) { r.Weights = map[string]float64{"food": -1} }},
		{name: "zero radius", mutate: func(r *core.RankRequest) { r.Distance = &core.DistancePreference{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := o.NewRequest("pho")
			tt.mutate(req)
			_, err := o.Recommend(context.Background(), req)
			assert.True(t, core.IsConfigurationError(err))
		})
	}

	_, err = o.Recommend(context.Background(), nil)
	assert.True(t, core.IsConfigurationError(err))
}

func TestNew_RejectsInvalidSettings(t *testing.T) {
	s := config.Default()
	s.RelaxStep = -1
	_, err := New(sixRestaurants(), WithSettings(s))
	assert.True(t, core.IsConfigurationError(err))

	_, err = New(nil)
	assert.True(t, core.IsConfigurationError(err))
}

func TestRecommend_WithCache(t *testing.T) {
	spy := &spySearch{inner: sixRestaurants()}
	ms := store.NewMemoryStore()
	defer ms.Close()

	o, err := New(spy, WithLogger(quiet), WithCache(ms))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := o.Recommend(context.Background(), o.NewRequest("pho"))
		require.NoError(t, err)
	}
	assert.Len(t, spy.thresholds, 2, "second request is served from cache")
}

func TestRecommend_CustomStages(t *testing.T) {
	cfg, err := pipeline.ParseYAML([]byte(`
pipeline:
  nodes:
    - type: filter.expr
      config:
        expr: 'item.similarity >= 0.48'
    - type: rank.score
    - type: rank.electre
      config:
        tie_break_by_id: true
    - type: rerank.topn
`))
	require.NoError(t, err)

	s := config.Default()
	stages, err := StagesFromConfig(cfg, s, nil)
	require.NoError(t, err)

	o, err := New(sixRestaurants(), WithLogger(quiet), WithSettings(s), WithStages(stages...))
	require.NoError(t, err)
	results, err := o.Recommend(context.Background(), o.NewRequest("pho"))
	require.NoError(t, err)
	require.Len(t, results, 4)
	for _, r := range results {
		assert.NotEqual(t, "e", r.CandidateID)
		assert.NotEqual(t, "f", r.CandidateID)
	}
}

func TestStagesFromConfig_ExcludeFromStore(t *testing.T) {
	ms := store.NewMemoryStore()
	defer ms.Close()
	require.NoError(t, ms.Set(context.Background(), "visited:u1", []byte(`["a", "d"]`), 0))

	cfg, err := pipeline.ParseYAML([]byte(`
pipeline:
  nodes:
    - type: filter.exclude
      config:
        key: visited:u1
    - type: rank.score
    - type: rank.electre
    - type: rerank.topn
`))
	require.NoError(t, err)

	s := config.Default()
	_, err = StagesFromConfig(cfg, s, nil)
	assert.True(t, core.IsConfigurationError(err), "key without a store")

	stages, err := StagesFromConfig(cfg, s, ms)
	require.NoError(t, err)
	o, err := New(sixRestaurants(), WithLogger(quiet), WithStages(stages...))
	require.NoError(t, err)
	results, err := o.Recommend(context.Background(), o.NewRequest("pho"))
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.NotEqual(t, "a", r.CandidateID)
		assert.NotEqual(t, "d", r.CandidateID)
	}
}

func TestRecommend_UnrankedStagesFail(t *testing.T) {
	o, err := New(sixRestaurants(), WithLogger(quiet), WithStages(&rank.ScoreNode{}, &rerank.TopNNode{}))
	require.NoError(t, err)
	_, err = o.Recommend(context.Background(), o.NewRequest("pho"))
	assert.Error(t, err)
}

func TestDefaultFactory_UsesSettings(t *testing.T) {
	s := config.Default()
	s.TieBreakByID = true
	s.Criteria = []string{core.CriterionFood}

	f := DefaultFactory(s)
	n, err := f.Build("rank.electre", nil)
	require.NoError(t, err)
	assert.True(t, n.(*rank.ElectreNode).Ranker.TieBreakByID)

	n, err = f.Build("rank.score", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, []string{core.CriterionFood}, n.(*rank.ScoreNode).Criteria)
}
