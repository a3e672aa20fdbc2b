package electre

import (
	"context"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/outrank/core"
)

func TestThreshold_Validate(t *testing.T) {
	tests := []struct {
		name    string
		th      Threshold
		wantErr bool
	}{
		{name: "ordered", th: Threshold{Q: 5, P: 10, V: 20}},
		{name: "all equal", th: Threshold{Q: 10, P: 10, V: 10}},
		{name: "all zero", th: Threshold{}},
		{name: "q greater than p", th: Threshold{Q: 20, P: 7.5, V: 40}, wantErr: true},
		{name: "p greater than v", th: Threshold{Q: 1, P: 30, V: 20}, wantErr: true},
		{name: "negative", th: Threshold{Q: -1, P: 2, V: 3}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.th.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, core.IsConfigurationError(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNewThresholdSet_RejectsBadOrdering(t *testing.T) {
	_, err := NewThresholdSet(map[string]Threshold{
		"food":    {Q: 5, P: 10, V: 20},
		"service": {Q: 20, P: 7.5, V: 40},
	})
	require.Error(t, err)
	assert.True(t, core.IsConfigurationError(err))
	assert.Contains(t, err.Error(), "service")
}

func TestThresholdSet_Lookup(t *testing.T) {
	ts, err := UniformThresholdSet([]string{"food", "price"}, DefaultThreshold())
	require.NoError(t, err)

	got, err := ts.Lookup([]string{"price", "food"})
	require.NoError(t, err)
	assert.Equal(t, []Threshold{DefaultThreshold(), DefaultThreshold()}, got)

	_, err = ts.Lookup([]string{"ambience"})
	assert.True(t, core.IsConfigurationError(err))
}

func TestOutrank_TwoCandidates(t *testing.T) {
	e := &Engine{}
	m, err := e.Outrank(context.Background(), Input{
		Scores:     []float64{80, 50},
		N:          2,
		M:          1,
		Weights:    []float64{1},
		Thresholds: []Threshold{{Q: 5, P: 10, V: 20}},
	})
	require.NoError(t, err)

	assert.Equal(t, 1.0, m.At(0, 1), "A outranks B: diff=-30 <= q")
	assert.Equal(t, 0.0, m.At(1, 0), "B outranks A: diff=+30 > v")
	assert.Equal(t, 0.0, m.At(0, 0))

	net := NetCredibility(m)
	assert.Equal(t, []float64{1, -1}, net)

	ranks := (&Ranker{}).Rank([]string{"A", "B"}, net)
	require.Len(t, ranks, 2)
	assert.Equal(t, "A", ranks[0].ID)
	assert.Equal(t, 1, ranks[0].Rank)
	assert.Equal(t, "B", ranks[1].ID)
	assert.Equal(t, 2, ranks[1].Rank)
}

func TestOutrank_PartialConcordanceAndVeto(t *testing.T) {
	ts := []Threshold{{Q: 5, P: 15, V: 25}, {Q: 5, P: 15, V: 25}}
	w := []float64{0.5, 0.5}
	a := []float64{50, 60}
	b := []float64{60, 40}

	// 维度 0：diff=10，落在 q..p 之间，c0=(15-10)/10=0.5；维度 1：diff=-20，c1=1
	c := Concordance(a, b, w, ts)
	assert.InDelta(t, 0.75, c, 1e-12)

	d := Discordance(a, b, ts, make([]float64, 2))
	assert.Equal(t, []float64{0, 0}, d)
	assert.InDelta(t, 0.75, Credibility(c, d), 1e-12)

	// 维度 0 的差距进入否决区间：diff=20，d0=(20-15)/10=0.5
	b2 := []float64{70, 40}
	c2 := Concordance(a, b2, w, ts)
	assert.InDelta(t, 0.5, c2, 1e-12)
	d2 := Discordance(a, b2, ts, make([]float64, 2))
	assert.InDelta(t, 0.5, d2[0], 1e-12)
	// d0 == c，不削减
	assert.InDelta(t, 0.5, Credibility(c2, d2), 1e-12)

	// diff=30 > v：d0=1 且 c<1，可信度归零
	b3 := []float64{80, 40}
	c3 := Concordance(a, b3, w, ts)
	d3 := Discordance(a, b3, ts, make([]float64, 2))
	assert.Equal(t, 1.0, d3[0])
	assert.Equal(t, 0.0, Credibility(c3, d3))
}

func TestOutrank_InvalidInput(t *testing.T) {
	e := &Engine{}
	good := Input{
		Scores:     []float64{1, 2, 3, 4},
		N:          2,
		M:          2,
		Weights:    []float64{0.5, 0.5},
		Thresholds: []Threshold{DefaultThreshold(), DefaultThreshold()},
	}

	tests := []struct {
		name   string
		mutate func(in *Input)
		config bool
	}{
		{name: "scores length", mutate: func(in *Input) { in.Scores = in.Scores[:3] }},
		{name: "weights length", mutate: func(in *Input) { in.Weights = []float64{1} }},
		{name: "zero weights", mutate: func(in *Input) { in.Weights = []float64{0, 0} }},
		{name: "negative weight", mutate: func(in *Input) { in.Weights = []float64{-1, 2} }},
		{name: "bad thresholds", mutate: func(in *Input) { in.Thresholds[1] = Threshold{Q: 20, P: 7.5, V: 40} }, config: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := good
			in.Scores = append([]float64(nil), good.Scores...)
			in.Thresholds = append([]Threshold(nil), good.Thresholds...)
			tt.mutate(&in)
			_, err := e.Outrank(context.Background(), in)
			require.Error(t, err)
			if tt.config {
				assert.True(t, core.IsConfigurationError(err))
			} else {
				assert.True(t, core.IsInvalidInput(err))
			}
		})
	}
}

func TestOutrank_CanceledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&Engine{}).Outrank(ctx, Input{
		Scores:     []float64{1, 2},
		N:          2,
		M:          1,
		Weights:    []float64{1},
		Thresholds: []Threshold{DefaultThreshold()},
	})
	assert.ErrorIs(t, err, context.Canceled)
}

// cancelAfter 在第 n 次 Err 调用之后报告已取消。
type cancelAfter struct {
	context.Context
	n     int64
	calls atomic.Int64
}

func (c *cancelAfter) Err() error {
	if c.calls.Add(1) > c.n {
		return context.Canceled
	}
	return nil
}

func TestOutrank_CanceledBetweenRowBlocks(t *testing.T) {
	in := randomInput(rand.New(rand.NewSource(3)), 4*minRowsPerWorker, 3)
	for _, workers := range []int{1, 4} {
		ctx := &cancelAfter{Context: context.Background(), n: 2}
		_, err := (&Engine{Workers: workers}).Outrank(ctx, in)
		assert.ErrorIs(t, err, context.Canceled, "workers=%d", workers)
		assert.Greater(t, ctx.calls.Load(), int64(2), "workers=%d", workers)
	}
}

func randomInput(r *rand.Rand, n, m int) Input {
	in := Input{
		Scores:     make([]float64, n*m),
		N:          n,
		M:          m,
		Weights:    make([]float64, m),
		Thresholds: make([]Threshold, m),
	}
	for i := range in.Scores {
		in.Scores[i] = r.Float64() * 100
	}
	for j := 0; j < m; j++ {
		in.Weights[j] = r.Float64() + 0.01
		q := r.Float64() * 10
		p := q + r.Float64()*15
		v := p + r.Float64()*30
		in.Thresholds[j] = Threshold{Q: q, P: p, V: v}
	}
	return in
}

func TestOutrank_KernelMatchesPairwiseDefinition(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	in := randomInput(r, 40, 5)

	m, err := (&Engine{Workers: 1}).Outrank(context.Background(), in)
	require.NoError(t, err)

	d := make([]float64, in.M)
	for i := 0; i < in.N; i++ {
		a := in.Scores[i*in.M : (i+1)*in.M]
		for j := 0; j < in.N; j++ {
			if i == j {
				continue
			}
			b := in.Scores[j*in.M : (j+1)*in.M]
			c := Concordance(a, b, in.Weights, in.Thresholds)
			want := Credibility(c, Discordance(a, b, in.Thresholds, d))
			got := m.At(i, j)

			assert.InDelta(t, want, got, 1e-12)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
			assert.LessOrEqual(t, got, c+1e-12, "credibility never exceeds concordance")
		}
	}
}

func TestOutrank_ParallelMatchesSequential(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	in := randomInput(r, 130, 6)

	seq, err := (&Engine{Workers: 1}).Outrank(context.Background(), in)
	require.NoError(t, err)
	par, err := (&Engine{Workers: 8}).Outrank(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, seq.Data, par.Data)
}

func TestOutrank_Monotonicity(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	for trial := 0; trial < 50; trial++ {
		in := randomInput(r, 8, 4)
		base, err := (&Engine{}).Outrank(context.Background(), in)
		require.NoError(t, err)
		before := NetCredibility(base)

		cand := r.Intn(in.N)
		crit := r.Intn(in.M)
		bumped := in
		bumped.Scores = append([]float64(nil), in.Scores...)
		bumped.Scores[cand*in.M+crit] += r.Float64() * 30

		after, err := (&Engine{}).Outrank(context.Background(), bumped)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, NetCredibility(after)[cand], before[cand]-1e-9,
			"trial %d: raising a score must not lower net credibility", trial)
	}
}
