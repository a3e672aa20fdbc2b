package rank

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rushteam/outrank/core"
	"github.com/rushteam/outrank/electre"
	"github.com/rushteam/outrank/pipeline"
	"github.com/rushteam/outrank/pkg/utils"
	"github.com/rushteam/outrank/scoring"
)

const tracerName = "github.com/rushteam/outrank/rank"

// ElectreNode 用 ELECTRE III 对候选两两比较，按净可信度给出名次并重排。
//
// 参与比较的维度 = 权重表中有阈值的维度：
//   - 权重来自请求；请求没给时用 DefaultWeights
//   - query_match 没给权重时补 QueryMatchWeight
//   - 有距离偏好时，distance 没给权重时补 DistanceWeight；没有距离偏好时 distance 不参与
//   - 没有阈值的 key 忽略
//
// 权重归一化后交给 electre.Engine。每个候选必须已有这些维度的分数（见 ScoreNode）。
type ElectreNode struct {
	Thresholds electre.ThresholdSet

	DefaultWeights   map[string]float64
	QueryMatchWeight float64
	DistanceWeight   float64

	Engine *electre.Engine
	Ranker *electre.Ranker

	Logger *slog.Logger
	Tracer trace.Tracer
}

// NewElectreNode 使用默认阈值与默认权重：四个评论维度等权。
func NewElectreNode() *ElectreNode {
	criteria := append(core.DefaultCriteria(), core.CriterionQueryMatch, core.CriterionDistance)
	ts, _ := electre.UniformThresholdSet(criteria, electre.DefaultThreshold())
	weights := make(map[string]float64, 4)
	for _, c := range core.DefaultCriteria() {
		weights[c] = 1
	}
	return &ElectreNode{
		Thresholds:       ts,
		DefaultWeights:   weights,
		QueryMatchWeight: core.DefaultQueryMatchWeight,
		DistanceWeight:   core.DefaultDistanceWeight,
		Engine:           &electre.Engine{},
		Ranker:           &electre.Ranker{},
	}
}

func (n *ElectreNode) Name() string        { return "rank.electre" }
func (n *ElectreNode) Kind() pipeline.Kind { return pipeline.KindRank }

// Weights 返回本次请求实际参与比较的归一化权重。
func (n *ElectreNode) Weights(req *core.RankRequest) (scoring.Weights, error) {
	w := scoring.Weights{}
	src := n.DefaultWeights
	if req != nil && len(req.Weights) > 0 {
		src = req.Weights
	}
	for k, v := range src {
		w[k] = v
	}

	if _, ok := w[core.CriterionQueryMatch]; !ok && n.QueryMatchWeight > 0 {
		w[core.CriterionQueryMatch] = n.QueryMatchWeight
	}
	if req != nil && req.Distance != nil {
		if _, ok := w[core.CriterionDistance]; !ok && n.DistanceWeight > 0 {
			w[core.CriterionDistance] = n.DistanceWeight
		}
	} else {
		delete(w, core.CriterionDistance)
	}

	w = scoring.FilterWeights(w, n.Thresholds.Criteria())
	if len(w) == 0 {
		return nil, core.NewConfigError("rank.electre: no weighted criterion has thresholds")
	}
	return scoring.NormalizeWeights(w), nil
}

func (n *ElectreNode) Process(ctx context.Context, req *core.RankRequest, items []*core.Item) ([]*core.Item, error) {
	if len(items) == 0 {
		return items, nil
	}

	tracer := n.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	ctx, span := tracer.Start(ctx, n.Name(), trace.WithAttributes(
		attribute.Int("electre.candidates", len(items)),
	))
	defer span.End()

	ranked, err := n.rank(ctx, req, items)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return ranked, nil
}

func (n *ElectreNode) rank(ctx context.Context, req *core.RankRequest, items []*core.Item) ([]*core.Item, error) {
	weights, err := n.Weights(req)
	if err != nil {
		return nil, err
	}
	criteria := weights.Keys()
	thresholds, err := n.Thresholds.Lookup(criteria)
	if err != nil {
		return nil, err
	}

	in := electre.Input{
		Scores:     make([]float64, 0, len(items)*len(criteria)),
		N:          len(items),
		M:          len(criteria),
		Weights:    make([]float64, len(criteria)),
		Thresholds: thresholds,
	}
	for k, c := range criteria {
		in.Weights[k] = weights[c]
	}
	ids := make([]string, len(items))
	for i, it := range items {
		if it == nil {
			return nil, core.NewDomainError(core.ModuleElectre, core.ErrorCodeInvalidInput,
				fmt.Sprintf("rank.electre: candidate %d is nil", i))
		}
		ids[i] = it.ID
		for _, c := range criteria {
			v, ok := it.Score(c)
			if !ok {
				return nil, core.NewDomainError(core.ModuleElectre, core.ErrorCodeInvalidInput,
					fmt.Sprintf("rank.electre: candidate %s has no %s score", it.ID, c))
			}
			in.Scores = append(in.Scores, v)
		}
	}

	engine := n.Engine
	if engine == nil {
		engine = &electre.Engine{}
	}
	ranker := n.Ranker
	if ranker == nil {
		ranker = &electre.Ranker{}
	}

	m, err := engine.Outrank(ctx, in)
	if err != nil {
		return nil, err
	}
	ranks := ranker.Rank(ids, electre.NetCredibility(m))

	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.DebugContext(ctx, "electre ranking done",
		slog.Int("candidates", len(items)),
		slog.Any("criteria", criteria))

	out := make([]*core.Item, 0, len(items))
	for _, r := range ranks {
		it := items[r.Index]
		if it.Meta == nil {
			it.Meta = make(map[string]any, 2)
		}
		it.Meta[core.MetaNetCredibility] = r.NetCredibility
		it.Meta[core.MetaRank] = r.Rank
		it.PutLabel("electre_rank", utils.Label{Value: strconv.Itoa(r.Rank), Source: "electre"})
		out = append(out, it)
	}
	return out, nil
}
