package recall

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
	"github.com/rushteam/outrank/pipeline"
	"github.com/rushteam/outrank/pkg/utils"
)

const tracerName = "github.com/rushteam/outrank/recall"

// Adaptive 是一个 Recall Node：按请求阈值检索候选，结果不足 TopK 时降低阈值重试。
//
// 流程：
//  1. 以 req.Threshold 检索，Limit = TopK * Multiplier
//  2. 结果数 < TopK 且还有放宽次数时，阈值减 Step（不低于 0）再检索
//  3. 保留各次检索中结果最多的一次
//  4. 全部为空时返回 core.ErrEmptyCandidateSet
//
// 检索服务的错误原样包装返回，不会被当成"零结果"。
type Adaptive struct {
	Search core.SimilaritySearch

	// Step 每次放宽降低的阈值，<= 0 时使用 core.DefaultRelaxStep
	Step float64
	// MaxRelaxations 最多放宽次数，0 表示不放宽
	MaxRelaxations int
	// Multiplier 检索条数 = TopK * Multiplier，<= 0 时使用 core.DefaultCandidateMultiplier
	Multiplier int
	// MinReviews 透传给检索服务的评论数下限，在判断结果是否足够之前生效
	MinReviews float64

	Logger *slog.Logger
	Tracer trace.Tracer

	// OnRelax 每次放宽前回调（用于指标）
	OnRelax func(ctx context.Context, from, to float64)
}

// NewAdaptive 创建使用默认放宽策略的 Adaptive。
func NewAdaptive(search core.SimilaritySearch) *Adaptive {
	return &Adaptive{
		Search:         search,
		Step:           core.DefaultRelaxStep,
		MaxRelaxations: core.DefaultMaxRelaxations,
		Multiplier:     core.DefaultCandidateMultiplier,
	}
}

func (n *Adaptive) Name() string        { return "recall.adaptive" }
func (n *Adaptive) Kind() pipeline.Kind { return pipeline.KindRecall }

// Outcome 记录一次自适应检索的过程。
type Outcome struct {
	Hits        []core.SearchHit
	Threshold   float64 // 产出 Hits 的阈值
	Relaxations int     // 产出 Hits 时已放宽的次数
}

func (n *Adaptive) Process(ctx context.Context, req *core.RankRequest, _ []*core.Item) ([]*core.Item, error) {
	out, err := n.Retrieve(ctx, req)
	if err != nil {
		return nil, err
	}

	threshold := strconv.FormatFloat(out.Threshold, 'f', -1, 64)
	relaxed := strconv.Itoa(out.Relaxations)
	items := make([]*core.Item, 0, len(out.Hits))
	for _, h := range out.Hits {
		it := core.NewItemFromHit(h)
		it.PutLabel("recall_threshold", utils.Label{Value: threshold, Source: "recall"})
		it.PutLabel("recall_relaxations", utils.Label{Value: relaxed, Source: "recall"})
		items = append(items, it)
	}
	return items, nil
}

// Retrieve 执行自适应检索，返回去重后的命中结果。
func (n *Adaptive) Retrieve(ctx context.Context, req *core.RankRequest) (*Outcome, error) {
	if n.Search == nil {
		return nil, core.NewConfigError("recall.adaptive: search service is nil")
	}
	if req == nil {
		return nil, core.NewDomainError(core.ModuleRecall, core.ErrorCodeInvalidInput, "rank request is nil")
	}
	if req.TopK <= 0 {
		return nil, core.NewConfigError(fmt.Sprintf("recall.adaptive: top_k must be positive, got %d", req.TopK))
	}

	tracer := n.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	ctx, span := tracer.Start(ctx, n.Name(), trace.WithAttributes(
		attribute.Int("recall.top_k", req.TopK),
		attribute.Float64("recall.threshold", req.Threshold),
	))
	defer span.End()

	step := n.Step
	if step <= 0 {
		step = core.DefaultRelaxStep
	}
	mult := n.Multiplier
	if mult <= 0 {
		mult = core.DefaultCandidateMultiplier
	}
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}

	threshold := req.Threshold
	best := &Outcome{Threshold: threshold}
	for attempt := 0; ; attempt++ {
		hits, err := n.Search.Search(ctx, &core.SearchRequest{
			Query:      req.Query,
			Filter:     req.Filter,
			Limit:      req.TopK * mult,
			Threshold:  threshold,
			MinReviews: n.MinReviews,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "search failed")
			return nil, fmt.Errorf("search at threshold %.2f: %w", threshold, err)
		}
		hits = dedupHits(hits)

		if attempt == 0 || len(hits) > len(best.Hits) {
			best = &Outcome{Hits: hits, Threshold: threshold, Relaxations: attempt}
		}
		if len(hits) >= req.TopK || attempt >= n.MaxRelaxations || threshold <= 0 {
			break
		}

		next := threshold - step
		if next < 0 {
			next = 0
		}
		logger.InfoContext(ctx, "relaxing similarity threshold",
			slog.String("request_id", req.RequestID),
			slog.Int("found", len(hits)),
			slog.Int("top_k", req.TopK),
			slog.Float64("from", threshold),
			slog.Float64("to", next))
		if n.OnRelax != nil {
			n.OnRelax(ctx, threshold, next)
		}
		threshold = next
	}

	span.SetAttributes(
		attribute.Int("recall.candidates", len(best.Hits)),
		attribute.Int("recall.relaxations", best.Relaxations),
		attribute.Float64("recall.final_threshold", best.Threshold),
	)
	if len(best.Hits) == 0 {
		span.SetStatus(codes.Error, "no candidates")
		return nil, core.ErrEmptyCandidateSet
	}
	return best, nil
}

// dedupHits 按 ID 去重，保留第一次出现的。
func dedupHits(hits []core.SearchHit) []core.SearchHit {
	seen := make(map[string]struct{}, len(hits))
	out := make([]core.SearchHit, 0, len(hits))
	for _, h := range hits {
		if _, ok := seen[h.ID]; ok {
			continue
		}
		seen[h.ID] = struct{}{}
		out = append(out, h)
	}
	return out
}
