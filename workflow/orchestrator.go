// Package workflow 把检索、过滤、打分、ELECTRE 排序串成一次完整的排序请求。
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rushteam/outrank/config"
	"github.com/rushteam/outrank/core"
	"github.com/rushteam/outrank/metrics"
	"github.com/rushteam/outrank/pipeline"
	"github.com/rushteam/outrank/recall"
)

const tracerName = "github.com/rushteam/outrank/workflow"

// Orchestrator 处理排序请求：自适应检索 -> 检索后的各阶段（过滤、打分、排序、截断）。
// 创建后只读，可并发使用。
type Orchestrator struct {
	search   core.SimilaritySearch
	settings *config.Settings
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	tp       trace.TracerProvider
	cache    core.Store
	stages   []pipeline.Node
	recall   *recall.Adaptive
}

// Option 配置 Orchestrator。
type Option func(*Orchestrator)

// WithSettings 使用指定参数，默认 config.Default()。
func WithSettings(s *config.Settings) Option {
	return func(o *Orchestrator) { o.settings = s }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Orchestrator) { o.tp = tp }
}

// WithCache 为检索服务加一层结果缓存，过期时间取 Settings.Cache.TTL。
func WithCache(store core.Store) Option {
	return func(o *Orchestrator) { o.cache = store }
}

// WithStages 替换检索之后的各阶段，默认见 DefaultStages。
func WithStages(nodes ...pipeline.Node) Option {
	return func(o *Orchestrator) { o.stages = nodes }
}

// New 创建 Orchestrator；参数非法时返回配置错误。
func New(search core.SimilaritySearch, opts ...Option) (*Orchestrator, error) {
	if search == nil {
		return nil, core.NewConfigError("workflow: search service is nil")
	}
	o := &Orchestrator{search: search}
	for _, opt := range opts {
		opt(o)
	}
	if o.settings == nil {
		o.settings = config.Default()
	}
	if err := o.settings.Validate(); err != nil {
		return nil, err
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.tp == nil {
		o.tp = otel.GetTracerProvider()
	}
	o.tracer = o.tp.Tracer(tracerName)

	if o.cache != nil && o.settings.Cache.TTL > 0 {
		cs := recall.NewCachedSearch(o.search, o.cache, o.settings.Cache.TTL)
		cs.Logger = o.logger
		o.search = cs
	}

	o.recall = &recall.Adaptive{
		Search:         o.search,
		Step:           o.settings.RelaxStep,
		MaxRelaxations: o.settings.MaxRelaxations,
		Multiplier:     o.settings.CandidateMultiplier,
		MinReviews:     o.settings.MinReviews,
		Logger:         o.logger,
		Tracer:         o.tp.Tracer("github.com/rushteam/outrank/recall"),
		OnRelax: func(context.Context, float64, float64) {
			o.metrics.IncRelaxation()
		},
	}

	if o.stages == nil {
		stages, err := DefaultStages(o.settings, o.logger, o.tp)
		if err != nil {
			return nil, err
		}
		o.stages = stages
	}
	return o, nil
}

// Settings 返回生效的参数。
func (o *Orchestrator) Settings() *config.Settings { return o.settings }

// NewRequest 用默认参数创建请求。
func (o *Orchestrator) NewRequest(query string) *core.RankRequest {
	return &core.RankRequest{
		Query:     query,
		TopK:      o.settings.TopK,
		Threshold: o.settings.SimilarityThreshold,
	}
}

// Recommend 处理一次排序请求，返回最多 TopK 条结果，按名次升序。
//
// 错误：
//   - 请求或参数非法：配置错误（core.IsConfigurationError）
//   - 放宽阈值后仍无候选，或过滤后为空：core.ErrEmptyCandidateSet
//   - 检索服务出错：原样包装返回
func (o *Orchestrator) Recommend(ctx context.Context, req *core.RankRequest) ([]core.RankingResult, error) {
	if err := req.Validate(); err != nil {
		o.metrics.IncRequest(metrics.StatusConfigError)
		return nil, err
	}
	r := *req
	if r.RequestID == "" {
		r.RequestID = uuid.NewString()
	}

	ctx, span := o.tracer.Start(ctx, "workflow.recommend", trace.WithAttributes(
		attribute.String("request.id", r.RequestID),
		attribute.Int("request.top_k", r.TopK),
		attribute.Float64("request.threshold", r.Threshold),
		attribute.Bool("request.distance", r.Distance != nil),
	))
	defer span.End()

	start := time.Now()
	results, err := o.run(ctx, &r)
	if err != nil {
		status := statusOf(err)
		o.metrics.IncRequest(status)
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
		o.logger.WarnContext(ctx, "ranking request failed",
			slog.String("request_id", r.RequestID),
			slog.String("status", status),
			slog.String("error", err.Error()))
		return nil, err
	}

	o.metrics.IncRequest(metrics.StatusOK)
	span.SetAttributes(attribute.Int("response.results", len(results)))
	o.logger.InfoContext(ctx, "ranking request done",
		slog.String("request_id", r.RequestID),
		slog.Int("results", len(results)),
		slog.Duration("duration", time.Since(start)))
	return results, nil
}

func (o *Orchestrator) run(ctx context.Context, req *core.RankRequest) ([]core.RankingResult, error) {
	last := time.Now()
	p := &pipeline.Pipeline{
		Nodes: append([]pipeline.Node{o.recall}, o.stages...),
		Hooks: []pipeline.Hook{func(ctx context.Context, node pipeline.Node, items []*core.Item, err error) {
			now := time.Now()
			o.metrics.ObserveStage(node.Name(), now.Sub(last))
			last = now
			if err != nil {
				return
			}
			switch node.Kind() {
			case pipeline.KindRecall:
				o.logger.DebugContext(ctx, "candidates retrieved",
					slog.String("request_id", req.RequestID),
					slog.Int("candidates", len(items)))
			case pipeline.KindRank:
				if node.Name() == "rank.electre" {
					o.metrics.ObserveCandidates(len(items))
				}
			}
		}},
	}

	items, err := p.Run(ctx, req, nil)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, core.ErrEmptyCandidateSet
	}
	if len(items) > req.TopK {
		items = items[:req.TopK]
	}

	out := make([]core.RankingResult, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		res := it.Result()
		if res.Rank == 0 {
			return nil, fmt.Errorf("workflow: candidate %s was not ranked, check the configured stages", it.ID)
		}
		out = append(out, res)
	}
	return out, nil
}

func statusOf(err error) string {
	switch {
	case core.IsEmptyCandidateSet(err):
		return metrics.StatusEmpty
	case core.IsConfigurationError(err):
		return metrics.StatusConfigError
	default:
		return metrics.StatusError
	}
}
