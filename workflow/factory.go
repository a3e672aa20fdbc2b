package workflow

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/rushteam/outrank/config"
	"github.com/rushteam/outrank/config/builders"
	"github.com/rushteam/outrank/core"
	"github.com/rushteam/outrank/electre"
	"github.com/rushteam/outrank/pipeline"
	"github.com/rushteam/outrank/rank"
	"github.com/rushteam/outrank/rerank"
)

// DefaultStages 按参数构建检索之后的默认阶段：打分 -> ELECTRE 排序 -> 截断到 TopK。
// 评论数下限在检索时生效（见 recall.Adaptive.MinReviews），不在这里过滤。
func DefaultStages(s *config.Settings, logger *slog.Logger, tp trace.TracerProvider) ([]pipeline.Node, error) {
	electreNode, err := NewElectreNode(s)
	if err != nil {
		return nil, err
	}
	electreNode.Logger = logger
	if tp != nil {
		electreNode.Tracer = tp.Tracer("github.com/rushteam/outrank/rank")
	}
	return []pipeline.Node{
		&rank.ScoreNode{Criteria: s.Criteria},
		electreNode,
		&rerank.TopNNode{},
	}, nil
}

// NewElectreNode 按参数创建 ELECTRE 排序节点。
func NewElectreNode(s *config.Settings) (*rank.ElectreNode, error) {
	ts, err := s.ThresholdSet()
	if err != nil {
		return nil, err
	}
	weights := make(map[string]float64, len(s.Weights))
	for k, v := range s.Weights {
		weights[k] = v
	}
	return &rank.ElectreNode{
		Thresholds:       ts,
		DefaultWeights:   weights,
		QueryMatchWeight: s.QueryMatchWeight,
		DistanceWeight:   s.DistanceWeight,
		Engine:           &electre.Engine{Workers: s.Workers},
		Ranker:           &electre.Ranker{TieBreakByID: s.TieBreakByID},
	}, nil
}

// DefaultFactory 返回配置驱动用的 NodeFactory：包含所有注册的内置 Node，
// 其中 rank.score、rank.electre、filter.min_reviews 以 s 为默认值，节点配置中的项覆盖默认值。
func DefaultFactory(s *config.Settings) *pipeline.NodeFactory {
	return FactoryWithStore(s, nil)
}

// FactoryWithStore 同 DefaultFactory，filter.exclude 的 key 从 store 读取。
func FactoryWithStore(s *config.Settings, store core.Store) *pipeline.NodeFactory {
	f := config.DefaultFactory()
	if store != nil {
		f.Register("filter.exclude", builders.ExcludeNodeBuilder(store))
	}
	f.Register("rank.electre", func(cfg map[string]any) (pipeline.Node, error) {
		n, err := NewElectreNode(s)
		if err != nil {
			return nil, err
		}
		if err := builders.ConfigureElectreNode(n, cfg); err != nil {
			return nil, err
		}
		return n, nil
	})
	f.Register("rank.score", func(cfg map[string]any) (pipeline.Node, error) {
		node, err := builders.BuildScoreNode(cfg)
		if err != nil {
			return nil, err
		}
		if sn := node.(*rank.ScoreNode); len(sn.Criteria) == 0 {
			sn.Criteria = s.Criteria
		}
		return node, nil
	})
	f.Register("filter.min_reviews", func(cfg map[string]any) (pipeline.Node, error) {
		if _, ok := cfg["min"]; ok {
			return builders.BuildMinReviewsNode(cfg)
		}
		merged := map[string]any{"min": s.MinReviews}
		for k, v := range cfg {
			merged[k] = v
		}
		return builders.BuildMinReviewsNode(merged)
	})
	return f
}

// StagesFromConfig 按 pipeline 配置构建检索之后的阶段，store 可以为 nil。
func StagesFromConfig(cfg *pipeline.Config, s *config.Settings, store core.Store) ([]pipeline.Node, error) {
	f := FactoryWithStore(s, store)
	if err := config.ValidatePipelineConfig(cfg, f); err != nil {
		return nil, err
	}
	return cfg.BuildNodes(f)
}
