// Package builders 注册内置 Node 的配置构建器，import _ 即可被 config.DefaultFactory 使用。
package builders

import (
	"fmt"

	"github.com/rushteam/outrank/config"
	"github.com/rushteam/outrank/core"
	"github.com/rushteam/outrank/electre"
	"github.com/rushteam/outrank/filter"
	"github.com/rushteam/outrank/pipeline"
	"github.com/rushteam/outrank/pkg/conv"
	"github.com/rushteam/outrank/rank"
	"github.com/rushteam/outrank/rerank"
)

func init() {
	config.Register("filter.expr", BuildExprFilterNode)
	config.Register("filter.min_reviews", BuildMinReviewsNode)
	config.Register("filter.exclude", BuildExcludeNode)
	config.Register("rank.score", BuildScoreNode)
	config.Register("rank.electre", BuildElectreNode)
	config.Register("rerank.topn", BuildTopNNode)
}

// BuildExprFilterNode 配置：{expr: "item.meta.review_count >= 10"}
func BuildExprFilterNode(cfg map[string]any) (pipeline.Node, error) {
	expr := conv.ConfigGet(cfg, "expr", "")
	if expr == "" {
		return nil, core.NewConfigError("filter.expr: expr is required")
	}
	f, err := filter.NewExprFilter(expr)
	if err != nil {
		return nil, err
	}
	return &filter.FilterNode{
		Filters:    []filter.Filter{f},
		AllowEmpty: conv.ConfigGet(cfg, "allow_empty", false),
	}, nil
}

// BuildMinReviewsNode 配置：{min: 2}
func BuildMinReviewsNode(cfg map[string]any) (pipeline.Node, error) {
	minReviews := conv.ConfigGetFloat64(cfg, "min", config.DefaultMinReviews)
	if minReviews < 0 {
		return nil, core.NewConfigError(fmt.Sprintf("filter.min_reviews: min must not be negative, got %v", minReviews))
	}
	return &filter.FilterNode{
		Filters:    []filter.Filter{filter.NewMinReviewsFilter(minReviews)},
		AllowEmpty: conv.ConfigGet(cfg, "allow_empty", false),
	}, nil
}

// BuildExcludeNode 配置：{ids: ["a", "b"]}。按 key 从 Store 读取列表需要 ExcludeNodeBuilder。
func BuildExcludeNode(cfg map[string]any) (pipeline.Node, error) {
	return ExcludeNodeBuilder(nil)(cfg)
}

// ExcludeNodeBuilder 返回从 store 读取排除列表的 filter.exclude 构建器。
// 配置：{ids: ["a"], key: "visited:u1"}，key 对应的值为 JSON 字符串数组。
func ExcludeNodeBuilder(store core.Store) pipeline.NodeBuilder {
	return func(cfg map[string]any) (pipeline.Node, error) {
		ids := conv.SliceAnyToString(cfg["ids"])
		key := conv.ConfigGet(cfg, "key", "")
		if key != "" && store == nil {
			return nil, core.NewConfigError(fmt.Sprintf("filter.exclude: key %q needs a store", key))
		}
		return &filter.FilterNode{
			Filters:    []filter.Filter{filter.NewExcludeFilter(ids, store, key)},
			AllowEmpty: conv.ConfigGet(cfg, "allow_empty", false),
		}, nil
	}
}

// BuildScoreNode 配置：{criteria: ["food", "service"]}
func BuildScoreNode(cfg map[string]any) (pipeline.Node, error) {
	return &rank.ScoreNode{Criteria: conv.SliceAnyToString(cfg["criteria"])}, nil
}

// BuildElectreNode 配置：
//
//	thresholds: {food: {q: 7.5, p: 20, v: 40}}
//	weights: {food: 1, service: 1}
//	query_match_weight: 0.5
//	distance_weight: 0.25
//	workers: 0
//	tie_break_by_id: false
func BuildElectreNode(cfg map[string]any) (pipeline.Node, error) {
	n := rank.NewElectreNode()
	if err := ConfigureElectreNode(n, cfg); err != nil {
		return nil, err
	}
	return n, nil
}

// ConfigureElectreNode 用 cfg 覆盖 n 的参数，cfg 中没有的项保持不变。
func ConfigureElectreNode(n *rank.ElectreNode, cfg map[string]any) error {
	if raw, ok := cfg["thresholds"].(map[string]any); ok {
		ts := make(map[string]electre.Threshold, len(n.Thresholds)+len(raw))
		for k, v := range n.Thresholds {
			ts[k] = v
		}
		for criterion, tv := range raw {
			tm, ok := tv.(map[string]any)
			if !ok {
				return core.NewConfigError(fmt.Sprintf("rank.electre: thresholds.%s must be a map", criterion))
			}
			base, ok := ts[criterion]
			if !ok {
				base = electre.DefaultThreshold()
			}
			ts[criterion] = electre.Threshold{
				Q: conv.ConfigGetFloat64(tm, "q", base.Q),
				P: conv.ConfigGetFloat64(tm, "p", base.P),
				V: conv.ConfigGetFloat64(tm, "v", base.V),
			}
		}
		set, err := electre.NewThresholdSet(ts)
		if err != nil {
			return err
		}
		n.Thresholds = set
	}
	if raw, ok := cfg["weights"].(map[string]any); ok {
		n.DefaultWeights = conv.MapToFloat64(raw)
	}
	n.QueryMatchWeight = conv.ConfigGetFloat64(cfg, "query_match_weight", n.QueryMatchWeight)
	n.DistanceWeight = conv.ConfigGetFloat64(cfg, "distance_weight", n.DistanceWeight)

	if n.Engine == nil {
		n.Engine = &electre.Engine{}
	}
	if n.Ranker == nil {
		n.Ranker = &electre.Ranker{}
	}
	n.Engine.Workers = conv.ConfigGetInt(cfg, "workers", n.Engine.Workers)
	n.Ranker.TieBreakByID = conv.ConfigGet(cfg, "tie_break_by_id", n.Ranker.TieBreakByID)
	return nil
}

// BuildTopNNode 配置：{n: 5}，n 为 0 时使用请求的 top_k。
func BuildTopNNode(cfg map[string]any) (pipeline.Node, error) {
	return &rerank.TopNNode{N: conv.ConfigGetInt(cfg, "n", 0)}, nil
}
