package rerank

import (
	"context"

	"github.com/rushteam/outrank/core"
	"github.com/rushteam/outrank/pipeline"
)

// TopNNode 是一个 Top-N 截断节点，在排序之后截取前 N 个候选。
//
// N 为 0 时使用请求的 TopK；两者都 <= 0 时不截断。
// 截断不改变名次：并列的候选可能被截在 N 之外，名次仍按全体候选计算。
//
// 示例：
//
//	pipeline := &pipeline.Pipeline{
//	    Nodes: []pipeline.Node{
//	        &rank.ScoreNode{},
//	        rank.NewElectreNode(),
//	        &rerank.TopNNode{},
//	    },
//	}
type TopNNode struct {
	N int
}

func (n *TopNNode) Name() string {
	return "rerank.topn"
}

func (n *TopNNode) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *TopNNode) Process(
	_ context.Context,
	req *core.RankRequest,
	items []*core.Item,
) ([]*core.Item, error) {
	limit := n.N
	if limit <= 0 && req != nil {
		limit = req.TopK
	}
	if limit <= 0 || len(items) <= limit {
		return items, nil
	}
	return items[:limit], nil
}
