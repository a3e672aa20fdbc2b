package pipeline

import (
	"context"
	"fmt"

	"github.com/rushteam/outrank/core"
)

// Pipeline 把排序逻辑拆成可组合的 Node 链，按顺序执行。
type Pipeline struct {
	Nodes []Node

	// Hooks 在每个 Node 执行后回调，用于打点/日志，可为空
	Hooks []Hook
}

// Hook 在 Node 执行后被调用；err 为 Node 返回的错误。
type Hook func(ctx context.Context, node Node, items []*core.Item, err error)

func (p *Pipeline) Run(
	ctx context.Context,
	req *core.RankRequest,
	items []*core.Item,
) ([]*core.Item, error) {
	cur := items
	for _, node := range p.Nodes {
		next, err := node.Process(ctx, req, cur)
		for _, h := range p.Hooks {
			h(ctx, node, next, err)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", node.Name(), err)
		}
		cur = next
	}
	return cur, nil
}
