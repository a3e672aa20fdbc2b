package filter

import (
	"context"
	"fmt"

	"github.com/rushteam/outrank/core"
	"github.com/rushteam/outrank/pipeline"
	"github.com/rushteam/outrank/pkg/utils"
)

// FilterNode 是过滤 Node，可以组合多个过滤器进行过滤。
// 任何一个过滤器返回 true，该候选就会被过滤掉。
//
// 过滤器出错时整个 Node 失败；过滤后为空返回 core.ErrEmptyCandidateSet，
// 因为后续的两两比较没有意义。
type FilterNode struct {
	Filters []Filter

	// AllowEmpty 为 true 时过滤后为空不报错
	AllowEmpty bool
}

func (n *FilterNode) Name() string {
	return "filter.node"
}

func (n *FilterNode) Kind() pipeline.Kind {
	return pipeline.KindFilter
}

func (n *FilterNode) Process(
	ctx context.Context,
	req *core.RankRequest,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(n.Filters) == 0 || len(items) == 0 {
		return items, nil
	}

	filters, err := n.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	out := make([]*core.Item, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}

		filteredBy := ""
		for _, f := range filters {
			ok, err := f.ShouldFilter(ctx, req, item)
			if err != nil {
				return nil, fmt.Errorf("%s on %s: %w", f.Name(), item.ID, err)
			}
			if ok {
				filteredBy = f.Name()
				break
			}
		}

		if filteredBy != "" {
			item.PutLabel("filtered", utils.Label{Value: "true", Source: filteredBy})
			continue
		}
		out = append(out, item)
	}

	if len(out) == 0 && !n.AllowEmpty {
		return nil, core.ErrEmptyCandidateSet
	}
	return out, nil
}

// prepare 返回本次请求使用的过滤器，实现了 Preparer 的替换为其 Prepare 结果。
func (n *FilterNode) prepare(ctx context.Context, req *core.RankRequest) ([]Filter, error) {
	filters := make([]Filter, len(n.Filters))
	for i, f := range n.Filters {
		p, ok := f.(Preparer)
		if !ok {
			filters[i] = f
			continue
		}
		prepared, err := p.Prepare(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name(), err)
		}
		filters[i] = prepared
	}
	return filters, nil
}
