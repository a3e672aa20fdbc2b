package filter

import (
	"context"

	"github.com/rushteam/outrank/core"
)

// Filter 是过滤器的抽象接口，用于判断一个候选是否应该被过滤掉。
// 返回 true 表示应该过滤（移除），false 表示保留。
type Filter interface {
	// Name 返回过滤器名称
	Name() string

	// ShouldFilter 判断 item 是否应该被过滤
	ShouldFilter(ctx context.Context, req *core.RankRequest, item *core.Item) (bool, error)
}

// Preparer 是可选接口：需要按请求加载数据的过滤器实现它，
// FilterNode 在每次 Process 开始时调用一次 Prepare，用返回的过滤器处理本次请求的全部候选。
type Preparer interface {
	Prepare(ctx context.Context, req *core.RankRequest) (Filter, error)
}
