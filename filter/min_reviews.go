package filter

import (
	"context"

	"github.com/rushteam/outrank/core"
	"github.com/rushteam/outrank/pkg/conv"
)

// MetaReviewCount 是候选 Meta 中评论数量的 key。
const MetaReviewCount = core.MetaReviewCount

// MinReviewsFilter 过滤评论数不足的候选：评论太少时正负面比例没有统计意义。
//
// 只看 Meta["review_count"]；没有该字段的候选保留。
// 默认链路中评论数下限在检索时生效（core.SearchRequest.MinReviews），
// 本过滤器用于检索服务不支持该条件时在 Pipeline 中显式配置。
type MinReviewsFilter struct {
	Min float64
}

func NewMinReviewsFilter(minReviews float64) *MinReviewsFilter {
	return &MinReviewsFilter{Min: minReviews}
}

func (f *MinReviewsFilter) Name() string { return "filter.min_reviews" }

func (f *MinReviewsFilter) ShouldFilter(_ context.Context, _ *core.RankRequest, item *core.Item) (bool, error) {
	if item == nil {
		return true, nil
	}
	n, ok := ReviewCount(item)
	return ok && n < f.Min, nil
}

// ReviewCount 返回候选的评论数量，没有 review_count 时 ok 为 false。
func ReviewCount(item *core.Item) (count float64, ok bool) {
	return conv.ToFloat64(item.Meta[MetaReviewCount])
}
