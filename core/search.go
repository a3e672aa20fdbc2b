package core

import (
	"context"

	"github.com/rushteam/outrank/pkg/conv"
)

// SimilaritySearch 是相似度检索服务的领域接口（例如向量数据库的最近邻检索）。
//
// 约定：
//   - 返回结果可能少于 Limit
//   - 零结果不是错误，返回空切片
//   - 网络/服务错误原样返回，由调用方决定如何处理
//
// 实现：
//   - store.MemoryCatalog（内存快照，用于离线排序与测试）
//   - recall.CachedSearch（为任意实现加一层结果缓存）
type SimilaritySearch interface {
	Search(ctx context.Context, req *SearchRequest) ([]SearchHit, error)
}

// SearchRequest 检索请求
type SearchRequest struct {
	// Query 自然语言查询
	Query string

	// Filter 类别过滤（例如城市），为空表示不过滤
	Filter string

	// Limit 最多返回的条数
	Limit int

	// Threshold 相似度下限，低于该值的结果不返回
	Threshold float64

	// MinReviews 评论数下限：Meta["review_count"] 存在且小于该值的条目不返回，
	// 在截断到 Limit 之前生效。0 表示不限制；没有 review_count 的条目不受影响。
	MinReviews float64
}

// MetaReviewCount 是检索结果 Meta 中评论数量的 key。
const MetaReviewCount = "review_count"

// SearchHit 单条检索结果
type SearchHit struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Signals    map[string]Signal `json:"signals"`
	Location   *GeoPoint         `json:"location,omitempty"`
	Similarity float64           `json:"similarity"`
	Category   string            `json:"category,omitempty"`
	Meta       map[string]any    `json:"meta,omitempty"`
}

// ReviewCount 返回 Meta["review_count"]，没有该字段或类型不可转换时 ok 为 false。
func (h SearchHit) ReviewCount() (count float64, ok bool) {
	return conv.ToFloat64(h.Meta[MetaReviewCount])
}

// Admits 判断条目是否满足评论数下限。
func (r *SearchRequest) Admits(h SearchHit) bool {
	if r.MinReviews <= 0 {
		return true
	}
	n, ok := h.ReviewCount()
	return !ok || n >= r.MinReviews
}
