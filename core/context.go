package core

import (
	"fmt"
	"math"

	"github.com/rushteam/outrank/pkg/utils"
)

// DistancePreference 表示用户对距离的偏好：以 Reference 为中心，MaxDistanceKm 为半径。
type DistancePreference struct {
	MaxDistanceKm float64  `json:"max_distance_km"`
	Reference     GeoPoint `json:"reference"`
}

// RankRequest 承载一次排序请求的全部输入，贯穿整个 Pipeline 透传。
type RankRequest struct {
	// RequestID 用于日志关联，为空时由 workflow 生成
	RequestID string

	Query  string
	Filter string

	// TopK 最终返回的条数
	TopK int

	// Threshold 初始相似度阈值
	Threshold float64

	// Weights 维度名 -> 非负权重，未归一化
	Weights map[string]float64

	// Distance 为 nil 表示没有距离偏好
	Distance *DistancePreference

	// Labels 是请求级标签，可驱动 Pipeline 行为
	Labels map[string]utils.Label

	// Params 请求级扩展参数
	Params map[string]any
}

// Validate 校验请求；错误均为配置错误，计算前拒绝。
func (r *RankRequest) Validate() error {
	if r == nil {
		return NewConfigError("rank request is nil")
	}
	if r.TopK <= 0 {
		return NewConfigError(fmt.Sprintf("top_k must be positive, got %d", r.TopK))
	}
	if math.IsNaN(r.Threshold) || r.Threshold < 0 || r.Threshold > 1 {
		return NewConfigError(fmt.Sprintf("similarity threshold must be in [0,1], got %v", r.Threshold))
	}
	for k, w := range r.Weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return NewConfigError(fmt.Sprintf("weight %q must be a non-negative number, got %v", k, w))
		}
	}
	if r.Distance != nil {
		if !(r.Distance.MaxDistanceKm > 0) || math.IsInf(r.Distance.MaxDistanceKm, 0) {
			return NewConfigError(fmt.Sprintf("max distance must be positive, got %v", r.Distance.MaxDistanceKm))
		}
	}
	return nil
}

// PutLabel 写入请求级 Label。
func (r *RankRequest) PutLabel(key string, lbl utils.Label) {
	if r.Labels == nil {
		r.Labels = make(map[string]utils.Label)
	}
	if old, ok := r.Labels[key]; ok {
		r.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	r.Labels[key] = lbl
}

// GetLabel 获取请求级 Label。
func (r *RankRequest) GetLabel(key string) (utils.Label, bool) {
	if r.Labels == nil {
		return utils.Label{}, false
	}
	lbl, ok := r.Labels[key]
	return lbl, ok
}
