// Package scoring 把候选的原始信号转换为可比较的 [0,100] 分数，并归一化用户权重。
package scoring

import (
	"fmt"

	"github.com/rushteam/outrank/core"
)

// 分数量纲
const (
	MinScore     = 0.0
	NeutralScore = 50.0
	MaxScore     = 100.0
)

// CriterionScore 把单个维度的正/负面计数转换为 [-1,1] 的原始分。
//
//   - positive > negative：1 - negative/positive，negative 趋于 0 时趋于 +1
//   - negative > positive：positive/negative - 1，positive 趋于 0 时趋于 -1
//   - 相等（包括都为 0）：0
//
// 只有分母严格为正的分支才做除法。负数计数按 0 处理。
func CriterionScore(positive, negative float64) float64 {
	if positive < 0 {
		positive = 0
	}
	if negative < 0 {
		negative = 0
	}
	switch {
	case positive > negative:
		return 1 - negative/positive
	case negative > positive:
		return positive/negative - 1
	default:
		return 0
	}
}

// Normalize 把 [-1,1] 线性映射到 [0,100]。
func Normalize(raw float64) float64 {
	return (raw + 1) * 50
}

// CriterionScores 是 CriterionScore 的批量形式：positive[i] 与 negative[i] 属于同一个候选。
// 返回原始分与归一化分两个切片。
func CriterionScores(positive, negative []float64) (raw, normalized []float64, err error) {
	if len(positive) != len(negative) {
		return nil, nil, core.NewDomainError(core.ModuleScoring, core.ErrorCodeInvalidInput,
			fmt.Sprintf("scoring: positive/negative length mismatch: %d != %d", len(positive), len(negative)))
	}
	raw = make([]float64, len(positive))
	normalized = make([]float64, len(positive))
	for i := range positive {
		raw[i] = CriterionScore(positive[i], negative[i])
		normalized[i] = Normalize(raw[i])
	}
	return raw, normalized, nil
}

// CriterionMatrix 计算每个候选在 criteria 各维度上的归一化分数，不修改候选。
// 结果按 [候选][维度] 排列；缺失信号的维度按 (0,0) 处理，得到中性分 50。
func CriterionMatrix(items []*core.Item, criteria []string) [][]float64 {
	out := make([][]float64, len(items))
	for i, it := range items {
		row := make([]float64, len(criteria))
		for j, c := range criteria {
			var s core.Signal
			if it != nil {
				s = it.Signals[c]
			}
			row[j] = Normalize(CriterionScore(s.Positive, s.Negative))
		}
		out[i] = row
	}
	return out
}

// ScoreItems 把 CriterionMatrix 的结果写入 item.Scores。
func ScoreItems(items []*core.Item, criteria []string) {
	m := CriterionMatrix(items, criteria)
	for i, it := range items {
		if it == nil {
			continue
		}
		if it.Scores == nil {
			it.Scores = make(map[string]float64, len(criteria))
		}
		for j, c := range criteria {
			it.Scores[c] = m[i][j]
		}
	}
}

// QueryMatchScore 把 [0,1] 的检索相似度换算为 [0,100]，超出范围时截断。
func QueryMatchScore(similarity float64) float64 {
	s := similarity * 100
	if s < MinScore {
		return MinScore
	}
	if s > MaxScore {
		return MaxScore
	}
	return s
}
