// Package electre 实现 ELECTRE III 排序：
// 一致性（concordance）、不一致性（discordance）、可信度（credibility）矩阵，以及按净可信度的竞争排名。
package electre

import (
	"fmt"
	"math"

	"github.com/rushteam/outrank/core"
)

// Threshold 是单个维度的三个阈值：无差异 Q、偏好 P、否决 V，要求 0 ≤ Q ≤ P ≤ V。
type Threshold struct {
	Q float64 `json:"q" yaml:"q" koanf:"q"`
	P float64 `json:"p" yaml:"p" koanf:"p"`
	V float64 `json:"v" yaml:"v" koanf:"v"`
}

// DefaultThreshold 返回 [0,100] 量纲下的默认阈值。
func DefaultThreshold() Threshold {
	return Threshold{Q: core.DefaultIndifference, P: core.DefaultPreference, V: core.DefaultVeto}
}

// Validate 检查阈值非负、有限且满足 Q ≤ P ≤ V。
func (t Threshold) Validate() error {
	for _, v := range [...]float64{t.Q, t.P, t.V} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return core.NewConfigError(fmt.Sprintf("electre: thresholds must be finite and non-negative, got q=%v p=%v v=%v", t.Q, t.P, t.V))
		}
	}
	if t.Q > t.P || t.P > t.V {
		return core.NewConfigError(fmt.Sprintf("electre: thresholds must satisfy q <= p <= v, got q=%v p=%v v=%v", t.Q, t.P, t.V))
	}
	return nil
}

// ThresholdSet 是维度名到阈值的映射，构造时校验。
type ThresholdSet map[string]Threshold

// NewThresholdSet 校验并复制阈值表；任一维度不合法即返回配置错误。
func NewThresholdSet(m map[string]Threshold) (ThresholdSet, error) {
	out := make(ThresholdSet, len(m))
	for k, t := range m {
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("criterion %q: %w", k, err)
		}
		out[k] = t
	}
	return out, nil
}

// UniformThresholdSet 为每个维度使用同一组阈值。
func UniformThresholdSet(criteria []string, t Threshold) (ThresholdSet, error) {
	m := make(map[string]Threshold, len(criteria))
	for _, c := range criteria {
		m[c] = t
	}
	return NewThresholdSet(m)
}

// Criteria 返回阈值表中的维度名。
func (ts ThresholdSet) Criteria() []string {
	out := make([]string, 0, len(ts))
	for k := range ts {
		out = append(out, k)
	}
	return out
}

// Lookup 按 criteria 顺序取出阈值切片，缺失维度返回配置错误。
func (ts ThresholdSet) Lookup(criteria []string) ([]Threshold, error) {
	out := make([]Threshold, len(criteria))
	for i, c := range criteria {
		t, ok := ts[c]
		if !ok {
			return nil, core.NewConfigError(fmt.Sprintf("electre: no thresholds for criterion %q", c))
		}
		out[i] = t
	}
	return out, nil
}
