package scoring

import (
	"math"
	"sort"
)

// WeightTolerance 是权重和等于 1 的容差。
const WeightTolerance = 1e-9

// Weights 是维度名到非负权重的映射。
type Weights map[string]float64

// Sum 返回全部权重之和。
func (w Weights) Sum() float64 {
	var sum float64
	for _, v := range w {
		sum += v
	}
	return sum
}

// Keys 返回按字典序排列的维度名，保证下游矩阵列顺序稳定。
func (w Weights) Keys() []string {
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NormalizeWeights 返回一个新的权重表，权重之和为 1，不修改输入。
// 负数、NaN、Inf 视为 0；全部为 0 时每个维度得到 1/count。
// 非维度 key 需要由调用方在此之前过滤掉（见 FilterWeights）。
func NormalizeWeights(w Weights) Weights {
	out := make(Weights, len(w))
	if len(w) == 0 {
		return out
	}

	var peak float64
	for k, v := range w {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			v = 0
		}
		out[k] = v
		peak = math.Max(peak, v)
	}

	if peak == 0 {
		equal := 1 / float64(len(out))
		for k := range out {
			out[k] = equal
		}
		return out
	}

	// 先除以最大值再求和，避免极大权重相加溢出为 Inf
	var total float64
	for k, v := range out {
		out[k] = v / peak
		total += out[k]
	}
	for k, v := range out {
		out[k] = v / total
	}
	return out
}

// FilterWeights 只保留 allowed 中存在的 key，返回新表。
func FilterWeights(w Weights, allowed []string) Weights {
	set := make(map[string]struct{}, len(allowed))
	for _, k := range allowed {
		set[k] = struct{}{}
	}
	out := make(Weights, len(w))
	for k, v := range w {
		if _, ok := set[k]; ok {
			out[k] = v
		}
	}
	return out
}
