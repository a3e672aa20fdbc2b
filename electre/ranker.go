package electre

import "sort"

// DefaultEpsilon 内净可信度视为并列，避免求和顺序不同带来的浮点误差拆开并列组。
const DefaultEpsilon = 1e-9

// NetCredibility 返回每个候选的净可信度：出边可信度之和 - 入边可信度之和。
func NetCredibility(m *Matrix) []float64 {
	n := m.N
	out := make([]float64, n)
	in := make([]float64, n)
	for i := 0; i < n; i++ {
		row := m.Data[i*n : (i+1)*n]
		for j, v := range row {
			if i == j {
				continue
			}
			out[i] += v
			in[j] += v
		}
	}
	net := make([]float64, n)
	for i := range net {
		net[i] = out[i] - in[i]
	}
	return net
}

// Rank 是单个候选的排名结果，Index 指向输入中的位置。
type Rank struct {
	Index          int
	ID             string
	NetCredibility float64
	Rank           int
}

// Ranker 按净可信度降序做竞争排名（"1224"）：并列共享更小的名次，下一个名次跳过并列数量。
//
// 并列组以组内最大的净可信度为基准，与基准相差不超过 Epsilon 的候选归入同一组，
// 因此分组与比较顺序无关。组内保留输入顺序；TieBreakByID 为 true 时按 ID 升序，保证跨运行可复现。
type Ranker struct {
	TieBreakByID bool
	Epsilon      float64
}

// Rank 返回按名次升序排列的结果。ids 与 net 一一对应。
func (r *Ranker) Rank(ids []string, net []float64) []Rank {
	eps := r.Epsilon
	if eps <= 0 {
		eps = DefaultEpsilon
	}

	out := make([]Rank, len(net))
	for i, v := range net {
		out[i] = Rank{Index: i, NetCredibility: v}
		if i < len(ids) {
			out[i].ID = ids[i]
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].NetCredibility > out[j].NetCredibility
	})

	for start := 0; start < len(out); {
		leader := out[start].NetCredibility
		end := start + 1
		for end < len(out) && leader-out[end].NetCredibility <= eps {
			end++
		}
		group := out[start:end]
		sort.SliceStable(group, func(i, j int) bool {
			if r.TieBreakByID && group[i].ID != group[j].ID {
				return group[i].ID < group[j].ID
			}
			return group[i].Index < group[j].Index
		})
		for i := range group {
			group[i].Rank = start + 1
		}
		start = end
	}
	return out
}
