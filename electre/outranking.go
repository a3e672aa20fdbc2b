package electre

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/outrank/core"
)

// minRowsPerWorker 以下不再拆分行块，goroutine 开销会超过计算量。
const minRowsPerWorker = 16

// Matrix 是 n×n 的可信度矩阵，按行优先存放在一维切片中。
// Data[i*N+j] 是 "i 优于 j" 的可信度，对角线不使用（为 0）。
type Matrix struct {
	N    int
	Data []float64
}

// NewMatrix 创建 n×n 的零矩阵。
func NewMatrix(n int) *Matrix {
	return &Matrix{N: n, Data: make([]float64, n*n)}
}

// At 返回 cr(i, j)。
func (m *Matrix) At(i, j int) float64 {
	return m.Data[i*m.N+j]
}

// Input 是 Outrank 的输入，所有切片都是扁平的原始数组。
type Input struct {
	// Scores 是 N×M 的分数矩阵，行优先：Scores[i*M+k] 是候选 i 在维度 k 上的分数
	Scores []float64
	N      int
	M      int

	// Weights 长度为 M，非负，和必须为正
	Weights []float64

	// Thresholds 长度为 M，每项满足 Q ≤ P ≤ V
	Thresholds []Threshold
}

func (in *Input) validate() error {
	if in.N < 0 || in.M <= 0 {
		return core.NewDomainError(core.ModuleElectre, core.ErrorCodeInvalidInput,
			fmt.Sprintf("electre: invalid shape n=%d m=%d", in.N, in.M))
	}
	if len(in.Scores) != in.N*in.M {
		return core.NewDomainError(core.ModuleElectre, core.ErrorCodeInvalidInput,
			fmt.Sprintf("electre: scores length %d does not match n*m=%d", len(in.Scores), in.N*in.M))
	}
	if len(in.Weights) != in.M || len(in.Thresholds) != in.M {
		return core.NewDomainError(core.ModuleElectre, core.ErrorCodeInvalidInput,
			fmt.Sprintf("electre: expected %d weights and thresholds, got %d and %d", in.M, len(in.Weights), len(in.Thresholds)))
	}
	var sum float64
	for _, w := range in.Weights {
		if w < 0 {
			return core.NewDomainError(core.ModuleElectre, core.ErrorCodeInvalidInput, "electre: negative weight")
		}
		sum += w
	}
	if !(sum > 0) {
		return core.NewDomainError(core.ModuleElectre, core.ErrorCodeInvalidInput, "electre: weights sum to zero")
	}
	for _, t := range in.Thresholds {
		if err := t.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Engine 计算候选两两之间的可信度矩阵，复杂度 O(n²·m)。
// 行之间相互独立，按行块分给 Workers 个 goroutine，每个 goroutine 只写自己的行，无需加锁。
type Engine struct {
	// Workers 并发数，<= 0 时使用 GOMAXPROCS
	Workers int
}

// Outrank 计算可信度矩阵。ctx 在开始前和每个行块之前检查，行块内部不响应取消。
func (e *Engine) Outrank(ctx context.Context, in Input) (*Matrix, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	k := newKernel(in)
	out := NewMatrix(in.N)

	workers := e.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if limit := in.N / minRowsPerWorker; workers > limit {
		workers = limit
	}
	if workers <= 1 {
		for lo := 0; lo < in.N; lo += minRowsPerWorker {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			k.rows(out.Data, lo, min(lo+minRowsPerWorker, in.N))
		}
		return out, nil
	}

	chunk := (in.N + workers - 1) / workers
	var eg errgroup.Group
	for lo := 0; lo < in.N; lo += chunk {
		lo, hi := lo, min(lo+chunk, in.N)
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			k.rows(out.Data, lo, hi)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// kernel 持有拆分后的阈值数组，热循环内不做任何动态分派。
type kernel struct {
	scores  []float64
	n, m    int
	weights []float64
	sumW    float64
	q, p, v []float64
}

func newKernel(in Input) *kernel {
	k := &kernel{
		scores:  in.Scores,
		n:       in.N,
		m:       in.M,
		weights: in.Weights,
		q:       make([]float64, in.M),
		p:       make([]float64, in.M),
		v:       make([]float64, in.M),
	}
	for j, t := range in.Thresholds {
		k.q[j], k.p[j], k.v[j] = t.Q, t.P, t.V
		k.sumW += in.Weights[j]
	}
	return k
}

// rows 计算 [lo, hi) 行，写入 out 的对应行。
func (k *kernel) rows(out []float64, lo, hi int) {
	m := k.m
	for i := lo; i < hi; i++ {
		a := k.scores[i*m : (i+1)*m]
		row := out[i*k.n : (i+1)*k.n]
		for j := 0; j < k.n; j++ {
			if i == j {
				continue
			}
			b := k.scores[j*m : (j+1)*m]

			var c float64
			for x := 0; x < m; x++ {
				diff := b[x] - a[x]
				switch {
				case diff <= k.q[x]:
					c += k.weights[x]
				case diff > k.p[x]:
				default:
					c += k.weights[x] * (k.p[x] - diff) / (k.p[x] - k.q[x])
				}
			}
			c /= k.sumW

			cr := c
			for x := 0; x < m; x++ {
				diff := b[x] - a[x]
				var d float64
				switch {
				case diff <= k.p[x]:
					continue
				case diff > k.v[x]:
					d = 1
				default:
					d = (diff - k.p[x]) / (k.v[x] - k.p[x])
				}
				if d > c {
					cr *= (1 - d) / (1 - c)
				}
			}
			if cr < 0 {
				cr = 0
			}
			row[j] = cr
		}
	}
}

// Concordance 计算单对 (a, b) 的一致性：a 至少和 b 一样好的加权证据比例。
func Concordance(a, b, weights []float64, ts []Threshold) float64 {
	var c, sumW float64
	for j := range a {
		diff := b[j] - a[j]
		var cj float64
		switch {
		case diff <= ts[j].Q:
			cj = 1
		case diff > ts[j].P:
			cj = 0
		default:
			cj = (ts[j].P - diff) / (ts[j].P - ts[j].Q)
		}
		c += weights[j] * cj
		sumW += weights[j]
	}
	if sumW == 0 {
		return 0
	}
	return c / sumW
}

// Discordance 计算单对 (a, b) 的逐维度不一致性，写入 out（长度与 a 相同）并返回。
func Discordance(a, b []float64, ts []Threshold, out []float64) []float64 {
	for j := range a {
		diff := b[j] - a[j]
		switch {
		case diff <= ts[j].P:
			out[j] = 0
		case diff > ts[j].V:
			out[j] = 1
		default:
			out[j] = (diff - ts[j].P) / (ts[j].V - ts[j].P)
		}
	}
	return out
}

// Credibility 用不一致性削减一致性：每个 d_j > c 的维度把可信度乘以 (1-d_j)/(1-c)，结果不小于 0。
func Credibility(c float64, d []float64) float64 {
	cr := c
	for _, dj := range d {
		if dj > c {
			cr *= (1 - dj) / (1 - c)
		}
	}
	if cr < 0 {
		return 0
	}
	return cr
}
