package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/outrank/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

// initCELEnv 初始化 CEL 环境，定义变量
func initCELEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("item", cel.DynType),
		cel.Variable("label", cel.DynType),
		cel.Variable("req", cel.DynType),
	)
}

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = initCELEnv()
	})
	return celEnv, celEnvErr
}

// Program 是编译好的候选过滤表达式，使用 CEL (Common Expression Language) 语法。
// 编译一次，可在多个 goroutine 中并发执行。
//
// 可用变量：
//   - item.id / item.name / item.similarity
//   - item.scores.food（派生分数，[0,100]）
//   - item.signals.food.positive / item.signals.food.negative
//   - item.meta.review_count / item.meta.category
//   - item.distance_km（有坐标时才存在）
//   - label.recall_threshold（Label 的 value）
//   - req.query / req.filter / req.top_k / req.params
//
// 示例：
//   - `item.meta.review_count >= 10`
//   - `item.similarity > 0.6 && item.scores.food >= 50`
//   - `"price" in item.scores && item.scores.price > 40`
//
// 访问不存在的 key 会报错，先用 `"key" in map` 或 has(item.meta.key) 判断。
type Program struct {
	expr string
	prg  cel.Program
}

// Compile 编译表达式，结果类型必须是 bool。
func Compile(expr string) (*Program, error) {
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program error: %w", err)
	}
	return &Program{expr: expr, prg: prg}, nil
}

// Expr 返回原始表达式。
func (p *Program) Expr() string { return p.expr }

// Eval 对单个候选求值。
func (p *Program) Eval(item *core.Item, req *core.RankRequest) (bool, error) {
	out, _, err := p.prg.Eval(buildInput(item, req))
	if err != nil {
		return false, fmt.Errorf("eval error: %w", err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression must return boolean, got %T", out.Value())
	}
	return result, nil
}

// Eval 是一次性的解释器：编译并执行，适合只用一次的表达式。
type Eval struct {
	item *core.Item
	req  *core.RankRequest
}

func NewEval(item *core.Item, req *core.RankRequest) *Eval {
	return &Eval{item: item, req: req}
}

// Evaluate 解析并执行表达式，空表达式恒为 true。
func (e *Eval) Evaluate(expr string) (bool, error) {
	if expr == "" {
		return true, nil
	}
	p, err := Compile(expr)
	if err != nil {
		return false, err
	}
	return p.Eval(e.item, e.req)
}

// buildInput 构建 CEL 表达式的输入数据
func buildInput(it *core.Item, req *core.RankRequest) map[string]any {
	item := map[string]any{}
	label := map[string]any{}
	if it != nil {
		scores := make(map[string]any, len(it.Scores))
		for k, v := range it.Scores {
			scores[k] = v
		}
		signals := make(map[string]any, len(it.Signals))
		for k, s := range it.Signals {
			signals[k] = map[string]any{"positive": s.Positive, "negative": s.Negative}
		}
		meta := make(map[string]any, len(it.Meta))
		for k, v := range it.Meta {
			meta[k] = v
		}
		for k, v := range it.Labels {
			label[k] = v.Value
		}
		item = map[string]any{
			"id":         it.ID,
			"name":       it.Name,
			"similarity": it.Similarity,
			"scores":     scores,
			"signals":    signals,
			"meta":       meta,
		}
		if d, ok := it.Meta["distance_km"]; ok {
			item["distance_km"] = d
		}
	}

	r := map[string]any{}
	if req != nil {
		params := make(map[string]any, len(req.Params))
		for k, v := range req.Params {
			params[k] = v
		}
		r = map[string]any{
			"query":  req.Query,
			"filter": req.Filter,
			"top_k":  req.TopK,
			"params": params,
		}
	}

	return map[string]any{
		"item":  item,
		"label": label,
		"req":   r,
	}
}
