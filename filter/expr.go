package filter

import (
	"context"

	"github.com/rushteam/outrank/core"
	"github.com/rushteam/outrank/pkg/dsl"
)

// ExprFilter 用 CEL 表达式过滤候选：表达式为 true 的候选保留。
//
// 示例：`item.meta.review_count >= 10 && item.similarity > 0.6`
type ExprFilter struct {
	prg *dsl.Program
}

// NewExprFilter 编译表达式；语法错误属于配置错误。
func NewExprFilter(expr string) (*ExprFilter, error) {
	prg, err := dsl.Compile(expr)
	if err != nil {
		return nil, core.NewConfigError("filter.expr: " + err.Error())
	}
	return &ExprFilter{prg: prg}, nil
}

func (f *ExprFilter) Name() string { return "filter.expr" }

// Expr 返回原始表达式。
func (f *ExprFilter) Expr() string { return f.prg.Expr() }

func (f *ExprFilter) ShouldFilter(_ context.Context, req *core.RankRequest, item *core.Item) (bool, error) {
	keep, err := f.prg.Eval(item, req)
	if err != nil {
		return false, err
	}
	return !keep, nil
}
