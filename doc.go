// Package outrank 是一个基于 ELECTRE III 的多准则排序引擎。
//
// 设计要点：
// - Pipeline-first: 检索 → 过滤 → 打分 → ELECTRE 排序 → 截断，均为可插拔的 Node
// - 检索自适应：候选不足时逐步放宽相似度阈值
// - 排序可解释：每个候选带各维度分数、净可信度与名次（并列同名次）
package outrank

import (
	"github.com/rushteam/outrank/core"
	"github.com/rushteam/outrank/pipeline"
	"github.com/rushteam/outrank/workflow"
)

// 轻量 facade：便于直接 import "outrank" 使用核心抽象。
type (
	Pipeline         = pipeline.Pipeline
	Node             = pipeline.Node
	Kind             = pipeline.Kind
	Orchestrator     = workflow.Orchestrator
	Option           = workflow.Option
	RankRequest      = core.RankRequest
	RankingResult    = core.RankingResult
	SimilaritySearch = core.SimilaritySearch
)

const (
	KindRecall      = pipeline.KindRecall
	KindFilter      = pipeline.KindFilter
	KindRank        = pipeline.KindRank
	KindReRank      = pipeline.KindReRank
	KindPostProcess = pipeline.KindPostProcess
)

// New 创建排序入口，见 workflow.New。
func New(search SimilaritySearch, opts ...Option) (*Orchestrator, error) {
	return workflow.New(search, opts...)
}
