package rank

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/outrank/core"
	"github.com/rushteam/outrank/pipeline"
	"github.com/rushteam/outrank/scoring"
)

// ScoreNode 把候选的原始信号换算为各维度 [0,100] 的分数，写入 item.Scores。
//
//   - 评论维度：Criteria 中每个维度按正负面计数换算，缺失信号得中性分 50
//   - query_match：检索相似度 × 100
//   - distance：仅当请求带距离偏好时计算，没有坐标的候选得 0 分
//
// 评论维度与距离互不依赖，并发计算后统一写回，写回是单协程的。
type ScoreNode struct {
	// Criteria 评论维度，为空时使用 core.DefaultCriteria()
	Criteria []string
}

func (n *ScoreNode) Name() string        { return "rank.score" }
func (n *ScoreNode) Kind() pipeline.Kind { return pipeline.KindRank }

func (n *ScoreNode) Process(ctx context.Context, req *core.RankRequest, items []*core.Item) ([]*core.Item, error) {
	if len(items) == 0 {
		return items, nil
	}
	criteria := n.Criteria
	if len(criteria) == 0 {
		criteria = core.DefaultCriteria()
	}

	var distance *scoring.DistanceScorer
	if req != nil && req.Distance != nil {
		s, err := scoring.NewDistanceScorer(req.Distance.Reference, req.Distance.MaxDistanceKm)
		if err != nil {
			return nil, err
		}
		distance = s
	}

	var matrix [][]float64
	var proximity, distKm []float64
	eg, _ := errgroup.WithContext(ctx)
	eg.Go(func() error {
		matrix = scoring.CriterionMatrix(items, criteria)
		return nil
	})
	if distance != nil {
		eg.Go(func() error {
			proximity, distKm = distance.ScoreAll(items)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	for i, it := range items {
		if it == nil {
			continue
		}
		if it.Scores == nil {
			it.Scores = make(map[string]float64, len(criteria)+2)
		}
		for j, c := range criteria {
			it.Scores[c] = matrix[i][j]
		}
		it.Scores[core.CriterionQueryMatch] = scoring.QueryMatchScore(it.Similarity)
		if distance != nil {
			it.Scores[core.CriterionDistance] = proximity[i]
			if !math.IsNaN(distKm[i]) {
				if it.Meta == nil {
					it.Meta = make(map[string]any, 1)
				}
				it.Meta[core.MetaDistanceKm] = distKm[i]
			}
		} else {
			delete(it.Scores, core.CriterionDistance)
		}
	}
	return items, nil
}
