package scoring

import (
	"fmt"
	"math"

	"github.com/rushteam/outrank/core"
)

// EarthRadiusKm 是 haversine 公式使用的地球半径。
const EarthRadiusKm = 6371.0

// Haversine 返回两点之间的大圆距离（公里）。
func Haversine(a, b core.GeoPoint) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKm * c
}

// DistanceScorer 把候选到参考点的距离换算为 [0,100] 的接近度分数：
// 100 表示同一位置，0 表示在半径上或半径之外。
type DistanceScorer struct {
	Reference core.GeoPoint
	RadiusKm  float64
}

// NewDistanceScorer 创建距离打分器；半径必须为正，否则返回配置错误。
func NewDistanceScorer(ref core.GeoPoint, radiusKm float64) (*DistanceScorer, error) {
	if !(radiusKm > 0) || math.IsInf(radiusKm, 0) {
		return nil, core.NewConfigError(fmt.Sprintf("scoring: distance radius must be positive, got %v", radiusKm))
	}
	return &DistanceScorer{Reference: ref, RadiusKm: radiusKm}, nil
}

// ScoreDistance 按已知距离打分，距离在半径处截断。
func (s *DistanceScorer) ScoreDistance(distanceKm float64) float64 {
	if distanceKm < 0 {
		distanceKm = 0
	}
	clipped := math.Min(distanceKm, s.RadiusKm)
	return MaxScore * (1 - clipped/s.RadiusKm)
}

// Score 计算某个坐标的接近度分数。
func (s *DistanceScorer) Score(p core.GeoPoint) float64 {
	return s.ScoreDistance(Haversine(s.Reference, p))
}

// ScoreAll 计算每个候选的接近度分数与距离，不修改候选。
// 没有坐标的候选视为在半径之外：得 0 分，距离为 NaN。
func (s *DistanceScorer) ScoreAll(items []*core.Item) (scores, distances []float64) {
	scores = make([]float64, len(items))
	distances = make([]float64, len(items))
	for i, it := range items {
		if it == nil || it.Location == nil {
			scores[i] = MinScore
			distances[i] = math.NaN()
			continue
		}
		distances[i] = Haversine(s.Reference, *it.Location)
		scores[i] = s.ScoreDistance(distances[i])
	}
	return scores, distances
}

// ScoreItems 把接近度写入 item.Scores[core.CriterionDistance]。
func (s *DistanceScorer) ScoreItems(items []*core.Item) {
	scores, _ := s.ScoreAll(items)
	for i, it := range items {
		if it == nil {
			continue
		}
		if it.Scores == nil {
			it.Scores = make(map[string]float64, 1)
		}
		it.Scores[core.CriterionDistance] = scores[i]
	}
}
