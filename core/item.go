package core

import "github.com/rushteam/outrank/pkg/utils"

// Signal 是单个评价维度上的正/负面信号计数（例如评论中对 food 的正面/负面提及次数）。
type Signal struct {
	Positive float64 `json:"positive"`
	Negative float64 `json:"negative"`
}

// GeoPoint 是经纬度坐标（单位：度）。
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Item 是排序链路中的候选对象（Candidate）：原始信号、派生分数、元信息、标签。
// 每次排序请求从检索结果新建，只在一次请求内存活，不做持久化。
//
//   - Signals：每个评价维度的原始正/负面计数
//   - Similarity：检索服务返回的查询相似度，[0,1]
//   - Scores：派生分数，每个维度归一化到 [0,100]
//   - Labels：用于解释与观测
type Item struct {
	ID         string
	Name       string
	Signals    map[string]Signal
	Location   *GeoPoint
	Similarity float64
	Scores     map[string]float64
	Meta       map[string]any
	Labels     map[string]utils.Label
}

func NewItem(id string) *Item {
	return &Item{
		ID:      id,
		Signals: make(map[string]Signal),
		Scores:  make(map[string]float64),
		Meta:    make(map[string]any),
		Labels:  make(map[string]utils.Label),
	}
}

// NewItemFromHit 把检索命中结果转换为候选对象。
func NewItemFromHit(hit SearchHit) *Item {
	it := NewItem(hit.ID)
	it.Name = hit.Name
	it.Similarity = hit.Similarity
	for k, s := range hit.Signals {
		it.Signals[k] = s
	}
	if hit.Location != nil {
		loc := *hit.Location
		it.Location = &loc
	}
	for k, v := range hit.Meta {
		it.Meta[k] = v
	}
	if hit.Category != "" {
		it.Meta["category"] = hit.Category
	}
	return it
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (it *Item) PutLabel(key string, lbl utils.Label) {
	if it.Labels == nil {
		it.Labels = make(map[string]utils.Label)
	}
	if old, ok := it.Labels[key]; ok {
		it.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	it.Labels[key] = lbl
}

// Score 返回某个维度的派生分数，不存在时返回 (0, false)。
func (it *Item) Score(criterion string) (float64, bool) {
	if it.Scores == nil {
		return 0, false
	}
	v, ok := it.Scores[criterion]
	return v, ok
}

// RankingResult 是单个候选的最终排序输出。
// Rank 采用竞争排名（"1224"）：分数相同的候选共享更小的名次，后续名次跳过并列数量。
type RankingResult struct {
	CandidateID    string             `json:"candidate_id"`
	Name           string             `json:"name"`
	Scores         map[string]float64 `json:"scores"`
	NetCredibility float64            `json:"net_credibility"`
	Rank           int                `json:"rank"`
}

// Meta 中由排序阶段写入的 key。
const (
	MetaNetCredibility = "net_credibility"
	MetaRank           = "rank"
	MetaDistanceKm     = "distance_km"
)

// Result 把已排序的候选转换为 RankingResult；未排序的候选 Rank 为 0。
func (it *Item) Result() RankingResult {
	res := RankingResult{
		CandidateID: it.ID,
		Name:        it.Name,
		Scores:      make(map[string]float64, len(it.Scores)),
	}
	for k, v := range it.Scores {
		res.Scores[k] = v
	}
	if v, ok := it.Meta[MetaNetCredibility].(float64); ok {
		res.NetCredibility = v
	}
	if v, ok := it.Meta[MetaRank].(int); ok {
		res.Rank = v
	}
	return res
}
