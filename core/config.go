package core

// 评价维度名称。
// 前四个来自评论信号；query_match 来自检索相似度；distance 仅在有距离偏好时参与排序。
const (
	CriterionFood       = "food"
	CriterionAmbience   = "ambience"
	CriterionPrice      = "price"
	CriterionService    = "service"
	CriterionQueryMatch = "query_match"
	CriterionDistance   = "distance"
)

// DefaultCriteria 返回默认的评论信号维度。
func DefaultCriteria() []string {
	return []string{CriterionFood, CriterionAmbience, CriterionPrice, CriterionService}
}

// 默认参数
const (
	DefaultTopK                = 5
	DefaultSimilarityThreshold = 0.5
	DefaultRelaxStep           = 0.05
	DefaultMaxRelaxations      = 1
	DefaultCandidateMultiplier = 100

	// 未显式给出权重时补齐的默认值
	DefaultQueryMatchWeight = 0.5
	DefaultDistanceWeight   = 0.25

	// 默认阈值，分数量纲为 [0,100]
	DefaultIndifference = 7.5
	DefaultPreference   = 20
	DefaultVeto         = 40
)
