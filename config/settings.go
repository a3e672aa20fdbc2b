// Package config 负责排序引擎的配置：引擎参数（Settings）与配置驱动的 Node 注册表。
//
// Settings 从可选的 YAML 文件加载，再用 OUTRANK_* 环境变量覆盖，最后补齐默认值。
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/rushteam/outrank/core"
	"github.com/rushteam/outrank/electre"
)

// EnvPrefix 是环境变量前缀，key 中的 "." 换成 "_" 并转大写，例如 cache.ttl -> OUTRANK_CACHE_TTL。
const EnvPrefix = "OUTRANK_"

// DefaultCacheTTL 检索缓存默认过期时间。
const DefaultCacheTTL = 300 * time.Second

// DefaultMinReviews 评论数下限：检索时排除 review_count 为 0 或 1 的条目。
const DefaultMinReviews = 2

// Settings 是排序引擎的参数。
type Settings struct {
	// Criteria 评论信号维度
	Criteria []string `koanf:"criteria"`
	// Thresholds 每个维度的 q/p/v，未列出的维度使用默认阈值
	Thresholds map[string]electre.Threshold `koanf:"thresholds"`
	// Weights 请求未给权重时使用的默认权重
	Weights map[string]float64 `koanf:"weights"`

	TopK                int     `koanf:"top_k"`
	SimilarityThreshold float64 `koanf:"similarity_threshold"`
	RelaxStep           float64 `koanf:"relax_step"`
	MaxRelaxations      int     `koanf:"max_relaxations"`
	CandidateMultiplier int     `koanf:"candidate_multiplier"`

	QueryMatchWeight float64 `koanf:"query_match_weight"`
	DistanceWeight   float64 `koanf:"distance_weight"`
	// MinReviews 随检索请求下发，只对带 review_count 的条目生效
	MinReviews float64 `koanf:"min_reviews"`

	// Workers 两两比较的并发数，0 表示 GOMAXPROCS
	Workers      int  `koanf:"workers"`
	TieBreakByID bool `koanf:"tie_break_by_id"`

	Cache    CacheSettings `koanf:"cache"`
	LogLevel string        `koanf:"log_level"`
}

// CacheSettings 检索结果缓存。RedisAddr 为空时使用内存缓存；TTL 为 0 时不缓存。
type CacheSettings struct {
	TTL       time.Duration `koanf:"ttl"`
	RedisAddr string        `koanf:"redis_addr"`
	RedisDB   int           `koanf:"redis_db"`
}

// Default 返回默认参数。
func Default() *Settings {
	criteria := core.DefaultCriteria()
	thresholds := make(map[string]electre.Threshold, len(criteria)+2)
	weights := make(map[string]float64, len(criteria))
	for _, c := range criteria {
		thresholds[c] = electre.DefaultThreshold()
		weights[c] = 1
	}
	thresholds[core.CriterionQueryMatch] = electre.DefaultThreshold()
	thresholds[core.CriterionDistance] = electre.DefaultThreshold()

	return &Settings{
		Criteria:            criteria,
		Thresholds:          thresholds,
		Weights:             weights,
		TopK:                core.DefaultTopK,
		SimilarityThreshold: core.DefaultSimilarityThreshold,
		RelaxStep:           core.DefaultRelaxStep,
		MaxRelaxations:      core.DefaultMaxRelaxations,
		CandidateMultiplier: core.DefaultCandidateMultiplier,
		QueryMatchWeight:    core.DefaultQueryMatchWeight,
		DistanceWeight:      core.DefaultDistanceWeight,
		MinReviews:          DefaultMinReviews,
		Cache:               CacheSettings{TTL: DefaultCacheTTL},
		LogLevel:            "info",
	}
}

// envKeys 是可被环境变量覆盖的标量 key。
var envKeys = []string{
	"top_k",
	"similarity_threshold",
	"relax_step",
	"max_relaxations",
	"candidate_multiplier",
	"query_match_weight",
	"distance_weight",
	"min_reviews",
	"workers",
	"tie_break_by_id",
	"cache.ttl",
	"cache.redis_addr",
	"cache.redis_db",
	"log_level",
}

// EnvName 返回 key 对应的环境变量名。
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Load 加载配置：path 为空时只读环境变量。返回的 Settings 已通过 Validate。
func Load(path string) (*Settings, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}
	for _, key := range envKeys {
		if v, ok := os.LookupEnv(EnvName(key)); ok {
			if err := k.Set(key, v); err != nil {
				return nil, fmt.Errorf("set %s from environment: %w", key, err)
			}
		}
	}

	s := Default()
	if err := k.Unmarshal("", s); err != nil {
		return nil, core.NewConfigError(fmt.Sprintf("decode settings: %v", err))
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate 校验参数，所有问题一起返回；每一项都是配置错误。
func (s *Settings) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, core.NewConfigError(fmt.Sprintf(format, args...)))
	}

	if len(s.Criteria) == 0 {
		add("criteria must not be empty")
	}
	if s.TopK <= 0 {
		add("top_k must be positive, got %d", s.TopK)
	}
	if math.IsNaN(s.SimilarityThreshold) || s.SimilarityThreshold < 0 || s.SimilarityThreshold > 1 {
		add("similarity_threshold must be in [0,1], got %v", s.SimilarityThreshold)
	}
	if !(s.RelaxStep > 0) || s.RelaxStep > 1 {
		add("relax_step must be in (0,1], got %v", s.RelaxStep)
	}
	if s.MaxRelaxations < 0 {
		add("max_relaxations must not be negative, got %d", s.MaxRelaxations)
	}
	if s.CandidateMultiplier <= 0 {
		add("candidate_multiplier must be positive, got %d", s.CandidateMultiplier)
	}
	if s.QueryMatchWeight < 0 || s.DistanceWeight < 0 {
		add("default weights must not be negative")
	}
	for k, w := range s.Weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			add("weight %q must be a non-negative number, got %v", k, w)
		}
	}
	if s.MinReviews < 0 {
		add("min_reviews must not be negative, got %v", s.MinReviews)
	}
	if s.Workers < 0 {
		add("workers must not be negative, got %d", s.Workers)
	}
	if s.Cache.TTL < 0 {
		add("cache.ttl must not be negative, got %s", s.Cache.TTL)
	}
	if _, err := s.ThresholdSet(); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseLevel(s.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ThresholdSet 返回所有参与排序维度（Criteria、query_match、distance）的阈值表。
func (s *Settings) ThresholdSet() (electre.ThresholdSet, error) {
	m := make(map[string]electre.Threshold, len(s.Criteria)+2)
	for _, c := range append(append([]string(nil), s.Criteria...), core.CriterionQueryMatch, core.CriterionDistance) {
		if t, ok := s.Thresholds[c]; ok {
			m[c] = t
			continue
		}
		m[c] = electre.DefaultThreshold()
	}
	return electre.NewThresholdSet(m)
}

// ParseLevel 解析日志级别：debug / info / warn / error，空字符串为 info。
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if level == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return l, core.NewConfigError(fmt.Sprintf("invalid log_level %q", level))
	}
	return l, nil
}
