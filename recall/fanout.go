package recall

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/outrank/core"
)

// Fanout 是一个 SimilaritySearch：并发查询多个检索后端（分片/多个索引），并合并结果。
// 支持超时、限流；相同 ID 保留相似度更高的一条。
//
// 与单个后端一样，任一后端出错即整体失败，不会把错误当成零结果。
type Fanout struct {
	Searches      []core.SimilaritySearch
	Timeout       time.Duration // 每个后端的超时时间
	MaxConcurrent int           // 最大并发数（0 表示无限制）
}

func NewFanout(searches ...core.SimilaritySearch) *Fanout {
	return &Fanout{Searches: searches}
}

func (f *Fanout) Search(ctx context.Context, req *core.SearchRequest) ([]core.SearchHit, error) {
	switch len(f.Searches) {
	case 0:
		return nil, nil
	case 1:
		return f.searchOne(ctx, f.Searches[0], req)
	}

	var (
		mu      sync.Mutex
		all     []core.SearchHit
		eg, egc = errgroup.WithContext(ctx)
	)
	if f.MaxConcurrent > 0 {
		eg.SetLimit(f.MaxConcurrent)
	}

	for i, s := range f.Searches {
		i, s := i, s
		eg.Go(func() error {
			hits, err := f.searchOne(egc, s, req)
			if err != nil {
				return fmt.Errorf("search backend %d: %w", i, err)
			}
			mu.Lock()
			all = append(all, hits...)
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	out := mergeBest(all)
	if req != nil && req.Limit > 0 && len(out) > req.Limit {
		out = out[:req.Limit]
	}
	return out, nil
}

func (f *Fanout) searchOne(ctx context.Context, s core.SimilaritySearch, req *core.SearchRequest) ([]core.SearchHit, error) {
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}
	return s.Search(ctx, req)
}

// mergeBest 按 ID 去重，保留相似度更高的一条；结果按相似度降序、ID 升序。
func mergeBest(all []core.SearchHit) []core.SearchHit {
	seen := make(map[string]int, len(all))
	out := make([]core.SearchHit, 0, len(all))
	for _, h := range all {
		if idx, ok := seen[h.ID]; ok {
			if h.Similarity > out[idx].Similarity {
				out[idx] = h
			}
			continue
		}
		seen[h.ID] = len(out)
		out = append(out, h)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].ID < out[j].ID
	})
	return out
}

var _ core.SimilaritySearch = (*Fanout)(nil)
