package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/rushteam/outrank/core"
)

// MemoryCatalog 是内存实现的 SimilaritySearch，保存一份已带相似度的检索结果快照。
// 用于离线排序（CLI 读取导出的检索结果）、开发与测试。
//
// 特点：
//   - 相似度由快照给出，查询文本不参与计算
//   - Filter 按 Category 精确匹配（忽略大小写）
//   - MinReviews 在截断之前排除 review_count 过少的条目
//   - 结果按相似度降序，相同相似度按 ID 升序，保证可复现
//   - 线程安全
type MemoryCatalog struct {
	mu   sync.RWMutex
	hits []core.SearchHit
}

func NewMemoryCatalog(hits ...core.SearchHit) *MemoryCatalog {
	c := &MemoryCatalog{}
	c.Add(hits...)
	return c
}

// LoadCatalog 从 JSON 文件加载快照，文件内容为 SearchHit 数组。
func LoadCatalog(path string) (*MemoryCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog 解析 JSON 快照。
func ParseCatalog(data []byte) (*MemoryCatalog, error) {
	var hits []core.SearchHit
	if err := json.Unmarshal(data, &hits); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	for i, h := range hits {
		if h.ID == "" {
			return nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeInvalidInput,
				fmt.Sprintf("catalog entry %d has empty id", i))
		}
	}
	return NewMemoryCatalog(hits...), nil
}

func (c *MemoryCatalog) Name() string { return "memory_catalog" }

// Add 追加条目。
func (c *MemoryCatalog) Add(hits ...core.SearchHit) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hits = append(c.hits, hits...)
}

// Len 返回条目数量。
func (c *MemoryCatalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.hits)
}

// Search 实现 core.SimilaritySearch 接口。
func (c *MemoryCatalog) Search(ctx context.Context, req *core.SearchRequest) ([]core.SearchHit, error) {
	if req == nil {
		return nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeInvalidInput, "search request is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	out := make([]core.SearchHit, 0, len(c.hits))
	for _, h := range c.hits {
		if h.Similarity < req.Threshold {
			continue
		}
		if req.Filter != "" && !strings.EqualFold(h.Category, req.Filter) {
			continue
		}
		if !req.Admits(h) {
			continue
		}
		out = append(out, h)
	}
	c.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].ID < out[j].ID
	})

	if req.Limit > 0 && len(out) > req.Limit {
		out = out[:req.Limit]
	}
	return out, nil
}

var _ core.SimilaritySearch = (*MemoryCatalog)(nil)
