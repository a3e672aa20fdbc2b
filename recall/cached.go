package recall

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/rushteam/outrank/core"
)

// CachedSearch 为任意 SimilaritySearch 加一层结果缓存。
// 缓存 key 由查询、过滤、条数、阈值、评论数下限组成，任一不同视为不同请求。
//
// 缓存读写失败只记日志，不影响检索结果；检索服务的错误不缓存。
type CachedSearch struct {
	Next   core.SimilaritySearch
	Store  core.Store
	TTL    time.Duration
	Prefix string
	Logger *slog.Logger
}

func NewCachedSearch(search core.SimilaritySearch, store core.Store, ttl time.Duration) *CachedSearch {
	return &CachedSearch{
		Next:   search,
		Store:  store,
		TTL:    ttl,
		Prefix: "outrank:search:",
	}
}

func (c *CachedSearch) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Key 返回请求对应的缓存 key。
func (c *CachedSearch) Key(req *core.SearchRequest) string {
	return c.Prefix + strconv.Quote(req.Query) + "|" + strconv.Quote(req.Filter) + "|" +
		strconv.Itoa(req.Limit) + "|" + strconv.FormatFloat(req.Threshold, 'f', 4, 64) + "|" +
		strconv.FormatFloat(req.MinReviews, 'f', -1, 64)
}

func (c *CachedSearch) Search(ctx context.Context, req *core.SearchRequest) ([]core.SearchHit, error) {
	if c.Next == nil {
		return nil, core.NewConfigError("cached search: inner search is nil")
	}
	if c.Store == nil || req == nil {
		return c.Next.Search(ctx, req)
	}

	key := c.Key(req)
	if data, err := c.Store.Get(ctx, key); err == nil {
		var hits []core.SearchHit
		if err := json.Unmarshal(data, &hits); err == nil {
			return hits, nil
		}
		c.logger().WarnContext(ctx, "discarding corrupt cache entry",
			slog.String("store", c.Store.Name()),
			slog.String("key", key))
	} else if !core.IsStoreNotFound(err) {
		c.logger().WarnContext(ctx, "search cache read failed",
			slog.String("store", c.Store.Name()),
			slog.String("error", err.Error()))
	}

	hits, err := c.Next.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(hits)
	if err != nil {
		return nil, fmt.Errorf("encode search hits: %w", err)
	}
	if err := c.Store.Set(ctx, key, data, c.TTL); err != nil {
		c.logger().WarnContext(ctx, "search cache write failed",
			slog.String("store", c.Store.Name()),
			slog.String("error", err.Error()))
	}
	return hits, nil
}

var _ core.SimilaritySearch = (*CachedSearch)(nil)
