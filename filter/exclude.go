package filter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rushteam/outrank/core"
)

// ExcludeFilter 过滤指定 ID 的候选（例如用户已去过、已下架）。
//
// ID 来源：
//   - IDs：内存列表
//   - Store + Key：Store 中以 JSON 字符串数组保存的列表，key 不存在视为空
//
// 在 FilterNode 中每次请求只读取一次 Store（见 Prepare）。
type ExcludeFilter struct {
	IDs   []string
	Store core.Store
	Key   string

	ids map[string]struct{}
}

func NewExcludeFilter(ids []string, store core.Store, key string) *ExcludeFilter {
	return &ExcludeFilter{IDs: ids, Store: store, Key: key, ids: toSet(ids)}
}

func (f *ExcludeFilter) Name() string {
	return "filter.exclude"
}

// Prepare 读取 Store 中的列表并与 IDs 合并，返回只查内存的过滤器。
func (f *ExcludeFilter) Prepare(ctx context.Context, _ *core.RankRequest) (Filter, error) {
	if f.Store == nil || f.Key == "" {
		return f, nil
	}
	stored, err := f.load(ctx)
	if err != nil {
		return nil, err
	}
	merged := make([]string, 0, len(f.IDs)+len(stored))
	merged = append(merged, f.IDs...)
	merged = append(merged, stored...)
	return NewExcludeFilter(merged, nil, ""), nil
}

func (f *ExcludeFilter) ShouldFilter(ctx context.Context, _ *core.RankRequest, item *core.Item) (bool, error) {
	if item == nil {
		return true, nil
	}
	if f.ids != nil {
		if _, ok := f.ids[item.ID]; ok {
			return true, nil
		}
	} else if contains(f.IDs, item.ID) {
		return true, nil
	}

	if f.Store == nil || f.Key == "" {
		return false, nil
	}
	stored, err := f.load(ctx)
	if err != nil {
		return false, err
	}
	return contains(stored, item.ID), nil
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func (f *ExcludeFilter) load(ctx context.Context) ([]string, error) {
	data, err := f.Store.Get(ctx, f.Key)
	if core.IsStoreNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read exclude list %s: %w", f.Key, err)
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("parse exclude list %s: %w", f.Key, err)
	}
	return ids, nil
}

var _ Preparer = (*ExcludeFilter)(nil)
