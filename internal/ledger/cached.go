package ledger

import (
	"context"
	"slices"
	"strconv"
	"strings"

	"budgetcontrol/internal/cache"
	"budgetcontrol/internal/core"
)

// CachedTagIndex memoizes tag resolutions of an underlying index. Empty
// resolutions are never stored, so the first entry carrying a tag shows up
// on the next query.
type CachedTagIndex struct {
	next  TagIndex
	cache cache.Cache[[]int64]
}

func NewCachedTagIndex(next TagIndex, c cache.Cache[[]int64]) *CachedTagIndex {
	return &CachedTagIndex{next: next, cache: c}
}

func (c *CachedTagIndex) EntriesForTags(ctx context.Context, workspaceID int64, tagIDs []int64) ([]int64, error) {
	key := tagKey(workspaceID, tagIDs)
	if ids, ok := c.cache.Get(key); ok {
		return slices.Clone(ids), nil
	}
	ids, err := c.next.EntriesForTags(ctx, workspaceID, tagIDs)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		c.cache.Set(key, slices.Clone(ids))
	}
	return ids, nil
}

// Invalidate drops every cached resolution.
func (c *CachedTagIndex) Invalidate() {
	c.cache.Purge()
}

// InvalidatingWriter saves entries through an EntryWriter and then drops the
// resolutions of the tag index.
type InvalidatingWriter struct {
	EntryWriter
	Tags *CachedTagIndex
}

func (w InvalidatingWriter) SaveEntry(ctx context.Context, e core.Entry) error {
	err := w.EntryWriter.SaveEntry(ctx, e)
	w.Tags.Invalidate()
	return err
}

// tagKey is independent of the order and repetition of ids.
func tagKey(workspaceID int64, ids []int64) string {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return "tags:" + strconv.FormatInt(workspaceID, 10) + ":" + strings.Join(parts, ",")
}
