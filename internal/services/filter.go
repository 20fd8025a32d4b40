package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"budgetcontrol/internal/core"
	"budgetcontrol/internal/ledger"
)

var errNoTagIndex = errors.New("tag filter configured without a tag index")

// FilterCompiler turns a budget configuration and window into an entry predicate.
type FilterCompiler struct {
	tags ledger.TagIndex
}

func NewFilterCompiler(tags ledger.TagIndex) *FilterCompiler {
	return &FilterCompiler{tags: tags}
}

// Compile builds the predicate for workspaceID over w. Empty filter sets add
// no clause. Configured tags are resolved through the tag index first; when
// they resolve to no entry the predicate matches nothing.
func (c *FilterCompiler) Compile(ctx context.Context, workspaceID int64, cfg core.Configuration, w core.Window) (ledger.EntryPredicate, error) {
	p := ledger.EntryPredicate{
		WorkspaceID: workspaceID,
		Window:      w,
		AccountIDs:  uniqueIDs(cfg.Accounts),
		CategoryIDs: uniqueIDs(cfg.Categories),
		Types:       uniqueTypes(cfg.Types),
	}

	tags := uniqueIDs(cfg.Tags)
	if len(tags) == 0 {
		return p, nil
	}
	if c.tags == nil {
		return ledger.EntryPredicate{}, fmt.Errorf("%w: %v", core.ErrInvalidConfiguration, errNoTagIndex)
	}

	ids, err := c.tags.EntriesForTags(ctx, workspaceID, tags)
	if err != nil {
		return ledger.EntryPredicate{}, fmt.Errorf("resolve tags %v: %w", tags, err)
	}
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		p.MatchNone = true
		return p, nil
	}
	p.EntryIDs = ids
	return p, nil
}

func uniqueIDs(in []int64) []int64 {
	if len(in) == 0 {
		return nil
	}
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}

func uniqueTypes(in []string) []string {
	var out []string
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t != "" && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}
