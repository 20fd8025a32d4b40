package ledger

import (
	"slices"

	"budgetcontrol/internal/core"
)

// EntryPredicate is the declarative filter an EntryStore evaluates. Every
// value is data; adapters must bind them as parameters.
//
// An empty slice means no restriction on that dimension. MatchNone is set
// when a configured filter can never match, such as tags carried by no entry.
type EntryPredicate struct {
	WorkspaceID int64
	Window      core.Window
	AccountIDs  []int64
	CategoryIDs []int64
	Types       []string
	EntryIDs    []int64
	MatchNone   bool
}

// Matches evaluates the predicate in memory.
func (p EntryPredicate) Matches(e core.Entry) bool {
	if p.MatchNone || e.DeletedAt != nil {
		return false
	}
	if e.WorkspaceID != p.WorkspaceID || !p.Window.Contains(e.Timestamp) {
		return false
	}
	if len(p.AccountIDs) > 0 && !slices.Contains(p.AccountIDs, e.AccountID) {
		return false
	}
	if len(p.CategoryIDs) > 0 && !slices.Contains(p.CategoryIDs, e.CategoryID) {
		return false
	}
	if len(p.Types) > 0 && !slices.Contains(p.Types, e.Type) {
		return false
	}
	if len(p.EntryIDs) > 0 && !slices.Contains(p.EntryIDs, e.ID) {
		return false
	}
	return true
}
