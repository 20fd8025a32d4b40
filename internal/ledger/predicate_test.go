package ledger

import (
	"testing"
	"time"

	"budgetcontrol/internal/core"
)

func TestEntryPredicateMatches(t *testing.T) {
	w := core.Window{
		Start: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 6, 30, 23, 59, 59, 0, time.UTC),
	}
	base := core.Entry{ID: 10, WorkspaceID: 3, AccountID: 1, CategoryID: 2, Type: "expenses", Timestamp: w.Start}
	deleted := time.Now()

	cases := []struct {
		name  string
		p     EntryPredicate
		entry core.Entry
		want  bool
	}{
		{"no filters", EntryPredicate{WorkspaceID: 3, Window: w}, base, true},
		{"other workspace", EntryPredicate{WorkspaceID: 4, Window: w}, base, false},
		{"window end inclusive", EntryPredicate{WorkspaceID: 3, Window: w}, withTime(base, w.End), true},
		{"after window", EntryPredicate{WorkspaceID: 3, Window: w}, withTime(base, w.End.Add(time.Second)), false},
		{"account hit", EntryPredicate{WorkspaceID: 3, Window: w, AccountIDs: []int64{1, 9}}, base, true},
		{"account miss", EntryPredicate{WorkspaceID: 3, Window: w, AccountIDs: []int64{9}}, base, false},
		{"category miss", EntryPredicate{WorkspaceID: 3, Window: w, CategoryIDs: []int64{9}}, base, false},
		{"type miss", EntryPredicate{WorkspaceID: 3, Window: w, Types: []string{"incomes"}}, base, false},
		{"entry id hit", EntryPredicate{WorkspaceID: 3, Window: w, EntryIDs: []int64{10}}, base, true},
		{"entry id miss", EntryPredicate{WorkspaceID: 3, Window: w, EntryIDs: []int64{11}}, base, false},
		{"match none", EntryPredicate{WorkspaceID: 3, Window: w, MatchNone: true}, base, false},
		{"soft deleted", EntryPredicate{WorkspaceID: 3, Window: w}, core.Entry{ID: 10, WorkspaceID: 3, Timestamp: w.Start, DeletedAt: &deleted}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.p.Matches(tc.entry); got != tc.want {
				t.Fatalf("Matches = %v, want %v", got, tc.want)
			}
		})
	}
}

func withTime(e core.Entry, ts time.Time) core.Entry {
	e.Timestamp = ts
	return e
}
