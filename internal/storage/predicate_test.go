package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"budgetcontrol/internal/core"
	"budgetcontrol/internal/ledger"
)

func TestEntryQuery(t *testing.T) {
	w := core.Window{
		Start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 1, 31, 23, 59, 59, 0, time.UTC),
	}
	base := "SELECT e.id FROM entries e WHERE e.workspace_id = ? AND e.deleted_at IS NULL AND e.date_time BETWEEN ? AND ?"

	query, args := entryQuery("e.id", ledger.EntryPredicate{WorkspaceID: 3, Window: w})
	assert.Equal(t, base, query)
	assert.Equal(t, []any{int64(3), "2025-01-01T00:00:00.000000000Z", "2025-01-31T23:59:59.000000000Z"}, args)

	query, args = entryQuery("e.id", ledger.EntryPredicate{
		WorkspaceID: 3,
		Window:      w,
		AccountIDs:  []int64{1, 2},
		Types:       []string{"expenses"},
		EntryIDs:    []int64{9},
	})
	in := " IN (SELECT value FROM json_each(?))"
	assert.Equal(t, base+" AND e.account_id"+in+" AND e.type"+in+" AND e.id"+in, query)
	assert.Equal(t, []any{int64(3), "2025-01-01T00:00:00.000000000Z", "2025-01-31T23:59:59.000000000Z",
		"[1,2]", `["expenses"]`, "[9]"}, args)

	query, args = entryQuery("e.id", ledger.EntryPredicate{WorkspaceID: 3, Window: w, MatchNone: true, AccountIDs: []int64{1}})
	assert.Equal(t, base+" AND 1=0", query)
	assert.Len(t, args, 3)
}

func TestFormatTimeOrdersLexically(t *testing.T) {
	a := time.Date(2025, 1, 1, 9, 0, 0, 5, time.FixedZone("X", -3600))
	b := a.Add(time.Nanosecond)
	assert.Less(t, formatTime(a), formatTime(b))

	back, err := parseTime(formatTime(a))
	assert.NoError(t, err)
	assert.True(t, back.Equal(a))
}
