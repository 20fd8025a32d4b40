package storage

import (
	"encoding/json"
	"strings"
	"time"

	"budgetcontrol/internal/ledger"
)

// timeLayout is fixed width so stored timestamps order lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// entryQuery renders p as a WHERE clause over entries aliased e. Every value
// is returned as a bound argument.
func entryQuery(columns string, p ledger.EntryPredicate) (string, []any) {
	var b strings.Builder
	args := []any{p.WorkspaceID, formatTime(p.Window.Start), formatTime(p.Window.End)}

	b.WriteString("SELECT ")
	b.WriteString(columns)
	b.WriteString(" FROM entries e WHERE e.workspace_id = ? AND e.deleted_at IS NULL AND e.date_time BETWEEN ? AND ?")

	if p.MatchNone {
		b.WriteString(" AND 1=0")
		return b.String(), args
	}
	args = inClause(&b, "e.account_id", p.AccountIDs, args)
	args = inClause(&b, "e.category_id", p.CategoryIDs, args)
	args = inClause(&b, "e.type", p.Types, args)
	args = inClause(&b, "e.id", p.EntryIDs, args)
	return b.String(), args
}

// inClause appends "AND column IN (SELECT value FROM json_each(?))" when
// values is not empty. The whole list is one JSON argument, so its length
// is not bounded by SQLite's variable limit.
func inClause[T int64 | string](b *strings.Builder, column string, values []T, args []any) []any {
	if len(values) == 0 {
		return args
	}
	b.WriteString(" AND ")
	b.WriteString(column)
	b.WriteString(" IN (SELECT value FROM json_each(?))")
	return append(args, jsonList(values))
}

func jsonList[T int64 | string](values []T) string {
	data, _ := json.Marshal(values) // ints and strings always encode
	return string(data)
}
