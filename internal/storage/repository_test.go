package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"budgetcontrol/internal/core"
	"budgetcontrol/internal/ledger"
	"budgetcontrol/internal/log"
)

var feb = core.Window{
	Start: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2025, 2, 28, 23, 59, 59, 999999999, time.UTC),
}

func newTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "budgets.db"), log.Discard())
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testBudget(workspace int64, name string) core.Budget {
	return core.Budget{
		ID:           uuid.New(),
		WorkspaceID:  workspace,
		Name:         name,
		Amount:       decimal.RequireFromString("150.25"),
		Config:       core.NewRollingConfiguration(core.Monthly, core.Filters{Categories: []int64{4}}),
		Notification: true,
		Thresholds:   []int{50, 80},
		Emails:       []string{"a@example.com", "b@example.com"},
	}
}

func TestNewSQLiteRepositoryAppliesMigrations(t *testing.T) {
	repo := newTestRepository(t)
	if repo.SchemaVersion() != 4 {
		t.Fatalf("expected schema version 4, got %d", repo.SchemaVersion())
	}
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "budgets.db")
	for i := 0; i < 2; i++ {
		v, err := RunMigrations(path)
		if err != nil || v != 4 {
			t.Fatalf("run %d: version=%d err=%v", i, v, err)
		}
	}
}

func TestBudgetRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	b := testBudget(1, "Groceries")

	if err := repo.SaveBudget(ctx, b); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := repo.GetBudget(ctx, 1, b.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != b.Name || !got.Amount.Equal(b.Amount) || !got.Notification {
		t.Fatalf("unexpected budget %+v", got)
	}
	if got.Config.Period != core.Monthly || len(got.Config.Categories) != 1 || got.Config.Categories[0] != 4 {
		t.Fatalf("unexpected configuration %+v", got.Config)
	}
	if len(got.Thresholds) != 2 || got.Thresholds[1] != 80 {
		t.Fatalf("unexpected thresholds %v", got.Thresholds)
	}
	if len(got.Emails) != 2 || got.Emails[0] != "a@example.com" {
		t.Fatalf("unexpected emails %v", got.Emails)
	}

	b.Name = "Food"
	if err := repo.SaveBudget(ctx, b); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = repo.GetBudget(ctx, 1, b.ID)
	if got.Name != "Food" {
		t.Fatalf("expected upsert to rename budget, got %q", got.Name)
	}
}

func TestGetBudgetNotFound(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	b := testBudget(1, "Rent")
	if err := repo.SaveBudget(ctx, b); err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, err := repo.GetBudget(ctx, 2, b.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("other workspace: expected ErrNotFound, got %v", err)
	}
	if _, err := repo.GetBudget(ctx, 1, uuid.New()); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("unknown id: expected ErrNotFound, got %v", err)
	}

	deleted := time.Now()
	b.DeletedAt = &deleted
	if err := repo.SaveBudget(ctx, b); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if _, err := repo.GetBudget(ctx, 1, b.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("deleted budget: expected ErrNotFound, got %v", err)
	}
}

func TestListBudgetsAndWorkspaces(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	for _, b := range []core.Budget{testBudget(1, "Travel"), testBudget(1, "Bills"), testBudget(3, "Fuel")} {
		if err := repo.SaveBudget(ctx, b); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	list, err := repo.ListBudgets(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Name != "Bills" || list[1].Name != "Travel" {
		t.Fatalf("expected budgets ordered by name, got %+v", list)
	}

	ws, err := repo.ListWorkspaces(ctx)
	if err != nil {
		t.Fatalf("workspaces: %v", err)
	}
	if len(ws) != 2 || ws[0] != 1 || ws[1] != 3 {
		t.Fatalf("unexpected workspaces %v", ws)
	}
}

func seedEntries(t *testing.T, repo *SQLiteRepository) {
	t.Helper()
	deleted := feb.Start
	entries := []core.Entry{
		{ID: 1, WorkspaceID: 1, Amount: decimal.RequireFromString("-10.10"), AccountID: 1, CategoryID: 4, Type: "expenses", Tags: []int64{7, 8}, Timestamp: feb.Start},
		{ID: 2, WorkspaceID: 1, Amount: decimal.RequireFromString("-20.20"), AccountID: 2, CategoryID: 4, Type: "expenses", Tags: []int64{8}, Timestamp: feb.End},
		{ID: 3, WorkspaceID: 1, Amount: decimal.RequireFromString("-30"), AccountID: 1, CategoryID: 5, Type: "incomes", Timestamp: feb.Start.Add(24 * time.Hour)},
		{ID: 4, WorkspaceID: 1, Amount: decimal.RequireFromString("-40"), AccountID: 1, CategoryID: 4, Type: "expenses", Timestamp: feb.End.Add(time.Nanosecond)},
		{ID: 5, WorkspaceID: 2, Amount: decimal.RequireFromString("-50"), AccountID: 1, CategoryID: 4, Type: "expenses", Tags: []int64{7}, Timestamp: feb.Start},
		{ID: 6, WorkspaceID: 1, Amount: decimal.RequireFromString("-60"), AccountID: 1, CategoryID: 4, Type: "expenses", Timestamp: feb.Start, DeletedAt: &deleted},
	}
	for _, e := range entries {
		if err := repo.SaveEntry(context.Background(), e); err != nil {
			t.Fatalf("seed entry %d: %v", e.ID, err)
		}
	}
}

func sumOf(entries []core.EntryAmount) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Amount)
	}
	return total
}

func TestQueryEntries(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	seedEntries(t, repo)

	tests := []struct {
		name  string
		pred  ledger.EntryPredicate
		count int
		total string
	}{
		{"window bounds are inclusive", ledger.EntryPredicate{WorkspaceID: 1, Window: feb}, 3, "-60.30"},
		{"account filter", ledger.EntryPredicate{WorkspaceID: 1, Window: feb, AccountIDs: []int64{2}}, 1, "-20.20"},
		{"category and type", ledger.EntryPredicate{WorkspaceID: 1, Window: feb, CategoryIDs: []int64{4}, Types: []string{"expenses"}}, 2, "-30.30"},
		{"entry ids", ledger.EntryPredicate{WorkspaceID: 1, Window: feb, EntryIDs: []int64{1, 3, 5}}, 2, "-40.10"},
		{"match none", ledger.EntryPredicate{WorkspaceID: 1, Window: feb, MatchNone: true}, 0, "0"},
		{"other workspace", ledger.EntryPredicate{WorkspaceID: 2, Window: feb}, 1, "-50"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.QueryEntries(ctx, tt.pred)
			if err != nil {
				t.Fatalf("query: %v", err)
			}
			if len(got) != tt.count {
				t.Fatalf("expected %d entries, got %d", tt.count, len(got))
			}
			if !sumOf(got).Equal(decimal.RequireFromString(tt.total)) {
				t.Fatalf("expected total %s, got %s", tt.total, sumOf(got))
			}
		})
	}
}

func TestListEntriesNewestFirstWithTags(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	seedEntries(t, repo)

	got, err := repo.ListEntries(ctx, ledger.EntryPredicate{WorkspaceID: 1, Window: feb})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 || got[0].ID != 2 || got[1].ID != 3 || got[2].ID != 1 {
		t.Fatalf("expected entries 2,3,1, got %+v", got)
	}
	if len(got[2].Tags) != 2 || got[2].Tags[0] != 7 || got[2].Tags[1] != 8 {
		t.Fatalf("expected tags [7 8] on entry 1, got %v", got[2].Tags)
	}
	if !got[0].Timestamp.Equal(feb.End) {
		t.Fatalf("timestamp lost precision: %v", got[0].Timestamp)
	}

	empty, err := repo.ListEntries(ctx, ledger.EntryPredicate{WorkspaceID: 9, Window: feb})
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v (err=%v)", empty, err)
	}
}

func TestSaveEntryReplacesTags(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	e := core.Entry{ID: 10, WorkspaceID: 1, Amount: decimal.NewFromInt(-5), Type: "expenses", Tags: []int64{1, 2}, Timestamp: feb.Start}
	if err := repo.SaveEntry(ctx, e); err != nil {
		t.Fatalf("save: %v", err)
	}
	e.Tags = []int64{3}
	if err := repo.SaveEntry(ctx, e); err != nil {
		t.Fatalf("resave: %v", err)
	}

	ids, err := repo.EntriesForTags(ctx, 1, []int64{1, 2})
	if err != nil || len(ids) != 0 {
		t.Fatalf("expected old tags gone, got %v (err=%v)", ids, err)
	}
	ids, _ = repo.EntriesForTags(ctx, 1, []int64{3})
	if len(ids) != 1 || ids[0] != 10 {
		t.Fatalf("expected entry 10 for tag 3, got %v", ids)
	}
}

func TestEntriesForTags(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	seedEntries(t, repo)

	ids, err := repo.EntriesForTags(ctx, 1, []int64{8, 7})
	if err != nil {
		t.Fatalf("tags: %v", err)
	}
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Fatalf("expected distinct sorted [1 2], got %v", ids)
	}

	other, err := repo.EntriesForTags(ctx, 2, []int64{8, 7})
	if err != nil || len(other) != 1 || other[0] != 5 {
		t.Fatalf("expected only entry 5 in workspace 2, got %v (err=%v)", other, err)
	}

	none, err := repo.EntriesForTags(ctx, 1, nil)
	if err != nil || none == nil || len(none) != 0 {
		t.Fatalf("expected empty slice, got %v (err=%v)", none, err)
	}
}

func TestClaimIsExclusive(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	key := core.NewClaimKey(uuid.New(), 50, feb)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.Claim(ctx, key)
			if err != nil {
				t.Errorf("claim: %v", err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}

	if err := repo.Release(ctx, key); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, err := repo.Claim(ctx, key); err != nil || !ok {
		t.Fatalf("expected claim after release, got ok=%v err=%v", ok, err)
	}
}

func TestClaimKeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	id := uuid.New()
	mar := core.Window{Start: feb.End.Add(time.Nanosecond), End: time.Date(2025, 3, 31, 23, 59, 59, 999999999, time.UTC)}

	for _, key := range []core.ClaimKey{
		core.NewClaimKey(id, 50, feb),
		core.NewClaimKey(id, 80, feb),
		core.NewClaimKey(id, 50, mar),
	} {
		ok, err := repo.Claim(ctx, key)
		if err != nil || !ok {
			t.Fatalf("claim %+v: ok=%v err=%v", key, ok, err)
		}
	}
}

func TestPruneClaimsKeepsLivePeriods(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	now := time.Now().UTC()
	id := uuid.New()

	ended := core.NewClaimKey(id, 50, feb)
	long := core.NewClaimKey(id, 50, core.Window{Start: now.AddDate(-2, 0, 0), End: now.AddDate(1, 0, 0)})
	for _, key := range []core.ClaimKey{ended, long} {
		if ok, err := repo.Claim(ctx, key); err != nil || !ok {
			t.Fatalf("claim: ok=%v err=%v", ok, err)
		}
	}
	// the live claim was recorded long ago
	if _, err := repo.db.ExecContext(ctx, "UPDATE notified_thresholds SET claimed_at = ?",
		formatTime(now.AddDate(-2, 0, 0))); err != nil {
		t.Fatalf("backdate claims: %v", err)
	}

	n, err := repo.PruneClaims(ctx, feb.Start)
	if err != nil || n != 0 {
		t.Fatalf("claims of periods ending after the cutoff must survive, removed=%d err=%v", n, err)
	}
	n, err = repo.PruneClaims(ctx, now)
	if err != nil || n != 1 {
		t.Fatalf("expected one removal, got %d (err=%v)", n, err)
	}
	if ok, _ := repo.Claim(ctx, long); ok {
		t.Fatalf("claim of a live period was pruned")
	}
	if ok, _ := repo.Claim(ctx, ended); !ok {
		t.Fatalf("claim of an ended period should be claimable again")
	}
}

func TestTagFilterBeyondVariableLimit(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	const n = 40000

	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	for i := int64(1); i <= n; i++ {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO entries (id, workspace_id, amount, type, date_time) VALUES (?, 1, '-1', 'expenses', ?)",
			i, formatTime(feb.Start)); err != nil {
			t.Fatalf("insert entry %d: %v", i, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO entry_tags (entry_id, tag_id) VALUES (?, 7)", i); err != nil {
			t.Fatalf("tag entry %d: %v", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	ids, err := repo.EntriesForTags(ctx, 1, []int64{7})
	if err != nil || len(ids) != n {
		t.Fatalf("expected %d tagged entries, got %d (err=%v)", n, len(ids), err)
	}
	p := ledger.EntryPredicate{WorkspaceID: 1, Window: feb, EntryIDs: ids}
	amounts, err := repo.QueryEntries(ctx, p)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(amounts) != n || !sumOf(amounts).Equal(decimal.NewFromInt(-n)) {
		t.Fatalf("expected %d entries summing to -%d, got %d summing to %s", n, n, len(amounts), sumOf(amounts))
	}
	entries, err := repo.ListEntries(ctx, p)
	if err != nil || len(entries) != n || len(entries[0].Tags) != 1 {
		t.Fatalf("list: got %d entries (err=%v)", len(entries), err)
	}
}
