package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"budgetcontrol/internal/core"
	"budgetcontrol/internal/ledger"
	"budgetcontrol/internal/log"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db            *sql.DB
	logger        *log.Logger
	schemaVersion uint
}

var (
	_ ledger.BudgetReader = (*SQLiteRepository)(nil)
	_ ledger.BudgetWriter = (*SQLiteRepository)(nil)
	_ ledger.EntryStore   = (*SQLiteRepository)(nil)
	_ ledger.EntryWriter  = (*SQLiteRepository)(nil)
	_ ledger.TagIndex     = (*SQLiteRepository)(nil)
	_ ledger.ClaimLedger  = (*SQLiteRepository)(nil)
	_ ledger.ClaimPruner  = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Default()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{
		db:            db,
		logger:        logger.WithComponent(log.ComponentStorage),
		schemaVersion: version,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SchemaVersion is the migration version applied when the repository opened.
func (r *SQLiteRepository) SchemaVersion() uint {
	return r.schemaVersion
}

const budgetColumns = "uuid, workspace_id, name, description, amount, configuration, notification, thresholds, emails, deleted_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBudget(row rowScanner) (core.Budget, error) {
	var (
		b                                 core.Budget
		id, config, thresholds, emailList string
		amount                            decimal.Decimal
		notification                      int64
		deletedAt                         sql.NullString
	)
	if err := row.Scan(&id, &b.WorkspaceID, &b.Name, &b.Description, &amount, &config, &notification, &thresholds, &emailList, &deletedAt); err != nil {
		return core.Budget{}, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return core.Budget{}, fmt.Errorf("parse budget uuid %q: %w", id, err)
	}
	b.ID = parsed
	b.Amount = amount
	b.Notification = notification != 0
	if err := json.Unmarshal([]byte(config), &b.Config); err != nil {
		return core.Budget{}, fmt.Errorf("decode configuration of budget %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(thresholds), &b.Thresholds); err != nil {
		return core.Budget{}, fmt.Errorf("decode thresholds of budget %s: %w", id, err)
	}
	b.Emails = splitEmails(emailList)
	if deletedAt.Valid {
		t, err := parseTime(deletedAt.String)
		if err != nil {
			return core.Budget{}, fmt.Errorf("parse deleted_at of budget %s: %w", id, err)
		}
		b.DeletedAt = &t
	}
	return b, nil
}

// GetBudget implements ledger.BudgetReader
func (r *SQLiteRepository) GetBudget(ctx context.Context, workspaceID int64, id uuid.UUID) (core.Budget, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+budgetColumns+" FROM budgets WHERE uuid = ? AND workspace_id = ? AND deleted_at IS NULL",
		id.String(), workspaceID)
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, core.ErrNotFound
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}

// ListBudgets implements ledger.BudgetReader
func (r *SQLiteRepository) ListBudgets(ctx context.Context, workspaceID int64) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+budgetColumns+" FROM budgets WHERE workspace_id = ? AND deleted_at IS NULL ORDER BY name, uuid",
		workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListWorkspaces implements ledger.BudgetReader
func (r *SQLiteRepository) ListWorkspaces(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT DISTINCT workspace_id FROM budgets WHERE deleted_at IS NULL ORDER BY workspace_id")
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan workspace: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// SaveBudget inserts b or replaces the budget with the same uuid.
func (r *SQLiteRepository) SaveBudget(ctx context.Context, b core.Budget) error {
	if b.ID == uuid.Nil {
		return fmt.Errorf("save budget: missing uuid")
	}
	config, err := json.Marshal(b.Config)
	if err != nil {
		return fmt.Errorf("encode configuration: %w", err)
	}
	thresholds := b.Thresholds
	if thresholds == nil {
		thresholds = []int{}
	}
	thresholdJSON, err := json.Marshal(thresholds)
	if err != nil {
		return fmt.Errorf("encode thresholds: %w", err)
	}
	var deletedAt any
	if b.DeletedAt != nil {
		deletedAt = formatTime(*b.DeletedAt)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO budgets (uuid, workspace_id, name, description, amount, configuration, notification, thresholds, emails, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (uuid) DO UPDATE SET
			workspace_id = excluded.workspace_id,
			name = excluded.name,
			description = excluded.description,
			amount = excluded.amount,
			configuration = excluded.configuration,
			notification = excluded.notification,
			thresholds = excluded.thresholds,
			emails = excluded.emails,
			deleted_at = excluded.deleted_at,
			updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`,
		b.ID.String(), b.WorkspaceID, b.Name, b.Description, b.Amount.String(), string(config),
		boolToInt(b.Notification), string(thresholdJSON), joinEmails(b.Emails), deletedAt)
	if err != nil {
		return fmt.Errorf("save budget %s: %w", b.ID, err)
	}

	r.logger.DebugContext(ctx, "Budget saved", log.FieldBudgetID, b.ID.String(), log.FieldWorkspaceID, b.WorkspaceID)
	return nil
}

// SaveEntry inserts e or replaces the entry with the same id, tags included.
func (r *SQLiteRepository) SaveEntry(ctx context.Context, e core.Entry) error {
	if e.ID <= 0 {
		return fmt.Errorf("save entry: id must be positive, got %d", e.ID)
	}
	var deletedAt any
	if e.DeletedAt != nil {
		deletedAt = formatTime(*e.DeletedAt)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO entries (id, workspace_id, amount, account_id, category_id, type, date_time, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			workspace_id = excluded.workspace_id,
			amount = excluded.amount,
			account_id = excluded.account_id,
			category_id = excluded.category_id,
			type = excluded.type,
			date_time = excluded.date_time,
			deleted_at = excluded.deleted_at`,
		e.ID, e.WorkspaceID, e.Amount.String(), e.AccountID, e.CategoryID, e.Type, formatTime(e.Timestamp), deletedAt); err != nil {
		return fmt.Errorf("save entry %d: %w", e.ID, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM entry_tags WHERE entry_id = ?", e.ID); err != nil {
		return fmt.Errorf("clear tags of entry %d: %w", e.ID, err)
	}
	for _, tag := range e.Tags {
		if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO entry_tags (entry_id, tag_id) VALUES (?, ?)", e.ID, tag); err != nil {
			return fmt.Errorf("tag entry %d: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

// QueryEntries implements ledger.EntryStore
func (r *SQLiteRepository) QueryEntries(ctx context.Context, p ledger.EntryPredicate) ([]core.EntryAmount, error) {
	query, args := entryQuery("e.id, e.amount", p)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	out := []core.EntryAmount{}
	for rows.Next() {
		var ea core.EntryAmount
		if err := rows.Scan(&ea.ID, &ea.Amount); err != nil {
			return nil, fmt.Errorf("scan entry amount: %w", err)
		}
		out = append(out, ea)
	}
	return out, rows.Err()
}

// ListEntries implements ledger.EntryStore
func (r *SQLiteRepository) ListEntries(ctx context.Context, p ledger.EntryPredicate) ([]core.Entry, error) {
	query, args := entryQuery("e.id, e.workspace_id, e.amount, e.account_id, e.category_id, e.type, e.date_time", p)
	rows, err := r.db.QueryContext(ctx, query+" ORDER BY e.date_time DESC, e.id DESC", args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	out := []core.Entry{}
	index := map[int64]int{}
	for rows.Next() {
		var (
			e  core.Entry
			ts string
		)
		if err := rows.Scan(&e.ID, &e.WorkspaceID, &e.Amount, &e.AccountID, &e.CategoryID, &e.Type, &ts); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if e.Timestamp, err = parseTime(ts); err != nil {
			return nil, fmt.Errorf("parse date_time of entry %d: %w", e.ID, err)
		}
		index[e.ID] = len(out)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]int64, 0, len(out))
	for _, e := range out {
		ids = append(ids, e.ID)
	}
	tagRows, err := r.db.QueryContext(ctx,
		"SELECT entry_id, tag_id FROM entry_tags WHERE entry_id IN (SELECT value FROM json_each(?)) ORDER BY entry_id, tag_id", jsonList(ids))
	if err != nil {
		return nil, fmt.Errorf("load entry tags: %w", err)
	}
	defer tagRows.Close()
	for tagRows.Next() {
		var entryID, tagID int64
		if err := tagRows.Scan(&entryID, &tagID); err != nil {
			return nil, fmt.Errorf("scan entry tag: %w", err)
		}
		if i, ok := index[entryID]; ok {
			out[i].Tags = append(out[i].Tags, tagID)
		}
	}
	return out, tagRows.Err()
}

// EntriesForTags implements ledger.TagIndex
func (r *SQLiteRepository) EntriesForTags(ctx context.Context, workspaceID int64, tagIDs []int64) ([]int64, error) {
	out := []int64{}
	if len(tagIDs) == 0 {
		return out, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT t.entry_id FROM entry_tags t JOIN entries e ON e.id = t.entry_id
		WHERE e.workspace_id = ? AND t.tag_id IN (SELECT value FROM json_each(?))
		ORDER BY t.entry_id`,
		workspaceID, jsonList(tagIDs))
	if err != nil {
		return nil, fmt.Errorf("entries for tags: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan entry id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Claim implements ledger.ClaimLedger with a conditional insert, so exactly
// one of several concurrent claimers wins.
func (r *SQLiteRepository) Claim(ctx context.Context, key core.ClaimKey) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO notified_thresholds (budget_uuid, threshold, period_key, period_end, claimed_at) VALUES (?, ?, ?, ?, ?) ON CONFLICT DO NOTHING",
		key.BudgetID.String(), key.Threshold, key.PeriodKey, formatTime(key.PeriodEnd), formatTime(time.Now()))
	if err != nil {
		return false, fmt.Errorf("claim threshold %d of budget %s: %w", key.Threshold, key.BudgetID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim rows affected: %w", err)
	}
	return n == 1, nil
}

// Release implements ledger.ClaimLedger
func (r *SQLiteRepository) Release(ctx context.Context, key core.ClaimKey) error {
	if _, err := r.db.ExecContext(ctx,
		"DELETE FROM notified_thresholds WHERE budget_uuid = ? AND threshold = ? AND period_key = ?",
		key.BudgetID.String(), key.Threshold, key.PeriodKey); err != nil {
		return fmt.Errorf("release threshold %d of budget %s: %w", key.Threshold, key.BudgetID, err)
	}
	return nil
}

// PruneClaims deletes claims whose period ended before cutoff and returns
// how many went.
func (r *SQLiteRepository) PruneClaims(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM notified_thresholds WHERE period_end < ?", formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune claims: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune rows affected: %w", err)
	}
	if n > 0 {
		r.logger.InfoContext(ctx, "Ended notification claims pruned", "removed", n, "cutoff", cutoff.Format(time.RFC3339))
	}
	return n, nil
}

func joinEmails(emails []string) string {
	clean := make([]string, 0, len(emails))
	for _, e := range emails {
		if e = strings.TrimSpace(e); e != "" {
			clean = append(clean, e)
		}
	}
	return strings.Join(clean, ",")
}

func splitEmails(s string) []string {
	var out []string
	for _, e := range strings.Split(s, ",") {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	return out
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
