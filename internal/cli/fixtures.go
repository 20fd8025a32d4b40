package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"

	"budgetcontrol/internal/core"
	"budgetcontrol/internal/ledger"
)

// Fixture is the TOML seed file read by budgetctl import.
type Fixture struct {
	Budgets []BudgetFixture `toml:"budget"`
	Entries []EntryFixture  `toml:"entry"`
}

type BudgetFixture struct {
	ID           string   `toml:"id"`
	WorkspaceID  int64    `toml:"workspace_id"`
	Name         string   `toml:"name"`
	Description  string   `toml:"description"`
	Amount       string   `toml:"amount"`
	Period       string   `toml:"period"`
	PeriodStart  string   `toml:"period_start"`
	PeriodEnd    string   `toml:"period_end"`
	Accounts     []int64  `toml:"accounts"`
	Categories   []int64  `toml:"categories"`
	Types        []string `toml:"types"`
	Tags         []int64  `toml:"tags"`
	Notification bool     `toml:"notification"`
	Thresholds   []int    `toml:"thresholds"`
	Emails       []string `toml:"emails"`
}

type EntryFixture struct {
	ID          int64   `toml:"id"`
	WorkspaceID int64   `toml:"workspace_id"`
	Amount      string  `toml:"amount"`
	AccountID   int64   `toml:"account_id"`
	CategoryID  int64   `toml:"category_id"`
	Type        string  `toml:"type"`
	Tags        []int64 `toml:"tags"`
	DateTime    string  `toml:"date_time"`
}

// DecodeFixture parses r, rejecting keys the fixture format does not know.
func DecodeFixture(r io.Reader) (Fixture, error) {
	var f Fixture
	md, err := toml.NewDecoder(r).Decode(&f)
	if err != nil {
		return Fixture{}, fmt.Errorf("decode fixture: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Fixture{}, fmt.Errorf("decode fixture: unknown keys %s", strings.Join(keys, ", "))
	}
	return f, nil
}

// Budget converts the fixture into a validated budget.
func (f BudgetFixture) Budget() (core.Budget, error) {
	var errs []error

	id := uuid.New()
	if f.ID != "" {
		parsed, err := uuid.Parse(f.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid id %q: %w", f.ID, err))
		}
		id = parsed
	}

	amount, err := core.ParseAmount(f.Amount)
	if err != nil {
		errs = append(errs, err)
	}

	period := core.Period(strings.ToLower(strings.TrimSpace(f.Period)))
	filters := core.Filters{Accounts: f.Accounts, Categories: f.Categories, Types: f.Types, Tags: f.Tags}
	cfg := core.NewRollingConfiguration(period, filters)
	if period.IsBounded() {
		start, serr := core.ParseDate(f.PeriodStart)
		end, eerr := core.ParseDate(f.PeriodEnd)
		if serr != nil || eerr != nil {
			errs = append(errs, errors.Join(serr, eerr))
		} else if cfg, err = core.NewBoundedConfiguration(period, start, end, filters); err != nil {
			errs = append(errs, err)
		}
	}

	b := core.Budget{
		ID:           id,
		WorkspaceID:  f.WorkspaceID,
		Name:         f.Name,
		Description:  f.Description,
		Amount:       amount,
		Config:       cfg,
		Notification: f.Notification,
		Thresholds:   f.Thresholds,
		Emails:       f.Emails,
	}
	if f.WorkspaceID <= 0 {
		errs = append(errs, fmt.Errorf("workspace_id must be positive"))
	}
	if err := b.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return core.Budget{}, errors.Join(errs...)
	}
	return b, nil
}

func (f EntryFixture) Entry() (core.Entry, error) {
	var errs []error
	if f.ID <= 0 {
		errs = append(errs, fmt.Errorf("id must be positive"))
	}
	if f.WorkspaceID <= 0 {
		errs = append(errs, fmt.Errorf("workspace_id must be positive"))
	}
	amount, err := core.ParseAmount(f.Amount)
	if err != nil {
		errs = append(errs, err)
	}
	ts, err := core.ParseDate(f.DateTime)
	if err != nil {
		errs = append(errs, err)
	} else if ts.IsZero() {
		errs = append(errs, fmt.Errorf("date_time is required"))
	}
	if len(errs) > 0 {
		return core.Entry{}, errors.Join(errs...)
	}
	return core.Entry{
		ID:          f.ID,
		WorkspaceID: f.WorkspaceID,
		Amount:      amount,
		AccountID:   f.AccountID,
		CategoryID:  f.CategoryID,
		Type:        f.Type,
		Tags:        f.Tags,
		Timestamp:   ts,
	}, nil
}

// ImportResult counts what an import wrote.
type ImportResult struct {
	Budgets int
	Entries int
}

type importStore interface {
	ledger.BudgetWriter
	ledger.EntryWriter
}

// Import validates every record of f first and writes nothing when any of
// them is invalid.
func Import(ctx context.Context, store importStore, f Fixture) (ImportResult, error) {
	var (
		errs    []error
		budgets = make([]core.Budget, 0, len(f.Budgets))
		entries = make([]core.Entry, 0, len(f.Entries))
	)
	for i, bf := range f.Budgets {
		b, err := bf.Budget()
		if err != nil {
			errs = append(errs, fmt.Errorf("budget %d (%s): %w", i+1, bf.Name, err))
			continue
		}
		budgets = append(budgets, b)
	}
	for i, ef := range f.Entries {
		e, err := ef.Entry()
		if err != nil {
			errs = append(errs, fmt.Errorf("entry %d: %w", i+1, err))
			continue
		}
		entries = append(entries, e)
	}
	if len(errs) > 0 {
		return ImportResult{}, errors.Join(errs...)
	}

	var res ImportResult
	for _, b := range budgets {
		if err := store.SaveBudget(ctx, b); err != nil {
			return res, err
		}
		res.Budgets++
	}
	for _, e := range entries {
		if err := store.SaveEntry(ctx, e); err != nil {
			return res, err
		}
		res.Entries++
	}
	return res, nil
}
