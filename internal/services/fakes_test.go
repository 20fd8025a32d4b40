package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"budgetcontrol/internal/core"
	"budgetcontrol/internal/ledger"
	"budgetcontrol/internal/ledger/memory"
	"budgetcontrol/internal/log"
)

var errStoreDown = errors.New("store down")

// flakyEntries fails queries filtered on failAccount and holds queries
// filtered on account -1 until block is closed.
type flakyEntries struct {
	ledger.EntryStore
	failAccount int64
	block       chan struct{}
}

func (f *flakyEntries) QueryEntries(ctx context.Context, p ledger.EntryPredicate) ([]core.EntryAmount, error) {
	for _, a := range p.AccountIDs {
		if a == f.failAccount {
			return nil, errStoreDown
		}
		if a == -1 && f.block != nil {
			select {
			case <-f.block:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return f.EntryStore.QueryEntries(ctx, p)
}

type staticTags struct {
	ids   []int64
	err   error
	calls int
}

func (s *staticTags) EntriesForTags(_ context.Context, _ int64, _ []int64) ([]int64, error) {
	s.calls++
	return s.ids, s.err
}

// racingClaims loses every claim, as if another sweep got there first.
type racingClaims struct{}

func (racingClaims) Claim(context.Context, core.ClaimKey) (bool, error) { return false, nil }
func (racingClaims) Release(context.Context, core.ClaimKey) error { return nil }

type brokenClaims struct{}

func (brokenClaims) Claim(context.Context, core.ClaimKey) (bool, error) {
	return false, errStoreDown
}
func (brokenClaims) Release(context.Context, core.ClaimKey) error { return nil }

// recordingClaims counts releases on top of the memory ledger.
type recordingClaims struct {
	*memory.Store
	mu       sync.Mutex
	released []core.ClaimKey
}

func (r *recordingClaims) Release(ctx context.Context, key core.ClaimKey) error {
	r.mu.Lock()
	r.released = append(r.released, key)
	r.mu.Unlock()
	return r.Store.Release(ctx, key)
}

func amount(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newBudget(ws int64, name, amt string, cfg core.Configuration, thresholds ...int) core.Budget {
	return core.Budget{
		ID:           uuid.New(),
		WorkspaceID:  ws,
		Name:         name,
		Amount:       amount(amt),
		Config:       cfg,
		Notification: true,
		Thresholds:   thresholds,
		Emails:       []string{"owner@example.com"},
	}
}

func monthly(f core.Filters) core.Configuration {
	return core.NewRollingConfiguration(core.Monthly, f)
}

func seed(t *testing.T, s *memory.Store, budgets []core.Budget, entries []core.Entry) {
	t.Helper()
	ctx := context.Background()
	for _, b := range budgets {
		require.NoError(t, s.SaveBudget(ctx, b))
	}
	for _, e := range entries {
		require.NoError(t, s.SaveEntry(ctx, e))
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newService(store ledger.EntryStore, budgets ledger.BudgetReader, tags ledger.TagIndex, now time.Time) *AccountingService {
	cfg := DefaultAccountingConfig()
	cfg.Now = fixedClock(now)
	return NewAccountingService(budgets, store, tags, cfg, log.Discard())
}
