package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"budgetcontrol/internal/core"
	"budgetcontrol/internal/ledger"
)

// Store keeps budgets, entries and notification claims in process memory.
type Store struct {
	mu      sync.Mutex
	budgets map[uuid.UUID]core.Budget
	entries map[int64]core.Entry
	claims  map[claimID]time.Time
}

// claimID is a ClaimKey without its period end.
type claimID struct {
	budget    uuid.UUID
	threshold int
	period    string
}

func idOf(key core.ClaimKey) claimID {
	return claimID{budget: key.BudgetID, threshold: key.Threshold, period: key.PeriodKey}
}

var (
	_ ledger.BudgetReader = (*Store)(nil)
	_ ledger.BudgetWriter = (*Store)(nil)
	_ ledger.EntryStore   = (*Store)(nil)
	_ ledger.EntryWriter  = (*Store)(nil)
	_ ledger.TagIndex     = (*Store)(nil)
	_ ledger.ClaimLedger  = (*Store)(nil)
	_ ledger.ClaimPruner  = (*Store)(nil)
)

func New() *Store {
	return &Store{
		budgets: map[uuid.UUID]core.Budget{},
		entries: map[int64]core.Entry{},
		claims:  map[claimID]time.Time{},
	}
}

// SaveBudget inserts or replaces b.
func (s *Store) SaveBudget(_ context.Context, b core.Budget) error {
	if b.ID == uuid.Nil {
		return fmt.Errorf("save budget: missing id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgets[b.ID] = b
	return nil
}

func (s *Store) GetBudget(_ context.Context, workspaceID int64, id uuid.UUID) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[id]
	if !ok || b.WorkspaceID != workspaceID || b.IsDeleted() {
		return core.Budget{}, core.ErrNotFound
	}
	return b, nil
}

// ListBudgets returns the live budgets of workspaceID sorted by name.
func (s *Store) ListBudgets(_ context.Context, workspaceID int64) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Budget
	for _, b := range s.budgets {
		if b.WorkspaceID == workspaceID && !b.IsDeleted() {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *Store) ListWorkspaces(_ context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int64
	for _, b := range s.budgets {
		if !b.IsDeleted() {
			out = append(out, b.WorkspaceID)
		}
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

// SaveEntry inserts or replaces e by id.
func (s *Store) SaveEntry(_ context.Context, e core.Entry) error {
	if e.ID <= 0 {
		return fmt.Errorf("save entry: id must be positive, got %d", e.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e.Tags = slices.Clone(e.Tags)
	s.entries[e.ID] = e
	return nil
}

func (s *Store) QueryEntries(ctx context.Context, p ledger.EntryPredicate) ([]core.EntryAmount, error) {
	entries, err := s.ListEntries(ctx, p)
	if err != nil {
		return nil, err
	}
	out := make([]core.EntryAmount, 0, len(entries))
	for _, e := range entries {
		out = append(out, core.EntryAmount{ID: e.ID, Amount: e.Amount})
	}
	return out, nil
}

func (s *Store) ListEntries(_ context.Context, p ledger.EntryPredicate) ([]core.Entry, error) {
	if p.MatchNone {
		return []core.Entry{}, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Entry{}
	for _, e := range s.entries {
		if p.Matches(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// EntriesForTags returns the ids of workspaceID entries carrying any of
// tagIDs, ascending.
func (s *Store) EntriesForTags(_ context.Context, workspaceID int64, tagIDs []int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []int64{}
	for id, e := range s.entries {
		if e.WorkspaceID != workspaceID {
			continue
		}
		for _, t := range e.Tags {
			if slices.Contains(tagIDs, t) {
				out = append(out, id)
				break
			}
		}
	}
	slices.Sort(out)
	return out, nil
}

func (s *Store) Claim(_ context.Context, key core.ClaimKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := idOf(key)
	if _, ok := s.claims[id]; ok {
		return false, nil
	}
	s.claims[id] = key.PeriodEnd
	return true, nil
}

func (s *Store) Release(_ context.Context, key core.ClaimKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claims, idOf(key))
	return nil
}

// PruneClaims forgets claims whose period ended before cutoff.
func (s *Store) PruneClaims(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, end := range s.claims {
		if end.Before(cutoff) {
			delete(s.claims, k)
			n++
		}
	}
	return n, nil
}

// Outbox is a NotificationTransport that records what it was asked to send.
// FailFor, when set, makes Send fail for the matching notifications.
type Outbox struct {
	mu      sync.Mutex
	sent    []core.Notification
	FailFor func(core.Notification) bool
}

var _ ledger.NotificationTransport = (*Outbox)(nil)

func (o *Outbox) Send(_ context.Context, n core.Notification) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.FailFor != nil && o.FailFor(n) {
		return fmt.Errorf("%w: outbox rejected threshold %d", core.ErrTransportFailure, n.Threshold)
	}
	o.sent = append(o.sent, n)
	return nil
}

// Sent returns a copy of the delivered notifications in send order.
func (o *Outbox) Sent() []core.Notification {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.sent)
}
