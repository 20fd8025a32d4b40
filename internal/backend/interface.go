package backend

import (
	"context"

	"budgetcontrol/internal/core"
	"budgetcontrol/internal/ledger"
)

// Store is everything a persistence backend offers the engine and the CLI.
type Store interface {
	ledger.BudgetReader
	ledger.BudgetWriter
	ledger.EntryStore
	ledger.EntryWriter
	ledger.TagIndex
	ledger.ClaimLedger
	ledger.ClaimPruner
}

// cachedStore drops the cached tag resolutions whenever an entry is saved.
type cachedStore struct {
	Store
	tags *ledger.CachedTagIndex
}

func (s cachedStore) SaveEntry(ctx context.Context, e core.Entry) error {
	return ledger.InvalidatingWriter{EntryWriter: s.Store, Tags: s.tags}.SaveEntry(ctx, e)
}

func (s cachedStore) Unwrap() Store { return s.Store }

// Underlying returns the concrete store behind any wrapper added by the factory.
func Underlying(s Store) Store {
	for {
		w, ok := s.(interface{ Unwrap() Store })
		if !ok {
			return s
		}
		s = w.Unwrap()
	}
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the wired ports and the function releasing them.
// Tags is the store's tag index, behind a cache when one is configured.
type BackendResult struct {
	Store     Store
	Tags      ledger.TagIndex
	Transport ledger.NotificationTransport
	Cleanup   CleanupFunc
}

// Close runs Cleanup when there is one.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
