package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"budgetcontrol/internal/core"
)

// Ports for outbound adapters.
type (
	// BudgetReader loads budget definitions. Soft-deleted budgets are never returned.
	BudgetReader interface {
		// GetBudget returns core.ErrNotFound when id does not exist in workspaceID.
		GetBudget(ctx context.Context, workspaceID int64, id uuid.UUID) (core.Budget, error)
		ListBudgets(ctx context.Context, workspaceID int64) ([]core.Budget, error)
		// ListWorkspaces returns every workspace owning at least one live budget.
		ListWorkspaces(ctx context.Context) ([]int64, error)
	}

	BudgetWriter interface {
		SaveBudget(ctx context.Context, b core.Budget) error
	}

	// EntryStore evaluates compiled predicates against the ledger.
	EntryStore interface {
		// QueryEntries returns the (id, amount) projection, unordered.
		QueryEntries(ctx context.Context, p EntryPredicate) ([]core.EntryAmount, error)
		// ListEntries returns full entries, newest first.
		ListEntries(ctx context.Context, p EntryPredicate) ([]core.Entry, error)
	}

	EntryWriter interface {
		SaveEntry(ctx context.Context, e core.Entry) error
	}

	// TagIndex resolves tag ids to the entries of workspaceID carrying any
	// of them. No match yields an empty slice, not an error.
	TagIndex interface {
		EntriesForTags(ctx context.Context, workspaceID int64, tagIDs []int64) ([]int64, error)
	}

	NotificationTransport interface {
		Send(ctx context.Context, n core.Notification) error
	}

	// ClaimLedger is the idempotency record of sent threshold alerts.
	ClaimLedger interface {
		// Claim atomically records key. It returns false when key was already
		// claimed, by this process or a concurrent one.
		Claim(ctx context.Context, key core.ClaimKey) (bool, error)
		// Release forgets key so a later sweep may try again.
		Release(ctx context.Context, key core.ClaimKey) error
	}

	// ClaimPruner drops claims whose period ended before cutoff. A live
	// period never loses its claims.
	ClaimPruner interface {
		PruneClaims(ctx context.Context, cutoff time.Time) (int64, error)
	}
)
