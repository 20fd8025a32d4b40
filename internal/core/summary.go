package core

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// BudgetFailure records why one budget of a batch could not be computed.
type BudgetFailure struct {
	BudgetID uuid.UUID
	Err      error
}

func (f BudgetFailure) Error() string {
	return fmt.Sprintf("budget %s: %v", f.BudgetID, f.Err)
}

func (f BudgetFailure) Unwrap() error { return f.Err }

// BatchResult is the outcome of computing stats over many budgets.
// Failures never abort the batch; they are reported next to the results.
type BatchResult struct {
	Stats    []Stats
	Failures []BudgetFailure
}

// Notification is one threshold alert ready for the transport.
type Notification struct {
	BudgetID        uuid.UUID
	WorkspaceID     int64
	BudgetName      string
	Threshold       int
	SpentPercentage int
	Recipients      []string
	Subject         string
	Body            string
	PeriodKey       string
}

// IsNotFound reports whether err means a budget was absent from its workspace.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
