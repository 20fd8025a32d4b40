package core

import (
	"time"

	"github.com/google/uuid"
)

// Window is a resolved accounting period. Both ends are inclusive.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// ExpiredAt reports whether the window has ended relative to now.
func (w Window) ExpiredAt(now time.Time) bool {
	return now.After(w.End)
}

// Key identifies the window independently of the location it was resolved in.
func (w Window) Key() string {
	return w.Start.UTC().Format(time.RFC3339Nano) + "/" + w.End.UTC().Format(time.RFC3339Nano)
}

// ClaimKey identifies one threshold notification within one accounting period.
// BudgetID, Threshold and PeriodKey form the identity. PeriodEnd tells stores
// when the claim can no longer matter.
type ClaimKey struct {
	BudgetID  uuid.UUID
	Threshold int
	PeriodKey string
	PeriodEnd time.Time
}

// NewClaimKey builds the idempotency key for a threshold crossing in w.
func NewClaimKey(budgetID uuid.UUID, threshold int, w Window) ClaimKey {
	return ClaimKey{BudgetID: budgetID, Threshold: threshold, PeriodKey: w.Key(), PeriodEnd: w.End.UTC()}
}
