package core

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Spent percentages are clamped to ±MaxInt32.
var (
	maxPercentage = decimal.NewFromInt(math.MaxInt32)
	minPercentage = decimal.NewFromInt(-math.MaxInt32)
)

// Stats is the derived spending picture of one budget over one window.
// It is recomputed on every query and never persisted.
type Stats struct {
	budget            Budget
	window            Window
	total             decimal.Decimal
	totalSpent        decimal.Decimal
	totalRemaining    decimal.Decimal
	spentPercentage   int
	percentageDefined bool
}

// SumEntries adds up entry amounts without intermediate rounding.
func SumEntries(entries []EntryAmount) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range entries {
		sum = sum.Add(e.Amount)
	}
	return sum
}

// ComputeStats aggregates the matching entries of b over w.
func ComputeStats(b Budget, entries []EntryAmount, w Window) Stats {
	return NewStats(b, SumEntries(entries), w)
}

// NewStats derives statistics from an already aggregated sum. The sum is
// rounded to cents here and the percentage is taken from the rounded value,
// rounding half away from zero.
func NewStats(b Budget, sum decimal.Decimal, w Window) Stats {
	spent := sum.Round(2)
	s := Stats{
		budget:         b,
		window:         w,
		total:          b.Amount,
		totalSpent:     spent,
		totalRemaining: b.Amount.Add(spent),
	}
	if !b.Amount.IsZero() {
		pct := spent.Neg().Mul(hundred).Div(b.Amount).Round(0)
		s.spentPercentage = int(decimal.Min(decimal.Max(pct, minPercentage), maxPercentage).IntPart())
		s.percentageDefined = true
	}
	return s
}

func (s Stats) Budget() Budget                  { return s.budget }
func (s Stats) Window() Window                  { return s.window }
func (s Stats) Total() decimal.Decimal          { return s.total }
func (s Stats) TotalSpent() decimal.Decimal     { return s.totalSpent }
func (s Stats) TotalRemaining() decimal.Decimal { return s.totalRemaining }

// SpentPercentage returns the signed share of the budget consumed.
// It fails with ErrDivisionUndefined for a zero amount budget.
func (s Stats) SpentPercentage() (int, error) {
	if !s.percentageDefined {
		return 0, ErrDivisionUndefined
	}
	return s.spentPercentage, nil
}

// RemainingPercentage is 100 minus the spent percentage, never below zero.
func (s Stats) RemainingPercentage() (int, error) {
	if !s.percentageDefined {
		return 0, ErrDivisionUndefined
	}
	return max(100-s.spentPercentage, 0), nil
}

// SpentPercentageLabel renders the spent percentage as "60%", or "N/A".
func (s Stats) SpentPercentageLabel() string {
	p, err := s.SpentPercentage()
	if err != nil {
		return "N/A"
	}
	return fmt.Sprintf("%d%%", p)
}

// RemainingPercentageLabel renders the remaining percentage as "40%", or "N/A".
func (s Stats) RemainingPercentageLabel() string {
	p, err := s.RemainingPercentage()
	if err != nil {
		return "N/A"
	}
	return fmt.Sprintf("%d%%", p)
}

// IsExceeded reports whether spending has gone past the allocated amount.
func (s Stats) IsExceeded() bool {
	return s.totalRemaining.IsNegative()
}

// IsExpired reports whether the resolved window has ended at now.
func (s Stats) IsExpired(now time.Time) bool {
	return s.window.ExpiredAt(now)
}

// ExceededThresholds returns the configured thresholds reached by the
// magnitude of the spent percentage. Nil when the percentage is undefined.
func (s Stats) ExceededThresholds() []int {
	if !s.percentageDefined {
		return nil
	}
	p := s.spentPercentage
	if p < 0 {
		p = -p
	}
	return ExceededThresholds(p, s.budget.Thresholds)
}

// Report is the serializable view of Stats at a given instant.
type Report struct {
	BudgetID            string   `json:"budget_id"`
	WorkspaceID         int64    `json:"workspace_id"`
	Name                string   `json:"name"`
	Period              Period   `json:"period"`
	WindowStart         string   `json:"window_start"`
	WindowEnd           string   `json:"window_end"`
	Total               string   `json:"total"`
	TotalSpent          string   `json:"total_spent"`
	TotalRemaining      string   `json:"total_remaining"`
	SpentPercentage     string   `json:"total_spent_percentage"`
	RemainingPercentage string   `json:"total_remaining_percentage"`
	Exceeded            bool     `json:"exceeded"`
	Expired             bool     `json:"expired"`
	ExceededThresholds  []int    `json:"exceeded_thresholds"`
	Emails              []string `json:"emails,omitempty"`
}

// Report renders s for output, evaluating expiry at now.
func (s Stats) Report(now time.Time) Report {
	thresholds := s.ExceededThresholds()
	if thresholds == nil {
		thresholds = []int{}
	}
	return Report{
		BudgetID:            s.budget.ID.String(),
		WorkspaceID:         s.budget.WorkspaceID,
		Name:                s.budget.Name,
		Period:              s.budget.Config.Period,
		WindowStart:         s.window.Start.Format(time.RFC3339),
		WindowEnd:           s.window.End.Format(time.RFC3339),
		Total:               s.total.StringFixed(2),
		TotalSpent:          s.totalSpent.StringFixed(2),
		TotalRemaining:      s.totalRemaining.StringFixed(2),
		SpentPercentage:     s.SpentPercentageLabel(),
		RemainingPercentage: s.RemainingPercentageLabel(),
		Exceeded:            s.IsExceeded(),
		Expired:             s.IsExpired(now),
		ExceededThresholds:  thresholds,
		Emails:              s.budget.Emails,
	}
}
