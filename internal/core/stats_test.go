package core

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func budgetWith(amount string, thresholds ...int) Budget {
	b := validBudget()
	b.Amount = d(amount)
	b.Thresholds = thresholds
	return b
}

var march = Window{
	Start: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2025, 3, 31, 23, 59, 59, 999999999, time.UTC),
}

func TestComputeStats_ScenarioA(t *testing.T) {
	b := budgetWith("100", 25, 50, 75)
	s := ComputeStats(b, []EntryAmount{{ID: 1, Amount: d("-40")}, {ID: 2, Amount: d("-20")}}, march)

	p, err := s.SpentPercentage()
	require.NoError(t, err)
	assert.Equal(t, 60, p)
	assert.True(t, s.TotalSpent().Equal(d("-60")))
	assert.True(t, s.TotalRemaining().Equal(d("40")))
	assert.Equal(t, []int{25, 50}, s.ExceededThresholds())
	assert.Equal(t, "60%", s.SpentPercentageLabel())
	assert.Equal(t, "40%", s.RemainingPercentageLabel())
	assert.False(t, s.IsExceeded())
}

func TestComputeStats_ScenarioB(t *testing.T) {
	b := budgetWith("100", 50, 75, 90)
	s := ComputeStats(b, []EntryAmount{{ID: 1, Amount: d("-20")}}, march)

	assert.Empty(t, s.ExceededThresholds())
	p, err := s.SpentPercentage()
	require.NoError(t, err)
	assert.Equal(t, 20, p)
}

func TestComputeStats_NoEntries(t *testing.T) {
	s := ComputeStats(budgetWith("250", 10), nil, march)

	p, err := s.SpentPercentage()
	require.NoError(t, err)
	assert.Equal(t, 0, p)
	assert.True(t, s.TotalSpent().IsZero())
	assert.False(t, s.IsExceeded())
	assert.Empty(t, s.ExceededThresholds())
}

func TestComputeStats_OverSpend(t *testing.T) {
	s := ComputeStats(budgetWith("100", 50, 99), []EntryAmount{{ID: 1, Amount: d("-130.50")}}, march)

	assert.True(t, s.IsExceeded())
	assert.True(t, s.TotalRemaining().IsNegative())
	assert.Equal(t, "131%", s.SpentPercentageLabel())
	assert.Equal(t, "0%", s.RemainingPercentageLabel())
	assert.Equal(t, []int{50, 99}, s.ExceededThresholds())
}

func TestComputeStats_IncomeLowersSpending(t *testing.T) {
	s := ComputeStats(budgetWith("100", 25), []EntryAmount{
		{ID: 1, Amount: d("-50")},
		{ID: 2, Amount: d("40")},
	}, march)

	assert.True(t, s.TotalSpent().Equal(d("-10")))
	assert.Empty(t, s.ExceededThresholds())
}

func TestComputeStats_NetIncomeUsesMagnitude(t *testing.T) {
	s := ComputeStats(budgetWith("100", 25), []EntryAmount{{ID: 1, Amount: d("30")}}, march)

	p, err := s.SpentPercentage()
	require.NoError(t, err)
	assert.Equal(t, -30, p)
	assert.Equal(t, []int{25}, s.ExceededThresholds())
	assert.False(t, s.IsExceeded())
	assert.Equal(t, "130%", s.RemainingPercentageLabel())
}

func TestComputeStats_ZeroAmount(t *testing.T) {
	s := ComputeStats(budgetWith("0", 50), []EntryAmount{{ID: 1, Amount: d("-10")}}, march)

	_, err := s.SpentPercentage()
	assert.ErrorIs(t, err, ErrDivisionUndefined)
	_, err = s.RemainingPercentage()
	assert.ErrorIs(t, err, ErrDivisionUndefined)
	assert.Equal(t, "N/A", s.SpentPercentageLabel())
	assert.Nil(t, s.ExceededThresholds())
	assert.True(t, s.IsExceeded())
}

func TestComputeStats_HugePercentagesSaturate(t *testing.T) {
	s := ComputeStats(budgetWith("0.01", 10, 99), []EntryAmount{{ID: 1, Amount: d("-100000000000000000")}}, march)

	p, err := s.SpentPercentage()
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt32, p)
	assert.Equal(t, []int{10, 99}, s.ExceededThresholds())
	assert.True(t, s.IsExceeded())

	s = ComputeStats(budgetWith("0.01", 10), []EntryAmount{{ID: 1, Amount: d("100000000000000000")}}, march)
	p, err = s.SpentPercentage()
	require.NoError(t, err)
	assert.Equal(t, -math.MaxInt32, p)
	assert.Equal(t, []int{10}, s.ExceededThresholds())
}

func TestComputeStats_NoCentDrift(t *testing.T) {
	entries := make([]EntryAmount, 0, 10)
	for i := 0; i < 10; i++ {
		entries = append(entries, EntryAmount{ID: int64(i), Amount: d("-0.1")})
	}
	s := ComputeStats(budgetWith("1"), entries, march)

	assert.True(t, s.TotalSpent().Equal(d("-1")))
	assert.True(t, s.TotalRemaining().IsZero())
	assert.False(t, s.IsExceeded())
}

func TestComputeStats_RoundsHalfAwayFromZero(t *testing.T) {
	cases := []struct {
		amount string
		spent  string
		want   int
	}{
		{"200", "-1", 1},     // 0.5%
		{"200", "-3", 2},     // 1.5%
		{"200", "-5", 3},     // 2.5%
		{"200", "1", -1},     // -0.5%
		{"3", "-1", 33},      // 33.33%
		{"3", "-2", 67},      // 66.67%
		{"100", "-0.004", 0}, // rounds to 0.00 before the percentage
	}
	for _, tc := range cases {
		s := NewStats(budgetWith(tc.amount), d(tc.spent), march)
		p, err := s.SpentPercentage()
		require.NoError(t, err)
		assert.Equal(t, tc.want, p, "amount=%s spent=%s", tc.amount, tc.spent)
	}
}

func TestStats_Expiry(t *testing.T) {
	s := ComputeStats(budgetWith("100"), nil, march)

	assert.False(t, s.IsExpired(time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)))
	assert.False(t, s.IsExpired(march.End))
	assert.True(t, s.IsExpired(march.End.Add(time.Nanosecond)))
}

func TestStats_Report(t *testing.T) {
	b := budgetWith("1000", 10, 50)
	s := ComputeStats(b, []EntryAmount{{ID: 1, Amount: d("-123.456")}}, march)

	r := s.Report(time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, b.ID.String(), r.BudgetID)
	assert.Equal(t, "1000.00", r.Total)
	assert.Equal(t, "-123.46", r.TotalSpent)
	assert.Equal(t, "876.54", r.TotalRemaining)
	assert.Equal(t, "12%", r.SpentPercentage)
	assert.Equal(t, "88%", r.RemainingPercentage)
	assert.Equal(t, []int{10}, r.ExceededThresholds)
	assert.True(t, r.Expired)
	assert.False(t, r.Exceeded)
}

func TestWindowKeyIgnoresLocation(t *testing.T) {
	rome := time.FixedZone("CET", 3600)
	local := Window{Start: march.Start.In(rome), End: march.End.In(rome)}
	assert.Equal(t, march.Key(), local.Key())
	assert.NotEqual(t, march.Key(), Window{Start: march.Start, End: march.End.Add(time.Second)}.Key())
}
