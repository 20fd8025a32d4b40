package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetcontrol/internal/core"
)

var june = core.Window{
	Start: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2025, 6, 30, 23, 59, 59, 999999999, time.UTC),
}

func TestFilterCompiler_NoFilters(t *testing.T) {
	p, err := NewFilterCompiler(nil).Compile(context.Background(), 7, monthly(core.Filters{}), june)
	require.NoError(t, err)

	assert.Equal(t, int64(7), p.WorkspaceID)
	assert.Equal(t, june, p.Window)
	assert.Empty(t, p.AccountIDs)
	assert.Empty(t, p.CategoryIDs)
	assert.Empty(t, p.Types)
	assert.Empty(t, p.EntryIDs)
	assert.False(t, p.MatchNone)
}

func TestFilterCompiler_AllDimensions(t *testing.T) {
	tags := &staticTags{ids: []int64{30, 10, 30}}
	cfg := monthly(core.Filters{
		Accounts:   []int64{2, 1, 2},
		Categories: []int64{5},
		Types:      []string{"expenses", " ", "expenses", "debit"},
		Tags:       []int64{9},
	})

	p, err := NewFilterCompiler(tags).Compile(context.Background(), 1, cfg, june)
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2}, p.AccountIDs)
	assert.Equal(t, []int64{5}, p.CategoryIDs)
	assert.Equal(t, []string{"expenses", "debit"}, p.Types)
	assert.Equal(t, []int64{10, 30}, p.EntryIDs)
	assert.False(t, p.MatchNone)
	assert.Equal(t, []int64{2, 1, 2}, cfg.Accounts, "configuration must not be mutated")
}

func TestFilterCompiler_TagsResolvingToNothingMatchNone(t *testing.T) {
	for _, ids := range [][]int64{nil, {}} {
		tags := &staticTags{ids: ids}
		p, err := NewFilterCompiler(tags).Compile(context.Background(), 1, monthly(core.Filters{Tags: []int64{4}}), june)
		require.NoError(t, err)
		assert.True(t, p.MatchNone)
		assert.Empty(t, p.EntryIDs)
	}
}

func TestFilterCompiler_TagIndexNotCalledWithoutTags(t *testing.T) {
	tags := &staticTags{}
	_, err := NewFilterCompiler(tags).Compile(context.Background(), 1, monthly(core.Filters{Accounts: []int64{1}}), june)
	require.NoError(t, err)
	assert.Zero(t, tags.calls)
}

func TestFilterCompiler_TagIndexErrors(t *testing.T) {
	_, err := NewFilterCompiler(&staticTags{err: errStoreDown}).Compile(context.Background(), 1, monthly(core.Filters{Tags: []int64{4}}), june)
	assert.ErrorIs(t, err, errStoreDown)

	_, err = NewFilterCompiler(nil).Compile(context.Background(), 1, monthly(core.Filters{Tags: []int64{4}}), june)
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration)
}
