package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"budgetcontrol/internal/core"
	"budgetcontrol/internal/ledger"
	"budgetcontrol/internal/log"
)

// AccountingConfig holds configuration for the accounting service
type AccountingConfig struct {
	// Workers bounds the budgets computed concurrently by batch operations (default: 4)
	Workers int

	// BudgetTimeout caps the computation of a single budget in a batch; zero disables it
	BudgetTimeout time.Duration

	// StrictPeriods rejects unknown period kinds instead of resolving them as monthly
	StrictPeriods bool

	// Location is where rolling windows are computed; nil uses the clock's location
	Location *time.Location

	// Now is the clock (default: time.Now)
	Now func() time.Time
}

// DefaultAccountingConfig returns sensible defaults
func DefaultAccountingConfig() AccountingConfig {
	return AccountingConfig{
		Workers:       4,
		BudgetTimeout: 30 * time.Second,
		Now:           time.Now,
	}
}

// AccountingService computes budget statistics from the ledger. It never
// writes budgets or entries.
type AccountingService struct {
	budgets  ledger.BudgetReader
	entries  ledger.EntryStore
	resolver *PeriodResolver
	compiler *FilterCompiler
	config   AccountingConfig
	logger   *log.Logger
	events   *log.StructuredLogger
}

func NewAccountingService(
	budgets ledger.BudgetReader,
	entries ledger.EntryStore,
	tags ledger.TagIndex,
	config AccountingConfig,
	logger *log.Logger,
) *AccountingService {
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.WithComponent(log.ComponentAccounting)
	return &AccountingService{
		budgets:  budgets,
		entries:  entries,
		resolver: NewPeriodResolver(config.StrictPeriods, config.Location, logger),
		compiler: NewFilterCompiler(tags),
		config:   config,
		logger:   logger,
		events:   log.NewStructuredLogger(logger),
	}
}

// Now returns the service clock.
func (s *AccountingService) Now() time.Time {
	return s.config.Now()
}

// StatsOf computes the statistics of one budget in its current window.
// It fails with core.ErrNotFound when the budget is not in workspaceID.
func (s *AccountingService) StatsOf(ctx context.Context, workspaceID int64, budgetID uuid.UUID) (core.Stats, error) {
	b, err := s.budgets.GetBudget(ctx, workspaceID, budgetID)
	if err != nil {
		return core.Stats{}, fmt.Errorf("get budget %s: %w", budgetID, err)
	}
	return s.compute(ctx, b, s.config.Now())
}

// StatsOfAll computes every live budget of workspaceID. Budgets that fail are
// recorded in the result and do not affect the others.
func (s *AccountingService) StatsOfAll(ctx context.Context, workspaceID int64) (core.BatchResult, error) {
	budgets, err := s.budgets.ListBudgets(ctx, workspaceID)
	if err != nil {
		return core.BatchResult{}, fmt.Errorf("list budgets of workspace %d: %w", workspaceID, err)
	}
	return s.computeAll(ctx, budgets)
}

// ScanNotifiable computes the budgets of workspaceID that have notifications enabled.
func (s *AccountingService) ScanNotifiable(ctx context.Context, workspaceID int64) (core.BatchResult, error) {
	budgets, err := s.budgets.ListBudgets(ctx, workspaceID)
	if err != nil {
		return core.BatchResult{}, fmt.Errorf("list budgets of workspace %d: %w", workspaceID, err)
	}
	notifiable := make([]core.Budget, 0, len(budgets))
	for _, b := range budgets {
		if b.Notification {
			notifiable = append(notifiable, b)
		}
	}
	return s.computeAll(ctx, notifiable)
}

// ScanExceeded returns the notification enabled budgets of workspaceID whose
// spending went past their amount.
func (s *AccountingService) ScanExceeded(ctx context.Context, workspaceID int64) (core.BatchResult, error) {
	res, err := s.ScanNotifiable(ctx, workspaceID)
	exceeded := make([]core.Stats, 0, len(res.Stats))
	for _, st := range res.Stats {
		if st.IsExceeded() {
			exceeded = append(exceeded, st)
		}
	}
	res.Stats = exceeded
	return res, err
}

// EntriesOf lists the entries a budget accounts for in its current window,
// newest first. An unknown budget yields an empty list.
func (s *AccountingService) EntriesOf(ctx context.Context, workspaceID int64, budgetID uuid.UUID) ([]core.Entry, error) {
	b, err := s.budgets.GetBudget(ctx, workspaceID, budgetID)
	if err != nil {
		if core.IsNotFound(err) {
			return []core.Entry{}, nil
		}
		return nil, fmt.Errorf("get budget %s: %w", budgetID, err)
	}
	p, err := s.predicate(ctx, b, s.config.Now())
	if err != nil {
		return nil, err
	}
	entries, err := s.entries.ListEntries(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("list entries of budget %s: %w", b.ID, err)
	}
	return entries, nil
}

// IsExpired reports whether the budget's window has ended.
func (s *AccountingService) IsExpired(ctx context.Context, workspaceID int64, budgetID uuid.UUID) (bool, error) {
	b, err := s.budgets.GetBudget(ctx, workspaceID, budgetID)
	if err != nil {
		return false, fmt.Errorf("get budget %s: %w", budgetID, err)
	}
	now := s.config.Now()
	w, _, err := s.resolver.Resolve(b.Config, now)
	if err != nil {
		return false, fmt.Errorf("resolve window of budget %s: %w", b.ID, err)
	}
	return w.ExpiredAt(now), nil
}

// IsExceeded reports whether the budget's spending went past its amount.
func (s *AccountingService) IsExceeded(ctx context.Context, workspaceID int64, budgetID uuid.UUID) (bool, error) {
	st, err := s.StatsOf(ctx, workspaceID, budgetID)
	if err != nil {
		return false, err
	}
	return st.IsExceeded(), nil
}

func (s *AccountingService) predicate(ctx context.Context, b core.Budget, now time.Time) (ledger.EntryPredicate, error) {
	w, _, err := s.resolver.Resolve(b.Config, now)
	if err != nil {
		return ledger.EntryPredicate{}, fmt.Errorf("resolve window of budget %s: %w", b.ID, err)
	}
	p, err := s.compiler.Compile(ctx, b.WorkspaceID, b.Config, w)
	if err != nil {
		return ledger.EntryPredicate{}, fmt.Errorf("compile filters of budget %s: %w", b.ID, err)
	}
	return p, nil
}

func (s *AccountingService) compute(ctx context.Context, b core.Budget, now time.Time) (core.Stats, error) {
	p, err := s.predicate(ctx, b, now)
	if err != nil {
		return core.Stats{}, err
	}
	amounts, err := s.entries.QueryEntries(ctx, p)
	if err != nil {
		return core.Stats{}, fmt.Errorf("query entries of budget %s: %w", b.ID, err)
	}
	return core.ComputeStats(b, amounts, p.Window), nil
}

// computeAll fans budgets out over a bounded pool. Results keep the order of
// budgets. Once ctx is done no further budget is started; the ones never
// started are reported as failures with the context error.
func (s *AccountingService) computeAll(ctx context.Context, budgets []core.Budget) (core.BatchResult, error) {
	now := s.config.Now()
	stats := make([]core.Stats, len(budgets))
	errs := make([]error, len(budgets))

	var g errgroup.Group
	g.SetLimit(s.config.Workers)

	for i, b := range budgets {
		if ctx.Err() != nil {
			errs[i] = ctx.Err()
			continue
		}
		g.Go(func() error {
			bctx := ctx
			if s.config.BudgetTimeout > 0 {
				var cancel context.CancelFunc
				bctx, cancel = context.WithTimeout(ctx, s.config.BudgetTimeout)
				defer cancel()
			}
			stats[i], errs[i] = s.compute(bctx, b, now)
			return nil
		})
	}
	_ = g.Wait()

	res := core.BatchResult{Stats: make([]core.Stats, 0, len(budgets))}
	for i, b := range budgets {
		if errs[i] != nil {
			res.Failures = append(res.Failures, core.BudgetFailure{BudgetID: b.ID, Err: errs[i]})
			s.events.LogBudgetSkipped(ctx, b.ID, b.WorkspaceID, log.OpStatsOfAll, errs[i])
			continue
		}
		res.Stats = append(res.Stats, stats[i])
	}
	return res, ctx.Err()
}
