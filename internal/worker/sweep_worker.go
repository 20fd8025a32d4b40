package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"budgetcontrol/internal/core"
	"budgetcontrol/internal/ledger"
	"budgetcontrol/internal/log"
)

// Scanner computes the notification enabled budgets of a workspace.
type Scanner interface {
	ScanNotifiable(ctx context.Context, workspaceID int64) (core.BatchResult, error)
}

// Dispatcher sends the alerts a budget's stats call for.
type Dispatcher interface {
	CheckAndNotify(ctx context.Context, st core.Stats) []int
}

// WorkspaceLister enumerates the workspaces owning budgets.
type WorkspaceLister interface {
	ListWorkspaces(ctx context.Context) ([]int64, error)
}

// SweepConfig holds configuration for the sweep worker
type SweepConfig struct {
	// Interval is how often every workspace is swept (default: 15m)
	Interval time.Duration

	// Workspaces restricts the sweep; empty means every workspace with budgets
	Workspaces []int64

	// CleanupInterval is how often ended notification claims are pruned (default: 24h)
	CleanupInterval time.Duration

	// ClaimRetention is how long a claim is kept after its period ended (default: 7 days)
	ClaimRetention time.Duration

	// Now is the clock used for pruning (default: time.Now)
	Now func() time.Time
}

// DefaultSweepConfig returns sensible defaults
func DefaultSweepConfig() SweepConfig {
	return SweepConfig{
		Interval:        15 * time.Minute,
		CleanupInterval: 24 * time.Hour,
		ClaimRetention:  7 * 24 * time.Hour,
		Now:             time.Now,
	}
}

// SweepReport totals one pass over the workspaces.
type SweepReport struct {
	Workspaces int
	Budgets    int
	Exceeded   int
	Notified   int
	Failed     int
}

// SweepWorker periodically scans budgets and raises threshold alerts.
type SweepWorker struct {
	scanner    Scanner
	dispatcher Dispatcher
	workspaces WorkspaceLister
	pruner     ledger.ClaimPruner
	config     SweepConfig
	logger     *log.Logger
	events     *log.StructuredLogger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSweepWorker creates a sweep worker. pruner may be nil, which disables
// claim cleanup.
func NewSweepWorker(
	scanner Scanner,
	dispatcher Dispatcher,
	workspaces WorkspaceLister,
	pruner ledger.ClaimPruner,
	config SweepConfig,
	logger *log.Logger,
) *SweepWorker {
	defaults := DefaultSweepConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = defaults.CleanupInterval
	}
	if config.ClaimRetention <= 0 {
		config.ClaimRetention = defaults.ClaimRetention
	}
	if config.Now == nil {
		config.Now = defaults.Now
	}
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.WithComponent(log.ComponentWorker)
	return &SweepWorker{
		scanner:    scanner,
		dispatcher: dispatcher,
		workspaces: workspaces,
		pruner:     pruner,
		config:     config,
		logger:     logger,
		events:     log.NewStructuredLogger(logger),
	}
}

// Start begins the sweep loop. Returns an error if already running.
func (w *SweepWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("sweep worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})

	go w.runLoop(ctx, w.stopCh, w.doneCh)

	w.logger.InfoContext(ctx, "Sweep worker started",
		"interval", w.config.Interval.String(),
		"workspaces", len(w.config.Workspaces))
	return nil
}

// Stop signals the loop and waits for the sweep in progress to finish.
func (w *SweepWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	stopCh, doneCh := w.stopCh, w.doneCh
	w.running = false
	w.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		w.logger.InfoContext(ctx, "Sweep worker stopped gracefully")
		return nil
	case <-ctx.Done():
		w.logger.WarnContext(ctx, "Sweep worker stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the worker is currently running
func (w *SweepWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *SweepWorker) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	// A stop request cancels the sweep in progress so no new budget starts.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	sweepTicker := time.NewTicker(w.config.Interval)
	defer sweepTicker.Stop()

	cleanupTicker := time.NewTicker(w.config.CleanupInterval)
	defer cleanupTicker.Stop()

	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sweepTicker.C:
			w.sweep(ctx)
		case <-cleanupTicker.C:
			w.PruneClaims(ctx)
		}
	}
}

func (w *SweepWorker) sweep(ctx context.Context) {
	if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
		w.events.LogError(ctx, "Sweep failed", err, log.OpSweep, nil)
	}
}

// RunOnce sweeps every configured workspace once. A workspace that cannot be
// scanned is logged and counted as failed; the others still run.
func (w *SweepWorker) RunOnce(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	if log.TraceID(ctx) == "" {
		ctx = log.WithTraceID(ctx, log.NewTraceID("sweep"))
	}

	ids, err := w.targets(ctx)
	if err != nil {
		return report, err
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		ws := w.sweepWorkspace(ctx, id)
		report.Workspaces++
		report.Budgets += ws.Budgets
		report.Exceeded += ws.Exceeded
		report.Notified += ws.Notified
		report.Failed += ws.Failed
	}
	return report, ctx.Err()
}

func (w *SweepWorker) targets(ctx context.Context) ([]int64, error) {
	if len(w.config.Workspaces) > 0 {
		return w.config.Workspaces, nil
	}
	if w.workspaces == nil {
		return nil, fmt.Errorf("no workspaces configured and no workspace lister")
	}
	ids, err := w.workspaces.ListWorkspaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	return ids, nil
}

func (w *SweepWorker) sweepWorkspace(ctx context.Context, workspaceID int64) SweepReport {
	start := time.Now()
	var report SweepReport

	res, err := w.scanner.ScanNotifiable(ctx, workspaceID)
	if err != nil && len(res.Stats) == 0 && len(res.Failures) == 0 {
		w.events.LogError(ctx, "Workspace scan failed", err, log.OpScan, log.NewFields().WithWorkspace(workspaceID))
		report.Failed++
		return report
	}

	report.Budgets = len(res.Stats) + len(res.Failures)
	report.Failed = len(res.Failures)

	for _, st := range res.Stats {
		if ctx.Err() != nil {
			break
		}
		report.Notified += len(w.dispatcher.CheckAndNotify(ctx, st))
		if st.IsExceeded() {
			report.Exceeded++
			b := st.Budget()
			fields := log.NewFields().
				WithBudget(b.ID, b.WorkspaceID, b.Name).
				WithOperation(log.OpSweep).
				With(log.FieldTotalSpent, core.FormatAmount(st.TotalSpent())).
				With(log.FieldTotal, core.FormatAmount(st.Total()))
			w.logger.WarnContext(ctx, "Budget exceeded", fields.ToSlice()...)
		}
	}

	w.events.LogSweepCompleted(ctx, workspaceID, report.Budgets, report.Exceeded, report.Notified, report.Failed, time.Since(start))
	return report
}

// PruneClaims drops notification claims whose period ended more than
// ClaimRetention ago. Claims of running periods are never touched.
func (w *SweepWorker) PruneClaims(ctx context.Context) int64 {
	if w.pruner == nil {
		return 0
	}
	n, err := w.pruner.PruneClaims(ctx, w.config.Now().Add(-w.config.ClaimRetention))
	if err != nil {
		w.events.LogError(ctx, "Failed to prune notification claims", err, log.OpClaim, nil)
		return 0
	}
	return n
}
