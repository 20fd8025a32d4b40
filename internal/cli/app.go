package cli

import (
	"context"

	"budgetcontrol/internal/backend"
	"budgetcontrol/internal/config"
	"budgetcontrol/internal/log"
	"budgetcontrol/internal/services"
	"budgetcontrol/internal/worker"
)

// App is what a budgetctl command runs against.
type App struct {
	Config     *config.Config
	Backend    *backend.BackendResult
	Accounting *services.AccountingService
	Notifier   *services.Notifier
	Logger     *log.Logger
}

// Opener builds the App for one command invocation.
type Opener func(ctx context.Context) (*App, error)

// NewApp opens the configured backend and wires the engine over it.
func NewApp(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	result, err := OpenBackend(ctx, logger, cfg)
	if err != nil {
		return nil, err
	}
	accounting, notifier := NewEngine(cfg, result, logger)
	return &App{
		Config:     cfg,
		Backend:    result,
		Accounting: accounting,
		Notifier:   notifier,
		Logger:     logger,
	}, nil
}

// Sweeper builds a sweep worker over the app's engine for the given workspaces.
func (a *App) Sweeper(workspaces []int64) *worker.SweepWorker {
	cfg := worker.DefaultSweepConfig()
	cfg.Interval = a.Config.SweepInterval
	cfg.Workspaces = workspaces
	return worker.NewSweepWorker(a.Accounting, a.Notifier, a.Backend.Store, a.Backend.Store, cfg, a.Logger)
}

func (a *App) Close() error {
	return a.Backend.Close()
}

// DefaultOpener loads the environment configuration on every invocation.
func DefaultOpener(ctx context.Context) (*App, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := SetupLogger(cfg, log.ComponentCLI)
	return NewApp(ctx, cfg, logger)
}
