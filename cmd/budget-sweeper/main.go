package main

import (
	"context"
	"os"
	"time"

	_ "time/tzdata"

	"budgetcontrol/internal/cli"
	"budgetcontrol/internal/config"
	"budgetcontrol/internal/log"
	"budgetcontrol/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(config.Load(), log.ComponentApp)
	logger.Info("Starting budget-sweeper")

	cfg := cli.LoadAndValidateConfig(logger)
	workspaces, _ := cfg.WorkspaceIDs() // validated above

	result := cli.InitBackend(context.Background(), logger, cfg)
	accounting, notifier := cli.NewEngine(cfg, result, logger)

	sweepCfg := worker.DefaultSweepConfig()
	sweepCfg.Interval = cfg.SweepInterval
	sweepCfg.Workspaces = workspaces
	sweeper := worker.NewSweepWorker(accounting, notifier, result.Store, result.Store, sweepCfg, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := sweeper.Stop(shutdownCtx); err != nil {
			logger.Warn("Sweep worker did not stop cleanly", log.FieldError, err)
		}
		if err := result.Close(); err != nil {
			logger.Warn("Backend cleanup failed", log.FieldError, err)
		}
	})

	if err := sweeper.Start(ctx); err != nil {
		logger.Error("Failed to start sweep worker", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Budget sweeper configured",
		"interval", cfg.SweepInterval.String(),
		"backend", cfg.DataBackend,
		"workspaces", cfg.SweepWorkspaces)

	cli.WaitForShutdown(ctx, done)
}
