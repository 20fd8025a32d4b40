package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"budgetcontrol/internal/backend"
	"budgetcontrol/internal/core"
	"budgetcontrol/internal/storage"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

type rootOptions struct {
	open      Opener
	workspace int64
	output    string
}

// Execute runs budgetctl against the environment configuration.
func Execute() {
	if err := NewRootCommand(DefaultOpener).Execute(); err != nil {
		os.Exit(1)
	}
}

// NewRootCommand builds the budgetctl command tree. Every command opens its
// App through open and closes it when done.
func NewRootCommand(open Opener) *cobra.Command {
	opts := &rootOptions{open: open}

	root := &cobra.Command{
		Use:          "budgetctl",
		Short:        "Inspect budgets and their threshold alerts",
		Long:         "Compute budget statistics, list matching entries and raise threshold alerts.",
		SilenceUsage: true,
	}
	root.PersistentFlags().Int64VarP(&opts.workspace, "workspace", "w", 0, "Workspace id")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", outputTable, "Output format: table or json")

	root.AddCommand(
		newStatsCommand(opts),
		newStatsAllCommand(opts),
		newScanCommand(opts),
		newEntriesCommand(opts),
		newCheckCommand(opts, "expired", "Report whether the budget's period has ended",
			func(ctx context.Context, a *App, ws int64, id uuid.UUID) (bool, error) {
				return a.Accounting.IsExpired(ctx, ws, id)
			}),
		newCheckCommand(opts, "exceeded", "Report whether the budget's spending went past its amount",
			func(ctx context.Context, a *App, ws int64, id uuid.UUID) (bool, error) {
				return a.Accounting.IsExceeded(ctx, ws, id)
			}),
		newNotifyCommand(opts),
		newImportCommand(opts),
		newMigrateCommand(opts),
	)
	return root
}

// run opens the App, validates the output flag and hands over to fn.
func (o *rootOptions) run(cmd *cobra.Command, fn func(ctx context.Context, a *App) error) error {
	if o.output != outputTable && o.output != outputJSON {
		return fmt.Errorf("invalid output %q: must be %s or %s", o.output, outputTable, outputJSON)
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := o.open(ctx)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(ctx, app)
}

func (o *rootOptions) requireWorkspace() (int64, error) {
	if o.workspace <= 0 {
		return 0, fmt.Errorf("--workspace is required")
	}
	return o.workspace, nil
}

func (o *rootOptions) printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (o *rootOptions) printStats(w io.Writer, a *App, res core.BatchResult) error {
	now := a.Accounting.Now()
	if o.output == outputJSON {
		reports := make([]core.Report, len(res.Stats))
		for i, st := range res.Stats {
			reports[i] = st.Report(now)
		}
		failures := make([]map[string]string, len(res.Failures))
		for i, f := range res.Failures {
			failures[i] = map[string]string{"budget_id": f.BudgetID.String(), "error": f.Err.Error()}
		}
		return o.printJSON(w, map[string]any{"budgets": reports, "failures": failures})
	}
	fmt.Fprint(w, RenderStats(res.Stats, now))
	fmt.Fprint(w, RenderFailures(res.Failures))
	return nil
}

func parseBudgetID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid budget id %q", s)
	}
	return id, nil
}

func notFound(err error, ws int64, id uuid.UUID) error {
	if core.IsNotFound(err) {
		return fmt.Errorf("budget %s not found in workspace %d", id, ws)
	}
	return err
}

func newStatsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <budget-id>",
		Short: "Show the statistics of one budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := opts.requireWorkspace()
			if err != nil {
				return err
			}
			id, err := parseBudgetID(args[0])
			if err != nil {
				return err
			}
			return opts.run(cmd, func(ctx context.Context, a *App) error {
				st, err := a.Accounting.StatsOf(ctx, ws, id)
				if err != nil {
					return notFound(err, ws, id)
				}
				if opts.output == outputJSON {
					return opts.printJSON(cmd.OutOrStdout(), st.Report(a.Accounting.Now()))
				}
				fmt.Fprint(cmd.OutOrStdout(), RenderStats([]core.Stats{st}, a.Accounting.Now()))
				return nil
			})
		},
	}
}

func newStatsAllCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats-all",
		Short: "Show the statistics of every budget in the workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, err := opts.requireWorkspace()
			if err != nil {
				return err
			}
			return opts.run(cmd, func(ctx context.Context, a *App) error {
				res, err := a.Accounting.StatsOfAll(ctx, ws)
				if err != nil {
					return err
				}
				return opts.printStats(cmd.OutOrStdout(), a, res)
			})
		},
	}
}

func newScanCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "List notification enabled budgets that are over their amount",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, err := opts.requireWorkspace()
			if err != nil {
				return err
			}
			return opts.run(cmd, func(ctx context.Context, a *App) error {
				res, err := a.Accounting.ScanExceeded(ctx, ws)
				if err != nil {
					return err
				}
				return opts.printStats(cmd.OutOrStdout(), a, res)
			})
		},
	}
}

func newEntriesCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "entries <budget-id>",
		Short: "List the entries a budget accounts for, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := opts.requireWorkspace()
			if err != nil {
				return err
			}
			id, err := parseBudgetID(args[0])
			if err != nil {
				return err
			}
			return opts.run(cmd, func(ctx context.Context, a *App) error {
				entries, err := a.Accounting.EntriesOf(ctx, ws, id)
				if err != nil {
					return err
				}
				if opts.output == outputJSON {
					return opts.printJSON(cmd.OutOrStdout(), entryViews(entries))
				}
				fmt.Fprint(cmd.OutOrStdout(), RenderEntries(entries))
				return nil
			})
		},
	}
}

type entryView struct {
	ID         int64   `json:"id"`
	Amount     string  `json:"amount"`
	AccountID  int64   `json:"account_id"`
	CategoryID int64   `json:"category_id"`
	Type       string  `json:"type"`
	Tags       []int64 `json:"tags"`
	DateTime   string  `json:"date_time"`
}

func entryViews(entries []core.Entry) []entryView {
	out := make([]entryView, len(entries))
	for i, e := range entries {
		tags := e.Tags
		if tags == nil {
			tags = []int64{}
		}
		out[i] = entryView{
			ID:         e.ID,
			Amount:     e.Amount.StringFixed(2),
			AccountID:  e.AccountID,
			CategoryID: e.CategoryID,
			Type:       e.Type,
			Tags:       tags,
			DateTime:   e.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
		}
	}
	return out
}

func newCheckCommand(opts *rootOptions, name, short string, check func(context.Context, *App, int64, uuid.UUID) (bool, error)) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <budget-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := opts.requireWorkspace()
			if err != nil {
				return err
			}
			id, err := parseBudgetID(args[0])
			if err != nil {
				return err
			}
			return opts.run(cmd, func(ctx context.Context, a *App) error {
				ok, err := check(ctx, a, ws, id)
				if err != nil {
					return notFound(err, ws, id)
				}
				if opts.output == outputJSON {
					return opts.printJSON(cmd.OutOrStdout(), map[string]bool{name: ok})
				}
				fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatBool(ok))
				return nil
			})
		},
	}
}

func newNotifyCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "notify",
		Short: "Run one alert sweep; without --workspace every workspace is swept",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var workspaces []int64
			if opts.workspace > 0 {
				workspaces = []int64{opts.workspace}
			}
			return opts.run(cmd, func(ctx context.Context, a *App) error {
				report, err := a.Sweeper(workspaces).RunOnce(ctx)
				if err != nil {
					return err
				}
				if opts.output == outputJSON {
					return opts.printJSON(cmd.OutOrStdout(), map[string]int{
						"workspaces": report.Workspaces,
						"budgets":    report.Budgets,
						"exceeded":   report.Exceeded,
						"notified":   report.Notified,
						"failed":     report.Failed,
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Swept %d workspace(s): %d budget(s), %d exceeded, %d alert(s) sent, %d failed\n",
					report.Workspaces, report.Budgets, report.Exceeded, report.Notified, report.Failed)
				return nil
			})
		},
	}
}

func newImportCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <fixture.toml>",
		Short: "Load budgets and entries from a TOML fixture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open fixture: %w", err)
			}
			defer file.Close()

			fixture, err := DecodeFixture(file)
			if err != nil {
				return err
			}
			return opts.run(cmd, func(ctx context.Context, a *App) error {
				res, err := Import(ctx, a.Backend.Store, fixture)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d budget(s) and %d entry(ies)\n", res.Budgets, res.Entries)
				return nil
			})
		},
	}
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations to the SQLite database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, func(_ context.Context, a *App) error {
				repo, ok := backend.Underlying(a.Backend.Store).(*storage.SQLiteRepository)
				if !ok {
					fmt.Fprintf(cmd.OutOrStdout(), "Backend %s has no schema to migrate\n", a.Config.DataBackend)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Schema at version %d\n", repo.SchemaVersion())
				return nil
			})
		},
	}
}
