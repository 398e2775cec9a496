package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	internaldb "pii-tagger/internal/db"
	"pii-tagger/internal/db/repository"
	"pii-tagger/internal/domain"
)

func newHistoryCmd(root *rootFlags, _ *deps) *cobra.Command {
	var (
		ledgerPath string
		limit      int
		runID      string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs from the run ledger",
		Example: `  pii-tagger history --ledger runs.sqlite
  pii-tagger history --ledger runs.sqlite --run 0192f0c4-...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := ledgerPath
			if !cmd.Flags().Changed("ledger") {
				path = os.Getenv("PII_LEDGER_PATH")
				if path == "" {
					if p, err := loadProfile(root.configPath, root.profile); err == nil && p != nil {
						path = p.LedgerPath
					}
				}
			}
			if path == "" {
				return domain.ErrConfiguration("no run ledger configured: pass --ledger or set PII_LEDGER_PATH")
			}

			db, err := internaldb.OpenLedger(path)
			if err != nil {
				return fmt.Errorf("open run ledger: %w", err)
			}
			defer db.Close() //nolint:errcheck
			repo := repository.NewRunLedgerRepo(db)

			out := cmd.OutOrStdout()
			if runID != "" {
				results, err := repo.ListTableResults(cmd.Context(), runID)
				if err != nil {
					return err
				}
				if getOutputFormat(cmd) == "json" {
					rows := make([]tableJSON, 0, len(results))
					for _, r := range results {
						rows = append(rows, tableResultJSON(r))
					}
					return printJSON(out, rows)
				}
				return printTableResults(out, results)
			}

			runs, err := repo.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(out, runsJSON(runs))
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "RUN ID\tTARGET\tSTATE\tDRY RUN\tSTARTED\tERROR")
			for _, r := range runs {
				errMsg := ""
				if r.Error != nil {
					errMsg = *r.Error
				}
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\t%s\n",
					r.ID, r.Target.Qualified(), r.State, r.DryRun, r.StartedAt.Format(time.RFC3339), errMsg)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&ledgerPath, "ledger", "", "SQLite run ledger path (env: PII_LEDGER_PATH)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")
	cmd.Flags().StringVar(&runID, "run", "", "Show the table outcomes of one run")

	return cmd
}

type runJSON struct {
	ID         string          `json:"id"`
	Target     string          `json:"target"`
	Warehouse  string          `json:"warehouse"`
	State      domain.RunState `json:"state"`
	DryRun     bool            `json:"dry_run"`
	Classify   bool            `json:"classify"`
	Error      *string         `json:"error,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

func runsJSON(runs []domain.Run) []runJSON {
	out := make([]runJSON, 0, len(runs))
	for _, r := range runs {
		out = append(out, runJSON{
			ID:         r.ID,
			Target:     r.Target.Qualified(),
			Warehouse:  r.Target.Warehouse,
			State:      r.State,
			DryRun:     r.DryRun,
			Classify:   r.Classify,
			Error:      r.Error,
			StartedAt:  r.StartedAt,
			FinishedAt: r.FinishedAt,
		})
	}
	return out
}
