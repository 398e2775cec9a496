package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"pii-tagger/internal/config"
	internaldb "pii-tagger/internal/db"
	"pii-tagger/internal/db/repository"
	"pii-tagger/internal/domain"
	"pii-tagger/internal/engine"
	"pii-tagger/internal/service/workflow"
)

type runFlags struct {
	tables          string
	excludes        string
	noClassify      bool
	debug           bool
	dryRun          bool
	grantMaskedRole bool
	ledger          string
}

func newRunCmd(root *rootFlags, deps *deps) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Classify, tag, mask, and grant read access for one schema",
		Long: `Runs the tagging workflow against SNOWSQL_DB.SNOWSQL_SCHEMA.

Credentials come from SNOWSQL_USER and SNOWSQL_PASS. A .env file in the
working directory is read first; variables already set take precedence.`,
		Example: `  pii-tagger run
  pii-tagger run --tables CUSTOMERS,ORDERS
  pii-tagger run --excludes AUDIT_LOG --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveRunConfig(cmd, root, flags, deps)
			if err != nil {
				return err
			}
			logger := newLogger(deps.stderr, cfg.SlogLevel(), cfg.LogFormat)

			opener, err := deps.opener(cfg, logger)
			if err != nil {
				return err
			}
			if cfg.DryRun {
				opener = &engine.DryRunOpener{Inner: opener, Logger: logger}
			}

			var ledger domain.RunLedger
			if cfg.LedgerPath != "" {
				db, err := internaldb.OpenLedger(cfg.LedgerPath)
				if err != nil {
					return fmt.Errorf("open run ledger: %w", err)
				}
				defer db.Close() //nolint:errcheck
				ledger = repository.NewRunLedgerRepo(db)
			}

			wf := workflow.New(opener, deps.oracle(logger), ledger, workflow.OptionsFromConfig(cfg), logger)
			report, runErr := wf.Run(cmd.Context())

			if err := printReport(cmd.OutOrStdout(), getOutputFormat(cmd), report); err != nil {
				logger.Warn("print report failed", "error", err)
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&flags.tables, "tables", "", "Override: comma separated list of tables to tag")
	cmd.Flags().StringVar(&flags.excludes, "excludes", "", "Override: comma separated list of tables to exclude")
	cmd.Flags().BoolVar(&flags.noClassify, "noclassify", false, "Disable the classifier portion of the run")
	cmd.Flags().BoolVar(&flags.debug, "debug", false, "Enable debug logging")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Log statements that change state instead of executing them")
	cmd.Flags().BoolVar(&flags.grantMaskedRole, "grant-masked-role", false, "Also create and grant read access to the masked role")
	cmd.Flags().StringVar(&flags.ledger, "ledger", "", "SQLite run ledger path (env: PII_LEDGER_PATH)")

	return cmd
}

// resolveRunConfig applies precedence flag > env > profile > default and
// finalizes the result.
func resolveRunConfig(cmd *cobra.Command, root *rootFlags, flags *runFlags, deps *deps) (*config.Config, error) {
	if deps.dotEnv != "" {
		if err := config.LoadDotEnv(deps.dotEnv); err != nil {
			return nil, domain.ErrConfiguration("load %s: %v", deps.dotEnv, err)
		}
	}
	profile, err := loadProfile(root.configPath, root.profile)
	if err != nil {
		return nil, asConfigurationError(err)
	}
	cfg, err := config.Load(profile)
	if err != nil {
		return nil, err
	}

	applyRunFlags(cmd.Flags(), flags, cfg)

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyRunFlags copies every flag the user set onto cfg.
func applyRunFlags(fs *pflag.FlagSet, flags *runFlags, cfg *config.Config) {
	if fs.Changed("tables") {
		cfg.Tables = config.SplitList(flags.tables)
	}
	if fs.Changed("excludes") {
		cfg.Excludes = config.SplitList(flags.excludes)
	}
	if fs.Changed("noclassify") {
		cfg.NoClassify = flags.noClassify
	}
	if fs.Changed("debug") {
		cfg.Debug = flags.debug
	}
	if fs.Changed("dry-run") {
		cfg.DryRun = flags.dryRun
	}
	if fs.Changed("grant-masked-role") {
		cfg.GrantMaskedRole = flags.grantMaskedRole
	}
	if fs.Changed("ledger") {
		cfg.LedgerPath = flags.ledger
	}
}

func asConfigurationError(err error) error {
	var cfgErr *domain.ConfigurationError
	if errors.As(err, &cfgErr) {
		return err
	}
	return domain.ErrConfiguration("%v", err)
}

type reportJSON struct {
	RunID       string            `json:"run_id"`
	State       domain.RunState   `json:"state"`
	Transitions []domain.RunState `json:"transitions"`
	Tables      []tableJSON       `json:"tables"`
	Error       string            `json:"error,omitempty"`
	Teardown    string            `json:"teardown_error,omitempty"`
}

type tableJSON struct {
	Table         string              `json:"table"`
	Outcome       domain.TableOutcome `json:"outcome"`
	TaggedColumns []string            `json:"tagged_columns"`
	Granted       bool                `json:"granted"`
	Error         string              `json:"error,omitempty"`
}

func tableResultJSON(r domain.TableResult) tableJSON {
	t := tableJSON{
		Table:         r.Table.Qualified(),
		Outcome:       r.Outcome,
		TaggedColumns: r.TaggedColumns,
		Granted:       r.Granted,
	}
	if t.TaggedColumns == nil {
		t.TaggedColumns = []string{}
	}
	if r.Error != nil {
		t.Error = *r.Error
	}
	return t
}

func printReport(w io.Writer, format string, report *workflow.Report) error {
	if format == "json" {
		out := reportJSON{
			RunID:       report.RunID,
			State:       report.State,
			Transitions: report.Transitions,
			Tables:      make([]tableJSON, 0, len(report.Tables)),
		}
		for _, t := range report.Tables {
			out.Tables = append(out.Tables, tableResultJSON(t))
		}
		if report.Err != nil {
			out.Error = report.Err.Error()
		}
		if report.TeardownErr != nil {
			out.Teardown = report.TeardownErr.Error()
		}
		return printJSON(w, out)
	}

	status := color.GreenString("✓") + " run " + report.RunID + " " + string(report.State)
	if report.State == domain.StateAborted {
		status = color.RedString("✗") + " run " + report.RunID + " " + string(report.State)
	}
	if _, err := fmt.Fprintln(w, status); err != nil {
		return err
	}
	if len(report.Tables) == 0 {
		return nil
	}
	return printTableResults(w, report.Tables)
}

func printTableResults(w io.Writer, results []domain.TableResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TABLE\tOUTCOME\tTAGGED COLUMNS\tGRANTED\tERROR")
	for _, r := range results {
		errMsg := ""
		if r.Error != nil {
			errMsg = *r.Error
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n",
			r.Table.Qualified(), r.Outcome, strings.Join(r.TaggedColumns, ","), r.Granted, errMsg)
	}
	return tw.Flush()
}
