// Package cli implements the pii-tagger command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"pii-tagger/internal/domain"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := newRootCmd(defaultDeps())
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		printError(os.Stderr, err)
		return 1
	}
	return 0
}

func printError(w io.Writer, err error) {
	var cfgErr *domain.ConfigurationError
	if errors.As(err, &cfgErr) {
		_, _ = fmt.Fprintf(w, "ERROR: %s\n", cfgErr.Message)
		return
	}
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
}

// rootFlags are the persistent flags shared by every subcommand.
type rootFlags struct {
	configPath string
	profile    string
	output     string
}

func newRootCmd(deps *deps) *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:           "pii-tagger",
		Short:         "Tag and mask PII columns in a Snowflake schema",
		Long:          "Classifies the tables of one database schema, tags PII columns, binds a masking policy to the tag, and grants read access to the unmasked and masked roles.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return validateOutputFormat(flags.output)
		},
	}

	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "Profile file (default ~/.pii-tagger/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&flags.profile, "profile", "p", "", "Config profile to use")
	rootCmd.PersistentFlags().StringVarP(&flags.output, "output", "o", "table", "Output format (table, json)")

	rootCmd.AddCommand(newRunCmd(flags, deps))
	rootCmd.AddCommand(newHistoryCmd(flags, deps))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}
