// Package cli assembles the ouladload command tree. Commands parse flags,
// open the configured repository, and hand off to internal/etl; no load
// semantics live here.
package cli

import (
	"github.com/spf13/cobra"

	"ouladload/internal/logging"
)

// NewRootCmd builds the ouladload root command. ver is stamped by the build.
func NewRootCmd(ver string) *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "ouladload",
		Short: "Resumable chunked loader for the OULAD CSV exports",
		Long: `ouladload streams the seven OULAD CSV files into a relational store in
fixed-size batches. Each batch commits together with its checkpoint, so an
interrupted load resumes from the last committed batch when rerun.`,
		Version:      ver,
		SilenceUsage: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			logging.Init(logLevel)
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level: trace, debug, info, warn, error")

	cmd.AddCommand(NewLoadCmd(), NewStatusCmd(), NewInspectCmd(), NewValidateCmd())
	return cmd
}
