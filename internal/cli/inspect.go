package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"ouladload/internal/config"
	"ouladload/internal/etl"
)

// NewInspectCmd creates the inspect command: summarize one or more source
// directories (files, row counts, sizes, fingerprints) without touching the
// store. A directory missing an essential file fails the command so scripts
// can gate a load on it.
func NewInspectCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "inspect <dir> [dir...]",
		Short: "Summarize source directories without loading anything",
		Args:  cobra.MinimumNArgs(1),
		Example: `  ouladload inspect ./data/oulad
  ouladload inspect ./extract-2013 ./extract-2014`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := config.Default()
			if configPath != "" {
				var err error
				p, err = config.FromFile(configPath)
				if err != nil {
					return err
				}
			}
			p.Normalize()

			names := make([]string, 0, len(p.Plan))
			for _, step := range p.Plan {
				names = append(names, step.File)
			}

			invalid := 0
			for _, dir := range args {
				sum, err := etl.Summarize(cmd.Context(), dir, names)
				if err != nil {
					return fmt.Errorf("inspect %s: %w", dir, err)
				}
				renderSummary(cmd, sum)
				if !sum.Valid {
					invalid++
				}
			}
			if invalid > 0 {
				return fmt.Errorf("%d source(s) missing essential files", invalid)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "pipeline config JSON path")
	return cmd
}

func renderSummary(cmd *cobra.Command, sum etl.Summary) {
	state := "valid"
	if !sum.Valid {
		state = "INVALID, missing " + strings.Join(sum.Missing, ", ")
	}
	cmd.Printf("\nsource %s: %s\n", sum.Path, state)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tROWS\tCOLS\tSIZE\tFINGERPRINT")
	for _, f := range sum.Files {
		if f.Err != nil {
			fmt.Fprintf(w, "%s\t-\t-\t%s\terror: %v\n",
				f.Name, humanize.Bytes(uint64(f.SizeBytes)), f.Err)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			f.Name, humanize.Comma(f.Rows), f.Columns,
			humanize.Bytes(uint64(f.SizeBytes)), f.Fingerprint)
	}
	w.Flush()
	cmd.Printf("total %s records across %d files\n",
		humanize.Comma(sum.TotalRecords), len(sum.Files))
	if sum.Errors > 0 {
		cmd.PrintErrf("warning: %d file(s) could not be read\n", sum.Errors)
	}
}
