package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"ouladload/internal/config"
	"ouladload/internal/storage"
)

// NewStatusCmd creates the status command: list every checkpoint the progress
// table holds, one row per destination table.
func NewStatusCmd() *cobra.Command {
	var (
		configPath  string
		storageKind string
		dsn         string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show per-table load checkpoints",
		Example: `  ouladload status --storage sqlite --dsn file:oulad.db
  ouladload status --config configs/oulad.json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := config.Default()
			if configPath != "" {
				var err error
				p, err = config.FromFile(configPath)
				if err != nil {
					return err
				}
				p.Normalize()
			}
			if cmd.Flags().Changed("storage") {
				p.Storage.Kind = storageKind
			}
			if cmd.Flags().Changed("dsn") {
				p.Storage.DB.DSN = dsn
			}

			ctx := cmd.Context()
			repo, err := storage.New(ctx, storage.Config{Kind: p.Storage.Kind, DSN: p.Storage.DB.DSN})
			if err != nil {
				return fmt.Errorf("open storage: %w", err)
			}
			defer repo.Close()

			cps, err := repo.Checkpoints(ctx)
			if err != nil {
				return fmt.Errorf("read checkpoints: %w", err)
			}
			if len(cps) == 0 {
				cmd.Println("no checkpoints recorded")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TABLE\tLAST BATCH\tUPDATED")
			for _, cp := range cps {
				fmt.Fprintf(w, "%s\t%d\t%s\n",
					cp.Table, cp.LastCommitted, cp.UpdatedAt.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "pipeline config JSON path")
	cmd.Flags().StringVar(&storageKind, "storage", "", "storage backend: postgres, sqlite, mysql, mssql")
	cmd.Flags().StringVar(&dsn, "dsn", "", "backend connection string")

	return cmd
}
