package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ouladload/internal/config"
)

// NewValidateCmd creates the validate command: lint a pipeline config file
// and exit nonzero when it has errors. Warnings print but do not fail.
func NewValidateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:     "validate",
		Short:   "Validate a pipeline config file",
		Example: `  ouladload validate --config configs/oulad.json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := config.FromFile(configPath)
			if err != nil {
				return err
			}

			issues := config.ValidatePipeline(p)
			for _, iss := range issues {
				cmd.Printf("%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
			}
			if config.HasErrors(issues) {
				return fmt.Errorf("configuration is invalid: %s", configPath)
			}
			cmd.Printf("configuration is valid: %s\n", configPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "configs/oulad.json", "pipeline config JSON path")
	return cmd
}
