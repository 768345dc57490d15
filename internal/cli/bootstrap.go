package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atriumhub/atrium/internal/config"
)

func newBootstrapCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Write a default atrium.yaml settings file if one does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := config.Bootstrap(path)
			if err != nil {
				return err
			}
			if result.Created {
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", result.SettingsFile)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s already exists\n", result.SettingsFile)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "settings file path (default: ./atrium.yaml, or $ATRIUM_SETTINGS_FILE)")
	return cmd
}
