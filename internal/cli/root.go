// Package cli wires Atrium's cobra subcommands: serve runs the hub, and
// bootstrap writes a default settings file without starting it.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd builds the atriumd root command.
func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "atriumd",
		Short:        "Atrium — a shared coordination hub for agents",
		SilenceUsage: true,
	}

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newBootstrapCmd())

	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.SetVersionTemplate("{{.Version}}\n")
	if version != "" {
		cmd.Version = version
	} else {
		cmd.Version = "dev"
	}

	return cmd
}
