package root

import (
	"github.com/spf13/cobra"

	"github.com/wilsonllucena/igreja-conciliada/apps/cli/app"
)

// rootCmd is the base command of the church admin CLI. Subcommands are attached in wire.go.
var rootCmd = &cobra.Command{
	Use:           "igreja",
	Short:         "Igreja Conciliada admin CLI",
	Long:          "Manage a church from the terminal: members, leaders, appointments, events, users and church settings.",
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringP("output", "o", app.OutputTable, "output format: table or yaml")
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// Root returns the mutable root command for wiring from subpackages.
func Root() *cobra.Command {
	return rootCmd
}
