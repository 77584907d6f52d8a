package cli

import (
	"os"

	"reservo/config"
	"reservo/utils"

	"github.com/spf13/cobra"
)

// NewRootCommand creates the reservo command tree.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reservo",
		Short: "Restaurant reservation server",
		Long:  "Booking API, admin dashboard, realtime listener and webhook relay for restaurant reservations.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.LoadConfig()
			utils.InitializeLogger()
		},
		SilenceUsage: true,
	}

	cmd.AddCommand(NewServeCommand())
	cmd.AddCommand(NewWorkerCommand())
	cmd.AddCommand(NewHashPasswordCommand())
	cmd.AddCommand(NewEnsureIndexesCommand())

	return cmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
