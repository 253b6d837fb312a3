package cli

import (
	"time"

	"github.com/spf13/cobra"
)

var runStartupDelay time.Duration

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the daily report scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := getApp()
		if cmd.Flags().Changed("startup-delay") {
			a.Config.Scheduler.StartupDelay = runStartupDelay
		}
		return a.Run(cmd.Context())
	},
}

func init() {
	runCmd.Flags().DurationVar(&runStartupDelay, "startup-delay", 0, "Wait before scheduling the first run (overrides config)")
}
