package cli

import (
	"github.com/spf13/cobra"

	"fxstreaks/internal/app"
)

var (
	announceDate string
	announceTop  int
)

var announceCmd = &cobra.Command{
	Use:   "announce",
	Short: "Send a stored report through the configured notifier",
	RunE: func(cmd *cobra.Command, args []string) error {
		date, err := parseDate("date", announceDate)
		if err != nil {
			return err
		}
		return getApp().Announce(cmd.Context(), app.AnnounceOptions{Date: date, TopRows: announceTop})
	},
}

func init() {
	announceCmd.Flags().StringVar(&announceDate, "date", "", "Report date (YYYY-MM-DD, defaults to today)")
	announceCmd.Flags().IntVar(&announceTop, "top", 5, "Rows to quote in the message")
}
