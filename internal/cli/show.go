package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"fxstreaks/internal/app"
)

var (
	showDate  string
	showLimit int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display a stored report",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit < 0 {
			return fmt.Errorf("--limit must not be negative")
		}
		date, err := parseDate("date", showDate)
		if err != nil {
			return err
		}

		opts := app.ShowOptions{
			Date:  date,
			Limit: showLimit,
		}

		return getApp().Show(cmd.Context(), opts, cmd.OutOrStdout())
	},
}

func init() {
	showCmd.Flags().StringVar(&showDate, "date", "", "Report date (YYYY-MM-DD, defaults to today)")
	showCmd.Flags().IntVar(&showLimit, "limit", 0, "Number of rows to display (0 for all)")
}
