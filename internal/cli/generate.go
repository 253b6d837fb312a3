package cli

import (
	"github.com/spf13/cobra"

	"fxstreaks/internal/app"
)

var (
	generateDate   string
	generateDryRun bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate the streak report for one day",
	RunE: func(cmd *cobra.Command, args []string) error {
		date, err := parseDate("date", generateDate)
		if err != nil {
			return err
		}

		opts := app.GenerateOptions{
			Date:   date,
			DryRun: generateDryRun,
		}
		_, err = getApp().Generate(cmd.Context(), opts, cmd.OutOrStdout())
		return err
	},
}

func init() {
	generateCmd.Flags().StringVar(&generateDate, "date", "", "Report date (YYYY-MM-DD, defaults to today)")
	generateCmd.Flags().BoolVar(&generateDryRun, "dry-run", false, "Print the report instead of storing it")
}
