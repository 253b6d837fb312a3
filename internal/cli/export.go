package cli

import (
	"github.com/spf13/cobra"

	"fxstreaks/internal/app"
)

var (
	exportDate    string
	exportPNGPath string
	exportCSVPath string
	exportWidth   int
	exportHeight  int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a stored report as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		date, err := parseDate("date", exportDate)
		if err != nil {
			return err
		}

		opts := app.ExportOptions{
			Date:    date,
			PNGPath: exportPNGPath,
			CSVPath: exportCSVPath,
			Width:   exportWidth,
			Height:  exportHeight,
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportDate, "date", "", "Report date (YYYY-MM-DD, defaults to today)")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportWidth, "width", 0, "Chart width in pixels (defaults to config)")
	exportCmd.Flags().IntVar(&exportHeight, "height", 0, "Chart height in pixels (defaults to config)")
}
