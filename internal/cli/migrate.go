package cli

import (
	"github.com/spf13/cobra"

	"fxstreaks/internal/app"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Migrate(cmd.Context())
	},
}

var (
	loadFile      string
	loadBatchSize int
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Import exchange rates from a CSV file",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.LoadOptions{
			File:      loadFile,
			BatchSize: loadBatchSize,
		}
		return getApp().Load(cmd.Context(), opts)
	},
}

func init() {
	loadCmd.Flags().StringVar(&loadFile, "file", "", "CSV with currency_symbol,rate_date,exchange_rate")
	loadCmd.Flags().IntVar(&loadBatchSize, "batch-size", 500, "Rows per upsert batch")
	_ = loadCmd.MarkFlagRequired("file")
}
