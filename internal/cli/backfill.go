package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"fxstreaks/internal/app"
)

var (
	backfillFrom            string
	backfillTo              string
	backfillContinueOnError bool
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Regenerate reports for a range of days",
	RunE: func(cmd *cobra.Command, args []string) error {
		if backfillFrom == "" || backfillTo == "" {
			return fmt.Errorf("--from and --to must be provided")
		}

		from, err := parseDate("from", backfillFrom)
		if err != nil {
			return err
		}
		to, err := parseDate("to", backfillTo)
		if err != nil {
			return err
		}

		if to.Before(*from) {
			return fmt.Errorf("--from must not be after --to")
		}

		opts := app.BackfillOptions{
			From:            *from,
			To:              *to,
			ContinueOnError: backfillContinueOnError,
		}

		return getApp().Backfill(cmd.Context(), opts)
	},
}

func init() {
	backfillCmd.Flags().StringVar(&backfillFrom, "from", "", "First day (YYYY-MM-DD, inclusive)")
	backfillCmd.Flags().StringVar(&backfillTo, "to", "", "Last day (YYYY-MM-DD, inclusive)")
	backfillCmd.Flags().BoolVar(&backfillContinueOnError, "continue-on-error", false, "Keep going after a failed day")
}
