package app

import (
	"context"
	"errors"

	"fxstreaks/internal/alerting"
)

// Announce sends a stored report through the configured notifier, which is
// handy for checking channel setup.
func (a *App) Announce(ctx context.Context, opts AnnounceOptions) error {
	if err := prepare(&opts); err != nil {
		return err
	}
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is not enabled")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("no notification channel configured")
	}

	date := a.resolveDate(opts.Date)
	rows, location, err := a.loadReport(ctx, date)
	if err != nil {
		return err
	}

	return notifier.Notify(ctx, alerting.Notification{
		Date:     date,
		Location: location,
		Rows:     rows,
		TopRows:  opts.TopRows,
	})
}
