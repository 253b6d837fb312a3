package app

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/events"
)

// LambdaResponse is returned to the scheduled trigger.
type LambdaResponse struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

// HandleScheduledEvent generates the report for the day the event fired. All
// collaborators are built for this invocation and released before returning.
func (a *App) HandleScheduledEvent(ctx context.Context, event events.CloudWatchEvent) (LambdaResponse, error) {
	fired := event.Time
	if fired.IsZero() {
		fired = time.Now()
	}
	date := a.Config.ReportDate(fired)

	a.Logger.Info().
		Str("event_id", event.ID).
		Str("date", date.Format(time.DateOnly)).
		Msg("scheduled invocation")

	comps, err := a.Build(ctx, nil)
	if err != nil {
		return LambdaResponse{}, err
	}
	defer comps.Close()
	defer a.pushMetrics(ctx, comps.Metrics)

	res, err := comps.Service.Generate(ctx, date)
	if err != nil {
		return LambdaResponse{}, err
	}

	return LambdaResponse{
		StatusCode: 200,
		Body:       fmt.Sprintf("Report written to %s", res.Location),
	}, nil
}
