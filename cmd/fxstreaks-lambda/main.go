package main

import (
	"context"
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"fxstreaks/internal/app"
	"fxstreaks/internal/config"
	"fxstreaks/internal/logging"
)

func handler(ctx context.Context, event events.CloudWatchEvent) (app.LambdaResponse, error) {
	cfg, err := config.Load(os.Getenv("FXSTREAKS_CONFIG"))
	if err != nil {
		return app.LambdaResponse{}, fmt.Errorf("load config: %w", err)
	}
	logger := logging.NewLogger(cfg.Logging)
	return app.NewApp(cfg, logger).HandleScheduledEvent(ctx, event)
}

func main() {
	lambda.Start(handler)
}
