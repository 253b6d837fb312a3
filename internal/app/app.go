package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/rs/zerolog"

	"fxstreaks/internal/alerting"
	"fxstreaks/internal/artifact"
	"fxstreaks/internal/config"
	"fxstreaks/internal/logging"
	"fxstreaks/internal/metrics"
	"fxstreaks/internal/scheduler"
	"fxstreaks/internal/secrets"
	"fxstreaks/internal/service"
	"fxstreaks/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logging.Component(logger, "app")}
}

func (a *App) awsConfig(ctx context.Context) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if a.Config.AWS.Region != "" {
		opts = append(opts, awsconfig.WithRegion(a.Config.AWS.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}

func (a *App) newSecretsProvider(ctx context.Context) (secrets.Provider, error) {
	switch a.Config.Secrets.Provider {
	case config.SecretsFile:
		return secrets.NewFileProvider(a.Config.Secrets.Path), nil
	case config.SecretsManager:
		awsCfg, err := a.awsConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", secrets.ErrConfiguration, err)
		}
		client := secretsmanager.NewFromConfig(awsCfg, func(o *secretsmanager.Options) {
			if a.Config.AWS.Endpoint != "" {
				o.BaseEndpoint = aws.String(a.Config.AWS.Endpoint)
			}
		})
		return secrets.NewSecretsManagerProvider(client, a.Logger), nil
	default:
		return nil, nil
	}
}

// resolveDSN prefers credentials from the configured secret over database.dsn.
// Credentials are always resolved before any connection is attempted.
func (a *App) resolveDSN(ctx context.Context) (string, error) {
	provider, err := a.newSecretsProvider(ctx)
	if err != nil {
		return "", err
	}
	if provider == nil {
		return a.Config.Database.DSN, nil
	}
	creds, err := provider.Fetch(ctx, a.Config.Secrets.Name)
	if err != nil {
		return "", err
	}
	return creds.DSN(), nil
}

// openStore connects the configured rate store. The returned closer is never
// nil on success.
func (a *App) openStore(ctx context.Context) (storage.RateStore, func(), error) {
	db := a.Config.Database
	if db.Driver == config.DriverSQLite {
		store, err := storage.OpenSQLite(ctx, db.SQLitePath, db.QueryTimeout)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}

	dsn, err := a.resolveDSN(ctx)
	if err != nil {
		return nil, nil, err
	}
	if dsn == "" {
		return nil, nil, fmt.Errorf("%w: neither secrets.provider nor database.dsn is configured", secrets.ErrConfiguration)
	}

	pool, err := storage.NewPool(ctx, db, dsn)
	if err != nil {
		return nil, nil, err
	}
	store := storage.NewPostgresStore(pool, db.QueryTimeout)
	return store, store.Close, nil
}

func (a *App) newArtifactStore(ctx context.Context) (artifact.Store, error) {
	cfg := a.Config.Artifacts
	if cfg.Backend == config.ArtifactBackendFS {
		return artifact.NewFSStore(cfg.Dir), nil
	}

	awsCfg, err := a.awsConfig(ctx)
	if err != nil {
		return nil, err
	}
	client := artifact.NewS3Client(awsCfg, a.Config.AWS.Endpoint, cfg.UsePathStyle)
	return artifact.NewS3Store(client, cfg.Bucket, a.Logger), nil
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Enabled && a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, cfg.Timeout, a.Logger)
	}
	return nil
}

// Components holds everything one report run needs. Close releases them.
type Components struct {
	Service   *service.Service
	Store     storage.RateStore
	Artifacts artifact.Store
	Metrics   *metrics.Recorder
	closers   []func()
}

// Close releases held resources in reverse order.
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

// Build wires the report service. sched may be nil for one-shot runs.
func (a *App) Build(ctx context.Context, sched *scheduler.Scheduler) (*Components, error) {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	artifacts, err := a.newArtifactStore(ctx)
	if err != nil {
		closeStore()
		return nil, err
	}

	recorder := metrics.New()
	svc := service.New(a.Config, sched, store, artifacts, a.newNotifier(), recorder, a.Logger)
	return &Components{
		Service:   svc,
		Store:     store,
		Artifacts: artifacts,
		Metrics:   recorder,
		closers:   []func(){closeStore},
	}, nil
}

// pushMetrics delivers run metrics when a Pushgateway is configured.
func (a *App) pushMetrics(ctx context.Context, recorder *metrics.Recorder) {
	if !a.Config.Metrics.Enabled {
		return
	}
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := recorder.Push(pushCtx, a.Config.Metrics.PushgatewayURL, a.Config.Metrics.Job); err != nil {
		a.Logger.Warn().Err(err).Msg("failed to push metrics")
	}
}

// Run executes the long-running daily report loop.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched, err := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		Offset:       a.Config.Scheduler.Offset,
		StartupDelay: a.Config.Scheduler.StartupDelay,
		Location:     a.Config.Location(),
	}, a.Logger)
	if err != nil {
		return err
	}

	comps, err := a.Build(ctx, sched)
	if err != nil {
		return err
	}
	defer comps.Close()

	a.Logger.Info().
		Dur("offset", a.Config.Scheduler.Offset).
		Str("timezone", a.Config.Report.Timezone).
		Msg("starting report scheduler")

	err = comps.Service.Run(ctx)
	a.pushMetrics(ctx, comps.Metrics)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("scheduler terminated with error")
		return err
	}

	a.Logger.Info().Msg("report scheduler stopped")
	return nil
}

// resolveDate defaults an unset date to today in the report timezone.
func (a *App) resolveDate(date *time.Time) time.Time {
	if date != nil {
		return *date
	}
	return a.Config.ReportDate(time.Now())
}
