package app

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sandy01030103/gold-price-etl/internal/alerting"
	"github.com/Sandy01030103/gold-price-etl/internal/config"
	"github.com/Sandy01030103/gold-price-etl/internal/extractor"
	"github.com/Sandy01030103/gold-price-etl/internal/normalizer"
	"github.com/Sandy01030103/gold-price-etl/internal/pipeline"
	"github.com/Sandy01030103/gold-price-etl/internal/scheduler"
	"github.com/Sandy01030103/gold-price-etl/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Out    io.Writer

	now func() time.Time
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{
		Config: cfg,
		Logger: logger.With().Str("component", "app").Logger(),
		Out:    os.Stdout,
		now:    time.Now,
	}
}

func (a *App) shape() extractor.Shape {
	return extractor.Shape(a.Config.Source.Shape)
}

func (a *App) layout() extractor.Layout {
	l := a.Config.Source.Layout
	return extractor.Layout{
		Shape:        a.shape(),
		TableTitle:   l.TableTitle,
		TableLabel:   l.TableLabel,
		PriceClass:   l.PriceClass,
		ProductLabel: l.ProductLabel,
		SellingLabel: l.SellingLabel,
		BuyingLabel:  l.BuyingLabel,
	}
}

func (a *App) newExtractor() *extractor.HTTP {
	src := a.Config.Source
	return extractor.New(extractor.Options{
		URL:           src.URL,
		Timeout:       src.Timeout,
		UserAgent:     src.UserAgent,
		Layout:        a.layout(),
		DebugDumpPath: src.DebugDumpPath,
		MaxBodyBytes:  src.MaxBodyBytes,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if !a.Config.Alerting.Enabled || !a.Config.Alerting.Telegram.Enabled {
		return nil
	}
	cfg := a.Config.Alerting.Telegram
	return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, a.Config.Alerting.Timeout, a.Logger)
}

// openStore opens the configured table and makes sure it exists. Each run owns
// its handle; callers must invoke the returned closer.
func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	store, err := storage.Open(ctx, a.Config.Database, a.shape())
	if err != nil {
		return nil, nil, err
	}
	if err := store.Initialize(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}

	closer := func() {
		if err := store.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("close store")
		}
	}
	return store, closer, nil
}

var (
	errNoDatabase = errors.New("database file not found")
	errNoTable    = errors.New("price table not created yet")
)

// openHistory opens the store for read-only commands without creating
// anything: a missing sqlite file returns errNoDatabase and a database without
// the price table returns errNoTable.
func (a *App) openHistory(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.Driver == config.DriverSQLite {
		if _, err := os.Stat(a.Config.Database.Path); errors.Is(err, os.ErrNotExist) {
			return nil, nil, errNoDatabase
		}
	}

	store, err := storage.Open(ctx, a.Config.Database, a.shape())
	if err != nil {
		return nil, nil, err
	}
	closer := func() {
		if err := store.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("close store")
		}
	}

	exists, err := store.TableExists(ctx)
	if err != nil {
		closer()
		return nil, nil, err
	}
	if !exists {
		closer()
		return nil, nil, errNoTable
	}
	return store, closer, nil
}

// reportedError marks a failure that has already been logged.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }

func (e *reportedError) Unwrap() error { return e.err }

// IsReported reports whether err was already logged by the app, so the caller
// only needs to set the exit status.
func IsReported(err error) bool {
	var r *reportedError
	return errors.As(err, &r)
}

// runOnce is one independent pipeline execution with its own store handle.
func (a *App) runOnce(ctx context.Context, fetchTime time.Time) (pipeline.Outcome, error) {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	defer closeStore()

	p := pipeline.New(a.newExtractor(), store, a.newNotifier(), pipeline.Options{
		SourceURL:       a.Config.Source.URL,
		NotifyOnWarning: a.Config.Alerting.OnWarning,
	}, a.Logger)

	return p.RunOnce(ctx, fetchTime)
}

// Run executes a single ETL run. A Warning run succeeds; fetch, parse and
// storage failures are returned.
func (a *App) Run(ctx context.Context) error {
	a.Logger.Info().Str("url", a.Config.Source.URL).Str("shape", a.Config.Source.Shape).Msg("starting ETL process")

	outcome, err := a.runOnce(ctx, a.now())
	if err != nil {
		a.logFailure(err)
		return &reportedError{err: err}
	}

	if outcome.Status == normalizer.StatusWarning {
		a.Logger.Info().Str("status", string(outcome.Status)).Msg("ETL process finished without storing")
		return nil
	}
	a.Logger.Info().Int64("id", outcome.ID).Str("status", string(outcome.Status)).Msg("ETL process finished")
	return nil
}

func (a *App) logFailure(err error) {
	var fetchErr *extractor.FetchError
	var parseErr *extractor.ParseError
	switch {
	case errors.As(err, &fetchErr):
		evt := a.Logger.Error().Err(fetchErr.Err).Str("url", fetchErr.URL)
		if fetchErr.StatusCode != 0 {
			evt = evt.Int("status_code", fetchErr.StatusCode)
		}
		evt.Msg("fetch failed")
	case errors.As(err, &parseErr):
		a.Logger.Error().Err(err).Str("element", parseErr.Element).Msg("page layout not recognised")
	default:
		a.Logger.Error().Err(err).Msg("ETL process failed")
	}
}

// Watch repeats independent runs on the configured interval or cron schedule
// until interrupted.
func (a *App) Watch(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched, err := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		Cron:         a.Config.Scheduler.Cron,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)
	if err != nil {
		return err
	}

	a.Logger.Info().
		Dur("interval", a.Config.Scheduler.Interval).
		Str("cron", a.Config.Scheduler.Cron).
		Msg("starting watch loop")

	err = sched.Run(ctx, func(ctx context.Context, fetchTime time.Time) error {
		// failures are logged here; the next run still fires
		if _, err := a.runOnce(ctx, fetchTime); err != nil {
			a.logFailure(err)
		}
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("watch loop terminated with error")
		return err
	}

	a.Logger.Info().Msg("watch loop stopped")
	return nil
}

// ExportOptions hold parameters for exporting stored readings.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// ChartOptions configure the chart command. Output overrides the generated
// file name under chart.output_dir.
type ChartOptions struct {
	Limit  int
	Output string
}
