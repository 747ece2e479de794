package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"salmonrun-notifier/internal/alerting"
	"salmonrun-notifier/internal/cache"
	"salmonrun-notifier/internal/config"
	"salmonrun-notifier/internal/fetcher"
	"salmonrun-notifier/internal/ledger"
	"salmonrun-notifier/internal/quiet"
	"salmonrun-notifier/internal/scheduler"
	"salmonrun-notifier/internal/service"
	"salmonrun-notifier/internal/storage"
)

// ErrLockHeld reports another notifier instance owning the shared ledger.
var ErrLockHeld = errors.New("app: another notifier instance holds the ledger lock")

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config     *config.Config
	ConfigPath string
	Logger     zerolog.Logger
	FS         afero.Fs
	Out        io.Writer
	Now        func() time.Time
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, configPath string, logger zerolog.Logger) *App {
	return &App{
		Config:     cfg,
		ConfigPath: configPath,
		Logger:     logger.With().Str("component", "app").Logger(),
		FS:         afero.NewOsFs(),
		Out:        os.Stdout,
		Now:        time.Now,
	}
}

func (a *App) newFetcher() fetcher.ScheduleFetcher {
	origin := fetcher.NewOrigin(fetcher.OriginOptions{
		URL:       a.Config.Settings.SchedulesAPI,
		Timeout:   a.Config.Fetch.Timeout,
		UserAgent: a.Config.Fetch.UserAgent,
	}, a.Logger)
	c := cache.New(a.FS, a.Config.Storage.CachePath, a.Now, a.Logger)
	return fetcher.NewCached(c, origin, a.Logger)
}

func (a *App) newNotifier() (*alerting.Fanout, error) {
	return alerting.Build(a.Config.Settings.Destinations, alerting.BuildOptions{
		Timeout:    a.Config.Notify.Timeout,
		RatePerSec: a.Config.Notify.RatePerSec,
	}, a.Logger)
}

func (a *App) openStore(ctx context.Context) (storage.LedgerStore, func(), error) {
	store, err := storage.Open(ctx, a.Config.Storage, a.FS, a.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open ledger store: %w", err)
	}
	closer := func() {
		if err := store.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("close ledger store")
		}
	}
	return store, closer, nil
}

func (a *App) serviceOptions() service.Options {
	return service.Options{
		Location: a.Config.Location(),
		Quiet: quiet.Window{
			Start: a.Config.Settings.AlertQuietStart,
			End:   a.Config.Settings.AlertQuietEnd,
		},
		FailureThreshold: a.Config.FailureThreshold(),
		RetryDelay:       a.Config.Fetch.RetryDelay,
		Now:              a.Now,
	}
}

func (a *App) newService(l *ledger.Ledger, notifier alerting.Notifier) *service.Service {
	waiter := scheduler.NewTimerWaiter(a.Now)
	return service.New(a.serviceOptions(), a.newFetcher(), l, notifier, waiter, a.Logger)
}

// lockLedger takes the single-writer lock on stores that support one. Stores
// without a lock return a no-op unlock.
func (a *App) lockLedger(ctx context.Context, store storage.LedgerStore) (func(), error) {
	locker, ok := store.(storage.AdvisoryLocker)
	if !ok {
		return func() {}, nil
	}
	unlock, acquired, err := locker.TryAdvisoryLock(ctx, a.Config.Storage.AdvisoryLockKey)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, ErrLockHeld
	}
	return unlock, nil
}

// withService opens the ledger and builds a service for one-shot commands.
// Commands that write the ledger pass exclusive to hold the writer lock.
func (a *App) withService(ctx context.Context, notifier alerting.Notifier, exclusive bool, fn func(*service.Service, *ledger.Ledger) error) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if exclusive {
		unlock, err := a.lockLedger(ctx, store)
		if err != nil {
			return err
		}
		defer unlock()
	}

	l := ledger.Open(ctx, store, a.Logger)
	return fn(a.newService(l, notifier), l)
}

// Run executes the long-running notifier.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	notifier, err := a.newNotifier()
	if err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	unlock, err := a.lockLedger(ctx, store)
	if err != nil {
		return err
	}
	defer unlock()

	l := ledger.Open(ctx, store, a.Logger)
	svc := a.newService(l, notifier)

	config.Watch(a.ConfigPath, a.Logger, func(cfg *config.Config) {
		svc.ApplySettings(quiet.Window{
			Start: cfg.Settings.AlertQuietStart,
			End:   cfg.Settings.AlertQuietEnd,
		}, cfg.FailureThreshold())
	})

	a.notifySystemd(daemon.SdNotifyReady)
	a.Logger.Info().
		Strs("destinations", notifier.Destinations()).
		Str("timezone", a.Config.Location().String()).
		Int("quiet_start", a.Config.Settings.AlertQuietStart).
		Int("quiet_end", a.Config.Settings.AlertQuietEnd).
		Msg("starting salmon run notifier")

	err = svc.Run(ctx)
	a.notifySystemd(daemon.SdNotifyStopping)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("notifier terminated with error")
		return err
	}

	a.Logger.Info().Time("stopped_at", a.Now()).Msg("notifier stopped")
	return nil
}

func (a *App) notifySystemd(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		a.Logger.Debug().Err(err).Str("state", state).Msg("systemd notify failed")
		return
	}
	if sent {
		a.Logger.Debug().Str("state", state).Msg("systemd notified")
	}
}

// ScheduleOptions configure the schedule listing.
type ScheduleOptions struct {
	Format string
	Limit  int
}

// ExportOptions hold parameters for exporting upcoming rotations.
type ExportOptions struct {
	PNGPath      string
	CSVPath      string
	MaxRotations int
}

// AckOptions configure the ack command.
type AckOptions struct {
	DryRun bool
}

// SimulateOptions configure the simulate-alert command.
type SimulateOptions struct {
	Escalation bool
}
