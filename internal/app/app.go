package app

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/animesync/internal/actions"
	"github.com/varoOP/animesync/internal/cache"
	"github.com/varoOP/animesync/internal/catalog"
	"github.com/varoOP/animesync/internal/config"
	"github.com/varoOP/animesync/internal/control"
	"github.com/varoOP/animesync/internal/database"
	"github.com/varoOP/animesync/internal/domain"
	"github.com/varoOP/animesync/internal/logger"
	"github.com/varoOP/animesync/internal/notification"
	"github.com/varoOP/animesync/internal/outbox"
	"github.com/varoOP/animesync/internal/reconcile"
	"github.com/varoOP/animesync/internal/remote"
	"github.com/varoOP/animesync/internal/repository"
	"github.com/varoOP/animesync/internal/scheduler"
)

// App represents the main application with all dependencies initialized
type App struct {
	log    zerolog.Logger
	config *domain.Config

	db       *database.DB
	sessions *repository.FileRepository

	notifier   *notification.Service
	cache      *cache.Service
	outbox     *outbox.Service
	pool       *remote.Pool
	reconciler *reconcile.Reconciler
	scheduler  *scheduler.Scheduler
	actions    *actions.Service
	resolver   *catalog.Resolver
	scraper    *catalog.Scraper
	daemon     *control.Client
}

// NewApp creates a new application instance with all dependencies initialized
func NewApp() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return New(logger.NewLoggerWithLevel(cfg.LogLevel), cfg)
}

// New wires the application from an already loaded configuration
func New(log zerolog.Logger, cfg *domain.Config) (*App, error) {
	db, err := database.NewDB(cfg.DataDir, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	sessions := repository.NewFileRepository(log, cfg.DataDir)
	notifier := notification.NewService(log, notification.NewHub(log), cfg.DiscordWebhookURL)

	cacheService := cache.NewService(log, database.NewCacheRepo(log, db), notifier)
	outboxService := outbox.NewService(log, database.NewOutboxRepo(log, db))

	pool := remote.NewPool(log, remote.Options{
		Timeout:           cfg.HTTPTimeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
	})

	reconciler := reconcile.New(log, cacheService, outboxService, sessions, pool.Dialer(), notifier)
	sched := scheduler.New(log, reconciler, cfg.Debounce, cfg.SyncInterval)

	resolver := catalog.NewResolver(log, sessions, func(serverURL string) catalog.AppInfoSource {
		return pool.Get(serverURL)
	}, cfg.AnimeSamaURL)

	return &App{
		log:        log,
		config:     cfg,
		db:         db,
		sessions:   sessions,
		notifier:   notifier,
		cache:      cacheService,
		outbox:     outboxService,
		pool:       pool,
		reconciler: reconciler,
		scheduler:  sched,
		actions:    actions.NewService(log, sessions, cacheService, outboxService, sched),
		resolver:   resolver,
		scraper:    catalog.NewScraper(log, cfg.HTTPTimeout),
		daemon:     control.NewClient(cfg.ControlAddr, cfg.HTTPTimeout),
	}, nil
}

// Close stops the scheduler, waits for pending notifications, and closes the database
func (a *App) Close() error {
	a.scheduler.Close()
	a.notifier.Wait()
	return a.db.Close()
}

// Run is the daemon: it serves the control endpoint and drives the
// scheduler until ctx is canceled.
func (a *App) Run(ctx context.Context) error {
	l, err := net.Listen("tcp", a.config.ControlAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.config.ControlAddr, err)
	}
	return a.Serve(ctx, l)
}

// Serve is Run on an existing listener
func (a *App) Serve(ctx context.Context, l net.Listener) error {
	srv := control.NewServer(a.log, l.Addr().String(), control.Deps{
		Dispatcher: a.scheduler,
		Intake:     a.actions,
		Cache:      a.cache,
		Outbox:     a.outbox,
		Events:     a.notifier.Hub(),
	})

	session, err := a.sessions.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to read session: %w", err)
	}
	if session.Connected() {
		a.scheduler.Start()
	} else {
		a.log.Info().Msg("not logged in, periodic sync waits for startSync")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(l)
	}()

	select {
	case err := <-errCh:
		a.scheduler.Stop()
		return err
	case <-ctx.Done():
	}

	a.log.Info().Msg("shutting down")
	a.scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down control endpoint: %w", err)
	}
	return <-errCh
}

// Control sends msg to a running daemon. Without a daemon, sync requests run
// a cycle in this process and start/stop have nothing to act on.
func (a *App) Control(ctx context.Context, msg domain.ControlMessage) error {
	if !msg.Valid() {
		return errors.Wrapf(domain.ErrUnknownMessage, "%q", msg)
	}

	err := a.daemon.Send(ctx, msg)
	if err == nil || !errors.Is(err, control.ErrUnavailable) {
		return err
	}

	switch msg {
	case domain.MsgSyncQueue, domain.MsgForceSync:
		a.log.Debug().Msg("no daemon answered, syncing in process")
		_, err := a.Sync(ctx)
		return err
	default:
		a.log.Warn().Str("type", string(msg)).Msg("no daemon running, nothing to do")
		return nil
	}
}

// Sync runs one reconciliation cycle in this process
func (a *App) Sync(ctx context.Context) (*reconcile.Result, error) {
	res, err := a.reconciler.Cycle(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync failed: %w", err)
	}
	return res, nil
}

// Act records a user toggle through the daemon when one runs, otherwise it
// is applied here and followed by a cycle.
func (a *App) Act(ctx context.Context, kind domain.ActionKind, rawURL, day string) (*actions.Receipt, error) {
	receipt, err := a.daemon.Act(ctx, kind, rawURL, day)
	if err == nil || !errors.Is(err, control.ErrUnavailable) {
		return receipt, err
	}

	switch kind {
	case domain.ActionAdd:
		d, _ := domain.ParseDay(day)
		receipt, err = a.actions.Add(ctx, rawURL, d)
	case domain.ActionRemove:
		receipt, err = a.actions.Remove(ctx, rawURL)
	default:
		return nil, errors.Errorf("unknown action %q", kind)
	}
	if err != nil {
		return nil, err
	}

	if _, err := a.Sync(ctx); err != nil {
		return receipt, err
	}
	return receipt, nil
}

// Status reads the cache, asking the daemon first
func (a *App) Status(ctx context.Context) (*domain.CacheSnapshot, error) {
	snap, err := a.daemon.Cache(ctx)
	if err == nil || !errors.Is(err, control.ErrUnavailable) {
		return snap, err
	}

	local, err := a.cache.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if local.Pending, err = a.outbox.Len(ctx); err != nil {
		return nil, err
	}
	return &local, nil
}

// Session returns the persisted connection state
func (a *App) Session(ctx context.Context) (*domain.Session, error) {
	return a.sessions.Get(ctx)
}
