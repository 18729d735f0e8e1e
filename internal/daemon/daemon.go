package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"recital/internal/config"
	"recital/internal/documents"
	"recital/internal/finalizer"
	"recital/internal/ingest"
	"recital/internal/logging"
	"recital/internal/notifications"
	"recital/internal/recitals"
)

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *recitals.Store
	gateway   *ingest.Gateway
	documents *documents.Manager
	finalizer *finalizer.Manager
	notifier  notifications.Service

	api *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	DatabasePath string
	LockFilePath string
	Sessions     map[recitals.Status]int
	FinalizerErr string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *recitals.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	notifier := notifications.NewService(cfg)
	fin := finalizer.NewManager(cfg, store, notifier, logger)
	lockPath := filepath.Join(cfg.Paths.LogDir, "recitald.lock")

	d := &Daemon{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		gateway:   ingest.NewGateway(store, cfg.Paths.DataDir, fin, notifier, logger),
		documents: documents.NewManager(store, logger),
		finalizer: fin,
		notifier:  notifier,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}

	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the daemon lock, runs startup maintenance, and launches
// the finalizer and HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another recitald instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.runStartupMaintenance(d.ctx)

	if err := d.finalizer.Start(d.ctx); err != nil {
		d.releaseLock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start finalizer: %w", err)
	}
	if d.api != nil {
		if err := d.api.start(d.ctx); err != nil {
			d.finalizer.Stop()
			d.releaseLock()
			d.cancel()
			d.ctx = nil
			d.cancel = nil
			return err
		}
	}

	d.running.Store(true)
	d.logger.Info("recitald started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.api != nil {
		d.api.stop()
	}
	d.finalizer.Stop()
	d.releaseLock()
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("recitald stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// APIAddr reports the bound HTTP listener address, or "" before Start.
func (d *Daemon) APIAddr() string {
	if d.api == nil {
		return ""
	}
	return d.api.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
	}
	if stats, err := d.store.Stats(ctx); err == nil {
		status.Sessions = stats
	}
	if err := d.finalizer.LastError(); err != nil {
		status.FinalizerErr = err.Error()
	}
	return status
}

// TestNotification triggers a test email using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context, recipient string) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Email.RelayURL) == "" {
		return false, "mail relay not configured", nil
	}
	if err := d.notifier.TestNotification(ctx, recipient); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// runStartupMaintenance cleans up state left behind by a previous run:
// expired tokens and segment files whose metadata row never landed.
func (d *Daemon) runStartupMaintenance(ctx context.Context) {
	if purged, err := d.store.PurgeExpiredTokens(ctx, time.Now()); err != nil {
		d.logger.Warn("token purge failed", logging.Error(err))
	} else if purged > 0 {
		d.logger.Info("expired tokens purged", logging.Int64("count", purged))
	}

	removed, err := d.store.SweepOrphanedSegments(ctx, d.cfg.Paths.DataDir)
	if err != nil {
		d.logger.Warn("orphan sweep failed", logging.Error(err))
		return
	}
	if len(removed) > 0 {
		d.logger.Info("orphaned segment files removed", logging.Int("count", len(removed)))
	}
}

func (d *Daemon) releaseLock() {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}
