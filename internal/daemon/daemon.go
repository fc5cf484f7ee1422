package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"log/slog"

	"github.com/gofrs/flock"

	"docket/internal/config"
	"docket/internal/deps"
	"docket/internal/fileutil"
	"docket/internal/ingest"
	"docket/internal/logging"
	"docket/internal/notifications"
	"docket/internal/queue"
	"docket/internal/workflow"
)

// Daemon coordinates the background processing services and enforces
// single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager
	watcher  *ingest.Watcher
	intake   *ingest.Intake
	logPath  string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Workflow     workflow.StatusSummary
	QueueDBPath  string
	LockFilePath string
	PID          int
	Dependencies []deps.Status
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, wf *workflow.Manager, notifier notifications.Service) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, logger, and workflow manager")
	}

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		workflow: wf,
		watcher:  ingest.NewWatcher(cfg, store, logger, notifier),
		intake:   ingest.NewIntake(cfg, store, logger, notifier),
		logPath:  filepath.Join(cfg.Paths.LogDir, "docket.log"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, recovers interrupted work, and launches the
// inbox watcher and workflow manager.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another docket daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	// Documents left mid-stage by a crash roll back to the previous status.
	if reset, err := d.store.ResetStuckProcessing(d.ctx); err != nil {
		d.logger.Warn("failed to reset interrupted documents", logging.Error(err))
	} else if reset > 0 {
		d.logger.Info("reset interrupted documents", logging.Int64("count", reset))
	}

	if err := d.workflow.Start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start workflow: %w", err)
	}
	if d.watcher != nil {
		if err := d.watcher.Start(d.ctx); err != nil {
			d.workflow.Stop()
			_ = d.lock.Unlock()
			d.cancel()
			d.ctx = nil
			d.cancel = nil
			return fmt.Errorf("start inbox watcher: %w", err)
		}
	}

	d.running.Store(true)
	d.logger.Info("docket daemon started", logging.String("lock", d.lockPath))
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
	if d.watcher != nil {
		d.watcher.Stop()
	}
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("docket daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// ListQueue returns documents filtered by optional statuses.
func (d *Daemon) ListQueue(ctx context.Context, statuses []queue.Status) ([]*queue.Document, error) {
	if d.store == nil {
		return nil, errors.New("document store unavailable")
	}
	if len(statuses) == 0 {
		return d.store.List(ctx)
	}
	return d.store.List(ctx, statuses...)
}

// GetDocument returns a single document by ID.
func (d *Daemon) GetDocument(ctx context.Context, id string) (*queue.Document, error) {
	if d.store == nil {
		return nil, errors.New("document store unavailable")
	}
	return d.store.GetByID(ctx, id)
}

// DocumentHistory returns the stage history for a document.
func (d *Daemon) DocumentHistory(ctx context.Context, id string) ([]queue.HistoryEntry, error) {
	if d.store == nil {
		return nil, errors.New("document store unavailable")
	}
	return d.store.HistoryForDocument(ctx, id)
}

// DocumentTags returns the tags attached to a document.
func (d *Daemon) DocumentTags(ctx context.Context, id string) ([]*queue.Label, error) {
	if d.store == nil {
		return nil, errors.New("document store unavailable")
	}
	return d.store.DocumentTags(ctx, id)
}

// ClearQueue removes all documents.
func (d *Daemon) ClearQueue(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("document store unavailable")
	}
	return d.store.Clear(ctx)
}

// ClearCompleted removes only completed documents.
func (d *Daemon) ClearCompleted(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("document store unavailable")
	}
	return d.store.ClearCompleted(ctx)
}

// ClearFailed removes only failed documents.
func (d *Daemon) ClearFailed(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("document store unavailable")
	}
	return d.store.ClearFailed(ctx)
}

// ResetStuck transitions in-flight documents back to their previous status.
func (d *Daemon) ResetStuck(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("document store unavailable")
	}
	return d.store.ResetStuckProcessing(ctx)
}

// RetryFailed resets failed documents (optionally a subset) back to queued.
func (d *Daemon) RetryFailed(ctx context.Context, ids []string) (int64, error) {
	if d.store == nil {
		return 0, errors.New("document store unavailable")
	}
	return d.store.RetryFailed(ctx, ids...)
}

// Reprocess sends a document back through the whole pipeline.
func (d *Daemon) Reprocess(ctx context.Context, id string) error {
	if d.workflow == nil {
		return errors.New("workflow manager unavailable")
	}
	return d.workflow.Reprocess(ctx, id)
}

// RemoveDocuments deletes documents by ID and returns the number removed.
func (d *Daemon) RemoveDocuments(ctx context.Context, ids []string) (int64, error) {
	if d.store == nil {
		return 0, errors.New("document store unavailable")
	}
	var removed int64
	for _, id := range ids {
		ok, err := d.store.Remove(ctx, id)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}

// QueueHealth returns aggregate document diagnostics.
func (d *Daemon) QueueHealth(ctx context.Context) (queue.HealthSummary, error) {
	if d.store == nil {
		return queue.HealthSummary{}, errors.New("document store unavailable")
	}
	return d.store.Health(ctx)
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (queue.DatabaseHealth, error) {
	if d.store == nil {
		return queue.DatabaseHealth{}, errors.New("document store unavailable")
	}
	return d.store.CheckHealth(ctx)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg == nil {
		return false, "configuration unavailable", errors.New("configuration unavailable")
	}
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// AddFile ingests a file from an arbitrary path. The original is copied into
// the inbox first so the caller's file is never consumed.
func (d *Daemon) AddFile(ctx context.Context, sourcePath string) (*queue.Document, error) {
	if d.intake == nil {
		return nil, errors.New("intake unavailable")
	}
	trimmed := strings.TrimSpace(sourcePath)
	if trimmed == "" {
		return nil, errors.New("source path is required")
	}
	absPath, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve source path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat source file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("source path %q is a directory", absPath)
	}

	staged := filepath.Join(d.cfg.Paths.InboxDir, filepath.Base(absPath))
	staged, err = fileutil.UniquePath(staged)
	if err != nil {
		return nil, fmt.Errorf("allocate inbox name: %w", err)
	}
	if err := fileutil.CopyFile(absPath, staged); err != nil {
		return nil, fmt.Errorf("copy into inbox: %w", err)
	}

	doc, err := d.intake.Ingest(ctx, staged)
	if err != nil {
		_ = os.Remove(staged)
		return nil, err
	}
	d.logger.Info("manual document queued",
		logging.String(logging.FieldDocumentID, doc.ID),
		logging.String("source", absPath))
	return doc, nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	summary := d.workflow.Status(ctx)
	return Status{
		Running:      d.running.Load(),
		Workflow:     summary,
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
		PID:          os.Getpid(),
		Dependencies: deps.CheckBinaries(deps.Requirements(d.cfg)),
	}
}
