package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"log/slog"

	"docket/internal/config"
	"docket/internal/logging"
	"docket/internal/notifications"
	"docket/internal/queue"
)

type pendingFile struct {
	size        int64
	stableSince time.Time
}

type ingestFunc func(ctx context.Context, path string) (*queue.Document, error)

// Watcher polls the inbox directory for new documents. A file is only handed
// to intake once its size has stopped changing for the configured stability
// window, so partially written uploads are never picked up.
type Watcher struct {
	cfg    *config.Config
	logger *slog.Logger
	ingest ingestFunc

	pollInterval   time.Duration
	stabilityDelay time.Duration

	mu       sync.Mutex
	running  bool
	pending  map[string]pendingFile
	rejected map[string]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher builds an inbox watcher wired to the default intake step.
func NewWatcher(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service) *Watcher {
	if cfg == nil || store == nil {
		return nil
	}
	intake := NewIntake(cfg, store, logger, notifier)
	return newWatcher(cfg, logger, intake.Ingest)
}

func newWatcher(cfg *config.Config, logger *slog.Logger, ingest ingestFunc) *Watcher {
	poll := time.Duration(cfg.Ingest.PollInterval) * time.Second
	if poll <= 0 {
		poll = 5 * time.Second
	}
	stability := time.Duration(cfg.Ingest.StabilityDelay) * time.Second
	if stability <= 0 {
		stability = 3 * time.Second
	}

	watcherLogger := logger
	if watcherLogger == nil {
		watcherLogger = logging.NewNop()
	}
	watcherLogger = watcherLogger.With(logging.String(logging.FieldComponent, "inbox-watcher"))

	return &Watcher{
		cfg:            cfg,
		logger:         watcherLogger,
		ingest:         ingest,
		pollInterval:   poll,
		stabilityDelay: stability,
		pending:        make(map[string]pendingFile),
		rejected:       make(map[string]struct{}),
	}
}

// Start launches the polling loop.
func (w *Watcher) Start(ctx context.Context) error {
	if w == nil {
		return errors.New("inbox watcher unavailable")
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return errors.New("inbox watcher already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.ctx = runCtx
	w.cancel = cancel
	w.running = true

	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop halts the polling loop and waits for in-flight work.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	w.poll()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.poll()
		}
	}
}

func (w *Watcher) poll() {
	ctx := w.ctx
	if ctx == nil {
		return
	}

	entries, err := os.ReadDir(w.cfg.Paths.InboxDir)
	if err != nil {
		w.logger.Warn("inbox scan failed; will retry", logging.Error(err))
		return
	}

	now := time.Now()
	seen := make(map[string]struct{}, len(entries))

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(w.cfg.Paths.InboxDir, name)
		seen[path] = struct{}{}

		if _, skip := w.rejected[path]; skip {
			continue
		}
		if !w.extensionAllowed(name) {
			w.rejected[path] = struct{}{}
			w.logger.Debug("ignoring file with unsupported extension",
				logging.String(logging.FieldFilename, name))
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		prev, tracked := w.pending[path]
		if !tracked || prev.size != info.Size() {
			w.pending[path] = pendingFile{size: info.Size(), stableSince: now}
			continue
		}
		if now.Sub(prev.stableSince) < w.stabilityDelay {
			continue
		}

		delete(w.pending, path)
		w.handleStableFile(ctx, path, name)
	}

	w.forgetVanished(seen)
}

func (w *Watcher) handleStableFile(ctx context.Context, path, name string) {
	if w.ingest == nil {
		return
	}
	if _, err := w.ingest(ctx, path); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		if errors.Is(err, ErrFileRejected) {
			w.rejected[path] = struct{}{}
			w.logger.Warn("inbox file rejected",
				logging.String(logging.FieldFilename, name),
				logging.Error(err))
			return
		}
		// Transient failures (free space, database contention) stay untracked
		// so the next poll retries from scratch.
		w.logger.Warn("intake failed; will retry",
			logging.String(logging.FieldFilename, name),
			logging.Error(err))
	}
}

func (w *Watcher) extensionAllowed(name string) bool {
	allowed := w.cfg.Ingest.AllowedExtensions
	if len(allowed) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, candidate := range allowed {
		candidate = strings.ToLower(strings.TrimSpace(candidate))
		if candidate == "" {
			continue
		}
		if !strings.HasPrefix(candidate, ".") {
			candidate = "." + candidate
		}
		if ext == candidate {
			return true
		}
	}
	return false
}

func (w *Watcher) forgetVanished(seen map[string]struct{}) {
	for path := range w.pending {
		if _, ok := seen[path]; !ok {
			delete(w.pending, path)
		}
	}
	for path := range w.rejected {
		if _, ok := seen[path]; !ok {
			delete(w.rejected, path)
		}
	}
}
