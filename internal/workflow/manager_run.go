package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/panjf2000/ants/v2"

	"docket/internal/logging"
	"docket/internal/queue"
)

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if len(m.statusOrder) == 0 {
		m.mu.Unlock()
		return errors.New("workflow stages not configured")
	}

	workers := m.cfg.Workflow.Workers
	if workers <= 0 {
		workers = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("create worker pool: %w", err)
	}
	m.pool = pool

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	go m.runDispatcher(runCtx)

	return nil
}

// Stop terminates background processing and waits for in-flight stages.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	pool := m.pool
	m.running = false
	m.cancel = nil
	m.pool = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.taskWG.Wait()
	if pool != nil {
		pool.Release()
	}
}

func (m *Manager) runDispatcher(ctx context.Context) {
	defer m.wg.Done()

	logger := m.dispatcherLogger()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := m.heartbeat.ReclaimStaleDocuments(ctx, logger); err != nil {
			logger.Warn("reclaim stale processing failed; stuck documents may remain", logging.Error(err))
		}

		doc, err := m.nextReadyDocument(ctx)
		if err != nil {
			m.handleNextDocumentError(ctx, logger, err)
			continue
		}
		if doc == nil {
			m.waitForDocumentOrShutdown(ctx)
			continue
		}

		m.submitDocument(ctx, logger, doc)
	}
}

// nextReadyDocument returns the oldest document whose status starts a stage and
// that is neither leased by a worker nor sitting out a retry deferral. The
// single-row query covers the common case; when the oldest document is leased
// or deferred, the full listing is scanned for the next claimable one.
func (m *Manager) nextReadyDocument(ctx context.Context) (*queue.Document, error) {
	m.mu.RLock()
	statuses := make([]queue.Status, len(m.statusOrder))
	copy(statuses, m.statusOrder)
	m.mu.RUnlock()

	oldest, err := m.store.NextForStatuses(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	if oldest == nil {
		return nil, nil
	}
	if m.leases.Acquire(oldest.ID) {
		return oldest, nil
	}

	docs, err := m.store.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		if m.leases.Acquire(doc.ID) {
			return doc, nil
		}
	}
	return nil, nil
}

func (m *Manager) submitDocument(ctx context.Context, logger *slog.Logger, doc *queue.Document) {
	m.mu.RLock()
	pool := m.pool
	m.mu.RUnlock()
	if pool == nil {
		m.leases.Release(doc.ID)
		return
	}

	m.taskWG.Add(1)
	submitErr := pool.Submit(func() {
		defer m.taskWG.Done()
		defer m.releaseDocument(ctx, doc.ID)
		if err := m.processDocument(ctx, doc); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
		}
	})
	if submitErr != nil {
		m.taskWG.Done()
		m.leases.Release(doc.ID)
		logger.Error("failed to submit document to worker pool", logging.Error(submitErr))
		m.setLastError(submitErr)
		m.waitForDocumentOrShutdown(ctx)
	}
}

// releaseDocument drops the lease and applies any reprocess request that
// arrived while the document was leased.
func (m *Manager) releaseDocument(ctx context.Context, id string) {
	m.leases.Release(id)

	doc, err := m.store.GetByID(ctx, id)
	if err != nil || doc == nil {
		return
	}
	if doc.ReprocessRequested {
		if err := m.store.ResetForReprocess(ctx, id); err != nil {
			m.dispatcherLogger().Warn("deferred reprocess failed", logging.Error(err), logging.String(logging.FieldDocumentID, id))
			return
		}
		m.leases.Forget(id)
		m.emitStatusChange(ctx, id, doc.Status, queue.StatusQueued)
	}
}

func (m *Manager) handleNextDocumentError(ctx context.Context, logger *slog.Logger, err error) {
	m.setLastError(err)
	logger.Error("failed to fetch next document", logging.Error(err))
	select {
	case <-ctx.Done():
		return
	case <-time.After(time.Duration(m.cfg.Workflow.ErrorRetryInterval) * time.Second):
	}
}

func (m *Manager) waitForDocumentOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(m.pollInterval):
	}
}

func (m *Manager) dispatcherLogger() *slog.Logger {
	if m.logger == nil {
		return logging.NewNop()
	}
	return m.logger.With(logging.String(logging.FieldComponent, "workflow-dispatcher"))
}
