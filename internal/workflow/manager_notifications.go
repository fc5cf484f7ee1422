package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docket/internal/logging"
	"docket/internal/queue"
)

func (m *Manager) notifyStageError(ctx context.Context, stageName string, doc *queue.Document, stageErr error) {
	if m.notifier == nil || stageErr == nil {
		return
	}
	logger := logging.WithContext(ctx, m.logger.With(logging.String(logging.FieldComponent, "workflow-manager")))
	contextLabel := fmt.Sprintf("%s (document %s)", stageName, doc.ID)
	if err := m.notifier.NotifyError(ctx, stageErr, contextLabel); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not send error notification")
		} else {
			logger.Debug("stage error notification failed", logging.Error(err))
		}
	}
}

func (m *Manager) notifyDocumentCompleted(ctx context.Context, doc *queue.Document) {
	if m.notifier == nil || doc == nil {
		return
	}
	if err := m.notifier.NotifyDocumentCompleted(ctx, doc.DisplayTitle()); err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Debug("completion notification failed", logging.Error(err))
	}
}

// emitStatusChange fans a persisted status transition out to registered
// listeners and the push notifier. Called after the row is written so
// observers never see a state the store does not.
func (m *Manager) emitStatusChange(ctx context.Context, docID string, from, to queue.Status) {
	if to == "" || from == to {
		return
	}

	m.mu.RLock()
	listeners := make([]StatusListener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.RUnlock()
	for _, listener := range listeners {
		listener(docID, from, to)
	}

	if m.notifier == nil {
		return
	}
	if err := m.notifier.NotifyStatusChanged(ctx, docID, string(from), string(to)); err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Debug("status change notification failed", logging.Error(err))
	}
}

func (m *Manager) onDocumentStarted(ctx context.Context) {
	if m.notifier == nil {
		return
	}
	stats, err := m.store.Stats(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			m.logger.Debug("daemon shutting down, could not get stats for start notification")
		} else {
			m.logger.Warn("document stats unavailable for start notification; notification skipped", logging.Error(err))
		}
		return
	}
	m.mu.Lock()
	if m.queueActive {
		m.mu.Unlock()
		return
	}
	m.queueActive = true
	m.queueStart = time.Now()
	m.mu.Unlock()

	count := countWorkDocuments(stats)
	if err := m.notifier.NotifyQueueStarted(ctx, count); err != nil {
		if errors.Is(err, context.Canceled) {
			m.logger.Debug("daemon shutting down, could not send queue start notification")
		} else {
			m.logger.Debug("queue start notification failed", logging.Error(err))
		}
	}
}

func (m *Manager) checkQueueCompletion(ctx context.Context) {
	if m.notifier == nil {
		return
	}
	stats, err := m.store.Stats(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			m.logger.Debug("daemon shutting down, could not check queue completion")
		} else {
			m.logger.Warn("document stats unavailable for completion notification; notification skipped", logging.Error(err))
		}
		return
	}
	if active := countWorkDocuments(stats); active > 0 {
		return
	}

	m.mu.Lock()
	if !m.queueActive {
		m.mu.Unlock()
		return
	}
	start := m.queueStart
	m.queueActive = false
	m.queueStart = time.Time{}
	m.mu.Unlock()

	duration := time.Duration(0)
	if !start.IsZero() {
		duration = time.Since(start)
	}
	processed := stats[queue.StatusCompleted]
	failed := stats[queue.StatusFailed]
	if err := m.notifier.NotifyQueueCompleted(ctx, processed, failed, duration); err != nil {
		if errors.Is(err, context.Canceled) {
			m.logger.Debug("daemon shutting down, could not send queue completion notification")
		} else {
			m.logger.Debug("queue completion notification failed", logging.Error(err))
		}
	}
}

func countWorkDocuments(stats map[queue.Status]int) int {
	total := 0
	for status, count := range stats {
		if queue.IsTerminal(status) {
			continue
		}
		total += count
	}
	return total
}
