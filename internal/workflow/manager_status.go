package workflow

import (
	"context"
	"fmt"

	"docket/internal/logging"
	"docket/internal/queue"
	"docket/internal/services"
	"docket/internal/stage"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running      bool
	LastError    string
	LastDocument *queue.Document
	QueueStats   map[queue.Status]int
	StageHealth  map[string]stage.Health
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	lastDoc := m.lastDoc
	stageSet := make([]pipelineStage, len(m.pipeline))
	copy(stageSet, m.pipeline)
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil && m.logger != nil {
		m.logger.Warn("failed to read document stats", logging.Error(err))
	}

	health := make(map[string]stage.Health, len(stageSet))
	for _, stg := range stageSet {
		handler := stg.handler
		if handler == nil {
			continue
		}
		health[stg.name] = handler.HealthCheck(ctx)
	}

	summary := StatusSummary{Running: running, QueueStats: stats, StageHealth: health}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastDoc != nil {
		copied := *lastDoc
		summary.LastDocument = &copied
	}
	return summary
}

// Reprocess returns a completed or failed document to the front of the
// pipeline. A document currently worked on is flagged instead; the flag is
// applied when the worker releases its lease, so the request queues behind
// the active task.
func (m *Manager) Reprocess(ctx context.Context, id string) error {
	doc, err := m.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if doc == nil {
		return services.Wrap(services.ErrNotFound, "workflow", "reprocess",
			fmt.Sprintf("Document %s not found", id), nil)
	}

	// Claiming the lease makes the reset atomic against the dispatcher: once
	// held, no worker can pick the document up mid-reset and clobber it with
	// a stale row. A failed claim means a worker has the document.
	m.leases.Forget(id)
	if doc.IsProcessing() || !m.leases.Acquire(id) {
		return m.store.MarkReprocessRequested(ctx, id)
	}
	defer m.leases.Release(id)

	// Re-read under the lease; the row may have changed before the claim.
	doc, err = m.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if doc == nil {
		return services.Wrap(services.ErrNotFound, "workflow", "reprocess",
			fmt.Sprintf("Document %s not found", id), nil)
	}
	if !queue.IsTerminal(doc.Status) {
		return services.Wrap(services.ErrValidation, "workflow", "reprocess",
			fmt.Sprintf("Document %s is %s; only completed or failed documents can be reprocessed", id, doc.Status), nil)
	}
	if err := m.store.ResetForReprocess(ctx, id); err != nil {
		return err
	}
	m.emitStatusChange(ctx, id, doc.Status, queue.StatusQueued)
	return nil
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastDocument(doc *queue.Document) {
	m.mu.Lock()
	if doc != nil {
		copied := *doc
		m.lastDoc = &copied
	} else {
		m.lastDoc = nil
	}
	m.mu.Unlock()
}
