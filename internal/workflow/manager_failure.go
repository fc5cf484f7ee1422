package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"docket/internal/logging"
	"docket/internal/queue"
	"docket/internal/services"
)

// handleStageFailure resolves a stage error through the retry policy: degraded
// errors advance the document with a history note, transient errors roll it
// back for another attempt, and everything else fails it.
func (m *Manager) handleStageFailure(ctx context.Context, stg pipelineStage, doc *queue.Document, attempt int, stageErr error) {
	logger := m.stageLogger(ctx, doc)

	class := services.Classify(stageErr)
	decision := m.retry.Decide(stg.name, attempt, class)
	message := failureMessage(stg.name, stageErr)

	switch decision.Resolution {
	case ResolutionDegrade:
		m.degradeStage(ctx, logger, stg, doc, attempt, message)
	case ResolutionRetry:
		m.retryStage(ctx, logger, stg, doc, attempt, message, decision.Delay)
	default:
		m.failStage(ctx, logger, stg, doc, attempt, message, stageErr)
	}
	m.checkQueueCompletion(ctx)
}

// degradeStage advances the document despite the error; the partial result the
// handler left on the document is kept and the shortfall lands in history.
func (m *Manager) degradeStage(ctx context.Context, logger *slog.Logger, stg pipelineStage, doc *queue.Document, attempt int, message string) {
	from := doc.Status
	doc.Status = stg.doneStatus
	doc.LastHeartbeat = nil
	doc.ErrorMessage = ""
	doc.ProgressMessage = message
	if doc.Status == queue.StatusCompleted && doc.ProgressPercent < 100 {
		doc.ProgressPercent = 100
	}

	logger.Warn("stage degraded",
		logging.String("next_status", string(doc.Status)),
		logging.String("detail", message),
	)

	if err := m.store.Update(ctx, doc); err != nil {
		logger.Error("failed to persist degraded stage result", logging.Error(err))
	}
	if err := m.store.AppendHistory(ctx, doc.ID, stg.name, queue.OutcomeDegraded, message, attempt); err != nil {
		logger.Warn("failed to record stage history", logging.Error(err))
	}
	m.setLastDocument(doc)
	m.emitStatusChange(ctx, doc.ID, from, doc.Status)
	if doc.Status == queue.StatusCompleted {
		m.notifyDocumentCompleted(ctx, doc)
	}
}

// retryStage rolls the document back to the stage start status and defers the
// next attempt by the backoff delay.
func (m *Manager) retryStage(ctx context.Context, logger *slog.Logger, stg pipelineStage, doc *queue.Document, attempt int, message string, delay time.Duration) {
	from := doc.Status
	doc.Status = stg.startStatus
	doc.LastHeartbeat = nil
	doc.ErrorMessage = message
	doc.ProgressPercent = 0
	doc.ProgressMessage = fmt.Sprintf("retrying after failure (attempt %d)", attempt)

	logger.Warn("stage failed, will retry",
		logging.Int("attempt", attempt),
		logging.Int("max_attempts", m.retry.MaxAttempts),
		logging.Duration("retry_delay", delay),
		logging.String("detail", message),
	)

	if err := m.store.Update(ctx, doc); err != nil {
		logger.Error("failed to persist retry rollback", logging.Error(err))
	}
	if err := m.store.AppendHistory(ctx, doc.ID, stg.name, queue.OutcomeFailure, message, attempt); err != nil {
		logger.Warn("failed to record stage history", logging.Error(err))
	}
	if delay > 0 {
		m.leases.Defer(doc.ID, time.Now().Add(delay))
	}
	m.setLastDocument(doc)
	m.emitStatusChange(ctx, doc.ID, from, doc.Status)
}

func (m *Manager) failStage(ctx context.Context, logger *slog.Logger, stg pipelineStage, doc *queue.Document, attempt int, message string, stageErr error) {
	from := doc.Status
	doc.SetFailed(message)

	logger.Error("stage failed",
		logging.Alert("stage_failure"),
		logging.Int("attempt", attempt),
		logging.String("error_message", strings.TrimSpace(message)),
		logging.Error(stageErr),
	)

	if err := m.store.Update(ctx, doc); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not update stage failure")
		} else {
			logger.Error("failed to persist stage failure", logging.Error(err))
		}
	}
	if err := m.store.AppendHistory(ctx, doc.ID, stg.name, queue.OutcomeFailure, message, attempt); err != nil {
		logger.Warn("failed to record stage history", logging.Error(err))
	}

	m.setLastDocument(doc)
	m.emitStatusChange(ctx, doc.ID, from, doc.Status)
	m.notifyStageError(ctx, stg.name, doc, stageErr)
}

func failureMessage(stageName string, stageErr error) string {
	if stageErr == nil {
		return fmt.Sprintf("%s failed without error detail", stageName)
	}
	message := strings.TrimSpace(services.Details(stageErr))
	if message == "" {
		message = strings.TrimSpace(stageErr.Error())
	}
	if message == "" {
		message = fmt.Sprintf("%s failed", stageName)
	}
	return message
}
