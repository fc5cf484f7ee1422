package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"docket/internal/logging"
	"docket/internal/queue"
	"docket/internal/stage"
)

func (m *Manager) processDocument(ctx context.Context, doc *queue.Document) error {
	stg, ok := m.stageForStatus(doc.Status)
	if !ok {
		m.dispatcherLogger().Warn("no stage configured for status", logging.String(logging.FieldStatus, string(doc.Status)))
		m.waitForDocumentOrShutdown(ctx)
		return nil
	}

	requestID := uuid.NewString()
	stageCtx := withStageContext(ctx, stg.name, doc, requestID)
	stageLogger := m.stageLogger(stageCtx, doc)

	if err := m.transitionToProcessing(stageCtx, stg, doc); err != nil {
		stageLogger.Error("failed to transition document to processing", logging.Error(err))
		m.setLastError(err)
		return err
	}

	return m.executeStage(stageCtx, stageLogger, stg, doc)
}

func (m *Manager) executeStage(ctx context.Context, stageLogger *slog.Logger, stg pipelineStage, doc *queue.Document) error {
	stageStart := time.Now()
	attempt := doc.RecordAttempt(stg.name)
	stageLogger.Info(
		"stage started",
		logging.String("processing_status", string(stg.processingStatus)),
		logging.String(logging.FieldFilename, strings.TrimSpace(doc.OriginalFilename)),
		logging.Int("attempt", attempt),
	)

	handler := stg.handler
	if handler == nil {
		stageLogger.Warn("missing stage handler", logging.String(logging.FieldStage, stg.name))
		doc.SetFailed(fmt.Sprintf("stage %s missing handler", stg.name))
		if err := m.store.Update(ctx, doc); err != nil {
			stageLogger.Error("failed to persist missing handler failure", logging.Error(err))
		}
		m.setLastError(errors.New("stage handler unavailable"))
		return errors.New("stage handler unavailable")
	}

	if err := handler.Prepare(ctx, doc); err != nil {
		m.handleStageFailure(ctx, stg, doc, attempt, err)
		m.setLastError(err)
		return err
	}
	if err := m.store.Update(ctx, doc); err != nil {
		wrapped := fmt.Errorf("persist stage preparation: %w", err)
		stageLogger.Error("failed to persist stage preparation", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}

	execErr := m.executeWithHeartbeat(ctx, handler, doc)
	if execErr != nil {
		if errors.Is(execErr, context.Canceled) {
			stageLogger.Debug("stage interrupted by shutdown")
			return execErr
		}
		m.handleStageFailure(ctx, stg, doc, attempt, execErr)
		m.setLastError(execErr)
		return execErr
	}

	if doc.Status == stg.processingStatus || doc.Status == "" {
		doc.Status = stg.doneStatus
	}
	doc.LastHeartbeat = nil
	if doc.Status == queue.StatusCompleted {
		doc.ProgressStage = deriveStageLabel(queue.StatusCompleted)
		if doc.ProgressPercent < 100 {
			doc.ProgressPercent = 100
		}
		if strings.TrimSpace(doc.ProgressMessage) == "" {
			doc.ProgressMessage = deriveStageLabel(queue.StatusCompleted)
		}
	}
	if err := m.store.Update(ctx, doc); err != nil {
		wrapped := fmt.Errorf("persist stage result: %w", err)
		stageLogger.Error("failed to persist stage result", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}
	if err := m.store.AppendHistory(ctx, doc.ID, stg.name, queue.OutcomeSuccess, "", attempt); err != nil {
		stageLogger.Warn("failed to record stage history", logging.Error(err))
	}
	stageLogger.Info(
		"stage completed",
		logging.String("next_status", string(doc.Status)),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)
	m.setLastDocument(doc)
	m.emitStatusChange(ctx, doc.ID, stg.processingStatus, doc.Status)
	if doc.Status == queue.StatusCompleted {
		m.notifyDocumentCompleted(ctx, doc)
	}
	m.checkQueueCompletion(ctx)
	return nil
}

func (m *Manager) executeWithHeartbeat(ctx context.Context, handler stage.Handler, doc *queue.Document) error {
	execCtx := ctx
	cancelTimeout := func() {}
	if timeout := time.Duration(m.cfg.Workflow.StageTimeoutSeconds) * time.Second; timeout > 0 {
		execCtx, cancelTimeout = context.WithTimeout(ctx, timeout)
	}
	defer cancelTimeout()

	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, doc.ID)

	execErr := handler.Execute(execCtx, doc)
	hbCancel()
	hbWG.Wait()
	if execErr != nil && errors.Is(execErr, context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("stage timed out after %ds: %w", m.cfg.Workflow.StageTimeoutSeconds, execErr)
	}
	return execErr
}

func (m *Manager) transitionToProcessing(ctx context.Context, stg pipelineStage, doc *queue.Document) error {
	if stg.processingStatus == "" {
		return errors.New("processing status must not be empty")
	}

	now := time.Now().UTC()
	from := doc.Status
	doc.Status = stg.processingStatus
	if doc.ProgressStage == "" {
		doc.ProgressStage = deriveStageLabel(stg.processingStatus)
	}
	if doc.ProgressMessage == "" {
		doc.ProgressMessage = fmt.Sprintf("%s started", deriveStageLabel(stg.processingStatus))
	}
	doc.ProgressPercent = 0
	doc.ErrorMessage = ""
	doc.LastHeartbeat = &now

	if err := m.store.Update(ctx, doc); err != nil {
		return fmt.Errorf("persist processing transition: %w", err)
	}
	m.setLastDocument(doc)
	m.emitStatusChange(ctx, doc.ID, from, doc.Status)
	m.onDocumentStarted(ctx)
	return nil
}
