package workflow

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"docket/internal/logging"
	"docket/internal/queue"
	"docket/internal/services"
)

func (m *Manager) stageLogger(ctx context.Context, doc *queue.Document) *slog.Logger {
	base := m.logger
	if base == nil {
		base = logging.NewNop()
	}
	base = base.With(logging.String(logging.FieldComponent, "workflow-manager"))
	if doc != nil {
		if _, ok := services.DocumentIDFromContext(ctx); !ok {
			base = base.With(logging.String(logging.FieldDocumentID, doc.ID))
		}
	}
	return logging.WithContext(ctx, base)
}

func withStageContext(ctx context.Context, stageName string, doc *queue.Document, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if doc != nil {
		ctx = services.WithDocumentID(ctx, doc.ID)
	}
	if stageName != "" {
		ctx = services.WithStage(ctx, stageName)
	}
	if requestID != "" {
		ctx = services.WithRequestID(ctx, requestID)
	}
	return ctx
}

func deriveStageLabel(status queue.Status) string {
	if status == "" {
		return ""
	}
	parts := strings.Fields(strings.ReplaceAll(string(status), "_", " "))
	for i, part := range parts {
		if part == "" {
			continue
		}
		runes := []rune(strings.ToLower(part))
		runes[0] = unicode.ToUpper(runes[0])
		parts[i] = string(runes)
	}
	return strings.Join(parts, " ")
}
