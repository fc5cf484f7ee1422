package classification

import (
	"context"
	"fmt"
	"os"
	"strings"

	"log/slog"

	"docket/internal/config"
	"docket/internal/logging"
	"docket/internal/queue"
	"docket/internal/services"
	"docket/internal/services/ollama"
	"docket/internal/stage"
)

// maxPromptChars bounds how much document text is sent to the model.
const maxPromptChars = 6000

// GenerateClient is the slice of the AI backend the classifier needs.
type GenerateClient interface {
	GenerateJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	GenerateJSONWithImages(ctx context.Context, systemPrompt, userPrompt string, images [][]byte) (string, error)
	HealthCheck(ctx context.Context) error
}

// Classifier assigns tags, correspondent, document type, a title, and custom
// field values to a document using a single JSON-mode model request. Model
// failures degrade the document instead of failing it: regex-extracted custom
// fields are kept and the document continues through the pipeline unlabeled.
type Classifier struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger
	client GenerateClient
}

// NewClassifier constructs the classification stage handler using default dependencies.
func NewClassifier(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Classifier {
	client := ollama.NewClient(ollama.Config{
		BaseURL:        cfg.Ollama.BaseURL,
		Model:          cfg.Ollama.Model,
		VisionModel:    cfg.Ollama.VisionModel,
		TimeoutSeconds: cfg.Ollama.TimeoutSeconds,
	})
	return NewClassifierWithClient(cfg, store, logger, client)
}

// NewClassifierWithClient allows injecting the AI backend (used in tests).
func NewClassifierWithClient(cfg *config.Config, store *queue.Store, logger *slog.Logger, client GenerateClient) *Classifier {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String(logging.FieldComponent, "classifier"))
	}
	return &Classifier{cfg: cfg, store: store, logger: stageLogger, client: client}
}

func (c *Classifier) Prepare(ctx context.Context, doc *queue.Document) error {
	doc.InitProgress("Classifying", "Preparing document classification")
	return nil
}

func (c *Classifier) Execute(ctx context.Context, doc *queue.Document) error {
	logger := logging.WithContext(ctx, c.logger)

	// Deterministic field extraction happens before the model call so the
	// values survive a degraded classification.
	fields := ExtractFields(doc.ExtractedText)
	if len(fields) > 0 {
		if err := setCustomFields(doc, fields); err != nil {
			logger.Warn("failed to encode custom fields", logging.Error(err))
		}
	}

	response, err := c.requestProposal(ctx, doc, logger)
	if err != nil {
		return services.Wrap(services.ErrDegraded, "classification", "model request",
			"Classification request failed; continuing without labels", err)
	}

	var prop proposal
	if err := ollama.DecodeJSON(response, &prop); err != nil {
		logger.Warn("classification response unparseable", logging.Error(err))
		return services.Wrap(services.ErrDegraded, "classification", "parse response",
			"Classification response was not valid JSON; continuing without labels", err)
	}
	prop.normalize()

	if err := c.applyProposal(ctx, doc, prop, fields, logger); err != nil {
		return err
	}

	doc.SetProgressComplete("Classifying", "Classification completed")
	logger.Info("classification completed",
		logging.Int("tags", len(prop.Tags)),
		logging.String("correspondent", prop.Correspondent),
		logging.String("document_type", prop.DocumentType))
	return nil
}

func (c *Classifier) requestProposal(ctx context.Context, doc *queue.Document, logger *slog.Logger) (string, error) {
	known, err := c.knownLabels(ctx)
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(doc.ExtractedText)
	if text != "" {
		doc.SetProgress("Classifying", "Requesting classification", 30)
		return c.client.GenerateJSON(ctx, systemPrompt(known), userPrompt(doc, truncateText(text, maxPromptChars)))
	}

	// No text layer: fall back to the vision model when the original is an image.
	if strings.HasPrefix(strings.ToLower(doc.MimeType), "image/") {
		image, readErr := os.ReadFile(doc.StoredPath)
		if readErr != nil {
			return "", fmt.Errorf("read image for vision classification: %w", readErr)
		}
		doc.SetProgress("Classifying", "Requesting vision classification", 30)
		logger.Info("using vision model for classification",
			logging.String("mime_type", doc.MimeType))
		return c.client.GenerateJSONWithImages(ctx, systemPrompt(known), visionPrompt(doc), [][]byte{image})
	}

	return "", fmt.Errorf("document has no extracted text")
}

func (c *Classifier) applyProposal(ctx context.Context, doc *queue.Document, prop proposal, regexFields map[string]string, logger *slog.Logger) error {
	if prop.Title != "" {
		doc.Title = prop.Title
	}

	if prop.Correspondent != "" {
		label, err := c.store.FindOrCreateCorrespondent(ctx, prop.Correspondent)
		if err != nil {
			return services.Wrap(services.ErrTransient, "classification", "store correspondent",
				"Failed to persist correspondent label", err)
		}
		doc.CorrespondentID = label.ID
	}

	if prop.DocumentType != "" {
		label, err := c.store.FindOrCreateDocumentType(ctx, prop.DocumentType)
		if err != nil {
			return services.Wrap(services.ErrTransient, "classification", "store document type",
				"Failed to persist document type label", err)
		}
		doc.DocumentTypeID = label.ID
	}

	if len(prop.Tags) > 0 {
		tagIDs := make([]int64, 0, len(prop.Tags))
		for _, name := range prop.Tags {
			label, err := c.store.FindOrCreateTag(ctx, name)
			if err != nil {
				return services.Wrap(services.ErrTransient, "classification", "store tags",
					"Failed to persist tag", err)
			}
			tagIDs = append(tagIDs, label.ID)
		}
		if err := c.store.SetDocumentTags(ctx, doc.ID, tagIDs); err != nil {
			return services.Wrap(services.ErrTransient, "classification", "store tags",
				"Failed to attach tags to document", err)
		}
	}

	merged := make(map[string]string, len(regexFields)+len(prop.CustomFields))
	for key, value := range regexFields {
		merged[key] = value
	}
	for key, value := range prop.CustomFields {
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		merged[key] = value
	}
	if len(merged) > 0 {
		if err := setCustomFields(doc, merged); err != nil {
			logger.Warn("failed to encode custom fields", logging.Error(err))
		}
	}
	return nil
}

func (c *Classifier) knownLabels(ctx context.Context) (knownLabels, error) {
	tags, err := c.store.Tags(ctx)
	if err != nil {
		return knownLabels{}, fmt.Errorf("list tags: %w", err)
	}
	correspondents, err := c.store.Correspondents(ctx)
	if err != nil {
		return knownLabels{}, fmt.Errorf("list correspondents: %w", err)
	}
	types, err := c.store.DocumentTypes(ctx)
	if err != nil {
		return knownLabels{}, fmt.Errorf("list document types: %w", err)
	}
	return knownLabels{
		Tags:           labelNames(tags),
		Correspondents: labelNames(correspondents),
		DocumentTypes:  labelNames(types),
	}, nil
}

// HealthCheck probes the AI backend availability.
func (c *Classifier) HealthCheck(ctx context.Context) stage.Health {
	const name = "classifier"
	if c.client == nil {
		return stage.Unhealthy(name, "classification client unavailable")
	}
	if err := c.client.HealthCheck(ctx); err != nil {
		return stage.Unhealthy(name, err.Error())
	}
	return stage.Healthy(name)
}

func labelNames(labels []*queue.Label) []string {
	names := make([]string, 0, len(labels))
	for _, label := range labels {
		names = append(names, label.Name)
	}
	return names
}

func truncateText(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
