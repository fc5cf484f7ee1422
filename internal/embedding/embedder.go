package embedding

import (
	"context"
	"fmt"
	"math"
	"strings"

	"log/slog"

	"docket/internal/config"
	"docket/internal/logging"
	"docket/internal/queue"
	"docket/internal/services"
	"docket/internal/services/ollama"
	"docket/internal/stage"
)

const (
	chunkSize    = 500
	chunkOverlap = 50
)

// EmbeddingClient is the slice of the AI backend the embedder needs.
type EmbeddingClient interface {
	Embed(ctx context.Context, inputs []string) ([][]float64, error)
	HealthCheck(ctx context.Context) error
}

// Embedder computes a single semantic vector per document by chunking the
// extracted text, embedding every chunk, and averaging the results.
type Embedder struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger
	client EmbeddingClient
}

// NewEmbedder constructs the embedding stage handler using default dependencies.
func NewEmbedder(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Embedder {
	client := ollama.NewClient(ollama.Config{
		BaseURL:        cfg.Ollama.BaseURL,
		Model:          cfg.Ollama.Model,
		EmbeddingModel: cfg.Ollama.EmbeddingModel,
		TimeoutSeconds: cfg.Ollama.TimeoutSeconds,
	})
	return NewEmbedderWithClient(cfg, store, logger, client)
}

// NewEmbedderWithClient allows injecting the AI backend (used in tests).
func NewEmbedderWithClient(cfg *config.Config, store *queue.Store, logger *slog.Logger, client EmbeddingClient) *Embedder {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String(logging.FieldComponent, "embedder"))
	}
	return &Embedder{cfg: cfg, store: store, logger: stageLogger, client: client}
}

func (e *Embedder) Prepare(ctx context.Context, doc *queue.Document) error {
	doc.InitProgress("Embedding", "Preparing semantic embedding")
	return nil
}

func (e *Embedder) Execute(ctx context.Context, doc *queue.Document) error {
	logger := logging.WithContext(ctx, e.logger)

	text := strings.TrimSpace(doc.ExtractedText)
	if text == "" {
		return services.Wrap(services.ErrPermanent, "embedding", "validate inputs",
			"Document has no extracted text; nothing to embed", nil)
	}

	chunks := chunkText(text, chunkSize, chunkOverlap)
	doc.SetProgress("Embedding", fmt.Sprintf("Embedding %d chunks", len(chunks)), 20)
	logger.Info("embedding document text",
		logging.Int("chunks", len(chunks)),
		logging.Int("characters", len(text)))

	vectors, err := e.client.Embed(ctx, chunks)
	if err != nil {
		return services.Wrap(services.ErrTransient, "embedding", "embed chunks",
			"Embedding request failed", err)
	}
	if len(vectors) == 0 {
		return services.Wrap(services.ErrTransient, "embedding", "embed chunks",
			"Embedding backend returned no vectors", nil)
	}

	combined, err := averageVectors(vectors)
	if err != nil {
		return services.Wrap(services.ErrTransient, "embedding", "combine vectors", "Inconsistent embedding response", err)
	}
	normalize(combined)

	if want := e.cfg.Ollama.EmbeddingDimensions; want > 0 && len(combined) != want {
		return services.Wrap(services.ErrConfiguration, "embedding", "validate dimensions",
			fmt.Sprintf("Embedding has %d dimensions, expected %d; check embedding_model and embedding_dimensions", len(combined), want), nil)
	}

	if err := doc.SetEmbedding(combined); err != nil {
		return services.Wrap(services.ErrTransient, "embedding", "store vector", "Failed to encode embedding", err)
	}

	doc.SetProgressComplete("Embedding", fmt.Sprintf("Embedded %d chunks into %d dimensions", len(chunks), len(combined)))
	logger.Info("embedding completed", logging.Int("dimensions", len(combined)))
	return nil
}

// HealthCheck probes the AI backend availability.
func (e *Embedder) HealthCheck(ctx context.Context) stage.Health {
	const name = "embedder"
	if e.client == nil {
		return stage.Unhealthy(name, "embedding client unavailable")
	}
	if err := e.client.HealthCheck(ctx); err != nil {
		return stage.Unhealthy(name, err.Error())
	}
	return stage.Healthy(name)
}

// chunkText splits text into overlapping rune windows. The final chunk always
// reaches the end of the text, and overlap never causes the scan to stall.
func chunkText(text string, size, overlap int) []string {
	if size <= 0 {
		size = chunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	var chunks []string
	step := size - overlap
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

func averageVectors(vectors [][]float64) ([]float64, error) {
	dims := len(vectors[0])
	if dims == 0 {
		return nil, fmt.Errorf("empty embedding vector")
	}
	combined := make([]float64, dims)
	for _, vector := range vectors {
		if len(vector) != dims {
			return nil, fmt.Errorf("vector dimension mismatch: %d vs %d", len(vector), dims)
		}
		for i, value := range vector {
			combined[i] += value
		}
	}
	count := float64(len(vectors))
	for i := range combined {
		combined[i] /= count
	}
	return combined, nil
}

// normalize scales the vector to unit length in place. Zero vectors are left
// untouched.
func normalize(vector []float64) {
	var sum float64
	for _, value := range vector {
		sum += value * value
	}
	if sum == 0 {
		return
	}
	magnitude := math.Sqrt(sum)
	for i := range vector {
		vector[i] /= magnitude
	}
}
