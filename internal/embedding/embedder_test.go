package embedding

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"docket/internal/logging"
	"docket/internal/queue"
	"docket/internal/services"
	"docket/internal/testsupport"
)

type fakeEmbedClient struct {
	inputs  [][]string
	vectors [][]float64
	err     error
}

func (f *fakeEmbedClient) Embed(_ context.Context, inputs []string) ([][]float64, error) {
	f.inputs = append(f.inputs, inputs)
	if f.err != nil {
		return nil, f.err
	}
	if f.vectors != nil {
		return f.vectors, nil
	}
	out := make([][]float64, len(inputs))
	for i := range inputs {
		out[i] = []float64{1, 2, 2}
	}
	return out, nil
}

func (f *fakeEmbedClient) HealthCheck(context.Context) error { return nil }

func newTestEmbedder(t *testing.T, client *fakeEmbedClient) *Embedder {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Ollama.EmbeddingDimensions = 3
	store := testsupport.MustOpenStore(t, cfg)
	return NewEmbedderWithClient(cfg, store, logging.NewNop(), client)
}

func TestEmbedderStoresNormalizedVector(t *testing.T) {
	client := &fakeEmbedClient{}
	embedder := newTestEmbedder(t, client)
	doc := &queue.Document{ID: "doc-1", ExtractedText: "short document body"}

	if err := embedder.Execute(context.Background(), doc); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	vector := doc.Embedding()
	if len(vector) != 3 {
		t.Fatalf("expected 3 dimensions, got %d", len(vector))
	}
	var sum float64
	for _, v := range vector {
		sum += v * v
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("expected unit vector, squared magnitude %f", sum)
	}
}

func TestEmbedderChunksLongText(t *testing.T) {
	client := &fakeEmbedClient{}
	embedder := newTestEmbedder(t, client)
	doc := &queue.Document{ID: "doc-1", ExtractedText: strings.Repeat("a", 1200)}

	if err := embedder.Execute(context.Background(), doc); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if len(client.inputs) != 1 {
		t.Fatalf("expected one embed call, got %d", len(client.inputs))
	}
	if got := len(client.inputs[0]); got != 3 {
		t.Fatalf("expected 3 chunks for 1200 chars, got %d", got)
	}
}

func TestEmbedderFailsPermanentlyWithoutText(t *testing.T) {
	client := &fakeEmbedClient{}
	embedder := newTestEmbedder(t, client)
	doc := &queue.Document{ID: "doc-1", ExtractedText: "   "}

	err := embedder.Execute(context.Background(), doc)
	if !errors.Is(err, services.ErrPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if len(client.inputs) != 0 {
		t.Fatal("backend should not be called without text")
	}
}

func TestEmbedderFailsOnDimensionMismatch(t *testing.T) {
	client := &fakeEmbedClient{vectors: [][]float64{{1, 2}}}
	embedder := newTestEmbedder(t, client)
	doc := &queue.Document{ID: "doc-1", ExtractedText: "content"}

	err := embedder.Execute(context.Background(), doc)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestEmbedderWrapsBackendErrors(t *testing.T) {
	client := &fakeEmbedClient{err: errors.New("connection refused")}
	embedder := newTestEmbedder(t, client)
	doc := &queue.Document{ID: "doc-1", ExtractedText: "content"}

	err := embedder.Execute(context.Background(), doc)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestChunkText(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		size    int
		overlap int
		want    int
	}{
		{name: "short text single chunk", text: "hello", size: 500, overlap: 50, want: 1},
		{name: "exact size single chunk", text: strings.Repeat("x", 500), size: 500, overlap: 50, want: 1},
		{name: "two chunks with overlap", text: strings.Repeat("x", 600), size: 500, overlap: 50, want: 2},
		{name: "overlap larger than size is ignored", text: strings.Repeat("x", 30), size: 10, overlap: 20, want: 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			chunks := chunkText(tc.text, tc.size, tc.overlap)
			if len(chunks) != tc.want {
				t.Fatalf("got %d chunks, want %d", len(chunks), tc.want)
			}
			if !strings.HasSuffix(tc.text, chunks[len(chunks)-1]) {
				t.Fatal("final chunk must reach the end of the text")
			}
		})
	}
}

func TestChunkTextOverlapContent(t *testing.T) {
	text := strings.Repeat("abcde", 200) // 1000 chars
	chunks := chunkText(text, 500, 50)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	tail := chunks[0][len(chunks[0])-50:]
	if !strings.HasPrefix(chunks[1], tail) {
		t.Fatal("second chunk should start with the overlap of the first")
	}
}

func TestAverageVectors(t *testing.T) {
	combined, err := averageVectors([][]float64{{1, 3}, {3, 5}})
	if err != nil {
		t.Fatal(err)
	}
	if combined[0] != 2 || combined[1] != 4 {
		t.Fatalf("unexpected average %v", combined)
	}

	if _, err := averageVectors([][]float64{{1, 2}, {1}}); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}
