package main

import (
	"context"
	"fmt"
	"strings"

	"docket/internal/ipc"
	"docket/internal/queue"
)

// documentDetail is the combined view the show/describe commands render.
type documentDetail struct {
	Document ipc.DocumentSummary
	History  []ipc.HistoryEntry
	Tags     []ipc.LabelSummary
}

// queueAPI abstracts queue operations over IPC (daemon running) or direct
// store access (daemon stopped).
type queueAPI interface {
	Stats(ctx context.Context) (map[string]int, error)
	List(ctx context.Context, statuses []string) ([]ipc.DocumentSummary, error)
	Describe(ctx context.Context, id string) (*documentDetail, error)
	ClearAll(ctx context.Context) (int64, error)
	ClearCompleted(ctx context.Context) (int64, error)
	ClearFailed(ctx context.Context) (int64, error)
	Remove(ctx context.Context, ids []string) (int64, error)
	ResetStuck(ctx context.Context) (int64, error)
	Retry(ctx context.Context, ids []string) (int64, error)
	Reprocess(ctx context.Context, id string) error
	Health(ctx context.Context) (queue.HealthSummary, error)
}

// withQueue dials the daemon when available and falls back to opening the
// database directly otherwise.
func (c *commandContext) withQueue(fn func(q queueAPI) error) error {
	client, err := ipc.Dial(c.socketPath())
	if err == nil {
		defer client.Close()
		return fn(&queueIPCAdapter{client: client})
	}
	if !daemonUnavailable(err) {
		return wrapDialError(err, c.socketPath())
	}

	cfg, cfgErr := c.ensureConfig()
	if cfgErr != nil {
		return cfgErr
	}
	store, openErr := queue.Open(cfg)
	if openErr != nil {
		return openErr
	}
	defer store.Close()
	return fn(&queueStoreAdapter{store: store})
}

// --- IPC adapter ---

type queueIPCAdapter struct {
	client *ipc.Client
}

func (a *queueIPCAdapter) Stats(context.Context) (map[string]int, error) {
	resp, err := a.client.Status()
	if err != nil {
		return nil, err
	}
	return resp.QueueStats, nil
}

func (a *queueIPCAdapter) List(_ context.Context, statuses []string) ([]ipc.DocumentSummary, error) {
	resp, err := a.client.QueueList(statuses)
	if err != nil {
		return nil, err
	}
	return resp.Documents, nil
}

func (a *queueIPCAdapter) Describe(_ context.Context, id string) (*documentDetail, error) {
	resp, err := a.client.QueueDescribe(id)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "not found") {
			return nil, nil
		}
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}
	return &documentDetail{Document: resp.Document, History: resp.History, Tags: resp.Tags}, nil
}

func (a *queueIPCAdapter) ClearAll(context.Context) (int64, error) {
	resp, err := a.client.QueueClear()
	if err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

func (a *queueIPCAdapter) ClearCompleted(context.Context) (int64, error) {
	resp, err := a.client.QueueClearCompleted()
	if err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

func (a *queueIPCAdapter) ClearFailed(context.Context) (int64, error) {
	resp, err := a.client.QueueClearFailed()
	if err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

func (a *queueIPCAdapter) Remove(_ context.Context, ids []string) (int64, error) {
	resp, err := a.client.QueueRemove(ids)
	if err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

func (a *queueIPCAdapter) ResetStuck(context.Context) (int64, error) {
	resp, err := a.client.QueueReset()
	if err != nil {
		return 0, err
	}
	return resp.Updated, nil
}

func (a *queueIPCAdapter) Retry(_ context.Context, ids []string) (int64, error) {
	resp, err := a.client.QueueRetry(ids)
	if err != nil {
		return 0, err
	}
	return resp.Updated, nil
}

func (a *queueIPCAdapter) Reprocess(_ context.Context, id string) error {
	_, err := a.client.QueueReprocess(id)
	return err
}

func (a *queueIPCAdapter) Health(context.Context) (queue.HealthSummary, error) {
	resp, err := a.client.QueueHealth()
	if err != nil {
		return queue.HealthSummary{}, err
	}
	return queue.HealthSummary{
		Total:      resp.Total,
		Queued:     resp.Queued,
		Processing: resp.Processing,
		Failed:     resp.Failed,
		Completed:  resp.Completed,
	}, nil
}

// --- Store adapter ---

type queueStoreAdapter struct {
	store *queue.Store
}

func (a *queueStoreAdapter) Stats(ctx context.Context) (map[string]int, error) {
	stats, err := a.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	result := make(map[string]int, len(stats))
	for status, count := range stats {
		result[string(status)] = count
	}
	return result, nil
}

func (a *queueStoreAdapter) List(ctx context.Context, statuses []string) ([]ipc.DocumentSummary, error) {
	var filters []queue.Status
	for _, s := range statuses {
		if parsed, ok := queue.ParseStatus(s); ok {
			filters = append(filters, parsed)
		}
	}
	docs, err := a.store.List(ctx, filters...)
	if err != nil {
		return nil, err
	}
	summaries := make([]ipc.DocumentSummary, 0, len(docs))
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		summaries = append(summaries, ipc.FromDocument(doc))
	}
	return summaries, nil
}

func (a *queueStoreAdapter) Describe(ctx context.Context, id string) (*documentDetail, error) {
	doc, err := a.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}

	detail := &documentDetail{Document: ipc.FromDocument(doc)}

	history, err := a.store.HistoryForDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, entry := range history {
		detail.History = append(detail.History, ipc.HistoryEntry{
			Stage:     entry.Stage,
			Outcome:   string(entry.Outcome),
			Message:   entry.Message,
			Attempt:   entry.Attempt,
			CreatedAt: entry.CreatedAt,
		})
	}

	tags, err := a.store.DocumentTags(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, tag := range tags {
		if tag == nil {
			continue
		}
		detail.Tags = append(detail.Tags, ipc.LabelSummary{ID: tag.ID, Slug: tag.Slug, Name: tag.Name, Color: tag.Color})
	}
	return detail, nil
}

func (a *queueStoreAdapter) ClearAll(ctx context.Context) (int64, error) {
	return a.store.Clear(ctx)
}

func (a *queueStoreAdapter) ClearCompleted(ctx context.Context) (int64, error) {
	return a.store.ClearCompleted(ctx)
}

func (a *queueStoreAdapter) ClearFailed(ctx context.Context) (int64, error) {
	return a.store.ClearFailed(ctx)
}

func (a *queueStoreAdapter) Remove(ctx context.Context, ids []string) (int64, error) {
	var count int64
	for _, id := range ids {
		removed, err := a.store.Remove(ctx, id)
		if err != nil {
			return count, err
		}
		if removed {
			count++
		}
	}
	return count, nil
}

func (a *queueStoreAdapter) ResetStuck(ctx context.Context) (int64, error) {
	return a.store.ResetStuckProcessing(ctx)
}

func (a *queueStoreAdapter) Retry(ctx context.Context, ids []string) (int64, error) {
	return a.store.RetryFailed(ctx, ids...)
}

func (a *queueStoreAdapter) Reprocess(ctx context.Context, id string) error {
	doc, err := a.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("document %s not found", id)
	}
	if !queue.IsTerminal(doc.Status) {
		return fmt.Errorf("document %s is %s; only completed or failed documents can be reprocessed", id, doc.Status)
	}
	return a.store.ResetForReprocess(ctx, id)
}

func (a *queueStoreAdapter) Health(ctx context.Context) (queue.HealthSummary, error) {
	return a.store.Health(ctx)
}
